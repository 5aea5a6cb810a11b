// Package testutil provides mock implementations of the interfaces defined in
// pkg/converter plus image fixture helpers shared by the package tests.
package testutil

import (
	"image"
	"sync"

	"github.com/VolkanSah/ImageConverter/pkg/converter"
	"github.com/stretchr/testify/mock"
)

// MockHooks provides a mock implementation of the converter.Hooks interface.
// Configure expectations with .On("OnFileStatusUpdate", ...).Return(nil).
type MockHooks struct {
	mock.Mock
}

// OnBatchStart mocks the OnBatchStart method.
func (m *MockHooks) OnBatchStart(info converter.BatchInfo) error {
	args := m.Called(info)
	return args.Error(0)
}

// OnFileStatusUpdate mocks the OnFileStatusUpdate method.
func (m *MockHooks) OnFileStatusUpdate(index int, outcome converter.Outcome) error {
	args := m.Called(index, outcome)
	return args.Error(0)
}

// OnBatchComplete mocks the OnBatchComplete method.
func (m *MockHooks) OnBatchComplete(result converter.BatchResult) error {
	args := m.Called(result)
	return args.Error(0)
}

// MockCodec provides a mock implementation of converter.ImageCodec.
type MockCodec struct {
	mock.Mock
}

// Decode mocks the Decode method.
func (m *MockCodec) Decode(path string) (image.Image, error) {
	args := m.Called(path)
	img, _ := args.Get(0).(image.Image)
	return img, args.Error(1)
}

// EncodePNG mocks the EncodePNG method.
func (m *MockCodec) EncodePNG(img image.Image, path string) error {
	args := m.Called(img, path)
	return args.Error(0)
}

// EncodeJPEG mocks the EncodeJPEG method.
func (m *MockCodec) EncodeJPEG(img image.Image, path string, quality int) error {
	args := m.Called(img, path, quality)
	return args.Error(0)
}

// MockFileSystem provides a mock implementation of converter.FileSystem.
type MockFileSystem struct {
	mock.Mock
}

// EnsureDir mocks the EnsureDir method.
func (m *MockFileSystem) EnsureDir(path string) error {
	args := m.Called(path)
	return args.Error(0)
}

// Exists mocks the Exists method.
func (m *MockFileSystem) Exists(path string) bool {
	args := m.Called(path)
	return args.Bool(0)
}

// RecordingHooks is a converter.Hooks that keeps every callback in order.
// It is safe for concurrent use.
type RecordingHooks struct {
	mu       sync.Mutex
	Calls    []string
	Infos    []converter.BatchInfo
	Outcomes []converter.Outcome
	Indexes  []int
	Results  []converter.BatchResult
}

// OnBatchStart records the start callback.
func (r *RecordingHooks) OnBatchStart(info converter.BatchInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, "start")
	r.Infos = append(r.Infos, info)
	return nil
}

// OnFileStatusUpdate records a per-file callback.
func (r *RecordingHooks) OnFileStatusUpdate(index int, outcome converter.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, "file")
	r.Indexes = append(r.Indexes, index)
	r.Outcomes = append(r.Outcomes, outcome)
	return nil
}

// OnBatchComplete records the completion callback.
func (r *RecordingHooks) OnBatchComplete(result converter.BatchResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, "complete")
	r.Results = append(r.Results, result)
	return nil
}

// Snapshot returns a copy of the recorded call sequence.
func (r *RecordingHooks) Snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.Calls...)
}
