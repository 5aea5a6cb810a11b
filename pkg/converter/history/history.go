// Package history persists a summary of every finished conversion batch in a
// bbolt database so past runs can be listed later.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/VolkanSah/ImageConverter/pkg/converter"
	"go.etcd.io/bbolt"
)

// FileName is the database file created in the history directory.
const FileName = "history.db"

// SchemaVersion is stored with every entry. Entries with another version are
// skipped by List.
const SchemaVersion = "1"

const batchesBucket = "batches"

// keyTimeLayout is fixed-width so keys sort chronologically.
const keyTimeLayout = "20060102T150405.000000000Z"

var (
	// ErrHistoryOpen indicates the database could not be opened or initialized.
	ErrHistoryOpen = errors.New("failed to open history database")
	// ErrHistoryRecord indicates a batch could not be written.
	ErrHistoryRecord = errors.New("failed to record batch in history")
)

// Entry is the stored summary of one batch.
type Entry struct {
	BatchID        string    `json:"batchId" yaml:"batchId"`
	StartedAt      time.Time `json:"startedAt" yaml:"startedAt"`
	DurationMs     int64     `json:"durationMs" yaml:"durationMs"`
	Format         string    `json:"format" yaml:"format"`
	DestinationDir string    `json:"destinationDir" yaml:"destinationDir"`
	Successful     int       `json:"successful" yaml:"successful"`
	Total          int       `json:"total" yaml:"total"`
	Skipped        int       `json:"skipped" yaml:"skipped"`
	Failed         int       `json:"failed" yaml:"failed"`
	Verdict        string    `json:"verdict" yaml:"verdict"`
	FailedInputs   []string  `json:"failedInputs,omitempty" yaml:"failedInputs,omitempty"`
	AppVersion     string    `json:"appVersion" yaml:"appVersion"`
	SchemaVersion  string    `json:"schemaVersion" yaml:"schemaVersion"`
}

// NewEntry summarizes a batch result.
func NewEntry(r converter.BatchResult, appVersion string) Entry {
	e := Entry{
		BatchID:        r.BatchID,
		StartedAt:      r.StartedAt.UTC(),
		DurationMs:     r.Duration.Milliseconds(),
		Format:         string(r.Format),
		DestinationDir: r.DestinationDir,
		Successful:     r.Successful,
		Total:          r.Total,
		Skipped:        r.Count(converter.StatusSkipped),
		Failed:         r.Count(converter.StatusFailed),
		Verdict:        string(r.Verdict()),
		AppVersion:     appVersion,
		SchemaVersion:  SchemaVersion,
	}
	for _, o := range r.Outcomes {
		if o.Status == converter.StatusFailed {
			e.FailedInputs = append(e.FailedInputs, o.InputPath)
		}
	}
	return e
}

// Store is a bbolt-backed batch history. It is safe for concurrent use.
type Store struct {
	db     *bbolt.DB
	path   string
	logger *slog.Logger
}

// DefaultPath returns <user config dir>/webp-converter/history.db.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "webp-converter", FileName), nil
}

// Open opens or creates the database at path. handler may be nil.
func Open(path string, handler slog.Handler) (*Store, error) {
	logger := slog.Default()
	if handler != nil {
		logger = slog.New(handler)
	}
	logger = logger.With(slog.String("component", "history"))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHistoryOpen, err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrHistoryOpen, path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(batchesBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", ErrHistoryOpen, err)
	}
	logger.Debug("History database opened", slog.String("path", path))
	return &Store{db: db, path: path, logger: logger}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Record stores the summary of a finished batch.
func (s *Store) Record(r converter.BatchResult, appVersion string) error {
	entry := NewEntry(r, appVersion)
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHistoryRecord, err)
	}
	key := []byte(entry.StartedAt.Format(keyTimeLayout) + "/" + entry.BatchID)
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(batchesBucket)).Put(key, data)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHistoryRecord, err)
	}
	s.logger.Debug("Batch recorded", slog.String("batchID", entry.BatchID), slog.String("verdict", entry.Verdict))
	return nil
}

// List returns up to limit entries, newest first. limit <= 0 returns all.
func (s *Store) List(limit int) ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(batchesBucket)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				s.logger.Warn("Skipping unreadable history entry", slog.String("key", string(k)), slog.String("error", err.Error()))
				continue
			}
			if e.SchemaVersion != SchemaVersion {
				s.logger.Debug("Skipping history entry with other schema", slog.String("key", string(k)), slog.String("schemaVersion", e.SchemaVersion))
				continue
			}
			entries = append(entries, e)
			if limit > 0 && len(entries) >= limit {
				break
			}
		}
		return nil
	})
	return entries, err
}

// Close releases the database file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// Recorder is a converter.Hooks that records every completed batch.
type Recorder struct {
	converter.NoOpHooks
	store      *Store
	appVersion string
}

// NewRecorder returns hooks writing into store.
func NewRecorder(store *Store, appVersion string) *Recorder {
	return &Recorder{store: store, appVersion: appVersion}
}

// OnBatchComplete records the batch.
func (r *Recorder) OnBatchComplete(result converter.BatchResult) error {
	return r.store.Record(result, r.appVersion)
}
