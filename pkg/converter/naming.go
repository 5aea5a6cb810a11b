package converter

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SplitName splits a base file name into stem and suffix. The suffix starts at
// the last dot; a name whose only dot is leading (".webp") or trailing ("a.")
// has no suffix and the whole name is the stem.
func SplitName(base string) (stem, suffix string) {
	i := strings.LastIndex(base, ".")
	if i <= 0 || i == len(base)-1 {
		return base, ""
	}
	return base[:i], base[i:]
}

// IsCandidate reports whether path names a WebP source file.
func IsCandidate(path string) bool {
	_, suffix := SplitName(filepath.Base(path))
	return strings.EqualFold(suffix, SourceExtension)
}

// OutputPath derives "{destDir}/{inputStem}.{ext}" for the given input.
func OutputPath(destDir, input string, format Format) string {
	stem, _ := SplitName(filepath.Base(input))
	return filepath.Join(destDir, stem+"."+format.Extension())
}

// maxRenameAttempts bounds the search for a free name under CollisionRename.
const maxRenameAttempts = 10000

// resolveCollision applies the collision policy to a derived output path.
// reserved holds paths already claimed by this batch that may not exist on disk yet.
func resolveCollision(fsys FileSystem, policy CollisionPolicy, out string, reserved map[string]bool) (string, error) {
	taken := func(p string) bool { return reserved[p] || fsys.Exists(p) }

	switch policy {
	case CollisionFail:
		if taken(out) {
			return "", fmt.Errorf("%w: %s", ErrOutputExists, filepath.Base(out))
		}
		return out, nil
	case CollisionRename:
		if !taken(out) {
			return out, nil
		}
		dir := filepath.Dir(out)
		stem, suffix := SplitName(filepath.Base(out))
		for n := 1; n <= maxRenameAttempts; n++ {
			candidate := filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, n, suffix))
			if !taken(candidate) {
				return candidate, nil
			}
		}
		return "", fmt.Errorf("%w: no free name for %s", ErrOutputExists, filepath.Base(out))
	default:
		return out, nil
	}
}
