package selection

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrNoCandidates indicates that none of the offered files qualify for
// conversion.
var ErrNoCandidates = errors.New("no HEIC files selected")

// SourceExtensions lists the accepted source suffixes, matched
// case-insensitively.
var SourceExtensions = []string{".heic", ".heif"}

// TargetExtension is the output suffix applied by MapName.
const TargetExtension = ".png"

const sourceMIME = "image/heic"

// Candidate describes a qualifying input file ready for submission.
type Candidate struct {
	Path     string
	Name     string
	ByteSize int64
	MimeHint string
}

// Select filters raw paths down to qualifying HEIC files. Non-qualifying files
// are not silently dropped: when nothing qualifies the aggregate outcome is an
// error wrapping ErrNoCandidates, and the skipped count is reported either way.
func Select(paths []string) ([]Candidate, int, error) {
	var (
		candidates []Candidate
		skipped    int
	)
	for _, path := range paths {
		if !HasSourceExtension(path) {
			skipped++
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, 0, fmt.Errorf("stat %s: %w", path, err)
		}
		if info.IsDir() {
			skipped++
			continue
		}
		candidates = append(candidates, Candidate{
			Path:     path,
			Name:     filepath.Base(path),
			ByteSize: info.Size(),
			MimeHint: sourceMIME,
		})
	}
	if len(candidates) == 0 {
		if skipped > 0 {
			return nil, skipped, fmt.Errorf("%w (%d file(s) skipped: wrong extension)", ErrNoCandidates, skipped)
		}
		return nil, 0, ErrNoCandidates
	}
	return candidates, skipped, nil
}

// HasSourceExtension reports whether name ends in an accepted source suffix,
// case-insensitively.
func HasSourceExtension(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range SourceExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// MapName derives the output file name: the trailing source extension is
// replaced by the target extension, matching case-insensitively and
// substituting exactly once. A name without a recognizable source extension
// gets the target extension appended instead.
func MapName(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range SourceExtensions {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)] + TargetExtension
		}
	}
	return name + TargetExtension
}

var titleCaser = cases.Title(language.English)

// DisplayTitle derives a human-readable title from a file name for summaries
// and notifications: extension stripped, separators spaced, title-cased.
func DisplayTitle(name string) string {
	base := strings.TrimSpace(filepath.Base(name))
	if base == "" {
		return "Untitled"
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(base)
	base = strings.Join(strings.Fields(base), " ")
	if base == "" {
		return "Untitled"
	}
	return titleCaser.String(base)
}
