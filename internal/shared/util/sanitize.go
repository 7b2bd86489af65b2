package util

import (
	"errors"
	"strings"
)

// ErrInvalidFileName is returned for names that are empty or climb out of
// their directory.
var ErrInvalidFileName = errors.New("invalid file name")

// SanitizeFileName flattens a client or archive path into a single storage
// name. Segments are joined with "_"; a ".." segment is rejected, while dots
// inside a name ("Tema 1..Cardio.pdf") are kept.
func SanitizeFileName(name string) (string, error) {
	segments := strings.FieldsFunc(strings.TrimSpace(name), func(r rune) bool {
		return r == '/' || r == '\\'
	})
	kept := segments[:0]
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		switch seg {
		case "..":
			return "", ErrInvalidFileName
		case "", ".":
			continue
		}
		kept = append(kept, seg)
	}
	if len(kept) == 0 {
		return "", ErrInvalidFileName
	}
	return strings.Join(kept, "_"), nil
}
