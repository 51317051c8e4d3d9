package errors

import (
	"strings"
	"unicode"
)

// maxNameLength bounds archive base names; most filesystems cap a single
// path component at 255 bytes and the extension needs room.
const maxNameLength = 240

// SanitizeArchiveName turns a user-supplied archive name into a safe base
// name. Path separators, control characters and characters reserved on
// common filesystems are replaced with '_', leading dots and surrounding
// whitespace are dropped, and a trailing ".cbz" is removed so the caller
// can append the extension unconditionally.
//
// An error is returned when nothing usable remains.
func SanitizeArchiveName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if strings.HasSuffix(strings.ToLower(name), ".cbz") {
		name = name[:len(name)-len(".cbz")]
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsControl(r):
			b.WriteRune('_')
		case strings.ContainsRune(`/\<>:"|?*`, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}

	out := strings.TrimLeft(strings.TrimSpace(b.String()), ".")
	out = strings.TrimRight(out, ". ")
	if out == "" {
		return "", New(ErrCodeInvalidInput, "archive name %q is empty after sanitisation", name)
	}
	if len(out) > maxNameLength {
		out = truncateUTF8(out, maxNameLength)
	}
	return out, nil
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := 0
	for i := range s {
		if i > n {
			break
		}
		cut = i
	}
	return s[:cut]
}

// ValidateCompressionLevel checks a deflate level. Levels follow
// compress/flate: 0 (no compression) to 9 (best compression).
func ValidateCompressionLevel(level int) error {
	if level < 0 || level > 9 {
		return New(ErrCodeInvalidInput, "compression level must be between 0 and 9, got %d", level)
	}
	return nil
}

// ValidateWorkers checks a worker pool size. Zero means "use the default".
func ValidateWorkers(n int) error {
	if n < 0 {
		return New(ErrCodeInvalidInput, "workers must not be negative, got %d", n)
	}
	return nil
}
