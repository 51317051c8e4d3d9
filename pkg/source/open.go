package source

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ArchiveExts are the extensions treated as existing archives by Open.
var ArchiveExts = []string{".cbz", ".zip"}

// IsArchive reports whether path names an existing zip or cbz file.
func IsArchive(path string) bool {
	if !slices.Contains(ArchiveExts, strings.ToLower(filepath.Ext(path))) {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Open picks the adapter for inputs: a single existing archive is read
// with OpenArchive, anything else with OpenFiles.
func Open(ctx context.Context, inputs ...string) (*Batch, error) {
	if len(inputs) == 1 && IsArchive(inputs[0]) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return OpenArchive(inputs[0])
	}
	return OpenFiles(ctx, inputs...)
}
