package pdf

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/matzehuels/cbzkit/pkg/errors"
	"github.com/matzehuels/cbzkit/pkg/natsort"
	"github.com/matzehuels/cbzkit/pkg/page"
	"github.com/matzehuels/cbzkit/pkg/source"
)

// RunFunc runs an external command. It must stop when ctx is done.
type RunFunc func(ctx context.Context, name string, args ...string) error

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil && len(out) > 0 {
		return fmt.Errorf("%w: %s", err, out)
	}
	return err
}

// Renderer rasterizes every page with pdftoppm.
type Renderer struct {
	// DPI is the render resolution. Defaults to DefaultDPI.
	DPI int
	// Binary is the pdftoppm executable. Defaults to "pdftoppm" on PATH.
	Binary string
	// Run executes the command. Defaults to os/exec.
	Run RunFunc
}

// Decode implements source.Decoder.
func (r *Renderer) Decode(ctx context.Context, path string) ([]source.RawPage, error) {
	dpi := r.DPI
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	bin := r.Binary
	if bin == "" {
		bin = "pdftoppm"
	}
	run := r.Run
	if run == nil {
		if _, err := exec.LookPath(bin); err != nil {
			return nil, errors.Wrap(errors.ErrCodeUnsupported, err, "pdf rendering needs %s (poppler-utils)", bin)
		}
		run = runCommand
	}

	workDir, err := os.MkdirTemp("", "cbzkit-render-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(workDir)

	prefix := filepath.Join(workDir, "page")
	if err := run(ctx, bin, "-jpeg", "-r", strconv.Itoa(dpi), path, prefix); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "render %s", path)
	}

	matches, err := filepath.Glob(prefix + "-*.jpg")
	if err != nil {
		return nil, err
	}
	// pdftoppm pads page numbers to the page count, natural order covers
	// every padding.
	natsort.Strings(matches)

	pages := make([]source.RawPage, 0, len(matches))
	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(m)
		if err != nil {
			return nil, err
		}
		id := filepath.Base(m)
		pages = append(pages, source.RawPage{ID: id, Data: data, Format: page.JPEG})
	}
	return pages, nil
}
