package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/cbzkit/pkg/errors"
	"github.com/matzehuels/cbzkit/pkg/page"
)

// OpenFiles collects image files from inputs. Each input is a file path, a
// directory (its image files are taken, not recursively) or a glob
// pattern. Every file is sniffed from its header; files that are not a
// known image are skipped. The batch is returned in natural path order.
func OpenFiles(ctx context.Context, inputs ...string) (*Batch, error) {
	desc := strings.Join(inputs, " ")
	if len(inputs) == 0 {
		return nil, &errors.EmptyInputError{Input: desc, Reason: "no inputs given"}
	}

	paths, err := expand(inputs)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, &errors.EmptyInputError{Input: desc, Reason: "no files matched"}
	}

	b := &Batch{Source: desc}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		format, err := sniffFile(path)
		if err != nil {
			b.skip(path, err)
			continue
		}
		if format == page.Unknown {
			b.skip(path, fmt.Errorf("not a supported image"))
			continue
		}
		b.Pages = append(b.Pages, page.Lazy(path, len(b.Pages), format, fileOpener(path)))
	}

	if len(b.Pages) == 0 {
		return nil, &errors.EmptyInputError{Input: desc, Reason: fmt.Sprintf("none of %d file(s) is a usable image", len(paths))}
	}
	b.Order()
	return b, nil
}

// expand resolves inputs into a de-duplicated file list in input order.
func expand(inputs []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, in := range inputs {
		if hasMeta(in) {
			matches, err := filepath.Glob(in)
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "bad pattern %q", in)
			}
			for _, m := range matches {
				if info, err := os.Stat(m); err == nil && info.Mode().IsRegular() {
					add(m)
				}
			}
			continue
		}

		info, err := os.Stat(in)
		if err != nil {
			return nil, &errors.EmptyInputError{Input: in, Reason: "path does not exist"}
		}
		if !info.IsDir() {
			add(in)
			continue
		}
		entries, err := os.ReadDir(in)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read directory %s", in)
		}
		for _, e := range entries {
			if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			add(filepath.Join(in, e.Name()))
		}
	}
	return out, nil
}

func hasMeta(path string) bool {
	return strings.ContainsAny(path, `*?[`)
}

func sniffFile(path string) (page.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return page.Unknown, err
	}
	defer f.Close()

	header := make([]byte, page.SniffLen)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return page.Unknown, err
	}
	return page.Sniff(header[:n]), nil
}

func fileOpener(path string) page.Opener {
	return func() (io.ReadCloser, error) {
		return os.Open(path)
	}
}
