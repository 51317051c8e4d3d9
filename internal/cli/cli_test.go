package cli

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/matzehuels/cbzkit/internal/config"
	"github.com/matzehuels/cbzkit/pkg/archive"
	"github.com/matzehuels/cbzkit/pkg/cache"
	"github.com/matzehuels/cbzkit/pkg/errors"
)

// isolate points every config, cache and .env lookup at a fresh directory
// and makes it the working directory.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	t.Chdir(dir)
	return dir
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

// execute runs the root command the way main does, including Close.
func execute(t *testing.T, args ...string) (*CLI, error) {
	t.Helper()
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	err := root.ExecuteContext(context.Background())
	if cerr := c.Close(); err == nil {
		err = cerr
	}
	return c, err
}

func entries(t *testing.T, path string) []string {
	t.Helper()
	r, err := archive.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	var names []string
	for _, e := range r.Entries() {
		names = append(names, e.Name)
	}
	return names
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()
	var names []string
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	for _, want := range []string{"pack", "merge", "convert", "inspect", "cache", "completion"} {
		if !slices.Contains(names, want) {
			t.Errorf("missing %q command in %v", want, names)
		}
	}
	for _, flag := range []string{"config", "workers", "no-cache", "metrics-file", "no-progress"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("missing --%s flag", flag)
		}
	}
}

func TestPackCommand(t *testing.T) {
	dir := isolate(t)
	pages := filepath.Join(dir, "pages")
	if err := os.Mkdir(pages, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"p10.png", "p2.png", "p1.png"} {
		writePNG(t, filepath.Join(pages, name), 4, 6)
	}
	if err := os.WriteFile(filepath.Join(pages, "notes.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	prom := filepath.Join(dir, "cbzkit.prom")

	_, err := execute(t, "pack", pages, "-n", "book", "-o", "out", "--title", "Book", "--no-progress", "--metrics-file", prom)
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "out", "book.cbz")
	if got, want := entries(t, out), []string{"1.png", "2.png", "3.png"}; !slices.Equal(got, want) {
		t.Errorf("entries = %v, want %v", got, want)
	}

	r, err := archive.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if r.Metadata == nil || r.Metadata.Info == nil || r.Metadata.Info.Title != "Book" {
		t.Errorf("metadata = %+v", r.Metadata)
	}

	data, err := os.ReadFile(prom)
	if err != nil {
		t.Fatalf("metrics file: %v", err)
	}
	for _, want := range []string{
		`cbzkit_discovered_pages_total{mode="pack"} 3`,
		`cbzkit_skipped_inputs_total{mode="pack"} 1`,
		`cbzkit_archives_total{mode="pack",result="ok"} 1`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestPackCommandRequiresName(t *testing.T) {
	isolate(t)
	if _, err := execute(t, "pack", "x.png"); err == nil || !strings.Contains(err.Error(), "name") {
		t.Errorf("error = %v, want missing --name", err)
	}
}

func TestPackCommandEmptyGlob(t *testing.T) {
	dir := isolate(t)
	_, err := execute(t, "pack", filepath.Join(dir, "*.png"), "-n", "empty", "--no-progress")
	if !errors.Is(err, errors.ErrCodeEmptyInput) {
		t.Errorf("error = %v, want EMPTY_INPUT", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "empty.cbz")); !os.IsNotExist(err) {
		t.Error("no archive should be written for an empty glob")
	}
}

func TestMergeCommand(t *testing.T) {
	dir := isolate(t)
	for i, name := range []string{"vol10.cbz", "vol2.cbz"} {
		src := filepath.Join(dir, strings.TrimSuffix(name, ".cbz")+"-pages")
		if err := os.Mkdir(src, 0o755); err != nil {
			t.Fatal(err)
		}
		writePNG(t, filepath.Join(src, "a.png"), 2, 3)
		writePNG(t, filepath.Join(src, "b.png"), 2, 3)
		if _, err := execute(t, "pack", src, "-n", strings.TrimSuffix(name, ".cbz"), "--no-progress"); err != nil {
			t.Fatalf("pack %d: %v", i, err)
		}
	}

	_, err := execute(t, "merge", "-g", filepath.Join(dir, "vol*.cbz"), "-n", "all", "-o", "merged", "--no-progress")
	if err != nil {
		t.Fatal(err)
	}
	got := entries(t, filepath.Join(dir, "merged", "all.cbz"))
	if want := []string{"1.png", "2.png", "3.png", "4.png"}; !slices.Equal(got, want) {
		t.Errorf("entries = %v, want %v", got, want)
	}
}

func TestConvertCommandUnknownFormat(t *testing.T) {
	dir := isolate(t)
	book := filepath.Join(dir, "book.djvu")
	if err := os.WriteFile(book, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "convert", book, "--no-progress"); !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("error = %v, want UNSUPPORTED", err)
	}
}

func TestInspectCommand(t *testing.T) {
	dir := isolate(t)
	writePNG(t, filepath.Join(dir, "1.png"), 2, 2)
	if _, err := execute(t, "pack", filepath.Join(dir, "1.png"), "-n", "one", "--series", "S", "--no-progress"); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "inspect", filepath.Join(dir, "one.cbz")); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "inspect", filepath.Join(dir, "missing.cbz")); err == nil {
		t.Error("inspect of a missing archive should fail")
	}
}

func TestCacheLocation(t *testing.T) {
	dir := isolate(t)
	c, err := execute(t, "cache", "path")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := c.cacheLocation(), filepath.Join(dir, "cache", config.AppName); got != want {
		t.Errorf("cacheLocation() = %q, want %q", got, want)
	}

	c.Config.Cache = config.CacheConfig{Backend: config.CacheRedis, RedisURL: "redis://cache:6379/1"}
	if got := c.cacheLocation(); got != "redis://cache:6379/1" {
		t.Errorf("redis cacheLocation() = %q", got)
	}
}

func TestCacheClear(t *testing.T) {
	dir := isolate(t)
	entry := filepath.Join(dir, "cache", config.AppName, "ab", "cdef.json")
	if err := os.MkdirAll(filepath.Dir(entry), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(entry, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := execute(t, "cache", "clear"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(entry); !os.IsNotExist(err) {
		t.Error("cache entry should be removed")
	}

	if _, err := execute(t, "cache", "clear", "--no-cache"); err != nil {
		t.Errorf("clearing a disabled cache: %v", err)
	}
}

func TestGlobalFlagsOverrideConfig(t *testing.T) {
	isolate(t)
	c, err := execute(t, "cache", "path", "--workers", "2", "--no-cache")
	if err != nil {
		t.Fatal(err)
	}
	if c.Config.Workers != 2 || c.Config.Cache.Backend != config.CacheNone {
		t.Errorf("config = %+v", c.Config)
	}

	if _, err := execute(t, "cache", "path", "--config", "missing.toml"); err == nil {
		t.Error("an explicit missing config file should fail")
	}
}

func TestNewRunnerScopesCacheKeys(t *testing.T) {
	isolate(t)
	c := New(io.Discard, LogInfo)
	c.Config.Cache.Backend = config.CacheNone
	runner := c.newRunner(context.Background(), true)
	defer runner.Close()

	key := runner.Keyer.ManifestKey("abc", cache.DecodeKeyOpts{Format: "pdf"})
	if !strings.HasPrefix(key, keyScope) {
		t.Errorf("ManifestKey() = %q, want prefix %q", key, keyScope)
	}
}

func TestSourceFormat(t *testing.T) {
	tests := []struct {
		from, path string
		want       string
		code       errors.Code
	}{
		{"", "book.epub", "epub", ""},
		{"", "Book.AZW3", "azw3", ""},
		{"pdf", "scan.bin", "pdf", ""},
		{"epub", "book.pdf", "epub", ""},
		{"", "book", "", errors.ErrCodeInvalidInput},
		{"", "book.djvu", "", errors.ErrCodeUnsupported},
		{"djvu", "book.pdf", "", errors.ErrCodeUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.from+"/"+tt.path, func(t *testing.T) {
			c, err := sourceFormat(tt.from, tt.path)
			if tt.code != "" {
				if !errors.Is(err, tt.code) {
					t.Errorf("error = %v, want %s", err, tt.code)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if c.Name != tt.want {
				t.Errorf("format = %s, want %s", c.Name, tt.want)
			}
		})
	}
}
