package cli

import (
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/cbzkit/internal/config"
	"github.com/matzehuels/cbzkit/pkg/transform"
)

func parseBuildFlags(t *testing.T, args ...string) (*cobra.Command, *buildFlags) {
	t.Helper()
	var f buildFlags
	cmd := &cobra.Command{Use: "test"}
	f.register(cmd, true)
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags(%v): %v", args, err)
	}
	return cmd, &f
}

func TestBuildOptions(t *testing.T) {
	level := 6
	cfg := config.Default()
	cfg.ReadingOrder = "rtl"
	cfg.Outdir = "/cfg/out"
	cfg.Workers = 3
	cfg.CompressionLevel = &level

	tests := []struct {
		name        string
		args        []string
		wantOutdir  string
		wantOrder   transform.ReadingOrder
		wantDeflate bool
		wantLevel   int
	}{
		{"config defaults", []string{"-n", "x"}, "/cfg/out", transform.RightToLeft, true, 6},
		{"flags win", []string{"-n", "x", "-o", "here", "--reading-order", "ltr", "--compression-level", "0"}, "here", transform.LeftToRight, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, f := parseBuildFlags(t, tt.args...)
			opts := f.options(cmd, cfg)

			if opts.Outdir != tt.wantOutdir {
				t.Errorf("Outdir = %q, want %q", opts.Outdir, tt.wantOutdir)
			}
			if opts.Transform.ReadingOrder != tt.wantOrder {
				t.Errorf("ReadingOrder = %q, want %q", opts.Transform.ReadingOrder, tt.wantOrder)
			}
			if opts.Deflate != tt.wantDeflate || opts.CompressionLevel != tt.wantLevel {
				t.Errorf("Deflate/Level = %v/%d, want %v/%d", opts.Deflate, opts.CompressionLevel, tt.wantDeflate, tt.wantLevel)
			}
			if opts.Workers != 3 {
				t.Errorf("Workers = %d, want 3", opts.Workers)
			}
		})
	}
}

func TestBuildOptionsStoresByDefault(t *testing.T) {
	cmd, f := parseBuildFlags(t, "-n", "x", "--autosplit", "--contrast", "0.5", "--brightness", "-10", "--blur", "1.5")
	opts := f.options(cmd, config.Default())

	if opts.Deflate {
		t.Error("entries should be stored without a compression level")
	}
	want := transform.Spec{Autosplit: true, ReadingOrder: transform.LeftToRight, Contrast: 0.5, Brightness: -10, Blur: 1.5}
	if opts.Transform != want {
		t.Errorf("Transform = %+v, want %+v", opts.Transform, want)
	}
	if opts.Metadata != nil {
		t.Errorf("Metadata = %+v, want nil without metadata flags", opts.Metadata)
	}
}

func TestMetadataFlags(t *testing.T) {
	_, f := parseBuildFlags(t, "-n", "x", "--title", "Dawn", "--series", "Saga", "--volume", "2", "--tag", "a", "--tag", "b")
	now := time.Date(2026, 1, 2, 3, 4, 5, 600, time.FixedZone("x", 3600))

	md := f.meta.metadata(now)
	if md == nil || md.Info == nil {
		t.Fatal("metadata should be built")
	}
	if md.Info.Title != "Dawn" || md.Info.Series != "Saga" || md.Info.Volume != 2 || len(md.Info.Tags) != 2 {
		t.Errorf("Info = %+v", md.Info)
	}
	if md.LastModified != nil {
		t.Error("lastModified should be omitted without --stamp")
	}

	f.meta = metaFlags{stamp: true}
	md = f.meta.metadata(now)
	if md == nil || md.Info != nil {
		t.Fatalf("stamp only: %+v", md)
	}
	if want := time.Date(2026, 1, 2, 2, 4, 5, 0, time.UTC); !md.LastModified.Equal(want) || md.LastModified.Location() != time.UTC {
		t.Errorf("LastModified = %v, want %v", md.LastModified, want)
	}
}
