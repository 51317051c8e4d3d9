package observability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	p := NoopPipelineHooks{}
	p.OnDiscovery(ctx, "pack", 10, 1, time.Second, nil)
	p.OnPageTransformed(ctx, 2, time.Millisecond, nil)
	p.OnArchiveWritten(ctx, "merge", 12, 4096, time.Second, errors.New("disk full"))

	NoopDecodeHooks{}.OnDecode(ctx, "pdf", 3, time.Second, nil)

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "manifest")
	c.OnCacheMiss(ctx, "page")
	c.OnCacheSet(ctx, "page", 1024)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	if _, ok := Pipeline().(NoopPipelineHooks); !ok {
		t.Error("Pipeline() should default to NoopPipelineHooks")
	}
	if _, ok := Decode().(NoopDecodeHooks); !ok {
		t.Error("Decode() should default to NoopDecodeHooks")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should default to NoopCacheHooks")
	}

	p := &recordingHooks{}
	SetPipelineHooks(p)
	SetDecodeHooks(p)
	SetCacheHooks(p)
	if Pipeline() != p || Decode() != p || Cache() != p {
		t.Fatal("setters should register custom hooks")
	}

	Pipeline().OnArchiveWritten(context.Background(), "pack", 3, 100, 0, nil)
	if p.written != 1 {
		t.Errorf("written = %d, want 1", p.written)
	}

	Reset()
	if _, ok := Pipeline().(NoopPipelineHooks); !ok {
		t.Error("Reset() should restore NoopPipelineHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	custom := &recordingHooks{}
	SetPipelineHooks(custom)
	SetPipelineHooks(nil)
	if Pipeline() != custom {
		t.Error("SetPipelineHooks(nil) should be ignored")
	}
}

type recordingHooks struct {
	NoopPipelineHooks
	NoopDecodeHooks
	NoopCacheHooks
	written int
}

func (r *recordingHooks) OnArchiveWritten(context.Context, string, int, int64, time.Duration, error) {
	r.written++
}
