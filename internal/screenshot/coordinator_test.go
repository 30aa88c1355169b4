package screenshot

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hexiro/csinspect/internal/domain"
)

// scriptedRenderer succeeds or fails per inspect link and counts calls.
type scriptedRenderer struct {
	succeed map[string]string // inspect link -> image url
	calls   atomic.Int64
}

func (r *scriptedRenderer) Render(_ context.Context, item *domain.Item) bool {
	r.calls.Add(1)
	if url, ok := r.succeed[item.InspectLink]; ok {
		item.MarkFinished(url)
		return true
	}
	item.MarkFailed()
	return false
}

func TestCoordinator_RenderAll_MixedResultsInOrder(t *testing.T) {
	good := domain.NewItem("link-good")
	bad := domain.NewItem("link-bad")

	r := &scriptedRenderer{succeed: map[string]string{"link-good": "https://img/good.png"}}
	c := NewCoordinator(r, 1000, 10)

	results := c.RenderAll(context.Background(), []*domain.Item{good, bad})

	if len(results) != 2 || !results[0] || results[1] {
		t.Fatalf("results = %v; want [true false] in input order", results)
	}
	if good.State != domain.ItemFinished || good.ImageURL != "https://img/good.png" {
		t.Fatalf("good item = state=%v url=%q", good.State, good.ImageURL)
	}
	if bad.State != domain.ItemFailed || bad.ImageURL != "" {
		t.Fatalf("bad item = state=%v url=%q; only the successful item may carry a URL", bad.State, bad.ImageURL)
	}
}

func TestCoordinator_RenderAll_ZeroItems(t *testing.T) {
	r := &scriptedRenderer{}
	c := NewCoordinator(r, 1000, 10)

	results := c.RenderAll(context.Background(), nil)
	if len(results) != 0 {
		t.Fatalf("results = %v; want empty", results)
	}
	if n := r.calls.Load(); n != 0 {
		t.Fatalf("renderer called %d times; want 0", n)
	}
}

func TestCoordinator_RenderAll_AllItemsAttempted(t *testing.T) {
	items := []*domain.Item{
		domain.NewItem("a"), domain.NewItem("b"),
		domain.NewItem("c"), domain.NewItem("d"),
	}
	r := &scriptedRenderer{succeed: map[string]string{
		"a": "https://img/a.png", "c": "https://img/c.png",
	}}
	c := NewCoordinator(r, 1000, 10)

	results := c.RenderAll(context.Background(), items)
	want := []bool{true, false, true, false}
	for i := range want {
		if results[i] != want[i] {
			t.Fatalf("results = %v; want %v", results, want)
		}
	}
	if n := r.calls.Load(); n != 4 {
		t.Fatalf("renderer called %d times; want 4", n)
	}
}

func TestCoordinator_RenderAll_CancelledContextFailsItems(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	item := domain.NewItem("x")
	// Zero-burst limiter: Wait always blocks, so the cancelled context is
	// the only exit.
	c := NewCoordinator(&scriptedRenderer{}, 0.0001, 1)
	c.limiter.AllowN(time.Now(), 1) // drain the single token

	results := c.RenderAll(ctx, []*domain.Item{item})
	if results[0] {
		t.Fatalf("results = %v; want [false] under cancelled context", results)
	}
	if item.State != domain.ItemFailed {
		t.Fatalf("item state = %v; want failed", item.State)
	}
}
