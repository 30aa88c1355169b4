package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hexiro/csinspect/internal/config"
	"github.com/hexiro/csinspect/internal/domain"
	"github.com/hexiro/csinspect/internal/platform"
	"github.com/hexiro/csinspect/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	dsn := fmt.Sprintf("file:bot_%s?mode=memory&cache=shared", uuid.NewString())
	s, err := store.OpenSQLite(dsn, time.Hour)
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestFilter(t *testing.T) (*Filter, *store.SQLiteStore) {
	t.Helper()
	s := newTestStore(t)
	return &Filter{
		Store:             s,
		MaxImages:         4,
		MaxFailedAttempts: 3,
		AccountFilterMode: config.AccountFilterOnly,
	}, s
}

// inspectLink fabricates a distinct valid inspect link.
func inspectLink(n int) string {
	return fmt.Sprintf(
		"steam://rungame/730/76561202255233023/+csgo_econ_action_preview%%20S7656119808474984%dA69832359%dD793552399831248317%d",
		n, n, n,
	)
}

func textWithLinks(n int) string {
	var b strings.Builder
	b.WriteString("look at this float ")
	for i := 0; i < n; i++ {
		b.WriteString(inspectLink(i))
		b.WriteString(" ")
	}
	return b.String()
}

func TestExtractInspectLinks_CapsMatches(t *testing.T) {
	links := ExtractInspectLinks(textWithLinks(5), 4)
	if len(links) != 4 {
		t.Fatalf("extracted %d links; want 4", len(links))
	}
	// Order preserved: the first four of five.
	for i, link := range links {
		if link != inspectLink(i) {
			t.Fatalf("links[%d] = %q; want %q", i, link, inspectLink(i))
		}
	}
}

func TestExtractInspectLinks_MarketListingForm(t *testing.T) {
	text := "selling: steam://rungame/730/76561202255233023/+csgo_econ_action_preview%20M2861862276954491539A4032038486D8259011279706239491"
	links := ExtractInspectLinks(text, 4)
	if len(links) != 1 {
		t.Fatalf("extracted %d links from market-listing form; want 1", len(links))
	}
}

func TestFilter_NoLinks(t *testing.T) {
	f, _ := newTestFilter(t)

	_, err := f.Parse(context.Background(), platform.RawMessage{ID: "1", Text: "no links here"})
	if !errors.Is(err, ErrNoInspectLinks) {
		t.Fatalf("err = %v; want ErrNoInspectLinks", err)
	}
}

func TestFilter_AttachmentsExcludedEvenWithLinks(t *testing.T) {
	f, _ := newTestFilter(t)

	raw := platform.RawMessage{ID: "1", Text: textWithLinks(1), HasAttachments: true}
	_, err := f.Parse(context.Background(), raw)
	if !errors.Is(err, ErrHasAttachments) {
		t.Fatalf("err = %v; want ErrHasAttachments", err)
	}
}

func TestFilter_StoredSuccessExcluded(t *testing.T) {
	f, s := newTestFilter(t)
	ctx := context.Background()

	if err := s.Put(ctx, "1", domain.ResponseState{Successful: true}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	_, err := f.Parse(ctx, platform.RawMessage{ID: "1", Text: textWithLinks(1)})
	if !errors.Is(err, ErrAlreadyResponded) {
		t.Fatalf("err = %v; want ErrAlreadyResponded", err)
	}
}

func TestFilter_RetryBoundary(t *testing.T) {
	f, s := newTestFilter(t)
	ctx := context.Background()

	// Strictly above the cap: excluded.
	if err := s.Put(ctx, "over", domain.ResponseState{FailedAttempts: 4}); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	_, err := f.Parse(ctx, platform.RawMessage{ID: "over", Text: textWithLinks(1)})
	if !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("over cap: err = %v; want ErrAttemptsExhausted", err)
	}

	// Exactly at the cap: still eligible, count carried forward.
	if err := s.Put(ctx, "at", domain.ResponseState{FailedAttempts: 3}); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	msg, err := f.Parse(ctx, platform.RawMessage{ID: "at", Text: textWithLinks(1)})
	if err != nil {
		t.Fatalf("at cap: err = %v; want eligible", err)
	}
	if msg.FailedAttempts != 3 {
		t.Fatalf("FailedAttempts = %d; want carried 3", msg.FailedAttempts)
	}
}

func TestFilter_AccountFilterOnly(t *testing.T) {
	f, _ := newTestFilter(t)
	f.AccountFilterID = "42"
	f.AccountFilterMode = config.AccountFilterOnly
	ctx := context.Background()

	if _, err := f.Parse(ctx, platform.RawMessage{ID: "1", AuthorID: "42", Text: textWithLinks(1)}); err != nil {
		t.Fatalf("configured account: err = %v; want eligible", err)
	}
	_, err := f.Parse(ctx, platform.RawMessage{ID: "2", AuthorID: "7", Text: textWithLinks(1)})
	if !errors.Is(err, ErrAccountFiltered) {
		t.Fatalf("other account: err = %v; want ErrAccountFiltered", err)
	}
}

func TestFilter_AccountFilterExclude(t *testing.T) {
	f, _ := newTestFilter(t)
	f.AccountFilterID = "42"
	f.AccountFilterMode = config.AccountFilterExclude
	ctx := context.Background()

	_, err := f.Parse(ctx, platform.RawMessage{ID: "1", AuthorID: "42", Text: textWithLinks(1)})
	if !errors.Is(err, ErrAccountFiltered) {
		t.Fatalf("configured account: err = %v; want ErrAccountFiltered", err)
	}
	if _, err := f.Parse(ctx, platform.RawMessage{ID: "2", AuthorID: "7", Text: textWithLinks(1)}); err != nil {
		t.Fatalf("other account: err = %v; want eligible", err)
	}
}

func TestFilter_EligibleMessageShape(t *testing.T) {
	f, _ := newTestFilter(t)

	raw := platform.RawMessage{ID: "1598939876194541570", AuthorID: "9", Text: textWithLinks(2)}
	msg, err := f.Parse(context.Background(), raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(msg.Items) != 2 {
		t.Fatalf("items = %d; want 2", len(msg.Items))
	}
	for _, it := range msg.Items {
		if it.State != domain.ItemPending {
			t.Fatalf("fresh item state = %v; want pending", it.State)
		}
	}
	if msg.FailedAttempts != 0 {
		t.Fatalf("FailedAttempts = %d; want 0 with no prior record", msg.FailedAttempts)
	}
	if msg.ID() != raw.ID || msg.AuthorID() != raw.AuthorID {
		t.Fatalf("message identity mismatch: %q/%q", msg.ID(), msg.AuthorID())
	}
}

func TestFilter_Idempotent(t *testing.T) {
	f, _ := newTestFilter(t)
	ctx := context.Background()
	raw := platform.RawMessage{ID: "1", Text: textWithLinks(1)}

	first, err1 := f.Parse(ctx, raw)
	second, err2 := f.Parse(ctx, raw)
	if err1 != nil || err2 != nil {
		t.Fatalf("errs = %v / %v; want both eligible", err1, err2)
	}
	if len(first.Items) != len(second.Items) || first.FailedAttempts != second.FailedAttempts {
		t.Fatalf("filter not idempotent: %+v vs %+v", first, second)
	}
}
