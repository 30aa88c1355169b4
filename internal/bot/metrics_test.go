package bot

import (
	"errors"
	"fmt"
	"testing"
)

func TestSkipReason(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{ErrNoInspectLinks, "no_links"},
		{ErrHasAttachments, "has_attachments"},
		{ErrAccountFiltered, "account_filtered"},
		{ErrAlreadyResponded, "already_responded"},
		{ErrAttemptsExhausted, "attempts_exhausted"},
		{errors.New("store timeout"), "other"},
	}
	for _, tc := range cases {
		if got := skipReason(tc.err); got != tc.want {
			t.Fatalf("skipReason(%v) = %q; want %q", tc.err, got, tc.want)
		}
	}
}

func TestSkipReason_WrappedSentinel(t *testing.T) {
	wrapped := fmt.Errorf("filtering message: %w", ErrAlreadyResponded)
	if got := skipReason(wrapped); got != "already_responded" {
		t.Fatalf("skipReason(wrapped) = %q; want already_responded", got)
	}
}
