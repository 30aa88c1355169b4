package bot

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline counters. Label cardinality is fixed and small: discovery source
// (search|stream), skip reason, and processing outcome.
var (
	messagesDiscovered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csinspect_messages_discovered_total",
			Help: "Raw messages seen by the pipeline, by discovery source.",
		},
		[]string{"source"},
	)

	messagesSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csinspect_messages_skipped_total",
			Help: "Messages excluded by the filter, by reason.",
		},
		[]string{"reason"},
	)

	messagesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csinspect_messages_processed_total",
			Help: "Per-message processing outcomes.",
		},
		[]string{"outcome"},
	)

	repliesPosted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csinspect_replies_total",
			Help: "Reply post attempts, by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(messagesDiscovered, messagesSkipped, messagesProcessed, repliesPosted)
}

// skipReason maps a filter sentinel to a bounded metric label.
func skipReason(err error) string {
	switch {
	case errors.Is(err, ErrNoInspectLinks):
		return "no_links"
	case errors.Is(err, ErrHasAttachments):
		return "has_attachments"
	case errors.Is(err, ErrAccountFiltered):
		return "account_filtered"
	case errors.Is(err, ErrAlreadyResponded):
		return "already_responded"
	case errors.Is(err, ErrAttemptsExhausted):
		return "attempts_exhausted"
	default:
		return "other"
	}
}
