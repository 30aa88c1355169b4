// Package platform defines the narrow contracts the bot consumes from the
// social platform: recent-message search, the filtered realtime stream, and
// reply posting with media upload. Concrete adapters live in subpackages;
// the rest of the application depends only on these interfaces so tests can
// substitute fakes.
package platform

import "context"

// RawMessage is the platform-agnostic projection of an incoming message.
// It carries exactly the fields the pipeline needs: identity, author, text,
// and whether the platform already attached media to it.
type RawMessage struct {
	ID             string
	AuthorID       string
	Text           string
	HasAttachments bool
}

// Searcher issues one bounded query against the platform's recent-message
// search endpoint.
type Searcher interface {
	// SearchRecent returns up to limit recent messages matching query.
	SearchRecent(ctx context.Context, query string, limit int) ([]RawMessage, error)
}

// Streamer maintains a filtered realtime subscription.
type Streamer interface {
	// Stream blocks, invoking fn once per incoming message. The given rules
	// are (re)asserted server-side before the subscription starts, so a
	// reconnect never runs unfiltered. Stream returns when ctx is done or
	// the underlying connection fails; callers are expected to re-invoke it
	// with backoff.
	Stream(ctx context.Context, rules []string, fn func(RawMessage)) error
}

// Replier posts reply messages with previously uploaded media attachments.
type Replier interface {
	// UploadMedia uploads one image and returns its platform media id.
	UploadMedia(ctx context.Context, data []byte) (string, error)

	// PostReply creates a reply to the given message carrying the media ids.
	PostReply(ctx context.Context, inReplyTo string, mediaIDs []string) error
}

// Client bundles the three capabilities the orchestrator needs.
type Client interface {
	Searcher
	Streamer
	Replier
}
