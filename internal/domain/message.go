package domain

import (
	"time"

	"github.com/hexiro/csinspect/internal/platform"
)

// Message is an eligible platform message together with the items extracted
// from its text. It composes the raw platform message rather than extending
// a platform type; the pipeline only ever touches the capability set
// {id, author, text, url} plus the domain fields below.
type Message struct {
	// Raw is the platform message this Message was built from.
	Raw platform.RawMessage

	// Items are the extracted item references, in text order, bounded by
	// the configured image cap. A Message never exists with zero items.
	Items []*Item

	// FailedAttempts is the prior failed-attempt count loaded from the
	// store (zero when the message was never attempted).
	FailedAttempts int
}

// NewMessage binds extracted items to their raw message.
func NewMessage(raw platform.RawMessage, items []*Item) *Message {
	return &Message{Raw: raw, Items: items}
}

// ID returns the platform message id.
func (m *Message) ID() string { return m.Raw.ID }

// AuthorID returns the platform author id.
func (m *Message) AuthorID() string { return m.Raw.AuthorID }

// URL returns the canonical web URL of the message.
func (m *Message) URL() string {
	return "https://twitter.com/i/web/status/" + m.Raw.ID
}

// FinishedItems returns the items that rendered successfully, in order.
func (m *Message) FinishedItems() []*Item {
	out := make([]*Item, 0, len(m.Items))
	for _, it := range m.Items {
		if it.State == ItemFinished && it.ImageURL != "" {
			out = append(out, it)
		}
	}
	return out
}

// ResponseState is the persisted outcome record for one message, keyed by
// message id in the store. Absence of a record means "never attempted".
type ResponseState struct {
	// Successful reports whether a reply was posted. Once true the message
	// is never processed again.
	Successful bool

	// FailedAttempts counts prior failed processing attempts.
	FailedAttempts int

	// Time is the moment of the last write.
	Time time.Time
}
