// Package domain defines the core entities of the bot: items extracted from
// messages, the messages themselves, and the persisted response state. These
// types carry no I/O; they are produced by the filter, mutated by the
// screenshot coordinator, and persisted by the store.
package domain

import "strings"

// ItemState tracks the rendering lifecycle of a single item.
type ItemState int

const (
	// ItemPending is the initial state of a freshly extracted item.
	ItemPending ItemState = iota
	// ItemInProgress marks an item whose render request is in flight.
	ItemInProgress
	// ItemFinished marks an item with a usable image URL.
	ItemFinished
	// ItemFailed marks an item whose render attempt failed.
	ItemFailed
)

// String returns a human-readable state name for logging.
func (s ItemState) String() string {
	switch s {
	case ItemPending:
		return "pending"
	case ItemInProgress:
		return "in_progress"
	case ItemFinished:
		return "finished"
	case ItemFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Item is one virtual-item reference extracted from a message. It is owned
// by exactly one Message and mutated only by the screenshot coordinator.
type Item struct {
	// InspectLink is the raw deep-link token as it appeared in the message
	// text, with the space between game command and parameters still
	// percent-encoded.
	InspectLink string

	// ImageURL is the rendered screenshot URL; empty until the render
	// finishes successfully.
	ImageURL string

	// State is the rendering lifecycle state.
	State ItemState
}

// NewItem constructs a pending item for the given inspect link.
func NewItem(inspectLink string) *Item {
	return &Item{InspectLink: inspectLink, State: ItemPending}
}

// UnquotedInspectLink returns the inspect link with the percent-encoded
// space decoded, the form the rendering service expects.
func (i *Item) UnquotedInspectLink() string {
	return strings.ReplaceAll(i.InspectLink, "%20", " ")
}

// MarkInProgress transitions the item to the in-flight state.
func (i *Item) MarkInProgress() { i.State = ItemInProgress }

// MarkFinished records a successful render.
func (i *Item) MarkFinished(imageURL string) {
	i.ImageURL = imageURL
	i.State = ItemFinished
}

// MarkFailed records a failed render attempt.
func (i *Item) MarkFailed() { i.State = ItemFailed }
