package bot

import (
	"context"
	"regexp"

	"github.com/rs/zerolog/log"

	"github.com/hexiro/csinspect/internal/config"
	"github.com/hexiro/csinspect/internal/domain"
	"github.com/hexiro/csinspect/internal/platform"
	"github.com/hexiro/csinspect/internal/store"
)

// InspectLinkQuery is the platform search query matching messages that
// contain inspect links. Retweets are excluded so a widely shared link is
// answered once, on the original message.
const InspectLinkQuery = `"steam://rungame/730" "+csgo_econ_action_preview" -is:retweet`

// inspectLinkRE matches one inspect link: the preview deep link followed by
// either an S (steam id) or M (market listing) component, then the A and D
// components.
var inspectLinkRE = regexp.MustCompile(
	`(steam:\/\/rungame\/730\/[0-9]+\/\+csgo_econ_action_preview%20)(?:(?P<S>S[0-9]+)|(?P<M>M[0-9]+))(?P<A>A[0-9]+)(?P<D>D[0-9]+)`,
)

// ExtractInspectLinks returns up to max inspect links from text, in order.
func ExtractInspectLinks(text string, max int) []string {
	matches := inspectLinkRE.FindAllString(text, -1)
	if len(matches) > max {
		matches = matches[:max]
	}
	return matches
}

// Filter decides which raw messages enter the processing pipeline. It has
// no side effects beyond reading the store.
type Filter struct {
	// Store holds prior response state keyed by message id.
	Store store.Store

	// MaxImages bounds the number of items extracted per message.
	MaxImages int

	// MaxFailedAttempts is the retry cap. A message whose stored count
	// exceeds the cap is permanently excluded; exactly at the cap it
	// remains eligible.
	MaxFailedAttempts int

	// AccountFilterID, when set, restricts processing by author: with mode
	// "only" just this account's messages pass, with mode "exclude"
	// everything but this account's messages pass.
	AccountFilterID   string
	AccountFilterMode string
}

// Parse extracts items from a raw message and applies the eligibility
// rules. It returns one of the package's skip sentinels when the message
// is excluded; any other error is a store read failure and the message
// should be retried on its next natural rediscovery.
func (f *Filter) Parse(ctx context.Context, raw platform.RawMessage) (*domain.Message, error) {
	links := ExtractInspectLinks(raw.Text, f.MaxImages)
	if len(links) == 0 {
		return nil, ErrNoInspectLinks
	}

	// Native media usually means the platform (or the author) already
	// rendered the item.
	if raw.HasAttachments {
		return nil, ErrHasAttachments
	}

	if f.AccountFilterID != "" {
		matches := raw.AuthorID == f.AccountFilterID
		if f.AccountFilterMode == config.AccountFilterExclude {
			if matches {
				return nil, ErrAccountFiltered
			}
		} else if !matches {
			return nil, ErrAccountFiltered
		}
	}

	st, found, err := f.Store.Get(ctx, raw.ID)
	if err != nil {
		return nil, err
	}
	if found {
		if st.Successful {
			return nil, ErrAlreadyResponded
		}
		if st.FailedAttempts > f.MaxFailedAttempts {
			return nil, ErrAttemptsExhausted
		}
	}

	items := make([]*domain.Item, 0, len(links))
	for _, link := range links {
		items = append(items, domain.NewItem(link))
	}

	msg := domain.NewMessage(raw, items)
	msg.FailedAttempts = st.FailedAttempts

	log.Debug().
		Str("message_id", raw.ID).
		Int("items", len(items)).
		Int("failed_attempts", msg.FailedAttempts).
		Msg("message eligible")
	return msg, nil
}
