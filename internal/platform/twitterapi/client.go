// Package twitterapi implements the platform contracts against the Twitter
// API: v2 recent search and filtered stream under app-context bearer auth,
// v2 tweet creation under OAuth1a user context, and the v1.1 multipart
// media upload endpoint (media upload never shipped in v2).
package twitterapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/dghubble/oauth1"
	twitter "github.com/g8rswimmer/go-twitter/v2"
	"github.com/rs/zerolog/log"

	"github.com/hexiro/csinspect/internal/config"
	"github.com/hexiro/csinspect/internal/platform"
)

const (
	apiHost        = "https://api.twitter.com"
	mediaUploadURL = "https://upload.twitter.com/1.1/media/upload.json"

	streamRuleTag = "inspect-links"
)

// bearerAuthorizer injects the app bearer token.
type bearerAuthorizer struct {
	token string
}

func (a bearerAuthorizer) Add(req *http.Request) {
	req.Header.Add("Authorization", "Bearer "+a.token)
}

// noopAuthorizer is used with an OAuth1-signing http.Client, which already
// authorizes every request at the transport level.
type noopAuthorizer struct{}

func (noopAuthorizer) Add(*http.Request) {}

// Client implements platform.Client over the Twitter API.
type Client struct {
	app  *twitter.Client // bearer: search, stream, rules
	user *twitter.Client // oauth1: create tweet
	// oauthHTTP signs v1.1 media uploads.
	oauthHTTP *http.Client
	uploadURL string
}

var _ platform.Client = (*Client)(nil)

// New builds a Client from credentials. The OAuth1 pair may be empty in
// dry-run deployments; posting then fails, but posting never happens.
func New(cfg config.TwitterConfig) *Client {
	oauthCfg := oauth1.NewConfig(cfg.APIKey, cfg.APIKeySecret)
	token := oauth1.NewToken(cfg.AccessToken, cfg.AccessTokenSecret)
	oauthHTTP := oauthCfg.Client(oauth1.NoContext, token)
	oauthHTTP.Timeout = 60 * time.Second

	return &Client{
		app: &twitter.Client{
			Authorizer: bearerAuthorizer{token: cfg.BearerToken},
			Client:     &http.Client{Timeout: 30 * time.Second},
			Host:       apiHost,
		},
		user: &twitter.Client{
			Authorizer: noopAuthorizer{},
			Client:     oauthHTTP,
			Host:       apiHost,
		},
		oauthHTTP: oauthHTTP,
		uploadURL: mediaUploadURL,
	}
}

// tweetFields are requested on every search/stream call so the filter can
// see authorship and existing media.
var tweetFields = []twitter.TweetField{
	twitter.TweetFieldAuthorID,
	twitter.TweetFieldAttachments,
}

// SearchRecent implements platform.Searcher.
func (c *Client) SearchRecent(ctx context.Context, query string, limit int) ([]platform.RawMessage, error) {
	resp, err := c.app.TweetRecentSearch(ctx, query, twitter.TweetRecentSearchOpts{
		MaxResults:  limit,
		TweetFields: tweetFields,
	})
	if err != nil {
		return nil, fmt.Errorf("recent search: %w", err)
	}
	if resp.Raw == nil {
		return nil, nil
	}

	out := make([]platform.RawMessage, 0, len(resp.Raw.Tweets))
	for _, tw := range resp.Raw.Tweets {
		if tw == nil {
			continue
		}
		out = append(out, rawFromTweet(tw))
	}
	return out, nil
}

// Stream implements platform.Streamer. It reconciles the server-side rules
// before connecting, so every (re)subscription is filtered.
func (c *Client) Stream(ctx context.Context, rules []string, fn func(platform.RawMessage)) error {
	if err := c.ensureRules(ctx, rules); err != nil {
		return fmt.Errorf("asserting stream rules: %w", err)
	}

	stream, err := c.app.TweetSearchStream(ctx, twitter.TweetSearchStreamOpts{
		TweetFields: tweetFields,
	})
	if err != nil {
		return fmt.Errorf("opening stream: %w", err)
	}
	defer stream.Close()

	log.Debug().Msg("filtered stream connected")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-stream.Tweets():
			if !ok {
				return errors.New("stream tweet channel closed")
			}
			if msg == nil || msg.Raw == nil {
				continue
			}
			for _, tw := range msg.Raw.Tweets {
				if tw == nil {
					continue
				}
				fn(rawFromTweet(tw))
			}

		case streamErr, ok := <-stream.Err():
			if !ok {
				return errors.New("stream error channel closed")
			}
			log.Warn().Err(streamErr).Msg("stream error")
			if !stream.Connection() {
				return fmt.Errorf("stream disconnected: %w", streamErr)
			}

		case sys, ok := <-stream.SystemMessages():
			if !ok {
				return errors.New("stream system channel closed")
			}
			log.Debug().Interface("system", sys).Msg("stream system message")
		}
	}
}

// ensureRules adds any wanted rule values missing server-side. Rules set by
// other deployments are left alone.
func (c *Client) ensureRules(ctx context.Context, wanted []string) error {
	existing, err := c.app.TweetSearchStreamRules(ctx, nil)
	if err != nil {
		return err
	}

	have := make(map[string]bool)
	if existing != nil {
		for _, rule := range existing.Rules {
			if rule != nil {
				have[rule.Value] = true
			}
		}
	}

	var missing []twitter.TweetSearchStreamRule
	for _, value := range wanted {
		if !have[value] {
			missing = append(missing, twitter.TweetSearchStreamRule{Value: value, Tag: streamRuleTag})
		}
	}
	if len(missing) == 0 {
		return nil
	}

	_, err = c.app.TweetSearchStreamAddRule(ctx, missing, false)
	return err
}

// PostReply implements platform.Replier.
func (c *Client) PostReply(ctx context.Context, inReplyTo string, mediaIDs []string) error {
	req := twitter.CreateTweetRequest{
		Reply: &twitter.CreateTweetReply{InReplyToTweetID: inReplyTo},
	}
	if len(mediaIDs) > 0 {
		req.Media = &twitter.CreateTweetMedia{IDs: mediaIDs}
	}
	_, err := c.user.CreateTweet(ctx, req)
	if err != nil {
		return fmt.Errorf("create tweet: %w", err)
	}
	return nil
}

// UploadMedia implements platform.Replier via the v1.1 endpoint.
func (c *Client) UploadMedia(ctx context.Context, data []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormField("media")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.oauthHTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("media upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("media upload status %d: %s", resp.StatusCode, payload)
	}

	var parsed struct {
		MediaIDString string `json:"media_id_string"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding media upload response: %w", err)
	}
	if parsed.MediaIDString == "" {
		return "", errors.New("media upload response missing media id")
	}
	return parsed.MediaIDString, nil
}

func rawFromTweet(tw *twitter.TweetObj) platform.RawMessage {
	hasAttachments := tw.Attachments != nil && len(tw.Attachments.MediaKeys) > 0
	return platform.RawMessage{
		ID:             tw.ID,
		AuthorID:       tw.AuthorID,
		Text:           tw.Text,
		HasAttachments: hasAttachments,
	}
}
