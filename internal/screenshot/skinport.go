// Package screenshot obtains rendered item images from the Skinport
// screenshot service and fans out concurrent render requests for a
// message's items.
//
// The service speaks plain HTTP: one GET per inspect link, with redirects
// handled manually. A 308 response asks the client to resend the request to
// a normalized URL; the final response redirects to the image itself, and
// that Location is the result. Rendering can take tens of seconds, so the
// per-request timeout is generous.
package screenshot

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/hexiro/csinspect/internal/domain"
)

const (
	// DefaultBaseURL is the Skinport direct-screenshot endpoint.
	DefaultBaseURL = "https://screenshot.skinport.com/direct"

	userAgent = "csinspect/1.0 (+https://github.com/hexiro/csinspect)"
)

var (
	renders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csinspect_renders_total",
			Help: "Total render requests by result.",
		},
		[]string{"result"},
	)

	renderDur = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "csinspect_render_duration_seconds",
			Help: "Duration of render requests in seconds.",
			// Rendering regularly takes tens of seconds.
			Buckets: []float64{1, 5, 10, 20, 30, 60, 120, 300},
		},
	)
)

func init() {
	prometheus.MustRegister(renders, renderDur)
}

// Renderer produces an image URL for a single item. Implementations report
// success via the return value and record the outcome on the item itself.
type Renderer interface {
	Render(ctx context.Context, item *domain.Item) bool
}

// SkinportClient renders items through the Skinport screenshot service.
type SkinportClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewSkinportClient builds a client with the given per-request timeout.
func NewSkinportClient(timeout time.Duration) *SkinportClient {
	return &SkinportClient{
		httpClient: &http.Client{
			Timeout: timeout,
			// Redirects carry the payload here (the image URL is a
			// Location header), so they must not be followed.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL: DefaultBaseURL,
	}
}

// Render implements Renderer. Any transport or protocol failure is logged
// and mapped to false; it never aborts sibling renders.
func (c *SkinportClient) Render(ctx context.Context, item *domain.Item) bool {
	item.MarkInProgress()
	start := time.Now()

	imageURL, err := c.fetchImageURL(ctx, item.UnquotedInspectLink())
	renderDur.Observe(time.Since(start).Seconds())

	if err != nil {
		log.Error().Err(err).Str("inspect_link", item.InspectLink).Msg("screenshot failed")
		renders.WithLabelValues("error").Inc()
		item.MarkFailed()
		return false
	}
	if imageURL == "" {
		log.Warn().Str("inspect_link", item.InspectLink).Msg("screenshot yielded no image")
		renders.WithLabelValues("failure").Inc()
		item.MarkFailed()
		return false
	}

	log.Debug().Str("inspect_link", item.InspectLink).Str("image_url", imageURL).Msg("screenshot complete")
	renders.WithLabelValues("success").Inc()
	item.MarkFinished(imageURL)
	return true
}

// fetchImageURL performs the GET (+ optional 308 follow-up) and returns the
// image URL from the final redirect's Location, or "" when the service did
// not produce one.
func (c *SkinportClient) fetchImageURL(ctx context.Context, inspectLink string) (string, error) {
	target := c.baseURL + "?link=" + url.QueryEscape(inspectLink)

	resp, err := c.get(ctx, target)
	if err != nil {
		return "", err
	}
	closeBody(resp)

	// 308: the service normalized the inspect link and wants the request
	// resent against the suggested URL.
	if resp.StatusCode == http.StatusPermanentRedirect {
		next, rerr := resolveLocation(resp)
		if rerr != nil || next == "" {
			return "", rerr
		}
		log.Debug().Str("url", next).Msg("screenshot redirect follow-up")
		resp, err = c.get(ctx, next)
		if err != nil {
			return "", err
		}
		closeBody(resp)
	}

	loc, err := resolveLocation(resp)
	if err != nil {
		return "", err
	}
	return loc, nil
}

func (c *SkinportClient) get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	return c.httpClient.Do(req)
}

// resolveLocation returns the absolute Location of a redirect response, or
// "" when the response is not a redirect or carries no Location.
func resolveLocation(resp *http.Response) (string, error) {
	if resp.StatusCode < 300 || resp.StatusCode > 399 {
		return "", nil
	}
	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", nil
	}
	abs, err := resp.Request.URL.Parse(loc)
	if err != nil {
		return "", err
	}
	return abs.String(), nil
}

func closeBody(resp *http.Response) {
	if resp.Body != nil {
		resp.Body.Close()
	}
}
