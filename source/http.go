package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"runtime/debug"
	"time"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/agentuity/go-catalog/catalog"
	"github.com/agentuity/go-catalog/logger"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

// MaxResponseBytes bounds the payload read from the remote API.
const MaxResponseBytes = 16 << 20

// DefaultTimeout applies when no client is supplied.
const DefaultTimeout = 10 * time.Second

// ResponseError is a non-2xx answer from the remote API.
type ResponseError struct {
	URL    string
	Status int
	Body   string
}

func (e *ResponseError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("GET %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("GET %s: status %d: %s", e.URL, e.Status, e.Body)
}

// HTTP fetches collections from the remote catalog API.
type HTTP struct {
	base      *url.URL
	token     string
	userAgent string
	client    *http.Client
	logger    logger.Logger
}

var _ catalog.Source = (*HTTP)(nil)

// HTTPOption configures the HTTP source.
type HTTPOption func(*HTTP)

// WithToken sends token as a bearer credential.
func WithToken(token string) HTTPOption {
	return func(h *HTTP) { h.token = token }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(h *HTTP) { h.userAgent = ua }
}

// WithClient sets the http client. Timeouts are the client's concern.
func WithClient(c *http.Client) HTTPOption {
	return func(h *HTTP) { h.client = c }
}

func WithHTTPLogger(log logger.Logger) HTTPOption {
	return func(h *HTTP) { h.logger = log }
}

// UserAgent is the default User-Agent header, stamped with the VCS revision
// when the binary carries build info.
func UserAgent() string {
	sha := Commit
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				sha = setting.Value
			}
		}
	}
	return "Catalog Client/" + Version + " (" + sha + ")"
}

// NewHTTP returns a source requesting GET <baseURL>/<kind>/<param>...?lang=<code>.
func NewHTTP(baseURL string, opts ...HTTPOption) (*HTTP, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "error parsing base url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Newf("base url %q must be http or https", baseURL)
	}
	h := &HTTP{
		base:      u,
		userAgent: UserAgent(),
		client:    &http.Client{Timeout: DefaultTimeout},
		logger:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *HTTP) endpoint(d catalog.Descriptor) string {
	u := *h.base
	segments := []string{"/", u.Path, string(d.Kind)}
	escaped := []string{"/", u.EscapedPath(), url.PathEscape(string(d.Kind))}
	for _, p := range d.Params {
		segments = append(segments, p)
		escaped = append(escaped, url.PathEscape(p))
	}
	u.Path = path.Join(segments...)
	u.RawPath = path.Join(escaped...)
	q := u.Query()
	if d.Language != "" {
		q.Set("lang", d.Language)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Fetch issues a single request. Retrying is left to the dispatcher.
func (h *HTTP) Fetch(ctx context.Context, d catalog.Descriptor) ([]byte, error) {
	endpoint := h.endpoint(d)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "error creating request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", h.userAgent)
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	h.logger.Trace("sending request: GET %s", endpoint)
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "error sending request to %s", endpoint)
	}
	defer resp.Body.Close()
	h.logger.Debug("response status: %s", resp.Status)

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes))
	if err != nil {
		return nil, errors.Wrap(err, "error reading response body")
	}
	if resp.StatusCode > 299 {
		// Every non-2xx counts against the API, so expired tokens and
		// missing routes fall through to the next source.
		return nil, &ResponseError{URL: endpoint, Status: resp.StatusCode, Body: preview(body, 200)}
	}
	return body, nil
}

func preview(body []byte, max int) string {
	if len(body) > max {
		return string(body[:max]) + fmt.Sprintf("[truncated, total: %d bytes]", len(body))
	}
	return string(body)
}
