// Package api is the client side of the remote study API: it attaches the
// bearer token, applies timeouts and cancellation, validates response shapes and
// turns every failure into a *model.Error.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/studyassist/internal/i18n"
	"github.com/pavelanni/studyassist/internal/model"
)

const maxBodyBytes = 1 << 20

// TokenSource yields the current auth token; *model.AppState implements it.
type TokenSource interface {
	Token() string
}

// Client wraps an *http.Client bound to one API base URL.
type Client struct {
	baseURL     string
	http        *http.Client
	tokens      TokenSource
	schemas     *schemaSet
	listTimeout time.Duration
	// callTimeout bounds JSON calls that have no deadline of their own.
	callTimeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithListTimeout sets the deadline applied to listing fetches.
func WithListTimeout(d time.Duration) Option {
	return func(c *Client) { c.listTimeout = d }
}

// WithRequestTimeout sets the deadline of JSON calls other than listings.
// Uploads are bounded by their caller instead.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) { c.callTimeout = d }
}

// DefaultListTimeout bounds GET /courses and GET /lectures/{course}.
const DefaultListTimeout = 10 * time.Second

// DefaultRequestTimeout bounds login, course creation, study and exam calls.
const DefaultRequestTimeout = 60 * time.Second

// New creates a client for baseURL. tokens may be nil for unauthenticated use.
func New(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("API base URL is not configured")
	}
	schemas, err := loadSchemas()
	if err != nil {
		return nil, fmt.Errorf("load response schemas: %w", err)
	}
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        &http.Client{},
		tokens:      tokens,
		schemas:     schemas,
		listTimeout: DefaultListTimeout,
		callTimeout: DefaultRequestTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Request describes one outbound call.
type Request struct {
	Method string
	Path   string
	// Auth attaches the bearer token; a missing token fails before any I/O.
	Auth bool
	// JSON is encoded as the request body when non-nil.
	JSON any
	// Body and ContentType send a prebuilt body (multipart uploads).
	Body        []byte
	ContentType string
	// Timeout bounds this call only; zero means the caller's context decides.
	Timeout time.Duration
	// Schema names the response schema the success body must satisfy.
	Schema string
	// Fallback is the message ID used when the server supplies no message.
	Fallback string
	// MalformedMessage is the message ID used when the success body fails its schema.
	MalformedMessage string
}

type errorBody struct {
	Error  string          `json:"error"`
	Detail json.RawMessage `json:"detail"`
}

// Do performs req and decodes the response into out (which may be nil).
// Every returned error is a *model.Error.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	token := ""
	if req.Auth {
		if c.tokens != nil {
			token = c.tokens.Token()
		}
		if token == "" {
			return model.NewError(model.KindAuth, i18n.T(ctx, "TokenMissing"))
		}
	}

	callCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	body, contentType, err := encodeBody(req)
	if err != nil {
		return &model.Error{Kind: model.KindValidation, Message: i18n.T(ctx, req.fallback()), Err: err}
	}

	httpReq, err := http.NewRequestWithContext(callCtx, req.Method, c.baseURL+req.Path, body)
	if err != nil {
		return &model.Error{Kind: model.KindTransport, Message: i18n.T(ctx, req.fallback()), Err: err}
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("X-Request-ID", requestID)
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	log := slog.With("method", req.Method, "path", req.Path, "request_id", requestID)
	log.Debug("api request")
	start := time.Now()

	resp, err := c.http.Do(httpReq)
	if err != nil {
		nerr := c.transportError(ctx, callCtx, req, err)
		log.Warn("api request failed", "kind", nerr.Kind, "error", err)
		return nerr
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		nerr := c.transportError(ctx, callCtx, req, err)
		log.Warn("api response read failed", "kind", nerr.Kind, "error", err)
		return nerr
	}
	log.Debug("api response", "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		nerr := statusError(ctx, req, resp.StatusCode, raw)
		log.Warn("api error response", "status", resp.StatusCode, "kind", nerr.Kind, "message", nerr.Message)
		return nerr
	}

	if req.Schema != "" {
		if err := c.schemas.validate(req.Schema, raw); err != nil {
			log.Warn("api response failed schema", "schema", req.Schema, "error", err)
			return &model.Error{Kind: model.KindMalformedResponse, Message: i18n.T(ctx, req.malformed()), Status: resp.StatusCode, Err: err}
		}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &model.Error{Kind: model.KindMalformedResponse, Message: i18n.T(ctx, req.malformed()), Status: resp.StatusCode, Err: err}
	}
	return nil
}

func (r Request) fallback() string {
	if r.Fallback == "" {
		return "RequestFailed"
	}
	return r.Fallback
}

func (r Request) malformed() string {
	if r.MalformedMessage == "" {
		return "InvalidResponse"
	}
	return r.MalformedMessage
}

func encodeBody(req Request) (io.Reader, string, error) {
	switch {
	case req.Body != nil:
		return bytes.NewReader(req.Body), req.ContentType, nil
	case req.JSON != nil:
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, "", fmt.Errorf("encode request: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	default:
		return nil, "", nil
	}
}

// transportError classifies a failure that produced no HTTP status.
// callCtx is the per-call context; parent is the caller's.
func (c *Client) transportError(parent, callCtx context.Context, req Request, err error) *model.Error {
	switch {
	case errors.Is(parent.Err(), context.Canceled):
		return &model.Error{Kind: model.KindCancelled, Message: i18n.T(parent, "RequestCancelled"), Err: causeOr(parent, err)}
	case errors.Is(callCtx.Err(), context.DeadlineExceeded):
		return &model.Error{Kind: model.KindTimeout, Message: i18n.T(parent, "RequestTimedOut"), Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &model.Error{Kind: model.KindTimeout, Message: i18n.T(parent, "RequestTimedOut"), Err: err}
	}
	return &model.Error{Kind: model.KindTransport, Message: i18n.T(parent, "NetworkFailed"), Err: err}
}

func causeOr(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	return err
}

// statusError maps a non-2xx response. Server text wins over the fallback.
func statusError(ctx context.Context, req Request, status int, raw []byte) *model.Error {
	msg := serverMessage(raw)

	kind := model.KindServer
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = model.KindAuth
	case http.StatusInsufficientStorage:
		kind = model.KindResourceExhausted
		if msg == "" {
			msg = i18n.T(ctx, "ResourceExhausted")
		}
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		kind = model.KindTimeout
	}
	if msg == "" {
		msg = i18n.T(ctx, req.fallback())
	}
	return &model.Error{Kind: kind, Message: msg, Status: status}
}

func serverMessage(raw []byte) string {
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if body.Error != "" {
		return body.Error
	}
	var detail string
	if len(body.Detail) > 0 && json.Unmarshal(body.Detail, &detail) == nil {
		return detail
	}
	return ""
}
