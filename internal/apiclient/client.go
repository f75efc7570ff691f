// Package apiclient talks to the stepwise REST API. Its sub-clients satisfy
// the wizard controller's collaborator interfaces.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ganot/stepwise/internal/api"
	domain "github.com/ganot/stepwise/internal/domain/wizard"
	"github.com/ganot/stepwise/internal/wizard"
)

const (
	defaultTimeout  = 15 * time.Second
	maxResponseSize = 1 << 20
)

// Client is a REST client for one server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	timeout time.Duration
	catalog domain.Catalog

	Progress    *ProgressClient
	Suggestions *SuggestionClient
	Quotas      *QuotaClient
	Submissions *SubmissionClient
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout. A client given with
// WithHTTPClient is copied, not changed.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithCatalog sets the wizard definitions used to decode drafts.
func WithCatalog(catalog domain.Catalog) Option {
	return func(c *Client) { c.catalog = catalog }
}

// New creates a client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		catalog: domain.DefaultCatalog(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: defaultTimeout}
	}
	if c.timeout > 0 {
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}
	c.Progress = &ProgressClient{c: c}
	c.Suggestions = &SuggestionClient{c: c}
	c.Quotas = &QuotaClient{c: c}
	c.Submissions = &SubmissionClient{c: c}
	return c
}

// Definition returns the server's description of a wizard as JSON.
func (c *Client) Definition(ctx context.Context, tenantID, wizardID string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, "load wizard definition", http.MethodGet, api.DefinitionPath(tenantID, wizardID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ActivityEntries lists recent activity for the tenant as JSON.
func (c *Client) ActivityEntries(ctx context.Context, tenantID string, limit int) (json.RawMessage, error) {
	var out struct {
		Entries json.RawMessage `json:"entries"`
	}
	path := fmt.Sprintf("%s?limit=%d", api.ActivityPath(tenantID), limit)
	if err := c.do(ctx, "load activity", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// do sends one request and maps failures to the wizard error taxonomy.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encoding request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: building request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &wizard.TransientError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &wizard.TransientError{Op: op, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%s: decoding response: %w", op, err)
		}
		return nil
	}
	return responseError(op, resp.StatusCode, data)
}

func responseError(op string, status int, data []byte) error {
	var envelope api.ErrorResponse
	_ = json.Unmarshal(data, &envelope)
	body := envelope.Error

	switch {
	case status == http.StatusTooManyRequests && body.Code == api.CodeQuotaExceeded:
		return fmt.Errorf("%s: %w", op, wizard.ErrQuotaExceeded)
	case status == http.StatusNotFound && body.Code == api.CodeNotFound:
		return fmt.Errorf("%s: %w", op, wizard.ErrNotFound)
	case status == http.StatusTooManyRequests,
		status == http.StatusRequestTimeout,
		status >= http.StatusInternalServerError:
		msg := body.Message
		if msg == "" {
			msg = http.StatusText(status)
		}
		return &wizard.TransientError{Op: op, Err: fmt.Errorf("status %d: %s", status, msg)}
	default:
		return &wizard.RejectionError{
			Op:      op,
			Status:  status,
			Code:    body.Code,
			Message: body.Message,
			Details: body.Details,
		}
	}
}

func (c *Client) definition(wizardID string) (*domain.Definition, error) {
	def, err := c.catalog.Get(wizardID)
	if err != nil {
		return nil, err
	}
	return def, nil
}

// IsNotFound reports whether err means no saved progress.
func IsNotFound(err error) bool {
	return errors.Is(err, wizard.ErrNotFound)
}
