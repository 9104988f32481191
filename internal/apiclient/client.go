// Package apiclient implements the record store contract against a remote
// REST API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/jonathan/lead-tracker/internal/session"
	"github.com/jonathan/lead-tracker/internal/store"
	"github.com/jonathan/lead-tracker/internal/types"
)

// DefaultRequestsPerSecond bounds outbound calls when Config leaves it unset.
const DefaultRequestsPerSecond = 10

// Config configures a Client.
type Config struct {
	BaseURL           string
	Session           session.Provider
	HTTPClient        *http.Client
	RequestsPerSecond float64
	Burst             int
	Logger            *slog.Logger
}

// Client talks to the remote application store.
type Client struct {
	base    *url.URL
	session session.Provider
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a Client for cfg.BaseURL.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("store base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse store base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("store base URL must be absolute: %q", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	sp := cfg.Session
	if sp == nil {
		sp = session.None
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = int(rps)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		base:    base,
		session: sp,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger,
	}, nil
}

// StatusError is a non-2xx response the client has no specific mapping for.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
}

// do sends one request and decodes a JSON response into out when out is
// non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	token, err := c.session.Token(ctx)
	if err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("failed to wait for rate limiter: %w", err)
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("store call",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &types.SessionError{Reason: fmt.Sprintf("store rejected credential (%d)", resp.StatusCode)}
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", store.ErrApplicationNotFound, path)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

type createResponse struct {
	ID string `json:"id"`
}

// CreateApplication creates the durable record and returns its id. The
// remote store answers a repeated create for the same source with the
// existing id.
func (c *Client) CreateApplication(ctx context.Context, in store.CreateApplicationInput) (string, error) {
	var resp createResponse
	if err := c.do(ctx, http.MethodPost, "/applications", in, &resp); err != nil {
		return "", fmt.Errorf("failed to create application for %s: %w", in.SourceID, err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("failed to create application for %s: empty id in response", in.SourceID)
	}
	return resp.ID, nil
}

// UpdateApplication sends a partial field set.
func (c *Client) UpdateApplication(ctx context.Context, applyingID string, fields store.Fields) error {
	if len(fields) == 0 {
		return nil
	}
	if err := c.do(ctx, http.MethodPatch, "/applications/"+url.PathEscape(applyingID), fields, nil); err != nil {
		return fmt.Errorf("failed to update application %s: %w", applyingID, err)
	}
	return nil
}

// ArchiveApplication archives an application.
func (c *Client) ArchiveApplication(ctx context.Context, applyingID string) error {
	if err := c.do(ctx, http.MethodPost, "/applications/"+url.PathEscape(applyingID)+"/archive", nil, nil); err != nil {
		return fmt.Errorf("failed to archive application %s: %w", applyingID, err)
	}
	return nil
}

// ListLeads loads active applications and pending clicks in parallel.
func (c *Client) ListLeads(ctx context.Context) ([]types.Lead, error) {
	var (
		apps   []application
		clicks []types.ClickEvent
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := c.do(gCtx, http.MethodGet, "/applications?archived=false", nil, &apps); err != nil {
			return fmt.Errorf("failed to list applications: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := c.do(gCtx, http.MethodGet, "/clicks?pending=true", nil, &clicks); err != nil {
			return fmt.Errorf("failed to list clicks: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	leads := make([]types.Lead, 0, len(apps)+len(clicks))
	seen := make(map[string]bool, len(apps))
	for _, a := range apps {
		l := a.lead()
		if l.IsArchived {
			continue
		}
		if l.ClickID != "" {
			seen[l.ClickID] = true
		}
		leads = append(leads, l)
	}
	for _, evt := range clicks {
		if seen[evt.ClickID] {
			continue
		}
		leads = append(leads, types.LeadFromClick(evt))
	}
	return leads, nil
}

var _ store.Backend = (*Client)(nil)
