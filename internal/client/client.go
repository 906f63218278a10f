// Package client talks to the booking API over HTTP.  A Client is the
// store.Backend and store.Identity of an optimistic store running outside
// the server, and maps HTTP statuses back into the apperr taxonomy.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/room-booking/internal/apperr"
	"github.com/iliyamo/room-booking/internal/model"
)

// Client is safe for concurrent use.
type Client struct {
	base string
	http *http.Client

	mu     sync.RWMutex
	access string
}

// New returns a Client for the API rooted at baseURL.  hc may be nil.
func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: hc}
}

// SetAccessToken replaces the bearer token.  An empty token signs out.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	c.access = token
	c.mu.Unlock()
}

// AccessToken returns the current bearer token.
func (c *Client) AccessToken() string { return c.token() }

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.access
}

type session struct {
	User   model.Identity `json:"user"`
	Access struct {
		Token string `json:"token"`
	} `json:"access"`
}

// Login signs in with a password and keeps the access token.
func (c *Client) Login(ctx context.Context, email, password string) (model.Identity, error) {
	var s session
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/v1/auth/login", body, &s); err != nil {
		return model.Identity{}, err
	}
	c.SetAccessToken(s.Access.Token)
	return s.User, nil
}

// CurrentUser returns the signed-in user, or nil when there is no session
// or the server rejects it.
func (c *Client) CurrentUser(ctx context.Context) (*model.Identity, error) {
	if c.token() == "" {
		return nil, nil
	}
	var me struct {
		User model.Identity `json:"user"`
	}
	err := c.do(ctx, http.MethodGet, "/v1/me", nil, &me)
	if errors.Is(err, apperr.ErrAuth) && !errors.Is(err, apperr.ErrForbidden) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &me.User, nil
}

// ListBookings returns the room's bookings sorted by start_date.
func (c *Client) ListBookings(ctx context.Context, roomID string) ([]model.Booking, error) {
	var out struct {
		Items []model.Booking `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/rooms/"+url.PathEscape(roomID)+"/bookings", nil, &out); err != nil {
		return nil, err
	}
	if out.Items == nil {
		out.Items = []model.Booking{}
	}
	return out.Items, nil
}

// CreateBooking submits a draft.
func (c *Client) CreateBooking(ctx context.Context, d model.BookingDraft) (model.CreateResult, error) {
	var res model.CreateResult
	err := c.do(ctx, http.MethodPost, "/v1/bookings", d, &res)
	return res, err
}

// CancelBooking cancels a booking and returns it as stored.
func (c *Client) CancelBooking(ctx context.Context, bookingID string) (model.Booking, error) {
	var b model.Booking
	err := c.do(ctx, http.MethodDelete, "/v1/bookings/"+url.PathEscape(bookingID), nil, &b)
	return b, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		bs, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(bs)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Deadlines stay recognizable so callers can report a timeout.
		if ctx.Err() != nil {
			return fmt.Errorf("%s %s: %w", method, path, ctx.Err())
		}
		return fmt.Errorf("%w: %v", apperr.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", apperr.ErrFetch, err)
	}
	return nil
}

// statusError maps a non-2xx answer to its sentinel, keeping the server's
// message.
func statusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)
	msg := body.Error
	if msg == "" {
		msg = resp.Status
	}

	var kind error
	switch resp.StatusCode {
	case http.StatusBadRequest:
		kind = apperr.ErrValidation
	case http.StatusUnauthorized:
		kind = apperr.ErrAuth
	case http.StatusForbidden:
		kind = apperr.ErrForbidden
	case http.StatusNotFound:
		kind = apperr.ErrNotFound
	case http.StatusConflict:
		kind = apperr.ErrConflict
	case http.StatusUnprocessableEntity:
		kind = apperr.ErrReference
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		kind = apperr.ErrTimeout
	default:
		kind = apperr.ErrFetch
	}
	if msg == kind.Error() {
		return kind
	}
	return fmt.Errorf("%w: %s", kind, msg)
}
