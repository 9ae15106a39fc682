// Package backendclient talks to the messenger HTTP API and its realtime
// websocket feed on behalf of one signed-in identity.
package backendclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"messenger-service/internal/auth"
	"messenger-service/internal/messenger"
	"messenger-service/internal/models"
	"messenger-service/internal/session"
)

// ErrUnauthorized is returned when the API rejects the access token.
var ErrUnauthorized = errors.New("unauthorized")

// StatusError is an API error without a dedicated sentinel.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api status %d", e.Code)
	}
	return fmt.Sprintf("api status %d: %s", e.Code, e.Message)
}

const maxBodySize = 4 << 20

// Client implements messenger.Backend over the HTTP API.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	dialer  *websocket.Dialer
	logger  *zap.Logger

	mu    sync.RWMutex
	token string
}

var (
	_ messenger.Backend   = (*Client)(nil)
	_ session.AuthBackend = (*Client)(nil)
)

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New builds a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("unsupported scheme %q", u.Scheme)
	}
	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 10 * time.Second},
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("backendclient")
	return c, nil
}

// SetToken replaces the bearer token used for every later call.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize))
	if err != nil {
		return errors.Wrap(err, "read response")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return statusError(res.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrapf(err, "decode %s %s", method, path)
	}
	return nil
}

func statusError(code int, raw []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(raw, &payload)

	switch code {
	case http.StatusNotFound:
		return errors.WithMessage(messenger.ErrNotFound, payload.Error)
	case http.StatusConflict:
		return errors.WithMessage(messenger.ErrConflict, payload.Error)
	case http.StatusUnauthorized:
		return errors.WithMessage(ErrUnauthorized, payload.Error)
	default:
		return &StatusError{Code: code, Message: payload.Error}
	}
}

func (c *Client) SignUp(ctx context.Context, email, password string, displayName *string) (auth.Session, error) {
	var s auth.Session
	err := c.do(ctx, http.MethodPost, "/auth/signup", nil, map[string]any{
		"email":        email,
		"password":     password,
		"display_name": displayName,
	}, &s)
	return s, err
}

func (c *Client) SignIn(ctx context.Context, email, password string) (auth.Session, error) {
	var s auth.Session
	err := c.do(ctx, http.MethodPost, "/auth/signin", nil, map[string]any{
		"email":    email,
		"password": password,
	}, &s)
	return s, err
}

// Me returns the caller's profile.
func (c *Client) Me(ctx context.Context) (models.Profile, error) {
	var p models.Profile
	err := c.do(ctx, http.MethodGet, "/profiles/me", nil, nil, &p)
	return p, err
}

func (c *Client) UpdateProfile(ctx context.Context, update models.ProfileUpdate) (models.Profile, error) {
	var p models.Profile
	err := c.do(ctx, http.MethodPatch, "/profiles/me", nil, update, &p)
	return p, err
}

func (c *Client) ProfilesByIDs(ctx context.Context, userIDs []string) ([]models.Profile, error) {
	var resp struct {
		Profiles []models.Profile `json:"profiles"`
	}
	err := c.do(ctx, http.MethodGet, "/profiles", url.Values{"ids": {strings.Join(userIDs, ",")}}, nil, &resp)
	return resp.Profiles, err
}

func (c *Client) ProfileByEmail(ctx context.Context, email string) (models.Profile, error) {
	var p models.Profile
	err := c.do(ctx, http.MethodGet, "/profiles/lookup", url.Values{"email": {email}}, nil, &p)
	return p, err
}

func (c *Client) AcceptedFriendships(ctx context.Context, limit int) ([]models.Friendship, error) {
	var resp struct {
		Friendships []models.Friendship `json:"friendships"`
	}
	err := c.do(ctx, http.MethodGet, "/friendships", url.Values{"limit": {strconv.Itoa(limit)}}, nil, &resp)
	return resp.Friendships, err
}

func (c *Client) FindAcceptedFriendship(ctx context.Context, otherID string) (models.Friendship, error) {
	var f models.Friendship
	err := c.do(ctx, http.MethodGet, "/friendships/accepted/"+url.PathEscape(otherID), nil, nil, &f)
	return f, err
}

func (c *Client) InsertFriendship(ctx context.Context, addresseeID string, status models.FriendshipStatus) (models.Friendship, error) {
	var f models.Friendship
	err := c.do(ctx, http.MethodPost, "/friendships", nil, map[string]any{
		"addressee_id": addresseeID,
		"status":       status,
	}, &f)
	return f, err
}

func (c *Client) ParticipantRoomIDs(ctx context.Context) ([]string, error) {
	var resp struct {
		RoomIDs []string `json:"room_ids"`
	}
	err := c.do(ctx, http.MethodGet, "/participants/me", nil, nil, &resp)
	return resp.RoomIDs, err
}

func (c *Client) Rooms(ctx context.Context, roomIDs []string, limit int) ([]models.RoomDetails, error) {
	var resp struct {
		Rooms []models.RoomDetails `json:"rooms"`
	}
	q := url.Values{
		"ids":   {strings.Join(roomIDs, ",")},
		"limit": {strconv.Itoa(limit)},
	}
	err := c.do(ctx, http.MethodGet, "/rooms", q, nil, &resp)
	return resp.Rooms, err
}

func (c *Client) CreateRoom(ctx context.Context, room models.NewRoom) (models.Room, error) {
	var r models.Room
	err := c.do(ctx, http.MethodPost, "/rooms", nil, room, &r)
	return r, err
}

func (c *Client) TouchRoom(ctx context.Context, roomID string) error {
	return c.do(ctx, http.MethodPost, "/rooms/"+url.PathEscape(roomID)+"/touch", nil, nil, nil)
}

func (c *Client) LeaveRoom(ctx context.Context, roomID string) (models.LeaveResult, error) {
	var res models.LeaveResult
	err := c.do(ctx, http.MethodDelete, "/rooms/"+url.PathEscape(roomID)+"/participants/me", nil, nil, &res)
	return res, err
}

func (c *Client) ListMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	err := c.do(ctx, http.MethodGet, "/rooms/"+url.PathEscape(roomID)+"/messages", nil, nil, &resp)
	return resp.Messages, err
}

func (c *Client) InsertMessage(ctx context.Context, roomID string, msg models.NewMessage) (models.Message, error) {
	var m models.Message
	err := c.do(ctx, http.MethodPost, "/rooms/"+url.PathEscape(roomID)+"/messages", nil, msg, &m)
	return m, err
}
