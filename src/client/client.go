// Package client talks to the accessbus API. Access tokens are attached to
// every request and renewed once on an auth failure before the request is
// replayed.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"accessbus/src/types"
	"accessbus/src/ui"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"
)

type RefreshState int

const (
	Idle RefreshState = iota
	Refreshing
	Retrying
	Failed
)

func (s RefreshState) String() string {
	switch s {
	case Refreshing:
		return "Refreshing"
	case Retrying:
		return "Retrying"
	case Failed:
		return "Failed"
	}
	return "Idle"
}

// Paths that never trigger a token refresh.
var noRefresh = map[string]bool{
	"/refresh":  true,
	"/login":    true,
	"/register": true,
}

var retryableCodes = map[string]bool{
	types.ERR_MISSING_TOKEN: true,
	types.ERR_TOKEN_EXPIRED: true,
	types.ERR_INVALID_TOKEN: true,
}

// Upload is a multipart file sent in field "file".
type Upload struct {
	Filename string
	Content  []byte
}

type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Body is sent as JSON when non-nil.
	Body   any
	Upload *Upload
	// Retried is set on the replay after a refresh so it is never retried again.
	Retried bool

	bearer string
}

type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

func (r *Response) Get(path string) gjson.Result {
	return gjson.GetBytes(r.Body, path)
}

// Decode unmarshals the value at path, or the whole body when path is empty.
func (r *Response) Decode(path string, v any) error {
	raw := r.Body
	if path != "" {
		res := r.Get(path)
		if !res.Exists() {
			return fmt.Errorf("response has no %q field", path)
		}
		raw = []byte(res.Raw)
	}
	return json.Unmarshal(raw, v)
}

type Client struct {
	baseURL string
	http    *http.Client
	session *Session
	store   TokenStore
	nav     ui.Navigator
	logger  *log.Logger

	group   singleflight.Group
	stateMu sync.Mutex
	state   RefreshState
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithSession(s *Session) Option {
	return func(c *Client) { c.session = s }
}

func WithTokenStore(s TokenStore) Option {
	return func(c *Client) { c.store = s }
}

func WithNavigator(n ui.Navigator) Option {
	return func(c *Client) { c.nav = n }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		session: NewSession(),
		store:   &MemoryStore{},
		nav:     ui.Discard{},
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Session() *Session {
	return c.session
}

func (c *Client) State() RefreshState {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

func (c *Client) setState(s RefreshState) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
}

// Restore loads a previously saved session from the token store.
func (c *Client) Restore() (bool, error) {
	t, err := c.store.Load()
	if err != nil || t == nil {
		return false, err
	}
	c.session.Set(*t)
	return true, nil
}

func (c *Client) saveSession() {
	if err := c.store.Save(c.session.Tokens()); err != nil {
		c.logger.Printf("Error saving session: %s\n", err.Error())
	}
}

func (c *Client) clearSession() {
	c.session.Clear()
	if err := c.store.Clear(); err != nil {
		c.logger.Printf("Error clearing session: %s\n", err.Error())
	}
}

// Do sends req. A 401 carrying a retryable code triggers one refresh and a
// single replay of req. A failed refresh clears the session and navigates to
// the login screen.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	resp, used, err := c.send(ctx, req)
	if err == nil {
		return resp, nil
	}
	code := AuthCode(err)
	if code == "" || req.Retried || noRefresh[req.Path] || !retryableCodes[code] {
		return resp, err
	}

	if _, rerr := c.refresh(ctx, used); rerr != nil {
		return nil, rerr
	}

	c.setState(Retrying)
	replay := *req
	replay.Retried = true
	resp, _, err = c.send(ctx, &replay)
	c.setState(Idle)
	return resp, err
}

// refresh obtains a new access token. Concurrent callers share one request.
// stale is the access token the caller was rejected with; if the session has
// moved on since, the current token is returned without a request.
//
// The shared request runs detached from any one caller so a cancelled caller
// only abandons its own wait.
func (c *Client) refresh(ctx context.Context, stale string) (string, error) {
	ch := c.group.DoChan("refresh", func() (any, error) {
		if current := c.session.Access(); stale != "" && current != "" && current != stale {
			return current, nil
		}
		c.setState(Refreshing)
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout())
		defer cancel()
		token, err := c.requestRefresh(rctx)
		if err != nil {
			c.logger.Printf("Error refreshing session: %s\n", err.Error())
			if isCancellation(err) {
				c.setState(Idle)
				return nil, err
			}
			c.setState(Failed)
			c.clearSession()
			c.nav.Navigate(ui.ScreenLogin)
			return nil, err
		}
		c.session.UpdateAccess(token)
		c.saveSession()
		c.setState(Idle)
		return token, nil
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Client) refreshTimeout() time.Duration {
	if c.http.Timeout > 0 {
		return c.http.Timeout
	}
	return 15 * time.Second
}

// isCancellation reports whether err comes from a context rather than the
// server rejecting the refresh token.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (c *Client) requestRefresh(ctx context.Context) (string, error) {
	rt := c.session.Refresh()
	if rt == "" {
		return "", &AuthError{Code: types.ERR_MISSING_TOKEN, Message: "no refresh token"}
	}
	resp, _, err := c.send(ctx, &Request{Method: http.MethodGet, Path: "/refresh", bearer: rt})
	if err != nil {
		return "", err
	}
	token := resp.Get("access_token").String()
	if token == "" {
		return "", &UnknownError{Status: resp.Status, Body: string(resp.Body)}
	}
	return token, nil
}

// send performs a single round trip and returns the bearer token it used.
func (c *Client) send(ctx context.Context, req *Request) (*Response, string, error) {
	u := c.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}
	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, "", err
	}
	hreq, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return nil, "", err
	}
	if contentType != "" {
		hreq.Header.Set("Content-Type", contentType)
	}
	hreq.Header.Set("Accept", "application/json")
	token := req.bearer
	if token == "" {
		token = c.session.Access()
	}
	if token != "" {
		hreq.Header.Set("Authorization", "Bearer "+token)
	}

	hres, err := c.http.Do(hreq)
	if err != nil {
		return nil, token, &NetworkError{Op: req.Method + " " + req.Path, Err: err}
	}
	defer hres.Body.Close()
	b, err := io.ReadAll(hres.Body)
	if err != nil {
		return nil, token, &NetworkError{Op: req.Method + " " + req.Path, Err: err}
	}
	resp := &Response{Status: hres.StatusCode, Header: hres.Header, Body: b}
	if hres.StatusCode >= http.StatusBadRequest {
		return resp, token, classify(hres.StatusCode, b)
	}
	return resp, token, nil
}

func encodeBody(req *Request) (io.Reader, string, error) {
	if req.Upload != nil {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", req.Upload.Filename)
		if err != nil {
			return nil, "", err
		}
		if _, err := fw.Write(req.Upload.Content); err != nil {
			return nil, "", err
		}
		if err := mw.Close(); err != nil {
			return nil, "", err
		}
		return &buf, mw.FormDataContentType(), nil
	}
	if req.Body == nil {
		return nil, "", nil
	}
	b, err := json.Marshal(req.Body)
	if err != nil {
		return nil, "", err
	}
	return bytes.NewReader(b), "application/json", nil
}
