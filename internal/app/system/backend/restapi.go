// internal/app/system/backend/restapi.go
package backend

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

	"github.com/dalemusser/campusdesk/internal/domain/models"
	"golang.org/x/oauth2"
)

// REST talks to the self-hosted API (/api/data/{table}, /api/auth/*).
// Every data request carries the bearer token from its TokenStore; a request
// the server rejects with 401 clears the stored token.
type REST struct {
	base   *url.URL
	tokens TokenStore
	plain  *http.Client // login only
	authed *http.Client // data calls, bearer attached by oauth2.Transport
}

// NewREST builds a client for the API at baseURL.
func NewREST(baseURL string, tokens TokenStore, hc *http.Client) (*REST, error) {
	u, err := parseBase(baseURL)
	if err != nil {
		return nil, fmt.Errorf("api url: %w", err)
	}
	if tokens == nil {
		tokens = &MemoryTokens{}
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	authed := *hc
	authed.Transport = &oauth2.Transport{Source: tokenSource{store: tokens}, Base: base}
	return &REST{base: u, tokens: tokens, plain: hc, authed: &authed}, nil
}

func (c *REST) Name() Name { return NameSelfHosted }

func (c *REST) From(table string) *Query { return NewQuery(c, table) }

// Tokens exposes the token store (for logout and status reporting).
func (c *REST) Tokens() TokenStore { return c.tokens }

// envelope is the self-hosted response body.
type envelope struct {
	Data  Rows   `json:"data"`
	Error string `json:"error,omitempty"`
}

// Run translates q into a request against /api/data/{table}. Filters travel
// as one JSON object in the "filter" parameter.
func (c *REST) Run(ctx context.Context, q *Query) (Rows, error) {
	if c.tokens.Token() == "" {
		return nil, &Error{Kind: KindAuth, Message: ErrNoToken.Error(), Err: ErrNoToken}
	}

	u := c.base.JoinPath("api", "data", q.Table())
	params := url.Values{}
	if cols := q.Columns(); cols != "" {
		params.Set("select", cols)
	}
	if fs := q.Filters(); len(fs) > 0 {
		b, err := json.Marshal(q.FilterMap())
		if err != nil {
			return nil, ContextError("encode filter: %v", err)
		}
		params.Set("filter", string(b))
	}
	if order := orderParam(q.Orders()); order != "" {
		params.Set("order", order)
	}
	if n := q.LimitN(); n > 0 {
		params.Set("limit", strconv.Itoa(n))
	}
	u.RawQuery = params.Encode()

	var (
		method = http.MethodGet
		body   any
	)
	switch q.Op() {
	case OpInsert:
		method, body = http.MethodPost, q.Rows()
	case OpUpdate:
		method, body = http.MethodPatch, q.Patch()
	case OpDelete:
		method = http.MethodDelete
	}

	req, err := newJSONRequest(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	env, err := c.do(c.authed, req)
	if err != nil {
		return nil, err
	}
	if env.Data == nil {
		env.Data = Rows{}
	}
	return env.Data, nil
}

// LoginResult is what /api/auth/login returns.
type LoginResult struct {
	Token     string      `json:"token"`
	ExpiresAt string      `json:"expires_at"`
	User      models.User `json:"user"`
}

// Login exchanges credentials for a bearer token and stores it.
func (c *REST) Login(ctx context.Context, email, password string) (LoginResult, error) {
	payload := map[string]string{"email": email, "password": password}
	req, err := newJSONRequest(ctx, http.MethodPost, c.base.JoinPath("api", "auth", "login").String(), payload)
	if err != nil {
		return LoginResult{}, err
	}
	resp, err := c.plain.Do(req)
	if err != nil {
		return LoginResult{}, TransportError(0, "login request failed", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return LoginResult{}, c.statusError(resp.StatusCode, raw)
	}
	var out LoginResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return LoginResult{}, TransportError(resp.StatusCode, "decode login response", err)
	}
	if out.Token == "" {
		return LoginResult{}, AuthError(resp.StatusCode, "login returned no token")
	}
	if err := c.tokens.SetToken(out.Token); err != nil {
		return LoginResult{}, fmt.Errorf("store token: %w", err)
	}
	return out, nil
}

// Logout tells the server (best effort) and forgets the token.
func (c *REST) Logout(ctx context.Context) error {
	if c.tokens.Token() != "" {
		if req, err := newJSONRequest(ctx, http.MethodPost, c.base.JoinPath("api", "auth", "logout").String(), nil); err == nil {
			if resp, err := c.authed.Do(req); err == nil {
				resp.Body.Close()
			}
		}
	}
	return c.tokens.ClearToken()
}

func (c *REST) do(hc *http.Client, req *http.Request) (envelope, error) {
	resp, err := hc.Do(req)
	if err != nil {
		return envelope{}, TransportError(0, "api request failed", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return envelope{}, TransportError(resp.StatusCode, "read api response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return envelope{}, c.statusError(resp.StatusCode, raw)
	}
	var env envelope
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return envelope{}, TransportError(resp.StatusCode, "decode api response", err)
		}
	}
	return env, nil
}

func (c *REST) statusError(status int, raw []byte) error {
	var env envelope
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &env) == nil && env.Error != "" {
		msg = env.Error
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	switch status {
	case http.StatusUnauthorized:
		// the stored token is dead
		_ = c.tokens.ClearToken()
		return AuthError(status, msg)
	case http.StatusForbidden:
		return AuthError(status, msg)
	}
	return TransportError(status, msg, nil)
}
