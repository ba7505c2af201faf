// internal/app/system/backend/baas.go
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// BaaS talks to the hosted backend-as-a-service through its PostgREST
// interface (/rest/v1/{table}).
type BaaS struct {
	base   *url.URL
	apiKey string
	hc     *http.Client
}

// NewBaaS validates the base URL and key and returns a client.
func NewBaaS(baseURL, apiKey string, hc *http.Client) (*BaaS, error) {
	u, err := parseBase(baseURL)
	if err != nil {
		return nil, fmt.Errorf("baas url: %w", err)
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("baas api key is required")
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &BaaS{base: u, apiKey: apiKey, hc: hc}, nil
}

func (c *BaaS) Name() Name { return NameBaaS }

func (c *BaaS) From(table string) *Query { return NewQuery(c, table) }

// Run translates q into a PostgREST request.
func (c *BaaS) Run(ctx context.Context, q *Query) (Rows, error) {
	u := c.base.JoinPath("rest", "v1", q.Table())
	params := url.Values{}
	if cols := q.Columns(); cols != "" {
		params.Set("select", cols)
	} else if q.Op() == OpSelect {
		params.Set("select", "*")
	}
	for _, f := range q.Filters() {
		params.Add(f.Column, postgrestEq(f.Value))
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
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if q.Op() != OpSelect {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, TransportError(0, "baas request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, TransportError(resp.StatusCode, "read baas response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, baasError(resp.StatusCode, raw)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return Rows{}, nil
	}
	var rows Rows
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, TransportError(resp.StatusCode, "decode baas response", err)
	}
	return rows, nil
}

// postgrestError is the error body PostgREST sends on failure.
type postgrestError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func baasError(status int, raw []byte) error {
	var pe postgrestError
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &pe) == nil && pe.Message != "" {
		msg = pe.Message
		if pe.Code != "" {
			msg = pe.Code + ": " + msg
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return AuthError(status, msg)
	}
	return TransportError(status, msg, nil)
}

// postgrestEq renders an equality filter value ("eq.x", or "is.null").
func postgrestEq(v any) string {
	switch t := v.(type) {
	case nil:
		return "is.null"
	case string:
		return "eq." + t
	case bool:
		return "eq." + strconv.FormatBool(t)
	default:
		return fmt.Sprintf("eq.%v", t)
	}
}

func parseBase(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("url is required")
	}
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("url has no host")
	}
	return u, nil
}

func newJSONRequest(ctx context.Context, method, target string, body any) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, ContextError("encode request body: %v", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return nil, TransportError(0, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}
