// internal/app/system/backend/backend.go
// Package backend is the single data-access interface the rest of the
// application talks to. Which physical backend sits behind it (the hosted
// BaaS, the self-hosted REST API, or the server's own datastore) is decided
// once at process start; the query shape and the error shape are the same
// for all of them.
package backend

import (
	"net/http"
	"strings"
)

// Name identifies a backend implementation.
type Name string

const (
	NameBaaS       Name = "baas"
	NameSelfHosted Name = "self-hosted"
	NameDirect     Name = "direct"
)

// Client is implemented by every backend.
type Client interface {
	// From starts a statement against table.
	From(table string) *Query
	// Name reports which backend this is, for logging only.
	Name() Name
}

// Environment variables read by ConfigFromEnv.
const (
	EnvSelfHosted = "CAMPUSDESK_USE_SELF_HOSTED_API"
	EnvBaaSURL    = "CAMPUSDESK_BAAS_URL"
	EnvBaaSKey    = "CAMPUSDESK_BAAS_KEY"
	EnvAPIURL     = "CAMPUSDESK_API_URL"
)

// Config selects and configures a backend.
type Config struct {
	SelfHosted bool

	BaaSURL string
	BaaSKey string

	APIURL string
	Tokens TokenStore

	HTTPClient *http.Client
}

// ConfigFromEnv reads the selector flag and endpoints. getenv is usually
// os.Getenv; the flag is read exactly once, here.
func ConfigFromEnv(getenv func(string) string) Config {
	return Config{
		SelfHosted: Truthy(getenv(EnvSelfHosted)),
		BaaSURL:    getenv(EnvBaaSURL),
		BaaSKey:    getenv(EnvBaaSKey),
		APIURL:     getenv(EnvAPIURL),
	}
}

// Truthy interprets a boolean-like flag value. Anything unrecognized,
// including the empty string, is false.
func Truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "y", "yes", "on":
		return true
	}
	return false
}

// Select builds the backend chosen by cfg. There is no fallback: a
// misconfigured self-hosted path is an error, never a silent switch to BaaS.
func Select(cfg Config) (Client, error) {
	if cfg.SelfHosted {
		return NewREST(cfg.APIURL, cfg.Tokens, cfg.HTTPClient)
	}
	return NewBaaS(cfg.BaaSURL, cfg.BaaSKey, cfg.HTTPClient)
}
