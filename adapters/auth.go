package adapters

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrUnauthenticated is returned when credentials are missing or rejected
var ErrUnauthenticated = errors.New("unauthenticated")

// Credentials are the caller-supplied secrets handed to an Authenticator
type Credentials struct {
	Token    string `json:"token,omitempty" yaml:"token,omitempty"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
}

// AuthResult is what a successful authentication produces: headers to send
// with every fetch of the session
type AuthResult struct {
	Method    string
	Principal string
	Headers   map[string]string
}

// Authenticator establishes access to the sources a transformer reads
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (*AuthResult, error)
}

// NoopAuthenticator accepts everyone and adds no headers
type NoopAuthenticator struct{}

// Authenticate implements Authenticator
func (NoopAuthenticator) Authenticate(ctx context.Context, creds Credentials) (*AuthResult, error) {
	return &AuthResult{Method: "none", Principal: creds.Username, Headers: map[string]string{}}, nil
}

// Auth methods understood by NewAuthenticator
const (
	AuthNone        = "none"
	AuthBearerToken = "bearer_token"
	AuthAPIKey      = "api_key"
)

// TokenAuthenticator turns a static token into a bearer or API-key header
type TokenAuthenticator struct {
	Method string
	// Header overrides the API-key header name (default X-API-Key)
	Header string
}

// Authenticate implements Authenticator
func (a TokenAuthenticator) Authenticate(ctx context.Context, creds Credentials) (*AuthResult, error) {
	token := strings.TrimSpace(creds.Token)
	if token == "" {
		return nil, errors.Wrapf(ErrUnauthenticated, "%s requires a token", a.Method)
	}

	switch a.Method {
	case AuthBearerToken:
		return &AuthResult{
			Method:    a.Method,
			Principal: creds.Username,
			Headers:   map[string]string{"Authorization": "Bearer " + token},
		}, nil
	case AuthAPIKey:
		header := a.Header
		if header == "" {
			header = "X-API-Key"
		}
		return &AuthResult{
			Method:    a.Method,
			Principal: creds.Username,
			Headers:   map[string]string{header: token},
		}, nil
	default:
		return nil, errors.Newf("unknown auth method %q", a.Method)
	}
}

// NewAuthenticator builds an authenticator by method name
func NewAuthenticator(method, header string) (Authenticator, error) {
	switch method {
	case "", AuthNone:
		return NoopAuthenticator{}, nil
	case AuthBearerToken, AuthAPIKey:
		return TokenAuthenticator{Method: method, Header: header}, nil
	default:
		return nil, errors.Newf("unknown auth method %q", method)
	}
}
