// Package inbenta authenticates against the Inbenta APIs. The access token and the
// per-product endpoint map returned by /auth are shared by the Chatbot and the
// Messenger clients.
package inbenta

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	connerrors "github.com/inbenta-integrations/chatbot-api-connector/internal/errors"
)

const (
	DefaultAuthURL = "https://api.inbenta.io/v1"

	// Refresh the access token this long before it expires.
	tokenRefreshOffset = 180 * time.Second
)

type accessInfo struct {
	AccessToken string            `json:"accessToken"`
	Expiration  int64             `json:"expiration"`
	APIs        map[string]string `json:"apis"`
	Message     string            `json:"message"`
}

type Auth struct {
	baseURL string
	key     string
	secret  string
	client  *http.Client
	now     func() time.Time

	group singleflight.Group

	mu         sync.RWMutex
	token      string
	expiration int64
	apis       map[string]string
}

// NewAuth fails with a configuration error when key or secret is empty.
func NewAuth(baseURL, key, secret string, client *http.Client) (*Auth, error) {
	if strings.TrimSpace(key) == "" || strings.TrimSpace(secret) == "" {
		return nil, connerrors.Config("empty Chatbot API key or secret")
	}
	if baseURL == "" {
		baseURL = DefaultAuthURL
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Auth{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		secret:  secret,
		client:  client,
		now:     time.Now,
	}, nil
}

func (a *Auth) Key() string { return a.key }

func (a *Auth) HTTPClient() *http.Client { return a.client }

// Token returns a valid access token, requesting or refreshing it as needed.
// Concurrent callers share a single round-trip.
func (a *Auth) Token(ctx context.Context) (string, error) {
	a.mu.RLock()
	token, exp := a.token, a.expiration
	a.mu.RUnlock()

	now := a.now().Unix()
	if token != "" && exp-int64(tokenRefreshOffset.Seconds()) > now {
		return token, nil
	}

	v, err, _ := a.group.Do("token", func() (any, error) {
		if token != "" && exp > now {
			return a.refresh(ctx, token)
		}
		return a.authenticate(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Endpoint returns the base URL of an Inbenta product ("chatbot", "ticketing").
func (a *Auth) Endpoint(ctx context.Context, product string) (string, error) {
	if _, err := a.Token(ctx); err != nil {
		return "", err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	endpoint, ok := a.apis[product]
	if !ok || endpoint == "" {
		return "", connerrors.Config("missing Inbenta API endpoint %q", product)
	}
	return strings.TrimRight(endpoint, "/"), nil
}

// Headers returns the authentication headers for a product call.
func (a *Auth) Headers(ctx context.Context) (http.Header, error) {
	token, err := a.Token(ctx)
	if err != nil {
		return nil, err
	}
	h := http.Header{}
	h.Set("x-inbenta-key", a.key)
	h.Set("Authorization", "Bearer "+token)
	return h, nil
}

func (a *Auth) authenticate(ctx context.Context) (string, error) {
	h := http.Header{}
	h.Set("x-inbenta-key", a.key)
	h.Set("Content-Type", "application/x-www-form-urlencoded")
	body := url.Values{"secret": {a.secret}}.Encode()

	var info accessInfo
	if err := Call(ctx, a.client, http.MethodPost, a.baseURL+"/auth", h, strings.NewReader(body), &info); err != nil {
		return "", a.authError(err)
	}
	if info.AccessToken == "" {
		return "", connerrors.Config("invalid key/secret")
	}
	a.store(info, info.APIs)
	return info.AccessToken, nil
}

func (a *Auth) refresh(ctx context.Context, current string) (string, error) {
	h := http.Header{}
	h.Set("x-inbenta-key", a.key)
	h.Set("Authorization", "Bearer "+current)

	var info accessInfo
	if err := Call(ctx, a.client, http.MethodPost, a.baseURL+"/refreshToken", h, nil, &info); err != nil {
		return "", a.authError(err)
	}
	if info.AccessToken == "" {
		return "", connerrors.Config("invalid key/secret")
	}
	// refreshToken does not return the endpoint map
	a.store(info, nil)
	return info.AccessToken, nil
}

func (a *Auth) authError(err error) error {
	var ce *connerrors.ConnectorError
	if asConnectorError(err, &ce) && ce.Code == http.StatusUnauthorized {
		return connerrors.Config("invalid key/secret")
	}
	return err
}

func (a *Auth) store(info accessInfo, apis map[string]string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = info.AccessToken
	a.expiration = info.Expiration
	if apis != nil {
		a.apis = apis
	}
}
