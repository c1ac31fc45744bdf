package inbenta

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	connerrors "github.com/inbenta-integrations/chatbot-api-connector/internal/errors"
)

func authServer(t *testing.T, expiration func() int64, authCalls, refreshCalls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth":
			atomic.AddInt32(authCalls, 1)
			require.NoError(t, r.ParseForm())
			if r.Header.Get("x-inbenta-key") != "key" || r.PostForm.Get("secret") != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"message":"Unauthorized"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"accessToken": "tok-auth",
				"expiration":  expiration(),
				"apis":        map[string]string{"chatbot": "https://bot.example/", "ticketing": "https://tickets.example"},
			})
		case "/refreshToken":
			atomic.AddInt32(refreshCalls, 1)
			assert.Equal(t, "Bearer tok-auth", r.Header.Get("Authorization"))
			_ = json.NewEncoder(w).Encode(map[string]any{"accessToken": "tok-refreshed", "expiration": time.Now().Add(time.Hour).Unix()})
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestNewAuthRequiresCredentials(t *testing.T) {
	_, err := NewAuth("", "", "secret", nil)
	assert.True(t, connerrors.IsConfig(err))
}

func TestTokenIsCachedAndEndpointsKnown(t *testing.T) {
	var authCalls, refreshCalls int32
	srv := authServer(t, func() int64 { return time.Now().Add(time.Hour).Unix() }, &authCalls, &refreshCalls)
	defer srv.Close()

	a, err := NewAuth(srv.URL, "key", "secret", srv.Client())
	require.NoError(t, err)

	ctx := context.Background()
	tok, err := a.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-auth", tok)

	_, err = a.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&authCalls))

	endpoint, err := a.Endpoint(ctx, "chatbot")
	require.NoError(t, err)
	assert.Equal(t, "https://bot.example", endpoint)

	_, err = a.Endpoint(ctx, "hyperchat")
	assert.True(t, connerrors.IsConfig(err))

	h, err := a.Headers(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-auth", h.Get("Authorization"))
	assert.Equal(t, "key", h.Get("x-inbenta-key"))
}

func TestTokenRefreshedNearExpiry(t *testing.T) {
	var authCalls, refreshCalls int32
	srv := authServer(t, func() int64 { return time.Now().Add(60 * time.Second).Unix() }, &authCalls, &refreshCalls)
	defer srv.Close()

	a, err := NewAuth(srv.URL, "key", "secret", srv.Client())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = a.Token(ctx)
	require.NoError(t, err)

	tok, err := a.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-refreshed", tok)
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshCalls))

	// endpoints survive the refresh
	_, err = a.Endpoint(ctx, "ticketing")
	require.NoError(t, err)
}

func TestConcurrentCallersShareAuthentication(t *testing.T) {
	var authCalls, refreshCalls int32
	srv := authServer(t, func() int64 { return time.Now().Add(time.Hour).Unix() }, &authCalls, &refreshCalls)
	defer srv.Close()

	a, err := NewAuth(srv.URL, "key", "secret", srv.Client())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.Token(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt32(&authCalls), int32(10))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&authCalls), int32(1))
}

func TestInvalidCredentials(t *testing.T) {
	var authCalls, refreshCalls int32
	srv := authServer(t, func() int64 { return 0 }, &authCalls, &refreshCalls)
	defer srv.Close()

	a, err := NewAuth(srv.URL, "key", "wrong", srv.Client())
	require.NoError(t, err)

	_, err = a.Token(context.Background())
	assert.True(t, connerrors.IsConfig(err))
}

func TestCallMapsErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"code":400,"message":"Session expired"}]}`))
	}))
	defer srv.Close()

	err := Call(context.Background(), srv.Client(), http.MethodGet, srv.URL, nil, nil, nil)
	var ce *connerrors.ConnectorError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 400, ce.Code)
	assert.Equal(t, "Session expired", ce.Message)
}
