package sentinel

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T) (*Session, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	s := NewSession(Config{
		TokenURL: testTokenURL,
		ClientID: "cdse-public",
		Username: "user@example.com",
		Password: "secret",
	}, &http.Client{Transport: transport})
	return s, transport
}

func TestSession_LoginOnce(t *testing.T) {
	s, transport := newTestSession(t)
	registerTokens(t, transport, "a1", "a2")

	assert.Equal(t, StateUnauthenticated, s.State())

	tok, err := s.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a1", tok)
	assert.Equal(t, StateAuthenticated, s.State())

	tok, err = s.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a1", tok)
	assert.Equal(t, 1, transport.GetCallCountInfo()["POST "+testTokenURL])
}

func TestSession_ConcurrentRefreshCollapses(t *testing.T) {
	s, transport := newTestSession(t)
	registerTokens(t, transport, "a1", "a2")

	stale, err := s.AccessToken(context.Background())
	require.NoError(t, err)

	const callers = 8
	tokens := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := s.Refresh(context.Background(), stale)
			assert.NoError(t, err)
			tokens[i] = tok
		}(i)
	}
	wg.Wait()

	for _, tok := range tokens {
		assert.Equal(t, "a2", tok)
	}
	assert.Equal(t, 2, transport.GetCallCountInfo()["POST "+testTokenURL], "one login and one refresh")
	assert.Equal(t, StateAuthenticated, s.State())
}

func TestSession_FailedLoginStaysUnauthenticated(t *testing.T) {
	s, transport := newTestSession(t)
	transport.RegisterResponder(http.MethodPost, testTokenURL,
		httpmock.NewStringResponder(http.StatusUnauthorized, `{"error":"invalid_grant"}`))

	_, err := s.AccessToken(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateUnauthenticated, s.State())
}

func TestSessionState_String(t *testing.T) {
	assert.Equal(t, "unauthenticated", StateUnauthenticated.String())
	assert.Equal(t, "authenticated", StateAuthenticated.String())
	assert.Equal(t, "refreshing", StateRefreshing.String())
	assert.Equal(t, "unknown", SessionState(42).String())
}
