package sentinel

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"golang.org/x/oauth2"

	"github.com/Solar-crew/solar-detector/internal/logging"
	"github.com/Solar-crew/solar-detector/internal/metrics"
)

// SessionState is the authentication state of a Session.
type SessionState int32

const (
	StateUnauthenticated SessionState = iota
	StateAuthenticated
	StateRefreshing
)

func (s SessionState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// Session owns the provider credentials and the current token pair.
//
//	unauthenticated -> authenticated          (password grant)
//	authenticated   -> refreshing             (401 or expiry)
//	refreshing      -> authenticated          (refresh grant, or password grant fallback)
//	refreshing      -> unauthenticated        (both grants failed)
//
// It is safe for concurrent use; concurrent refreshes of the same stale token
// collapse into one.
type Session struct {
	mu         sync.Mutex
	state      atomic.Int32
	oauth      *oauth2.Config
	username   string
	password   string
	httpClient *http.Client
	token      *oauth2.Token
}

func NewSession(cfg Config, httpClient *http.Client) *Session {
	return &Session{
		oauth: &oauth2.Config{
			ClientID: cfg.ClientID,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: httpClient,
	}
}

func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

func (s *Session) setState(st SessionState) {
	s.state.Store(int32(st))
}

// AccessToken returns a usable access token, logging in or refreshing first when needed.
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateAuthenticated && s.token.Valid() {
		return s.token.AccessToken, nil
	}
	if s.token != nil {
		if err := s.refreshLocked(ctx); err != nil {
			return "", err
		}
		return s.token.AccessToken, nil
	}
	if err := s.loginLocked(ctx); err != nil {
		return "", err
	}
	return s.token.AccessToken, nil
}

// Refresh replaces the stale access token. If another caller already replaced
// it, the current token is returned without contacting the provider.
func (s *Session) Refresh(ctx context.Context, stale string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateAuthenticated && s.token != nil && s.token.AccessToken != stale {
		return s.token.AccessToken, nil
	}
	if err := s.refreshLocked(ctx); err != nil {
		return "", err
	}
	return s.token.AccessToken, nil
}

func (s *Session) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

func (s *Session) loginLocked(ctx context.Context) error {
	tok, err := s.oauth.PasswordCredentialsToken(s.oauthContext(ctx), s.username, s.password)
	if err != nil {
		s.token = nil
		s.setState(StateUnauthenticated)
		metrics.AuthRefreshes.WithLabelValues("password_failed").Inc()
		return fmt.Errorf("failed to log in: %w", err)
	}
	s.token = tok
	s.setState(StateAuthenticated)
	metrics.AuthRefreshes.WithLabelValues("password").Inc()
	return nil
}

// refreshLocked uses the refresh token when there is one and falls back to a
// full login otherwise.
func (s *Session) refreshLocked(ctx context.Context) error {
	s.setState(StateRefreshing)

	if s.token != nil && s.token.RefreshToken != "" {
		src := s.oauth.TokenSource(s.oauthContext(ctx), &oauth2.Token{RefreshToken: s.token.RefreshToken})
		tok, err := src.Token()
		if err == nil {
			s.token = tok
			s.setState(StateAuthenticated)
			metrics.AuthRefreshes.WithLabelValues("refresh_token").Inc()
			return nil
		}
		logging.Warn().Err(err).Msg("refresh grant failed, logging in again")
	}

	return s.loginLocked(ctx)
}
