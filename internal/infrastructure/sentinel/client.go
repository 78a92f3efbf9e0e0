// Package sentinel is the Copernicus Data Space Ecosystem raster provider:
// Sentinel-2 L2A catalog search and Process API rasters.
package sentinel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/Solar-crew/solar-detector/internal/domain/model"
	"github.com/Solar-crew/solar-detector/internal/logging"
	"github.com/Solar-crew/solar-detector/internal/metrics"
)

// Config holds the provider endpoints and credentials.
type Config struct {
	TokenURL          string        `koanf:"token_url"`
	ClientID          string        `koanf:"client_id"`
	Username          string        `koanf:"username"`
	Password          string        `koanf:"password"`
	CatalogURL        string        `koanf:"catalog_url"`
	ProcessURL        string        `koanf:"process_url"`
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Burst             int           `koanf:"burst"`
}

func DefaultConfig() Config {
	return Config{
		TokenURL:          "https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token",
		ClientID:          "cdse-public",
		CatalogURL:        "https://catalogue.dataspace.copernicus.eu/resto/api/collections/Sentinel2/search.json",
		ProcessURL:        "https://sh.dataspace.copernicus.eu/api/v1/process",
		Timeout:           60 * time.Second,
		RequestsPerSecond: 5,
		Burst:             5,
	}
}

// Client implements model.RasterProvider.
type Client struct {
	cfg        Config
	httpClient *http.Client
	session    *Session
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

var _ model.RasterProvider = (*Client)(nil)

func NewClient(cfg Config) *Client {
	return NewClientWithHTTP(cfg, &http.Client{Timeout: cfg.Timeout})
}

// NewClientWithHTTP creates a client using the given HTTP client for both
// token and data requests.
func NewClientWithHTTP(cfg Config, httpClient *http.Client) *Client {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		session:    NewSession(cfg, httpClient),
		limiter:    rate.NewLimiter(limit, burst),
		breaker:    newBreaker("cdse"),
	}
}

// Session exposes the authentication session, mainly for diagnostics.
func (c *Client) Session() *Session {
	return c.session
}

func newBreaker(name string) *gobreaker.CircuitBreaker[[]byte] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// cancellations say nothing about provider health
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			var v float64
			switch to {
			case gobreaker.StateHalfOpen:
				v = 1
			case gobreaker.StateOpen:
				v = 2
			}
			metrics.CircuitBreakerState.WithLabelValues(name).Set(v)
		},
	})
}

// requestFunc builds a fresh request for every attempt so bodies can be resent.
type requestFunc func(ctx context.Context) (*http.Request, error)

// do sends an authorized request through the breaker and returns the body of a
// 200 response. Every failure comes back as *model.UpstreamUnavailableError.
func (c *Client) do(ctx context.Context, op string, build requestFunc) ([]byte, error) {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.doAuthorized(ctx, op, build)
	})
	if err != nil {
		var upstream *model.UpstreamUnavailableError
		if errors.As(err, &upstream) {
			return nil, err
		}
		metrics.ProviderRequests.WithLabelValues(op, "rejected").Inc()
		return nil, &model.UpstreamUnavailableError{Op: op, Err: err}
	}
	return body, nil
}

// doAuthorized refreshes the session once on 401 and retries exactly once.
func (c *Client) doAuthorized(ctx context.Context, op string, build requestFunc) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &model.UpstreamUnavailableError{Op: op, Err: err}
	}

	token, err := c.session.AccessToken(ctx)
	if err != nil {
		metrics.ProviderRequests.WithLabelValues(op, "auth_failed").Inc()
		return nil, &model.UpstreamUnavailableError{Op: op + ": auth", Err: err}
	}

	resp, err := c.send(ctx, build, token)
	if err != nil {
		metrics.ProviderRequests.WithLabelValues(op, "network").Inc()
		return nil, &model.UpstreamUnavailableError{Op: op, Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		logging.Ctx(ctx).Debug().Str("op", op).Msg("token rejected, refreshing session")

		token, err = c.session.Refresh(ctx, token)
		if err != nil {
			metrics.ProviderRequests.WithLabelValues(op, "auth_failed").Inc()
			return nil, &model.UpstreamUnavailableError{Op: op + ": refresh", Err: err}
		}
		resp, err = c.send(ctx, build, token)
		if err != nil {
			metrics.ProviderRequests.WithLabelValues(op, "network").Inc()
			return nil, &model.UpstreamUnavailableError{Op: op, Err: err}
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ProviderRequests.WithLabelValues(op, "network").Inc()
		return nil, &model.UpstreamUnavailableError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		metrics.ProviderRequests.WithLabelValues(op, "status").Inc()
		return nil, &model.UpstreamUnavailableError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", truncate(body, 256)),
		}
	}

	metrics.ProviderRequests.WithLabelValues(op, "ok").Inc()
	return body, nil
}

func (c *Client) send(ctx context.Context, build requestFunc, token string) (*http.Response, error) {
	req, err := build(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return c.httpClient.Do(req)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
