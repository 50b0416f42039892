// Package strava talks to the Strava API: OAuth code exchange, refresh
// grants, and the paginated activity listing the importer walks.
package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/oauth2"

	"github.com/grouprank/strava-ranking/internal/domain"
	"github.com/grouprank/strava-ranking/internal/logging"
)

const (
	defaultBaseURL = "https://www.strava.com/api/v3"
	authURL        = "https://www.strava.com/oauth/authorize"
	tokenURL       = "https://www.strava.com/oauth/token"
	scope          = "activity:read_all"

	// PerPage is the fixed page size for the activity listing. A page
	// shorter than this ends the pagination loop.
	PerPage = 100

	requestTimeout = 30 * time.Second
)

// Default retry settings
const (
	defaultMaxRetries     = 3
	defaultInitialBackoff = 1 * time.Second
	defaultMaxBackoff     = 30 * time.Second
)

// Activity represents a Strava activity from the API. Only the fields
// the ranking consumes are decoded.
type Activity struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Type           string    `json:"type"`
	Distance       float64   `json:"distance"`
	MovingTime     int64     `json:"moving_time"`
	ElapsedTime    int64     `json:"elapsed_time"`
	StartDate      time.Time `json:"start_date"`
	StartDateLocal time.Time `json:"start_date_local"`
}

// TokenResponse holds the credentials returned by a token grant.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// AthleteProfile is the athlete summary Strava attaches to the
// authorization-code exchange.
type AthleteProfile struct {
	ID        int64  `json:"id"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Profile   string `json:"profile"`
}

// Client is a Strava API client with automatic retry and backoff.
type Client struct {
	httpClient *retryablehttp.Client
	oauth      *oauth2.Config
	baseURL    string
}

// New creates a Strava client for the given application credentials.
func New(clientID, clientSecret, redirectURI string) *Client {
	return newClient(clientID, clientSecret, redirectURI, defaultBaseURL, tokenURL)
}

// NewWithBaseURL creates a client pointed at a custom server (for testing).
// Token grants go to base+"/oauth/token".
func NewWithBaseURL(clientID, clientSecret, redirectURI, base string) *Client {
	return newClient(clientID, clientSecret, redirectURI, base, base+"/oauth/token")
}

func newClient(clientID, clientSecret, redirectURI, base, tokenEndpoint string) *Client {
	client := retryablehttp.NewClient()
	client.RetryMax = defaultMaxRetries
	client.RetryWaitMin = defaultInitialBackoff
	client.RetryWaitMax = defaultMaxBackoff
	client.HTTPClient.Timeout = requestTimeout
	client.Logger = &logging.LeveledLogger{}

	// Retry on 429, 5xx and connection errors, never other 4xx.
	client.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			return true, nil
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return true, nil
		}
		if resp.StatusCode >= 500 {
			return true, nil
		}
		return false, nil
	}

	return &Client{
		httpClient: client,
		baseURL:    base,
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenEndpoint,
			},
			RedirectURL: redirectURI,
			Scopes:      []string{scope},
		},
	}
}

// WithRetryConfig sets custom retry configuration (useful for testing)
func (c *Client) WithRetryConfig(maxRetries int, initialBackoff, maxBackoff time.Duration) *Client {
	c.httpClient.RetryMax = maxRetries
	c.httpClient.RetryWaitMin = initialBackoff
	c.httpClient.RetryWaitMax = maxBackoff
	return c
}

// AuthURL returns the provider's authorization page for the group's
// OAuth application.
func (c *Client) AuthURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("approval_prompt", "force"))
}

// ExchangeCode trades an authorization code for tokens plus the athlete
// profile Strava includes in the token response.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenResponse, *AthleteProfile, error) {
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("token exchange failed: %w", err)
	}

	profile := &AthleteProfile{}
	if raw := token.Extra("athlete"); raw != nil {
		// The extra comes back as a decoded map; round-trip through
		// JSON to pick out the typed fields.
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("encoding athlete profile: %w", err)
		}
		if err := json.Unmarshal(b, profile); err != nil {
			return nil, nil, fmt.Errorf("decoding athlete profile: %w", err)
		}
	}
	if profile.ID == 0 {
		return nil, nil, fmt.Errorf("token response missing athlete profile")
	}

	return tokenFromOAuth2(token), profile, nil
}

// Refresh trades a refresh token for a fresh credential set. A provider
// rejection (revoked or invalid grant) maps to domain.ErrAuthExpired;
// transport failures stay generic.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	old := &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(-time.Hour), // force refresh
	}

	token, err := c.oauth.TokenSource(ctx, old).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, fmt.Errorf("%w: provider rejected refresh token: %v", domain.ErrAuthExpired, retrieveErr)
		}
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}

	return tokenFromOAuth2(token), nil
}

func tokenFromOAuth2(token *oauth2.Token) *TokenResponse {
	resp := &TokenResponse{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry.Unix(),
	}
	// Strava reports an absolute expires_at alongside the relative
	// expires_in the oauth2 package works from; prefer the absolute one.
	if raw, ok := token.Extra("expires_at").(float64); ok && raw > 0 {
		resp.ExpiresAt = int64(raw)
	}
	return resp
}

// ListActivities fetches one page of the athlete's activity listing.
// An empty or non-array response signals the end of the stream and
// returns a nil slice without error.
func (c *Client) ListActivities(ctx context.Context, accessToken string, page int) ([]Activity, error) {
	url := fmt.Sprintf("%s/athlete/activities?page=%d&per_page=%d", c.baseURL, page, PerPage)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var activities []Activity
	if err := json.Unmarshal(body, &activities); err != nil {
		// Anything that is not a JSON array ends the stream.
		logging.Debug("non-array activity response, treating as end of stream", "page", page)
		return nil, nil
	}

	return activities, nil
}
