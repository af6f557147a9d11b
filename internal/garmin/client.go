// Package garmin implements the Garmin Connect API client and session handling.
package garmin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

var (
	// ErrUnauthorized indicates the remote service rejected the session or credentials.
	ErrUnauthorized = errors.New("garmin: unauthorized")
	// ErrNoCredentials indicates username or password were not configured.
	ErrNoCredentials = errors.New("garmin: credentials not provided")
)

const (
	loginPath       = "/oauth-service/token"
	profilePath     = "/userprofile-service/socialProfile"
	searchPath      = "/activitylist-service/activities/search/activities"
	activityPathFmt = "/activity-service/activity/%d/exerciseSets"
)

// Client talks to the Garmin Connect REST API using a bearer session.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a Client. The timeout bounds every individual request.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// Login performs a full credential login and returns a fresh session.
func (c *Client) Login(ctx context.Context, username, password string) (Session, error) {
	if username == "" || password == "" {
		return Session{}, ErrNoCredentials
	}

	body, err := json.Marshal(loginRequest{Username: username, Password: password})
	if err != nil {
		return Session{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+loginPath, bytes.NewReader(body))
	if err != nil {
		return Session{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp loginResponse
	if err := c.do(req, &resp); err != nil {
		return Session{}, fmt.Errorf("garmin login: %w", err)
	}

	return Session{
		Username:     username,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
		ExpiresAt:    time.Now().UTC().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}, nil
}

type socialProfile struct {
	DisplayName string `json:"displayName"`
	UserName    string `json:"userName"`
}

// UserProfile issues the lightweight authenticated call used to probe session
// validity. An expired session surfaces as ErrUnauthorized.
func (c *Client) UserProfile(ctx context.Context, session Session) (string, error) {
	req, err := c.newAuthenticatedRequest(ctx, session, c.baseURL+profilePath)
	if err != nil {
		return "", err
	}

	var profile socialProfile
	if err := c.do(req, &profile); err != nil {
		return "", err
	}
	if profile.UserName != "" {
		return profile.UserName, nil
	}
	return profile.DisplayName, nil
}

// SearchActivities fetches one page of activity summaries, newest first.
func (c *Client) SearchActivities(ctx context.Context, session Session, limit, start int) ([]RawActivity, error) {
	req, err := c.newAuthenticatedRequest(ctx, session, c.baseURL+searchPath)
	if err != nil {
		return nil, err
	}

	query := req.URL.Query()
	query.Set("limit", strconv.Itoa(limit))
	query.Set("start", strconv.Itoa(start))
	req.URL.RawQuery = query.Encode()

	var activities []RawActivity
	if err := c.do(req, &activities); err != nil {
		return nil, fmt.Errorf("garmin activity search (start=%d): %w", start, err)
	}
	return activities, nil
}

type exerciseSetsResponse struct {
	ExerciseSets []RawSetGroup `json:"exerciseSets"`
}

// ExerciseSets fetches the per-exercise set detail for one activity.
func (c *Client) ExerciseSets(ctx context.Context, session Session, activityID int64) ([]RawSetGroup, error) {
	req, err := c.newAuthenticatedRequest(ctx, session, c.baseURL+fmt.Sprintf(activityPathFmt, activityID))
	if err != nil {
		return nil, err
	}

	var resp exerciseSetsResponse
	if err := c.do(req, &resp); err != nil {
		return nil, fmt.Errorf("garmin exercise sets (activity=%d): %w", activityID, err)
	}
	return resp.ExerciseSets, nil
}

func (c *Client) newAuthenticatedRequest(ctx context.Context, session Session, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+session.AccessToken)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		io.Copy(io.Discard, resp.Body)
		return ErrUnauthorized
	case resp.StatusCode >= 400:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
