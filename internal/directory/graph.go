// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

/*
graph.go - Microsoft Graph API Client

Client-credentials access to Microsoft Graph for the directory sync.
The tracked-users group's members are the population whose presence is
recorded; everything else in the tenant is invisible to Pulse.

Tokens are fetched from the tenant's v2.0 token endpoint and cached
until shortly before expiry.
*/

package directory

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/officepulse/pulse/internal/config"
)

const (
	defaultLoginBase = "https://login.microsoftonline.com"
	defaultGraphBase = "https://graph.microsoft.com"

	memberSelectFields = "id,displayName,mail,department,jobTitle,officeLocation,employeeType,accountEnabled,userPrincipalName"
)

// GraphUser is one directory member as returned by Graph.
type GraphUser struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	Department        string `json:"department"`
	JobTitle          string `json:"jobTitle"`
	OfficeLocation    string `json:"officeLocation"`
	EmployeeType      string `json:"employeeType"`
	AccountEnabled    *bool  `json:"accountEnabled"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// GraphManager is the subset of a user's manager Pulse records.
type GraphManager struct {
	DisplayName string `json:"displayName"`
	Mail        string `json:"mail"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type memberPage struct {
	Value    []GraphUser `json:"value"`
	NextLink string      `json:"@odata.nextLink"`
}

// GraphClient talks to Microsoft Graph with client-credentials auth.
type GraphClient struct {
	cfg        *config.DirectoryConfig
	httpClient *http.Client

	// loginBase and graphBase are swappable in tests.
	loginBase string
	graphBase string

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewGraphClient creates a Graph API client.
func NewGraphClient(cfg *config.DirectoryConfig) *GraphClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GraphClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		loginBase:  defaultLoginBase,
		graphBase:  defaultGraphBase,
	}
}

// accessToken returns a cached token, refreshing it when within a
// minute of expiry.
func (c *GraphClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Until(c.tokenExpiry) > time.Minute {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("scope", "https://graph.microsoft.com/.default")
	form.Set("grant_type", "client_credentials")

	tokenURL := fmt.Sprintf("%s/%s/oauth2/v2.0/token", c.loginBase, c.cfg.TenantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned empty access token")
	}

	c.token = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return c.token, nil
}

// GetGroupMembers fetches every member of a group, following
// @odata.nextLink paging. Members without a mail address are skipped;
// they cannot be matched to access events.
func (c *GraphClient) GetGroupMembers(ctx context.Context, groupID string) ([]GraphUser, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	var members []GraphUser
	next := fmt.Sprintf("%s/v1.0/groups/%s/members?$select=%s", c.graphBase, groupID, memberSelectFields)

	for next != "" {
		page, err := c.fetchMemberPage(ctx, token, next)
		if err != nil {
			return nil, err
		}
		for i := range page.Value {
			if page.Value[i].Mail == "" && page.Value[i].UserPrincipalName == "" {
				continue
			}
			members = append(members, page.Value[i])
		}
		next = page.NextLink
	}

	return members, nil
}

func (c *GraphClient) fetchMemberPage(ctx context.Context, token, pageURL string) (*memberPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create members request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("members request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("members endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var page memberPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode members page: %w", err)
	}
	return &page, nil
}

// GetUserManager fetches a user's manager. A user with no manager
// returns (nil, nil); Graph answers 404 for that case.
func (c *GraphClient) GetUserManager(ctx context.Context, userID string) (*GraphManager, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	managerURL := fmt.Sprintf("%s/v1.0/users/%s/manager?$select=displayName,mail", c.graphBase, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, managerURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create manager request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("manager request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("manager endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var manager GraphManager
	if err := json.NewDecoder(resp.Body).Decode(&manager); err != nil {
		return nil, fmt.Errorf("failed to decode manager response: %w", err)
	}
	return &manager, nil
}
