// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

/*
ezradius.go - EZRadius Cloud RADIUS Adapter

Polls the EZRadius API for Wi-Fi authentication events. Only
Access-Accept events are requested; a successful Wi-Fi authentication is
treated as an office entry. RADIUS has no exit signal, so sessions opened
from this source rely on the stale-session closer.

API: GET /v1/auth/events with an X-API-Key header, filtered server-side
by event_type and since, paginated with page/limit against the reported
total.
*/

package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/officepulse/pulse/internal/config"
	"github.com/officepulse/pulse/internal/logging"
	"github.com/officepulse/pulse/internal/models"
)

// Ensure EzradiusAdapter implements Adapter
var _ Adapter = (*EzradiusAdapter)(nil)

// ezradiusAuthEvent is one authentication event from the events endpoint.
type ezradiusAuthEvent struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	MACAddress string `json:"mac_address"`
	NasIP      string `json:"nas_ip"`
	EventType  string `json:"event_type"`
	Timestamp  string `json:"timestamp"`
	LocationID string `json:"location_id"`
}

// ezradiusEnvelope is the EZRadius list response wrapper.
type ezradiusEnvelope struct {
	Success    bool                `json:"success"`
	Data       []ezradiusAuthEvent `json:"data"`
	Pagination struct {
		Total   int `json:"total"`
		Page    int `json:"page"`
		PerPage int `json:"per_page"`
	} `json:"pagination"`
}

// EzradiusAdapter fetches Wi-Fi authentication events from EZRadius.
type EzradiusAdapter struct {
	cfg        *config.EzradiusConfig
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]models.RawAccessEvent]
}

// NewEzradiusAdapter creates an EZRadius API adapter.
func NewEzradiusAdapter(cfg *config.EzradiusConfig) *EzradiusAdapter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &EzradiusAdapter{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		breaker: newBreaker("ezradius"),
	}
}

// Name returns the sync_status source key for this adapter.
func (a *EzradiusAdapter) Name() models.Source {
	return models.SourceEzradius
}

// FetchEvents fetches Access-Accept events since the given timestamp,
// paginating against the total reported by the API. Pages already
// fetched are returned even when a later page fails.
func (a *EzradiusAdapter) FetchEvents(ctx context.Context, since time.Time) ([]models.RawAccessEvent, error) {
	return a.breaker.Execute(func() ([]models.RawAccessEvent, error) {
		pageSize := a.cfg.PageSize
		if pageSize <= 0 {
			pageSize = defaultPageSize
		}
		maxPages := a.cfg.MaxPages
		if maxPages <= 0 {
			maxPages = defaultMaxPages
		}

		var events []models.RawAccessEvent

		for page := 1; page <= maxPages; page++ {
			envelope, err := a.fetchPage(ctx, since, page, pageSize)
			if err != nil {
				return events, fmt.Errorf("page %d: %w", page, err)
			}

			for i := range envelope.Data {
				if ev, ok := a.normalizeEvent(&envelope.Data[i]); ok {
					events = append(events, ev)
				}
			}

			perPage := envelope.Pagination.PerPage
			if perPage <= 0 {
				perPage = pageSize
			}
			if page*perPage >= envelope.Pagination.Total || len(envelope.Data) == 0 {
				break
			}
		}

		return events, nil
	})
}

// fetchPage performs one events request.
func (a *EzradiusAdapter) fetchPage(ctx context.Context, since time.Time, page, pageSize int) (*ezradiusEnvelope, error) {
	endpoint := strings.TrimSuffix(a.cfg.URL, "/") + "/v1/auth/events"

	query := url.Values{}
	query.Set("since", since.UTC().Format(time.RFC3339))
	query.Set("event_type", "Access-Accept")
	query.Set("limit", strconv.Itoa(pageSize))
	query.Set("page", strconv.Itoa(page))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-API-Key", a.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth events request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if readErr != nil {
			return nil, fmt.Errorf("auth events returned status %d (failed to read body)", resp.StatusCode)
		}
		return nil, fmt.Errorf("auth events returned status %d: %s", resp.StatusCode, string(body))
	}

	var envelope ezradiusEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !envelope.Success {
		return nil, fmt.Errorf("api reported failure")
	}

	return &envelope, nil
}

// normalizeEvent maps one RADIUS event to the normalized shape. Every
// accepted authentication is an entry; events with an unparseable
// timestamp are dropped with a warning rather than failing the page.
func (a *EzradiusAdapter) normalizeEvent(event *ezradiusAuthEvent) (models.RawAccessEvent, bool) {
	occurredAt, err := time.Parse(time.RFC3339, event.Timestamp)
	if err != nil {
		logging.Warn().
			Err(err).
			Str("event_id", event.ID).
			Str("timestamp", event.Timestamp).
			Msg("Skipping EZRadius event with invalid timestamp")
		return models.RawAccessEvent{}, false
	}

	return models.RawAccessEvent{
		SourceEventID: event.ID,
		Source:        models.SourceEzradius,
		IdentityHint:  event.Username,
		EventKind:     string(models.EventEntry),
		LocationKey:   event.LocationID,
		DeviceLabel:   event.MACAddress,
		OccurredAt:    occurredAt.UTC(),
	}, true
}
