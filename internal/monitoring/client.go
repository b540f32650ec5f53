// SPDX-FileCopyrightText: 2025 NetCracker Technology Corporation
//
// SPDX-License-Identifier: Apache-2.0

// Package monitoring reads alert state from the Prometheus HTTP API. The
// alerting rules themselves are owned by the monitored deployment; this
// client only observes their lifecycle.
package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/netcracker/consul-e2e-framework/internal/config"
	"github.com/netcracker/consul-e2e-framework/internal/retry"
)

// Alert states as reported by Prometheus. An alert absent from the active
// list is inactive.
const (
	StateInactive = "inactive"
	StatePending  = "pending"
	StateFiring   = "firing"
)

const (
	alertWaitTimeout  = 300 * time.Second
	alertPollInterval = 3 * time.Second
)

type alertsResponse struct {
	Status string `json:"status"`
	Data   struct {
		Alerts []struct {
			Labels map[string]string `json:"labels"`
			State  string            `json:"state"`
		} `json:"alerts"`
	} `json:"data"`
}

type Client struct {
	base     string
	username string
	password string
	http     *http.Client
}

func NewClient(cfg config.Prometheus) *Client {
	return &Client{
		base:     strings.TrimRight(cfg.URL, "/"),
		username: cfg.User,
		password: cfg.Password,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

// AlertStatus returns the state of the named alert scoped to the given
// namespace label.
func (c *Client) AlertStatus(ctx context.Context, name, namespace string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/v1/alerts", nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("query alerts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("alerts endpoint returned status %d: %s", resp.StatusCode, string(raw))
	}

	alerts := new(alertsResponse)
	if err := json.NewDecoder(resp.Body).Decode(alerts); err != nil {
		return "", fmt.Errorf("decode alerts response: %w", err)
	}

	for _, alert := range alerts.Data.Alerts {
		if alert.Labels["alertname"] != name {
			continue
		}
		if ns, ok := alert.Labels["namespace"]; ok && ns != namespace {
			continue
		}
		return alert.State, nil
	}
	return StateInactive, nil
}

// WaitAlertStatus polls the alert until it reaches the wanted state.
func (c *Client) WaitAlertStatus(ctx context.Context, name, namespace, want string) error {
	ctx, cancel := context.WithTimeout(ctx, alertWaitTimeout)
	defer cancel()

	return retry.UntilItSucceeds(ctx, func() error {
		state, err := c.AlertStatus(ctx, name, namespace)
		if err != nil {
			return err
		}
		if state != want {
			return fmt.Errorf("alert %s is %s, want %s", name, state, want)
		}
		return nil
	}, alertPollInterval)
}
