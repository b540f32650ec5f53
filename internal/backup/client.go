// SPDX-FileCopyrightText: 2025 NetCracker Technology Corporation
//
// SPDX-License-Identifier: Apache-2.0

// Package backup is a client for the Consul backup daemon REST API. It covers
// full and granular backups, restore round-trips, eviction and the
// authentication behavior the suites assert on.
package backup

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/netcracker/consul-e2e-framework/internal/config"
	"github.com/netcracker/consul-e2e-framework/internal/retry"
)

const (
	backupTimeout  = 120 * time.Second
	restoreTimeout = 120 * time.Second
	pollInterval   = 10 * time.Second
)

// APIError is returned when the daemon answers with an unexpected status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backup daemon returned status %d: %s", e.StatusCode, e.Body)
}

// Backup is the daemon's view of a single backup.
type Backup struct {
	ID        string `json:"id"`
	Failed    bool   `json:"failed"`
	Valid     bool   `json:"valid"`
	Granular  bool   `json:"is_granular"`
	Locked    bool   `json:"locked"`
	SpentTime any    `json:"spent_time,omitempty"`
}

// JobStatus is the state of an asynchronous restore task.
type JobStatus struct {
	Status string `json:"status"`
	Vault  string `json:"vault,omitempty"`
	Type   string `json:"type,omitempty"`
	Err    string `json:"err,omitempty"`
}

type restoreRequest struct {
	Vault           string   `json:"vault"`
	DBs             []string `json:"dbs"`
	SkipACLRecovery string   `json:"skip_acl_recovery"`
}

type Client struct {
	base     string
	username string
	password string
	http     *http.Client
}

// NewClient builds an authenticated backup daemon client. Credentials may be
// empty, in which case requests are sent unauthenticated; the suites use that
// to assert the 401 behavior.
func NewClient(cfg config.BackupDaemon) *Client {
	transport := &http.Transport{}
	if cfg.Protocol == "https" {
		if caFile := config.CAFile(config.BackupCAPath); caFile != "" {
			if pem, err := os.ReadFile(caFile); err == nil {
				pool := x509.NewCertPool()
				if pool.AppendCertsFromPEM(pem) {
					transport.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
				}
			}
		}
	}

	return &Client{
		base:     cfg.BaseURL(),
		username: cfg.Username,
		password: cfg.Password,
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

// Unauthenticated returns a copy of the client with credentials removed.
func (c *Client) Unauthenticated() *Client {
	clone := *c
	clone.username = ""
	clone.password = ""
	return &clone
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	return c.http.Do(req)
}

// text performs a request and returns the trimmed response body, failing on
// any non-200 status.
func (c *Client) text(ctx context.Context, method, path string, body any) (string, error) {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return strings.Trim(strings.TrimSpace(string(raw)), `"`), nil
}

// Create triggers a full backup and returns its id.
func (c *Client) Create(ctx context.Context) (string, error) {
	id, err := c.text(ctx, http.MethodPost, "/backup", nil)
	if err != nil {
		return "", fmt.Errorf("create backup: %w", err)
	}
	log.Info().Str("backup", id).Msg("full backup started")
	return id, nil
}

// CreateGranular triggers a backup scoped to the given databases (datacenter
// names) and returns its id.
func (c *Client) CreateGranular(ctx context.Context, dbs []string) (string, error) {
	id, err := c.text(ctx, http.MethodPost, "/backup", map[string][]string{"dbs": dbs})
	if err != nil {
		return "", fmt.Errorf("create granular backup: %w", err)
	}
	log.Info().Str("backup", id).Strs("dbs", dbs).Msg("granular backup started")
	return id, nil
}

// Find fetches the state of a single backup.
func (c *Client) Find(ctx context.Context, id string) (*Backup, error) {
	resp, err := c.do(ctx, http.MethodGet, "/listbackups/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("find backup %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	b := new(Backup)
	if err := json.NewDecoder(resp.Body).Decode(b); err != nil {
		return nil, fmt.Errorf("decode backup %s: %w", id, err)
	}
	if b.ID == "" {
		b.ID = id
	}
	return b, nil
}

// List returns the ids of all backups known to the daemon.
func (c *Client) List(ctx context.Context) ([]string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/listbackups", nil)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var ids []string
	if err := json.NewDecoder(resp.Body).Decode(&ids); err != nil {
		return nil, fmt.Errorf("decode backup list: %w", err)
	}
	return ids, nil
}

// WaitCompleted polls the backup until it is valid and not failed, and
// verifies the granular flag matches what was requested.
func (c *Client) WaitCompleted(ctx context.Context, id string, granular bool) error {
	ctx, cancel := context.WithTimeout(ctx, backupTimeout)
	defer cancel()

	return retry.UntilItSucceeds(ctx, func() error {
		b, err := c.Find(ctx, id)
		if err != nil {
			return err
		}
		if b.Failed {
			return fmt.Errorf("backup %s failed", id)
		}
		if !b.Valid {
			return fmt.Errorf("backup %s not valid yet", id)
		}
		if b.Granular != granular {
			return fmt.Errorf("backup %s granular flag is %t, want %t", id, b.Granular, granular)
		}
		return nil
	}, pollInterval)
}

// Restore starts a restore from the given backup and returns the task id.
func (c *Client) Restore(ctx context.Context, id string, dbs []string) (string, error) {
	task, err := c.text(ctx, http.MethodPost, "/restore", restoreRequest{
		Vault:           id,
		DBs:             dbs,
		SkipACLRecovery: "true",
	})
	if err != nil {
		return "", fmt.Errorf("restore backup %s: %w", id, err)
	}
	log.Info().Str("backup", id).Str("task", task).Msg("restore started")
	return task, nil
}

// WaitRestored polls the restore task until it reports Successful.
func (c *Client) WaitRestored(ctx context.Context, taskID string) error {
	ctx, cancel := context.WithTimeout(ctx, restoreTimeout)
	defer cancel()

	return retry.UntilItSucceeds(ctx, func() error {
		resp, err := c.do(ctx, http.MethodGet, "/jobstatus/"+taskID, nil)
		if err != nil {
			return fmt.Errorf("get job status %s: %w", taskID, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			raw, _ := io.ReadAll(resp.Body)
			return &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
		}

		job := new(JobStatus)
		if err := json.NewDecoder(resp.Body).Decode(job); err != nil {
			return fmt.Errorf("decode job status %s: %w", taskID, err)
		}
		if job.Status != "Successful" {
			return fmt.Errorf("restore task %s not finished, status %q", taskID, job.Status)
		}
		return nil
	}, pollInterval)
}

// Evict removes a backup from the daemon's storage.
func (c *Client) Evict(ctx context.Context, id string) error {
	if _, err := c.text(ctx, http.MethodPost, "/evict/"+id, nil); err != nil {
		return fmt.Errorf("evict backup %s: %w", id, err)
	}
	log.Info().Str("backup", id).Msg("backup evicted")
	return nil
}

// Health probes the daemon health endpoint.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return fmt.Errorf("backup daemon health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return nil
}
