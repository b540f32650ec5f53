// SPDX-FileCopyrightText: 2025 NetCracker Technology Corporation
//
// SPDX-License-Identifier: Apache-2.0

// Package consulcli wraps the official Consul API client with the operations
// the e2e suites need: KV CRUD, cluster status introspection and a couple of
// raw HTTP probes for edge cases the high-level client hides.
package consulcli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	capi "github.com/hashicorp/consul/api"

	"github.com/netcracker/consul-e2e-framework/internal/config"
)

// ErrKeyNotFound is returned by Get when the key does not exist.
var ErrKeyNotFound = errors.New("key not found")

const clientTimeout = 10 * time.Second

type Client struct {
	api    *capi.Client
	cfg    config.Consul
	http   *http.Client
	caFile string
}

// NewClient builds a Consul client from the given configuration. When the
// cluster CA bundle is mounted, all HTTP calls verify against it.
func NewClient(cfg config.Consul) (*Client, error) {
	caFile := config.CAFile(config.ConsulCAPath)

	apiCfg := capi.DefaultConfig()
	apiCfg.Address = cfg.Address()
	apiCfg.Scheme = cfg.Scheme
	apiCfg.Token = cfg.Token
	if caFile != "" {
		apiCfg.TLSConfig = capi.TLSConfig{CAFile: caFile}
	}

	tlsCfg, err := capi.SetupTLSConfig(&apiCfg.TLSConfig)
	if err != nil {
		return nil, fmt.Errorf("setup consul TLS config: %w", err)
	}

	httpCli := &http.Client{
		Timeout: clientTimeout,
		Transport: &http.Transport{
			TLSClientConfig: tlsCfg,
		},
	}
	apiCfg.HttpClient = httpCli

	api, err := capi.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("create consul client: %w", err)
	}

	return &Client{
		api:    api,
		cfg:    cfg,
		http:   httpCli,
		caFile: caFile,
	}, nil
}

// Put stores a key-value pair in the Consul KV store.
func (c *Client) Put(key, value string) error {
	_, err := c.api.KV().Put(&capi.KVPair{Key: key, Value: []byte(value)}, nil)
	if err != nil {
		return fmt.Errorf("put key %s: %w", key, err)
	}
	return nil
}

// Get returns the value stored under key. A missing key yields ErrKeyNotFound.
func (c *Client) Get(key string) (string, error) {
	pair, _, err := c.api.KV().Get(key, nil)
	if err != nil {
		return "", fmt.Errorf("get key %s: %w", key, err)
	}
	if pair == nil {
		return "", fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	return string(pair.Value), nil
}

// Delete removes a key. With recurse set, every key under the prefix is
// removed.
func (c *Client) Delete(key string, recurse bool) error {
	var err error
	if recurse {
		_, err = c.api.KV().DeleteTree(key, nil)
	} else {
		_, err = c.api.KV().Delete(key, nil)
	}
	if err != nil {
		return fmt.Errorf("delete key %s: %w", key, err)
	}
	return nil
}

// Leader returns the current raft leader as "ip:port".
func (c *Client) Leader() (string, error) {
	leader, err := c.api.Status().Leader()
	if err != nil {
		return "", fmt.Errorf("get leader: %w", err)
	}
	return leader, nil
}

// Peers returns the raft peer set as "ip:port" addresses.
func (c *Client) Peers() ([]string, error) {
	peers, err := c.api.Status().Peers()
	if err != nil {
		return nil, fmt.Errorf("get peers: %w", err)
	}
	return peers, nil
}

// ServerIPs returns the raft peer addresses without the server RPC port.
func (c *Client) ServerIPs() ([]string, error) {
	peers, err := c.Peers()
	if err != nil {
		return nil, err
	}
	ips := make([]string, len(peers))
	for i, peer := range peers {
		ips[i] = TrimPort(peer)
	}
	return ips, nil
}

// TrimPort strips the port from an "ip:port" address. Addresses without a
// port are returned unchanged.
func TrimPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// IsLeaderReelected reports whether newLeader is a member of peers distinct
// from oldLeader.
func IsLeaderReelected(newLeader, oldLeader string, peers []string) bool {
	if newLeader == "" || newLeader == oldLeader {
		return false
	}
	for _, peer := range peers {
		if peer == newLeader {
			return true
		}
	}
	return false
}

// PutRaw stores a value with a plain HTTP PUT, bypassing the API client, and
// returns the response status code. The Consul HTTP gateway slams the
// connection when the body exceeds the KV size limit under TLS, which
// surfaces as an EOF instead of a response; that case is reported as 413 to
// match what the gateway would have sent.
func (c *Client) PutRaw(ctx context.Context, key, value string) (int, error) {
	endpoint := fmt.Sprintf("%s://%s/v1/kv/%s", c.cfg.Scheme, c.cfg.Address(), key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, strings.NewReader(value))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isConnectionSlammed(err) {
			return http.StatusRequestEntityTooLarge, nil
		}
		return 0, fmt.Errorf("put key %s: %w", key, err)
	}
	defer resp.Body.Close()

	return resp.StatusCode, nil
}

// LeaderAvailable probes /v1/status/leader over plain HTTP and reports
// whether a leader is currently answering.
func (c *Client) LeaderAvailable(ctx context.Context) bool {
	endpoint := fmt.Sprintf("%s://%s/v1/status/leader", c.cfg.Scheme, c.cfg.Address())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(body)) != `""`
}

func isConnectionSlammed(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset")
}
