// SPDX-FileCopyrightText: 2025 NetCracker Technology Corporation
//
// SPDX-License-Identifier: Apache-2.0

// Package config resolves the e2e framework configuration. All settings come
// from environment variables, optionally overridden by a YAML file referenced
// by E2E_CONFIG_FILE. The framework is pointed at an already deployed Consul
// installation; nothing here provisions infrastructure.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// ConsulCAPath is where the Consul server CA is mounted when TLS is enabled.
const ConsulCAPath = "/consul/tls/ca/tls.crt"

// BackupCAPath is where the backup daemon CA is mounted when TLS is enabled.
const BackupCAPath = "/consul/tls/backup/ca.crt"

type Consul struct {
	Namespace string `env:"CONSUL_NAMESPACE" yaml:"namespace"`
	Host      string `env:"CONSUL_HOST" yaml:"host"`
	Port      int    `env:"CONSUL_PORT" envDefault:"8500" yaml:"port"`
	Scheme    string `env:"CONSUL_SCHEME" envDefault:"http" yaml:"scheme"`
	Token     string `env:"CONSUL_TOKEN" yaml:"token"`
}

// Address returns the host:port pair of the Consul HTTP endpoint.
func (c Consul) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c Consul) Validate() error {
	if c.Namespace == "" {
		return fmt.Errorf("CONSUL_NAMESPACE is required")
	}
	if c.Host == "" {
		return fmt.Errorf("CONSUL_HOST is required")
	}
	if c.Scheme != "http" && c.Scheme != "https" {
		return fmt.Errorf("CONSUL_SCHEME must be http or https, got %q", c.Scheme)
	}
	return nil
}

type BackupDaemon struct {
	Host       string `env:"CONSUL_BACKUP_DAEMON_HOST" yaml:"host"`
	Port       int    `env:"CONSUL_BACKUP_DAEMON_PORT" envDefault:"8080" yaml:"port"`
	Username   string `env:"CONSUL_BACKUP_DAEMON_USERNAME" yaml:"username"`
	Password   string `env:"CONSUL_BACKUP_DAEMON_PASSWORD" yaml:"password"`
	Protocol   string `env:"CONSUL_BACKUP_DAEMON_PROTOCOL" envDefault:"http" yaml:"protocol"`
	Datacenter string `env:"DATACENTER_NAME" yaml:"datacenter"`
}

// BaseURL returns the backup daemon API root.
func (b BackupDaemon) BaseURL() string {
	return fmt.Sprintf("%s://%s:%d", b.Protocol, b.Host, b.Port)
}

// Configured reports whether the backup daemon endpoint is set. Backup suites
// are skipped when it is not.
func (b BackupDaemon) Configured() bool {
	return b.Host != ""
}

func (b BackupDaemon) Validate() error {
	if b.Host == "" {
		return fmt.Errorf("CONSUL_BACKUP_DAEMON_HOST is required")
	}
	if b.Datacenter == "" {
		return fmt.Errorf("DATACENTER_NAME is required")
	}
	return nil
}

type Prometheus struct {
	URL      string `env:"PROMETHEUS_URL" yaml:"url"`
	User     string `env:"PROMETHEUS_USER" yaml:"user"`
	Password string `env:"PROMETHEUS_PASSWORD" yaml:"password"`
}

// Configured reports whether alert suites can run.
func (p Prometheus) Configured() bool {
	return p.URL != ""
}

type S3 struct {
	URL       string `env:"S3_URL" yaml:"url"`
	Bucket    string `env:"S3_BUCKET" yaml:"bucket"`
	KeyID     string `env:"S3_KEY_ID" yaml:"keyId"`
	KeySecret string `env:"S3_KEY_SECRET" yaml:"keySecret"`
}

// Configured reports whether backups land in S3-compatible storage.
func (s S3) Configured() bool {
	return s.URL != "" && s.Bucket != ""
}

// TestConfig is the aggregate configuration of the e2e framework.
type TestConfig struct {
	Consul          Consul       `yaml:"consul"`
	Backup          BackupDaemon `yaml:"backupDaemon"`
	Prometheus      Prometheus   `yaml:"prometheus"`
	S3              S3           `yaml:"s3"`
	MonitoredImages string       `env:"MONITORED_IMAGES" yaml:"monitoredImages"`
}

// Load resolves the configuration from the environment. When E2E_CONFIG_FILE
// points to a YAML file, values from the file take precedence over the
// environment.
func Load() (*TestConfig, error) {
	cfg := &TestConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if path := os.Getenv("E2E_CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
		log.Info().Str("file", path).Msg("applied configuration overrides")
	}

	if err := cfg.Consul.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MonitoredImage is one entry of the MONITORED_IMAGES list. The raw format is
// a comma separated list of "type name container image" quadruples, e.g.
// "statefulset consul-server consul registry/consul:1.20.1".
type MonitoredImage struct {
	Type      string
	Name      string
	Container string
	Image     string
}

// ParseMonitoredImages splits the MONITORED_IMAGES value into entries.
// Malformed entries are logged and skipped so that a single typo does not
// invalidate the whole image check run.
func ParseMonitoredImages(raw string) []MonitoredImage {
	var images []MonitoredImage

	for _, entry := range strings.Split(strings.TrimRight(raw, ","), ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Fields(entry)
		if len(parts) != 4 {
			log.Warn().Str("entry", entry).Msg("skipping malformed monitored image entry")
			continue
		}
		images = append(images, MonitoredImage{
			Type:      parts[0],
			Name:      parts[1],
			Container: parts[2],
			Image:     parts[3],
		})
	}
	return images
}

// ImageTag extracts the tag portion of a container image reference,
// tolerating registries with a port ("registry:5000/consul:1.20.1").
func ImageTag(image string) (string, error) {
	idx := strings.LastIndex(image, ":")
	if idx < 0 || strings.Contains(image[idx:], "/") {
		return "", fmt.Errorf("image %q has no tag", image)
	}
	return image[idx+1:], nil
}

// CAFile returns path when the file exists, otherwise an empty string. Used
// for the optional mounted CA bundles.
func CAFile(path string) string {
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
