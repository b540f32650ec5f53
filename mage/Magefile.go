// SPDX-FileCopyrightText: 2025 NetCracker Technology Corporation
//
// SPDX-License-Identifier: Apache-2.0

package mage

import (
	"context"
	"fmt"
	"time"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"

	"github.com/netcracker/consul-e2e-framework/internal/config"
	"github.com/netcracker/consul-e2e-framework/internal/platform"
)

const clusterReadyTimeout = 20 * time.Minute

type Test mg.Namespace

// E2e runs the whole integration suite against the deployed Consul cluster.
func (Test) E2e() error {
	return sh.RunV("ginkgo", "-v", "./e2e-tests/...")
}

// Crud runs only the KV CRUD scenarios.
func (Test) Crud() error {
	return runLabeled("crud")
}

// Ha runs the high availability scenarios, including leader failover.
func (Test) Ha() error {
	return runLabeled("ha")
}

// Backup runs the backup and restore scenarios, S3 verification included.
func (Test) Backup() error {
	return runLabeled("backup || backup-s3")
}

// Alerts runs the Prometheus alert lifecycle scenarios.
func (Test) Alerts() error {
	return runLabeled("alerts")
}

// Images runs the deployed image version checks.
func (Test) Images() error {
	return runLabeled("images")
}

// Unit runs the framework's own unit tests.
func (Test) Unit() error {
	return sh.RunV("go", "test", "./internal/...")
}

func runLabeled(filter string) error {
	return sh.RunV("ginkgo", "-v", "--label-filter="+filter, "./e2e-tests/...")
}

type Deploy mg.Namespace

// WaitUntilReady blocks until every Consul server replica reports ready.
// Useful as a gate between deploying the cluster and running the suites.
func (Deploy) WaitUntilReady(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	kube, err := platform.NewClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, clusterReadyTimeout)
	defer cancel()

	fmt.Printf("Waiting for statefulset %s in namespace %s to become ready\n", cfg.Consul.Host, cfg.Consul.Namespace)
	return kube.WaitStatefulSetReady(ctx, cfg.Consul.Namespace, cfg.Consul.Host)
}

type Lint mg.Namespace

// Golang lints the Go sources.
func (Lint) Golang() error {
	return sh.RunV("golangci-lint", "run", "./...")
}
