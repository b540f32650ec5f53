// SPDX-FileCopyrightText: 2025 NetCracker Technology Corporation
//
// SPDX-License-Identifier: Apache-2.0

package mage

import (
	"fmt"

	"github.com/bitfield/script"

	"github.com/netcracker/consul-e2e-framework/internal/config"
)

// Status prints the pods of the Consul namespace together with their ready
// state. Handy when a suite run reports the cluster as not converged.
func (Deploy) Status() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fmt.Printf("Pods in namespace %s:\n", cfg.Consul.Namespace)
	_, err = script.NewPipe().
		Exec(fmt.Sprintf("kubectl get pods -n %s -o json", cfg.Consul.Namespace)).
		JQ(`.items[] | .metadata.name + " " + ([.status.conditions[]? | select(.type == "Ready") | .status] | join(""))`).
		Stdout()
	return err
}
