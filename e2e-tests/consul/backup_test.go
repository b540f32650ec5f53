// SPDX-FileCopyrightText: 2025 NetCracker Technology Corporation
//
// SPDX-License-Identifier: Apache-2.0

package consul_test

import (
	"context"
	"errors"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/netcracker/consul-e2e-framework/internal/backup"
)

var _ = Describe("Backup and restore", Label(labelBackup), Ordered, func() {
	var (
		data     testData
		backupID string
	)

	BeforeAll(func() {
		if !cfg.Backup.Configured() {
			Skip("backup daemon is not configured, set CONSUL_BACKUP_DAEMON_HOST")
		}
		Expect(cfg.Backup.Validate()).To(Succeed())
		Expect(daemon.Health(context.Background())).To(Succeed(), "backup daemon must be reachable")

		data = newTestData()
	})

	It("performs a full backup", func() {
		By("storing test data to be captured by the backup")
		Expect(cluster.Put(data.Key, data.Value)).To(Succeed())

		By("triggering a full backup and waiting for completion")
		var err error
		backupID, err = daemon.Create(context.Background())
		Expect(err).ToNot(HaveOccurred())
		Expect(backupID).ToNot(BeEmpty())

		Expect(daemon.WaitCompleted(context.Background(), backupID, false)).To(Succeed())
	})

	It("restores test data from the backup", func() {
		By("overwriting the stored value")
		Expect(cluster.Put(data.Key, data.UpdatedValue)).To(Succeed())

		By("restoring the backup and waiting for the task to finish")
		task, err := daemon.Restore(context.Background(), backupID, []string{cfg.Backup.Datacenter})
		Expect(err).ToNot(HaveOccurred())
		Expect(daemon.WaitRestored(context.Background(), task)).To(Succeed())

		By("verifying the original value is back")
		value, err := cluster.Get(data.Key)
		Expect(err).ToNot(HaveOccurred())
		Expect(value).To(Equal(data.Value))

		Expect(cluster.Delete(data.Key, false)).To(Succeed())
	})

	It("performs a granular backup scoped to the datacenter", func() {
		var err error
		backupID, err = daemon.CreateGranular(context.Background(), []string{cfg.Backup.Datacenter})
		Expect(err).ToNot(HaveOccurred())

		Expect(daemon.WaitCompleted(context.Background(), backupID, true)).To(Succeed())

		b, err := daemon.Find(context.Background(), backupID)
		Expect(err).ToNot(HaveOccurred())
		Expect(b.Granular).To(BeTrue(), "backup must be marked as granular")
	})

	It("evicts a backup by id", func() {
		Expect(daemon.Evict(context.Background(), backupID)).To(Succeed())

		ids, err := daemon.List(context.Background())
		Expect(err).ToNot(HaveOccurred())
		Expect(ids).ToNot(ContainElement(backupID), "evicted backup must disappear from the list")
	})

	It("rejects unauthenticated backup requests with 401", func() {
		_, err := daemon.Unauthenticated().Create(context.Background())
		Expect(err).To(HaveOccurred())

		apiErr := new(backup.APIError)
		Expect(errors.As(err, &apiErr)).To(BeTrue(), "error should carry the response status")
		Expect(apiErr.StatusCode).To(Equal(http.StatusUnauthorized))
	})
})
