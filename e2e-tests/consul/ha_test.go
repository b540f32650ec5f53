// SPDX-FileCopyrightText: 2025 NetCracker Technology Corporation
//
// SPDX-License-Identifier: Apache-2.0

package consul_test

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/netcracker/consul-e2e-framework/internal/consulcli"
)

const (
	// The Consul HTTP gateway rejects KV values above 512KiB.
	oversizedValueLength = 512*1024 + 1

	reelectionTimeout  = 50 * time.Second
	reelectionInterval = 5 * time.Second
	stabilizeTimeout   = 60 * time.Second
	stabilizeInterval  = 5 * time.Second
)

var _ = Describe("Consul high availability", Label(labelHa), func() {
	Describe("large value handling", Ordered, func() {
		var (
			data      testData
			folderKey string
		)

		BeforeAll(func() {
			data = newTestData()
			folderKey = "test_folder/" + data.Key
		})

		It("rejects a value above the KV size limit with 413", func() {
			status, err := cluster.PutRaw(context.Background(), folderKey, strings.Repeat("x", oversizedValueLength))
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusRequestEntityTooLarge))
		})

		It("accepts a normal value on the same key afterwards", func() {
			status, err := cluster.PutRaw(context.Background(), folderKey, data.Value)
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))

			value, err := cluster.Get(folderKey)
			Expect(err).ToNot(HaveOccurred())
			Expect(value).To(Equal(data.Value))
		})

		AfterAll(func() {
			Expect(cluster.Delete("test_folder", true)).To(Succeed())
		})
	})

	Describe("leader failover", Ordered, func() {
		var (
			data      testData
			oldLeader string
			newLeader string
		)

		BeforeAll(func() {
			requireReplicas(3)
			data = newTestData()

			var err error
			oldLeader, err = cluster.Leader()
			Expect(err).ToNot(HaveOccurred())
			Expect(oldLeader).ToNot(BeEmpty())
		})

		It("keeps serving CRUD before the failover", func() {
			Expect(cluster.Put(data.Key, data.Value)).To(Succeed())

			value, err := cluster.Get(data.Key)
			Expect(err).ToNot(HaveOccurred())
			Expect(value).To(Equal(data.Value))

			Expect(cluster.Put(data.Key, data.UpdatedValue)).To(Succeed())
			value, err = cluster.Get(data.Key)
			Expect(err).ToNot(HaveOccurred())
			Expect(value).To(Equal(data.UpdatedValue))

			Expect(cluster.Delete(data.Key, false)).To(Succeed())
		})

		It("elects a new leader after the leader pod is deleted", func() {
			By("deleting the current leader pod")
			leaderIP := consulcli.TrimPort(oldLeader)
			Expect(kube.DeletePodByIP(context.Background(), cfg.Consul.Namespace, leaderIP)).To(Succeed())

			By("waiting for a new leader to be elected")
			Eventually(func() error {
				leader, err := cluster.Leader()
				if err != nil {
					return err
				}
				if leader == "" || leader == oldLeader {
					return fmt.Errorf("leader not reelected yet, current %q", leader)
				}
				newLeader = leader
				return nil
			}, reelectionTimeout, reelectionInterval).Should(Succeed(), "a new leader should be elected")

			By("verifying the new leader is a distinct member of the peer set")
			peers, err := cluster.Peers()
			Expect(err).ToNot(HaveOccurred())
			Expect(consulcli.IsLeaderReelected(newLeader, oldLeader, peers)).To(BeTrue(),
				"new leader %q must be a peer different from %q", newLeader, oldLeader)
		})

		It("serves CRUD operations after the failover", func() {
			Eventually(func() error {
				if err := cluster.Put(data.Key, data.Value); err != nil {
					return err
				}
				value, err := cluster.Get(data.Key)
				if err != nil {
					return err
				}
				if value != data.Value {
					return fmt.Errorf("read %q, want %q", value, data.Value)
				}
				return cluster.Delete(data.Key, false)
			}, stabilizeTimeout, stabilizeInterval).Should(Succeed(), "cluster should stabilize after failover")
		})
	})
})
