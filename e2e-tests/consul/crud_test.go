// SPDX-FileCopyrightText: 2025 NetCracker Technology Corporation
//
// SPDX-License-Identifier: Apache-2.0

package consul_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/netcracker/consul-e2e-framework/internal/consulcli"
)

var _ = Describe("Consul KV CRUD", Label(labelCrud), func() {
	var data testData

	BeforeEach(func() {
		data = newTestData()
	})

	Describe("simple keys", Ordered, func() {
		var data testData

		BeforeAll(func() {
			data = newTestData()
		})

		It("stores a key-value pair", func() {
			Expect(cluster.Put(data.Key, data.Value)).To(Succeed())
		})

		It("reads the stored value back", func() {
			value, err := cluster.Get(data.Key)
			Expect(err).ToNot(HaveOccurred())
			Expect(value).To(Equal(data.Value))
		})

		It("updates the value under the same key", func() {
			Expect(cluster.Put(data.Key, data.UpdatedValue)).To(Succeed())

			value, err := cluster.Get(data.Key)
			Expect(err).ToNot(HaveOccurred())
			Expect(value).To(Equal(data.UpdatedValue))
		})

		It("deletes the key", func() {
			Expect(cluster.Delete(data.Key, false)).To(Succeed())

			_, err := cluster.Get(data.Key)
			Expect(errors.Is(err, consulcli.ErrKeyNotFound)).To(BeTrue(), "deleted key must not be readable")
		})
	})

	Describe("keys under a path", Ordered, func() {
		var data testData

		BeforeAll(func() {
			data = newTestData()
		})

		It("stores a value under a path-scoped key", func() {
			Expect(cluster.Put(data.PathKey, data.PathValue)).To(Succeed())
		})

		It("reads the path-scoped value back", func() {
			value, err := cluster.Get(data.PathKey)
			Expect(err).ToNot(HaveOccurred())
			Expect(value).To(Equal(data.PathValue))
		})

		It("updates the path-scoped value", func() {
			Expect(cluster.Put(data.PathKey, data.UpdatedPathValue)).To(Succeed())

			value, err := cluster.Get(data.PathKey)
			Expect(err).ToNot(HaveOccurred())
			Expect(value).To(Equal(data.UpdatedPathValue))
		})

		It("deletes the path-scoped key", func() {
			Expect(cluster.Delete(data.PathKey, false)).To(Succeed())

			_, err := cluster.Get(data.PathKey)
			Expect(errors.Is(err, consulcli.ErrKeyNotFound)).To(BeTrue(), "deleted key must not be readable")
		})
	})

	It("removes a whole prefix recursively", func() {
		Expect(cluster.Put(data.PathKey, data.PathValue)).To(Succeed())
		Expect(cluster.Delete("path_test_key", true)).To(Succeed())

		_, err := cluster.Get(data.PathKey)
		Expect(errors.Is(err, consulcli.ErrKeyNotFound)).To(BeTrue())
	})
})
