// SPDX-FileCopyrightText: 2025 NetCracker Technology Corporation
//
// SPDX-License-Identifier: Apache-2.0

// Package platform is the Kubernetes side of the framework: it inspects the
// Consul deployment and injects failures (pod deletion, scale to zero) that
// the HA and alerting suites assert on.
package platform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"

	"github.com/netcracker/consul-e2e-framework/internal/retry"
)

type Client struct {
	kube kubernetes.Interface
}

// NewClient builds a Kubernetes client from KUBECONFIG, falling back to
// ~/.kube/config and finally to the in-cluster service account.
func NewClient() (*Client, error) {
	cfg, err := restConfig()
	if err != nil {
		return nil, err
	}

	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("create Kubernetes client: %w", err)
	}
	return &Client{kube: clientset}, nil
}

// NewWithClientset wraps an existing clientset. Used by unit tests with the
// client-go fake.
func NewWithClientset(kube kubernetes.Interface) *Client {
	return &Client{kube: kube}
}

func restConfig() (*rest.Config, error) {
	kubeconfig := os.Getenv("KUBECONFIG")
	if kubeconfig == "" {
		if home := homedir.HomeDir(); home != "" {
			candidate := filepath.Join(home, ".kube", "config")
			if _, err := os.Stat(candidate); err == nil {
				kubeconfig = candidate
			}
		}
	}
	if kubeconfig != "" {
		cfg, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("load Kubernetes config from %s: %w", kubeconfig, err)
		}
		return cfg, nil
	}

	cfg, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("load in-cluster Kubernetes config: %w", err)
	}
	return cfg, nil
}

// PodByIP finds the pod in namespace holding the given pod IP.
func (c *Client) PodByIP(ctx context.Context, namespace, ip string) (*corev1.Pod, error) {
	pods, err := c.kube.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list pods in %s: %w", namespace, err)
	}
	for i := range pods.Items {
		if pods.Items[i].Status.PodIP == ip {
			return &pods.Items[i], nil
		}
	}
	return nil, fmt.Errorf("no pod with IP %s in namespace %s", ip, namespace)
}

// DeletePodByIP deletes the pod holding the given pod IP.
func (c *Client) DeletePodByIP(ctx context.Context, namespace, ip string) error {
	pod, err := c.PodByIP(ctx, namespace, ip)
	if err != nil {
		return err
	}

	log.Info().Str("pod", pod.Name).Str("ip", ip).Msg("deleting pod")
	if err := c.kube.CoreV1().Pods(namespace).Delete(ctx, pod.Name, metav1.DeleteOptions{}); err != nil {
		return fmt.Errorf("delete pod %s: %w", pod.Name, err)
	}
	return nil
}

// DeletePodsByIPs deletes every pod in the list concurrently. Used to take
// the whole server set down at once for the ConsulIsDown alert scenario.
func (c *Client) DeletePodsByIPs(ctx context.Context, namespace string, ips []string) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, ip := range ips {
		eg.Go(func() error {
			return c.DeletePodByIP(ctx, namespace, ip)
		})
	}
	return eg.Wait()
}

// StatefulSetReplicas returns the desired replica count.
func (c *Client) StatefulSetReplicas(ctx context.Context, namespace, name string) (int32, error) {
	sts, err := c.kube.AppsV1().StatefulSets(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return 0, fmt.Errorf("get statefulset %s: %w", name, err)
	}
	if sts.Spec.Replicas == nil {
		return 0, nil
	}
	return *sts.Spec.Replicas, nil
}

// StatefulSetReadyReplicas returns the number of ready replicas.
func (c *Client) StatefulSetReadyReplicas(ctx context.Context, namespace, name string) (int32, error) {
	sts, err := c.kube.AppsV1().StatefulSets(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return 0, fmt.Errorf("get statefulset %s: %w", name, err)
	}
	return sts.Status.ReadyReplicas, nil
}

// ScaleStatefulSet sets the desired replica count.
func (c *Client) ScaleStatefulSet(ctx context.Context, namespace, name string, replicas int32) error {
	sts, err := c.kube.AppsV1().StatefulSets(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return fmt.Errorf("get statefulset %s: %w", name, err)
	}

	sts.Spec.Replicas = &replicas
	if _, err := c.kube.AppsV1().StatefulSets(namespace).Update(ctx, sts, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("scale statefulset %s to %d: %w", name, replicas, err)
	}

	log.Info().Str("statefulset", name).Int32("replicas", replicas).Msg("scaled statefulset")
	return nil
}

// WaitStatefulSetReady blocks until every desired replica reports ready or
// ctx expires.
func (c *Client) WaitStatefulSetReady(ctx context.Context, namespace, name string) error {
	return retry.UntilItSucceeds(ctx, func() error {
		sts, err := c.kube.AppsV1().StatefulSets(namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return fmt.Errorf("get statefulset %s: %w", name, err)
		}
		desired := int32(0)
		if sts.Spec.Replicas != nil {
			desired = *sts.Spec.Replicas
		}
		if sts.Status.ReadyReplicas != desired {
			return fmt.Errorf("statefulset %s not ready: %d/%d replicas", name, sts.Status.ReadyReplicas, desired)
		}
		return nil
	}, 5*time.Second)
}

// ResourceImage returns the image of the named container in a deployment,
// statefulset or daemonset.
func (c *Client) ResourceImage(ctx context.Context, resourceType, name, namespace, container string) (string, error) {
	var spec corev1.PodSpec

	switch strings.ToLower(resourceType) {
	case "deployment":
		d, err := c.kube.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return "", fmt.Errorf("get deployment %s: %w", name, err)
		}
		spec = d.Spec.Template.Spec
	case "statefulset":
		s, err := c.kube.AppsV1().StatefulSets(namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return "", fmt.Errorf("get statefulset %s: %w", name, err)
		}
		spec = s.Spec.Template.Spec
	case "daemonset":
		d, err := c.kube.AppsV1().DaemonSets(namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return "", fmt.Errorf("get daemonset %s: %w", name, err)
		}
		spec = d.Spec.Template.Spec
	default:
		return "", fmt.Errorf("unsupported resource type %q", resourceType)
	}

	for _, c := range spec.Containers {
		if c.Name == container {
			return c.Image, nil
		}
	}
	return "", fmt.Errorf("container %q not found in %s/%s", container, resourceType, name)
}
