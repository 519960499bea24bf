/*
Copyright 2020 GramLabs, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package secretcache provides a short-TTL, size-bounded cache over
// Kubernetes secret reads. Metric queries that authenticate against a secret
// backend hit the same (namespace, name) secret for every fetch in an
// iteration; caching avoids hammering the API server. A cached entry is served
// for at most ten seconds; an expired entry stays in memory until it is looked
// up again or pushed out by the size bound.
package secretcache

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
	"unicode"

	lru "github.com/hashicorp/golang-lru"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

const (
	// maxEntries bounds the number of distinct (namespace, name) secrets cached at once.
	maxEntries = 1024
	// ttl is how long a decoded secret stays valid before it must be re-read.
	ttl = 10 * time.Second

	serviceAccountNamespaceFile = "/var/run/secrets/kubernetes.io/serviceaccount/namespace"
)

// SecretReader reads a single namespaced Secret. kubernetes.Interface satisfies
// this through its CoreV1().Secrets(ns) client; it is narrowed here so tests
// can supply a fake without pulling in the full clientset surface.
type SecretReader interface {
	Get(ctx context.Context, namespace, name string) (*corev1.Secret, error)
}

// clientsetReader adapts a kubernetes.Interface to SecretReader.
type clientsetReader struct {
	clientset kubernetes.Interface
}

func (r clientsetReader) Get(ctx context.Context, namespace, name string) (*corev1.Secret, error) {
	return r.clientset.CoreV1().Secrets(namespace).Get(name, metav1.GetOptions{})
}

// Cache is a process-local, concurrency-safe cache of decoded secret data.
type Cache struct {
	reader SecretReader
	lru    *lru.Cache

	mu sync.Mutex

	// namespace is the current pod's namespace, discovered once on first use.
	namespaceOnce sync.Once
	namespace     string
	namespaceErr  error
	namespaceFile string

	// onLookup, when set, is called once per Get with whether the entry was
	// served from cache.
	onLookup func(hit bool)
}

// SetObserver registers a callback invoked once per Get with the cache hit/miss
// outcome. Intended for wiring a self-observability metrics collector.
func (c *Cache) SetObserver(onLookup func(hit bool)) {
	c.onLookup = onLookup
}

type entry struct {
	data    map[string]string
	expires time.Time
}

// New returns a Cache backed by the given Kubernetes clientset.
func New(clientset kubernetes.Interface) (*Cache, error) {
	return NewWithReader(clientsetReader{clientset: clientset})
}

// NewWithReader returns a Cache backed by an arbitrary SecretReader, primarily
// for testing.
func NewWithReader(reader SecretReader) (*Cache, error) {
	c, err := lru.New(maxEntries)
	if err != nil {
		return nil, err
	}
	return &Cache{
		reader:        reader,
		lru:           c,
		namespaceFile: serviceAccountNamespaceFile,
	}, nil
}

// key identifies a cached secret by namespace and name.
type key struct {
	namespace, name string
}

// Get resolves a "name" or "namespace/name" reference to its decoded,
// ASCII-string field data, using the cache when the entry is still fresh. A
// bare "name" resolves against the current pod's namespace.
func (c *Cache) Get(ctx context.Context, ref string) (map[string]string, error) {
	namespace, name, err := c.splitRef(ref)
	if err != nil {
		return nil, err
	}

	k := key{namespace: namespace, name: name}

	c.mu.Lock()
	if v, ok := c.lru.Get(k); ok {
		e := v.(entry)
		if time.Now().Before(e.expires) {
			c.mu.Unlock()
			c.observe(true)
			return e.data, nil
		}
		c.lru.Remove(k)
	}
	c.mu.Unlock()
	c.observe(false)

	data, err := c.fetch(ctx, namespace, name)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.lru.Add(k, entry{data: data, expires: time.Now().Add(ttl)})
	c.mu.Unlock()

	return data, nil
}

func (c *Cache) observe(hit bool) {
	if c.onLookup != nil {
		c.onLookup(hit)
	}
}

func (c *Cache) fetch(ctx context.Context, namespace, name string) (map[string]string, error) {
	sec, err := c.reader.Get(ctx, namespace, name)
	if err != nil {
		return nil, fmt.Errorf("reading secret %s/%s: %w", namespace, name, err)
	}

	data := make(map[string]string, len(sec.Data))
	for field, raw := range sec.Data {
		decoded, err := decodeASCII(raw)
		if err != nil {
			return nil, fmt.Errorf("secret %s/%s field %q is not ASCII-decodable: %w", namespace, name, field, err)
		}
		data[field] = decoded
	}
	return data, nil
}

// decodeASCII validates that raw bytes (already base64-decoded by client-go)
// consist entirely of ASCII bytes, then returns them as a string.
func decodeASCII(raw []byte) (string, error) {
	for _, b := range raw {
		if b > unicode.MaxASCII {
			return "", fmt.Errorf("invalid ASCII byte 0x%02x", b)
		}
	}
	return string(raw), nil
}

// splitRef splits a "name" or "namespace/name" secret reference, resolving a
// bare name against the current pod's namespace.
func (c *Cache) splitRef(ref string) (namespace, name string, err error) {
	parts := strings.SplitN(ref, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1], nil
	}

	ns, err := c.podNamespace()
	if err != nil {
		return "", "", err
	}
	return ns, parts[0], nil
}

func (c *Cache) podNamespace() (string, error) {
	c.namespaceOnce.Do(func() {
		b, err := os.ReadFile(c.namespaceFile)
		if err != nil {
			c.namespaceErr = fmt.Errorf("discovering pod namespace: %w", err)
			return
		}
		c.namespace = strings.TrimSpace(string(b))
	})
	return c.namespace, c.namespaceErr
}
