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

package secretcache

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

type fakeReader struct {
	calls int
	data  map[string][]byte
	err   error
}

func (f *fakeReader) Get(_ context.Context, namespace, name string) (*corev1.Secret, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Namespace: namespace, Name: name},
		Data:       f.data,
	}, nil
}

func TestCacheGetCaches(t *testing.T) {
	reader := &fakeReader{data: map[string][]byte{"username": []byte("admin"), "password": []byte("secret")}}
	c, err := NewWithReader(reader)
	require.NoError(t, err)

	data, err := c.Get(context.Background(), "ns/creds")
	require.NoError(t, err)
	assert.Equal(t, "admin", data["username"])
	assert.Equal(t, "secret", data["password"])
	assert.Equal(t, 1, reader.calls)

	// second call within TTL must not hit the reader again
	_, err = c.Get(context.Background(), "ns/creds")
	require.NoError(t, err)
	assert.Equal(t, 1, reader.calls)
}

func TestCacheGetBareNameUsesPodNamespace(t *testing.T) {
	reader := &fakeReader{data: map[string][]byte{"token": []byte("abc")}}
	c, err := NewWithReader(reader)
	require.NoError(t, err)

	dir := t.TempDir()
	nsFile := dir + "/namespace"
	require.NoError(t, os.WriteFile(nsFile, []byte("my-namespace"), 0o600))
	c.namespaceFile = nsFile

	data, err := c.Get(context.Background(), "creds")
	require.NoError(t, err)
	assert.Equal(t, "abc", data["token"])
	assert.Equal(t, "my-namespace", c.namespace)
}

func TestCacheGetDecodeFailure(t *testing.T) {
	reader := &fakeReader{data: map[string][]byte{"token": {0xff, 0xfe}}}
	c, err := NewWithReader(reader)
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "ns/creds")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token")
}

func TestCacheGetObserverReportsHitAndMiss(t *testing.T) {
	reader := &fakeReader{data: map[string][]byte{"token": []byte("abc")}}
	c, err := NewWithReader(reader)
	require.NoError(t, err)

	var hits, misses int
	c.SetObserver(func(hit bool) {
		if hit {
			hits++
		} else {
			misses++
		}
	})

	_, err = c.Get(context.Background(), "ns/creds")
	require.NoError(t, err)
	_, err = c.Get(context.Background(), "ns/creds")
	require.NoError(t, err)

	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
}

func TestCacheGetReaderError(t *testing.T) {
	reader := &fakeReader{err: fmt.Errorf("not found")}
	c, err := NewWithReader(reader)
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "ns/creds")
	require.Error(t, err)
}
