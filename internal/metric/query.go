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

// Package metric builds and executes the HTTP request used to capture one
// (metric, version) value, then extracts that value from the JSON response.
package metric

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	v2 "github.com/iter8-tools/iter8-analytics/api/v2"
	"github.com/iter8-tools/iter8-analytics/internal/interpolate"
	"github.com/iter8-tools/iter8-analytics/internal/secretcache"
)

// SecretResolver fetches decoded secret field data for interpolation and basic
// auth. *secretcache.Cache satisfies this.
type SecretResolver interface {
	Get(ctx context.Context, ref string) (map[string]string, error)
}

var _ SecretResolver = (*secretcache.Cache)(nil)

// BuildRequest resolves URL, headers, basic auth, query parameters and body
// for one (metric, version) pair and returns the HTTP request ready to send.
func BuildRequest(ctx context.Context, secrets SecretResolver, m v2.MetricResource, version v2.VersionDetail, startTime time.Time) (*http.Request, error) {
	var secretData map[string]string
	if m.Secret != "" {
		var err error
		secretData, err = secrets.Get(ctx, m.Secret)
		if err != nil {
			return nil, fmt.Errorf("fetching secret for metric: %w", err)
		}
	}

	url, err := buildURL(m, secretData)
	if err != nil {
		return nil, err
	}

	args := templateArgs(version, startTime)

	method := http.MethodGet
	if m.Method == v2.MethodPOST {
		method = http.MethodPost
	}

	var bodyReader *bytes.Reader
	if m.Body != "" {
		body, err := buildBody(m, args)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(body)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	if err := applyParams(req, m, args); err != nil {
		return nil, err
	}

	if err := applyHeaders(req, m, secretData); err != nil {
		return nil, err
	}

	if m.AuthType == v2.AuthTypeBasic {
		if err := applyBasicAuth(req, secretData); err != nil {
			return nil, err
		}
	}

	if m.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

func buildURL(m v2.MetricResource, secretData map[string]string) (string, error) {
	if m.Secret == "" {
		return m.URLTemplate, nil
	}
	return interpolate.Interpolate(m.URLTemplate, secretData)
}

// templateArgs builds the argument map shared by params and body interpolation:
// the version name, its variables, and elapsedTime as a bare decimal integer.
func templateArgs(version v2.VersionDetail, startTime time.Time) map[string]string {
	args := make(map[string]string, len(version.Variables)+2)
	args["name"] = version.Name
	for _, v := range version.Variables {
		args[v.Name] = v.Value
	}
	elapsed := int64(time.Since(startTime) / time.Second)
	args["elapsedTime"] = strconv.FormatInt(elapsed, 10)
	return args
}

func applyParams(req *http.Request, m v2.MetricResource, args map[string]string) error {
	if len(m.Params) == 0 {
		return nil
	}

	q := req.URL.Query()
	any := false
	for _, p := range m.Params {
		value, err := interpolate.Interpolate(p.Value, args)
		if err != nil {
			return err
		}
		if value == "" {
			continue
		}
		q.Set(p.Name, value)
		any = true
	}
	if any {
		req.URL.RawQuery = q.Encode()
	}
	return nil
}

func applyHeaders(req *http.Request, m v2.MetricResource, secretData map[string]string) error {
	if len(m.HeaderTemplates) == 0 {
		return nil
	}

	interpolateHeaders := (m.AuthType == v2.AuthTypeBearer || m.AuthType == v2.AuthTypeAPIKey) && m.Secret != ""

	for _, h := range m.HeaderTemplates {
		value := h.Value
		if interpolateHeaders {
			var err error
			value, err = interpolate.Interpolate(h.Value, secretData)
			if err != nil {
				return err
			}
		}
		req.Header.Set(h.Name, value)
	}
	return nil
}

func applyBasicAuth(req *http.Request, secretData map[string]string) error {
	username, okU := secretData["username"]
	password, okP := secretData["password"]
	if !okU || !okP {
		return fmt.Errorf("basic auth requires a secret with username and password fields")
	}
	req.SetBasicAuth(username, password)
	return nil
}

func buildBody(m v2.MetricResource, args map[string]string) ([]byte, error) {
	rendered, err := interpolate.Interpolate(m.Body, args)
	if err != nil {
		return nil, err
	}

	var v interface{}
	if err := json.Unmarshal([]byte(rendered), &v); err != nil {
		return nil, fmt.Errorf("metric body is not valid JSON after interpolation: %w", err)
	}
	return []byte(rendered), nil
}
