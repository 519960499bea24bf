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

package metric

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/itchyny/gojq"

	"github.com/iter8-tools/iter8-analytics/internal/version"
)

// Timeout bounds every outbound metric-backend request. There are no retries:
// one fetch attempt yields exactly one (value, error).
const Timeout = 2 * time.Second

// Client is a metric-backend HTTP client. The zero value is ready to use.
type Client struct {
	HTTPClient *http.Client
}

// NewClient returns a Client whose transport stamps outbound requests with
// this binary's User-Agent.
func NewClient() *Client {
	return &Client{
		HTTPClient: &http.Client{
			Transport: version.UserAgent("iter8-analytics", "", http.DefaultTransport),
		},
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// Fetch executes req with a bounded timeout, decodes the JSON response, and
// extracts a single numeric value using jqExpression. A non-2xx response,
// network error, non-JSON body, or a jq result that isn't a finite number are
// all reported as errors; there is no partial-success outcome.
func (c *Client) Fetch(ctx context.Context, req *http.Request, jqExpression string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	resp, err := c.httpClient().Do(req.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("executing metric request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("metric backend returned status %d", resp.StatusCode)
	}

	var data interface{}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return 0, fmt.Errorf("decoding metric response as JSON: %w", err)
	}

	return extract(data, jqExpression)
}

// extract applies a JQ-style expression to parsed JSON data and returns the
// first result, which must be a finite, non-NaN number.
func extract(data interface{}, jqExpression string) (float64, error) {
	query, err := gojq.Parse(jqExpression)
	if err != nil {
		return 0, fmt.Errorf("parsing jq expression %q: %w", jqExpression, err)
	}

	iter := query.Run(data)
	v, ok := iter.Next()
	if !ok {
		return 0, fmt.Errorf("jq expression %q produced no results", jqExpression)
	}
	if err, ok := v.(error); ok {
		return 0, fmt.Errorf("evaluating jq expression %q: %w", jqExpression, err)
	}

	num, ok := toFloat(v)
	if !ok || math.IsNaN(num) || math.IsInf(num, 0) {
		return 0, fmt.Errorf("jq expression %q did not yield a finite number", jqExpression)
	}
	return num, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
