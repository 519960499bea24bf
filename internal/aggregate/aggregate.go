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

// Package aggregate fans out the (metric, version) fetch product and collects
// the results into an AggregatedMetrics value. No ordering among the fetches
// is observable; only the completed, joined result matters to later stages.
package aggregate

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	v2 "github.com/iter8-tools/iter8-analytics/api/v2"
	"github.com/iter8-tools/iter8-analytics/internal/metric"
)

// FetchObserver records the outcome and latency of one metric-backend fetch.
// *obs.Metrics satisfies this; keeping the dependency as a narrow interface
// here avoids internal/aggregate importing internal/obs.
type FetchObserver interface {
	ObserveFetch(duration time.Duration, err error)
}

// task is one (metric, version) unit of work. startTime is the experiment's
// status.StartTime, threaded through to the query builder so elapsedTime is
// computed relative to the experiment, not to the moment of the HTTP call.
type task struct {
	metricName string
	metric     v2.MetricResource
	version    v2.VersionDetail
	startTime  time.Time
}

// result is the outcome of one task.
type result struct {
	metricName  string
	versionName string
	value       *float64
	warning     string
}

// Aggregate runs the Query Builder and Fetcher for every (metric, version)
// pair named in status, bounding concurrency to len(status.Metrics), and joins
// the results. If startTime is in the future the aggregator reports an error
// and returns an empty data map without attempting any fetches. observer may
// be nil; when set, it is called once per fetch with its latency and error.
func Aggregate(ctx context.Context, secrets metric.SecretResolver, client *metric.Client, status v2.Status, versions []v2.VersionDetail, observer FetchObserver) (v2.AggregatedMetrics, error) {
	out := v2.AggregatedMetrics{Data: map[string]v2.MetricData{}}

	if status.StartTime.After(time.Now()) {
		out.Messages.Error("startTime is in the future")
		return out, nil
	}

	for _, m := range status.Metrics {
		out.Data[m.Name] = v2.MetricData{Data: map[string]v2.MetricValue{}}
	}

	if len(status.Metrics) == 0 || len(versions) == 0 {
		return out, nil
	}

	var tasks []task
	for _, m := range status.Metrics {
		for _, v := range versions {
			tasks = append(tasks, task{metricName: m.Name, metric: m.MetricObj, version: v, startTime: status.StartTime})
		}
	}

	results := make([]result, len(tasks))

	sem := make(chan struct{}, concurrencyLimit(len(status.Metrics)))
	g, gctx := errgroup.WithContext(ctx)

	for i, t := range tasks {
		i, t := i, t
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			results[i] = fetchOne(gctx, secrets, client, observer, t)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return v2.AggregatedMetrics{}, fmt.Errorf("aggregating metrics: %w", err)
	}

	for _, r := range results {
		md := out.Data[r.metricName]
		md.Data[r.versionName] = v2.MetricValue{Value: r.value}
		if r.warning != "" {
			out.Messages.Warning(r.warning)
		}
	}

	return out, nil
}

func fetchOne(ctx context.Context, secrets metric.SecretResolver, client *metric.Client, observer FetchObserver, t task) result {
	req, err := metric.BuildRequest(ctx, secrets, t.metric, t.version, t.startTime)
	if err != nil {
		return result{
			metricName:  t.metricName,
			versionName: t.version.Name,
			warning:     fmt.Sprintf("metric %q version %q: %s", t.metricName, t.version.Name, err),
		}
	}

	fetchStart := time.Now()
	value, err := client.Fetch(ctx, req, t.metric.JQExpression)
	if observer != nil {
		observer.ObserveFetch(time.Since(fetchStart), err)
	}
	if err != nil {
		return result{
			metricName:  t.metricName,
			versionName: t.version.Name,
			warning:     fmt.Sprintf("metric %q version %q: %s", t.metricName, t.version.Name, err),
		}
	}

	v := value
	return result{metricName: t.metricName, versionName: t.version.Name, value: &v}
}

// concurrencyLimit bounds the number of in-flight fetches. len(metrics) is the
// suggested default fan-out width from the spec; never less than one.
func concurrencyLimit(numMetrics int) int {
	if numMetrics < 1 {
		return 1
	}
	return numMetrics
}
