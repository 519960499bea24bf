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

package analysis

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v2 "github.com/iter8-tools/iter8-analytics/api/v2"
	"github.com/iter8-tools/iter8-analytics/internal/metric"
)

type noSecrets struct{}

func (noSecrets) Get(context.Context, string) (map[string]string, error) { return nil, nil }

func TestRunS1CanarySatisfiesObjective(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("version") {
		case "default":
			_, _ = w.Write([]byte(`{"value": 419.2}`))
		case "canary":
			_, _ = w.Write([]byte(`{"value": 412.95}`))
		}
	}))
	defer srv.Close()

	experiment := v2.ExperimentResource{
		Spec: v2.Spec{
			Strategy: v2.Strategy{
				TestingPattern: v2.TestingPatternCanary,
				Weights:        &v2.WeightsSpec{MaxCandidateWeight: 100, MaxCandidateWeightIncrement: 10},
			},
			VersionInfo: v2.VersionInfo{
				Baseline:   v2.VersionDetail{Name: "default"},
				Candidates: []v2.VersionDetail{{Name: "canary"}},
			},
			Criteria: &v2.Criteria{Objectives: []v2.Objective{{Metric: "mean-latency", UpperLimit: f(420)}}},
		},
		Status: v2.Status{
			StartTime: time.Now().Add(-time.Hour),
			Metrics: []v2.NamedMetric{
				{Name: "mean-latency", MetricObj: v2.MetricResource{
					URLTemplate:  srv.URL,
					Params:       []v2.NamedValue{{Name: "version", Value: "$name"}},
					JQExpression: ".value",
				}},
			},
			CurrentWeightDistribution: []v2.VersionWeight{{Name: "default", Value: 95}, {Name: "canary", Value: 5}},
		},
	}

	client := &metric.Client{HTTPClient: srv.Client()}
	got, err := Run(context.Background(), noSecrets{}, client, Config{ExplorationTrafficPercentage: 5}, nil, experiment)
	require.NoError(t, err)

	assert.Equal(t, []bool{true}, got.VersionAssessments.Data["default"])
	assert.Equal(t, []bool{true}, got.VersionAssessments.Data["canary"])
	assert.True(t, got.WinnerAssessment.Data.WinnerFound)
	assert.Equal(t, "canary", got.WinnerAssessment.Data.Winner)
	assert.Equal(t, 85, got.Weights.Data[0].Value)
	assert.Equal(t, 15, got.Weights.Data[1].Value)
}

func f(v float64) *float64 { return &v }
