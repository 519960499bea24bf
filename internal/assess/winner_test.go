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

package assess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v2 "github.com/iter8-tools/iter8-analytics/api/v2"
)

func TestWinnerS1CanaryWinsWhenFeasible(t *testing.T) {
	versions := []v2.VersionDetail{{Name: "default"}, {Name: "canary"}}
	assessments := v2.VersionAssessments{Data: map[string][]bool{
		"default": {true},
		"canary":  {true},
	}}
	strategy := v2.Strategy{TestingPattern: v2.TestingPatternCanary}

	got := Winner(strategy, nil, versions, assessments, v2.AggregatedMetrics{})
	require.True(t, got.Data.WinnerFound)
	assert.Equal(t, "canary", got.Data.Winner)
	assert.Equal(t, []string{"canary"}, got.Data.BestVersions)
}

func TestWinnerCanaryFallsBackToBaseline(t *testing.T) {
	versions := []v2.VersionDetail{{Name: "default"}, {Name: "canary"}}
	assessments := v2.VersionAssessments{Data: map[string][]bool{
		"default": {true},
		"canary":  {false},
	}}
	strategy := v2.Strategy{TestingPattern: v2.TestingPatternCanary}

	got := Winner(strategy, nil, versions, assessments, v2.AggregatedMetrics{})
	require.True(t, got.Data.WinnerFound)
	assert.Equal(t, "default", got.Data.Winner)
}

func TestWinnerCanaryNoneFeasible(t *testing.T) {
	versions := []v2.VersionDetail{{Name: "default"}, {Name: "canary"}}
	assessments := v2.VersionAssessments{Data: map[string][]bool{
		"default": {false},
		"canary":  {false},
	}}
	strategy := v2.Strategy{TestingPattern: v2.TestingPatternCanary}

	got := Winner(strategy, nil, versions, assessments, v2.AggregatedMetrics{})
	assert.False(t, got.Data.WinnerFound)
	assert.Empty(t, got.Data.BestVersions)
}

func TestWinnerS2ABNRewardTieBreak(t *testing.T) {
	versions := []v2.VersionDetail{{Name: "default"}, {Name: "canary1"}, {Name: "canary2"}}
	assessments := v2.VersionAssessments{Data: map[string][]bool{
		"default": {true}, "canary1": {true}, "canary2": {true},
	}}
	metrics := v2.AggregatedMetrics{Data: map[string]v2.MetricData{
		"business-revenue": {Data: map[string]v2.MetricValue{
			"default":  {Value: f(323.32)},
			"canary1":  {Value: f(3343.2)},
			"canary2":  {Value: f(2326.2)},
		}},
	}}
	criteria := &v2.Criteria{Rewards: []v2.Reward{{Metric: "business-revenue", PreferredDirection: v2.DirectionHigh}}}
	strategy := v2.Strategy{TestingPattern: v2.TestingPatternABN}

	got := Winner(strategy, criteria, versions, assessments, metrics)
	require.True(t, got.Data.WinnerFound)
	assert.Equal(t, "canary1", got.Data.Winner)
	assert.Equal(t, []string{"canary1"}, got.Data.BestVersions)
}

func TestWinnerS3Conformance(t *testing.T) {
	versions := []v2.VersionDetail{{Name: "default"}}
	assessments := v2.VersionAssessments{Data: map[string][]bool{"default": {true}}}
	strategy := v2.Strategy{TestingPattern: v2.TestingPatternConformance}

	got := Winner(strategy, nil, versions, assessments, v2.AggregatedMetrics{})
	require.True(t, got.Data.WinnerFound)
	assert.Equal(t, "default", got.Data.Winner)
	assert.Equal(t, []string{"default"}, got.Data.BestVersions)
}

func TestWinnerS4ABMissingRewardNoWinner(t *testing.T) {
	versions := []v2.VersionDetail{{Name: "default"}, {Name: "canary"}}
	assessments := v2.VersionAssessments{Data: map[string][]bool{"default": {true}, "canary": {true}}}
	strategy := v2.Strategy{TestingPattern: v2.TestingPatternAB}

	got := Winner(strategy, &v2.Criteria{}, versions, assessments, v2.AggregatedMetrics{})
	assert.False(t, got.Data.WinnerFound)
	assert.NotEmpty(t, got.Messages)
}

func TestWinnerRewardTieYieldsMultipleBestVersionsNoWinner(t *testing.T) {
	versions := []v2.VersionDetail{{Name: "default"}, {Name: "canary1"}, {Name: "canary2"}}
	assessments := v2.VersionAssessments{Data: map[string][]bool{
		"default": {true}, "canary1": {true}, "canary2": {true},
	}}
	metrics := v2.AggregatedMetrics{Data: map[string]v2.MetricData{
		"reward": {Data: map[string]v2.MetricValue{
			"default": {Value: f(1)}, "canary1": {Value: f(5)}, "canary2": {Value: f(5)},
		}},
	}}
	criteria := &v2.Criteria{Rewards: []v2.Reward{{Metric: "reward", PreferredDirection: v2.DirectionHigh}}}
	strategy := v2.Strategy{TestingPattern: v2.TestingPatternAB}

	got := Winner(strategy, criteria, versions, assessments, metrics)
	assert.False(t, got.Data.WinnerFound)
	assert.ElementsMatch(t, []string{"canary1", "canary2"}, got.Data.BestVersions)
}
