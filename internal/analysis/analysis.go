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

// Package analysis runs the full assessment pipeline in strict sequence and
// attaches the result to an experiment resource.
package analysis

import (
	"context"

	v2 "github.com/iter8-tools/iter8-analytics/api/v2"
	"github.com/iter8-tools/iter8-analytics/internal/aggregate"
	"github.com/iter8-tools/iter8-analytics/internal/assess"
	"github.com/iter8-tools/iter8-analytics/internal/metric"
	"github.com/iter8-tools/iter8-analytics/internal/weight"
)

// Config holds advanced parameters for one analysis run.
type Config struct {
	// ExplorationTrafficPercentage governs the share of traffic devoted to
	// exploration rather than exploitation. Zero means "use the default".
	ExplorationTrafficPercentage float64
}

// Run executes the aggregated-metrics, version-assessment, winner-assessment,
// and weight-computation stages in order, then returns the populated
// Analysis. experiment is read but never mutated; the caller attaches the
// result to status.analysis.
func Run(ctx context.Context, secrets metric.SecretResolver, client *metric.Client, cfg Config, observer aggregate.FetchObserver, experiment v2.ExperimentResource) (v2.Analysis, error) {
	versions := experiment.Spec.VersionInfo.Versions()

	aggregated, err := aggregate.Aggregate(ctx, secrets, client, experiment.Status, versions, observer)
	if err != nil {
		return v2.Analysis{}, err
	}

	versionAssessments := assess.Versions(experiment.Spec.Criteria, aggregated, versions)

	winner := assess.Winner(experiment.Spec.Strategy, experiment.Spec.Criteria, versions, versionAssessments, aggregated)

	explorationPct := cfg.ExplorationTrafficPercentage
	if explorationPct == 0 {
		explorationPct = weight.DefaultExplorationTrafficPercentage
	}
	weights := weight.Compute(experiment.Spec.Strategy, versions, winner.Data.BestVersions, experiment.Status.CurrentWeightDistribution, explorationPct)

	return v2.Analysis{
		AggregatedMetrics:  aggregated,
		VersionAssessments: versionAssessments,
		WinnerAssessment:   winner,
		Weights:            weights,
	}, nil
}
