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
	"fmt"
	"math"

	v2 "github.com/iter8-tools/iter8-analytics/api/v2"
)

// Winner selects a winning version per the experiment's testing pattern.
// versions is the ordered [baseline, candidates...] list; assessments and
// metrics are the outputs of earlier pipeline stages.
func Winner(strategy v2.Strategy, criteria *v2.Criteria, versions []v2.VersionDetail, assessments v2.VersionAssessments, metrics v2.AggregatedMetrics) v2.WinnerAssessment {
	switch strategy.TestingPattern {
	case v2.TestingPatternConformance:
		return conformanceWinner(versions, assessments)
	case v2.TestingPatternCanary, v2.TestingPatternBlueGreen:
		return candidateWinner(versions, assessments)
	case v2.TestingPatternAB, v2.TestingPatternABN:
		return rewardWinner(criteria, versions, assessments, metrics)
	default:
		out := v2.WinnerAssessment{}
		out.Messages.Error(fmt.Sprintf("unknown testing pattern %q", strategy.TestingPattern))
		return out
	}
}

func conformanceWinner(versions []v2.VersionDetail, assessments v2.VersionAssessments) v2.WinnerAssessment {
	out := v2.WinnerAssessment{Data: v2.WinnerAssessmentData{BestVersions: []string{}}}
	if len(versions) == 0 {
		return out
	}
	baseline := versions[0].Name
	if Feasible(assessments, baseline) {
		out.Data.WinnerFound = true
		out.Data.Winner = baseline
		out.Data.BestVersions = []string{baseline}
	}
	return out
}

func candidateWinner(versions []v2.VersionDetail, assessments v2.VersionAssessments) v2.WinnerAssessment {
	out := v2.WinnerAssessment{Data: v2.WinnerAssessmentData{BestVersions: []string{}}}
	if len(versions) == 0 {
		return out
	}
	baseline := versions[0].Name

	var winner string
	switch {
	case len(versions) > 1 && Feasible(assessments, versions[1].Name):
		winner = versions[1].Name
	case Feasible(assessments, baseline):
		winner = baseline
	}

	if winner != "" {
		out.Data.WinnerFound = true
		out.Data.Winner = winner
		out.Data.BestVersions = []string{winner}
	}
	return out
}

func rewardWinner(criteria *v2.Criteria, versions []v2.VersionDetail, assessments v2.VersionAssessments, metrics v2.AggregatedMetrics) v2.WinnerAssessment {
	out := v2.WinnerAssessment{Data: v2.WinnerAssessmentData{BestVersions: []string{}}}

	if criteria == nil || len(criteria.Rewards) == 0 {
		out.Messages.Warning("no reward metric configured; cannot select a winner")
		return out
	}
	reward := criteria.Rewards[0]
	if reward.PreferredDirection == "" {
		out.Messages.Error("reward metric has no preferredDirection")
		return out
	}

	data, ok := metrics.Data[reward.Metric]
	if !ok {
		out.Messages.Warning(fmt.Sprintf("reward metric %q has no aggregated data", reward.Metric))
		return out
	}

	topReward := math.Inf(-1)
	if reward.PreferredDirection == v2.DirectionLow {
		topReward = math.Inf(1)
	}
	var bestVersions []string

	for _, ver := range versions {
		if !Feasible(assessments, ver.Name) {
			continue
		}
		value := data.Data[ver.Name].Value
		if value == nil {
			continue
		}

		switch {
		case *value == topReward:
			bestVersions = append(bestVersions, ver.Name)
		case better(*value, topReward, reward.PreferredDirection):
			topReward = *value
			bestVersions = []string{ver.Name}
		}
	}

	if bestVersions == nil {
		bestVersions = []string{}
	}
	out.Data.BestVersions = bestVersions
	if len(bestVersions) == 1 {
		out.Data.WinnerFound = true
		out.Data.Winner = bestVersions[0]
	}
	return out
}

func better(value, current float64, direction v2.Direction) bool {
	if direction == v2.DirectionLow {
		return value < current
	}
	return value > current
}
