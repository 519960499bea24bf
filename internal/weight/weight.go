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

// Package weight mixes exploration and exploitation traffic distributions
// into the integer percentages served to each version. Pure function of its
// inputs; no I/O.
package weight

import (
	"sort"

	v2 "github.com/iter8-tools/iter8-analytics/api/v2"
)

// DefaultExplorationTrafficPercentage is used when the caller does not
// override it via configuration.
const DefaultExplorationTrafficPercentage = 5.0

// Compute returns the traffic-weight distribution for an experiment. It is
// inapplicable to conformance experiments, which have no traffic to split.
func Compute(strategy v2.Strategy, versions []v2.VersionDetail, bestVersions []string, previous []v2.VersionWeight, explorationTrafficPercentage float64) v2.Weights {
	out := v2.Weights{}

	if strategy.TestingPattern == v2.TestingPatternConformance {
		out.Messages.Info("weight computation is inapplicable to conformance experiments")
		return out
	}
	m := len(versions)
	if m == 0 {
		return out
	}

	exploration := uniform(m)
	exploitation := exploit(versions, bestVersions)

	epsilon := explorationTrafficPercentage / 100
	mix := make([]float64, m)
	for i := range mix {
		mix[i] = (epsilon*exploration[i] + (1-epsilon)*exploitation[i]) * 100
	}

	prev := previousWeights(previous, versions)

	constrained := mix
	if strategy.Weights != nil {
		constrained = constrain(mix, prev, *strategy.Weights)
	} else {
		out.Messages.Info("strategy.weights not set; skipping candidate weight constraints")
	}

	rounded := roundToHundred(constrained)

	out.Data = make([]v2.VersionWeight, m)
	for i, ver := range versions {
		out.Data[i] = v2.VersionWeight{Name: ver.Name, Value: rounded[i]}
	}
	return out
}

// uniform returns the exploration distribution: equal mass across all m versions.
func uniform(m int) []float64 {
	e := make([]float64, m)
	for i := range e {
		e[i] = 1.0 / float64(m)
	}
	return e
}

// exploit returns the exploitation distribution: mass split equally across
// bestVersions, or concentrated entirely on the baseline when bestVersions is
// empty.
func exploit(versions []v2.VersionDetail, bestVersions []string) []float64 {
	x := make([]float64, len(versions))
	if len(bestVersions) == 0 {
		if len(x) > 0 {
			x[0] = 1
		}
		return x
	}

	best := make(map[string]bool, len(bestVersions))
	for _, name := range bestVersions {
		best[name] = true
	}
	share := 1.0 / float64(len(bestVersions))
	for i, ver := range versions {
		if best[ver.Name] {
			x[i] = share
		}
	}
	return x
}

// previousWeights aligns the currentWeightDistribution with versions order,
// defaulting to all traffic on the baseline when absent.
func previousWeights(previous []v2.VersionWeight, versions []v2.VersionDetail) []float64 {
	p := make([]float64, len(versions))
	if len(previous) == 0 {
		if len(p) > 0 {
			p[0] = 100
		}
		return p
	}
	byName := make(map[string]float64, len(previous))
	for _, vw := range previous {
		byName[vw.Name] = float64(vw.Value)
	}
	for i, ver := range versions {
		p[i] = byName[ver.Name]
	}
	return p
}

// constrain clamps each candidate's increase over its previous weight and its
// absolute value, moving any excess mass back onto the baseline.
func constrain(mix, previous []float64, constraints v2.WeightsSpec) []float64 {
	out := make([]float64, len(mix))
	copy(out, mix)

	for i := 1; i < len(out); i++ {
		increase := out[i] - previous[i]
		excess := maxOf(0,
			increase-float64(constraints.MaxCandidateWeightIncrement),
			out[i]-float64(constraints.MaxCandidateWeight),
		)
		out[i] -= excess
		out[0] += excess
	}
	return out
}

func maxOf(values ...float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// roundToHundred performs deterministic largest-remainder rounding: each
// value is floored, then the floors with the largest fractional remainder
// receive the leftover units needed to sum to exactly 100. Ties are broken by
// earlier index first.
func roundToHundred(values []float64) []int {
	n := len(values)
	floors := make([]int, n)
	remainders := make([]float64, n)
	total := 0
	for i, v := range values {
		f := int(v)
		if float64(f) > v {
			f--
		}
		floors[i] = f
		remainders[i] = v - float64(f)
		total += f
	}

	leftover := 100 - total
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return remainders[order[a]] > remainders[order[b]]
	})

	out := make([]int, n)
	copy(out, floors)
	for i := 0; i < leftover && i < n; i++ {
		out[order[i]]++
	}
	return out
}
