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

// Package assess turns aggregated metric values into objective-satisfaction
// vectors and, from those, a winner. Both stages are pure functions of their
// inputs: no I/O, no shared state.
package assess

import (
	"fmt"

	v2 "github.com/iter8-tools/iter8-analytics/api/v2"
)

// Versions produces the versions-to-satisfaction table described by an
// experiment's criteria. A version is feasible only when every objective bit
// is true. When criteria or its objectives are absent, the returned table has
// no objectives and every version is feasible downstream.
func Versions(criteria *v2.Criteria, metrics v2.AggregatedMetrics, versions []v2.VersionDetail) v2.VersionAssessments {
	out := v2.VersionAssessments{Data: map[string][]bool{}}
	for _, ver := range versions {
		out.Data[ver.Name] = nil
	}

	if criteria == nil || len(criteria.Objectives) == 0 {
		return out
	}

	for _, obj := range criteria.Objectives {
		data, ok := metrics.Data[obj.Metric]
		if !ok {
			out.Messages.Warning(fmt.Sprintf("objective references unknown metric %q", obj.Metric))
			for _, ver := range versions {
				out.Data[ver.Name] = append(out.Data[ver.Name], false)
			}
			continue
		}

		for _, ver := range versions {
			value := data.Data[ver.Name].Value
			if value == nil {
				out.Messages.Warning(fmt.Sprintf("metric %q has no value for version %q", obj.Metric, ver.Name))
				out.Data[ver.Name] = append(out.Data[ver.Name], false)
				continue
			}
			out.Data[ver.Name] = append(out.Data[ver.Name], satisfies(obj, *value))
		}
	}

	return out
}

func satisfies(obj v2.Objective, value float64) bool {
	if obj.UpperLimit != nil && value > *obj.UpperLimit {
		return false
	}
	if obj.LowerLimit != nil && value < *obj.LowerLimit {
		return false
	}
	return true
}

// Feasible reports whether versionName's assessment vector is all-true (or the table
// has no objectives, in which case every version is feasible).
func Feasible(assessments v2.VersionAssessments, versionName string) bool {
	bits := assessments.Data[versionName]
	for _, b := range bits {
		if !b {
			return false
		}
	}
	return true
}

// FeasibleSet returns, in versions order, the names of every feasible version.
func FeasibleSet(assessments v2.VersionAssessments, versions []v2.VersionDetail) []string {
	var out []string
	for _, ver := range versions {
		if Feasible(assessments, ver.Name) {
			out = append(out, ver.Name)
		}
	}
	return out
}
