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

// Package httpapi exposes the analytics engine over HTTP: a single assessment
// endpoint and a health check.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-logr/logr"

	v2 "github.com/iter8-tools/iter8-analytics/api/v2"
	"github.com/iter8-tools/iter8-analytics/internal/analysis"
	"github.com/iter8-tools/iter8-analytics/internal/metric"
	"github.com/iter8-tools/iter8-analytics/internal/obs"
)

// Server handles the /assessment and /health_check routes.
type Server struct {
	Secrets metric.SecretResolver
	Client  *metric.Client
	Config  analysis.Config
	Log     logr.Logger
	Metrics *obs.Metrics
}

// Handler builds the ServeMux this server answers requests on.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/assessment", s.instrumented("/assessment", s.handleAssessment))
	mux.HandleFunc("/health_check", s.instrumented("/health_check", s.handleHealthCheck))
	return mux
}

// instrumented logs and times a request, recording the outcome on s.Metrics
// when one is configured.
func (s *Server) instrumented(path string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Log.V(1).Info("handling request", "method", r.Method, "path", r.URL.Path)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)

		if s.Metrics != nil {
			s.Metrics.ObserveRequest(path, strconv.Itoa(rec.status), time.Since(start))
		}
	}
}

// statusRecorder captures the status code written through a ResponseWriter.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) handleAssessment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var experiment v2.ExperimentResource
	if err := json.NewDecoder(r.Body).Decode(&experiment); err != nil {
		http.Error(w, "invalid experiment resource: "+err.Error(), http.StatusBadRequest)
		return
	}

	versions := experiment.Spec.VersionInfo.Versions()
	s.Log.V(1).Info("decoded experiment", "baseline", experiment.Spec.VersionInfo.Baseline.Name, "versions", len(versions))

	result, err := analysis.Run(r.Context(), s.Secrets, s.Client, s.Config, s.Metrics, experiment)
	if err != nil {
		s.Log.Error(err, "analysis failed")
		http.Error(w, "analysis failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	experiment.Status.Analysis = &result

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(experiment); err != nil {
		s.Log.Error(err, "failed to encode response")
	}
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "Ok"})
}
