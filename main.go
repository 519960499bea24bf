/*
Copyright 2019 GramLabs, Inc.

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

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/iter8-tools/iter8-analytics/internal/analysis"
	"github.com/iter8-tools/iter8-analytics/internal/config"
	"github.com/iter8-tools/iter8-analytics/internal/httpapi"
	"github.com/iter8-tools/iter8-analytics/internal/metric"
	"github.com/iter8-tools/iter8-analytics/internal/obs"
	"github.com/iter8-tools/iter8-analytics/internal/secretcache"
	"github.com/iter8-tools/iter8-analytics/internal/version"
)

func main() {
	// Make it possible to just print the version and exit.
	if len(os.Args) > 1 && os.Args[1] == "version" {
		output, err := json.Marshal(version.GetInfo())
		if err != nil {
			os.Exit(1)
		}
		fmt.Println(string(output))
		os.Exit(0)
	}

	var listenAddr string
	flag.StringVar(&listenAddr, "listen-addr", "", "The address the assessment server binds to (overrides ITER8_ANALYTICS_ADDRESS).")
	flag.Parse()

	cfg := config.FromEnv()
	if listenAddr != "" {
		cfg.ListenAddress = listenAddr
	}

	zapLog, err := newZapLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "unable to build logger:", err)
		os.Exit(1)
	}
	log := zapr.NewLogger(zapLog).WithName("iter8-analytics")

	log.Info("iter8-analytics", "version", version.GetInfo())

	clientset, err := newKubernetesClientset()
	if err != nil {
		log.Error(err, "unable to build Kubernetes client")
		os.Exit(1)
	}

	secrets, err := secretcache.New(clientset)
	if err != nil {
		log.Error(err, "unable to build secret cache")
		os.Exit(1)
	}

	metrics := obs.New()
	secrets.SetObserver(metrics.ObserveSecretCache)

	server := &httpapi.Server{
		Secrets: secrets,
		Client:  metric.NewClient(),
		Config:  analysis.Config{ExplorationTrafficPercentage: cfg.ExplorationTrafficPercentage},
		Log:     log.WithName("httpapi"),
		Metrics: metrics,
	}

	mux := http.NewServeMux()
	mux.Handle("/", server.Handler())
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Addr: cfg.ListenAddress, Handler: mux}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		_ = srv.Shutdown(context.Background())
	}()

	log.Info("starting server", "address", cfg.ListenAddress)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error(err, "server exited with error")
		os.Exit(1)
	}
}

func newZapLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newKubernetesClientset() (kubernetes.Interface, error) {
	restConfig, err := rest.InClusterConfig()
	if err != nil {
		return nil, err
	}
	return kubernetes.NewForConfig(restConfig)
}
