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

// Package config loads the engine's environment-driven configuration.
package config

import (
	"os"
	"strconv"
)

// Config is the environment-driven configuration for one running instance of
// the analytics engine.
type Config struct {
	// LogLevel is "debug" or "info" (default).
	LogLevel string
	// ListenAddress is the address the HTTP server binds to.
	ListenAddress string
	// ExplorationTrafficPercentage is the advanced parameter governing the
	// traffic share devoted to exploration rather than exploitation.
	ExplorationTrafficPercentage float64
}

const (
	envLogLevel                      = "LOG_LEVEL"
	envListenAddress                 = "ITER8_ANALYTICS_ADDRESS"
	envExplorationTrafficPercentage  = "ITER8_EXPLORATION_TRAFFIC_PERCENTAGE"
	defaultListenAddress             = ":8080"
	defaultExplorationTrafficPercent = 5.0
)

// FromEnv builds a Config from the process environment, applying defaults for
// anything left unset or unparsable.
func FromEnv() Config {
	cfg := Config{
		LogLevel:                     os.Getenv(envLogLevel),
		ListenAddress:                os.Getenv(envListenAddress),
		ExplorationTrafficPercentage: defaultExplorationTrafficPercent,
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = defaultListenAddress
	}

	if raw := os.Getenv(envExplorationTrafficPercentage); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			cfg.ExplorationTrafficPercentage = v
		}
	}

	return cfg
}
