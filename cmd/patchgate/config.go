// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/patchgate/pkg/logging"
	"github.com/AleutianAI/patchgate/services/patchd/validate"
)

// Config is the YAML configuration surface for the CLI.
//
// Example config.yaml:
//
//	validation:
//	  max_lost_symbol_ratio: 0.3
//	  min_structural_similarity: 0.6
//	  min_file_size_for_similarity_check: 300
//	logging:
//	  level: debug
//	  dir: ~/.patchgate/logs
type Config struct {
	Validation ValidationConfig `yaml:"validation"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ValidationConfig mirrors validate.Config for YAML. Zero values fall
// back to the defaults, so a partial config is fine.
type ValidationConfig struct {
	MaxLostSymbolRatio            float64 `yaml:"max_lost_symbol_ratio"`
	MinStructuralSimilarity       float64 `yaml:"min_structural_similarity"`
	MinFileSizeForSimilarityCheck int     `yaml:"min_file_size_for_similarity_check"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
	Quiet bool   `yaml:"quiet"`
}

// loadConfig reads the YAML config, or returns defaults when path is "".
func loadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// validateConfig converts the YAML surface to the pipeline's config,
// filling unset fields with defaults.
func (c Config) validateConfig() validate.Config {
	vc := validate.DefaultConfig()
	if c.Validation.MaxLostSymbolRatio > 0 {
		vc.MaxLostSymbolRatio = c.Validation.MaxLostSymbolRatio
	}
	if c.Validation.MinStructuralSimilarity > 0 {
		vc.MinStructuralSimilarity = c.Validation.MinStructuralSimilarity
	}
	if c.Validation.MinFileSizeForSimilarityCheck > 0 {
		vc.MinFileSizeForSimilarityCheck = c.Validation.MinFileSizeForSimilarityCheck
	}
	return vc
}

// newLogger builds the logger from config and the --verbose flag.
func (c Config) newLogger(verbose bool) *logging.Logger {
	level := logging.LevelInfo
	switch c.Logging.Level {
	case "debug":
		level = logging.LevelDebug
	case "warn":
		level = logging.LevelWarn
	case "error":
		level = logging.LevelError
	}
	if verbose {
		level = logging.LevelDebug
	}

	return logging.New(logging.Config{
		Level:   level,
		LogDir:  c.Logging.Dir,
		Service: "patchgate",
		JSON:    c.Logging.JSON,
		Quiet:   c.Logging.Quiet,
	})
}
