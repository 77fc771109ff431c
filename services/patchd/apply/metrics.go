// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package apply

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for apply operations.
var (
	tracer = otel.Tracer("patchgate.apply")
	meter  = otel.Meter("patchgate.apply")
)

// Metrics for apply operations.
var (
	applyLatency  metric.Float64Histogram
	applyTotal    metric.Int64Counter
	findingsTotal metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		applyLatency, err = meter.Float64Histogram(
			"patch_apply_duration_seconds",
			metric.WithDescription("Duration of one patch apply attempt"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		applyTotal, err = meter.Int64Counter(
			"patch_apply_total",
			metric.WithDescription("Total patch apply attempts by strategy and outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		findingsTotal, err = meter.Int64Counter(
			"patch_validation_findings_total",
			metric.WithDescription("Total post-apply validation findings by type"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startApplySpan creates a span for one apply attempt.
func startApplySpan(ctx context.Context, attemptID, workspaceRoot string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Engine.Apply",
		trace.WithAttributes(
			attribute.String("patch.attempt_id", attemptID),
			attribute.String("patch.workspace", workspaceRoot),
		),
	)
}

// setApplySpanResult sets the outcome attributes on an apply span.
func setApplySpanResult(span trace.Span, strategy Strategy, success bool, findings int) {
	span.SetAttributes(
		attribute.String("patch.strategy", strategy.String()),
		attribute.Bool("patch.success", success),
		attribute.Int("patch.findings", findings),
	)
}

// recordApplyMetrics records metrics for one apply attempt.
func recordApplyMetrics(ctx context.Context, strategy Strategy, success bool, duration time.Duration, findingTypes []string) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("strategy", strategy.String()),
		attribute.Bool("success", success),
	)
	applyLatency.Record(ctx, duration.Seconds(), attrs)
	applyTotal.Add(ctx, 1, attrs)

	for _, ft := range findingTypes {
		findingsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("type", ft)))
	}
}
