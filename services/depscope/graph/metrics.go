// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("depscope.graph")
	meter  = otel.Meter("depscope.graph")
)

var (
	closureLatency    metric.Float64Histogram
	closureFiles      metric.Int64Histogram
	closureIncomplete metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		closureLatency, err = meter.Float64Histogram(
			"depscope_closure_duration_seconds",
			metric.WithDescription("Duration of dependency closure computation"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		closureFiles, err = meter.Int64Histogram(
			"depscope_closure_files",
			metric.WithDescription("Number of files in a computed closure"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		closureIncomplete, err = meter.Int64Counter(
			"depscope_closure_incomplete_total",
			metric.WithDescription("Closures cut short by cancellation"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordBuildMetrics(ctx context.Context, duration time.Duration, c *Closure) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("max_depth", c.MaxDepth.String()))
	closureLatency.Record(ctx, duration.Seconds(), attrs)
	closureFiles.Record(ctx, int64(c.Len()), attrs)
	if c.Incomplete {
		closureIncomplete.Add(ctx, 1, attrs)
	}
}

func startBuildSpan(ctx context.Context, runID string, roots int, maxDepth Depth) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Builder.Build",
		trace.WithAttributes(
			attribute.String("graph.run_id", runID),
			attribute.Int("graph.root_count", roots),
			attribute.String("graph.max_depth", maxDepth.String()),
		),
	)
}

func setBuildSpanResult(span trace.Span, c *Closure) {
	span.SetAttributes(
		attribute.Int("graph.file_count", c.Len()),
		attribute.Int("graph.files_expanded", c.Stats.FilesExpanded),
		attribute.Int("graph.unreadable_count", len(c.Unreadable)),
		attribute.Bool("graph.incomplete", c.Incomplete),
	)
	if c.Incomplete {
		span.SetStatus(codes.Error, "traversal cancelled")
	}
}
