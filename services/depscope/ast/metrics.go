// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for import extraction.
var (
	tracer = otel.Tracer("depscope.ast")
	meter  = otel.Meter("depscope.ast")
)

// Extraction strategies, used as the "strategy" attribute.
const (
	strategyTreeSitter = "treesitter"
	strategySubprocess = "subprocess"
	strategyRegex      = "regex"
)

var (
	extractLatency  metric.Float64Histogram
	extractTotal    metric.Int64Counter
	extractFallback metric.Int64Counter
	extractRefs     metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		extractLatency, err = meter.Float64Histogram(
			"depscope_extract_duration_seconds",
			metric.WithDescription("Duration of import extraction per file"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		extractTotal, err = meter.Int64Counter(
			"depscope_extract_total",
			metric.WithDescription("Total number of files extracted"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		extractFallback, err = meter.Int64Counter(
			"depscope_extract_fallback_total",
			metric.WithDescription("Extractions that fell back to regex scanning"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		extractRefs, err = meter.Int64Histogram(
			"depscope_extract_references",
			metric.WithDescription("Number of import references extracted per file"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordExtractMetrics records one extraction. strategy is the strategy
// that produced the result.
func recordExtractMetrics(ctx context.Context, lang Language, strategy string, duration time.Duration, refCount int) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("language", string(lang)),
		attribute.String("strategy", strategy),
	)
	extractLatency.Record(ctx, duration.Seconds(), attrs)
	extractTotal.Add(ctx, 1, attrs)
	extractRefs.Record(ctx, int64(refCount), attrs)

	if strategy == strategyRegex {
		extractFallback.Add(ctx, 1, metric.WithAttributes(attribute.String("language", string(lang))))
	}
}

// startExtractSpan creates a span for one extraction. The caller must end it.
func startExtractSpan(ctx context.Context, lang Language, path string, size int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Extractor.Extract",
		trace.WithAttributes(
			attribute.String("ast.language", string(lang)),
			attribute.String("ast.file", path),
			attribute.Int("ast.content_size", size),
		),
	)
}

// setExtractSpanResult sets the result attributes on an extraction span.
func setExtractSpanResult(span trace.Span, strategy string, refCount int) {
	span.SetAttributes(
		attribute.String("ast.strategy", strategy),
		attribute.Int("ast.reference_count", refCount),
	)
}
