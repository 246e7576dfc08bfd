// Package telemetry registers the service's Prometheus collectors.
// Everything is exposed through promhttp on /metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueryTurns counts completed query turns by outcome (ok, model_error,
	// tool_error).
	QueryTurns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coursechat",
		Name:      "query_turns_total",
		Help:      "Completed query turns by outcome.",
	}, []string{"outcome"})

	// QueryDuration observes wall time of a full query turn, model calls
	// and tool execution included.
	QueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "coursechat",
		Name:      "query_turn_duration_seconds",
		Help:      "Duration of a full query turn.",
		Buckets:   prometheus.DefBuckets,
	})

	// ToolExecutions counts tool executions by tool name.
	ToolExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coursechat",
		Name:      "tool_executions_total",
		Help:      "Search tool executions by tool name.",
	}, []string{"tool"})

	// CoursesIngested counts courses added to the index.
	CoursesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coursechat",
		Name:      "courses_ingested_total",
		Help:      "Courses added to the vector index.",
	})

	// ChunksIngested counts chunks added to the index.
	ChunksIngested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coursechat",
		Name:      "chunks_ingested_total",
		Help:      "Chunks added to the vector index.",
	})

	// DocumentsSkipped counts ingestion skips by reason (duplicate, malformed).
	DocumentsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coursechat",
		Name:      "documents_skipped_total",
		Help:      "Documents skipped during ingestion by reason.",
	}, []string{"reason"})
)
