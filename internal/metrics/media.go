// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	compressionOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidlens_compression_outcomes_total",
		Help: "Compression executor outcomes",
	}, []string{"outcome"}) // outcome=skipped|compressed|failed

	compressionOverCeiling = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidlens_compression_over_ceiling_total",
		Help: "Compressed outputs that still exceed the analysis size ceiling",
	})

	compressionBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidlens_compression_bytes_total",
		Help: "Bytes read and written by completed transcodes",
	}, []string{"direction"}) // direction=input|output

	analysisRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidlens_analysis_requests_total",
		Help: "Calls to the multimodal analysis model by result",
	}, []string{"result"}) // result=succeeded|file_missing|empty_response|remote_error

	processRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidlens_process_runs_total",
		Help: "External process executions by result",
	}, []string{"result"}) // result=exited|timed_out|launch_failed|cancelled

	procTerminate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidlens_proc_terminate_total",
		Help: "Signals sent to child process groups",
	}, []string{"signal", "result"})

	procWait = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidlens_proc_wait_total",
		Help: "Child process wait results after termination",
	}, []string{"result"})
)

// IncCompression records a compression outcome.
func IncCompression(outcome string) {
	compressionOutcomes.WithLabelValues(outcome).Inc()
}

// IncCompressionOverCeiling records an output that is still larger than the ceiling.
func IncCompressionOverCeiling() {
	compressionOverCeiling.Inc()
}

// AddCompressionBytes records input and output sizes of a finished transcode.
func AddCompressionBytes(input, output int64) {
	compressionBytes.WithLabelValues("input").Add(float64(input))
	compressionBytes.WithLabelValues("output").Add(float64(output))
}

// IncAnalysis records the result of one model call.
func IncAnalysis(result string) {
	analysisRequests.WithLabelValues(result).Inc()
}

// IncProcessRun records how an external process run ended.
func IncProcessRun(result string) {
	processRuns.WithLabelValues(result).Inc()
}

// IncProcTerminate records a signal delivery attempt to a process group.
func IncProcTerminate(signal, result string) {
	procTerminate.WithLabelValues(signal, result).Inc()
}

// IncProcWait records the wait result of a terminated process.
func IncProcWait(result string) {
	procWait.WithLabelValues(result).Inc()
}
