package main

import (
	"fmt"
	"io"
	"time"

	"github.com/poiesic/veritas/core"
	"github.com/poiesic/veritas/generation"
	"github.com/poiesic/veritas/pipeline"
)

// traceLimit is the number of leading candidates printed per stage.
const traceLimit = 5

// traceMonitor prints every stage of a query as it runs.
type traceMonitor struct {
	w     io.Writer
	start time.Time
	last  time.Time
}

var _ pipeline.Monitor = (*traceMonitor)(nil)

func newTraceMonitor(w io.Writer) *traceMonitor {
	return &traceMonitor{w: w}
}

func (m *traceMonitor) Start(qc *core.QueryContext) {
	m.start = time.Now()
	m.last = m.start
	fmt.Fprintf(m.w, "request %s: %q\n", qc.RequestID, qc.Query)
	if qc.Selection.Active() {
		fmt.Fprintf(m.w, "  selection: %v\n", qc.Selection.IDs())
	}
}

func (m *traceMonitor) AfterParaphrase(alternates []string) {
	for _, alt := range alternates {
		fmt.Fprintf(m.w, "  paraphrase: %q\n", alt)
	}
}

func (m *traceMonitor) AfterStage(stage string, chunks []*core.Chunk) {
	now := time.Now()
	fmt.Fprintf(m.w, "%-12s %3d candidates  %v\n", stage, len(chunks), now.Sub(m.last).Round(time.Microsecond))
	m.last = now
	for i, c := range chunks[:min(len(chunks), traceLimit)] {
		fmt.Fprintf(m.w, "  %d. chunk %d (doc %d) score %.3f sim %.3f\n", i+1, c.Id, c.DocumentId, c.Score, c.Similarity)
	}
}

func (m *traceMonitor) AfterGeneration(result *generation.Result) {
	now := time.Now()
	fmt.Fprintf(m.w, "%-12s tier %s model %s confidence %.2f relevance %.2f  %v\n", "generation",
		result.Tier, result.Model, result.Confidence, result.Relevance, now.Sub(m.last).Round(time.Microsecond))
	m.last = now
}

func (m *traceMonitor) Finish(resp *core.Response) {
	fmt.Fprintf(m.w, "finished: %s confidence %.2f in %v\n\n", resp.QueryType, resp.Confidence,
		time.Since(m.start).Round(time.Millisecond))
}
