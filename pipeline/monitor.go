package pipeline

import (
	"github.com/poiesic/veritas/core"
	"github.com/poiesic/veritas/generation"
)

// Monitor provides hooks to observe a query as it moves through the
// pipeline. Implement it to trace intermediate candidates and results.
type Monitor interface {
	Start(qc *core.QueryContext)
	AfterParaphrase(alternates []string)
	AfterStage(stage string, chunks []*core.Chunk)
	AfterGeneration(result *generation.Result)
	Finish(resp *core.Response)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ *core.QueryContext)           {}
func (n *noopMonitor) AfterParaphrase(_ []string)           {}
func (n *noopMonitor) AfterStage(_ string, _ []*core.Chunk) {}
func (n *noopMonitor) AfterGeneration(_ *generation.Result) {}
func (n *noopMonitor) Finish(_ *core.Response)              {}
