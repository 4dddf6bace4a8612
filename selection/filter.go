// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package selection enforces the caller's document selection.
//
// When a query names the documents it may draw on, no passage from any
// other document may reach generation. Filter is the single place that
// rule is applied; it is deliberately strict and has no fallback.
package selection

import (
	"log/slog"

	"github.com/poiesic/veritas/core"
)

// Filter drops chunks outside a selection.
type Filter struct {
	logger *slog.Logger
}

// NewFilter creates a filter. A nil logger uses slog.Default().
func NewFilter(logger *slog.Logger) *Filter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Filter{logger: logger.With("component", "selection-filter")}
}

// Apply returns the chunks whose document is in sel, in their original
// order, and the number removed. An inactive selection returns chunks
// unchanged.
func (f *Filter) Apply(chunks []*core.Chunk, sel core.Selection) ([]*core.Chunk, int) {
	if !sel.Active() {
		return chunks, 0
	}

	kept := make([]*core.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if sel.Allows(c.DocumentId) {
			kept = append(kept, c)
		}
	}

	removed := len(chunks) - len(kept)
	if removed > 0 {
		f.logger.Info("removed chunks outside selected documents",
			"removed", removed, "kept", len(kept), "selected", len(sel))
	}
	return kept, removed
}
