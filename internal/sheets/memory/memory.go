// Package memory keeps exports in process. It backs the export worker when no
// spreadsheet is configured and in tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"giftregistry/internal/core"
	"giftregistry/internal/sheets"
)

type Exporter struct {
	mu      sync.Mutex
	exports int
	rows    [][]any
}

var _ sheets.ViewExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{}
}

// Export keeps the rows that would have been written and returns a synthetic
// reference.
func (e *Exporter) Export(_ context.Context, groups []core.GroupView, stats core.StatsView) (string, error) {
	rows := sheets.BuildRows(groups, stats)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.exports++
	e.rows = rows
	return fmt.Sprintf("mem:%d", e.exports), nil
}

// Rows returns the rows of the last export.
func (e *Exporter) Rows() [][]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rows
}

// Exports counts completed exports.
func (e *Exporter) Exports() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exports
}
