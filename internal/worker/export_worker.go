package worker

import (
	"context"
	"fmt"
	"time"

	"giftregistry/internal/amqp"
	"giftregistry/internal/core"
	"giftregistry/internal/log"
	"giftregistry/internal/metrics"
	"giftregistry/internal/sheets"
	"giftregistry/internal/store"
)

// ExportWorker keeps an external copy of the grouped registry view up to
// date. Change events are coalesced: a burst of mutations inside the
// debounce window produces a single export.
type ExportWorker struct {
	lister   store.Lister
	exporter sheets.ViewExporter
	groupBy  core.GroupKey
	debounce time.Duration
	logger   *log.Logger
	metrics  *metrics.Metrics
	pending  chan struct{}
}

func NewExportWorker(lister store.Lister, exporter sheets.ViewExporter, groupBy core.GroupKey, debounce time.Duration, logger *log.Logger, m *metrics.Metrics) *ExportWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ExportWorker{
		lister:   lister,
		exporter: exporter,
		groupBy:  groupBy,
		debounce: debounce,
		logger:   logger.WithComponent(log.ComponentWorker),
		metrics:  m,
		pending:  make(chan struct{}, 1),
	}
}

// HandleGiftChanged schedules an export. It never fails, so the message is
// acked immediately.
func (w *ExportWorker) HandleGiftChanged(ctx context.Context, msg *amqp.GiftChangedMessage) error {
	w.logger.DebugContext(ctx, "Gift change received",
		log.FieldGiftID, msg.ID,
		log.FieldOperation, string(msg.Op))
	w.Trigger()
	return nil
}

// Trigger schedules an export without blocking.
func (w *ExportWorker) Trigger() {
	select {
	case w.pending <- struct{}{}:
	default:
	}
}

// Run exports once at startup and then after every debounced burst of
// triggers. It returns nil when ctx is done.
func (w *ExportWorker) Run(ctx context.Context) error {
	w.Trigger()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.pending:
		}

		timer := time.NewTimer(w.debounce)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		// Triggers that arrived during the window are covered by this export.
		select {
		case <-w.pending:
		default:
		}

		if _, err := w.ExportNow(ctx); err != nil && ctx.Err() == nil {
			w.logger.ErrorContext(ctx, "Registry export failed", log.FieldError, err)
		}
	}
}

// ExportNow reads the registry, projects the grouped view and exports it.
func (w *ExportWorker) ExportNow(ctx context.Context) (string, error) {
	start := time.Now()
	ref, err := w.export(ctx)
	if w.metrics != nil {
		w.metrics.Exports.WithLabelValues(metrics.Result(err)).Inc()
	}
	if err != nil {
		return "", err
	}
	w.logger.InfoContext(ctx, "Registry exported",
		log.FieldOperation, log.OpExport,
		"ref", ref,
		"duration_ms", time.Since(start).Milliseconds())
	return ref, nil
}

func (w *ExportWorker) export(ctx context.Context) (string, error) {
	raw, err := w.lister.ListGifts(ctx)
	if err != nil {
		return "", fmt.Errorf("list gifts: %w", err)
	}
	records := core.NormalizeRecords(raw)
	groups := core.ProjectGroupedView(records, w.groupBy)
	ref, err := w.exporter.Export(ctx, groups, core.ProjectStats(records))
	if err != nil {
		return "", fmt.Errorf("export view: %w", err)
	}
	return ref, nil
}
