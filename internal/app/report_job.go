/**
 * @description
 * ReportJob builds the refill backlog summary: refills per status and the
 * number flagged as anomalous. The counts run concurrently. Each run updates
 * the backlog gauges and publishes a `refill.backlog.reported` event.
 */
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/smfs18/desafio-backend/internal/domain"
	"github.com/smfs18/desafio-backend/internal/metrics"
	"github.com/smfs18/desafio-backend/internal/store"
	"github.com/smfs18/desafio-backend/pkg/rabbitmq"
)

const reportJobTimeout = 30 * time.Second

// ReportJob computes and publishes the refill backlog summary.
type ReportJob struct {
	repo     store.Repository
	events   EventPublisher
	exchange string
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewReportJob creates a report job. events and metrics may be nil.
func NewReportJob(repo store.Repository, events EventPublisher, exchange string, m *metrics.Metrics, logger *slog.Logger) *ReportJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportJob{
		repo:     repo,
		events:   events,
		exchange: exchange,
		metrics:  m,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Summary counts refills per status and anomalies.
func (j *ReportJob) Summary(ctx context.Context) (domain.RefillSummary, error) {
	counts := make([]int, len(domain.AllStatuses))
	var anomalies int

	g, gctx := errgroup.WithContext(ctx)
	for i, status := range domain.AllStatuses {
		i, status := i, status
		g.Go(func() error {
			n, err := j.repo.CountRefillsByStatus(gctx, status)
			if err != nil {
				return fmt.Errorf("count %s: %w", status, err)
			}
			counts[i] = n
			return nil
		})
	}
	g.Go(func() error {
		n, err := j.repo.CountAnomalies(gctx)
		if err != nil {
			return fmt.Errorf("count anomalies: %w", err)
		}
		anomalies = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.RefillSummary{}, err
	}

	summary := domain.RefillSummary{
		ByStatus:    make(map[domain.RefillStatus]int, len(domain.AllStatuses)),
		Anomalies:   anomalies,
		GeneratedAt: j.now(),
	}
	for i, status := range domain.AllStatuses {
		summary.ByStatus[status] = counts[i]
	}
	return summary, nil
}

// Report computes the summary, updates the gauges and publishes the event.
// A publish failure is logged, not returned.
func (j *ReportJob) Report(ctx context.Context) (domain.RefillSummary, error) {
	summary, err := j.Summary(ctx)
	if err != nil {
		return domain.RefillSummary{}, err
	}
	j.metrics.ObserveSummary(summary)

	if j.events != nil {
		event := rabbitmq.NewEvent(EventRefillBacklogReported, summary)
		if err := j.events.Publish(ctx, j.exchange, EventRefillBacklogReported, event); err != nil {
			j.logger.Warn("failed to publish backlog report", "component", "report_job", "error", err)
		}
	}
	return summary, nil
}

// Run is the cron entry point.
func (j *ReportJob) Run() {
	j.logger.Info("starting refill backlog report job", "component", "report_job")
	ctx, cancel := context.WithTimeout(context.Background(), reportJobTimeout)
	defer cancel()

	summary, err := j.Report(ctx)
	if err != nil {
		j.logger.Error("refill backlog report failed", "component", "report_job", "error", err)
		return
	}
	j.logger.Info("refill backlog report job finished",
		"component", "report_job",
		"pending", summary.ByStatus[domain.StatusPending],
		"anomalies", summary.Anomalies,
	)
}
