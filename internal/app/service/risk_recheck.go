package service

import (
	"context"
	"time"

	"github.com/linkvault/linkvault/internal/app/repository"
	"github.com/linkvault/linkvault/internal/app/risk"
	"go.uber.org/zap"
)

// RiskRecheck periodically re-scores active links and records the result in
// risk_score / last_checked. It never deactivates links; it only flags them.
type RiskRecheck struct {
	logger    *zap.Logger
	repo      repository.LinkRepository
	scorer    *risk.Scorer
	interval  time.Duration
	maxAge    time.Duration
	batchSize int
	stopChan  chan struct{}
}

// NewRiskRecheck creates a recheck worker. Links whose last check is older
// than maxAge are re-scored, batchSize at a time, every interval.
func NewRiskRecheck(logger *zap.Logger, repo repository.LinkRepository, scorer *risk.Scorer, interval, maxAge time.Duration, batchSize int) *RiskRecheck {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RiskRecheck{
		logger:    logger,
		repo:      repo,
		scorer:    scorer,
		interval:  interval,
		maxAge:    maxAge,
		batchSize: batchSize,
		stopChan:  make(chan struct{}),
	}
}

// Start begins the periodic re-scoring loop.
func (r *RiskRecheck) Start() {
	go r.run()
}

// Stop stops the loop.
func (r *RiskRecheck) Stop() {
	close(r.stopChan)
}

func (r *RiskRecheck) run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.recheckBatch()
		case <-r.stopChan:
			r.logger.Info("risk recheck worker stopped")
			return
		}
	}
}

func (r *RiskRecheck) recheckBatch() {
	ctx := context.Background()
	now := time.Now()

	links, err := r.repo.ListCheckedBefore(ctx, now.Add(-r.maxAge), r.batchSize)
	if err != nil {
		r.logger.Error("failed to load links for risk recheck", zap.Error(err))
		return
	}

	for _, link := range links {
		scored := r.scorer.Score(link.OriginalURL)
		if err := r.repo.UpdateRiskScore(ctx, link.ShortCode, scored.RiskScore, now); err != nil {
			r.logger.Error("failed to update risk score",
				zap.String("code", link.ShortCode), zap.Error(err))
			continue
		}
		if scored.IsSuspicious {
			r.logger.Warn("existing link now scores as suspicious",
				zap.String("code", link.ShortCode),
				zap.Int("risk_score", scored.RiskScore),
				zap.Strings("reasons", scored.Reasons),
			)
		}
	}
}
