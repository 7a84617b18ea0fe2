package service

import (
	"context"
	"time"

	"github.com/thisux/shortlink/internal/app/repository"
	"go.uber.org/zap"
)

// FilterRefresher periodically reseeds the allocator's code filter from
// the store so codes freed by deleted links stop registering as
// occupied.
type FilterRefresher struct {
	logger   *zap.Logger
	links    repository.LinkRepository
	filter   *CodeFilter
	interval time.Duration
	stopChan chan struct{}
}

// NewFilterRefresher creates a refresher with the given reseed interval.
func NewFilterRefresher(logger *zap.Logger, links repository.LinkRepository, filter *CodeFilter, interval time.Duration) *FilterRefresher {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &FilterRefresher{
		logger:   logger,
		links:    links,
		filter:   filter,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the periodic reseeding.
func (r *FilterRefresher) Start() {
	go r.run()
}

// Stop stops the periodic reseeding.
func (r *FilterRefresher) Stop() {
	close(r.stopChan)
}

func (r *FilterRefresher) run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.refresh()
		case <-r.stopChan:
			r.logger.Info("code filter refresher stopped")
			return
		}
	}
}

func (r *FilterRefresher) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	start := time.Now()
	if err := r.filter.Seed(ctx, r.links); err != nil {
		r.logger.Error("failed to reseed code filter", zap.Error(err))
		return
	}

	r.logger.Debug("code filter reseeded", zap.Duration("took", time.Since(start)))
}
