package service

import (
	"context"
	"fmt"
	"time"

	"github.com/thisux/shortlink/internal/app/model"
	"github.com/thisux/shortlink/internal/app/repository"
)

// AnalyticsService derives read-only click statistics. It never
// mutates link state.
type AnalyticsService interface {
	LinkAnalytics(ctx context.Context, id, ownerID string) (*model.Link, *model.LinkAnalytics, error)
	OwnerStats(ctx context.Context, ownerID string) (*model.OwnerStats, error)
}

type analyticsService struct {
	links  repository.LinkRepository
	clicks repository.ClickRepository
	now    func() time.Time
}

// NewAnalyticsService returns an aggregator over the given
// repositories.
func NewAnalyticsService(links repository.LinkRepository, clicks repository.ClickRepository) AnalyticsService {
	return &analyticsService{
		links:  links,
		clicks: clicks,
		now:    time.Now,
	}
}

// LinkAnalytics summarizes one owned link: clicks since local midnight,
// clicks in the trailing seven days (boundary inclusive), the lifetime
// counter, and the retained (possibly truncated) event list.
func (s *analyticsService) LinkAnalytics(ctx context.Context, id, ownerID string) (*model.Link, *model.LinkAnalytics, error) {
	link, err := s.links.GetByID(ctx, id, ownerID)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekAgo := now.AddDate(0, 0, -7)

	analytics := &model.LinkAnalytics{
		TotalClicks:  link.Clicks,
		ClickDetails: link.ClickEvents,
	}
	if analytics.ClickDetails == nil {
		analytics.ClickDetails = []model.ClickEvent{}
	}

	for _, ev := range link.ClickEvents {
		if !ev.Timestamp.Before(startOfDay) {
			analytics.ClicksToday++
		}
		if !ev.Timestamp.Before(weekAgo) {
			analytics.ClicksThisWeek++
		}
	}

	return link, analytics, nil
}

// OwnerStats aggregates across all of the owner's links, computed on
// demand rather than cached.
func (s *analyticsService) OwnerStats(ctx context.Context, ownerID string) (*model.OwnerStats, error) {
	stats, err := s.clicks.OwnerStats(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("owner stats: %w", err)
	}
	return stats, nil
}
