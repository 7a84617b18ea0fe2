package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/thisux/shortlink/internal/app/model"
	"github.com/thisux/shortlink/internal/app/repository"
	"github.com/thisux/shortlink/internal/infra/prometheus"
	"go.uber.org/zap"
)

// ClickContext carries request metadata into a recorded click. Missing
// fields default rather than error: the redirect path serves anonymous
// traffic and must not fail on absent headers.
type ClickContext struct {
	IPAddress string
	UserAgent string
	Referer   string
	Country   string
	City      string
}

// RedirectService resolves inbound codes to redirect targets and
// durably records each visit.
type RedirectService interface {
	Resolve(ctx context.Context, code string, click ClickContext) (string, error)
	SimulateClick(ctx context.Context, id, ownerID string, click ClickContext) (*model.Link, error)
}

type redirectService struct {
	logger    *zap.Logger
	links     repository.LinkRepository
	clicks    repository.ClickRepository
	cache     *LinkCache
	publisher *ClickPublisher
	now       func() time.Time
}

// NewRedirectService wires the redirect resolver. Cache and publisher
// may be nil.
func NewRedirectService(logger *zap.Logger, links repository.LinkRepository, clicks repository.ClickRepository, cache *LinkCache, publisher *ClickPublisher) RedirectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redirectService{
		logger:    logger,
		links:     links,
		clicks:    clicks,
		cache:     cache,
		publisher: publisher,
		now:       time.Now,
	}
}

// Resolve looks up a code in the combined shortCode/customSlug
// namespace, verifies the link is still resolvable, records the click
// and returns the destination URL. Missing, inactive and expired links
// are indistinguishable to the caller.
func (s *redirectService) Resolve(ctx context.Context, code string, click ClickContext) (string, error) {
	link, cached := s.cache.Get(ctx, code)
	if !cached {
		var err error
		link, err = s.links.GetByCode(ctx, code)
		if err != nil {
			if errors.Is(err, repository.ErrLinkNotFound) {
				prometheus.Redirects.WithLabelValues("not_found").Inc()
				return "", err
			}
			return "", fmt.Errorf("resolve %q: %w", code, err)
		}
		s.cache.Set(ctx, code, link)
	}

	// Activity and expiry are always re-checked here, regardless of any
	// filtering the lookup query may apply.
	if !link.Resolvable(s.now()) {
		prometheus.Redirects.WithLabelValues("not_found").Inc()
		return "", repository.ErrLinkNotFound
	}

	ev := s.newClickEvent(click)
	if err := s.clicks.Record(ctx, link.ID, ev); err != nil {
		return "", fmt.Errorf("record click for %q: %w", code, err)
	}

	s.publish(link, ev)
	prometheus.Redirects.WithLabelValues("ok").Inc()
	return link.OriginalURL, nil
}

// SimulateClick records a click against a specific link on behalf of
// its owner. A link owned by someone else reports not-found, never a
// permission error.
func (s *redirectService) SimulateClick(ctx context.Context, id, ownerID string, click ClickContext) (*model.Link, error) {
	link, err := s.links.GetByID(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	ev := s.newClickEvent(click)
	if err := s.clicks.Record(ctx, link.ID, ev); err != nil {
		return nil, fmt.Errorf("record click for %q: %w", id, err)
	}

	link.ApplyClick(ev)
	s.cache.Invalidate(ctx, link.Code())
	s.publish(link, ev)
	return link, nil
}

func (s *redirectService) newClickEvent(click ClickContext) model.ClickEvent {
	ip := strings.TrimSpace(click.IPAddress)
	if ip == "" {
		ip = "unknown"
	}
	return model.ClickEvent{
		Timestamp: s.now(),
		IPAddress: ip,
		UserAgent: click.UserAgent,
		Referer:   click.Referer,
		Country:   click.Country,
		City:      click.City,
	}
}

// publish forwards the recorded click to the JetStream firehose.
// Best-effort: the click is already durable in Postgres.
func (s *redirectService) publish(link *model.Link, ev model.ClickEvent) {
	if err := s.publisher.Publish(link, ev); err != nil {
		s.logger.Error("failed to publish click event",
			zap.Error(err), zap.String("code", link.Code()))
	}
}
