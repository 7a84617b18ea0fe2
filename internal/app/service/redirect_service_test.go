package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/thisux/shortlink/internal/app/model"
	"github.com/thisux/shortlink/internal/app/repository"
	"go.uber.org/zap"
)

func newTestRedirectService(links repository.LinkRepository, clicks repository.ClickRepository, now time.Time) RedirectService {
	svc := NewRedirectService(zap.NewNop(), links, clicks, nil, nil)
	svc.(*redirectService).now = func() time.Time { return now }
	return svc
}

func TestResolveRecordsClick(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	links := &mockLinkRepo{
		getByCodeFn: func(_ context.Context, code string) (*model.Link, error) {
			if code != "abc123defg" {
				return nil, repository.ErrLinkNotFound
			}
			return &model.Link{ID: "id-1", OriginalURL: "https://example.com", ShortCode: code, IsActive: true}, nil
		},
	}
	var recorded []model.ClickEvent
	clicks := &mockClickRepo{
		recordFn: func(_ context.Context, linkID string, ev model.ClickEvent) error {
			if linkID != "id-1" {
				t.Errorf("expected click for id-1, got %q", linkID)
			}
			recorded = append(recorded, ev)
			return nil
		},
	}
	svc := newTestRedirectService(links, clicks, now)

	target, err := svc.Resolve(context.Background(), "abc123defg", ClickContext{
		UserAgent: "test-agent",
		Referer:   "https://referrer.example.com",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if target != "https://example.com" {
		t.Errorf("expected destination URL, got %q", target)
	}
	if len(recorded) != 1 {
		t.Fatalf("expected one recorded click, got %d", len(recorded))
	}
	ev := recorded[0]
	if ev.IPAddress != "unknown" {
		t.Errorf("missing IP should default to unknown, got %q", ev.IPAddress)
	}
	if ev.UserAgent != "test-agent" {
		t.Errorf("expected user agent carried through, got %q", ev.UserAgent)
	}
	if !ev.Timestamp.Equal(now) {
		t.Errorf("expected timestamp %v, got %v", now, ev.Timestamp)
	}
}

func TestResolveUnresolvableLinks(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)

	cases := []struct {
		name string
		link *model.Link
	}{
		{"missing", nil},
		{"inactive", &model.Link{ID: "id-1", OriginalURL: "https://example.com", ShortCode: "abc123defg", IsActive: false}},
		{"expired", &model.Link{ID: "id-1", OriginalURL: "https://example.com", ShortCode: "abc123defg", IsActive: true, ExpiresAt: &past}},
		{"expires exactly now", &model.Link{ID: "id-1", OriginalURL: "https://example.com", ShortCode: "abc123defg", IsActive: true, ExpiresAt: &now}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			links := &mockLinkRepo{
				getByCodeFn: func(context.Context, string) (*model.Link, error) {
					if tc.link == nil {
						return nil, repository.ErrLinkNotFound
					}
					cp := *tc.link
					return &cp, nil
				},
			}
			recorded := 0
			clicks := &mockClickRepo{
				recordFn: func(context.Context, string, model.ClickEvent) error {
					recorded++
					return nil
				},
			}
			svc := newTestRedirectService(links, clicks, now)

			_, err := svc.Resolve(context.Background(), "abc123defg", ClickContext{})
			if !errors.Is(err, repository.ErrLinkNotFound) {
				t.Fatalf("expected ErrLinkNotFound, got %v", err)
			}
			if recorded != 0 {
				t.Errorf("unresolvable links must not record clicks, got %d", recorded)
			}
		})
	}
}

func TestResolveFutureExpiry(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Minute)
	links := &mockLinkRepo{
		getByCodeFn: func(context.Context, string) (*model.Link, error) {
			return &model.Link{ID: "id-1", OriginalURL: "https://example.com", ShortCode: "abc123defg",
				IsActive: true, ExpiresAt: &future}, nil
		},
	}
	svc := newTestRedirectService(links, &mockClickRepo{}, now)

	if _, err := svc.Resolve(context.Background(), "abc123defg", ClickContext{}); err != nil {
		t.Fatalf("a link expiring in the future must resolve: %v", err)
	}
}

func TestResolveRecordFailure(t *testing.T) {
	now := time.Now()
	links := &mockLinkRepo{
		getByCodeFn: func(context.Context, string) (*model.Link, error) {
			return &model.Link{ID: "id-1", OriginalURL: "https://example.com", ShortCode: "abc123defg", IsActive: true}, nil
		},
	}
	storeErr := errors.New("connection refused")
	clicks := &mockClickRepo{
		recordFn: func(context.Context, string, model.ClickEvent) error {
			return storeErr
		},
	}
	svc := newTestRedirectService(links, clicks, now)

	if _, err := svc.Resolve(context.Background(), "abc123defg", ClickContext{}); !errors.Is(err, storeErr) {
		t.Fatalf("a failed click record must fail the redirect, got %v", err)
	}
}

func TestResolveConcurrentClicks(t *testing.T) {
	now := time.Now()
	links := &mockLinkRepo{
		getByCodeFn: func(context.Context, string) (*model.Link, error) {
			return &model.Link{ID: "id-1", OriginalURL: "https://example.com", ShortCode: "abc123defg", IsActive: true}, nil
		},
	}
	var mu sync.Mutex
	recorded := 0
	clicks := &mockClickRepo{
		recordFn: func(context.Context, string, model.ClickEvent) error {
			mu.Lock()
			recorded++
			mu.Unlock()
			return nil
		},
	}
	svc := newTestRedirectService(links, clicks, now)

	const n = 32
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := svc.Resolve(context.Background(), "abc123defg", ClickContext{}); err != nil {
				t.Errorf("Resolve: %v", err)
			}
		}()
	}
	wg.Wait()

	if recorded != n {
		t.Errorf("expected %d recorded clicks, got %d", n, recorded)
	}
}

func TestSimulateClick(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	links := &mockLinkRepo{
		getByIDFn: func(_ context.Context, id, ownerID string) (*model.Link, error) {
			if id != "id-1" || ownerID != "user-1" {
				return nil, repository.ErrLinkNotFound
			}
			return &model.Link{ID: "id-1", OriginalURL: "https://example.com", ShortCode: "abc123defg",
				OwnerID: "user-1", IsActive: true, Clicks: 4}, nil
		},
	}
	svc := newTestRedirectService(links, &mockClickRepo{}, now)

	link, err := svc.SimulateClick(context.Background(), "id-1", "user-1", ClickContext{IPAddress: "203.0.113.9"})
	if err != nil {
		t.Fatalf("SimulateClick: %v", err)
	}
	if link.Clicks != 5 {
		t.Errorf("expected counter bumped to 5, got %d", link.Clicks)
	}
	if len(link.ClickEvents) != 1 || link.ClickEvents[0].IPAddress != "203.0.113.9" {
		t.Errorf("expected the new event appended, got %v", link.ClickEvents)
	}
	if link.LastClickedAt == nil || !link.LastClickedAt.Equal(now) {
		t.Errorf("expected last clicked at %v, got %v", now, link.LastClickedAt)
	}
}

func TestSimulateClickNotOwned(t *testing.T) {
	svc := newTestRedirectService(&mockLinkRepo{}, &mockClickRepo{}, time.Now())

	_, err := svc.SimulateClick(context.Background(), "id-1", "someone-else", ClickContext{})
	if !errors.Is(err, repository.ErrLinkNotFound) {
		t.Fatalf("a link owned by someone else must report not found, got %v", err)
	}
}
