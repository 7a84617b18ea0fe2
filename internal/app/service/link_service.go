package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/thisux/shortlink/internal/app/model"
	"github.com/thisux/shortlink/internal/app/repository"
	"github.com/thisux/shortlink/internal/infra/prometheus"
)

// maxCodeAttempts bounds the generate-check-insert loop for system
// codes. Custom slugs never retry.
const maxCodeAttempts = 10

// LinkService defines behaviour-level operations on links. All
// operations except code resolution are scoped to the owning user.
type LinkService interface {
	CreateLink(ctx context.Context, input CreateLinkInput) (*model.Link, error)
	GetLink(ctx context.Context, id, ownerID string) (*model.Link, error)
	ListLinks(ctx context.Context, ownerID string, opts repository.ListOptions) ([]model.Link, int64, error)
	UpdateLink(ctx context.Context, id, ownerID string, input UpdateLinkInput) (*model.Link, error)
	DeleteLink(ctx context.Context, id, ownerID string) error
}

type linkService struct {
	repo      repository.LinkRepository
	generator *CodeGenerator
	filter    *CodeFilter
	cache     *LinkCache
}

// NewLinkService returns a service implementation backed by the given
// repository. Filter and cache may be nil.
func NewLinkService(repo repository.LinkRepository, generator *CodeGenerator, filter *CodeFilter, cache *LinkCache) LinkService {
	return &linkService{
		repo:      repo,
		generator: generator,
		filter:    filter,
		cache:     cache,
	}
}

// CreateLinkInput captures data required to create a link.
type CreateLinkInput struct {
	OriginalURL string
	CustomSlug  string
	Title       string
	Description string
	Tags        []string
	ExpiresAt   *time.Time
	OwnerID     string
}

// UpdateLinkInput captures fields that can be changed on an existing
// link. Nil pointers leave the field untouched.
type UpdateLinkInput struct {
	OriginalURL *string
	CustomSlug  *string
	Title       *string
	Description *string
	Tags        []string
	ExpiresAt   *time.Time
	IsActive    *bool
}

func (s *linkService) CreateLink(ctx context.Context, input CreateLinkInput) (*model.Link, error) {
	originalURL := strings.TrimSpace(input.OriginalURL)
	if originalURL == "" {
		return nil, fmt.Errorf("%w: original URL is required", ErrValidation)
	}
	if strings.TrimSpace(input.OwnerID) == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrValidation)
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = model.DefaultTitle
	}
	if len(title) > model.TitleMaxLen {
		return nil, fmt.Errorf("%w: title cannot exceed %d characters", ErrValidation, model.TitleMaxLen)
	}
	description := strings.TrimSpace(input.Description)
	if len(description) > model.DescMaxLen {
		return nil, fmt.Errorf("%w: description cannot exceed %d characters", ErrValidation, model.DescMaxLen)
	}

	tags, err := sanitizeTags(input.Tags)
	if err != nil {
		return nil, err
	}

	slug := strings.TrimSpace(input.CustomSlug)
	if slug != "" {
		if !model.ValidSlug(slug) {
			return nil, fmt.Errorf("%w: custom slug must be %d-%d characters of letters, numbers, hyphens, or underscores",
				ErrValidation, model.SlugMinLen, model.SlugMaxLen)
		}
		taken, err := s.codeTaken(ctx, slug)
		if err != nil {
			return nil, fmt.Errorf("check custom slug: %w", err)
		}
		if taken {
			return nil, ErrSlugTaken
		}
	}

	link := &model.Link{
		ID:          uuid.New().String(),
		OriginalURL: normalizeURL(originalURL),
		Title:       title,
		Description: description,
		OwnerID:     input.OwnerID,
		IsActive:    true,
		ExpiresAt:   input.ExpiresAt,
		Tags:        tags,
		ClickEvents: model.ClickEvents{},
	}
	if slug != "" {
		link.CustomSlug = &slug
	}

	// Generate-check-insert, bounded. The unique indexes are the
	// authoritative guard: a persistence-time duplicate on the
	// generated code counts as a collision and burns an attempt, while
	// a duplicate on the custom slug fails the request outright.
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.generator.Generate()
		if err != nil {
			return nil, err
		}

		taken, err := s.codeTaken(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("check short code: %w", err)
		}
		if taken {
			continue
		}

		link.ShortCode = code
		if err := s.repo.Create(ctx, link); err != nil {
			if errors.Is(err, repository.ErrDuplicateCode) {
				if slug != "" {
					slugTaken, checkErr := s.repo.CodeExists(ctx, slug)
					if checkErr != nil {
						return nil, fmt.Errorf("check custom slug: %w", checkErr)
					}
					if slugTaken {
						return nil, ErrSlugTaken
					}
				}
				// Lost the race on the generated code.
				continue
			}
			return nil, fmt.Errorf("create link: %w", err)
		}

		s.filter.Add(link.ShortCode)
		if slug != "" {
			s.filter.Add(slug)
		}
		prometheus.LinksCreated.Inc()
		return link, nil
	}

	return nil, ErrCodeSpaceExhausted
}

// codeTaken checks the combined code namespace, short-circuiting via
// the bloom filter when the code is definitely free.
func (s *linkService) codeTaken(ctx context.Context, code string) (bool, error) {
	if !s.filter.MayContain(code) {
		return false, nil
	}
	return s.repo.CodeExists(ctx, code)
}

func (s *linkService) GetLink(ctx context.Context, id, ownerID string) (*model.Link, error) {
	link, err := s.repo.GetByID(ctx, id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("get link: %w", err)
	}
	return link, nil
}

func (s *linkService) ListLinks(ctx context.Context, ownerID string, opts repository.ListOptions) ([]model.Link, int64, error) {
	links, total, err := s.repo.List(ctx, ownerID, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list links: %w", err)
	}
	return links, total, nil
}

func (s *linkService) UpdateLink(ctx context.Context, id, ownerID string, input UpdateLinkInput) (*model.Link, error) {
	link, err := s.repo.GetByID(ctx, id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load link: %w", err)
	}

	staleCodes := []string{link.ShortCode}
	if link.CustomSlug != nil {
		staleCodes = append(staleCodes, *link.CustomSlug)
	}

	if input.OriginalURL != nil {
		trimmed := strings.TrimSpace(*input.OriginalURL)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: original URL cannot be blank", ErrValidation)
		}
		link.OriginalURL = normalizeURL(trimmed)
	}
	if input.CustomSlug != nil {
		slug := strings.TrimSpace(*input.CustomSlug)
		if slug == "" {
			link.CustomSlug = nil
		} else {
			if !model.ValidSlug(slug) {
				return nil, fmt.Errorf("%w: custom slug must be %d-%d characters of letters, numbers, hyphens, or underscores",
					ErrValidation, model.SlugMinLen, model.SlugMaxLen)
			}
			taken, err := s.repo.CodeExistsExcept(ctx, slug, link.ID)
			if err != nil {
				return nil, fmt.Errorf("check custom slug: %w", err)
			}
			if taken {
				return nil, ErrSlugTaken
			}
			link.CustomSlug = &slug
		}
	}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			title = model.DefaultTitle
		}
		if len(title) > model.TitleMaxLen {
			return nil, fmt.Errorf("%w: title cannot exceed %d characters", ErrValidation, model.TitleMaxLen)
		}
		link.Title = title
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if len(description) > model.DescMaxLen {
			return nil, fmt.Errorf("%w: description cannot exceed %d characters", ErrValidation, model.DescMaxLen)
		}
		link.Description = description
	}
	if input.Tags != nil {
		tags, err := sanitizeTags(input.Tags)
		if err != nil {
			return nil, err
		}
		link.Tags = tags
	}
	if input.ExpiresAt != nil {
		link.ExpiresAt = input.ExpiresAt
	}
	if input.IsActive != nil {
		link.IsActive = *input.IsActive
	}

	if err := s.repo.Update(ctx, link); err != nil {
		if errors.Is(err, repository.ErrDuplicateCode) {
			return nil, ErrSlugTaken
		}
		return nil, fmt.Errorf("update link: %w", err)
	}

	if link.CustomSlug != nil {
		s.filter.Add(*link.CustomSlug)
	}
	s.cache.Invalidate(ctx, append(staleCodes, link.Code())...)
	return link, nil
}

func (s *linkService) DeleteLink(ctx context.Context, id, ownerID string) error {
	link, err := s.repo.GetByID(ctx, id, ownerID)
	if err != nil {
		return fmt.Errorf("load link: %w", err)
	}

	if err := s.repo.Delete(ctx, id, ownerID); err != nil {
		return fmt.Errorf("delete link: %w", err)
	}

	// The bloom filter cannot forget; the periodic reseed reclaims the
	// freed codes.
	codes := []string{link.ShortCode}
	if link.CustomSlug != nil {
		codes = append(codes, *link.CustomSlug)
	}
	s.cache.Invalidate(ctx, codes...)
	return nil
}

// normalizeURL ensures the destination carries a scheme, defaulting to
// https.
func normalizeURL(raw string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return "https://" + raw
}

// sanitizeTags trims entries, drops empties, and deduplicates while
// preserving first-seen order.
func sanitizeTags(tags []string) (model.StringList, error) {
	out := model.StringList{}
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if len(tag) > model.TagMaxLen {
			return nil, fmt.Errorf("%w: tag cannot exceed %d characters", ErrValidation, model.TagMaxLen)
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out, nil
}
