package service

import (
	"context"
	"errors"
	"testing"

	"github.com/thisux/shortlink/internal/app/model"
	"github.com/thisux/shortlink/internal/app/repository"
)

type mockLinkRepo struct {
	createFn           func(ctx context.Context, link *model.Link) error
	getByIDFn          func(ctx context.Context, id, ownerID string) (*model.Link, error)
	getByCodeFn        func(ctx context.Context, code string) (*model.Link, error)
	codeExistsFn       func(ctx context.Context, code string) (bool, error)
	codeExistsExceptFn func(ctx context.Context, code, exceptID string) (bool, error)
	listFn             func(ctx context.Context, ownerID string, opts repository.ListOptions) ([]model.Link, int64, error)
	updateFn           func(ctx context.Context, link *model.Link) error
	deleteFn           func(ctx context.Context, id, ownerID string) error
	eachCodeFn         func(ctx context.Context, fn func(code string)) error
}

func (m *mockLinkRepo) Create(ctx context.Context, link *model.Link) error {
	if m.createFn != nil {
		return m.createFn(ctx, link)
	}
	return nil
}

func (m *mockLinkRepo) GetByID(ctx context.Context, id, ownerID string) (*model.Link, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id, ownerID)
	}
	return nil, repository.ErrLinkNotFound
}

func (m *mockLinkRepo) GetByCode(ctx context.Context, code string) (*model.Link, error) {
	if m.getByCodeFn != nil {
		return m.getByCodeFn(ctx, code)
	}
	return nil, repository.ErrLinkNotFound
}

func (m *mockLinkRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	if m.codeExistsFn != nil {
		return m.codeExistsFn(ctx, code)
	}
	return false, nil
}

func (m *mockLinkRepo) CodeExistsExcept(ctx context.Context, code, exceptID string) (bool, error) {
	if m.codeExistsExceptFn != nil {
		return m.codeExistsExceptFn(ctx, code, exceptID)
	}
	return false, nil
}

func (m *mockLinkRepo) List(ctx context.Context, ownerID string, opts repository.ListOptions) ([]model.Link, int64, error) {
	if m.listFn != nil {
		return m.listFn(ctx, ownerID, opts)
	}
	return nil, 0, nil
}

func (m *mockLinkRepo) Update(ctx context.Context, link *model.Link) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, link)
	}
	return nil
}

func (m *mockLinkRepo) Delete(ctx context.Context, id, ownerID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id, ownerID)
	}
	return nil
}

func (m *mockLinkRepo) EachCode(ctx context.Context, fn func(code string)) error {
	if m.eachCodeFn != nil {
		return m.eachCodeFn(ctx, fn)
	}
	return nil
}

type mockClickRepo struct {
	recordFn     func(ctx context.Context, linkID string, ev model.ClickEvent) error
	ownerStatsFn func(ctx context.Context, ownerID string) (*model.OwnerStats, error)
}

func (m *mockClickRepo) Record(ctx context.Context, linkID string, ev model.ClickEvent) error {
	if m.recordFn != nil {
		return m.recordFn(ctx, linkID, ev)
	}
	return nil
}

func (m *mockClickRepo) OwnerStats(ctx context.Context, ownerID string) (*model.OwnerStats, error) {
	if m.ownerStatsFn != nil {
		return m.ownerStatsFn(ctx, ownerID)
	}
	return &model.OwnerStats{}, nil
}

func newTestLinkService(t *testing.T, repo repository.LinkRepository) LinkService {
	t.Helper()
	gen, err := NewCodeGenerator(DefaultCodeLength)
	if err != nil {
		t.Fatalf("NewCodeGenerator: %v", err)
	}
	return NewLinkService(repo, gen, nil, nil)
}

func TestCreateLinkDefaults(t *testing.T) {
	var created *model.Link
	repo := &mockLinkRepo{
		createFn: func(_ context.Context, link *model.Link) error {
			created = link
			return nil
		},
	}
	svc := newTestLinkService(t, repo)

	link, err := svc.CreateLink(context.Background(), CreateLinkInput{
		OriginalURL: "example.com/page",
		OwnerID:     "user-1",
		Tags:        []string{" go ", "go", "", "web"},
	})
	if err != nil {
		t.Fatalf("CreateLink: %v", err)
	}
	if created == nil {
		t.Fatal("expected repository create to be called")
	}
	if link.OriginalURL != "https://example.com/page" {
		t.Errorf("expected https prefix, got %q", link.OriginalURL)
	}
	if link.Title != model.DefaultTitle {
		t.Errorf("expected default title, got %q", link.Title)
	}
	if len(link.ShortCode) != DefaultCodeLength {
		t.Errorf("expected %d-char code, got %q", DefaultCodeLength, link.ShortCode)
	}
	if !link.IsActive {
		t.Error("new link should be active")
	}
	if link.CustomSlug != nil {
		t.Errorf("unexpected custom slug %q", *link.CustomSlug)
	}
	if len(link.Tags) != 2 || link.Tags[0] != "go" || link.Tags[1] != "web" {
		t.Errorf("expected deduplicated tags [go web], got %v", link.Tags)
	}
}

func TestCreateLinkKeepsExplicitScheme(t *testing.T) {
	svc := newTestLinkService(t, &mockLinkRepo{})

	link, err := svc.CreateLink(context.Background(), CreateLinkInput{
		OriginalURL: "http://insecure.example.com",
		OwnerID:     "user-1",
	})
	if err != nil {
		t.Fatalf("CreateLink: %v", err)
	}
	if link.OriginalURL != "http://insecure.example.com" {
		t.Errorf("scheme should be preserved, got %q", link.OriginalURL)
	}
}

func TestCreateLinkValidation(t *testing.T) {
	svc := newTestLinkService(t, &mockLinkRepo{})

	cases := []struct {
		name  string
		input CreateLinkInput
	}{
		{"missing url", CreateLinkInput{OwnerID: "user-1"}},
		{"missing owner", CreateLinkInput{OriginalURL: "example.com"}},
		{"slug too short", CreateLinkInput{OriginalURL: "example.com", OwnerID: "user-1", CustomSlug: "ab"}},
		{"slug bad chars", CreateLinkInput{OriginalURL: "example.com", OwnerID: "user-1", CustomSlug: "my slug!"}},
		{"tag too long", CreateLinkInput{OriginalURL: "example.com", OwnerID: "user-1",
			Tags: []string{"this-tag-is-far-too-long-to-be-allowed"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.CreateLink(context.Background(), tc.input); !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestCreateLinkSlugTaken(t *testing.T) {
	createCalls := 0
	repo := &mockLinkRepo{
		codeExistsFn: func(_ context.Context, code string) (bool, error) {
			return code == "my-slug", nil
		},
		createFn: func(context.Context, *model.Link) error {
			createCalls++
			return nil
		},
	}
	svc := newTestLinkService(t, repo)

	_, err := svc.CreateLink(context.Background(), CreateLinkInput{
		OriginalURL: "example.com",
		OwnerID:     "user-1",
		CustomSlug:  "my-slug",
	})
	if !errors.Is(err, ErrSlugTaken) {
		t.Fatalf("expected ErrSlugTaken, got %v", err)
	}
	if createCalls != 0 {
		t.Errorf("a taken slug must not retry or persist, got %d create calls", createCalls)
	}
}

func TestCreateLinkRetriesCollidingCodes(t *testing.T) {
	checks := 0
	repo := &mockLinkRepo{
		codeExistsFn: func(context.Context, string) (bool, error) {
			checks++
			return checks <= 3, nil
		},
	}
	svc := newTestLinkService(t, repo)

	link, err := svc.CreateLink(context.Background(), CreateLinkInput{
		OriginalURL: "example.com",
		OwnerID:     "user-1",
	})
	if err != nil {
		t.Fatalf("CreateLink: %v", err)
	}
	if checks != 4 {
		t.Errorf("expected 3 collisions then success, got %d existence checks", checks)
	}
	if link.ShortCode == "" {
		t.Error("expected a generated short code")
	}
}

func TestCreateLinkCodeSpaceExhausted(t *testing.T) {
	checks := 0
	createCalls := 0
	repo := &mockLinkRepo{
		codeExistsFn: func(context.Context, string) (bool, error) {
			checks++
			return true, nil
		},
		createFn: func(context.Context, *model.Link) error {
			createCalls++
			return nil
		},
	}
	svc := newTestLinkService(t, repo)

	_, err := svc.CreateLink(context.Background(), CreateLinkInput{
		OriginalURL: "example.com",
		OwnerID:     "user-1",
	})
	if !errors.Is(err, ErrCodeSpaceExhausted) {
		t.Fatalf("expected ErrCodeSpaceExhausted, got %v", err)
	}
	if checks != maxCodeAttempts {
		t.Errorf("expected exactly %d attempts, got %d", maxCodeAttempts, checks)
	}
	if createCalls != 0 {
		t.Errorf("no create should be attempted for colliding codes, got %d", createCalls)
	}
}

func TestCreateLinkRetriesOnInsertRace(t *testing.T) {
	createCalls := 0
	repo := &mockLinkRepo{
		createFn: func(context.Context, *model.Link) error {
			createCalls++
			if createCalls == 1 {
				return repository.ErrDuplicateCode
			}
			return nil
		},
	}
	svc := newTestLinkService(t, repo)

	if _, err := svc.CreateLink(context.Background(), CreateLinkInput{
		OriginalURL: "example.com",
		OwnerID:     "user-1",
	}); err != nil {
		t.Fatalf("CreateLink: %v", err)
	}
	if createCalls != 2 {
		t.Errorf("expected one retry after losing the insert race, got %d creates", createCalls)
	}
}

func TestCreateLinkInsertRaceOnSlug(t *testing.T) {
	// A concurrent request claims the same custom slug between the
	// pre-check and the insert; the store rejection must surface as a
	// slug conflict, not a retried code collision.
	inserted := false
	repo := &mockLinkRepo{
		codeExistsFn: func(_ context.Context, code string) (bool, error) {
			return inserted && code == "my-slug", nil
		},
		createFn: func(context.Context, *model.Link) error {
			inserted = true
			return repository.ErrDuplicateCode
		},
	}
	svc := newTestLinkService(t, repo)

	_, err := svc.CreateLink(context.Background(), CreateLinkInput{
		OriginalURL: "example.com",
		OwnerID:     "user-1",
		CustomSlug:  "my-slug",
	})
	if !errors.Is(err, ErrSlugTaken) {
		t.Fatalf("expected ErrSlugTaken, got %v", err)
	}
}

func TestUpdateLinkFields(t *testing.T) {
	slug := "old-slug"
	stored := &model.Link{
		ID:          "id-1",
		OriginalURL: "https://example.com",
		ShortCode:   "abc123defg",
		CustomSlug:  &slug,
		Title:       "Old",
		OwnerID:     "user-1",
		IsActive:    true,
	}
	var updated *model.Link
	repo := &mockLinkRepo{
		getByIDFn: func(_ context.Context, id, ownerID string) (*model.Link, error) {
			if id != "id-1" || ownerID != "user-1" {
				return nil, repository.ErrLinkNotFound
			}
			cp := *stored
			return &cp, nil
		},
		updateFn: func(_ context.Context, link *model.Link) error {
			updated = link
			return nil
		},
	}
	svc := newTestLinkService(t, repo)

	newURL := "new.example.com"
	newTitle := "  New Title  "
	inactive := false
	clearSlug := ""
	link, err := svc.UpdateLink(context.Background(), "id-1", "user-1", UpdateLinkInput{
		OriginalURL: &newURL,
		Title:       &newTitle,
		IsActive:    &inactive,
		CustomSlug:  &clearSlug,
	})
	if err != nil {
		t.Fatalf("UpdateLink: %v", err)
	}
	if updated == nil {
		t.Fatal("expected repository update to be called")
	}
	if link.OriginalURL != "https://new.example.com" {
		t.Errorf("expected normalized URL, got %q", link.OriginalURL)
	}
	if link.Title != "New Title" {
		t.Errorf("expected trimmed title, got %q", link.Title)
	}
	if link.IsActive {
		t.Error("expected link to be deactivated")
	}
	if link.CustomSlug != nil {
		t.Errorf("empty slug should clear the custom slug, got %q", *link.CustomSlug)
	}
	if link.Code() != "abc123defg" {
		t.Errorf("cleared slug should fall back to the short code, got %q", link.Code())
	}
}

func TestUpdateLinkSlugTaken(t *testing.T) {
	repo := &mockLinkRepo{
		getByIDFn: func(context.Context, string, string) (*model.Link, error) {
			return &model.Link{ID: "id-1", ShortCode: "abc123defg", OwnerID: "user-1"}, nil
		},
		codeExistsExceptFn: func(_ context.Context, code, exceptID string) (bool, error) {
			return code == "wanted" && exceptID == "id-1", nil
		},
	}
	svc := newTestLinkService(t, repo)

	wanted := "wanted"
	_, err := svc.UpdateLink(context.Background(), "id-1", "user-1", UpdateLinkInput{CustomSlug: &wanted})
	if !errors.Is(err, ErrSlugTaken) {
		t.Fatalf("expected ErrSlugTaken, got %v", err)
	}
}

func TestUpdateLinkNotFound(t *testing.T) {
	svc := newTestLinkService(t, &mockLinkRepo{})

	title := "New"
	_, err := svc.UpdateLink(context.Background(), "missing", "user-1", UpdateLinkInput{Title: &title})
	if !errors.Is(err, repository.ErrLinkNotFound) {
		t.Fatalf("expected ErrLinkNotFound, got %v", err)
	}
}

func TestDeleteLink(t *testing.T) {
	deleted := false
	repo := &mockLinkRepo{
		getByIDFn: func(context.Context, string, string) (*model.Link, error) {
			return &model.Link{ID: "id-1", ShortCode: "abc123defg", OwnerID: "user-1"}, nil
		},
		deleteFn: func(_ context.Context, id, ownerID string) error {
			deleted = id == "id-1" && ownerID == "user-1"
			return nil
		},
	}
	svc := newTestLinkService(t, repo)

	if err := svc.DeleteLink(context.Background(), "id-1", "user-1"); err != nil {
		t.Fatalf("DeleteLink: %v", err)
	}
	if !deleted {
		t.Error("expected repository delete to be called with id and owner")
	}
}

func TestDeleteLinkNotOwned(t *testing.T) {
	svc := newTestLinkService(t, &mockLinkRepo{})

	err := svc.DeleteLink(context.Background(), "id-1", "someone-else")
	if !errors.Is(err, repository.ErrLinkNotFound) {
		t.Fatalf("expected ErrLinkNotFound, got %v", err)
	}
}

func TestSanitizeTags(t *testing.T) {
	tags, err := sanitizeTags([]string{"  a ", "b", "a", "", "c"})
	if err != nil {
		t.Fatalf("sanitizeTags: %v", err)
	}
	want := model.StringList{"a", "b", "c"}
	if len(tags) != len(want) {
		t.Fatalf("expected %v, got %v", want, tags)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, tags)
		}
	}
}
