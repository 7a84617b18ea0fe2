package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/thisux/shortlink/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrLinkNotFound signals that the requested link does not exist,
	// is not visible to the caller, or is no longer resolvable.
	ErrLinkNotFound = errors.New("link not found")

	// ErrDuplicateCode signals that a store-level uniqueness constraint
	// rejected a short code or custom slug at persistence time.
	ErrDuplicateCode = errors.New("code already exists")
)

// ListOptions controls pagination, filtering and ordering of a link
// listing.
type ListOptions struct {
	Page      int
	Limit     int
	Search    string
	SortBy    string
	SortOrder string
}

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

// Normalize clamps paging values to usable defaults. Callers computing
// pagination math must operate on the normalized values, the same ones
// the listing query uses.
func (o *ListOptions) Normalize() {
	if o.Page <= 0 {
		o.Page = 1
	}
	if o.Limit <= 0 || o.Limit > maxListLimit {
		o.Limit = defaultListLimit
	}
}

// LinkRepository defines the data access contract for links.
type LinkRepository interface {
	Create(ctx context.Context, link *model.Link) error
	GetByID(ctx context.Context, id, ownerID string) (*model.Link, error)
	GetByCode(ctx context.Context, code string) (*model.Link, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	CodeExistsExcept(ctx context.Context, code, exceptID string) (bool, error)
	List(ctx context.Context, ownerID string, opts ListOptions) ([]model.Link, int64, error)
	Update(ctx context.Context, link *model.Link) error
	Delete(ctx context.Context, id, ownerID string) error
	EachCode(ctx context.Context, fn func(code string)) error
}

type linkRepository struct {
	db *gorm.DB
}

// NewLinkRepository returns a GORM-backed LinkRepository.
func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) Create(ctx context.Context, link *model.Link) error {
	if err := r.db.WithContext(ctx).Create(link).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateCode, link.Code())
		}
		return err
	}
	return nil
}

func (r *linkRepository) GetByID(ctx context.Context, id, ownerID string) (*model.Link, error) {
	var link model.Link
	err := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *linkRepository) GetByCode(ctx context.Context, code string) (*model.Link, error) {
	var link model.Link
	err := r.db.WithContext(ctx).
		Where("short_code = ? OR custom_slug = ?", code, code).
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

// CodeExists checks the combined shortCode/customSlug namespace.
func (r *linkRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	return r.codeExists(ctx, code, "")
}

// CodeExistsExcept is CodeExists ignoring one link, used when an owner
// re-assigns a custom slug on an existing link.
func (r *linkRepository) CodeExistsExcept(ctx context.Context, code, exceptID string) (bool, error) {
	return r.codeExists(ctx, code, exceptID)
}

func (r *linkRepository) codeExists(ctx context.Context, code, exceptID string) (bool, error) {
	q := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("short_code = ? OR custom_slug = ?", code, code)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

var sortColumns = map[string]string{
	"createdAt":     "created_at",
	"updatedAt":     "updated_at",
	"clicks":        "clicks",
	"title":         "title",
	"lastClickedAt": "last_clicked_at",
}

func (r *linkRepository) List(ctx context.Context, ownerID string, opts ListOptions) ([]model.Link, int64, error) {
	opts.Normalize()

	q := r.db.WithContext(ctx).Model(&model.Link{}).Where("owner_id = ?", ownerID)

	if opts.Search != "" {
		pattern := "%" + opts.Search + "%"
		q = q.Where(
			"title ILIKE ? OR original_url ILIKE ? OR short_code ILIKE ? OR custom_slug ILIKE ?",
			pattern, pattern, pattern, pattern,
		)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column, ok := sortColumns[opts.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if opts.SortOrder == "asc" {
		direction = "ASC"
	}

	var result []model.Link
	err := q.Order(column + " " + direction).
		Limit(opts.Limit).
		Offset((opts.Page - 1) * opts.Limit).
		Find(&result).Error
	if err != nil {
		return nil, 0, err
	}

	return result, total, nil
}

func (r *linkRepository) Update(ctx context.Context, link *model.Link) error {
	result := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("id = ? AND owner_id = ?", link.ID, link.OwnerID).
		Updates(map[string]interface{}{
			"original_url": link.OriginalURL,
			"custom_slug":  link.CustomSlug,
			"title":        link.Title,
			"description":  link.Description,
			"is_active":    link.IsActive,
			"expires_at":   link.ExpiresAt,
			"tags":         link.Tags,
		})

	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return fmt.Errorf("%w: %s", ErrDuplicateCode, link.Code())
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}

	return r.db.WithContext(ctx).Where("id = ?", link.ID).First(link).Error
}

// Delete removes the link, freeing both of its code namespace slots.
func (r *linkRepository) Delete(ctx context.Context, id, ownerID string) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Delete(&model.Link{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}
	return nil
}

// EachCode streams every occupied code (short codes and custom slugs)
// to fn, used to seed the allocator's negative-lookup filter at startup.
func (r *linkRepository) EachCode(ctx context.Context, fn func(code string)) error {
	rows, err := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Select("short_code", "custom_slug").
		Rows()
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var shortCode string
		var customSlug *string
		if err := rows.Scan(&shortCode, &customSlug); err != nil {
			return err
		}
		fn(shortCode)
		if customSlug != nil && *customSlug != "" {
			fn(*customSlug)
		}
	}
	return rows.Err()
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
