package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"looksdehoje-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	ListPieces(ctx context.Context, f PieceFilter) ([]model.Piece, error)
	GetPiece(ctx context.Context, id string) (*model.Piece, error)
	PieceName(ctx context.Context, id string) (string, error)
	CreatePiece(ctx context.Context, p *model.Piece) error
	UpdatePiece(ctx context.Context, p *model.Piece) (StatusChange, error)
	SetPieceImages(ctx context.Context, id string, imgs model.Images) error
	TogglePieceStatus(ctx context.Context, id string) (StatusChange, error)
	DeletePiece(ctx context.Context, id string) (*model.Piece, error)
	Stats(ctx context.Context) (Stats, error)

	ListCategories(ctx context.Context, query string) ([]model.Category, error)
	GetCategory(ctx context.Context, id string) (*model.Category, error)
	CreateCategory(ctx context.Context, c *model.Category) error
	RenameCategory(ctx context.Context, id, name string) (*model.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	GetSettings(ctx context.Context) (*model.StoreSettings, error)
	UpdateSettings(ctx context.Context, in model.StoreSettings) (*model.StoreSettings, error)
	AdminPassword(ctx context.Context) (string, error)
	SetAdminPassword(ctx context.Context, stored string) error

	GetHero(ctx context.Context) (*model.HeroSettings, error)
	SaveHero(ctx context.Context, slides []model.HeroSlide) (*model.HeroSettings, error)

	UpsertSubscription(ctx context.Context, sub *model.PushSubscription, pieceIDs []string) error
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscribersOf(ctx context.Context, pieceID string) ([]model.PushSubscription, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// --- Pieces ---

// ListPieces returns pieces newest first with their category preloaded.
func (s *gormStore) ListPieces(ctx context.Context, f PieceFilter) ([]model.Piece, error) {
	q := s.db.WithContext(ctx).Model(&model.Piece{}).Preload("Category")
	if f.CategoryID != "" {
		q = q.Where("pieces.category_id = ?", f.CategoryID)
	}
	if f.Status != "" {
		q = q.Where("pieces.status = ?", f.Status)
	}
	if term := strings.TrimSpace(f.Query); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Joins("LEFT JOIN categories ON categories.id = pieces.category_id").
			Where("LOWER(pieces.name) LIKE ? OR LOWER(categories.name) LIKE ?", like, like)
	}

	pieces := []model.Piece{}
	if err := q.Order("pieces.created_at DESC").Find(&pieces).Error; err != nil {
		return nil, fmt.Errorf("failed to list pieces: %w", err)
	}
	return pieces, nil
}

func (s *gormStore) GetPiece(ctx context.Context, id string) (*model.Piece, error) {
	var p model.Piece
	if err := s.db.WithContext(ctx).Preload("Category").First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// PieceName loads only the display name of a piece.
func (s *gormStore) PieceName(ctx context.Context, id string) (string, error) {
	var p model.Piece
	if err := s.db.WithContext(ctx).Select("name").First(&p, "id = ?", id).Error; err != nil {
		return "", notFound(err)
	}
	return p.Name, nil
}

func requireCategory(tx *gorm.DB, id string) error {
	var n int64
	if err := tx.Model(&model.Category{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, id)
	}
	return nil
}

// CreatePiece inserts p after checking its category.
func (s *gormStore) CreatePiece(ctx context.Context, p *model.Piece) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireCategory(tx, p.CategoryID); err != nil {
			return err
		}
		if p.Status == "" {
			p.Status = model.Available
		}
		if err := tx.Omit(clause.Associations).Create(p).Error; err != nil {
			return fmt.Errorf("failed to create piece: %w", err)
		}
		return tx.Preload("Category").First(p, "id = ?", p.ID).Error
	})
}

var pieceColumns = []string{"name", "category_id", "status", "description", "measurements", "images", "framing", "updated_at"}

// UpdatePiece replaces the editable fields of p and reports the status it had before.
func (s *gormStore) UpdatePiece(ctx context.Context, p *model.Piece) (StatusChange, error) {
	var change StatusChange
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current model.Piece
		if err := tx.Select("id", "status").First(&current, "id = ?", p.ID).Error; err != nil {
			return notFound(err)
		}
		if err := requireCategory(tx, p.CategoryID); err != nil {
			return err
		}
		change.Previous = current.Status

		if err := tx.Model(&model.Piece{ID: p.ID}).Select(pieceColumns).Omit(clause.Associations).Updates(p).Error; err != nil {
			return fmt.Errorf("failed to update piece %s: %w", p.ID, err)
		}
		return tx.Preload("Category").First(p, "id = ?", p.ID).Error
	})
	if err != nil {
		return StatusChange{}, err
	}
	change.Piece = p
	return change, nil
}

// SetPieceImages replaces only the image list.
func (s *gormStore) SetPieceImages(ctx context.Context, id string, imgs model.Images) error {
	res := s.db.WithContext(ctx).Model(&model.Piece{ID: id}).Select("images").Updates(&model.Piece{Images: imgs})
	if res.Error != nil {
		return fmt.Errorf("failed to update images of piece %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TogglePieceStatus flips available and rented.
func (s *gormStore) TogglePieceStatus(ctx context.Context, id string) (StatusChange, error) {
	var change StatusChange
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p model.Piece
		if err := tx.Preload("Category").First(&p, "id = ?", id).Error; err != nil {
			return notFound(err)
		}
		change.Previous = p.Status
		p.Status = p.Status.Toggle()
		if err := tx.Model(&model.Piece{ID: id}).Update("status", p.Status).Error; err != nil {
			return fmt.Errorf("failed to toggle piece %s: %w", id, err)
		}
		change.Piece = &p
		return nil
	})
	if err != nil {
		return StatusChange{}, err
	}
	return change, nil
}

// DeletePiece removes the piece and its subscription links and returns what was deleted.
func (s *gormStore) DeletePiece(ctx context.Context, id string) (*model.Piece, error) {
	var p model.Piece
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&p, "id = ?", id).Error; err != nil {
			return notFound(err)
		}
		if err := tx.Exec("DELETE FROM subscription_piece_mapping WHERE piece_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to unlink subscriptions of piece %s: %w", id, err)
		}
		if err := tx.Delete(&model.Piece{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete piece %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Stats counts pieces per status.
func (s *gormStore) Stats(ctx context.Context) (Stats, error) {
	var rows []struct {
		Status model.Availability
		Count  int64
	}
	if err := s.db.WithContext(ctx).Model(&model.Piece{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return Stats{}, fmt.Errorf("failed to count pieces: %w", err)
	}

	var st Stats
	for _, r := range rows {
		st.Total += r.Count
		switch r.Status {
		case model.Available:
			st.Available = r.Count
		case model.Rented:
			st.Rented = r.Count
		}
	}
	if st.Total > 0 {
		st.Occupancy = int(math.Round(float64(st.Rented) / float64(st.Total) * 100))
	}
	return st, nil
}

// --- Categories ---

// ListCategories returns categories by name with their piece counts.
func (s *gormStore) ListCategories(ctx context.Context, query string) ([]model.Category, error) {
	q := s.db.WithContext(ctx).Order("name ASC")
	if term := strings.TrimSpace(query); term != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(term)+"%")
	}
	categories := []model.Category{}
	if err := q.Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	if len(categories) == 0 {
		return categories, nil
	}

	counts, err := s.pieceCounts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range categories {
		categories[i].PieceCount = counts[categories[i].ID]
	}
	return categories, nil
}

func (s *gormStore) pieceCounts(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		CategoryID string
		Count      int64
	}
	if err := s.db.WithContext(ctx).Model(&model.Piece{}).
		Select("category_id, COUNT(*) AS count").
		Group("category_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count pieces per category: %w", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.CategoryID] = r.Count
	}
	return counts, nil
}

func (s *gormStore) GetCategory(ctx context.Context, id string) (*model.Category, error) {
	var c model.Category
	if err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	if err := s.db.WithContext(ctx).Model(&model.Piece{}).Where("category_id = ?", id).Count(&c.PieceCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count pieces of category %s: %w", id, err)
	}
	return &c, nil
}

func nameTaken(tx *gorm.DB, name, exceptID string) (bool, error) {
	var n int64
	q := tx.Model(&model.Category{}).Where("LOWER(name) = ?", strings.ToLower(name))
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func duplicate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateName
	}
	return err
}

func (s *gormStore) CreateCategory(ctx context.Context, c *model.Category) error {
	c.Name = strings.TrimSpace(c.Name)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := nameTaken(tx, c.Name, "")
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: %q", ErrDuplicateName, c.Name)
		}
		return duplicate(tx.Create(c).Error)
	})
}

func (s *gormStore) RenameCategory(ctx context.Context, id, name string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	var c model.Category
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&c, "id = ?", id).Error; err != nil {
			return notFound(err)
		}
		taken, err := nameTaken(tx, name, id)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
		c.Name = name
		return duplicate(tx.Model(&c).Update("name", name).Error)
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteCategory refuses to delete a category that still has pieces.
func (s *gormStore) DeleteCategory(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c model.Category
		if err := tx.First(&c, "id = ?", id).Error; err != nil {
			return notFound(err)
		}
		var n int64
		if err := tx.Model(&model.Piece{}).Where("category_id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %q has %d", ErrCategoryHasPieces, c.Name, n)
		}
		if err := tx.Delete(&model.Category{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete category %s: %w", id, err)
		}
		return nil
	})
}
