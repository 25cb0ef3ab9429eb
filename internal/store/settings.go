package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"looksdehoje-backend/internal/model"
)

// --- Store settings (singleton) ---

func (s *gormStore) GetSettings(ctx context.Context) (*model.StoreSettings, error) {
	var st model.StoreSettings
	if err := s.db.WithContext(ctx).Order("created_at ASC").First(&st).Error; err != nil {
		return nil, notFound(err)
	}
	return &st, nil
}

// UpdateSettings writes the store identity and contact links. The password is never touched here.
func (s *gormStore) UpdateSettings(ctx context.Context, in model.StoreSettings) (*model.StoreSettings, error) {
	var st model.StoreSettings
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Order("created_at ASC").First(&st).Error; err != nil {
			return notFound(err)
		}
		st.StoreName = in.StoreName
		st.InstagramURL = in.InstagramURL
		st.WhatsappURL = in.WhatsappURL
		st.Email = in.Email
		return tx.Model(&st).
			Select("store_name", "instagram_url", "whatsapp_url", "email", "updated_at").
			Updates(&st).Error
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// AdminPassword returns the stored admin password, hashed or legacy plaintext.
func (s *gormStore) AdminPassword(ctx context.Context) (string, error) {
	var st model.StoreSettings
	if err := s.db.WithContext(ctx).Select("id", "admin_password").Order("created_at ASC").First(&st).Error; err != nil {
		return "", notFound(err)
	}
	return st.AdminPassword, nil
}

func (s *gormStore) SetAdminPassword(ctx context.Context, stored string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var st model.StoreSettings
		if err := tx.Select("id").Order("created_at ASC").First(&st).Error; err != nil {
			return notFound(err)
		}
		return tx.Model(&st).Update("admin_password", stored).Error
	})
}

// --- Hero (singleton) ---

// GetHero returns the saved slides, or an empty list when nothing was saved yet.
func (s *gormStore) GetHero(ctx context.Context) (*model.HeroSettings, error) {
	var h model.HeroSettings
	err := s.db.WithContext(ctx).Order("created_at ASC").First(&h).Error
	if err != nil {
		if notFound(err) == ErrNotFound {
			return &model.HeroSettings{Slides: []model.HeroSlide{}}, nil
		}
		return nil, err
	}
	if h.Slides == nil {
		h.Slides = []model.HeroSlide{}
	}
	return &h, nil
}

// SaveHero replaces the whole slide list, creating the row on first save.
func (s *gormStore) SaveHero(ctx context.Context, slides []model.HeroSlide) (*model.HeroSettings, error) {
	if slides == nil {
		slides = []model.HeroSlide{}
	}
	var h model.HeroSettings
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Order("created_at ASC").First(&h).Error
		switch notFound(err) {
		case nil:
		case ErrNotFound:
			h = model.HeroSettings{}
		default:
			return err
		}
		h.Slides = slides
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"slides", "updated_at"}),
		}).Create(&h).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save hero slides: %w", err)
	}
	return &h, nil
}

// --- Push subscriptions ---

// UpsertSubscription creates or replaces a subscription and its piece list.
func (s *gormStore) UpsertSubscription(ctx context.Context, sub *model.PushSubscription, pieceIDs []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Create(sub).Error; err != nil {
			return err
		}

		pieces := []*model.Piece{}
		if len(pieceIDs) > 0 {
			if err := tx.Select("id").Find(&pieces, "id IN ?", pieceIDs).Error; err != nil {
				return err
			}
		}
		return tx.Model(sub).Omit("Pieces.*").Association("Pieces").Replace(pieces)
	})
}

func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).
		Preload("Pieces", func(db *gorm.DB) *gorm.DB { return db.Select("id") }).
		First(&sub, "endpoint = ?", endpoint).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &sub, nil
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM subscription_piece_mapping WHERE push_subscription_endpoint = ?", endpoint).Error; err != nil {
			return err
		}
		return tx.Delete(&model.PushSubscription{Endpoint: endpoint}).Error
	})
}

// SubscribersOf lists the subscriptions waiting for pieceID.
func (s *gormStore) SubscribersOf(ctx context.Context, pieceID string) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	err := s.db.WithContext(ctx).
		Joins("JOIN subscription_piece_mapping spm ON spm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("spm.piece_id = ?", pieceID).
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscribers of piece %s: %w", pieceID, err)
	}
	return subs, nil
}
