package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StoreSettings is the singleton row with store identity, contact links and the admin password.
type StoreSettings struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	StoreName     string    `gorm:"size:128;not null" json:"store_name"`
	InstagramURL  string    `gorm:"size:512" json:"instagram_url"`
	WhatsappURL   string    `gorm:"size:512" json:"whatsapp_url"`
	Email         string    `gorm:"size:256" json:"email"`
	AdminPassword string    `gorm:"size:256;not null" json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (StoreSettings) TableName() string { return "store_settings" }

// BeforeCreate assigns a uuid when the caller did not.
func (s *StoreSettings) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
