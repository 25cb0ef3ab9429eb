package model

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"looksdehoje-backend/internal/framing"
)

// Availability is the rental state of a piece.
type Availability string

const (
	Available Availability = "available"
	Rented    Availability = "rented"
)

// Valid reports whether a is one of the two known states.
func (a Availability) Valid() bool {
	return a == Available || a == Rented
}

// Toggle flips between available and rented.
func (a Availability) Toggle() Availability {
	if a == Available {
		return Rented
	}
	return Available
}

// Image is a persisted catalog image.
type Image struct {
	URL   string `json:"url"`
	Order int    `json:"order"`
}

// Images is the ordered image list of a piece.
type Images []Image

// Sorted returns a copy ordered by Order; ties keep their stored position.
func (imgs Images) Sorted() Images {
	out := make(Images, len(imgs))
	copy(out, imgs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Cover is the lowest-order image.
func (imgs Images) Cover() (Image, bool) {
	if len(imgs) == 0 {
		return Image{}, false
	}
	return imgs.Sorted()[0], true
}

// Contains reports whether url is one of the images.
func (imgs Images) Contains(url string) bool {
	for _, img := range imgs {
		if img.URL == url {
			return true
		}
	}
	return false
}

// Piece is a rentable clothing item.
type Piece struct {
	ID           string              `gorm:"primaryKey;size:36" json:"id"`
	Name         string              `gorm:"size:256;not null" json:"name"`
	CategoryID   string              `gorm:"size:36;index;not null" json:"category_id"`
	Status       Availability        `gorm:"size:16;not null;default:available;index" json:"status"`
	Description  string              `gorm:"type:text" json:"description"`
	Measurements map[string]string   `gorm:"type:text;serializer:json" json:"measurements"`
	Images       Images              `gorm:"type:text;serializer:json" json:"images"`
	Framing      framing.Positioning `gorm:"type:text;serializer:json" json:"framing"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`

	// Associations
	Category *Category `gorm:"constraint:OnDelete:RESTRICT" json:"category,omitempty"`
}

// BeforeCreate assigns a uuid when the caller did not.
func (p *Piece) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// CoverURL is the single-image fallback derived from the image list.
func (p Piece) CoverURL() string {
	if img, ok := p.Images.Cover(); ok {
		return img.URL
	}
	return ""
}

// MarshalJSON adds the derived image_url for consumers that only understand one image.
func (p Piece) MarshalJSON() ([]byte, error) {
	type plain Piece
	images := p.Images.Sorted()
	if images == nil {
		images = Images{}
	}
	return json.Marshal(struct {
		plain
		Images   Images `json:"images"`
		ImageURL string `json:"image_url,omitempty"`
	}{plain: plain(p), Images: images, ImageURL: p.CoverURL()})
}
