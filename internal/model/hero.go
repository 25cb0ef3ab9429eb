package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"looksdehoje-backend/internal/framing"
)

// ImageFit mirrors the CSS object-fit values offered for hero images.
type ImageFit string

const (
	FitCover   ImageFit = "cover"
	FitContain ImageFit = "contain"
	FitFill    ImageFit = "fill"
	FitNone    ImageFit = "none"
)

var validFits = map[ImageFit]bool{FitCover: true, FitContain: true, FitFill: true, FitNone: true}

// validAnchors is the nine-way anchor set.
var validAnchors = map[string]bool{
	"center": true, "top": true, "bottom": true, "left": true, "right": true,
	"top left": true, "top right": true, "bottom left": true, "bottom right": true,
}

// HeroSlide is one frame of the home page carousel.
type HeroSlide struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Subtitle      string   `json:"subtitle"`
	ImageURL      string   `json:"image_url"`
	ImageFit      ImageFit `json:"image_fit,omitempty"`
	ImagePosition string   `json:"image_position,omitempty"`
	PositionX     *float64 `json:"image_position_x,omitempty"`
	PositionY     *float64 `json:"image_position_y,omitempty"`
	Zoom          *float64 `json:"image_zoom,omitempty"`
}

// Positioning returns the slide framing, defaulting missing fields.
func (s HeroSlide) Positioning() framing.Positioning {
	p := framing.Default()
	if s.PositionX != nil {
		p.X = *s.PositionX
	}
	if s.PositionY != nil {
		p.Y = *s.PositionY
	}
	if s.Zoom != nil {
		p.Zoom = *s.Zoom
	}
	p.SetPosition(p.X, p.Y)
	p.SetZoom(p.Zoom)
	return p
}

// SetPositioning stores p (already clamped by the caller or not) on the slide.
func (s *HeroSlide) SetPositioning(p framing.Positioning) {
	p.SetPosition(p.X, p.Y)
	p.SetZoom(p.Zoom)
	s.PositionX, s.PositionY, s.Zoom = &p.X, &p.Y, &p.Zoom
}

// Normalize fills defaults, clamps the framing and validates fit and anchor.
func (s *HeroSlide) Normalize() error {
	if s.ID == "" {
		s.ID = "slide-" + uuid.NewString()
	}
	if s.ImageFit == "" {
		s.ImageFit = FitCover
	}
	if !validFits[s.ImageFit] {
		return fmt.Errorf("invalid image_fit %q", s.ImageFit)
	}
	if s.ImagePosition == "" {
		s.ImagePosition = "center"
	}
	if !validAnchors[s.ImagePosition] {
		return fmt.Errorf("invalid image_position %q", s.ImagePosition)
	}
	s.SetPositioning(s.Positioning())
	return nil
}

// NewHeroSlide returns a slide with the admin's placeholder texts and default framing.
func NewHeroSlide() HeroSlide {
	s := HeroSlide{
		ID:            "slide-" + uuid.NewString(),
		Title:         "Novo Título",
		Subtitle:      "Nova descrição",
		ImageFit:      FitCover,
		ImagePosition: "center",
	}
	s.SetPositioning(framing.Default())
	return s
}

// HeroSettings is the singleton row holding the ordered slide list.
type HeroSettings struct {
	ID        string      `gorm:"primaryKey;size:36" json:"id"`
	Slides    []HeroSlide `gorm:"type:text;serializer:json" json:"slides"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func (HeroSettings) TableName() string { return "hero_settings" }

// BeforeCreate assigns a uuid when the caller did not.
func (h *HeroSettings) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}
