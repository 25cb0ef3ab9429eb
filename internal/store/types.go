package store

import (
	"errors"

	"looksdehoje-backend/internal/model"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrCategoryHasPieces = errors.New("category still has pieces")
	ErrDuplicateName     = errors.New("name already in use")
	ErrUnknownCategory   = errors.New("category does not exist")
)

// PieceFilter narrows ListPieces. Zero values match everything.
type PieceFilter struct {
	CategoryID string
	Status     model.Availability
	// Query matches piece or category names, case-insensitively.
	Query string
}

// Stats is the dashboard summary of the catalog.
type Stats struct {
	Total     int64 `json:"total"`
	Available int64 `json:"available"`
	Rented    int64 `json:"rented"`
	// Occupancy is the rented share in whole percent.
	Occupancy int `json:"occupancy_percent"`
}

// StatusChange is returned by writes that may flip a piece's availability.
type StatusChange struct {
	Piece    *model.Piece
	Previous model.Availability
}

// BecameAvailable reports a rented to available transition.
func (c StatusChange) BecameAvailable() bool {
	return c.Previous == model.Rented && c.Piece != nil && c.Piece.Status == model.Available
}
