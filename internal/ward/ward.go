package ward

import (
	"errors"
	"time"

	wardDatamodel "github.com/frahmantamala/ward-census/internal/core/datamodel/ward"
)

type Ward struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	BedCapacity int       `json:"bed_capacity"`
	SortOrder   int       `json:"sort_order"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

var ErrNotFound = errors.New("ward not found")

func (w *Ward) ToResponse() WardResponse {
	return WardResponse{
		ID:          w.ID,
		Name:        w.Name,
		BedCapacity: w.BedCapacity,
	}
}

func ToDataModel(w *Ward) *wardDatamodel.Ward {
	return &wardDatamodel.Ward{
		ID:          w.ID,
		Name:        w.Name,
		BedCapacity: w.BedCapacity,
		SortOrder:   w.SortOrder,
		IsActive:    w.IsActive,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}
}

func FromDataModel(w *wardDatamodel.Ward) *Ward {
	return &Ward{
		ID:          w.ID,
		Name:        w.Name,
		BedCapacity: w.BedCapacity,
		SortOrder:   w.SortOrder,
		IsActive:    w.IsActive,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}
}

type WardResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	BedCapacity int    `json:"bed_capacity"`
}

type WardsResponse struct {
	Wards []WardResponse `json:"wards"`
}
