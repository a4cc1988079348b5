// Package city owns all spatial entities of the simulation: parcels,
// buildings, dwelling units, and neighborhood groupings. It is built once
// from a design and mutated in place by agents every step.
package city

import (
	"fmt"

	"github.com/talgya/domacity/internal/grid"
)

// ParcelType is the land use of one lattice cell.
type ParcelType uint8

const (
	Residential ParcelType = iota
	Industrial
	Park
	River
)

// ParseParcelType resolves a layout token. Unknown tokens are a design
// error, fatal at load time.
func ParseParcelType(s string) (ParcelType, error) {
	switch s {
	case "Residential":
		return Residential, nil
	case "Industrial":
		return Industrial, nil
	case "Park":
		return Park, nil
	case "River":
		return River, nil
	default:
		return 0, fmt.Errorf("unknown parcel type %q", s)
	}
}

// String returns the layout token for a parcel type.
func (t ParcelType) String() string {
	switch t {
	case Residential:
		return "Residential"
	case Industrial:
		return "Industrial"
	case Park:
		return "Park"
	case River:
		return "River"
	default:
		return "Unknown"
	}
}

// NoNeighborhood marks a parcel outside every configured neighborhood.
const NoNeighborhood = -1

// Parcel is one cell of the city. Desirability is computed at construction
// and drifted over time; everything else is immutable.
type Parcel struct {
	Pos          grid.Position `json:"pos"`
	Type         ParcelType    `json:"type"`
	Neighborhood int           `json:"neighborhood"` // index into City.Neighborhoods, or NoNeighborhood
	Desirability float64       `json:"desirability"`
}

// Building sits on one residential parcel. Commercial counts the floors
// used to place workplaces.
type Building struct {
	Units      []int `json:"units"`
	Commercial int   `json:"commercial"`
}

// Neighborhood is a named region sharing generation parameters and a
// desirability trend.
type Neighborhood struct {
	ID             int     `json:"id"` // raw id from the design
	Name           string  `json:"name"`
	Desirability   float64 `json:"desirability"`
	MinUnits       int     `json:"-"`
	MaxUnits       int     `json:"-"`
	MinArea        int     `json:"-"`
	MaxArea        int     `json:"-"`
	SqmPerOccupant int     `json:"-"`
	PCommercial    float64 `json:"-"`
}
