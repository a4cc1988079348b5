// Package design loads the immutable city description: the lattice layout
// and the per-neighborhood and city-wide generation parameters.
//
// Layout cells are pipe-delimited "neighborhoodID|ParcelType" strings; a
// null cell means no parcel at that position. Malformed cells are fatal at
// load time.
package design

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Design is a complete city description.
type Design struct {
	Map           Map                  `yaml:"map"`
	Neighborhoods map[int]Neighborhood `yaml:"neighborhoods"`
	City          CityParams           `yaml:"city"`
}

// Map is the lattice layout. Cells are nullable parcel annotations.
type Map struct {
	Layout [][]*string `yaml:"layout"`
}

// Neighborhood holds the generation parameters for one named region.
type Neighborhood struct {
	Name           string  `yaml:"name"`
	Desirability   float64 `yaml:"desirability"`
	MinUnits       int     `yaml:"minUnits"`
	MaxUnits       int     `yaml:"maxUnits"`
	MinArea        int     `yaml:"minArea"`
	MaxArea        int     `yaml:"maxArea"`
	SqmPerOccupant int     `yaml:"sqmPerOccupant"`
	PCommercial    float64 `yaml:"pCommercial"`
}

// CityParams holds city-wide generation parameters.
type CityParams struct {
	Name             string          `yaml:"name"`
	MaxBedrooms      int             `yaml:"maxBedrooms"`
	PricePerSqm      float64         `yaml:"pricePerSqm"`
	PriceToRentRatio float64         `yaml:"priceToRentRatio"`
	Landlords        int             `yaml:"landlords"`
	Population       int             `yaml:"population"`
	Incomes          []IncomeBracket `yaml:"incomes"`
}

// IncomeBracket is one band of the monthly income distribution, sampled
// with probability weight P.
type IncomeBracket struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
	P    float64 `yaml:"p"`
}

// Cell is a parsed layout annotation.
type Cell struct {
	// Neighborhood is the raw neighborhood id from the layout, or -1 for
	// parcels outside any neighborhood.
	Neighborhood int
	ParcelType   string
}

// Load reads and validates a design from a YAML file.
func Load(path string) (*Design, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read design: %w", err)
	}
	var d Design
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("parse design: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("validate design: %w", err)
	}
	return &d, nil
}

// ParseCell splits a layout cell into its neighborhood id and parcel type
// token. The parcel type token is not resolved here; the city package owns
// the type vocabulary.
func ParseCell(s string) (Cell, error) {
	parts := strings.Split(s, "|")
	if len(parts) != 2 {
		return Cell{}, fmt.Errorf("malformed layout cell %q: want \"neighborhood|type\"", s)
	}
	id, err := strconv.Atoi(parts[0])
	if err != nil {
		return Cell{}, fmt.Errorf("malformed layout cell %q: bad neighborhood id: %w", s, err)
	}
	return Cell{Neighborhood: id, ParcelType: parts[1]}, nil
}

// Validate checks structural requirements that would otherwise surface as
// degenerate math mid-run.
func (d *Design) Validate() error {
	if len(d.Map.Layout) == 0 || len(d.Map.Layout[0]) == 0 {
		return fmt.Errorf("empty layout")
	}
	cols := len(d.Map.Layout[0])
	for i, row := range d.Map.Layout {
		if len(row) != cols {
			return fmt.Errorf("ragged layout: row %d has %d cells, want %d", i, len(row), cols)
		}
	}
	if d.City.PricePerSqm <= 0 {
		return fmt.Errorf("pricePerSqm must be positive, got %v", d.City.PricePerSqm)
	}
	if d.City.PriceToRentRatio <= 0 {
		return fmt.Errorf("priceToRentRatio must be positive, got %v", d.City.PriceToRentRatio)
	}
	if d.City.MaxBedrooms < 1 {
		return fmt.Errorf("maxBedrooms must be at least 1, got %d", d.City.MaxBedrooms)
	}
	if d.City.Landlords < 1 {
		return fmt.Errorf("landlords must be at least 1, got %d", d.City.Landlords)
	}
	if d.City.Population < 1 {
		return fmt.Errorf("population must be at least 1, got %d", d.City.Population)
	}
	if len(d.City.Incomes) == 0 {
		return fmt.Errorf("at least one income bracket is required")
	}
	for i, b := range d.City.Incomes {
		if b.Low < 0 || b.High < b.Low {
			return fmt.Errorf("income bracket %d: bad range [%v, %v]", i, b.Low, b.High)
		}
	}
	for id, n := range d.Neighborhoods {
		if n.MinUnits < 1 || n.MaxUnits < n.MinUnits {
			return fmt.Errorf("neighborhood %d: bad unit range [%d, %d]", id, n.MinUnits, n.MaxUnits)
		}
		if n.MinArea < 1 || n.MaxArea < n.MinArea {
			return fmt.Errorf("neighborhood %d: bad area range [%d, %d]", id, n.MinArea, n.MaxArea)
		}
		if n.SqmPerOccupant < 1 {
			return fmt.Errorf("neighborhood %d: sqmPerOccupant must be at least 1", id)
		}
		if n.PCommercial < 0 || n.PCommercial >= 1 {
			return fmt.Errorf("neighborhood %d: pCommercial must be in [0, 1)", id)
		}
	}
	return nil
}
