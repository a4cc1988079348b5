package city

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	opensimplex "github.com/ojrac/opensimplex-go"
	xrand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/talgya/domacity/internal/design"
	"github.com/talgya/domacity/internal/grid"
)

// CommercialSite is a building position with workplace floors.
type CommercialSite struct {
	Pos    grid.Position `json:"pos"`
	Floors int           `json:"floors"`
}

// City owns every spatial entity for a run. Entities are created once here
// and never destroyed; agents mutate their fields in place.
type City struct {
	Grid *grid.Grid

	Units         []*Unit
	Buildings     map[grid.Position]*Building
	Neighborhoods []Neighborhood
	Commercial    []CommercialSite

	// Unit and residential-parcel ids grouped by neighborhood index.
	UnitsByNeighborhood [][]int
	ResidentialParcels  [][]grid.Position

	// Per-neighborhood desirability drift generators.
	Drift []DriftGenerator

	parcels map[grid.Position]*Parcel
	order   []grid.Position // layout order, for deterministic iteration
}

// Build constructs a city from a design. The rng seeds the unit synthesis
// and the per-neighborhood drift generators; stretch controls how slowly
// the drift noise evolves.
func Build(d *design.Design, stretch float64, rng *rand.Rand) (*City, error) {
	rows := len(d.Map.Layout)
	cols := len(d.Map.Layout[0])

	c := &City{
		Grid:      grid.New(rows, cols),
		Buildings: make(map[grid.Position]*Building),
		parcels:   make(map[grid.Position]*Parcel),
	}

	// Re-index neighborhoods to dense incremental indices, in raw-id order
	// so construction is deterministic.
	rawIDs := make([]int, 0, len(d.Neighborhoods))
	for id := range d.Neighborhoods {
		rawIDs = append(rawIDs, id)
	}
	sort.Ints(rawIDs)
	index := make(map[int]int, len(rawIDs))
	for i, id := range rawIDs {
		n := d.Neighborhoods[id]
		index[id] = i
		c.Neighborhoods = append(c.Neighborhoods, Neighborhood{
			ID:             id,
			Name:           n.Name,
			Desirability:   n.Desirability,
			MinUnits:       n.MinUnits,
			MaxUnits:       n.MaxUnits,
			MinArea:        n.MinArea,
			MaxArea:        n.MaxArea,
			SqmPerOccupant: n.SqmPerOccupant,
			PCommercial:    n.PCommercial,
		})
		c.UnitsByNeighborhood = append(c.UnitsByNeighborhood, nil)
		c.ResidentialParcels = append(c.ResidentialParcels, nil)
		c.Drift = append(c.Drift, &simplexDrift{
			noise:   opensimplex.New(rng.Int63()),
			stretch: stretch,
		})
	}

	// Parse every annotated cell into a parcel. Neighborhood ids with no
	// configured parameters resolve to no neighborhood rather than failing.
	for r, row := range d.Map.Layout {
		for col, cell := range row {
			if cell == nil {
				continue
			}
			parsed, err := design.ParseCell(*cell)
			if err != nil {
				return nil, err
			}
			typ, err := ParseParcelType(parsed.ParcelType)
			if err != nil {
				return nil, fmt.Errorf("cell (%d,%d): %w", r, col, err)
			}
			neighb := NoNeighborhood
			if idx, ok := index[parsed.Neighborhood]; ok && parsed.Neighborhood >= 0 {
				neighb = idx
			}
			pos := grid.Position{Row: r, Col: col}
			c.parcels[pos] = &Parcel{
				Pos:          pos,
				Type:         typ,
				Neighborhood: neighb,
			}
			c.order = append(c.order, pos)
		}
	}

	normalizeNeighborhoodDesirability(c.Neighborhoods)
	c.generateUnits(d, rng)
	c.computeParcelDesirability()

	// Recompute unit values from final parcel desirabilities.
	for _, u := range c.Units {
		u.Value = d.City.PriceToRentRatio * u.Rent * 12 * c.ParcelForUnit(u).Desirability
	}

	return c, nil
}

// normalizeNeighborhoodDesirability min-max rescales base desirabilities
// into [0.5, 1.5] so one outlier neighborhood cannot dominate the
// downstream desirability math.
func normalizeNeighborhoodDesirability(neighbs []Neighborhood) {
	if len(neighbs) == 0 {
		return
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, n := range neighbs {
		lo = math.Min(lo, n.Desirability)
		hi = math.Max(hi, n.Desirability)
	}
	span := hi - lo
	for i := range neighbs {
		if span == 0 {
			neighbs[i].Desirability = 1.0
			continue
		}
		neighbs[i].Desirability = 1.0 + (neighbs[i].Desirability-lo)/span - 0.5
	}
}

// generateUnits synthesizes buildings and units on every residential
// parcel that belongs to a neighborhood.
func (c *City) generateUnits(d *design.Design, rng *rand.Rand) {
	// Occupancy capacity draws use a Beta(area ratio, 3) distribution so
	// large units skew toward more bedrooms without exceeding the area.
	betaSrc := xrand.NewSource(rng.Uint64())

	for _, pos := range c.order {
		p := c.parcels[pos]
		if p.Type != Residential || p.Neighborhood == NoNeighborhood {
			continue
		}
		neighb := c.Neighborhoods[p.Neighborhood]
		c.ResidentialParcels[p.Neighborhood] = append(c.ResidentialParcels[p.Neighborhood], pos)

		nUnits := sampleRange(neighb.MinUnits, neighb.MaxUnits, rng)
		nCommercial := 0

		// Houses have no commercial floors. Larger buildings decompose
		// into 4-unit floors, so keep unit counts divisible by 4.
		if nUnits > 3 {
			if nUnits%4 != 0 {
				nUnits += 4 - nUnits%4
			}
			floors := float64(nUnits) / 4
			totalFloors := math.Ceil(floors / (1 - neighb.PCommercial))
			nCommercial = int(totalFloors - floors)
		}

		b := &Building{Commercial: nCommercial}
		for i := 0; i < nUnits; i++ {
			area := float64(sampleRange(neighb.MinArea, neighb.MaxArea, rng))
			value := d.City.PricePerSqm * area * neighb.Desirability
			rent := value / d.City.PriceToRentRatio / 12

			areaDiv := area / float64(neighb.SqmPerOccupant)
			beta := distuv.Beta{Alpha: areaDiv, Beta: 3, Src: betaSrc}
			sampled := int(math.Round(beta.Rand() * float64(d.City.MaxBedrooms)))
			occupancy := int(math.Round(areaDiv))
			if sampled < occupancy {
				occupancy = sampled
			}
			if occupancy < 1 {
				occupancy = 1
			}

			id := len(c.Units)
			c.Units = append(c.Units, &Unit{
				ID:        id,
				Pos:       pos,
				Rent:      rent,
				Occupancy: occupancy,
				Area:      area,
				Value:     value,
				Condition: 1.0,
				Tenants:   make(map[int]struct{}),
				Owner:     Owner{Type: OwnerLandlord, ID: 0}, // placeholder until ownership is distributed
			})
			b.Units = append(b.Units, id)
			c.UnitsByNeighborhood[p.Neighborhood] = append(c.UnitsByNeighborhood[p.Neighborhood], id)
		}
		c.Buildings[pos] = b

		if nCommercial > 0 {
			c.Commercial = append(c.Commercial, CommercialSite{Pos: pos, Floors: nCommercial})
		}
	}
}

// computeParcelDesirability scores every residential parcel from park
// proximity, neighborhood base desirability, and nearby commercial
// density, then rescales so the population mean is 1.0.
func (c *City) computeParcelDesirability() {
	var parks []grid.Position
	for _, pos := range c.order {
		if c.parcels[pos].Type == Park {
			parks = append(parks, pos)
		}
	}

	total := 0.0
	count := 0
	for _, pos := range c.order {
		p := c.parcels[pos]
		if p.Type != Residential {
			continue
		}

		parkDist := 1.0
		if len(parks) > 0 {
			parkDist = math.Inf(1)
			for _, park := range parks {
				parkDist = math.Min(parkDist, grid.Distance(pos, park))
			}
		}

		nCommercial := 0
		for _, q := range c.Grid.Radius(pos, 2) {
			if b, ok := c.Buildings[q]; ok {
				nCommercial += b.Commercial
			}
		}

		neighbDes := 0.0
		if p.Neighborhood != NoNeighborhood {
			neighbDes = c.Neighborhoods[p.Neighborhood].Desirability
		}

		p.Desirability = 10/parkDist + neighbDes + float64(nCommercial)/10
		total += p.Desirability
		count++
	}

	if count == 0 {
		return
	}
	mean := total / float64(count)
	for _, pos := range c.order {
		p := c.parcels[pos]
		if p.Type == Residential {
			p.Desirability /= mean
		}
	}
}

// ParcelAt returns the parcel at pos, or nil if the position is empty.
func (c *City) ParcelAt(pos grid.Position) *Parcel {
	return c.parcels[pos]
}

// ParcelForUnit returns the parcel under a unit. A unit whose position has
// no parcel is a construction bug, not a recoverable condition.
func (c *City) ParcelForUnit(u *Unit) *Parcel {
	p := c.parcels[u.Pos]
	if p == nil {
		panic(fmt.Sprintf("unit %d at %v has no parcel", u.ID, u.Pos))
	}
	return p
}

// Parcels returns all parcels in layout order.
func (c *City) Parcels() []*Parcel {
	out := make([]*Parcel, 0, len(c.order))
	for _, pos := range c.order {
		out = append(out, c.parcels[pos])
	}
	return out
}

// NeighborhoodAt returns the neighborhood of the parcel at pos, if any.
func (c *City) NeighborhoodAt(pos grid.Position) (Neighborhood, bool) {
	p := c.parcels[pos]
	if p == nil || p.Neighborhood == NoNeighborhood {
		return Neighborhood{}, false
	}
	return c.Neighborhoods[p.Neighborhood], true
}

// sampleRange draws uniformly from [lo, hi); a degenerate range returns lo.
func sampleRange(lo, hi int, rng *rand.Rand) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.Intn(hi-lo)
}
