package city

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/domacity/internal/design"
	"github.com/talgya/domacity/internal/grid"
)

func cell(s string) *string { return &s }

// testDesign pins the generation ranges so unit synthesis is exact: every
// residential parcel gets one 4-unit building of 40sqm flats plus one
// commercial floor.
func testDesign() *design.Design {
	return &design.Design{
		Map: design.Map{Layout: [][]*string{
			{cell("0|Residential"), cell("-1|Park")},
			{cell("0|Residential"), cell("-1|River")},
		}},
		Neighborhoods: map[int]design.Neighborhood{
			0: {
				Name: "Test", Desirability: 5,
				MinUnits: 4, MaxUnits: 4,
				MinArea: 40, MaxArea: 40,
				SqmPerOccupant: 20, PCommercial: 0.2,
			},
		},
		City: design.CityParams{
			Name:             "Testville",
			MaxBedrooms:      3,
			PricePerSqm:      100,
			PriceToRentRatio: 20,
			Landlords:        1,
			Population:       4,
			Incomes:          []design.IncomeBracket{{Low: 500, High: 2000, P: 1}},
		},
	}
}

func buildTestCity(t *testing.T, seed int64) *City {
	t.Helper()
	c, err := Build(testDesign(), 48, rand.New(rand.NewSource(seed)))
	require.NoError(t, err)
	return c
}

func TestBuildSynthesizesUnits(t *testing.T) {
	c := buildTestCity(t, 1)

	// Two residential parcels, four units each.
	assert.Len(t, c.Units, 8)
	assert.Len(t, c.UnitsByNeighborhood, 1)
	assert.Len(t, c.UnitsByNeighborhood[0], 8)
	assert.Len(t, c.ResidentialParcels[0], 2)

	for _, u := range c.Units {
		assert.Equal(t, 40.0, u.Area)
		assert.Equal(t, 1.0, u.Condition)
		assert.Greater(t, u.Rent, 0.0)
		assert.Greater(t, u.Value, 0.0)
		assert.Empty(t, u.Tenants)
		// Occupancy is bounded by area per occupant.
		assert.GreaterOrEqual(t, u.Occupancy, 1)
		assert.LessOrEqual(t, u.Occupancy, 2)
	}
}

func TestBuildCommercialFloors(t *testing.T) {
	c := buildTestCity(t, 1)

	// One 4-unit floor at 20% commercial needs a second, commercial floor.
	assert.Len(t, c.Commercial, 2)
	for _, site := range c.Commercial {
		assert.Equal(t, 1, site.Floors)
	}
}

func TestBuildZeroCommercialRatio(t *testing.T) {
	d := testDesign()
	d.Map.Layout = [][]*string{{cell("0|Residential")}}
	n := d.Neighborhoods[0]
	n.PCommercial = 0
	d.Neighborhoods[0] = n

	c, err := Build(d, 48, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	// One building of exactly four 40sqm units and no commercial floors.
	assert.Len(t, c.Units, 4)
	assert.Empty(t, c.Commercial)
	require.Len(t, c.Buildings, 1)
	for _, b := range c.Buildings {
		assert.Len(t, b.Units, 4)
		assert.Equal(t, 0, b.Commercial)
	}
	for _, u := range c.Units {
		assert.Equal(t, 40.0, u.Area)
	}
}

func TestBuildUnitValueConsistency(t *testing.T) {
	c := buildTestCity(t, 3)
	for _, u := range c.Units {
		des := c.ParcelForUnit(u).Desirability
		assert.InDelta(t, 20*u.Rent*12*des, u.Value, 1e-9)
	}
}

func TestBuildParcelDesirabilityMeanIsOne(t *testing.T) {
	c := buildTestCity(t, 2)

	total, count := 0.0, 0
	for _, p := range c.Parcels() {
		if p.Type == Residential {
			total += p.Desirability
			count++
		}
	}
	require.Equal(t, 2, count)
	assert.InDelta(t, 1.0, total/float64(count), 1e-9)
}

func TestBuildDeterministicForSeed(t *testing.T) {
	a := buildTestCity(t, 42)
	b := buildTestCity(t, 42)

	require.Equal(t, len(a.Units), len(b.Units))
	for i := range a.Units {
		assert.Equal(t, a.Units[i].Area, b.Units[i].Area)
		assert.Equal(t, a.Units[i].Occupancy, b.Units[i].Occupancy)
		assert.Equal(t, a.Units[i].Rent, b.Units[i].Rent)
	}
}

func TestBuildRejectsUnknownParcelType(t *testing.T) {
	d := testDesign()
	d.Map.Layout[0][1] = cell("-1|Swamp")
	_, err := Build(d, 48, rand.New(rand.NewSource(1)))
	assert.ErrorContains(t, err, "unknown parcel type")
}

func TestBuildUnknownNeighborhoodIsUnzoned(t *testing.T) {
	d := testDesign()
	// Neighborhood 9 has no parameters; the parcel exists but grows nothing.
	d.Map.Layout[0][1] = cell("9|Residential")
	c, err := Build(d, 48, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	p := c.ParcelAt(grid.Position{Row: 0, Col: 1})
	require.NotNil(t, p)
	assert.Equal(t, NoNeighborhood, p.Neighborhood)
	// Only the two zoned parcels generate units.
	assert.Len(t, c.Units, 8)
}

func TestNormalizeNeighborhoodDesirability(t *testing.T) {
	neighbs := []Neighborhood{
		{Desirability: 2},
		{Desirability: 6},
		{Desirability: 10},
	}
	normalizeNeighborhoodDesirability(neighbs)
	assert.Equal(t, 0.5, neighbs[0].Desirability)
	assert.Equal(t, 1.0, neighbs[1].Desirability)
	assert.Equal(t, 1.5, neighbs[2].Desirability)

	flat := []Neighborhood{{Desirability: 7}, {Desirability: 7}}
	normalizeNeighborhoodDesirability(flat)
	assert.Equal(t, 1.0, flat[0].Desirability)
	assert.Equal(t, 1.0, flat[1].Desirability)
}

func TestParseParcelType(t *testing.T) {
	for token, want := range map[string]ParcelType{
		"Residential": Residential,
		"Industrial":  Industrial,
		"Park":        Park,
		"River":       River,
	} {
		got, err := ParseParcelType(token)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, token, got.String())
	}
	_, err := ParseParcelType("Swamp")
	assert.Error(t, err)
}
