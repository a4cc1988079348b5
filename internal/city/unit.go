package city

import "github.com/talgya/domacity/internal/grid"

// OwnerType tags which kind of agent holds a unit.
type OwnerType uint8

const (
	OwnerLandlord OwnerType = iota
	OwnerTenant
	OwnerFund
)

// String returns a stable name for an owner type.
func (t OwnerType) String() string {
	switch t {
	case OwnerLandlord:
		return "landlord"
	case OwnerTenant:
		return "tenant"
	case OwnerFund:
		return "fund"
	default:
		return "unknown"
	}
}

// Owner identifies a unit's holder. The Fund is a singleton; its ID is
// always 0.
type Owner struct {
	Type OwnerType `json:"type"`
	ID   int       `json:"id"`
}

// Offer is a pending purchase bid attached to a unit.
type Offer struct {
	Bidder Owner   `json:"bidder"`
	Amount float64 `json:"amount"`
}

// Unit is a rentable, ownable dwelling. It is the central mutable entity:
// rent, value, condition, occupants, owner, and offers all change over a
// run, while id, position, area, and capacity are fixed at construction.
type Unit struct {
	ID        int           `json:"id"`
	Pos       grid.Position `json:"pos"`
	Rent      float64       `json:"rent"`
	Occupancy int           `json:"occupancy"`
	Area      float64       `json:"area"`
	Value     float64       `json:"value"`
	Condition float64       `json:"condition"` // 0..1

	Tenants      map[int]struct{} `json:"-"`
	MonthsVacant int              `json:"months_vacant"`
	LeaseMonth   int              `json:"lease_month"`
	Owner        Owner            `json:"owner"`
	Offers       []Offer          `json:"-"`
	RecentlySold bool             `json:"-"`
}

// Vacant reports whether the unit has no occupants at all.
func (u *Unit) Vacant() bool {
	return len(u.Tenants) == 0
}

// Vacancies returns the remaining occupant slots.
func (u *Unit) Vacancies() int {
	return u.Occupancy - len(u.Tenants)
}

// RentPerArea is the unit's monthly rent per unit area.
func (u *Unit) RentPerArea() float64 {
	return u.Rent / u.Area
}

// ValuePerArea is the unit's appraised value per unit area.
func (u *Unit) ValuePerArea() float64 {
	return u.Value / u.Area
}

// AddTenant joins a tenant to the unit's occupant set.
func (u *Unit) AddTenant(id int) {
	if u.Tenants == nil {
		u.Tenants = make(map[int]struct{})
	}
	u.Tenants[id] = struct{}{}
}

// RemoveTenant drops a tenant from the occupant set.
func (u *Unit) RemoveTenant(id int) {
	delete(u.Tenants, id)
}

// Occupied reports whether the given tenant lives here.
func (u *Unit) Occupied(id int) bool {
	_, ok := u.Tenants[id]
	return ok
}
