package agents

import (
	"math"
	"math/rand"

	"github.com/talgya/domacity/internal/city"
	"github.com/talgya/domacity/internal/grid"
)

// minComfortableArea is the per-occupant floor area below which
// spaciousness contributes nothing to desirability.
const minComfortableArea = 50.0

// NoUnit marks a tenant without housing.
const NoUnit = -1

// Tenant rents a unit to live in and may hold other units as an investor.
type Tenant struct {
	ID     int           `json:"id"`
	Income float64       `json:"income"` // monthly
	Unit   int           `json:"unit"`   // NoUnit when unhoused
	Work   grid.Position `json:"work"`
	Units  []int         `json:"units"` // owned as investor

	// LastDividend is the most recent cooperative fund payout, which
	// discounts the rent the tenant effectively faces.
	LastDividend float64 `json:"last_dividend"`

	// Player suspends automated decisions while a human controls the
	// tenant through the play layer.
	Player bool `json:"player"`
}

// AdjustedRent is the tenant's share of a unit's rent if they joined it,
// discounted by their last fund dividend, never below zero.
func (t *Tenant) AdjustedRent(u *city.Unit) float64 {
	n := float64(len(u.Tenants) + 1)
	perTenant := u.Rent / n
	return math.Max(perTenant-t.LastDividend, 0)
}

// Desirability scores a prospective unit for this tenant. Unaffordable
// units score exactly zero; otherwise the score combines affordability
// headroom, spaciousness, location, condition, and commute.
func (t *Tenant) Desirability(u *city.Unit, p *city.Parcel) float64 {
	n := float64(len(u.Tenants) + 1)
	adjusted := t.AdjustedRent(u)
	if t.Income < adjusted {
		return 0
	}

	ratio := math.Sqrt(t.Income / math.Max(adjusted, 1))
	spaciousness := math.Pow(math.Max(u.Area/n-minComfortableArea, 0), 1.0/32)
	commute := 1.0
	if d := grid.Distance(t.Work, u.Pos); d > 0 {
		commute = 1 / d
	}
	return ratio * (spaciousness + p.Desirability + u.Condition + commute)
}

// Step runs the tenant's monthly housing decision. A tenant reconsiders
// housing when unhoused, at a 12-month lease anniversary, or when the
// current unit has become unaffordable (which forces a vacancy).
func (t *Tenant) Step(c *city.City, ctx StepContext, pool *VacancyPool, rng *rand.Rand) {
	reconsider := false
	current := 0.0
	penalty := ctx.MovingPenalty

	if t.Unit == NoUnit {
		reconsider = true
		current = -1
		penalty = 0
	} else {
		u := c.Units[t.Unit]
		elapsed := 0
		if ctx.Month > u.LeaseMonth {
			elapsed = ctx.Month - u.LeaseMonth
		}
		reconsider = elapsed > 0 && elapsed%12 == 0
		current = t.Desirability(u, c.ParcelForUnit(u))
		if current == 0 {
			// Priced out: release the unit and search from scratch, with
			// the same baseline as an unhoused tenant.
			reconsider = true
			current = -1
			penalty = 0
			u.RemoveTenant(t.ID)
			pool.Add(t.Unit)
			t.Unit = NoUnit
		}
	}

	if !reconsider || pool.Len() == 0 {
		return
	}

	bestID, bestScore := NoUnit, 0.0
	for _, id := range pool.Sample(ctx.TenantSampleSize, rng) {
		u := c.Units[id]
		if u.Vacancies() <= 0 {
			continue
		}
		if score := t.Desirability(u, c.ParcelForUnit(u)); score > bestScore {
			bestID, bestScore = id, score
		}
	}

	if bestID == NoUnit || bestScore-penalty <= current {
		return
	}

	if t.Unit != NoUnit {
		c.Units[t.Unit].RemoveTenant(t.ID)
		pool.Add(t.Unit)
	}

	u := c.Units[bestID]
	if u.Vacant() {
		// A fresh lease cycle starts when a fully vacant unit is taken.
		u.LeaseMonth = ctx.Month % 12
		u.MonthsVacant = 0
	}
	u.AddTenant(t.ID)
	t.Unit = bestID
	if u.Vacancies() == 0 {
		pool.Remove(bestID)
	}
}

// CheckPurchaseOffers settles pending bids on the tenant's investment
// units, accepting the single highest offer above a static price-to-rent
// valuation. All offers clear regardless of outcome.
func (t *Tenant) CheckPurchaseOffers(c *city.City, priceToRent float64) []Transfer {
	var transfers []Transfer
	for _, id := range t.Units {
		u := c.Units[id]
		if len(u.Offers) == 0 {
			continue
		}

		// The longer a unit sits vacant the lower its rent has drifted,
		// so this estimate sinks over time and offers become acceptable.
		estValue := u.Rent * 12 * priceToRent * c.ParcelForUnit(u).Desirability

		best := city.Offer{}
		for _, o := range u.Offers {
			if o.Amount > estValue && o.Amount > best.Amount {
				best = o
			}
		}
		if best.Amount > 0 {
			u.Value = best.Amount
			u.Owner = best.Bidder
			transfers = append(transfers, Transfer{Buyer: best.Bidder, UnitID: id, Amount: best.Amount})
		}
		u.Offers = nil
	}

	for _, tr := range transfers {
		t.Units = removeID(t.Units, tr.UnitID)
	}
	return transfers
}
