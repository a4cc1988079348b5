package agents

import (
	"math"
	"math/rand"

	"github.com/talgya/domacity/internal/city"
)

// Landlord owns units for profit. It tracks, per neighborhood, the maximum
// observed rent-per-area and projects it forward to decide where to buy.
type Landlord struct {
	ID          int     `json:"id"`
	Units       []int   `json:"units"`
	Maintenance float64 `json:"maintenance"` // condition restored per month

	// Rolling per-neighborhood market observations and derived estimates,
	// indexed by neighborhood index.
	RentObs   [][]float64 `json:"-"`
	TrendEst  []float64   `json:"trend_est"`
	InvestEst []float64   `json:"invest_est"`

	Forecaster Forecaster `json:"-"`
}

// NewLandlord creates a landlord covering every neighborhood.
func NewLandlord(id, neighborhoods int, f Forecaster) *Landlord {
	return &Landlord{
		ID:          id,
		Maintenance: 0.001,
		RentObs:     make([][]float64, neighborhoods),
		TrendEst:    make([]float64, neighborhoods),
		InvestEst:   make([]float64, neighborhoods),
		Forecaster:  f,
	}
}

// Step runs the landlord's month: refresh market estimates, maintain and
// manage owned units, then place acquisition bids.
func (l *Landlord) Step(c *city.City, ctx StepContext, rng *rand.Rand) {
	l.estimateRents(c, ctx.SampleSize, rng)
	l.estimateTrends()

	// Condition decays stochastically and maintenance claws some back.
	for _, id := range l.Units {
		u := c.Units[id]
		u.Condition -= rng.Float64() * 0.1
		u.Condition += l.Maintenance
		u.Condition = math.Min(math.Max(u.Condition, 0), 1)
	}

	for _, id := range l.Units {
		u := c.Units[id]
		if u.Vacant() {
			u.MonthsVacant++
			if u.MonthsVacant%2 == 0 {
				u.Rent *= 0.98
			}
		} else {
			elapsed := ctx.Month - u.LeaseMonth
			if elapsed > 0 && elapsed%12 == 0 && !ctx.RentFreeze {
				u.Rent *= ctx.RentIncreaseRate
			}
		}
	}

	if ctx.MarketTax {
		return
	}
	l.makeBids(c, ctx, rng)
}

// estimateRents appends this month's maximum observed rent-per-area to
// each neighborhood's history, combining the landlord's own occupied
// units with a random market sample.
func (l *Landlord) estimateRents(c *city.City, sampleSize int, rng *rand.Rand) {
	own := make([][]float64, len(l.RentObs))
	for _, id := range l.Units {
		u := c.Units[id]
		if u.Vacant() {
			continue
		}
		p := c.ParcelForUnit(u)
		if p.Neighborhood == city.NoNeighborhood {
			continue
		}
		own[p.Neighborhood] = append(own[p.Neighborhood], u.RentPerArea())
	}

	for n := range l.RentObs {
		obs := own[n]
		for _, id := range sampleIDs(c.UnitsByNeighborhood[n], sampleSize, rng) {
			obs = append(obs, c.Units[id].RentPerArea())
		}
		if len(obs) == 0 {
			continue
		}
		maxRent := obs[0]
		for _, r := range obs[1:] {
			maxRent = math.Max(maxRent, r)
		}
		l.RentObs[n] = append(l.RentObs[n], maxRent)
	}
}

// estimateTrends fits the forecaster over each neighborhood's history.
// Investment potential is the projected change from the latest
// observation; windows that are not yet full are skipped.
func (l *Landlord) estimateTrends() {
	for n, history := range l.RentObs {
		next, ok := l.Forecaster.Forecast(history)
		if !ok {
			continue
		}
		l.TrendEst[n] = next
		l.InvestEst[n] = next - history[len(history)-1]
	}
}

// makeBids picks one neighborhood weighted by investment potential and
// bids on sampled units whose trend-projected value beats their current
// appraisal.
func (l *Landlord) makeBids(c *city.City, ctx StepContext, rng *rand.Rand) {
	if len(l.InvestEst) == 0 {
		return
	}
	weights := make([]float64, len(l.InvestEst))
	for n, est := range l.InvestEst {
		weights[n] = math.Max(0, est)
	}
	neighb := weightedChoice(weights, rng)
	futureRent := l.TrendEst[neighb]

	for _, id := range sampleIDs(c.UnitsByNeighborhood[neighb], ctx.SampleSize, rng) {
		u := c.Units[id]
		if u.Owner.Type == city.OwnerLandlord && u.Owner.ID == l.ID {
			continue
		}
		est := futureRent * u.Area * 12 * ctx.PriceToRent * c.ParcelForUnit(u).Desirability
		if est > 0 && est > u.Value {
			u.Offers = append(u.Offers, city.Offer{
				Bidder: city.Owner{Type: city.OwnerLandlord, ID: l.ID},
				Amount: est,
			})
		}
	}
}

// CheckPurchaseOffers settles pending bids on owned units, valuing each
// unit by the landlord's own trend estimate rather than a static
// multiplier. All offers clear regardless of outcome.
func (l *Landlord) CheckPurchaseOffers(c *city.City, priceToRent float64) []Transfer {
	var transfers []Transfer
	for _, id := range l.Units {
		u := c.Units[id]
		if len(u.Offers) == 0 {
			continue
		}

		p := c.ParcelForUnit(u)
		futureRent := 0.0
		if p.Neighborhood != city.NoNeighborhood {
			futureRent = l.TrendEst[p.Neighborhood]
		}
		estValue := futureRent * u.Area * 12 * priceToRent * p.Desirability

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
		l.Units = removeID(l.Units, tr.UnitID)
	}
	return transfers
}
