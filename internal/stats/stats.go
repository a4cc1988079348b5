// Package stats computes read-only per-step aggregates over the city and
// agent state, for logging, the API, and run-history persistence.
package stats

import (
	"math"

	"github.com/talgya/domacity/internal/agents"
	"github.com/talgya/domacity/internal/city"
)

// Snapshot is one step's aggregate view of the market.
type Snapshot struct {
	Month int `json:"month"`

	PercentHoused           float64 `json:"percent_housed"`
	PercentVacant           float64 `json:"percent_vacant"`
	UnitCount               int     `json:"n_units"`
	MeanRentPerArea         float64 `json:"mean_rent_per_area"`
	MeanAdjustedRentPerArea float64 `json:"mean_adjusted_rent_per_area"`
	MeanMonthsVacant        float64 `json:"mean_months_vacant"`
	MeanValuePerArea        float64 `json:"mean_value_per_area"`
	MeanValue               float64 `json:"mean_value"`
	MinValue                float64 `json:"min_value"`
	MeanCondition           float64 `json:"mean_condition"`
	MeanPriceToRent         float64 `json:"mean_price_to_rent"`
	MeanRentIncomeRatio     float64 `json:"mean_rent_income_ratio"`
	MeanOffers              float64 `json:"mean_offers"`
	UniqueOwners            int     `json:"unique_owners"`

	FundMemberShare float64 `json:"fund_member_share"` // members / tenants
	FundUnits       int     `json:"fund_units"`
	FundBalance     float64 `json:"fund_balance"`

	Neighborhoods map[int]NeighborhoodStats `json:"neighborhoods"`
}

// NeighborhoodStats is the per-neighborhood breakdown.
type NeighborhoodStats struct {
	PercentVacant           float64 `json:"percent_vacant"`
	MeanRentPerArea         float64 `json:"mean_rent_per_area"`
	MeanAdjustedRentPerArea float64 `json:"mean_adjusted_rent_per_area"`
	MeanValuePerArea        float64 `json:"mean_value_per_area"`
	MeanMonthsVacant        float64 `json:"mean_months_vacant"`
	MeanRentIncomeRatio     float64 `json:"mean_rent_income_ratio"`
	FundUnits               int     `json:"fund_units"`
}

// Collect aggregates one step's state. It only reads.
func Collect(month int, c *city.City, tenants []*agents.Tenant, fund *agents.Fund) Snapshot {
	s := Snapshot{
		Month:         month,
		UnitCount:     len(c.Units),
		MinValue:      math.Inf(1),
		Neighborhoods: make(map[int]NeighborhoodStats, len(c.Neighborhoods)),
		FundUnits:     len(fund.Units),
		FundBalance:   fund.Funds,
	}

	nUnits := float64(len(c.Units))
	if nUnits == 0 {
		return s
	}

	housed := 0
	vacant := 0.0
	owners := make(map[city.Owner]bool)

	for neighb, unitIDs := range c.UnitsByNeighborhood {
		ns := NeighborhoodStats{}
		nTenants := 0
		for _, id := range unitIDs {
			u := c.Units[id]
			s.MeanOffers += float64(len(u.Offers))
			s.MeanValue += u.Value
			s.MeanCondition += u.Condition
			s.MinValue = math.Min(s.MinValue, u.Value)
			if u.Rent > 0 {
				s.MeanPriceToRent += u.Value / (u.Rent * 12)
			}
			if u.Vacant() {
				ns.PercentVacant++
			}
			if u.Owner.Type == city.OwnerFund {
				ns.FundUnits++
			}
			owners[u.Owner] = true

			ns.MeanRentPerArea += u.RentPerArea()
			ns.MeanValuePerArea += u.ValuePerArea()
			ns.MeanMonthsVacant += float64(u.MonthsVacant)

			discount := 0.0
			if n := len(u.Tenants); n > 0 {
				perTenant := u.Rent / float64(n)
				for t := range u.Tenants {
					discount += tenants[t].LastDividend
					if tenants[t].Income > 0 {
						ns.MeanRentIncomeRatio += perTenant / tenants[t].Income
					}
				}
				housed += n
				nTenants += n
			}
			ns.MeanAdjustedRentPerArea += math.Max(u.Rent-discount, 0) / u.Area
		}

		n := float64(len(unitIDs))
		vacant += ns.PercentVacant
		s.MeanRentPerArea += ns.MeanRentPerArea
		s.MeanAdjustedRentPerArea += ns.MeanAdjustedRentPerArea
		s.MeanValuePerArea += ns.MeanValuePerArea
		s.MeanMonthsVacant += ns.MeanMonthsVacant
		s.MeanRentIncomeRatio += ns.MeanRentIncomeRatio

		if n > 0 {
			if nTenants > 0 {
				ns.MeanRentIncomeRatio /= float64(nTenants)
			}
			ns.PercentVacant /= n
			ns.MeanRentPerArea /= n
			ns.MeanAdjustedRentPerArea /= n
			ns.MeanValuePerArea /= n
			ns.MeanMonthsVacant /= n
		}
		s.Neighborhoods[neighb] = ns
	}

	s.PercentVacant = vacant / nUnits
	s.MeanRentPerArea /= nUnits
	s.MeanAdjustedRentPerArea /= nUnits
	s.MeanValuePerArea /= nUnits
	s.MeanMonthsVacant /= nUnits
	s.MeanValue /= nUnits
	s.MeanCondition /= nUnits
	s.MeanPriceToRent /= nUnits
	s.MeanOffers /= nUnits
	s.UniqueOwners = len(owners)

	if housed > 0 {
		s.MeanRentIncomeRatio /= float64(housed)
	}
	if len(tenants) > 0 {
		s.PercentHoused = float64(housed) / float64(len(tenants))
		s.FundMemberShare = float64(len(fund.Shares)) / float64(len(tenants))
	}
	return s
}
