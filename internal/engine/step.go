package engine

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/talgya/domacity/internal/agents"
	"github.com/talgya/domacity/internal/city"
)

// Step advances the simulation by one month. Order matters: last month's
// purchase offers settle before anyone acts, then landlords move, then
// tenants, then the yearly appraisal, the fund, and neighborhood drift.
func (s *Simulation) Step() {
	s.LastTransfers = s.settleOffers()

	ctx := agents.StepContext{
		Month:            s.Month,
		PriceToRent:      s.Design.City.PriceToRentRatio,
		SampleSize:       s.Config.SampleSize,
		TenantSampleSize: s.Config.TenantSampleSize,
		MovingPenalty:    s.Config.MovingPenalty,
		RentIncreaseRate: s.Config.RentIncreaseRate,
		RentFreeze:       s.PolicyActive(PolicyRentFreeze),
		MarketTax:        s.PolicyActive(PolicyMarketTax),
	}

	for _, i := range s.shuffledIndexes(len(s.Landlords)) {
		s.Landlords[i].Step(s.City, ctx, s.RNG)
	}

	var vacant []int
	for _, u := range s.City.Units {
		if u.Vacancies() > 0 {
			vacant = append(vacant, u.ID)
		}
	}
	pool := agents.NewVacancyPool(vacant)

	for _, i := range s.shuffledIndexes(len(s.Tenants)) {
		t := s.Tenants[i]
		if t.Player {
			continue
		}
		t.Step(s.City, ctx, pool, s.RNG)
	}

	if s.Month > 0 && s.Month%12 == 0 {
		s.appraise()
	}

	s.Fund.Step(s.City, s.Tenants, s.RNG)
	s.driftDesirability()
	s.agePolicies()
	s.Month++
}

// settleOffers runs every owner's offer review and applies the resulting
// transfers to the buyers' books. Sold units are flagged for the next
// appraisal.
func (s *Simulation) settleOffers() []agents.Transfer {
	var transfers []agents.Transfer
	for _, t := range s.Tenants {
		transfers = append(transfers, t.CheckPurchaseOffers(s.City, s.Design.City.PriceToRentRatio)...)
	}
	for _, l := range s.Landlords {
		transfers = append(transfers, l.CheckPurchaseOffers(s.City, s.Design.City.PriceToRentRatio)...)
	}

	for _, tr := range transfers {
		u := s.City.Units[tr.UnitID]
		u.RecentlySold = true
		switch tr.Buyer.Type {
		case city.OwnerLandlord:
			l := s.Landlords[tr.Buyer.ID]
			l.Units = append(l.Units, tr.UnitID)
		case city.OwnerTenant:
			t := s.Tenants[tr.Buyer.ID]
			t.Units = append(t.Units, tr.UnitID)
		case city.OwnerFund:
			s.Fund.Units = append(s.Fund.Units, tr.UnitID)
			s.Fund.Funds -= tr.Amount
		}
	}

	if len(transfers) > 0 {
		slog.Debug("offers settled", "month", s.Month, "transfers", len(transfers))
	}
	return transfers
}

// appraise re-values every unit once a year from the sales that actually
// closed in its neighborhood. Neighborhoods with no sales fall back to
// the mean of their standing stock. Sold units keep their sale price.
func (s *Simulation) appraise() {
	appreciation := s.Config.BaseAppreciation

	for _, unitIDs := range s.City.UnitsByNeighborhood {
		soldTotal, soldN := 0.0, 0
		allTotal, allN := 0.0, 0
		for _, id := range unitIDs {
			u := s.City.Units[id]
			allTotal += u.ValuePerArea()
			allN++
			if u.RecentlySold {
				soldTotal += u.ValuePerArea()
				soldN++
			}
		}
		if allN == 0 {
			continue
		}

		perArea := allTotal / float64(allN)
		if soldN > 0 {
			perArea = soldTotal / float64(soldN)
		}
		perArea *= appreciation

		for _, id := range unitIDs {
			u := s.City.Units[id]
			if !u.RecentlySold {
				u.Value = perArea * u.Area
			}
			u.RecentlySold = false
		}
	}
}

// driftDesirability nudges each neighborhood's parcel desirability by the
// month-over-month change of its noise channel.
func (s *Simulation) driftDesirability() {
	for n, positions := range s.City.ResidentialParcels {
		drift := s.City.Drift[n]
		prev := 0.0
		if s.Month > 0 {
			prev = drift.Value(float64(s.Month - 1))
		}
		change := drift.Value(float64(s.Month)) - prev
		for _, pos := range positions {
			p := s.City.ParcelAt(pos)
			p.Desirability = math.Max(0, p.Desirability-change)
		}
	}
}

// Contribute deposits a tenant's voluntary fund contribution and spreads
// the idea through their social network. Reached friends chip in a fixed
// share of their income with a small probability.
func (s *Simulation) Contribute(tenantID int, amount float64) error {
	if tenantID < 0 || tenantID >= len(s.Tenants) {
		return fmt.Errorf("no tenant %d", tenantID)
	}
	s.Fund.AddFunds(tenantID, amount)

	infected := s.Social.Contagion(
		tenantID,
		s.Config.EncounterRate,
		s.Config.TransmissionRate,
		s.Config.MaxContagionDepth,
		s.RNG,
	)
	reached := make([]int, 0, len(infected))
	for id := range infected {
		reached = append(reached, id)
	}
	sort.Ints(reached)

	converts := 0
	for _, id := range reached {
		if s.RNG.Float64() >= s.Config.ContributeProb {
			continue
		}
		t := s.Tenants[id]
		s.Fund.AddFunds(id, s.Config.ContributePercent*t.Income)
		converts++
	}
	slog.Debug("contribution spread",
		"tenant", tenantID, "amount", amount,
		"reached", len(reached), "converts", converts)
	return nil
}

// MoveTenant relocates a tenant into a specific unit, bypassing the
// desirability search. Used by the play layer.
func (s *Simulation) MoveTenant(tenantID, unitID int) error {
	if tenantID < 0 || tenantID >= len(s.Tenants) {
		return fmt.Errorf("no tenant %d", tenantID)
	}
	if unitID < 0 || unitID >= len(s.City.Units) {
		return fmt.Errorf("no unit %d", unitID)
	}
	t := s.Tenants[tenantID]
	u := s.City.Units[unitID]
	if t.Unit == unitID {
		return nil
	}
	if u.Vacancies() <= 0 {
		return fmt.Errorf("unit %d is full", unitID)
	}

	if t.Unit != agents.NoUnit {
		s.City.Units[t.Unit].RemoveTenant(tenantID)
	}
	if u.Vacant() {
		u.LeaseMonth = s.Month % 12
		u.MonthsVacant = 0
	}
	u.AddTenant(tenantID)
	t.Unit = unitID
	return nil
}

// SetPlayer marks or releases a tenant as player-controlled.
func (s *Simulation) SetPlayer(tenantID int, player bool) error {
	if tenantID < 0 || tenantID >= len(s.Tenants) {
		return fmt.Errorf("no tenant %d", tenantID)
	}
	s.Tenants[tenantID].Player = player
	return nil
}

// shuffledIndexes returns 0..n-1 in random order.
func (s *Simulation) shuffledIndexes(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	s.RNG.Shuffle(n, func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
	return idx
}
