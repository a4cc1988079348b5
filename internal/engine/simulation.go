// Package engine drives the monthly simulation step and wires the city,
// agents, fund, and social graph together.
package engine

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sort"

	"github.com/talgya/domacity/internal/agents"
	"github.com/talgya/domacity/internal/city"
	"github.com/talgya/domacity/internal/config"
	"github.com/talgya/domacity/internal/design"
	"github.com/talgya/domacity/internal/grid"
	"github.com/talgya/domacity/internal/social"
)

// Simulation holds the complete run state. One seeded RNG is threaded
// through every decision so identical seeds reproduce identical runs.
type Simulation struct {
	City      *city.City
	Tenants   []*agents.Tenant
	Landlords []*agents.Landlord
	Fund      *agents.Fund
	Social    *social.Graph

	Design *design.Design
	Config *config.Config
	RNG    *rand.Rand

	Month    int
	Policies []Policy

	// LastTransfers holds the transfers settled at the top of the most
	// recent step, for reporting and persistence.
	LastTransfers []agents.Transfer
}

// New builds a simulation: city from the design, then landlords, tenants
// with initial placement, the ownership distribution, the fund, and the
// social graph.
func New(d *design.Design, cfg *config.Config, rng *rand.Rand) (*Simulation, error) {
	c, err := city.Build(d, cfg.DesirabilityStretch, rng)
	if err != nil {
		return nil, fmt.Errorf("build city: %w", err)
	}
	if len(c.Units) == 0 {
		return nil, fmt.Errorf("design produced no units")
	}

	s := &Simulation{
		City:   c,
		Design: d,
		Config: cfg,
		RNG:    rng,
		Fund: agents.NewFund(
			cfg.FundStartingFunds,
			cfg.FundRentShare,
			cfg.FundReserves,
			cfg.FundExpenses,
			cfg.FundRentIncomeLimit,
		),
	}

	for i := 0; i < d.City.Landlords; i++ {
		s.Landlords = append(s.Landlords, agents.NewLandlord(
			i, len(c.Neighborhoods), agents.LinearForecaster{Window: cfg.TrendMonths}))
	}

	s.spawnTenants()
	s.distributeOwnership()
	s.Social = social.NewGraph(len(s.Tenants), cfg.FriendLimit, rng)

	slog.Info("simulation ready",
		"city", d.City.Name,
		"units", len(c.Units),
		"tenants", len(s.Tenants),
		"landlords", len(s.Landlords),
		"neighborhoods", len(c.Neighborhoods),
	)
	return s, nil
}

// spawnTenants creates the population: income drawn from the design's
// weighted brackets, workplace drawn weighted by commercial floor counts,
// and an initial greedy best-desirability housing assignment.
func (s *Simulation) spawnTenants() {
	d := s.Design
	rng := s.RNG

	incomeWeights := make([]float64, len(d.City.Incomes))
	for i, b := range d.City.Incomes {
		incomeWeights[i] = b.P
	}

	workSites := make([]grid.Position, len(s.City.Commercial))
	workWeights := make([]float64, len(s.City.Commercial))
	for i, site := range s.City.Commercial {
		workSites[i] = site.Pos
		workWeights[i] = float64(site.Floors)
	}

	for i := 0; i < d.City.Population; i++ {
		bracket := d.City.Incomes[sampleWeighted(incomeWeights, rng)]
		income := bracket.Low + rng.Float64()*(bracket.High-bracket.Low)

		var work grid.Position
		if len(workSites) > 0 {
			work = workSites[sampleWeighted(workWeights, rng)]
		} else {
			// No commercial floors anywhere: work somewhere on the map.
			work = s.City.Units[rng.Intn(len(s.City.Units))].Pos
		}

		t := &agents.Tenant{
			ID:     i,
			Income: income,
			Unit:   agents.NoUnit,
			Work:   work,
		}

		leaseMonth := rng.Intn(12)
		bestID, bestScore := agents.NoUnit, 0.0
		for _, u := range s.City.Units {
			if u.Vacancies() <= 0 {
				continue
			}
			if score := t.Desirability(u, s.City.ParcelForUnit(u)); score > bestScore {
				bestID, bestScore = u.ID, score
			}
		}
		if bestID != agents.NoUnit {
			u := s.City.Units[bestID]
			u.AddTenant(i)
			u.LeaseMonth = leaseMonth
			t.Unit = bestID
		}

		s.Tenants = append(s.Tenants, t)
	}
}

// distributeOwnership assigns every unit an initial owner: occupied units
// split between landlords, one of their own occupants, and random tenant
// investors; vacant units split between landlords and tenant investors.
func (s *Simulation) distributeOwnership() {
	rng := s.RNG
	for _, u := range s.City.Units {
		roll := rng.Float64()
		if !u.Vacant() {
			switch {
			case roll < 0.33:
				s.assignToLandlord(u, rng)
			case roll < 0.66:
				occupants := make([]int, 0, len(u.Tenants))
				for t := range u.Tenants {
					occupants = append(occupants, t)
				}
				sort.Ints(occupants)
				s.assignToTenant(u, occupants[rng.Intn(len(occupants))])
			default:
				s.assignToTenant(u, rng.Intn(len(s.Tenants)))
			}
		} else {
			if roll < 0.5 {
				s.assignToLandlord(u, rng)
			} else {
				s.assignToTenant(u, rng.Intn(len(s.Tenants)))
			}
		}
	}
}

func (s *Simulation) assignToLandlord(u *city.Unit, rng *rand.Rand) {
	l := s.Landlords[rng.Intn(len(s.Landlords))]
	l.Units = append(l.Units, u.ID)
	u.Owner = city.Owner{Type: city.OwnerLandlord, ID: l.ID}
}

func (s *Simulation) assignToTenant(u *city.Unit, tenantID int) {
	t := s.Tenants[tenantID]
	t.Units = append(t.Units, u.ID)
	u.Owner = city.Owner{Type: city.OwnerTenant, ID: tenantID}
}

// sampleWeighted draws an index proportional to weights, uniformly when
// all weights are zero or negative.
func sampleWeighted(weights []float64, rng *rand.Rand) int {
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return rng.Intn(len(weights))
	}
	roll := rng.Float64() * total
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		roll -= w
		if roll < 0 {
			return i
		}
	}
	return len(weights) - 1
}
