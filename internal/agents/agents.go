// Package agents implements the three economic decision engines: tenants
// searching for housing, landlords pricing and acquiring units, and the
// cooperative ownership fund. Agents hold unit identifiers, never
// references; all shared state lives in the city arena.
package agents

import (
	"math/rand"

	"github.com/talgya/domacity/internal/city"
)

// Transfer is a settled property sale, emitted by a settlement pass and
// applied by the orchestrator before the next step.
type Transfer struct {
	Buyer  city.Owner `json:"buyer"`
	UnitID int        `json:"unit_id"`
	Amount float64    `json:"amount"`
}

// StepContext carries the per-step inputs every agent decision needs: the
// current month, market constants from the design, tunables from the run
// config, and any active city-wide policies.
type StepContext struct {
	Month            int
	PriceToRent      float64
	SampleSize       int
	TenantSampleSize int
	MovingPenalty    float64
	RentIncreaseRate float64

	// Active policies. A rent freeze suspends anniversary rent increases;
	// a market tax suspends speculative bidding.
	RentFreeze bool
	MarketTax  bool
}

// VacancyPool tracks units with open occupant slots during the tenant
// pass. Tenants vacate into it and claim out of it.
type VacancyPool struct {
	ids []int
}

// NewVacancyPool builds a pool from the given unit ids.
func NewVacancyPool(ids []int) *VacancyPool {
	return &VacancyPool{ids: ids}
}

// Len returns the number of pooled units.
func (p *VacancyPool) Len() int { return len(p.ids) }

// Add returns a unit to the pool.
func (p *VacancyPool) Add(id int) {
	p.ids = append(p.ids, id)
}

// Remove drops a now-full unit from the pool.
func (p *VacancyPool) Remove(id int) {
	for i, v := range p.ids {
		if v == id {
			p.ids = append(p.ids[:i], p.ids[i+1:]...)
			return
		}
	}
}

// Sample draws up to n distinct unit ids from the pool.
func (p *VacancyPool) Sample(n int, rng *rand.Rand) []int {
	return sampleIDs(p.ids, n, rng)
}

// sampleIDs draws up to n distinct elements via a partial Fisher-Yates
// shuffle of a copy.
func sampleIDs(ids []int, n int, rng *rand.Rand) []int {
	if n >= len(ids) {
		out := make([]int, len(ids))
		copy(out, ids)
		return out
	}
	pool := make([]int, len(ids))
	copy(pool, ids)
	for i := 0; i < n; i++ {
		j := i + rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}

// weightedChoice picks an index with probability proportional to its
// weight, falling back to a uniform choice when all weights are zero or
// negative. Negative weights count as zero.
func weightedChoice(weights []float64, rng *rand.Rand) int {
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

// removeID deletes the first occurrence of id from a unit-id slice.
func removeID(ids []int, id int) []int {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
