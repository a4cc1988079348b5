package agents

import (
	"math"
	"math/rand"
	"sort"

	"github.com/talgya/domacity/internal/city"
)

// Fund is the cooperative ownership entity. Member rent payments convert
// partially into shares; collected rent pays out as dividends proportional
// to accumulated share; reserves accumulate toward competitive property
// acquisition.
type Fund struct {
	Funds  float64         `json:"funds"`
	Shares map[int]float64 `json:"shares"` // tenant id -> accumulated share
	Units  []int           `json:"units"`

	// Configured percentages.
	PRentShare float64 `json:"p_rent_share"`
	PReserves  float64 `json:"p_reserves"`
	PExpenses  float64 `json:"p_expenses"`

	// RentIncomeLimit caps what a member pays at this fraction of their
	// monthly income. Zero disables the cap.
	RentIncomeLimit float64 `json:"rent_income_limit"`

	maintenance float64
}

// NewFund creates the fund with its starting reserves and configured
// percentages.
func NewFund(funds, pRentShare, pReserves, pExpenses, rentIncomeLimit float64) *Fund {
	return &Fund{
		Funds:           funds,
		Shares:          make(map[int]float64),
		PRentShare:      pRentShare,
		PReserves:       pReserves,
		PExpenses:       pExpenses,
		RentIncomeLimit: rentIncomeLimit,
		maintenance:     1.0, // the fund keeps its stock in full repair
	}
}

// AddFunds records a direct member contribution: both the pool and the
// member's share grow by the full amount. This is the crowdfunding path,
// independent of rent flow.
func (f *Fund) AddFunds(tenantID int, amount float64) {
	if amount <= 0 {
		return
	}
	f.Funds += amount
	f.Shares[tenantID] += amount
}

// IsMember reports whether a tenant holds any share.
func (f *Fund) IsMember(tenantID int) bool {
	return f.Shares[tenantID] > 0
}

// TotalShares sums all member shares.
func (f *Fund) TotalShares() float64 {
	total := 0.0
	for _, s := range f.Shares {
		total += s
	}
	return total
}

// memberIDs returns shareholder ids in ascending order, for deterministic
// iteration.
func (f *Fund) memberIDs() []int {
	ids := make([]int, 0, len(f.Shares))
	for id := range f.Shares {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Step runs the fund's month: maintain owned units, collect rent and
// credit shares, distribute dividends, then place acquisition offers.
func (f *Fund) Step(c *city.City, tenants []*Tenant, rng *rand.Rand) {
	collected := 0.0
	for _, id := range f.Units {
		u := c.Units[id]

		u.Condition -= rng.Float64() * 0.1
		u.Condition += f.maintenance
		u.Condition = math.Min(math.Max(u.Condition, 0), 1)

		if u.Vacant() {
			continue
		}

		occupants := make([]int, 0, len(u.Tenants))
		for t := range u.Tenants {
			occupants = append(occupants, t)
		}
		sort.Ints(occupants)

		perTenant := u.Rent / float64(len(occupants))
		for _, t := range occupants {
			charged := perTenant
			if f.RentIncomeLimit > 0 {
				charged = math.Min(charged, f.RentIncomeLimit*tenants[t].Income)
			}
			collected += charged
			f.Shares[t] += charged * f.PRentShare
		}
	}

	f.payDividends(collected, tenants)
	f.Funds += collected * f.PReserves

	f.makeOffers(c, tenants)
}

// payDividends distributes the dividend pool to every shareholder in
// proportion to their share of total shares.
func (f *Fund) payDividends(collected float64, tenants []*Tenant) {
	total := f.TotalShares()
	if total <= 0 {
		return
	}
	pool := collected * (1 - f.PReserves - f.PExpenses)
	for _, id := range f.memberIDs() {
		tenants[id].LastDividend = pool * f.Shares[id] / total
	}
}

// makeOffers selects acquisition candidates, preferring units currently
// leased by shareholders, and greedily commits reserves to bids ranked by
// cheap, high rent-yield properties first.
func (f *Fund) makeOffers(c *city.City, tenants []*Tenant) {
	type candidate struct {
		id    int
		value float64
		rent  float64
	}

	var candidates []candidate
	seen := make(map[int]bool)
	for _, id := range f.memberIDs() {
		t := tenants[id]
		if t.Unit == NoUnit {
			continue
		}
		u := c.Units[t.Unit]
		if u.Owner.Type == city.OwnerFund || seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		candidates = append(candidates, candidate{id: u.ID, value: u.Value, rent: u.Rent})
	}

	// No member-leased targets: consider the whole market.
	if len(candidates) == 0 {
		for _, u := range c.Units {
			if u.Owner.Type == city.OwnerFund {
				continue
			}
			candidates = append(candidates, candidate{id: u.ID, value: u.Value, rent: u.Rent})
		}
	}

	affordable := candidates[:0]
	for _, cand := range candidates {
		if cand.value <= f.Funds {
			affordable = append(affordable, cand)
		}
	}

	// Cheap properties with high rent yield sort first.
	sort.SliceStable(affordable, func(i, j int) bool {
		ki := affordable[i].value * affordable[i].value / (affordable[i].rent + 1)
		kj := affordable[j].value * affordable[j].value / (affordable[j].rent + 1)
		if ki != kj {
			return ki < kj
		}
		return affordable[i].id < affordable[j].id
	})

	committed := 0.0
	for _, cand := range affordable {
		if committed+cand.value > f.Funds {
			break
		}
		committed += cand.value
		c.Units[cand.id].Offers = append(c.Units[cand.id].Offers, city.Offer{
			Bidder: city.Owner{Type: city.OwnerFund},
			Amount: cand.value,
		})
	}
}
