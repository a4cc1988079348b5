package engine

// PolicyKind is a city-wide policy toggled through the play layer.
type PolicyKind string

const (
	// PolicyRentFreeze suspends anniversary rent increases.
	PolicyRentFreeze PolicyKind = "rent_freeze"
	// PolicyMarketTax suspends speculative landlord bidding.
	PolicyMarketTax PolicyKind = "market_tax"
)

// Policy is an active policy window, aged by one month per step.
type Policy struct {
	Kind      PolicyKind `json:"kind"`
	Remaining int        `json:"remaining"` // months left, inclusive of the current one
}

// EnactPolicy activates a policy for the given number of months. Enacting
// an already-active policy extends it if the new window is longer.
func (s *Simulation) EnactPolicy(kind PolicyKind, months int) {
	if months < 1 {
		return
	}
	for i := range s.Policies {
		if s.Policies[i].Kind == kind {
			if months > s.Policies[i].Remaining {
				s.Policies[i].Remaining = months
			}
			return
		}
	}
	s.Policies = append(s.Policies, Policy{Kind: kind, Remaining: months})
}

// PolicyActive reports whether a policy is currently in force.
func (s *Simulation) PolicyActive(kind PolicyKind) bool {
	for _, p := range s.Policies {
		if p.Kind == kind && p.Remaining > 0 {
			return true
		}
	}
	return false
}

// agePolicies decrements every active window and drops expired policies.
func (s *Simulation) agePolicies() {
	kept := s.Policies[:0]
	for _, p := range s.Policies {
		p.Remaining--
		if p.Remaining > 0 {
			kept = append(kept, p)
		}
	}
	s.Policies = kept
}
