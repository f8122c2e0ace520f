package protocol

import "fmt"

// Roll is the dice payload attached to chat messages and accepted as-is from
// clients. The server checks internal consistency only; it does not re-roll
// or otherwise verify fairness.
type Roll struct {
	Sides   int   `json:"sides"`
	Count   int   `json:"count"`
	Results []int `json:"results"`
	Total   int   `json:"total"`
}

// Validate checks the structural invariants of a roll payload.
//
// Postcondition: Returns nil iff Sides >= 2, Count >= 1, len(Results) == Count,
// every result is within [1, Sides], and Total == sum(Results).
func (r Roll) Validate() error {
	if r.Sides < 2 {
		return fmt.Errorf("roll sides must be >= 2, got %d", r.Sides)
	}
	if r.Count < 1 {
		return fmt.Errorf("roll count must be >= 1, got %d", r.Count)
	}
	if len(r.Results) != r.Count {
		return fmt.Errorf("roll has %d results, expected %d", len(r.Results), r.Count)
	}
	sum := 0
	for _, d := range r.Results {
		if d < 1 || d > r.Sides {
			return fmt.Errorf("roll result %d outside [1, %d]", d, r.Sides)
		}
		sum += d
	}
	if sum != r.Total {
		return fmt.Errorf("roll total %d does not match sum %d", r.Total, sum)
	}
	return nil
}
