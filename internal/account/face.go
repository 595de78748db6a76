package account

import "math"

// FaceMatcher is the opaque biometric capability: given a probe descriptor
// it returns the matched account, or reports no match.
type FaceMatcher interface {
	Match(probe []float64) (*Account, bool, error)
}

// EuclideanMatcher matches a probe descriptor against every enrolled
// account by Euclidean distance, accepting the closest candidate under the
// threshold.
type EuclideanMatcher struct {
	store     *Store
	threshold float64
}

// NewEuclideanMatcher creates a matcher over enrolled accounts.
func NewEuclideanMatcher(store *Store, threshold float64) *EuclideanMatcher {
	if threshold <= 0 {
		threshold = 0.6
	}
	return &EuclideanMatcher{store: store, threshold: threshold}
}

// Match finds the closest enrolled descriptor under the threshold.
func (m *EuclideanMatcher) Match(probe []float64) (*Account, bool, error) {
	if len(probe) == 0 {
		return nil, false, nil
	}

	accts, err := m.store.List()
	if err != nil {
		return nil, false, err
	}

	var best *Account
	bestDist := math.Inf(1)

	for i := range accts {
		desc := accts[i].Descriptor()
		if len(desc) != len(probe) {
			continue
		}
		if d := distance(probe, desc); d < bestDist {
			bestDist = d
			best = &accts[i]
		}
	}

	if best == nil || bestDist > m.threshold {
		return nil, false, nil
	}
	return best, true, nil
}

func distance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
