package shortcode

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

const (
	defaultFilterCapacity = 1_000_000
	defaultFilterFP       = 0.01
)

// Filter is a best-effort negative cache over issued short codes. A negative
// answer means the code was definitely never added; positives may be false.
// The store's unique index remains the final arbiter of collisions.
type Filter struct {
	mu sync.RWMutex
	bf *bloom.BloomFilter
}

// NewFilter sizes a bloom filter for the expected number of codes.
func NewFilter(capacity uint, falsePositiveRate float64) *Filter {
	if capacity == 0 {
		capacity = defaultFilterCapacity
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = defaultFilterFP
	}
	return &Filter{bf: bloom.NewWithEstimates(capacity, falsePositiveRate)}
}

// Add records an issued code.
func (f *Filter) Add(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bf.AddString(code)
}

// MayContain reports whether the code might already be issued.
func (f *Filter) MayContain(code string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bf.TestString(code)
}
