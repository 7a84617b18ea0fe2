package service

import (
	"context"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/thisux/shortlink/internal/app/repository"
)

const (
	defaultFilterCapacity = 1_000_000
	defaultFilterFPRate   = 0.01
)

// CodeFilter is a bloom filter over every occupied code (short codes
// and custom slugs). A negative answer is definitive, so the allocator
// can skip the store existence check for most generated candidates; a
// positive answer still goes to the store.
type CodeFilter struct {
	mu sync.RWMutex
	bf *bloom.BloomFilter

	capacity uint
	fpRate   float64
}

// NewCodeFilter returns an empty filter sized for the expected number
// of codes.
func NewCodeFilter(capacity uint, fpRate float64) *CodeFilter {
	if capacity == 0 {
		capacity = defaultFilterCapacity
	}
	if fpRate <= 0 || fpRate >= 1 {
		fpRate = defaultFilterFPRate
	}
	return &CodeFilter{
		bf:       bloom.NewWithEstimates(capacity, fpRate),
		capacity: capacity,
		fpRate:   fpRate,
	}
}

// Add marks a code as occupied.
func (f *CodeFilter) Add(code string) {
	if f == nil {
		return
	}
	f.mu.Lock()
	f.bf.AddString(code)
	f.mu.Unlock()
}

// MayContain reports whether a code might be occupied. False means the
// code is definitely free.
func (f *CodeFilter) MayContain(code string) bool {
	if f == nil {
		return true
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bf.TestString(code)
}

// Seed loads every occupied code from the store into the filter,
// replacing its current contents. Bloom filters cannot forget, so this
// is also how codes freed by deleted links stop counting as occupied.
func (f *CodeFilter) Seed(ctx context.Context, links repository.LinkRepository) error {
	if f == nil {
		return nil
	}
	fresh := bloom.NewWithEstimates(f.capacity, f.fpRate)
	if err := links.EachCode(ctx, func(code string) {
		fresh.AddString(code)
	}); err != nil {
		return err
	}

	f.mu.Lock()
	f.bf = fresh
	f.mu.Unlock()
	return nil
}
