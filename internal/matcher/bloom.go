package matcher

import (
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
)

// bloomThreshold is the minimum combined set size below which a bloom
// pre-filter isn't worth the allocation; small policies are cheap to hash
// directly.
const bloomThreshold = 64

const falsePositiveRate = 0.01

// bloomFilter wraps bits-and-blooms/bloom as a probabilistic pre-check in
// front of the authoritative hash lookups in Policy.IsBlocked. It is
// rebuilt from scratch alongside every Policy, so it can never diverge
// from the ExactSet/WildcardBases it shadows.
//
// Bloom filters have no false negatives: if maybeContains reports false,
// none of the tested candidates were ever added to the filter, so the
// real exact/wildcard lookups are guaranteed to also miss and can be
// skipped. A true/maybe result always falls through to the real check,
// so the filter can only save work, never change the outcome.
type bloomFilter struct {
	bf *bloom.BloomFilter
}

func newBloomFilter(exact, wildcard map[string]struct{}) *bloomFilter {
	n := len(exact) + len(wildcard)
	if n < bloomThreshold {
		return nil
	}
	bf := bloom.NewWithEstimates(uint(n), falsePositiveRate)
	for k := range exact {
		bf.Add([]byte(k))
	}
	for k := range wildcard {
		bf.Add([]byte(k))
	}
	return &bloomFilter{bf: bf}
}

// maybeContains tests the same candidates Policy.IsBlocked will test
// against the real sets: the full name and every non-empty suffix.
func (b *bloomFilter) maybeContains(labels []string) bool {
	full := strings.Join(labels, ".")
	if b.bf.Test([]byte(full)) {
		return true
	}
	for i := 1; i < len(labels); i++ {
		if b.bf.Test([]byte(strings.Join(labels[i:], "."))) {
			return true
		}
	}
	return false
}
