package patterns

import (
	"drift/internal/ids"
)

// MinHash LSH replaces exact pairwise Jaccard once the pattern
// population crosses the bound: signatures of numHashes permutations,
// banded so patterns sharing any band bucket become candidate pairs.
const (
	numHashes = 64
	numBands  = 16
	bandRows  = numHashes / numBands
)

// minhashSignature computes the signature of a location set using
// salted 64-bit hashes as the permutation family.
func minhashSignature(locs map[Location]bool) [numHashes]uint64 {
	var sig [numHashes]uint64
	for i := range sig {
		sig[i] = ^uint64(0)
	}
	for loc := range locs {
		base := ids.HashString(loc.File) ^ uint64(loc.Line)*0x9e3779b97f4a7c15
		for i := 0; i < numHashes; i++ {
			// Salting with the slot index stands in for independent
			// permutations; xorshift mixing keeps the slots decorrelated.
			h := base ^ (uint64(i+1) * 0xbf58476d1ce4e5b9)
			h ^= h >> 27
			h *= 0x94d049bb133111eb
			h ^= h >> 31
			if h < sig[i] {
				sig[i] = h
			}
		}
	}
	return sig
}

// minhashCandidatePairs buckets signatures by band and returns pairs
// sharing at least one bucket. Cost is linear in patterns instead of
// quadratic.
func minhashCandidatePairs(sortedIDs []string, patterns map[string]*AggregatedPattern) [][2]string {
	type bandKey struct {
		band int
		hash uint64
	}
	buckets := map[bandKey][]string{}

	for _, id := range sortedIDs {
		p := patterns[id]
		if p == nil {
			continue
		}
		sig := minhashSignature(locationSet(p))
		for band := 0; band < numBands; band++ {
			var h uint64
			for row := 0; row < bandRows; row++ {
				h = h*31 + sig[band*bandRows+row]
			}
			key := bandKey{band: band, hash: h}
			buckets[key] = append(buckets[key], id)
		}
	}

	seen := map[[2]string]bool{}
	var pairs [][2]string
	for _, bucket := range buckets {
		if len(bucket) < 2 {
			continue
		}
		for i := 0; i < len(bucket); i++ {
			for j := i + 1; j < len(bucket); j++ {
				a, b := bucket[i], bucket[j]
				if a > b {
					a, b = b, a
				}
				pair := [2]string{a, b}
				if !seen[pair] {
					seen[pair] = true
					pairs = append(pairs, pair)
				}
			}
		}
	}
	return pairs
}
