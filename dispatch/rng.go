package dispatch

import (
	"hash/fnv"
	"math/rand"
)

// Subsystem names for partitioned RNG derivation.
const (
	SubsystemClustering = "clustering"
	SubsystemRouting    = "routing"
	SubsystemHybrid     = "hybrid"
)

// PartitionedRNG hands out deterministic, isolated RNG streams per solver
// subsystem. Two runs with the same master seed and configuration produce
// identical plans.
//
// Derivation: masterSeed XOR fnv1a64(subsystemName).
// Not safe for concurrent use from multiple goroutines; each solver draws its
// stream once at construction.
type PartitionedRNG struct {
	seed       int64
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a master seed.
func NewPartitionedRNG(seed int64) *PartitionedRNG {
	return &PartitionedRNG{
		seed:       seed,
		subsystems: make(map[string]*rand.Rand),
	}
}

// Get returns the RNG for a subsystem, creating it on first use.
func (p *PartitionedRNG) Get(subsystem string) *rand.Rand {
	if r, ok := p.subsystems[subsystem]; ok {
		return r
	}
	r := rand.New(rand.NewSource(p.Seed(subsystem)))
	p.subsystems[subsystem] = r
	return r
}

// Seed returns the derived seed for a subsystem without materializing a
// stream. Strategies whose work fans out across goroutines derive one
// further stream per solve from it instead of sharing a generator.
func (p *PartitionedRNG) Seed(subsystem string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(subsystem))
	return p.seed ^ int64(h.Sum64())
}
