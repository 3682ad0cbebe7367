package pulsive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRng_SameSeedReproducesSameSequence(t *testing.T) {
	a := NewRng(7)
	b := NewRng(7)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.NextU64(), b.NextU64())
	}
}

func TestRng_ZeroSeedIsForcedNonZero(t *testing.T) {
	r := NewRng(0)
	assert.NotEqual(t, uint64(0), r.State())
}

func TestRng_RangeF64StaysWithinBounds(t *testing.T) {
	r := NewRng(1)
	for i := 0; i < 1000; i++ {
		v := r.RangeF64(-5, 5)
		assert.True(t, v >= -5 && v < 5)
	}
}

func TestRng_RangeI64IsInclusive(t *testing.T) {
	r := NewRng(1)
	seen := map[int64]bool{}
	for i := 0; i < 2000; i++ {
		v := r.RangeI64(1, 3)
		assert.True(t, v >= 1 && v <= 3)
		seen[v] = true
	}
	assert.Len(t, seen, 3)
}

func TestRng_WeightedIndexRejectsAllNonPositive(t *testing.T) {
	r := NewRng(1)
	_, ok := r.WeightedIndex([]float64{0, -1, 0})
	assert.False(t, ok)
}

func TestRng_WeightedIndexRejectsEmpty(t *testing.T) {
	r := NewRng(1)
	_, ok := r.WeightedIndex(nil)
	assert.False(t, ok)
}

func TestShuffle_IsDeterministicForSameSeed(t *testing.T) {
	a := []int{1, 2, 3, 4, 5, 6, 7, 8}
	b := append([]int(nil), a...)
	Shuffle(NewRng(99), a)
	Shuffle(NewRng(99), b)
	assert.Equal(t, a, b)
}

// TestHashSeed_S6_PerCoreRngDerivation grounds scenario S6: with a
// fixed global seed, a core's RNG at a given tick is a pure function
// of (seed, core id, tick); different cores or different ticks draw
// different sequences.
func TestHashSeed_S6_PerCoreRngDerivation(t *testing.T) {
	const globalSeed = 42

	core0Tick5 := RngFromState(hashSeed(globalSeed, 0, 5))
	core1Tick5 := RngFromState(hashSeed(globalSeed, 1, 5))
	core0Tick6 := RngFromState(hashSeed(globalSeed, 0, 6))

	assert.NotEqual(t, core0Tick5.NextU64(), core1Tick5.NextU64())

	core0Tick5Again := RngFromState(hashSeed(globalSeed, 0, 5))
	assert.NotEqual(t, core0Tick5Again.NextU64(), core0Tick6.NextU64())
}

func TestHashSeed_IsReproducibleForSameInputs(t *testing.T) {
	assert.Equal(t, hashSeed(42, 0, 5), hashSeed(42, 0, 5))
	assert.NotEqual(t, hashSeed(42, 0, 5), hashSeed(42, 0, 6))
}
