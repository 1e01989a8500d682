// Package randutil provides the random sources used to draw hop counts and
// inter-hop delays. Production code uses a source backed by crypto/rand so
// that routes and timings cannot be predicted; tests inject a seeded one.
package randutil

import (
	"crypto/rand"
	"encoding/binary"
	"math/big"
	mathrand "math/rand"
	"sync"
)

// Source is the minimal random source required by the planner and the
// scheduler. *math/rand.Rand satisfies it.
type Source interface {
	// Int63n returns a non-negative number in [0, n). It panics if n <= 0.
	Int63n(n int64) int64
	// Float64 returns a number in [0.0, 1.0).
	Float64() float64
}

// IntInRange returns a number uniformly drawn from the closed interval
// [min, max]. If max <= min, min is returned.
func IntInRange(src Source, min, max int) int {
	if max <= min {
		return min
	}
	return min + int(src.Int63n(int64(max-min+1)))
}

type secureSource struct{}

// NewSecureSource returns a Source reading from crypto/rand.
func NewSecureSource() Source {
	return secureSource{}
}

func (secureSource) Int63n(n int64) int64 {
	if n <= 0 {
		panic("randutil: invalid argument to Int63n")
	}
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		panic(err)
	}
	return v.Int64()
}

func (secureSource) Float64() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(err)
	}
	// 53 bits of randomness
	return float64(binary.BigEndian.Uint64(buf[:])>>11) / (1 << 53)
}

type lockedSource struct {
	lock sync.Mutex
	rnd  *mathrand.Rand
}

// NewDeterministicSource returns a goroutine safe Source producing always the
// same sequence for the same seed.
func NewDeterministicSource(seed int64) Source {
	return &lockedSource{rnd: mathrand.New(mathrand.NewSource(seed))}
}

func (s *lockedSource) Int63n(n int64) int64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.rnd.Int63n(n)
}

func (s *lockedSource) Float64() float64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.rnd.Float64()
}

// FixedSource replays the given values, Int63n returns each value modulo n and
// Float64 returns each value as is. It cycles when exhausted. Meant for tests.
type FixedSource struct {
	lock   sync.Mutex
	Ints   []int64
	Floats []float64

	i, f int
}

func (s *FixedSource) Int63n(n int64) int64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	if len(s.Ints) <= 0 {
		return 0
	}
	v := s.Ints[s.i%len(s.Ints)]
	s.i++
	return v % n
}

func (s *FixedSource) Float64() float64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	if len(s.Floats) <= 0 {
		return 0
	}
	v := s.Floats[s.f%len(s.Floats)]
	s.f++
	return v
}
