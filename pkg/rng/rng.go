// Package rng provides the two random sources the engine needs: a seedable
// deterministic one for tests, simulation and in-hand reshuffles, and a
// cryptographically secure one for production seeds and lobby codes.
package rng

import (
	crand "crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"math/rand"
)

// Source is the interface both variants expose.
type Source interface {
	// UniformInt returns a uniform value in [0, n). n must be > 0.
	UniformInt(n int) int
	// Shuffle performs a Fisher-Yates shuffle over n elements.
	Shuffle(n int, swap func(i, j int))
}

// Seeded is a deterministic source. The same seed yields the same stream.
type Seeded struct {
	r *rand.Rand
}

// NewSeeded creates a deterministic source from the given seed.
func NewSeeded(seed int64) *Seeded {
	return &Seeded{r: rand.New(rand.NewSource(seed))}
}

func (s *Seeded) UniformInt(n int) int {
	return s.r.Intn(n)
}

func (s *Seeded) Shuffle(n int, swap func(i, j int)) {
	s.r.Shuffle(n, swap)
}

// Crypto is a source backed by crypto/rand.
type Crypto struct{}

// NewCrypto creates a cryptographically secure source.
func NewCrypto() *Crypto {
	return &Crypto{}
}

func (c *Crypto) UniformInt(n int) int {
	if n <= 0 {
		panic("rng: UniformInt called with n <= 0")
	}
	// Rejection sampling to avoid modulo bias.
	max := ^uint64(0) - ^uint64(0)%uint64(n)
	for {
		var buf [8]byte
		if _, err := crand.Read(buf[:]); err != nil {
			panic("rng: crypto source unavailable: " + err.Error())
		}
		v := binary.BigEndian.Uint64(buf[:])
		if v < max {
			return int(v % uint64(n))
		}
	}
}

func (c *Crypto) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := c.UniformInt(i + 1)
		swap(i, j)
	}
}

// Seed returns a fresh random seed from the crypto source. Games record this
// seed so that every later shuffle in the game is reproducible.
func Seed() int64 {
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		panic("rng: crypto source unavailable: " + err.Error())
	}
	return int64(binary.BigEndian.Uint64(buf[:]) >> 1)
}

// lobbyAlphabet excludes 0/O and 1/I/L so codes survive being read aloud.
const lobbyAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// LobbyCodeLength is the length of generated lobby codes.
const LobbyCodeLength = 6

// LobbyCode generates a lobby code from the unambiguous alphabet.
func LobbyCode() string {
	c := NewCrypto()
	buf := make([]byte, LobbyCodeLength)
	for i := range buf {
		buf[i] = lobbyAlphabet[c.UniformInt(len(lobbyAlphabet))]
	}
	return string(buf)
}

// NewID returns a random 128-bit identifier as hex, used for game ids.
func NewID() string {
	var buf [16]byte
	if _, err := crand.Read(buf[:]); err != nil {
		panic("rng: crypto source unavailable: " + err.Error())
	}
	return hex.EncodeToString(buf[:])
}
