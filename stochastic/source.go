package stochastic

import (
	"encoding/binary"
	"math/rand"

	"gitlab.com/NebulousLabs/entropy-mnemonics"
	"gitlab.com/NebulousLabs/errors"
	"gitlab.com/NebulousLabs/fastrand"
	"golang.org/x/crypto/blake2b"
)

// SeedSize is the width, in bytes, of a master seed.
const SeedSize = 32

// Source is the explicit, owned pseudo-random resource every sampler in this
// module draws from. The PRNG is never global: a Simulator constructs one
// Source per worker and threads it through every Weibull/Poisson draw, which
// is what lets iterations be sharded across goroutines without a shared
// mutable random state.
type Source struct {
	seed [SeedSize]byte
	rng  *rand.Rand
}

// NewSource seeds a Source from fastrand, Sia's non-deterministic
// cryptographic entropy source. Use this for a fresh, non-reproducible run.
func NewSource() *Source {
	var seed [SeedSize]byte
	copy(seed[:], fastrand.Bytes(SeedSize))
	return NewSourceFromSeed(seed)
}

// NewSourceFromSeed seeds a Source deterministically. Two Sources built from
// the same seed produce identical draw sequences, which is the only way two
// implementations - or two runs of this one - can agree on a simulated
// stream, per the reproducibility caveat in the package overview.
func NewSourceFromSeed(seed [SeedSize]byte) *Source {
	return &Source{
		seed: seed,
		rng:  rand.New(rand.NewSource(seedToInt64(seed))),
	}
}

func seedToInt64(seed [SeedSize]byte) int64 {
	return int64(binary.LittleEndian.Uint64(seed[:8]))
}

// Float64 returns a uniform draw in [0, 1), the primitive every Weibull and
// Poisson sampler in this package is built from.
func (s *Source) Float64() float64 {
	return s.rng.Float64()
}

// Seed returns the 32-byte master seed this Source was constructed from.
func (s *Source) Seed() [SeedSize]byte {
	return s.seed
}

// Phrase renders the master seed as a human-readable mnemonic phrase, so a
// reproducible run can be reported (and later re-supplied) without asking an
// operator to copy 64 hex characters by hand.
func (s *Source) Phrase() (mnemonics.Phrase, error) {
	phrase, err := mnemonics.ToPhrase(s.seed[:], mnemonics.English)
	if err != nil {
		return nil, errors.AddContext(err, "could not encode seed as a mnemonic phrase")
	}
	return phrase, nil
}

// SeedFromPhrase reverses Phrase, recovering a master seed from a previously
// reported mnemonic phrase.
func SeedFromPhrase(phrase mnemonics.Phrase) ([SeedSize]byte, error) {
	var seed [SeedSize]byte
	b, err := phrase.ToBytes(mnemonics.English)
	if err != nil {
		return seed, errors.AddContext(err, "could not decode mnemonic phrase")
	}
	if len(b) != SeedSize {
		return seed, errors.New("decoded phrase has the wrong length for a seed")
	}
	copy(seed[:], b)
	return seed, nil
}

// Split derives n independent per-worker seeds from this Source's master
// seed, deterministically, using blake2b keyed on the worker index. This
// satisfies the requirement that a sharded Simulator give each worker its
// own independently seeded PRNG while staying reproducible end to end: the
// same master seed always splits into the same n worker seeds.
func (s *Source) Split(n int) ([][SeedSize]byte, error) {
	seeds := make([][SeedSize]byte, n)
	for i := 0; i < n; i++ {
		var counter [8]byte
		binary.LittleEndian.PutUint64(counter[:], uint64(i))
		h, err := blake2b.New256(s.seed[:])
		if err != nil {
			return nil, errors.AddContext(err, "could not initialize worker seed derivation")
		}
		h.Write(counter[:])
		sum := h.Sum(nil)
		var workerSeed [SeedSize]byte
		copy(workerSeed[:], sum)
		seeds[i] = workerSeed
	}
	return seeds, nil
}
