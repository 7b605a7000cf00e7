// Package reference generates short, human-friendly references from integer keys.
//
// A reference looks random but is a pure function of its key: the key is
// mapped through an affine transform modulo the reference space and then
// written out in the alphabet's base. Keys below the capacity of the space
// never collide, so references can be minted from sequential IDs without a
// uniqueness check.
package reference

import (
	"errors"
	"fmt"
	"math/bits"
)

// DefaultAlphabet is the digits followed by the uppercase consonants, with
// vowels and Y removed so that references never spell words.
const DefaultAlphabet = "0123456789BCDFGHJKLMNPQRSTVWXZ"

// DefaultLength is the number of characters in a reference.
const DefaultLength = 5

// Profile selects the prime pair used to scramble keys. Different record
// types use different profiles so that their references do not line up.
type Profile string

const (
	ProfileDefault      Profile = "default"
	ProfileAssessment   Profile = "assessment"
	ProfileSystem       Profile = "system"
	ProfileOrganisation Profile = "organisation"
)

var primes = map[Profile][2]uint64{
	ProfileDefault:      {60013, 104729},
	ProfileAssessment:   {11547, 492761},
	ProfileSystem:       {97103, 907757},
	ProfileOrganisation: {94327, 747811},
}

var (
	// ErrRange is returned when a key does not fit in the reference space.
	ErrRange = errors.New("key too large for reference space")
	// ErrUnknownProfile is returned for a profile with no prime pair.
	ErrUnknownProfile = errors.New("unknown prime profile")
	// ErrInvalidAlphabet is returned for alphabets that are too short or repeat characters.
	ErrInvalidAlphabet = errors.New("invalid alphabet")
)

type config struct {
	length   int
	profile  Profile
	alphabet string
}

// Option customises Generate.
type Option func(*config)

// WithLength sets the number of characters in the reference.
func WithLength(n int) Option {
	return func(c *config) { c.length = n }
}

// WithProfile selects the prime pair.
func WithProfile(p Profile) Option {
	return func(c *config) { c.profile = p }
}

// WithAlphabet replaces the character set. Characters must be unique.
func WithAlphabet(alphabet string) Option {
	return func(c *config) { c.alphabet = alphabet }
}

// Generate returns the reference for key. It fails with ErrRange when key is
// not below len(alphabet)^length.
func Generate(key uint64, opts ...Option) (string, error) {
	return generate(key, false, opts...)
}

// Capacity returns the number of distinct references for the given options.
func Capacity(opts ...Option) (uint64, error) {
	c := newConfig(opts)
	if err := c.validate(); err != nil {
		return 0, err
	}
	capacity, ok := pow(uint64(len(c.alphabet)), c.length)
	if !ok {
		return 0, fmt.Errorf("%w: %d^%d overflows", ErrRange, len(c.alphabet), c.length)
	}
	return capacity, nil
}

func newConfig(opts []Option) config {
	c := config{
		length:   DefaultLength,
		profile:  ProfileDefault,
		alphabet: DefaultAlphabet,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c config) validate() error {
	if c.length < 1 {
		return fmt.Errorf("%w: length must be positive, got %d", ErrRange, c.length)
	}
	if len(c.alphabet) < 2 {
		return fmt.Errorf("%w: need at least 2 characters", ErrInvalidAlphabet)
	}
	seen := make(map[byte]bool, len(c.alphabet))
	for i := 0; i < len(c.alphabet); i++ {
		ch := c.alphabet[i]
		if ch >= 0x80 {
			return fmt.Errorf("%w: %q is not ASCII", ErrInvalidAlphabet, ch)
		}
		if seen[ch] {
			return fmt.Errorf("%w: %q repeated", ErrInvalidAlphabet, ch)
		}
		seen[ch] = true
	}
	if _, ok := primes[c.profile]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProfile, c.profile)
	}
	return nil
}

// generate skips the capacity check when unchecked is set; keys at or past
// the capacity then wrap around onto earlier references.
func generate(key uint64, unchecked bool, opts ...Option) (string, error) {
	c := newConfig(opts)
	if err := c.validate(); err != nil {
		return "", err
	}

	base := uint64(len(c.alphabet))
	capacity, ok := pow(base, c.length)
	if !ok {
		return "", fmt.Errorf("%w: %d^%d overflows", ErrRange, base, c.length)
	}
	if !unchecked && key >= capacity {
		return "", fmt.Errorf("%w: %d >= %d", ErrRange, key, capacity)
	}

	p := primes[c.profile]
	offset, _ := pow(base, c.length-1)
	value := mulAddMod(key, p[0], p[1], capacity) + offset

	out := make([]byte, c.length)
	for i := range out {
		out[i] = c.alphabet[value%base]
		value /= base
	}
	return string(out), nil
}

// mulAddMod returns (a*b + c) mod m without overflowing.
func mulAddMod(a, b, c, m uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	lo, carry := bits.Add64(lo, c, 0)
	hi += carry
	_, rem := bits.Div64(hi%m, lo, m)
	return rem
}

func pow(base uint64, exp int) (uint64, bool) {
	result := uint64(1)
	for range exp {
		hi, lo := bits.Mul64(result, base)
		if hi != 0 {
			return 0, false
		}
		result = lo
	}
	return result, true
}
