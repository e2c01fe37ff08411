package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// Generator creates opaque internal IDs.
type Generator interface {
	NewID() (string, error)
}

// RandomGenerator returns 128-bit hex ids, optionally prefixed.
type RandomGenerator struct {
	prefix string
}

func NewRandomGenerator() *RandomGenerator {
	return &RandomGenerator{}
}

// NewPrefixedGenerator yields ids like "run_3f9a...".
func NewPrefixedGenerator(prefix string) *RandomGenerator {
	return &RandomGenerator{prefix: strings.TrimSuffix(strings.TrimSpace(prefix), "_")}
}

func (g *RandomGenerator) NewID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	raw := hex.EncodeToString(buf)
	if g == nil || g.prefix == "" {
		return raw, nil
	}
	return g.prefix + "_" + raw, nil
}

// MustNewID panics when the system random source fails.
func MustNewID(g Generator) string {
	value, err := g.NewID()
	if err != nil {
		panic(err)
	}
	return value
}
