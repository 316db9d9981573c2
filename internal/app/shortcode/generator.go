package shortcode

import (
	"crypto/md5"
	"encoding/hex"
	"math/rand"
	"regexp"
	"sync"
)

const (
	// Charset contains every symbol a short code may be built from.
	Charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	// DefaultLength is the code length used when none is configured.
	DefaultLength = 7

	MinLength = 4
	MaxLength = 10
)

var codePattern = regexp.MustCompile(`^[A-Za-z0-9]{1,10}$`)

// Valid reports whether a code (custom or generated) is well formed.
func Valid(code string) bool {
	return codePattern.MatchString(code)
}

// Generator derives short code candidates from a URL plus randomness.
// Repeated calls for the same URL yield different candidates, which is
// what the collision-retry loop in the service relies on.
type Generator struct {
	length int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator builds a generator for codes of the given length. A nil rng
// gets a randomly seeded source; tests pass a seeded one for determinism.
func NewGenerator(length int, rng *rand.Rand) *Generator {
	if length < MinLength || length > MaxLength {
		length = DefaultLength
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(int64(rand.Uint64())))
	}
	return &Generator{length: length, rng: rng}
}

// Generate returns a code candidate: length-2 symbols sampled from the md5
// digest of the URL, then 2 symbols sampled from the full charset.
func (g *Generator) Generate(rawURL string) string {
	sum := md5.Sum([]byte(rawURL))
	digest := hex.EncodeToString(sum[:])

	g.mu.Lock()
	defer g.mu.Unlock()

	buf := make([]byte, 0, g.length)
	for i := 0; i < g.length-2; i++ {
		buf = append(buf, digest[g.rng.Intn(len(digest))])
	}
	for i := 0; i < 2; i++ {
		buf = append(buf, Charset[g.rng.Intn(len(Charset))])
	}
	return string(buf)
}

// Length returns the configured code length.
func (g *Generator) Length() int {
	return g.length
}
