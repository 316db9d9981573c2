package shortcode

import (
	"math/rand"
	"strings"
	"testing"
)

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewSource(int64(seed)))
}

func TestGenerator_LengthAndCharset(t *testing.T) {
	g := NewGenerator(7, seeded(1))

	for i := 0; i < 50; i++ {
		code := g.Generate("https://example.com/some/path")
		if len(code) != 7 {
			t.Fatalf("expected length 7, got %q", code)
		}
		for _, c := range code {
			if !strings.ContainsRune(Charset, c) {
				t.Fatalf("code %q contains %q outside the charset", code, c)
			}
		}
	}
}

func TestGenerator_SeededDeterminism(t *testing.T) {
	a := NewGenerator(7, seeded(42))
	b := NewGenerator(7, seeded(42))

	for i := 0; i < 10; i++ {
		if ca, cb := a.Generate("https://example.com"), b.Generate("https://example.com"); ca != cb {
			t.Fatalf("same seed diverged: %q vs %q", ca, cb)
		}
	}
}

func TestGenerator_NotAPureHash(t *testing.T) {
	g := NewGenerator(7, seeded(7))

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		seen[g.Generate("https://example.com")] = true
	}
	if len(seen) < 2 {
		t.Fatal("expected varying candidates for the same URL")
	}
}

func TestGenerator_LengthBounds(t *testing.T) {
	if got := NewGenerator(0, seeded(1)).Length(); got != DefaultLength {
		t.Fatalf("out-of-range length should fall back to default, got %d", got)
	}
	if got := NewGenerator(99, seeded(1)).Length(); got != DefaultLength {
		t.Fatalf("out-of-range length should fall back to default, got %d", got)
	}
}

func TestValid(t *testing.T) {
	for _, ok := range []string{"abc123", "A", "0123456789"} {
		if !Valid(ok) {
			t.Fatalf("expected %q to be valid", ok)
		}
	}
	for _, bad := range []string{"", "with space", "way-too-long-code", "semi;colon", "под"} {
		if Valid(bad) {
			t.Fatalf("expected %q to be invalid", bad)
		}
	}
}

func TestFilter(t *testing.T) {
	f := NewFilter(1000, 0.01)

	if f.MayContain("abc123") {
		t.Fatal("fresh filter should not contain anything")
	}
	f.Add("abc123")
	if !f.MayContain("abc123") {
		t.Fatal("added code must be reported as present")
	}
}
