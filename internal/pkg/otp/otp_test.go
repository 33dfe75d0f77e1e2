package otp

import "testing"

func TestNumeric_GenerateLength(t *testing.T) {
	for _, digits := range []int{4, 6, 8, 10} {
		gen := NewNumeric(digits)

		code, err := gen.Generate()
		if err != nil {
			t.Fatalf("Generate returned error: %v", err)
		}
		if len(code) != digits {
			t.Fatalf("expected %d digits, got %q", digits, code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("expected decimal digits only, got %q", code)
			}
		}
	}
}

func TestNumeric_ClampsDigits(t *testing.T) {
	cases := map[int]int{
		0:  4,
		3:  4,
		11: 10,
		99: 10,
	}

	for digits, want := range cases {
		code, err := NewNumeric(digits).Generate()
		if err != nil {
			t.Fatalf("Generate returned error: %v", err)
		}
		if len(code) != want {
			t.Fatalf("expected %d to clamp to %d digits, got %q", digits, want, code)
		}
	}
}

func TestNumeric_CodesVary(t *testing.T) {
	gen := NewNumeric(8)

	seen := make(map[string]bool, 32)
	for range 32 {
		code, err := gen.Generate()
		if err != nil {
			t.Fatalf("Generate returned error: %v", err)
		}
		seen[code] = true
	}

	if len(seen) < 2 {
		t.Fatalf("expected varying codes, got the same value 32 times")
	}
}
