package uid

import "testing"

func TestSnowflake_GenerateUnique(t *testing.T) {
	gen, err := NewSnowflake()
	if err != nil {
		t.Fatalf("NewSnowflake returned error: %v", err)
	}

	seen := make(map[int64]bool, 1000)
	for range 1000 {
		id := gen.Generate()
		if id <= 0 {
			t.Fatalf("expected positive id, got %d", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
}

func TestSnowflake_GenerateOrdered(t *testing.T) {
	gen, err := NewSnowflake()
	if err != nil {
		t.Fatalf("NewSnowflake returned error: %v", err)
	}

	prev := gen.Generate()
	for range 100 {
		id := gen.Generate()
		if id <= prev {
			t.Fatalf("expected ids to increase, got %d after %d", id, prev)
		}
		prev = id
	}
}
