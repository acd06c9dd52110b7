package token

import "testing"

func TestEstimate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 0},
		{"short ascii rounds up to one", "hi", 1},
		{"ascii", "abcdefgh", 2},
		{"wide runes count individually", "日本語", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Estimate(tt.in); got != tt.want {
				t.Fatalf("Estimate(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestCounterFallsBackWithoutEncoding(t *testing.T) {
	c := &Counter{}
	if got, want := c.Count("abcdefgh"), Estimate("abcdefgh"); got != want {
		t.Fatalf("Count = %d, want estimate %d", got, want)
	}
	if c.Count("") != 0 {
		t.Fatal("empty string must count as zero")
	}
}

func TestNilCounterEstimates(t *testing.T) {
	var c *Counter
	if c.Count("abcd") == 0 {
		t.Fatal("nil counter must still estimate")
	}
}
