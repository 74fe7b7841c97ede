package scoring

import "testing"

func TestFinalMs(t *testing.T) {
	cases := []struct {
		name      string
		elapsedMs int
		mistakes  int
		hints     int
		want      int
	}{
		{"zero run", 0, 0, 0, 0},
		{"no penalties", 60000, 0, 0, 60000},
		{"one mistake free", 60000, 1, 0, 60000},
		{"three mistakes free", 60000, 3, 0, 60000},
		{"fourth mistake penalized", 60000, 4, 0, 90000},
		{"hints always penalized", 60000, 0, 2, 120000},
		{"mixed", 5000, 5, 2, 125000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FinalMs(tc.elapsedMs, tc.mistakes, tc.hints); got != tc.want {
				t.Errorf("FinalMs(%d, %d, %d) = %d, want %d",
					tc.elapsedMs, tc.mistakes, tc.hints, got, tc.want)
			}
		})
	}
}

func TestFinalMsNoPenaltyBelowThreshold(t *testing.T) {
	for mistakes := 0; mistakes <= FreeMistakes; mistakes++ {
		for hints := 0; hints < 4; hints++ {
			want := 42000 + PenaltyMs*hints
			if got := FinalMs(42000, mistakes, hints); got != want {
				t.Errorf("FinalMs(42000, %d, %d) = %d, want %d", mistakes, hints, got, want)
			}
		}
	}
}
