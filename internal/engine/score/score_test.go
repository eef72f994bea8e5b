package score_test

import (
	"testing"

	"cluehunt-service/internal/engine/score"
)

func TestSpeedBonus(t *testing.T) {
	cases := []struct {
		remaining int
		want      int
	}{
		{0, 0},
		{5, 0},
		{9, 0},
		{10, 20},
		{25, 50},
		{30, 60},
	}
	for _, c := range cases {
		if got := score.SpeedBonus(c.remaining); got != c.want {
			t.Fatalf("SpeedBonus(%d) = %d, want %d", c.remaining, got, c.want)
		}
	}
}

func TestSpeedBonusMonotonic(t *testing.T) {
	prev := score.SpeedBonus(0)
	for remaining := 1; remaining <= score.MaxTimeSeconds; remaining++ {
		got := score.SpeedBonus(remaining)
		if got < prev {
			t.Fatalf("SpeedBonus decreased at %d: %d < %d", remaining, got, prev)
		}
		prev = got
	}
}

func TestFinalScore(t *testing.T) {
	if got := score.FinalScore(30, 0); got != 160 {
		t.Fatalf("FinalScore(30, 0) = %d, want 160", got)
	}
	if got := score.FinalScore(0, 2); got != 70 {
		t.Fatalf("FinalScore(0, 2) = %d, want 70", got)
	}
	// Negative results are allowed; cumulative clamping happens elsewhere.
	if got := score.FinalScore(0, 10); got != -50 {
		t.Fatalf("FinalScore(0, 10) = %d, want -50", got)
	}
}

func TestTimeoutScore(t *testing.T) {
	if got := score.TimeoutScore(0); got != -30 {
		t.Fatalf("TimeoutScore(0) = %d, want -30", got)
	}
	if got := score.TimeoutScore(3); got != -75 {
		t.Fatalf("TimeoutScore(3) = %d, want -75", got)
	}
}
