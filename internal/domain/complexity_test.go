package domain

import "testing"

func TestLevelFor(t *testing.T) {
	tests := []struct {
		total int
		want  ComplexityLevel
	}{
		{0, LevelSimple},
		{29, LevelSimple},
		{30, LevelSimple},
		{31, LevelMedium},
		{45, LevelMedium},
		{60, LevelMedium},
		{61, LevelComplex},
		{100, LevelComplex},
	}

	for _, tt := range tests {
		if got := LevelFor(tt.total, 30, 61); got != tt.want {
			t.Errorf("LevelFor(%d, 30, 61) = %s, want %s", tt.total, got, tt.want)
		}
	}
}

func TestLevelFor_Monotonic(t *testing.T) {
	rank := map[ComplexityLevel]int{LevelSimple: 0, LevelMedium: 1, LevelComplex: 2}

	prev := LevelSimple
	for total := 0; total <= 100; total++ {
		cur := LevelFor(total, 30, 61)
		if rank[cur] < rank[prev] {
			t.Fatalf("level went down at total=%d: %s -> %s", total, prev, cur)
		}
		prev = cur
	}
}

func TestDimensionScores_Sum(t *testing.T) {
	d := DimensionScores{Structure: 10, Quality: 25, Completeness: 8, Standardization: 15}
	if d.Sum() != 58 {
		t.Errorf("Sum() = %d, want 58", d.Sum())
	}
}
