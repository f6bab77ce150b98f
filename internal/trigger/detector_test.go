package trigger

import (
	"testing"
	"time"

	"github.com/relabs-tech/reaction_trainer/internal/reading"
)

func readingsAt(base time.Time, step time.Duration, values ...float64) []reading.Reading {
	out := make([]reading.Reading, len(values))
	for i, v := range values {
		out[i] = reading.Reading{Value: v, Time: base.Add(time.Duration(i) * step)}
	}
	return out
}

func TestDetectorNeverEmitsWithoutCrossing(t *testing.T) {
	det := NewDetector(Threshold{Value: 15, Direction: Rising}, 2)
	det.Arm()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for _, rd := range readingsAt(base, 10*time.Millisecond, 10, 11, 9, 14.9, 10, 12, 13, 14) {
		if _, ok := det.Feed(rd); ok {
			t.Fatalf("stimulus emitted for non-crossing value %.1f", rd.Value)
		}
	}
}

func TestDetectorDebounceConfirmsOnSecondCrossing(t *testing.T) {
	det := NewDetector(Threshold{Value: 15, Direction: Rising}, 2)
	det.Arm()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rds := readingsAt(base, 10*time.Millisecond, 10, 10, 16, 16, 16)

	var got []int
	var stim Stimulus
	for i, rd := range rds {
		if s, ok := det.Feed(rd); ok {
			got = append(got, i)
			stim = s
		}
	}

	if len(got) != 1 || got[0] != 3 {
		t.Fatalf("stimulus at indexes %v, want exactly [3]", got)
	}
	if !stim.Time.Equal(rds[3].Time) {
		t.Fatalf("stimulus time = %v, want timestamp of reading 3 (%v)", stim.Time, rds[3].Time)
	}
}

func TestDetectorStreakResetsOnDip(t *testing.T) {
	det := NewDetector(Threshold{Value: 15, Direction: Rising}, 3)
	det.Arm()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	// Two crossings, a dip, then three crossings: only the last run confirms.
	rds := readingsAt(base, 10*time.Millisecond, 16, 16, 10, 16, 16, 16)

	var got []int
	for i, rd := range rds {
		if _, ok := det.Feed(rd); ok {
			got = append(got, i)
		}
	}
	if len(got) != 1 || got[0] != 5 {
		t.Fatalf("stimulus at indexes %v, want exactly [5]", got)
	}
}

func TestDetectorCooldownUntilRearm(t *testing.T) {
	det := NewDetector(Threshold{Value: 15, Direction: Rising}, 1)
	det.Arm()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rds := readingsAt(base, 10*time.Millisecond, 16, 17, 18, 19)

	if _, ok := det.Feed(rds[0]); !ok {
		t.Fatal("first crossing should emit")
	}
	for _, rd := range rds[1:] {
		if _, ok := det.Feed(rd); ok {
			t.Fatal("stimulus emitted during cooldown")
		}
	}

	det.Arm()
	if _, ok := det.Feed(rds[1]); !ok {
		t.Fatal("re-armed detector should emit again")
	}
}

func TestDetectorFallingDirection(t *testing.T) {
	det := NewDetector(Threshold{Value: 5, Direction: Falling}, 2)
	det.Arm()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rds := readingsAt(base, 10*time.Millisecond, 10, 9, 4, 3, 8)

	var got []int
	for i, rd := range rds {
		if _, ok := det.Feed(rd); ok {
			got = append(got, i)
		}
	}
	if len(got) != 1 || got[0] != 3 {
		t.Fatalf("stimulus at indexes %v, want exactly [3]", got)
	}
}

func TestThresholdCrossed(t *testing.T) {
	tests := []struct {
		name      string
		threshold Threshold
		value     float64
		want      bool
	}{
		{"rising above", Threshold{15, Rising}, 16, true},
		{"rising equal", Threshold{15, Rising}, 15, true},
		{"rising below", Threshold{15, Rising}, 14.9, false},
		{"falling below", Threshold{5, Falling}, 4, true},
		{"falling equal", Threshold{5, Falling}, 5, true},
		{"falling above", Threshold{5, Falling}, 5.1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.threshold.Crossed(tt.value); got != tt.want {
				t.Errorf("Crossed(%.1f) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestParseDirection(t *testing.T) {
	if d, err := ParseDirection("rising"); err != nil || d != Rising {
		t.Fatalf("ParseDirection(rising) = %v, %v", d, err)
	}
	if d, err := ParseDirection("falling"); err != nil || d != Falling {
		t.Fatalf("ParseDirection(falling) = %v, %v", d, err)
	}
	if _, err := ParseDirection("sideways"); err == nil {
		t.Fatal("ParseDirection(sideways) should fail")
	}
}
