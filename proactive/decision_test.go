package proactive

import (
	"testing"
	"time"
)

func TestShouldExpressDisabledNeverFires(t *testing.T) {
	ok, _, _ := shouldExpress(Signals{Now: time.Now(), LastHumanTurnAt: time.Now().Add(-time.Hour)}, UserSettings{Enabled: false}, 0)
	if ok {
		t.Fatalf("expected disabled settings to never fire")
	}
}

func TestShouldExpressRespectsMinQuiet(t *testing.T) {
	now := time.Now()
	signals := Signals{Now: now, LastHumanTurnAt: now.Add(-time.Minute), LocalHour: 7}
	ok, _, _ := shouldExpress(signals, UserSettings{Enabled: true}, 0)
	if ok {
		t.Fatalf("expected no expression inside the quiet window")
	}
}

func TestShouldExpressRespectsDailyCap(t *testing.T) {
	now := time.Now()
	signals := Signals{Now: now, LastHumanTurnAt: now.Add(-time.Hour), LocalHour: 7}
	ok, _, _ := shouldExpress(signals, UserSettings{Enabled: true, MaxExpressionsPerDay: 1}, 1)
	if ok {
		t.Fatalf("expected daily cap to suppress expression")
	}
}

func TestShouldExpressMorningBoundaryPicksGreeting(t *testing.T) {
	now := time.Now()
	signals := Signals{Now: now, LastHumanTurnAt: now.Add(-time.Hour), LocalHour: 7}
	ok, typ, _ := shouldExpress(signals, UserSettings{Enabled: true}, 0)
	if !ok || typ != Greeting {
		t.Fatalf("expected Greeting at morning boundary, got ok=%v type=%s", ok, typ)
	}
}

func TestShouldExpressEveningBoundaryPicksFarewell(t *testing.T) {
	now := time.Now()
	signals := Signals{Now: now, LastHumanTurnAt: now.Add(-time.Hour), LocalHour: 21}
	ok, typ, _ := shouldExpress(signals, UserSettings{Enabled: true}, 0)
	if !ok || typ != Farewell {
		t.Fatalf("expected Farewell at evening boundary, got ok=%v type=%s", ok, typ)
	}
}

func TestShouldExpressLongSilenceNonInitialPicksCare(t *testing.T) {
	now := time.Now()
	signals := Signals{Now: now, LastHumanTurnAt: now.Add(-3 * time.Hour), LocalHour: 14, InteractionCount: 10}
	ok, typ, _ := shouldExpress(signals, UserSettings{Enabled: true}, 0)
	if !ok || typ != Care {
		t.Fatalf("expected Care after long silence, got ok=%v type=%s", ok, typ)
	}
}

func TestStageForCountBands(t *testing.T) {
	cases := []struct {
		count int
		want  Stage
	}{
		{0, StageInitial}, {5, StageInitial},
		{6, StageDeveloping}, {20, StageDeveloping},
		{21, StageEstablished}, {50, StageEstablished},
		{51, StageClose}, {1000, StageClose},
	}
	for _, tc := range cases {
		if got := StageForCount(tc.count); got != tc.want {
			t.Fatalf("StageForCount(%d) = %s, want %s", tc.count, got, tc.want)
		}
	}
}
