package timeutil

import "testing"

func TestRoundTrip(t *testing.T) {
	for m := 0; m < 1440; m++ {
		s := MinutesToTimeStr(m)
		back, err := TimeStrToMinutes(s)
		if err != nil {
			t.Fatalf("minute %d: %v", m, err)
		}
		if back != m {
			t.Fatalf("round trip mismatch: %d -> %q -> %d", m, s, back)
		}
	}
}

func TestMinutesToTimeStrWraps(t *testing.T) {
	if got := MinutesToTimeStr(1440); got != "00:00" {
		t.Fatalf("expected wraparound to 00:00, got %s", got)
	}
	if got := MinutesToTimeStr(1500); got != "01:00" {
		t.Fatalf("expected 01:00, got %s", got)
	}
}

func TestAddMinutesOvernight(t *testing.T) {
	got, err := AddMinutes("23:50", 20)
	if err != nil {
		t.Fatal(err)
	}
	if got != "00:10" {
		t.Fatalf("expected 00:10, got %s", got)
	}
}

func TestTimeStrToMinutesInvalid(t *testing.T) {
	cases := []string{"25:00", "12:60", "bad", "12", "12:ab"}
	for _, c := range cases {
		if _, err := TimeStrToMinutes(c); err == nil {
			t.Fatalf("expected error for %q", c)
		}
	}
}

func TestValidateCoordinate(t *testing.T) {
	if err := ValidateCoordinate(91, 0); err == nil {
		t.Fatal("expected latitude out of range error")
	}
	if err := ValidateCoordinate(0, 181); err == nil {
		t.Fatal("expected longitude out of range error")
	}
	if err := ValidateCoordinate(40.0, -75.0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHaversineZero(t *testing.T) {
	if d := HaversineMeters(40.0, -75.0, 40.0, -75.0); d != 0 {
		t.Fatalf("expected 0, got %v", d)
	}
}
