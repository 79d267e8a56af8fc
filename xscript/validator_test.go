package xscript

import "testing"

func TestRangeValidatorBounds(t *testing.T) {
	v := &RangeValidator{}
	if err := v.Configure(map[string]string{"min": "1", "max": "10"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := v.Check("n", "5"); err != nil {
		t.Errorf("expected 5 to pass, got %v", err)
	}
	if err := v.Check("n", "0"); err == nil {
		t.Error("expected 0 to fail (below minimum)")
	}
	if err := v.Check("n", "11"); err == nil {
		t.Error("expected 11 to fail (above maximum)")
	}
	if err := v.Check("n", "not-a-number"); err == nil {
		t.Error("expected non-numeric value to fail")
	}
}

func TestRangeValidatorConfigureBadMin(t *testing.T) {
	v := &RangeValidator{}
	if err := v.Configure(map[string]string{"min": "abc"}); err == nil {
		t.Error("expected error configuring bad min")
	}
}

func TestRangeValidatorOneSided(t *testing.T) {
	v := &RangeValidator{}
	if err := v.Configure(map[string]string{"min": "5"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := v.Check("n", "1000000"); err != nil {
		t.Errorf("expected no max bound to reject large value: %v", err)
	}
	if err := v.Check("n", "4"); err == nil {
		t.Error("expected value below min to fail")
	}
}

func TestRegexValidatorFullMatch(t *testing.T) {
	v := &RegexValidator{}
	if err := v.Configure(map[string]string{"pattern": "[a-z]+"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := v.Check("s", "hello"); err != nil {
		t.Errorf("expected 'hello' to match, got %v", err)
	}
	if err := v.Check("s", "Hello"); err == nil {
		t.Error("expected 'Hello' to fail (case mismatch)")
	}
	if err := v.Check("s", "hello123"); err == nil {
		t.Error("expected partial match to fail (validator anchors the full value)")
	}
}

func TestRegexValidatorMissingPattern(t *testing.T) {
	v := &RegexValidator{}
	if err := v.Configure(map[string]string{}); err == nil {
		t.Error("expected error for missing pattern attribute")
	}
}

func TestRegexValidatorBadPattern(t *testing.T) {
	v := &RegexValidator{}
	if err := v.Configure(map[string]string{"pattern": "("}); err == nil {
		t.Error("expected error for invalid regex")
	}
}
