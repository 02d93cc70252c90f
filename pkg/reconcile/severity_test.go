package reconcile

import (
	"encoding/json"
	"testing"
)

func TestSeverityOrdering(t *testing.T) {
	if !(SeverityOK < SeverityWarning && SeverityWarning < SeverityError) {
		t.Fatal("severity values are not ordered OK < Warning < Error")
	}
}

func TestSeverityMax(t *testing.T) {
	tests := []struct {
		a, b, want Severity
	}{
		{SeverityOK, SeverityOK, SeverityOK},
		{SeverityOK, SeverityWarning, SeverityWarning},
		{SeverityWarning, SeverityOK, SeverityWarning},
		{SeverityWarning, SeverityError, SeverityError},
		{SeverityError, SeverityOK, SeverityError},
		{SeverityError, SeverityWarning, SeverityError},
	}
	for _, tt := range tests {
		if got := tt.a.Max(tt.b); got != tt.want {
			t.Errorf("Max(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSeverityExitCodes(t *testing.T) {
	if SeverityOK.ExitCode() != 0 || SeverityWarning.ExitCode() != 1 || SeverityError.ExitCode() != 2 {
		t.Fatalf("exit code mapping broken: %d %d %d",
			SeverityOK.ExitCode(), SeverityWarning.ExitCode(), SeverityError.ExitCode())
	}
}

func TestSeverityJSON(t *testing.T) {
	for _, sev := range []Severity{SeverityOK, SeverityWarning, SeverityError} {
		data, err := json.Marshal(sev)
		if err != nil {
			t.Fatalf("marshal %s: %v", sev, err)
		}
		var back Severity
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if back != sev {
			t.Errorf("round-trip %s -> %s", sev, back)
		}
	}

	var bogus Severity
	if err := json.Unmarshal([]byte(`"critical"`), &bogus); err == nil {
		t.Error("expected error for unknown severity name")
	}
}
