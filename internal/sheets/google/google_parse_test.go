package google

import (
	"testing"
)

func TestToStrings(t *testing.T) {
	got := toStrings([]any{1234567.5, 45936.0, true, " Comida ", nil})
	want := []string{"1234567.5", "45936", "true", "Comida", ""}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("col %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"TRUE", "1", "yes", "x", "Sí", " si "} {
		if !parseBool(s) {
			t.Errorf("%q should be true", s)
		}
	}
	for _, s := range []string{"", "false", "0", "no"} {
		if parseBool(s) {
			t.Errorf("%q should be false", s)
		}
	}
}

func TestSplitIDs(t *testing.T) {
	got := splitIDs(" Comida; Ocio ,, Casa ")
	if len(got) != 3 || got[0] != "Comida" || got[2] != "Casa" {
		t.Fatalf("unexpected ids %v", got)
	}
	if splitIDs(" ; ") != nil {
		t.Fatal("blank cell should yield nil")
	}
}

func TestParseBudgetRowErrors(t *testing.T) {
	cases := map[string][]string{
		"bad amount": {"b1", "Food", "abc", "", "monthly", "", "", "true"},
		"bad period": {"b1", "Food", "10", "", "fortnightly", "", "", "true"},
		"no scope":   {"b1", "Food", "10", "", "monthly", "", "", "false"},
		"custom":     {"b1", "Food", "10", "", "custom", "2025-10-01", "", "true"},
		"bad date":   {"b1", "Food", "10", "", "custom", "yesterday", "2025-10-02", "true"},
	}
	for name, row := range cases {
		if _, err := parseBudgetRow(row); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestParseGoalRowDefaults(t *testing.T) {
	g, err := parseGoalRow([]string{"g1", "Save", "Savings", "", "", "Monthly", "", "", "", "Ahorro"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if g.TargetAmount.Cents != 0 || g.Currency != "EUR" || g.IsGlobal || g.CategoryIDs[0] != "Ahorro" {
		t.Fatalf("unexpected goal %+v", g)
	}
}
