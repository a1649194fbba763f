package normalize

import (
	"testing"
	"time"
)

func TestNameStripsAccentsAndWhitespace(t *testing.T) {
	if got, want := Name("José  DA Silva"), Name("jose da silva"); got != want {
		t.Fatalf("expected %q to equal %q", got, want)
	}
	if got := Name("  Ângela-Maria   Conceição "); got != "angelamaria conceicao" {
		t.Fatalf("unexpected normalized name: %q", got)
	}
	if got := Name(""); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
}

func TestNationalIDKeepsDigitsOnly(t *testing.T) {
	if got := NationalID("111.222.333-44"); got != "11122233344" {
		t.Fatalf("unexpected digits: %q", got)
	}
	if got := NationalID("abc"); got != "" {
		t.Fatalf("expected empty digits, got %q", got)
	}
}

func TestBooleanTruthyTokens(t *testing.T) {
	for _, token := range []string{"true", "1", "yes", "sim", "s", "SIM", " S "} {
		if !Boolean(token) {
			t.Fatalf("expected %q to be truthy", token)
		}
	}
	for _, token := range []string{"", "não", "no", "0", "false"} {
		if Boolean(token) {
			t.Fatalf("expected %q to be falsy", token)
		}
	}
}

func TestSex(t *testing.T) {
	cases := map[string]string{
		"M":         "M",
		"masculino": "M",
		"F":         "F",
		"Feminino":  "F",
		"X":         "Outro",
		"":          "",
	}
	for in, want := range cases {
		if got := Sex(in); got != want {
			t.Fatalf("Sex(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCategoryLookupAndFallback(t *testing.T) {
	if got := Category("ipe", InsurerMap); got != "IPE SAÚDE" {
		t.Fatalf("expected synonym hit, got %q", got)
	}
	if got := Category("consulta", EncounterTypeMap); got != "Consulta" {
		t.Fatalf("expected synonym hit, got %q", got)
	}
	// Unknown values survive with fallback capitalization.
	if got := Category("plano novo", InsurerMap); got != "Plano Novo" {
		t.Fatalf("expected title-case fallback, got %q", got)
	}
	if got := Category("   ", InsurerMap); got != "" {
		t.Fatalf("expected absent for blank input, got %q", got)
	}
}

func TestDateFormats(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"1990-01-01", time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2025-03-15 14:30:00", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"06/jan./2025", time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)},
		{"08/dez./2024", time.Date(2024, 12, 8, 0, 0, 0, 0, time.UTC)},
		{"25/12/2023", time.Date(2023, 12, 25, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, ok := Date(tc.in)
		if !ok {
			t.Fatalf("Date(%q) unexpectedly absent", tc.in)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("Date(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	for _, in := range []string{"", "not a date", "30/02/2023", "06/xyz./2025", "99/99/9999"} {
		if _, ok := Date(in); ok {
			t.Fatalf("Date(%q) should be absent", in)
		}
	}
}

func TestMoney(t *testing.T) {
	cases := map[string]string{
		"R$ 1.234,56": "1234.56",
		"350,00":      "350",
		"-":           "0",
		"":            "0",
		"R$ -":        "0",
	}
	for in, want := range cases {
		got, ok := Money(in)
		if !ok {
			t.Fatalf("Money(%q) unexpectedly absent", in)
		}
		if got.String() != want {
			t.Fatalf("Money(%q) = %s, want %s", in, got, want)
		}
	}

	if _, ok := Money("abc"); ok {
		t.Fatal("expected malformed money to be absent")
	}
}

func TestLoadMappingsMissingFileKeepsDefaults(t *testing.T) {
	m, err := LoadMappings("/nonexistent/mappings.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if m.Insurers["UNIMED"] != "UNIMED" {
		t.Fatal("defaults should survive a failed load")
	}
}
