package patient

import "testing"

// Source cells occasionally carry LIKE metacharacters; escaped, they match
// only themselves instead of widening a name search to arbitrary patients.
func TestEscapeLike(t *testing.T) {
	cases := map[string]string{
		"Maria Silva":    "Maria Silva",
		"100%":           `100\%`,
		"Silva_":         `Silva\_`,
		`back\slash`:     `back\\slash`,
		`%_\`:            `\%\_` + `\\`,
		"José da Silva%": `José da Silva\%`,
	}
	for in, want := range cases {
		if got := escapeLike(in); got != want {
			t.Fatalf("escapeLike(%q) = %q, want %q", in, got, want)
		}
	}
}
