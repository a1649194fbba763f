package normalize

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Mapping is a synonym table for one categorical field. Keys are the
// uppercase-trimmed spreadsheet spellings, values the canonical form.
type Mapping map[string]string

// Category resolves a raw categorical value against a synonym table. Misses
// fall back to title-casing so unknown-but-present values survive migration.
func Category(raw string, mapping Mapping) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if canonical, ok := mapping[strings.ToUpper(trimmed)]; ok {
		return canonical
	}
	return TitleCase(trimmed)
}

// Synonym tables carried over from the legacy spreadsheets. Values are the
// spellings the clinic's records use downstream.
var (
	InsurerMap = Mapping{
		"UNIMED":                "UNIMED",
		"PARTICULAR":            "PARTICULAR",
		"IPE":                   "IPE SAÚDE",
		"IPE SAÚDE":             "IPE SAÚDE",
		"IPE-SAUDE":             "IPE SAÚDE",
		"BRADESCO":              "BRADESCO SAÚDE",
		"BRADESCO SAÚDE":        "BRADESCO SAÚDE",
		"CASSI":                 "CASSI",
		"AMIL":                  "AMIL",
		"SAUDEPAS":              "SAUDEPAS",
		"SAUDE PAS":             "SAUDEPAS",
		"CORTESIA":              "CORTESIA",
		"RETORNO DE PARTICULAR": "RETORNO PARTICULAR",
		"GEAP":                  "GEAP",
		"SULAMERICA":            "SULAMERICA",
		"SUL AMERICA":           "SULAMERICA",
		"CABERGS":               "CABERGS",
		"PETROBRAS":             "PETROBRAS",
		"POSTAL SAUDE":          "POSTAL SAÚDE",
		"POSTAL SAÚDE":          "POSTAL SAÚDE",
		"CASSI SAUDE CAIXA":     "SAUDE CAIXA",
		"SAUDE CAIXA":           "SAUDE CAIXA",
		"COOPMED":               "COOPMED",
		"CCG":                   "CCG",
	}

	EncounterTypeMap = Mapping{
		"CONSULTA":         "Consulta",
		"VISITA INTERNADO": "Visita internado",
		"CIRURGIA":         "Cirurgia",
		"PROCEDIMENTO":     "Procedimento em consultório",
		"EXAME":            "Exame",
		"RETORNO":          "Retorno",
	}

	LocationMap = Mapping{
		"CONSULTÓRIO": "Consultório",
		"CONSULTORIO": "Consultório",
		"HMV":         "HMV",
		"HMDC":        "HMD CG",
		"HMD":         "HMD",
		"SANTA CASA":  "Santa Casa",
		"ON-LINE":     "On-line",
		"ONLINE":      "On-line",
	}
)

// Mappings bundles the synonym tables threaded into a migration run.
type Mappings struct {
	Insurers       Mapping `yaml:"insurers"`
	EncounterTypes Mapping `yaml:"encounter_types"`
	Locations      Mapping `yaml:"locations"`
}

// DefaultMappings returns copies of the built-in tables so a run can merge
// overrides without mutating package state.
func DefaultMappings() Mappings {
	return Mappings{
		Insurers:       cloneMapping(InsurerMap),
		EncounterTypes: cloneMapping(EncounterTypeMap),
		Locations:      cloneMapping(LocationMap),
	}
}

// LoadMappings merges a YAML override file on top of the built-in tables.
// Override keys are upper-cased so lookups stay case-insensitive.
func LoadMappings(path string) (Mappings, error) {
	m := DefaultMappings()

	raw, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("reading mappings file: %w", err)
	}

	var override Mappings
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return m, fmt.Errorf("parsing mappings file: %w", err)
	}

	mergeMapping(m.Insurers, override.Insurers)
	mergeMapping(m.EncounterTypes, override.EncounterTypes)
	mergeMapping(m.Locations, override.Locations)

	return m, nil
}

func cloneMapping(src Mapping) Mapping {
	dst := make(Mapping, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func mergeMapping(dst, src Mapping) {
	for k, v := range src {
		dst[strings.ToUpper(strings.TrimSpace(k))] = v
	}
}
