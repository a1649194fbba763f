package dedup

import (
	"testing"
	"time"

	"github.com/gorgen-health/migrator/pkg/patient"
)

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestGroupByNationalID(t *testing.T) {
	records := []patient.PatientRecord{
		{PatientCode: "MIG-1", Name: "José da Silva", NationalID: "111.222.333-44"},
		{PatientCode: "MIG-2", Name: "Jose DA Silva", NationalID: "11122233344"},
		{PatientCode: "MIG-3", Name: "Outro Paciente", NationalID: "555.666.777-88"},
	}

	groups := GroupDuplicates(records)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if groups[0].Criterion != CriterionNationalID {
		t.Fatalf("expected nationalId criterion, got %s", groups[0].Criterion)
	}
	if len(groups[0].Members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(groups[0].Members))
	}
}

func TestGroupUpgradesToCombined(t *testing.T) {
	records := []patient.PatientRecord{
		{PatientCode: "MIG-1", Name: "José da Silva", NationalID: "111.222.333-44", BirthDate: datePtr(1980, 5, 1)},
		{PatientCode: "MIG-2", Name: "Jose da Silva", NationalID: "111.222.333-44", BirthDate: datePtr(1980, 5, 1)},
	}

	groups := GroupDuplicates(records)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if groups[0].Criterion != CriterionCombined {
		t.Fatalf("expected combined criterion, got %s", groups[0].Criterion)
	}
}

func TestGroupByBirthDateOnly(t *testing.T) {
	records := []patient.PatientRecord{
		{PatientCode: "MIG-1", Name: "Ana Souza", BirthDate: datePtr(1975, 12, 24)},
		{PatientCode: "MIG-2", Name: "ana souza", BirthDate: datePtr(1975, 12, 24)},
	}

	groups := GroupDuplicates(records)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if groups[0].Criterion != CriterionBirthDate {
		t.Fatalf("expected birthDate criterion, got %s", groups[0].Criterion)
	}
}

func TestShortNationalIDNeverKeys(t *testing.T) {
	records := []patient.PatientRecord{
		{PatientCode: "MIG-1", Name: "Ana Souza", NationalID: "123"},
		{PatientCode: "MIG-2", Name: "Ana Souza", NationalID: "123"},
	}

	if groups := GroupDuplicates(records); len(groups) != 0 {
		t.Fatalf("expected no groups for short national ids, got %d", len(groups))
	}
}

// Partially overlapping member sets stay separate groups; only exact set
// equality merges criteria.
func TestPartialOverlapStaysDistinct(t *testing.T) {
	records := []patient.PatientRecord{
		{PatientCode: "MIG-1", Name: "Ana Souza", NationalID: "111.222.333-44", BirthDate: datePtr(1990, 1, 1)},
		{PatientCode: "MIG-2", Name: "Ana Souza", NationalID: "111.222.333-44"},
		{PatientCode: "MIG-3", Name: "Ana Souza", BirthDate: datePtr(1990, 1, 1)},
	}

	groups := GroupDuplicates(records)
	if len(groups) != 2 {
		t.Fatalf("expected 2 distinct groups, got %d", len(groups))
	}

	var tags []Criterion
	for _, g := range groups {
		tags = append(tags, g.Criterion)
	}
	seen := map[Criterion]bool{}
	for _, tag := range tags {
		seen[tag] = true
	}
	if !seen[CriterionNationalID] || !seen[CriterionBirthDate] {
		t.Fatalf("expected one nationalId and one birthDate group, got %v", tags)
	}
}

func TestDeterministicGroupOrder(t *testing.T) {
	records := []patient.PatientRecord{
		{PatientCode: "MIG-1", Name: "Bruna Lima", NationalID: "222.333.444-55"},
		{PatientCode: "MIG-2", Name: "Bruna Lima", NationalID: "222.333.444-55"},
		{PatientCode: "MIG-3", Name: "Ana Souza", NationalID: "111.222.333-44"},
		{PatientCode: "MIG-4", Name: "Ana Souza", NationalID: "111.222.333-44"},
	}

	first := GroupDuplicates(records)
	second := GroupDuplicates(records)
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected 2 groups in both runs, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Key != second[i].Key || first[i].Criterion != second[i].Criterion {
			t.Fatalf("group order not deterministic: %v vs %v", first[i], second[i])
		}
	}
	if first[0].Key > first[1].Key {
		t.Fatal("groups should come out in sorted key order")
	}
}
