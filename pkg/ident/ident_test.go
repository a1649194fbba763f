package ident

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gorgen-health/migrator/pkg/common/logger"
	"github.com/gorgen-health/migrator/pkg/patient"
)

// fakeCodeStore keeps encounter codes in memory and mimics the repository's
// lexicographic max and hyphen-based malformed selection.
type fakeCodeStore struct {
	encounters []patient.EncounterRecord
	alwaysBusy bool
}

func (f *fakeCodeStore) MaxCodeWithPrefix(_ context.Context, _ int64, prefix string) (string, error) {
	var matches []string
	for _, e := range f.encounters {
		if strings.HasPrefix(e.Code, prefix) {
			matches = append(matches, e.Code)
		}
	}
	if len(matches) == 0 {
		return "", nil
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}

func (f *fakeCodeStore) CodeExists(_ context.Context, _ int64, code string) (bool, error) {
	if f.alwaysBusy {
		return true, nil
	}
	for _, e := range f.encounters {
		if e.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCodeStore) ListMalformedCodes(_ context.Context, _ int64) ([]patient.EncounterRecord, error) {
	var out []patient.EncounterRecord
	for _, e := range f.encounters {
		if !strings.Contains(e.Code, "-") {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeCodeStore) UpdateCode(_ context.Context, id int64, code string) error {
	for i := range f.encounters {
		if f.encounters[i].ID == id {
			f.encounters[i].Code = code
			return nil
		}
	}
	return errors.New("encounter not found")
}

func withCodes(codes ...string) *fakeCodeStore {
	store := &fakeCodeStore{}
	for i, c := range codes {
		store.encounters = append(store.encounters, patient.EncounterRecord{ID: int64(i + 1), Code: c})
	}
	return store
}

func TestPatientCodePrefixAndDedup(t *testing.T) {
	if got := PatientCode("123"); got != "MIG-123" {
		t.Fatalf("unexpected patient code: %q", got)
	}
	if got := DedupPatientCode("MIG-123", 42); got != "MIG-123-DUP-42" {
		t.Fatalf("unexpected dedup code: %q", got)
	}
}

func TestNextCodeIncrementsLatestSequence(t *testing.T) {
	store := withCodes(
		"MIG-A-20250001", "MIG-A-20250002", "MIG-A-20250003",
		"MIG-A-20250004", "MIG-A-20250005", "MIG-A-20250006",
		"MIG-A-20250007", "MIG-A-20250008", "MIG-A-20250009",
	)
	a := NewAllocator(store, 1)

	code, err := a.NextCode(context.Background(), "MIG-A", 2025)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != "MIG-A-20250010" {
		t.Fatalf("expected MIG-A-20250010, got %s", code)
	}
}

// A collision-suffixed code left by a repair can become the lexicographic
// max under the prefix; allocation must still advance past its base
// sequence instead of re-issuing it.
func TestNextCodeAdvancesPastSuffixedRepairCode(t *testing.T) {
	store := withCodes("MIG-A-20250001", "MIG-A-20250001-2")
	a := NewAllocator(store, 1)

	code, err := a.NextCode(context.Background(), "MIG-A", 2025)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != "MIG-A-20250002" {
		t.Fatalf("expected MIG-A-20250002, got %s", code)
	}

	exists, err := store.CodeExists(context.Background(), 1, code)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists {
		t.Fatalf("allocator returned an already-used code: %s", code)
	}

	// The suffixed variant of the top sequence must not hide it either.
	store = withCodes("MIG-A-20250009", "MIG-A-20250009-3")
	a = NewAllocator(store, 1)
	code, err = a.NextCode(context.Background(), "MIG-A", 2025)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != "MIG-A-20250010" {
		t.Fatalf("expected MIG-A-20250010, got %s", code)
	}
}

func TestNextCodeStartsAtOne(t *testing.T) {
	a := NewAllocator(withCodes(), 1)

	code, err := a.NextCode(context.Background(), "MIG-A", 2025)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != "MIG-A-20250001" {
		t.Fatalf("expected MIG-A-20250001, got %s", code)
	}

	// Another patient's codes never influence the sequence.
	a = NewAllocator(withCodes("MIG-B-20250007"), 1)
	code, err = a.NextCode(context.Background(), "MIG-A", 2025)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != "MIG-A-20250001" {
		t.Fatalf("expected MIG-A-20250001, got %s", code)
	}
}

func TestFreeCodeSuffixesOnCollision(t *testing.T) {
	store := withCodes("MIG-A-20250001", "MIG-A-20250001-2")
	a := NewAllocator(store, 1)

	code, err := a.FreeCode(context.Background(), "MIG-A-20250001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != "MIG-A-20250001-3" {
		t.Fatalf("expected -3 suffix, got %s", code)
	}

	code, err = a.FreeCode(context.Background(), "MIG-A-20260001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != "MIG-A-20260001" {
		t.Fatalf("free code should come back unchanged, got %s", code)
	}
}

func TestFreeCodeExhaustion(t *testing.T) {
	a := NewAllocator(&fakeCodeStore{alwaysBusy: true}, 1)

	_, err := a.FreeCode(context.Background(), "MIG-A-20250001")
	if !errors.Is(err, ErrCodeSpaceExhausted) {
		t.Fatalf("expected ErrCodeSpaceExhausted, got %v", err)
	}
}

func TestRepairerRewritesLegacyCodes(t *testing.T) {
	date := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeCodeStore{encounters: []patient.EncounterRecord{
		{ID: 1, Code: "20250001", PatientCode: "MIG-7", Date: &date},
		{ID: 2, Code: "2025123", PatientCode: "MIG-8", Date: &date},
		{ID: 3, Code: "TESTE001", PatientCode: "MIG-9", Date: &date},
		{ID: 4, Code: "20250002", PatientCode: ""},
		{ID: 5, Code: "MIG-7-20250003", PatientCode: "MIG-7", Date: &date},
	}}

	r := NewRepairer(store, 1, logger.New("error"))
	result, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Total != 4 {
		t.Fatalf("expected 4 malformed codes, got %d", result.Total)
	}
	if result.Repaired != 3 {
		t.Fatalf("expected 3 repairs, got %d", result.Repaired)
	}
	if result.Skipped != 1 {
		t.Fatalf("expected 1 skip (no patient), got %d", result.Skipped)
	}

	want := map[int64]string{
		1: "MIG-7-20250001",
		2: "MIG-8-20250123",
		3: "MIG-9-20250001",
		4: "20250002",
		5: "MIG-7-20250003",
	}
	for _, e := range store.encounters {
		if e.Code != want[e.ID] {
			t.Fatalf("encounter %d: got %s, want %s", e.ID, e.Code, want[e.ID])
		}
	}
}

func TestRepairerIdempotent(t *testing.T) {
	date := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeCodeStore{encounters: []patient.EncounterRecord{
		{ID: 1, Code: "20250001", PatientCode: "MIG-7", Date: &date},
	}}

	r := NewRepairer(store, 1, logger.New("error"))
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Second pass sees only hyphenated codes and does nothing.
	result, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != 0 || result.Repaired != 0 {
		t.Fatalf("expected no-op second pass, got %+v", result)
	}
}

func TestRepairerCollisionGetsSuffix(t *testing.T) {
	date := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeCodeStore{encounters: []patient.EncounterRecord{
		{ID: 1, Code: "MIG-7-20250001", PatientCode: "MIG-7", Date: &date},
		{ID: 2, Code: "20250001", PatientCode: "MIG-7", Date: &date},
	}}

	r := NewRepairer(store, 1, logger.New("error"))
	result, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Repaired != 1 {
		t.Fatalf("expected 1 repair, got %+v", result)
	}
	if store.encounters[1].Code != "MIG-7-20250001-2" {
		t.Fatalf("expected suffixed code, got %s", store.encounters[1].Code)
	}
}
