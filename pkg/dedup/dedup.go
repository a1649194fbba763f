// Package dedup partitions the patient set into duplicate groups using two
// independent identity keys and reports them for manual review. It never
// merges or deletes records itself.
package dedup

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/gorgen-health/migrator/pkg/normalize"
	"github.com/gorgen-health/migrator/pkg/patient"
)

// Criterion tags which key produced a duplicate group.
type Criterion string

const (
	CriterionNationalID Criterion = "nationalId"
	CriterionBirthDate  Criterion = "birthDate"
	CriterionCombined   Criterion = "combined"
)

// Member carries the review-relevant attributes of one grouped patient.
type Member struct {
	PatientCode string `json:"patient_code"`
	Name        string `json:"name"`
	NationalID  string `json:"national_id,omitempty"`
	BirthDate   string `json:"birth_date,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

// Group is one set of records believed to represent the same person.
type Group struct {
	ID        string    `json:"id"`
	Criterion Criterion `json:"criterion"`
	Key       string    `json:"key"`
	Members   []Member  `json:"members"`
}

func (g Group) memberCodes() string {
	codes := make([]string, len(g.Members))
	for i, m := range g.Members {
		codes[i] = m.PatientCode
	}
	sort.Strings(codes)
	return strings.Join(codes, "|")
}

// GroupDuplicates builds the minimal group set: records sharing a
// normalized name plus national ID (when the ID has at least 11 digits),
// and records sharing a normalized name plus birth date. A birth-date group
// whose member set exactly equals a national-ID group upgrades that group
// to the combined criterion; partial overlaps stay distinct groups.
func GroupDuplicates(records []patient.PatientRecord) []Group {
	byNationalID := make(map[string][]patient.PatientRecord)
	byBirthDate := make(map[string][]patient.PatientRecord)

	for _, rec := range records {
		nameKey := normalize.Name(rec.Name)

		if digits := normalize.NationalID(rec.NationalID); len(digits) >= 11 {
			key := nameKey + "|" + digits
			byNationalID[key] = append(byNationalID[key], rec)
		}

		if rec.BirthDate != nil {
			key := nameKey + "|" + rec.BirthDate.Format("2006-01-02")
			byBirthDate[key] = append(byBirthDate[key], rec)
		}
	}

	var groups []Group

	for _, key := range sortedKeys(byNationalID) {
		members := byNationalID[key]
		if len(members) < 2 {
			continue
		}
		groups = append(groups, newGroup(CriterionNationalID, key, members))
	}

	finalized := make(map[string]int, len(groups))
	for i, g := range groups {
		finalized[g.memberCodes()] = i
	}

	for _, key := range sortedKeys(byBirthDate) {
		members := byBirthDate[key]
		if len(members) < 2 {
			continue
		}
		candidate := newGroup(CriterionBirthDate, key, members)
		if i, ok := finalized[candidate.memberCodes()]; ok {
			groups[i].Criterion = CriterionCombined
			continue
		}
		groups = append(groups, candidate)
	}

	return groups
}

func newGroup(criterion Criterion, key string, members []patient.PatientRecord) Group {
	g := Group{
		ID:        uuid.New().String(),
		Criterion: criterion,
		Key:       key,
	}
	for _, rec := range members {
		m := Member{
			PatientCode: rec.PatientCode,
			Name:        rec.Name,
			NationalID:  rec.NationalID,
			Email:       rec.Email,
			Phone:       rec.Phone,
		}
		if rec.BirthDate != nil {
			m.BirthDate = rec.BirthDate.Format("2006-01-02")
		}
		g.Members = append(g.Members, m)
	}
	return g
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
