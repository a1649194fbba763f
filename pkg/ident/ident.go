// Package ident assigns collision-free identifiers: migration-time patient
// codes and tenant-scoped sequential encounter codes.
package ident

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// MigrationPrefix marks patients created by a migration run, so they remain
// distinguishable from records the clinic created directly.
const MigrationPrefix = "MIG-"

// maxSuffixAttempts bounds the collision-suffix loop for repaired encounter
// codes. Exhaustion is an explicit error, never a silent overwrite.
const maxSuffixAttempts = 99

var ErrCodeSpaceExhausted = errors.New("encounter code suffix space exhausted")

// PatientCode derives the stable primary identifier for a migrated patient
// from its legacy source identifier.
func PatientCode(legacyID string) string {
	return MigrationPrefix + legacyID
}

// DedupPatientCode resolves a collision with an identifier from a prior
// partial run by appending the row's positional index, which is unique
// within the batch being transformed.
func DedupPatientCode(code string, rowIndex int) string {
	return fmt.Sprintf("%s-DUP-%d", code, rowIndex)
}

// CodeStore is the slice of encounter storage the allocator consults.
type CodeStore interface {
	MaxCodeWithPrefix(ctx context.Context, tenantID int64, prefix string) (string, error)
	CodeExists(ctx context.Context, tenantID int64, code string) (bool, error)
}

// Allocator issues encounter codes of the form
// <patientCode>-<year><sequence:4>. It re-reads the greatest issued code
// before every allocation, so a resumed run continues where the interrupted
// one stopped.
type Allocator struct {
	store    CodeStore
	tenantID int64
}

func NewAllocator(store CodeStore, tenantID int64) *Allocator {
	return &Allocator{store: store, tenantID: tenantID}
}

// NextCode returns the next free code for a patient and year: the greatest
// existing code under the <patientCode>-<year> prefix determines the
// sequence; none means the year starts at 0001. The sequence is read from
// the fixed 4-digit slot right after the prefix, so a repair-suffixed code
// (<prefix><seq>-2) counts as its base sequence instead of hiding it.
func (a *Allocator) NextCode(ctx context.Context, patientCode string, year int) (string, error) {
	prefix := fmt.Sprintf("%s-%d", patientCode, year)

	latest, err := a.store.MaxCodeWithPrefix(ctx, a.tenantID, prefix)
	if err != nil {
		return "", fmt.Errorf("looking up latest encounter code: %w", err)
	}

	seq := 1
	if len(latest) >= len(prefix)+4 {
		if parsed, err := strconv.Atoi(latest[len(prefix) : len(prefix)+4]); err == nil {
			seq = parsed + 1
		}
	}

	return fmt.Sprintf("%s%04d", prefix, seq), nil
}

// FreeCode returns code itself when unused, otherwise the first free
// suffixed variant (-2, -3, ...). The loop is bounded; running out of
// suffixes reports ErrCodeSpaceExhausted.
func (a *Allocator) FreeCode(ctx context.Context, code string) (string, error) {
	exists, err := a.store.CodeExists(ctx, a.tenantID, code)
	if err != nil {
		return "", err
	}
	if !exists {
		return code, nil
	}

	for i := 2; i <= maxSuffixAttempts; i++ {
		candidate := fmt.Sprintf("%s-%d", code, i)
		exists, err := a.store.CodeExists(ctx, a.tenantID, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrCodeSpaceExhausted, code)
}
