package source

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func writeSheet(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	for i, cells := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &cells); err != nil {
			t.Fatalf("writing row %d: %v", i+1, err)
		}
	}
	path := filepath.Join(t.TempDir(), "export.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("saving sheet: %v", err)
	}
	return path
}

func TestReadSheet(t *testing.T) {
	path := writeSheet(t, [][]interface{}{
		{"ID paciente", "Nome", "CPF"},
		{"1", "Ana Souza", "111.222.333-44"},
		{"2", " Bruno Lima ", ""},
	})

	rows, err := ReadSheet(path, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Index != 1 || rows[1].Index != 2 {
		t.Fatalf("row indexes should be 1-based, got %d and %d", rows[0].Index, rows[1].Index)
	}
	if rows[0].Get("Nome") != "Ana Souza" {
		t.Fatalf("expected Ana Souza, got %q", rows[0].Get("Nome"))
	}
	if rows[1].Get("Nome") != "Bruno Lima" {
		t.Fatalf("cells should come back trimmed, got %q", rows[1].Get("Nome"))
	}
	if rows[1].Get("CPF") != "" || rows[1].Get("Coluna Inexistente") != "" {
		t.Fatal("empty and missing columns should read as empty strings")
	}
}

func TestReadSheetLimit(t *testing.T) {
	path := writeSheet(t, [][]interface{}{
		{"ID paciente", "Nome"},
		{"1", "Ana"},
		{"2", "Bia"},
		{"3", "Carla"},
	})

	rows, err := ReadSheet(path, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected limit to cap at 2 rows, got %d", len(rows))
	}
}

func TestReadSheetMissingFile(t *testing.T) {
	if _, err := ReadSheet(filepath.Join(t.TempDir(), "nope.xlsx"), 0); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
