package metadata

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeMetadataFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestFileProviderReadsLowercasedFile(t *testing.T) {
	dir := t.TempDir()
	writeMetadataFile(t, dir, "sales.json", `{"columns": ["city", "amount"]}`)
	provider := NewFileProvider(dir)

	got, err := provider.TableMetadata("SALES")
	if err != nil {
		t.Fatalf("TableMetadata: %v", err)
	}
	if !strings.Contains(got, "amount") {
		t.Fatalf("unexpected metadata %q", got)
	}
}

func TestFileProviderNotFound(t *testing.T) {
	provider := NewFileProvider(t.TempDir())

	_, err := provider.TableMetadata("MISSING")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAssembleDeduplicatesAndSorts(t *testing.T) {
	dir := t.TempDir()
	writeMetadataFile(t, dir, "sales.json", "sales   columns")
	writeMetadataFile(t, dir, "projects.json", "projects\n\ncolumns")
	provider := NewFileProvider(dir)

	got, err := Assemble(provider, []string{"SALES", "projects", "sales", " "})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	want := "### TABLE: PROJECTS\nprojects columns\n\n### TABLE: SALES\nsales columns"
	if got != want {
		t.Fatalf("Assemble = %q, want %q", got, want)
	}
}

func TestAssembleIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeMetadataFile(t, dir, "sales.json", "sales columns")
	provider := NewFileProvider(dir)

	first, err := Assemble(provider, []string{"sales", "SALES"})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	second, err := Assemble(provider, []string{"SALES", "sales"})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical assemblies, got %q and %q", first, second)
	}
}

func TestAssembleFailsOnUnknownTable(t *testing.T) {
	dir := t.TempDir()
	writeMetadataFile(t, dir, "sales.json", "sales columns")
	provider := NewFileProvider(dir)

	_, err := Assemble(provider, []string{"SALES", "UNKNOWN"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for table without metadata, got %v", err)
	}
}

func TestAssembleEmptyTableList(t *testing.T) {
	provider := NewFileProvider(t.TempDir())

	got, err := Assemble(provider, nil)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty assembly, got %q", got)
	}
}
