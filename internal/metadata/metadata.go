// Package metadata resolves warehouse table descriptions used to
// ground SQL generation. Descriptions live as JSON files on disk, one
// file per table.
package metadata

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/growexx/Americana-Audit-trail-chatbot/internal/prompt"
)

// ErrNotFound reports a table with no metadata file.
var ErrNotFound = errors.New("table metadata not found")

// Provider resolves the metadata text for one table.
type Provider interface {
	TableMetadata(table string) (string, error)
}

// FileProvider reads per-table metadata from <dir>/<table>.json, with
// the file name lowercased.
type FileProvider struct {
	dir string
}

func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{dir: dir}
}

func (p *FileProvider) TableMetadata(table string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(table)) + ".json"
	raw, err := os.ReadFile(filepath.Join(p.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("table %s: %w", table, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read metadata for table %s: %w", table, err)
	}
	return string(raw), nil
}

// Assemble builds the combined metadata block for a set of tables.
// Tables are deduplicated and sorted so identical inputs produce
// identical output. A table without a metadata record fails the whole
// assembly; generated SQL must never be grounded on a partial schema.
func Assemble(provider Provider, tables []string) (string, error) {
	seen := make(map[string]struct{}, len(tables))
	ordered := make([]string, 0, len(tables))
	for _, table := range tables {
		normalized := strings.ToUpper(strings.TrimSpace(table))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		ordered = append(ordered, normalized)
	}
	sort.Strings(ordered)

	var sections []string
	for _, table := range ordered {
		text, err := provider.TableMetadata(table)
		if err != nil {
			return "", err
		}
		sections = append(sections, "### TABLE: "+table+"\n"+prompt.CollapseWhitespace(text))
	}
	return strings.Join(sections, "\n\n"), nil
}
