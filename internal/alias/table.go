// Package alias resolves canonical section and field names against dataset
// records whose keys may be spelled in one of several corrupted encodings.
package alias

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Table maps canonical keys to their known alternate spellings.
// A Table is immutable once built; accessors hand out copies.
type Table struct {
	sections map[string][]string
	fields   map[string][]string
}

// NewTable copies the supplied alias sets into a new Table.
func NewTable(sections, fields map[string][]string) Table {
	return Table{sections: cloneAliases(sections), fields: cloneAliases(fields)}
}

// SectionAliases returns the alternate spellings registered for a section.
func (t Table) SectionAliases(canonical string) []string {
	return append([]string(nil), t.sections[canonical]...)
}

// FieldAliases returns the alternate spellings registered for a field.
func (t Table) FieldAliases(canonical string) []string {
	return append([]string(nil), t.fields[canonical]...)
}

// Sections lists the canonical section keys in sorted order.
func (t Table) Sections() []string {
	return sortedKeys(t.sections)
}

// Fields lists the canonical field keys in sorted order.
func (t Table) Fields() []string {
	return sortedKeys(t.fields)
}

// Merge returns a new Table holding t's aliases followed by other's.
// Spellings already present are not repeated.
func (t Table) Merge(other Table) Table {
	return Table{
		sections: mergeAliases(t.sections, other.sections),
		fields:   mergeAliases(t.fields, other.fields),
	}
}

type tableFile struct {
	Sections map[string][]string `yaml:"sections"`
	Fields   map[string][]string `yaml:"fields"`
}

// ParseTable decodes an alias table from YAML:
//
//	sections:
//	  个人基本信息: ["..."]
//	fields:
//	  用户名: ["..."]
func ParseTable(data []byte) (Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Table{}, fmt.Errorf("parse alias table: %w", err)
	}
	return NewTable(f.Sections, f.Fields), nil
}

// LoadTable builds the default table, extended with the YAML file at path
// when path is not empty.
func LoadTable(path string) (Table, error) {
	table := DefaultTable()
	if path == "" {
		return table, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read alias table %s: %w", path, err)
	}
	extra, err := ParseTable(data)
	if err != nil {
		return Table{}, err
	}
	return table.Merge(extra), nil
}

// MarshalYAML renders the table in the ParseTable format.
func (t Table) MarshalYAML() (any, error) {
	return tableFile{Sections: t.sections, Fields: t.fields}, nil
}

func cloneAliases(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func mergeAliases(base, extra map[string][]string) map[string][]string {
	out := cloneAliases(base)
	for k, spellings := range extra {
		for _, s := range spellings {
			if !contains(out[k], s) {
				out[k] = append(out[k], s)
			}
		}
	}
	return out
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
