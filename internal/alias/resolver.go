package alias

import (
	"github.com/zhouzirui/weibo-seed/internal/dataset"
)

// Resolver looks up canonical keys through a Table. It holds no mutable
// state and is safe for concurrent use.
type Resolver struct {
	table Table
}

// NewResolver binds a resolver to table.
func NewResolver(table Table) *Resolver {
	return &Resolver{table: table}
}

// Table returns the table the resolver was built with.
func (r *Resolver) Table() Table {
	return r.table
}

// Section returns the first nested object found under any of keys or their
// aliases, then under any fuzzily matching record key. It never returns nil.
func (r *Resolver) Section(record *dataset.Object, keys ...string) *dataset.Object {
	candidates := Expand(keys, r.table.sections)
	for _, c := range candidates {
		if obj := record.Object(c); obj != nil {
			return obj
		}
	}
	if _, v, ok := FuzzyMatch(record, candidates, isObject); ok {
		return v.(*dataset.Object)
	}
	return dataset.NewObject()
}

// Field returns the first present value under any of keys or their aliases
// within section, then under any fuzzily matching key. Nil and empty strings
// count as absent; def is returned when nothing resolves.
func (r *Resolver) Field(section *dataset.Object, def any, keys ...string) any {
	if section == nil {
		return def
	}
	candidates := Expand(keys, r.table.fields)
	for _, c := range candidates {
		if v, ok := section.Get(c); ok && present(v) {
			return v
		}
	}
	if _, v, ok := FuzzyMatch(section, candidates, present); ok {
		return v
	}
	return def
}

// DatasetID returns the record's declared id, matched exactly against the id
// key and its aliases. Falsy values are skipped; nil means undeclared.
func (r *Resolver) DatasetID(record *dataset.Object) any {
	for _, c := range Expand([]string{FieldDatasetID}, r.table.fields) {
		if v, ok := record.Get(c); ok && dataset.Truthy(v) {
			return v
		}
	}
	return nil
}

func isObject(v any) bool {
	_, ok := v.(*dataset.Object)
	return ok
}

func present(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok && s == "" {
		return false
	}
	return true
}
