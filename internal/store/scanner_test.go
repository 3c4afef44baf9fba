package store

import (
	"fmt"
	"reflect"
)

// fakeRowScanner satisfies rowScanner (and *sql.Row's narrower Scan method)
// without a live database, so the scan helpers that parse nullable columns
// and embedded JSON can be exercised directly.
type fakeRowScanner struct {
	values []interface{}
	err    error
}

func (f *fakeRowScanner) Scan(dest ...interface{}) error {
	if f.err != nil {
		return f.err
	}
	if len(dest) != len(f.values) {
		return fmt.Errorf("scan: column count mismatch: got %d dest, want %d", len(dest), len(f.values))
	}
	for i, d := range dest {
		if err := assignScan(d, f.values[i]); err != nil {
			return err
		}
	}
	return nil
}

// assignScan mimics database/sql's column-to-dest assignment closely enough
// for tests: nil leaves the zero value, matching types assign directly, and
// named-string-kind columns (e.g. models.DedupType) convert.
func assignScan(dest, src interface{}) error {
	dv := reflect.ValueOf(dest).Elem()
	if src == nil {
		dv.Set(reflect.Zero(dv.Type()))
		return nil
	}
	sv := reflect.ValueOf(src)
	if sv.Type().AssignableTo(dv.Type()) {
		dv.Set(sv)
		return nil
	}
	if sv.Type().ConvertibleTo(dv.Type()) {
		dv.Set(sv.Convert(dv.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T into %s", src, dv.Type())
}
