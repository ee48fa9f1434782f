package load

import "fmt"

// IntegrityError reports a verified row-count mismatch after a write. It
// always fails the load; a partially written period must never be
// recorded as loaded.
type IntegrityError struct {
	Table    string
	Period   string
	Expected int64
	Got      int64
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity: table %s period %s: expected %d rows, found %d",
		e.Table, e.Period, e.Expected, e.Got)
}

// SchemaError reports a destination schema that cannot be reconciled by
// growing, such as a mapping column the backend failed to add.
type SchemaError struct {
	Table   string
	Missing []string
	Err     error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: table %s missing columns %v: %v", e.Table, e.Missing, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }
