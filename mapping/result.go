package mapping

// Result summarizes one directive application. With failFast disabled a
// directive can succeed while skipping records, so callers must check
// Skipped rather than rely on a nil error.
type Result struct {
	Directive string
	Strategy  Strategy

	// Records is the number of zipped records the directive produced
	Records int
	// Applied counts records whose writes were committed, no-ops included
	Applied int
	// Unchanged counts applied records that found identical values in place
	Unchanged int
	// Skipped counts records rejected with a record-level error
	Skipped int

	SkippedKeys []string
	Errors      []*MappingError

	// ContentKeys and SlotKeys list the keys written by applied records in
	// record order
	ContentKeys []int64
	SlotKeys    []string
}

// OK reports whether every record was applied
func (r *Result) OK() bool {
	return r.Skipped == 0
}

func (r *Result) skip(err *MappingError) {
	r.Skipped++
	r.SkippedKeys = append(r.SkippedKeys, err.Key)
	r.Errors = append(r.Errors, err)
}
