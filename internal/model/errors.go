package model

import "fmt"

// MissingFieldError reports a required key absent from a raw snapshot record.
// Construction of the record view fails; there is no local recovery — the
// store client must not hand the model a malformed record.
type MissingFieldError struct {
	Source string // record kind: "drive" or "ha"
	Field  string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s snapshot record is missing required field %q", e.Source, e.Field)
}
