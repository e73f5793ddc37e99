package selection

import "strings"

// Snapshot is an immutable description of the passage the reader currently
// has highlighted. It is owned by the reading surface and never persisted;
// the core only ever reads the latest value.
type Snapshot struct {
	Text           string
	SourceLocation string
}

// Empty reports whether the snapshot carries no usable passage. Whitespace
// counts as empty: such a selection is treated as absent for seeding and
// never as a distinct selection value.
func (s Snapshot) Empty() bool {
	return strings.TrimSpace(s.Text) == ""
}
