package classify

import "time"

// Result is the outcome of one classification: exactly one of Name and Err
// is set.
type Result struct {
	Name string
	Err  error

	// Model is the ID of the candidate that produced Name.
	Model string

	// Attempts is the number of candidates tried.
	Attempts int

	Duration time.Duration
}

// OK reports whether a name was produced.
func (r Result) OK() bool {
	return r.Err == nil && r.Name != ""
}

// ErrorMessage returns the human-readable failure text, or "" on success.
// The text is advisory and not stable across backend versions.
func (r Result) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
