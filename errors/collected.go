package errors

// Collected indicates a weak reference's target was reclaimed by the
// embedded garbage collector. Resolution APIs report this as an
// explicit empty result; this error exists for the run-with-value
// helpers that cannot proceed without a live target.
func Collected(what string) *Error {
	return &Error{
		Stage:  StageReference,
		Kind:   KindCollected,
		Detail: what + " target was collected",
		Pos:    -1,
	}
}
