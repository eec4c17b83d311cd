package fetch

// MalformedJSONError means the service returned a body that could not be parsed.
type MalformedJSONError struct {
	innerError error
}

func (e MalformedJSONError) Error() string {
	return e.innerError.Error()
}

func (e MalformedJSONError) Unwrap() error {
	return e.innerError
}
