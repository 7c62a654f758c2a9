package emissions

// constError is an immutable error type for sentinel errors
type constError string

func (e constError) Error() string { return string(e) }

// Sentinel errors, compared with errors.Is
var (
	// ErrInvalidInput indicates a malformed or out-of-range argument
	ErrInvalidInput = constError("invalid input")

	// ErrMissingData indicates an empty or incomplete source list
	ErrMissingData = constError("missing emission data")

	// ErrModelUnavailable indicates the regression model could not be loaded or queried
	ErrModelUnavailable = constError("model unavailable")
)
