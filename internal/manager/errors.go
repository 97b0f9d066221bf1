package manager

import "fmt"

// tooBusyError signals queue timeout/overflow or a draining model (429).
type tooBusyError struct {
	language string
	draining bool
}

func (e tooBusyError) Error() string {
	if e.draining {
		return "model unloading: " + e.language
	}
	return "too busy: " + e.language
}

// ErrTooBusy returns a backpressure error for language.
func ErrTooBusy(language string) error { return tooBusyError{language: language} }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	_, ok := asTooBusy(err)
	return ok
}

func asTooBusy(err error) (tooBusyError, bool) {
	e, ok := err.(tooBusyError)
	return e, ok
}

func isDraining(err error) bool {
	e, ok := asTooBusy(err)
	return ok && e.draining
}

// modelNotFoundError reports a language with no resident instance.
type modelNotFoundError struct{ language string }

func (e modelNotFoundError) Error() string { return "model not loaded: " + e.language }

// ErrModelNotFound returns an error for a language that is not resident.
func ErrModelNotFound(language string) error { return modelNotFoundError{language: language} }

// IsModelNotFound reports whether the error indicates a missing instance.
func IsModelNotFound(err error) bool {
	_, ok := err.(modelNotFoundError)
	return ok
}

// configError reports an unknown language or an unusable model config.
type configError struct{ msg string }

func (e configError) Error() string { return e.msg }

// ErrUnsupportedLanguage returns the error for a language with no model config.
func ErrUnsupportedLanguage(language string) error {
	return configError{msg: fmt.Sprintf("unsupported language %q", language)}
}

// IsConfiguration reports whether err is a configuration problem (400).
func IsConfiguration(err error) bool {
	_, ok := err.(configError)
	return ok
}

// invalidRequestError wraps request validation failures (400).
type invalidRequestError struct{ err error }

func (e invalidRequestError) Error() string { return "invalid request: " + e.err.Error() }
func (e invalidRequestError) Unwrap() error { return e.err }

// IsInvalidRequest reports whether err is a request validation failure.
func IsInvalidRequest(err error) bool {
	_, ok := err.(invalidRequestError)
	return ok
}

// loadError is returned once every quantization rung has failed.
type loadError struct {
	language string
	err      error
}

func (e loadError) Error() string {
	return fmt.Sprintf("load %s: all quantization strategies failed: %v", e.language, e.err)
}
func (e loadError) Unwrap() error { return e.err }

// IsLoadFailed reports whether err is a fatal load failure.
func IsLoadFailed(err error) bool {
	_, ok := err.(loadError)
	return ok
}

// generationError is returned when both the primary and the fallback
// generation failed.
type generationError struct {
	language string
	primary  error
	fallback error
}

func (e generationError) Error() string {
	return fmt.Sprintf("generate %s: primary: %v; fallback: %v", e.language, e.primary, e.fallback)
}
func (e generationError) Unwrap() []error { return []error{e.primary, e.fallback} }

// IsGeneration reports whether err is a fatal generation failure.
func IsGeneration(err error) bool {
	_, ok := err.(generationError)
	return ok
}

// dependencyUnavailableError signals a missing inference runtime so the HTTP
// layer can return 503 Service Unavailable instead of 500.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing runtime dependency.
func IsDependencyUnavailable(err error) bool {
	_, ok := err.(dependencyUnavailableError)
	return ok
}
