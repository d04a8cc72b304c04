package extract

import "errors"

// Errors returned by extraction. Check them with errors.Is():
//
//	if errors.Is(err, extract.ErrExtractionEmpty) {
//	    // nothing to save, not a failure
//	}
var (
	// ErrConfigurationMissing is returned when the project name cannot be
	// read from the project's settings file.
	ErrConfigurationMissing = errors.New("project configuration missing")

	// ErrExtractionEmpty is returned when the build tool listing contained
	// no facts for the configured namespace. The store is left untouched.
	ErrExtractionEmpty = errors.New("no dependencies found")

	// ErrBuildToolFailed is returned when the build tool could not be run
	// or exited with an error.
	ErrBuildToolFailed = errors.New("build tool failed")
)

// IsInformational returns true if the error describes an outcome that
// should be reported to the user without failing the run.
func IsInformational(err error) bool {
	return errors.Is(err, ErrExtractionEmpty)
}
