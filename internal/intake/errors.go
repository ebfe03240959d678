package intake

import "errors"

const (
	CodeMissingFile    = "missing_file"
	CodeFileTooLarge   = "file_too_large"
	CodeInvalidType    = "invalid_type"
	CodeInvalidPurpose = "invalid_purpose"
)

// ValidationError names the constraint an upload failed.
type ValidationError struct {
	Code    string
	Message string
	Details map[string]interface{}
}

func (e *ValidationError) Error() string {
	return e.Code + ": " + e.Message
}

func invalidPurpose(msg, got string) *ValidationError {
	return &ValidationError{Code: CodeInvalidPurpose, Message: msg, Details: map[string]interface{}{"got": got}}
}

// AsValidationError unwraps err into a *ValidationError when it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
