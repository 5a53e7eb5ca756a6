package entity

// DomainError represents a domain rule violation raised by an entity.
type DomainError struct {
	code    string
	message string
}

// NewDomainError creates a new domain error with a machine-readable code.
func NewDomainError(message, code string) *DomainError {
	return &DomainError{
		code:    code,
		message: message,
	}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	return e.message
}

// Code returns the machine-readable error code.
func (e *DomainError) Code() string {
	return e.code
}

// IsDomainErrorCode reports whether err is a DomainError carrying the given code.
func IsDomainErrorCode(err error, code string) bool {
	de, ok := err.(*DomainError)
	return ok && de.code == code
}
