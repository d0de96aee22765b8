// Package errors contains helper functions and types to work with errors
// across the attestor services.
package errors

import (
	"errors"
	"net/http"
)

// Category defines error category
type Category int

const (
	// CategoryNoError means the operation completed without error.
	CategoryNoError Category = iota
	// CategoryDataError The client sent some invalid data in the request,
	// for example, missing or incorrect content in the payload or parameters.
	CategoryDataError
	// CategoryUnauthorized The client is not authorized to access the requested resource
	CategoryUnauthorized
	// CategoryResourceNotFound The requested resource (name, nym, binding) does not exist
	CategoryResourceNotFound
	// CategoryUnlockCancelled The interactive wallet unlock was cancelled by the user
	CategoryUnlockCancelled
	// CategoryWalletLocked The wallet was expected to be unlocked but is not
	CategoryWalletLocked
	// CategoryNotOwned The address involved is not valid or not owned by the wallet
	CategoryNotOwned
	// CategoryMalformedEntry A registry entry or persisted payload could not be parsed
	CategoryMalformedEntry
	// CategoryRegistryTransport The registry node call failed at the transport/protocol level
	CategoryRegistryTransport
	// CategoryGeneralError The service failed in an unexpected way
	CategoryGeneralError
)

func (c Category) String() string {
	switch c {
	case CategoryDataError:
		return "CategoryDataError"
	case CategoryUnauthorized:
		return "CategoryUnauthorized"
	case CategoryResourceNotFound:
		return "CategoryResourceNotFound"
	case CategoryUnlockCancelled:
		return "CategoryUnlockCancelled"
	case CategoryWalletLocked:
		return "CategoryWalletLocked"
	case CategoryNotOwned:
		return "CategoryNotOwned"
	case CategoryMalformedEntry:
		return "CategoryMalformedEntry"
	case CategoryRegistryTransport:
		return "CategoryRegistryTransport"
	default:
		return "CategoryGeneralError"
	}
}

// ServiceError is the typed error result used at operation boundaries. It
// carries the operation name and the binding it concerns so failures can be
// logged with context without escalating past the tick or call boundary.
type ServiceError struct {
	Category Category
	// Op is the operation that failed, e.g. "startRegistration".
	Op string
	// Binding is the registry name involved, if any.
	Binding string
	Message  string
	Err      error
}

// Error method to comply with error interface
func (err ServiceError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	return err.Message
}

// Unwrap returns the underlying error
func (err ServiceError) Unwrap() error {
	return err.Err
}

// Is implements the custom condition to check an error is equal to a service error
func (err ServiceError) Is(target error) bool {
	return err.Message == target.Error()
}

// Is checks that provided error is a ServiceError with desired Category
func Is(err error, cat Category) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.Category == cat {
		return true
	}
	return false
}

// GeneralError returns a general service error
func GeneralError(op string, err error) error {
	if err == nil {
		err = errors.New("internal server error")
	}
	return &ServiceError{
		Category: CategoryGeneralError,
		Op:       op,
		Message:  "Internal Server Error",
		Err:      err,
	}
}

// BadRequestError returns an error with category DataError
func BadRequestError(err error, message string) error {
	if err == nil {
		err = errors.New("bad request:" + message)
	}
	return &ServiceError{
		Category: CategoryDataError,
		Message:  message,
		Err:      err,
	}
}

// UnAuthorizedError returns an error with category CategoryUnauthorized
func UnAuthorizedError(err error, message string) error {
	if err == nil {
		err = errors.New("unauthorized")
	}
	return &ServiceError{
		Category: CategoryUnauthorized,
		Message:  message,
		Err:      err,
	}
}

// ResourceNotFoundError returns an error with category ResourceNotFound
func ResourceNotFoundError(err error, message string) error {
	if err == nil {
		err = errors.New("resource not found:" + message)
	}
	return &ServiceError{
		Category: CategoryResourceNotFound,
		Message:  message,
		Err:      err,
	}
}

// UnlockCancelledError marks an operation aborted by a user cancelling the
// wallet unlock prompt. Logged, never escalated.
func UnlockCancelledError(op string) error {
	return &ServiceError{
		Category: CategoryUnlockCancelled,
		Op:       op,
		Message:  "wallet unlock cancelled",
		Err:      errors.New("wallet unlock cancelled by user"),
	}
}

// RegistryError wraps a registry node failure with the operation and binding
// it interrupted.
func RegistryError(op, bindingName string, err error) error {
	return &ServiceError{
		Category: CategoryRegistryTransport,
		Op:       op,
		Binding:  bindingName,
		Message:  "registry operation failed",
		Err:      err,
	}
}

// MalformedEntryError marks an unparseable registry entry or persisted
// payload.
func MalformedEntryError(bindingName string, err error) error {
	return &ServiceError{
		Category: CategoryMalformedEntry,
		Binding:  bindingName,
		Message:  "malformed registry entry",
		Err:      err,
	}
}

// StatusCode returns the HTTP status code for the error category
func (err ServiceError) StatusCode() int {
	switch err.Category {
	case CategoryDataError:
		return http.StatusBadRequest
	case CategoryUnauthorized:
		return http.StatusUnauthorized
	case CategoryResourceNotFound:
		return http.StatusNotFound
	case CategoryUnlockCancelled:
		return http.StatusConflict
	case CategoryWalletLocked:
		return http.StatusConflict
	case CategoryNotOwned:
		return http.StatusUnprocessableEntity
	case CategoryMalformedEntry:
		return http.StatusUnprocessableEntity
	case CategoryRegistryTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
