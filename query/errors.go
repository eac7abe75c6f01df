package query

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"

	"github.com/ghettodevelopers/Supasoka-backend-sub002/core"
)

func queryDependencyError(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ClientErrorInternal)
}

func queryValidationError(field string, message string) error {
	return goerrors.NewValidation("query: validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ClientErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

func queryNotFoundError(message string) error {
	return goerrors.New(message, goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode("CLIENT_NOT_FOUND")
}
