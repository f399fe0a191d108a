package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	Extraction   Kind = "extraction"
	Validation   Kind = "validation"
	Persistence  Kind = "persistence"
	Invalid      Kind = "invalid"
	NotFound     Kind = "not_found"
	Unauthorized Kind = "unauthorized"
	Internal     Kind = "internal"
)

const defaultPublicMsg = "Внутренняя ошибка. Попробуй еще раз."

type AppError struct {
	Kind      Kind
	PublicMsg string // short message safe to show to the operator
	Err       error  // internal cause, logged only
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *AppError) Unwrap() error { return e.Err }

func ExtractionErr(publicMsg string, err error) *AppError {
	return &AppError{Kind: Extraction, PublicMsg: publicMsg, Err: err}
}
func ValidationErr(publicMsg string) *AppError {
	return &AppError{Kind: Validation, PublicMsg: publicMsg}
}
func PersistenceErr(publicMsg string, err error) *AppError {
	return &AppError{Kind: Persistence, PublicMsg: publicMsg, Err: err}
}
func InvalidErr(publicMsg string) *AppError {
	return &AppError{Kind: Invalid, PublicMsg: publicMsg}
}
func NotFoundErr(publicMsg string) *AppError {
	return &AppError{Kind: NotFound, PublicMsg: publicMsg}
}

// Wrap hides an internal error behind the default public message.
func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Kind: Internal, PublicMsg: defaultPublicMsg, Err: err}
}

func As(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func HTTPStatus(err error) int {
	if ae, ok := As(err); ok {
		switch ae.Kind {
		case Invalid:
			return http.StatusBadRequest
		case Validation:
			return http.StatusUnprocessableEntity
		case Extraction:
			return http.StatusBadGateway
		case Unauthorized:
			return http.StatusUnauthorized
		case NotFound:
			return http.StatusNotFound
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}

func PublicMessage(err error) string {
	if ae, ok := As(err); ok && ae.PublicMsg != "" {
		return ae.PublicMsg
	}
	return defaultPublicMsg
}
