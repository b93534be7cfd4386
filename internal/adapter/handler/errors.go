package handler

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/rl1809/library-lending/internal/core/domain"
)

type errorMapping struct {
	target error
	kind   string
	status int
	code   codes.Code
}

// Order matters only for errors that match more than one sentinel, which
// the domain never produces.
var errorMappings = []errorMapping{
	{domain.ErrValidation, "validation", http.StatusBadRequest, codes.InvalidArgument},
	{domain.ErrNotFound, "not_found", http.StatusNotFound, codes.NotFound},
	{domain.ErrDuplicateKey, "duplicate_key", http.StatusConflict, codes.AlreadyExists},
	{domain.ErrReferentialConflict, "referential_conflict", http.StatusConflict, codes.FailedPrecondition},
	{domain.ErrAlreadyReturned, "already_returned", http.StatusConflict, codes.FailedPrecondition},
	{domain.ErrOutOfStock, "out_of_stock", http.StatusGone, codes.ResourceExhausted},
	{domain.ErrDuplicateRequest, "duplicate_request", http.StatusConflict, codes.AlreadyExists},
	{domain.ErrStorage, "storage", http.StatusServiceUnavailable, codes.Unavailable},
}

var internalError = errorMapping{kind: "internal", status: http.StatusInternalServerError, code: codes.Internal}

func mapError(err error) errorMapping {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m
		}
	}
	return internalError
}

// publicMessage hides store internals from clients.
func publicMessage(err error, m errorMapping) string {
	switch m.kind {
	case "storage":
		return "storage temporarily unavailable, retry the request"
	case "internal":
		return "internal error"
	}
	return err.Error()
}
