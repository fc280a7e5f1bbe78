package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/caseflow/internal/types"
)

// Auth errors are mapped in the auth package interceptor.
var invalidArgument = []error{
	types.ErrSchemaTooLarge,
	types.ErrFormDataTooLarge,
	types.ErrUnsupportedFormat,
	types.ErrDuplicateField,
	types.ErrEmptyFieldID,
	types.ErrEmptyRuleID,
	types.ErrDuplicateRule,
	types.ErrUnknownExpression,
	types.ErrInvalidExpression,
	types.ErrInvalidPattern,
	types.ErrExpressionTooDeep,
	types.ErrTooManyListValues,
	types.ErrUnknownAction,
	types.ErrInvalidSchemaID,
	types.ErrEmptyWorkflowID,
	errBadRequest,
}

// errBadRequest marks request shape problems found by the handlers.
var errBadRequest = errors.New("bad request")

// statusCode maps a handler error to its gRPC code.
// Validation errors map to INVALID_ARGUMENT, missing schemas to NOT_FOUND,
// context timeouts to DEADLINE_EXCEEDED and anything else (database) to UNAVAILABLE.
func statusCode(err error) codes.Code {
	if s, ok := status.FromError(err); ok {
		return s.Code()
	}
	switch {
	case errors.Is(err, types.ErrSchemaNotFound):
		return codes.NotFound
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	}
	for _, target := range invalidArgument {
		if errors.Is(err, target) {
			return codes.InvalidArgument
		}
	}
	return codes.Unavailable
}

// toStatus converts err into a gRPC status error.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(statusCode(err), err.Error())
}
