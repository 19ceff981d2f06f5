// internal/core/api/errors.go
package api

import (
	"context"
	"errors"

	"github.com/solatis/quill/internal/core/db"
	"github.com/solatis/quill/internal/rulefile"
	"github.com/solatis/quill/internal/rules"
	"github.com/solatis/quill/internal/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Auth errors are mapped by the auth interceptor.
// Validation errors map to INVALID_ARGUMENT.
// Missing rules map to FAILED_PRECONDITION.
// Context timeouts map to DEADLINE_EXCEEDED.
// Tree invariant violations map to INTERNAL.

var invalidArgument = []error{
	types.ErrInvalidRequest,
	types.ErrQueryTooLong,
	types.ErrUnknownStrategy,
	types.ErrInvalidCriteria,
	types.ErrInvalidExpression,
	types.ErrPathTooDeep,
	types.ErrTooManyWildcards,
	types.ErrTooManyInValues,
}

func toStatus(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, types.ErrNoRules):
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	for _, target := range invalidArgument {
		if errors.Is(err, target) {
			return status.Error(codes.InvalidArgument, err.Error())
		}
	}
	return status.Error(codes.Internal, err.Error())
}

// reloadStatus maps rule source failures: broken rules are the caller's to
// fix, an unreachable source is transient.
func reloadStatus(err error) error {
	var (
		ruleErr  *rules.RuleError
		parseErr *rulefile.ParseError
	)
	switch {
	case errors.Is(err, db.ErrRuleSetNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.As(err, &ruleErr), errors.As(err, &parseErr):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return toStatus(err)
	default:
		return status.Error(codes.Unavailable, err.Error())
	}
}
