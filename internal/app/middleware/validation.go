package middleware

import (
	"context"
	"errors"

	"rentdesk/internal/app/commands"
	"rentdesk/internal/app/queries"
	"rentdesk/internal/domain/shared/apperr"
)

// Validator checks a command or query before its handler runs.
type Validator interface {
	Validate(ctx context.Context, message any) error
}

// Validation rejects invalid commands. Whatever the validator returns surfaces as an
// apperr validation error so the transport maps it to a client error.
func Validation(v Validator) CommandMiddleware {
	check := checker(v)
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := check(ctx, cmd); err != nil {
				return nil, err
			}
			return nextFn(ctx, cmd)
		})
	}
}

func QueryValidation(v Validator) QueryMiddleware {
	check := checker(v)
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := check(ctx, q); err != nil {
				return nil, err
			}
			return nextFn(ctx, q)
		})
	}
}

func checker(v Validator) func(ctx context.Context, message any) error {
	if v == nil {
		panic("middleware: validator required")
	}
	return func(ctx context.Context, message any) error {
		err := v.Validate(ctx, message)
		switch {
		case err == nil, errors.Is(err, apperr.ErrValidation):
			return err
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		}
		field := "request"
		if keyed, ok := message.(interface{ Key() string }); ok {
			field = keyed.Key()
		}
		return &apperr.ValidationError{Field: field, Message: err.Error()}
	}
}
