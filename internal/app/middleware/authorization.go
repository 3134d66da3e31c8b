package middleware

import (
	"context"
	"strings"

	"rentdesk/internal/app/commands"
	"rentdesk/internal/app/queries"
	"rentdesk/internal/domain/shared/apperr"
)

type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

// TenantScoped messages act on behalf of an organisation.
type TenantScoped interface {
	TenantID() string
}

// TenantAuthorizer rejects tenant-scoped messages that carry no organisation.
// Ownership of individual resources is checked by the handlers once loaded.
type TenantAuthorizer struct{}

func (TenantAuthorizer) Authorize(_ context.Context, message any) error {
	scoped, ok := message.(TenantScoped)
	if !ok {
		return nil
	}
	if strings.TrimSpace(scoped.TenantID()) == "" {
		return apperr.Forbidden("organisation", "")
	}
	return nil
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := a.Authorize(ctx, cmd); err != nil {
				return nil, err
			}
			return nextFn(ctx, cmd)
		})
	}
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := a.Authorize(ctx, q); err != nil {
				return nil, err
			}
			return nextFn(ctx, q)
		})
	}
}
