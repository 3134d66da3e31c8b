package middleware

import (
	"context"
	"errors"
	"log/slog"

	"rentdesk/internal/app/commands"
	"rentdesk/internal/app/policies"
	"rentdesk/internal/domain/shared/apperr"
)

// LockScope names what a command touches. Any one field is enough to find the property.
type LockScope struct {
	PropertyID string
	BookingID  string
	PaymentID  string
}

// PropertyScoped commands mutate bookings of a single property.
type PropertyScoped interface {
	LockScope() LockScope
}

type PropertyResolver interface {
	ResolveProperty(ctx context.Context, scope LockScope) (string, error)
}

// PropertyLock holds a per-property lock for the whole transaction so that the
// availability check and the write it guards cannot interleave with another writer.
// It must sit outside Transaction.
func PropertyLock(locker policies.Locker, resolver PropertyResolver, logger *slog.Logger) CommandMiddleware {
	if locker == nil {
		panic("middleware: locker required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			scoped, ok := cmd.(PropertyScoped)
			if !ok {
				return nextFn(ctx, cmd)
			}
			scope := scoped.LockScope()
			propertyID := scope.PropertyID
			if propertyID == "" && resolver != nil {
				resolved, err := resolver.ResolveProperty(ctx, scope)
				switch {
				case errors.Is(err, apperr.ErrNotFound):
					// the handler reports the missing resource
					return nextFn(ctx, cmd)
				case err != nil:
					return nil, err
				}
				propertyID = resolved
			}
			if propertyID == "" {
				return nextFn(ctx, cmd)
			}
			release, err := locker.Acquire(ctx, "property:"+propertyID)
			if err != nil {
				return nil, err
			}
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					logger.Warn("property lock release failed", "property_id", propertyID, "err", err)
				}
			}()
			return nextFn(ctx, cmd)
		})
	}
}
