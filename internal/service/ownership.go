package service

import (
	"context"

	"github.com/studysync/studysync-server/internal/apperror"
	"github.com/studysync/studysync-server/internal/model"
)

// authorizeOwner is the single "caller may mutate resource" predicate used
// for every owned resource type.
func authorizeOwner(resource model.Owned, callerID string) error {
	if resource.OwnerID() != callerID {
		return apperror.Forbidden("not authorized to modify this resource")
	}
	return nil
}

// explainMiss runs after an owned update or delete matched no row. It
// looks the resource up once: a missing row surfaces as not found (the
// repository already returns apperror.NotFound), and a row owned by
// someone else as forbidden. A nil result means the caller does own the
// row, so the statement's extra guard (if any) was what failed.
func explainMiss[T model.Owned](ctx context.Context, id, callerID string, get func(context.Context, string) (T, error)) error {
	resource, err := get(ctx, id)
	if err != nil {
		return err
	}
	return authorizeOwner(resource, callerID)
}
