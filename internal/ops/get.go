package ops

import (
	"context"

	"github.com/hpungsan/readlater/internal/auth"
	"github.com/hpungsan/readlater/internal/db"
	"github.com/hpungsan/readlater/internal/item"
)

// GetInput contains parameters for the Get operation.
type GetInput struct {
	ID string // required
}

// Get retrieves one of the caller's items with its full content.
func Get(ctx context.Context, env *Env, id auth.Identity, input GetInput) (*item.Item, error) {
	if err := requireUser(id); err != nil {
		return nil, err
	}
	itemID, err := requireID(input.ID)
	if err != nil {
		return nil, err
	}
	return db.GetItem(ctx, env.DB, id.UserID, itemID)
}
