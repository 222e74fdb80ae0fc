package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stacklok/poolsync/internal/auth"
	"github.com/stacklok/poolsync/internal/snapshot"
)

// UsersCollection holds one document per account, listing its pools
const UsersCollection = "users"

// UnknownPoolName is reported for pools whose record carries no name
const UnknownPoolName = "Unknown"

// Pool is one device record the account can see
type Pool struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ListPools returns the pools linked to the signed-in account, in the order
// the account record lists them. Pools whose document no longer exists are skipped.
func ListPools(ctx context.Context, store Store, client *auth.Client, poolsCollection string) ([]Pool, error) {
	if client.LocalID() == "" {
		return nil, errors.New("credential carries no account id")
	}

	user, err := store.Get(ctx, client, Ref{Collection: UsersCollection, ID: client.LocalID()})
	if err != nil {
		return nil, fmt.Errorf("failed to read account record: %w", err)
	}

	ids, _ := user.Get("pools").([]any)
	pools := make([]Pool, 0, len(ids))
	for _, raw := range ids {
		id, ok := raw.(string)
		if !ok || id == "" {
			continue
		}

		doc, err := store.Get(ctx, client, Ref{Collection: poolsCollection, ID: id})
		if errors.Is(err, ErrNotFound) {
			slog.Debug("Pool listed on account has no record", "pool_id", id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read pool %s: %w", id, err)
		}
		pools = append(pools, Pool{ID: id, Name: PoolName(doc)})
	}
	return pools, nil
}

// PoolName returns the display name of a pool record: the first entry of
// form.names, then form.name, then UnknownPoolName
func PoolName(doc *snapshot.Snapshot) string {
	if name, ok := doc.Get("form.names.0.name").(string); ok && name != "" {
		return name
	}
	if name, ok := doc.Get("form.name").(string); ok && name != "" {
		return name
	}
	return UnknownPoolName
}
