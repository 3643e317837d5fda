package postgres

import (
	"context"
	"fmt"

	"github.com/kozaktomas/attendance-kiosk/internal/database"
)

// IdentityRepository stores enrolled identities.
type IdentityRepository struct {
	pool *Pool
}

func NewIdentityRepository(pool *Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// SaveIdentity inserts or overwrites the record keyed by name_uid.
func (r *IdentityRepository) SaveIdentity(ctx context.Context, identity database.Identity) error {
	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO identities (record_key, uid, name, remote_handle)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (record_key) DO UPDATE SET
			remote_handle = EXCLUDED.remote_handle,
			updated_at = NOW()
	`, identity.Key(), identity.UID, identity.Name, identity.RemoteHandle)
	if err != nil {
		return fmt.Errorf("save identity %s: %w", identity.Key(), err)
	}
	return nil
}

// ListIdentities returns every identity ordered by uid.
func (r *IdentityRepository) ListIdentities(ctx context.Context) ([]database.Identity, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT uid, name, remote_handle, created_at
		FROM identities
		ORDER BY uid, name
	`)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	var out []database.Identity
	for rows.Next() {
		var id database.Identity
		if err := rows.Scan(&id.UID, &id.Name, &id.RemoteHandle, &id.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return out, nil
}

var _ database.IdentityLedger = (*IdentityRepository)(nil)
