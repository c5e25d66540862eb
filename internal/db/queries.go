package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Queries is the hand-written query layer over the bridge schema.
type Queries struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

// GetCallbackURL returns the registered callback URL for a bot.
// A missing row surfaces as pgx.ErrNoRows.
func (q *Queries) GetCallbackURL(ctx context.Context, botUsername string) (string, error) {
	var callbackURL string
	err := q.pool.QueryRow(ctx,
		`SELECT callback_url FROM callback_registrations WHERE bot_username = $1`,
		botUsername,
	).Scan(&callbackURL)
	if err != nil {
		return "", err
	}
	return callbackURL, nil
}

func (q *Queries) UpsertCallback(ctx context.Context, botUsername, callbackURL string) error {
	_, err := q.pool.Exec(ctx,
		`INSERT INTO callback_registrations (bot_username, callback_url)
		 VALUES ($1, $2)
		 ON CONFLICT (bot_username)
		 DO UPDATE SET callback_url = EXCLUDED.callback_url, updated_at = now()`,
		botUsername, callbackURL,
	)
	return err
}

func (q *Queries) DeleteCallback(ctx context.Context, botUsername string) error {
	_, err := q.pool.Exec(ctx,
		`DELETE FROM callback_registrations WHERE bot_username = $1`,
		botUsername,
	)
	return err
}
