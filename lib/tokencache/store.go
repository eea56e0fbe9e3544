package tokencache

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"postcard-creator/lib/chrono"
	"postcard-creator/lib/platforms/postcreator/auth"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

// tokens this close to expiry are treated as expired so that they do not
// run out in the middle of a submission
const expiryMargin = time.Minute

var ErrNotCached = errors.New("tokencache: no valid token cached")

// Store caches access tokens per username.
type Store struct {
	db    *sql.DB
	clock chrono.API
}

// Open opens (or creates) the sqlite database at `path` and applies the schema.
func Open(path string, clock chrono.API) (Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return Store{}, err
	}
	_, err = db.Exec(Schema)
	if err != nil {
		db.Close()
		return Store{}, fmt.Errorf("tokencache: apply schema: %w", err)
	}
	return Store{db: db, clock: clock}, nil
}

func (s Store) Close() error {
	return s.db.Close()
}

// Get returns the cached token of a user, ErrNotCached is returned if there
// is none or if it is about to expire.
func (s Store) Get(ctx context.Context, username string) (auth.Token, error) {
	row := s.db.QueryRowContext(
		ctx,
		"select token, token_type, expires_in, fetched_at from access_token where username = ?",
		username,
	)

	var token auth.Token
	var fetchedAt int64
	err := row.Scan(&token.AccessToken, &token.TokenType, &token.ExpiresIn, &fetchedAt)
	if err == sql.ErrNoRows {
		return auth.Token{}, ErrNotCached
	}
	if err != nil {
		return auth.Token{}, err
	}
	token.FetchedAt = time.UnixMilli(fetchedAt).In(s.clock.Location())

	if token.Expired(s.clock.Now().Add(expiryMargin)) {
		return auth.Token{}, ErrNotCached
	}
	return token, nil
}

func (s Store) Put(ctx context.Context, username string, token auth.Token) error {
	_, err := s.db.ExecContext(
		ctx,
		`insert into access_token(username, token, token_type, expires_in, fetched_at)
		values (?, ?, ?, ?, ?)
		on conflict(username) do update set
			token = excluded.token,
			token_type = excluded.token_type,
			expires_in = excluded.expires_in,
			fetched_at = excluded.fetched_at`,
		username,
		token.AccessToken,
		token.TokenType,
		token.ExpiresIn,
		token.FetchedAt.UnixMilli(),
	)
	return err
}

func (s Store) Delete(ctx context.Context, username string) error {
	_, err := s.db.ExecContext(ctx, "delete from access_token where username = ?", username)
	return err
}
