// Package postcreator ties the identity provider login to the rest client.
package postcreator

import (
	"context"

	"postcard-creator/lib/platforms/postcreator/auth"
	"postcard-creator/lib/platforms/postcreator/core"
)

type Options struct {
	Auth auth.Options
	Core core.Options
}

// Login authenticates and returns a rest client using the fresh token, the
// token is returned as well so that callers can cache it.
func Login(ctx context.Context, username, password string, opts Options) (*core.Client, auth.Token, error) {
	authClient, err := auth.NewClient(opts.Auth)
	if err != nil {
		return nil, auth.Token{}, err
	}
	return LoginWith(ctx, authClient, username, password, opts.Core)
}

// LoginWith is Login with a caller provided Authenticator.
func LoginWith(ctx context.Context, authenticator auth.Authenticator, username, password string, opts core.Options) (*core.Client, auth.Token, error) {
	token, err := authenticator.Authenticate(ctx, username, password)
	if err != nil {
		return nil, auth.Token{}, err
	}
	client, err := core.NewClient(token, opts)
	if err != nil {
		return nil, auth.Token{}, err
	}
	return client, token, nil
}
