package commands

import (
	"context"
	"errors"
	"log/slog"

	"postcard-creator/lib/chrono"
	"postcard-creator/lib/platforms/postcreator"
	"postcard-creator/lib/platforms/postcreator/auth"
	"postcard-creator/lib/platforms/postcreator/core"
	"postcard-creator/lib/telemetry"
	"postcard-creator/lib/tokencache"
)

// session hands out authenticated clients, reusing cached tokens when a
// token cache is configured.
type session struct {
	cfg   Config
	opts  postcreator.Options
	cache *tokencache.Store
}

func openSession(cfg Config, cachePath, traceDir string) (*session, error) {
	clock, err := chrono.NewStandardImpl()
	if err != nil {
		return nil, err
	}

	tel := telemetry.SlogAPI{}
	s := &session{
		cfg: cfg,
		opts: postcreator.Options{
			Auth: auth.Options{
				CloudflareBypass: cfg.CloudflareBypass,
				Clock:            clock,
				Telemetry:        tel,
			},
			Core: core.Options{
				Clock:     clock,
				Telemetry: tel,
			},
		},
	}

	if traceDir != "" {
		out, err := telemetry.NewFilesystemOutput(traceDir, "")
		if err != nil {
			return nil, err
		}
		s.opts.Auth.TraceOutput = out.WithPrefix("auth")
		s.opts.Core.TraceOutput = out.WithPrefix("rest")
	}

	if cachePath != "" {
		store, err := tokencache.Open(cachePath, clock)
		if err != nil {
			return nil, err
		}
		s.cache = &store
	}
	return s, nil
}

func (s *session) Close() {
	if s.cache != nil {
		s.cache.Close()
	}
}

// client returns a rest client, cached is true when the token came from
// the cache instead of a fresh login.
func (s *session) client(ctx context.Context, fresh bool) (client *core.Client, cached bool, err error) {
	if s.cache != nil && !fresh {
		token, err := s.cache.Get(ctx, s.cfg.Username)
		if err == nil {
			slog.Debug("using cached access token", "username", s.cfg.Username, "expires_at", token.ExpiresAt())
			client, err := core.NewClient(token, s.opts.Core)
			return client, true, err
		}
		if !errors.Is(err, tokencache.ErrNotCached) {
			slog.Warn("failed to read token cache", "err", err)
		}
	}

	client, token, err := postcreator.Login(ctx, s.cfg.Username, s.cfg.Password, s.opts)
	if err != nil {
		return nil, false, err
	}
	if s.cache != nil {
		err = s.cache.Put(ctx, s.cfg.Username, token)
		if err != nil {
			slog.Warn("failed to cache access token", "err", err)
		}
	}
	return client, false, nil
}

// run calls fn with an authenticated client. When a cached token is
// rejected the entry is dropped and fn is retried once after a fresh login,
// unless fn already left a draft mailing on the server.
func (s *session) run(ctx context.Context, fn func(client *core.Client) error) error {
	client, cached, err := s.client(ctx, false)
	if err != nil {
		return err
	}
	err = fn(client)

	var reqErr *core.RequestFailedError
	if !cached || !errors.As(err, &reqErr) || !reqErr.Unauthorized() {
		return err
	}

	delErr := s.cache.Delete(ctx, s.cfg.Username)
	if delErr != nil {
		slog.Warn("failed to drop cached access token", "err", delErr)
	}

	var leftBehind *core.DraftLeftBehindError
	if errors.As(err, &leftBehind) {
		slog.Warn(
			"cached access token was rejected mid submission, not retrying",
			"mailing_id", leftBehind.MailingId,
		)
		return err
	}

	slog.Info("cached access token was rejected, logging in again", "username", s.cfg.Username)
	client, _, err = s.client(ctx, true)
	if err != nil {
		return err
	}
	return fn(client)
}
