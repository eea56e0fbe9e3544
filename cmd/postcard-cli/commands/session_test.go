package commands

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"postcard-creator/lib/chrono"
	"postcard-creator/lib/platforms/postcreator"
	"postcard-creator/lib/platforms/postcreator/auth"
	"postcard-creator/lib/platforms/postcreator/core"
	"postcard-creator/lib/telemetry"
	"postcard-creator/lib/tokencache"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// fakeService logs in with any credentials and only accepts the token it
// handed out.
type fakeService struct {
	mutex  sync.Mutex
	logins int
	calls  int
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	switch r.URL.Path {
	case "/idp":
		if r.Method == http.MethodPost {
			w.Write([]byte(`<input type="hidden" name="SAMLResponse" value="assertion"/>`))
		}
		return
	case "/token":
		f.logins++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token": "fresh", "token_type": "bearer", "expires_in": 3600}`))
		return
	}

	f.calls++
	if r.Header.Get("Authorization") != "Bearer fresh" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	w.Write([]byte(`{"userId": 7, "email": "alice@example.com"}`))
}

func newTestSession(t testing.TB, serverUrl string, now time.Time) *session {
	clock := chrono.FixedImpl{Time: now}
	store, err := tokencache.Open(":memory:", clock)
	require.NoError(t, err)

	s := &session{
		cfg: Config{Username: "alice", Password: "secret"},
		opts: postcreator.Options{
			Auth: auth.Options{
				IdentityProviderUrl: serverUrl + "/idp",
				TokenUrl:            serverUrl + "/token",
				Clock:               clock,
				Telemetry:           telemetry.SlogAPI{},
			},
			Core: core.Options{
				BaseUrl:   serverUrl + "/rest",
				RateLimit: rate.Inf,
				Clock:     clock,
				Telemetry: telemetry.SlogAPI{},
			},
		},
		cache: &store,
	}
	t.Cleanup(s.Close)
	return s
}

func TestSessionCachesToken(t *testing.T) {
	fake := &fakeService{}
	server := httptest.NewServer(fake)
	defer server.Close()

	now := time.Date(2024, 1, 2, 10, 30, 0, 0, time.UTC)
	s := newTestSession(t, server.URL, now)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		err := s.run(ctx, func(client *core.Client) error {
			user, err := client.GetCurrentUser(ctx)
			if err != nil {
				return err
			}
			require.Equal(t, "7", user.Id.String())
			return nil
		})
		require.NoError(t, err)
	}
	require.Equal(t, 1, fake.logins)
	require.Equal(t, 2, fake.calls)

	token, err := s.cache.Get(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "fresh", token.AccessToken)
}

func TestSessionRetriesRejectedCachedToken(t *testing.T) {
	fake := &fakeService{}
	server := httptest.NewServer(fake)
	defer server.Close()

	now := time.Date(2024, 1, 2, 10, 30, 0, 0, time.UTC)
	s := newTestSession(t, server.URL, now)
	ctx := context.Background()

	require.NoError(t, s.cache.Put(ctx, "alice", auth.Token{
		AccessToken: "revoked",
		TokenType:   "bearer",
		ExpiresIn:   3600,
		FetchedAt:   now,
	}))

	attempts := 0
	err := s.run(ctx, func(client *core.Client) error {
		attempts++
		_, err := client.GetCurrentUser(ctx)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
	require.Equal(t, 1, fake.logins)

	token, err := s.cache.Get(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "fresh", token.AccessToken)
}

func TestSessionDoesNotRetryFreshToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/idp":
			if r.Method == http.MethodPost {
				w.Write([]byte(`<input type="hidden" name="SAMLResponse" value="assertion"/>`))
			}
		case "/token":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token": "fresh", "token_type": "bearer", "expires_in": 3600}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer server.Close()

	s := newTestSession(t, server.URL, time.Date(2024, 1, 2, 10, 30, 0, 0, time.UTC))
	ctx := context.Background()

	attempts := 0
	err := s.run(ctx, func(client *core.Client) error {
		attempts++
		_, err := client.GetCurrentUser(ctx)
		return err
	})
	var reqErr *core.RequestFailedError
	require.ErrorAs(t, err, &reqErr)
	require.True(t, reqErr.Unauthorized())
	require.Equal(t, 1, attempts)
}

func TestSessionDoesNotRetryAfterDraftCreated(t *testing.T) {
	fake := &fakeService{}
	server := httptest.NewServer(fake)
	defer server.Close()

	now := time.Date(2024, 1, 2, 10, 30, 0, 0, time.UTC)
	s := newTestSession(t, server.URL, now)
	ctx := context.Background()

	require.NoError(t, s.cache.Put(ctx, "alice", auth.Token{
		AccessToken: "revoked",
		TokenType:   "bearer",
		ExpiresIn:   3600,
		FetchedAt:   now,
	}))

	attempts := 0
	err := s.run(ctx, func(client *core.Client) error {
		attempts++
		return &core.DraftLeftBehindError{
			MailingId: "4821",
			Step:      "upload asset",
			Err:       &core.RequestFailedError{StatusCode: http.StatusUnauthorized},
		}
	})

	var leftBehind *core.DraftLeftBehindError
	require.ErrorAs(t, err, &leftBehind)
	require.Equal(t, "4821", leftBehind.MailingId)
	require.Equal(t, 1, attempts)
	require.Equal(t, 0, fake.logins)

	_, err = s.cache.Get(ctx, "alice")
	require.ErrorIs(t, err, tokencache.ErrNotCached)
}
