package core

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"postcard-creator/lib/chrono"
	"postcard-creator/lib/platforms/postcreator/auth"
	"postcard-creator/lib/postcard"
	"postcard-creator/lib/telemetry"
	"postcard-creator/lib/testutil"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const (
	testAccessToken = "abc123"
	testUserId      = "42"
	testMailingId   = "4821"
)

var (
	now       = time.Date(2024, 1, 2, 10, 30, 0, 0, time.UTC)
	testToken = auth.Token{AccessToken: testAccessToken, TokenType: "bearer", ExpiresIn: 3600, FetchedAt: now}
)

type capturedRequest struct {
	contentType string
	origin      string
	body        []byte
	form        map[string]string
	fileName    string
	fileType    string
	fileData    []byte
}

type fakeApi struct {
	t testing.TB

	mutex    sync.Mutex
	calls    []string
	requests map[string]capturedRequest

	quota    string
	location string
	// status overrides keyed by call, 0 means the default success status
	status map[string]int
}

func newFakeApi(t testing.TB) *fakeApi {
	return &fakeApi{
		t:        t,
		requests: map[string]capturedRequest{},
		quota:    `{"available": true, "next": null, "quota": 1}`,
		location: "https://postcardcreator.post.ch/rest/2.1/users/42/mailings/" + testMailingId,
		status:   map[string]int{},
	}
}

func (f *fakeApi) Calls() []string {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]string{}, f.calls...)
}

func (f *fakeApi) Request(call string) capturedRequest {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.requests[call]
}

func (f *fakeApi) capture(r *http.Request) capturedRequest {
	captured := capturedRequest{
		contentType: r.Header.Get("Content-Type"),
		origin:      r.Header.Get("Origin"),
	}
	if strings.HasPrefix(captured.contentType, "multipart/form-data") {
		err := r.ParseMultipartForm(1 << 20)
		require.NoError(f.t, err)
		captured.form = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			captured.form[k] = v[0]
		}
		file, header, err := r.FormFile("asset")
		require.NoError(f.t, err)
		defer file.Close()
		captured.fileName = header.Filename
		captured.fileType = header.Header.Get("Content-Type")
		captured.fileData, err = io.ReadAll(file)
		require.NoError(f.t, err)
		return captured
	}
	body, err := io.ReadAll(r.Body)
	require.NoError(f.t, err)
	captured.body = body
	return captured
}

func (f *fakeApi) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+testAccessToken {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "invalid_token"}`))
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/rest/2.1")
	require.True(f.t, strings.HasSuffix(path, "/"), "missing trailing slash: %s", path)
	call := r.Method + " " + strings.TrimSuffix(path, "/")
	captured := f.capture(r)

	f.mutex.Lock()
	f.calls = append(f.calls, call)
	f.requests[call] = captured
	status := f.status[call]
	f.mutex.Unlock()

	respond := func(defaultStatus int, body string) {
		if status == 0 {
			status = defaultStatus
		}
		if body != "" {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}

	mailing := "/users/" + testUserId + "/mailings/" + testMailingId
	switch call {
	case "GET /users/current":
		respond(http.StatusOK, `{"userId": 42, "email": "alice@example.ch"}`)
	case "GET /users/42/quota":
		respond(http.StatusOK, f.quota)
	case "GET /users/42/billingOnlineAccountSaldo":
		respond(http.StatusOK, `{"saldo": 12.5, "currency": "CHF"}`)
	case "POST /users/42/mailings":
		if f.location != "" {
			w.Header().Set("Location", f.location)
		}
		respond(http.StatusCreated, "")
	case "POST /users/42/assets":
		respond(http.StatusCreated, `{"assetId": 7}`)
	case "PUT " + mailing + "/recipients",
		"PUT " + mailing + "/pages/1",
		"PUT " + mailing + "/pages/2":
		respond(http.StatusNoContent, "")
	case "POST " + mailing + "/order":
		respond(http.StatusOK, `{}`)
	default:
		f.t.Errorf("unexpected request %s", call)
		w.WriteHeader(http.StatusNotFound)
	}
}

func setup(t testing.TB, token auth.Token) (*fakeApi, *Client) {
	api := newFakeApi(t)
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	client, err := NewClient(token, Options{
		BaseUrl:   server.URL + "/rest/2.1",
		RateLimit: rate.Inf,
		Clock:     chrono.FixedImpl{Time: now},
		Telemetry: telemetry.SlogAPI{},
	})
	require.NoError(t, err)
	return api, client
}

func TestNewClientMissingToken(t *testing.T) {
	_, err := NewClient(auth.Token{}, Options{})
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestAccountQueries(t *testing.T) {
	api, client := setup(t, testToken)
	ctx := context.Background()

	user, err := client.GetCurrentUser(ctx)
	require.NoError(t, err)
	require.Equal(t, testUserId, user.Id.String())
	require.Equal(t, "alice@example.ch", user.Fields["email"])

	quota, err := client.GetQuota(ctx)
	require.NoError(t, err)
	require.True(t, quota.Available)

	available, err := client.HasFreePostcardAvailable(ctx)
	require.NoError(t, err)
	require.True(t, available)

	balance, err := client.GetBillingBalance(ctx)
	require.NoError(t, err)
	require.Equal(t, "CHF", balance["currency"])

	require.Equal(t, []string{
		"GET /users/current",
		"GET /users/current",
		"GET /users/42/quota",
		"GET /users/current",
		"GET /users/42/quota",
		"GET /users/current",
		"GET /users/42/billingOnlineAccountSaldo",
	}, api.Calls())
}

func TestNoFreePostcardAvailable(t *testing.T) {
	api, client := setup(t, testToken)
	api.quota = `{"available": false, "next": "2024-01-02T00:00"}`

	available, err := client.HasFreePostcardAvailable(context.Background())
	require.NoError(t, err)
	require.False(t, available)
}

func TestSubmitFreePostcard(t *testing.T) {
	api, client := setup(t, testToken)
	card := testutil.ValidPostcard(t)

	mailingId, err := client.SubmitFreePostcard(context.Background(), card)
	require.NoError(t, err)
	require.Equal(t, testMailingId, mailingId)

	mailing := "/users/42/mailings/" + testMailingId
	require.Equal(t, []string{
		"GET /users/current",
		"GET /users/42/quota",
		"POST /users/42/mailings",
		"POST /users/42/assets",
		"PUT " + mailing + "/recipients",
		"PUT " + mailing + "/pages/1",
		"PUT " + mailing + "/pages/2",
		"POST " + mailing + "/order",
	}, api.Calls())

	var created createMailingRequest
	require.NoError(t, json.Unmarshal(api.Request("POST /users/42/mailings").body, &created))
	require.Equal(t, createMailingRequest{
		Name:          "Mobile App Mailing 2024-01-02 10:30",
		AddressFormat: "PERSON_FIRST",
		Paid:          false,
	}, created)

	asset := api.Request("POST /users/42/assets")
	require.Equal(t, "file://", asset.origin)
	require.Equal(t, map[string]string{"title": "Title of image"}, asset.form)
	require.Equal(t, "asset.png", asset.fileName)
	require.Equal(t, "image/png", asset.fileType)
	require.Equal(t, testutil.PngPicture, asset.fileData)

	var recipients postcard.RecipientsPayload
	require.NoError(t, json.Unmarshal(api.Request("PUT "+mailing+"/recipients").body, &recipients))
	if diff := cmp.Diff(card.Recipient.WireFormat(), recipients); diff != "" {
		t.Fatalf("recipients payload mismatch (-want +got):\n%s", diff)
	}

	for page := 1; page <= 2; page++ {
		req := api.Request("PUT " + mailing + "/pages/" + strconv.Itoa(page))
		require.Equal(t, "image/svg+xml", req.contentType)
		require.Equal(t, "file://", req.origin)

		expected, err := card.RenderPage(page, postcard.PageContext{UserId: testUserId})
		require.NoError(t, err)
		require.Equal(t, expected, string(req.body))
	}
	require.Contains(t, string(api.Request("PUT "+mailing+"/pages/2").body), "Marktgasse 5")

	order := api.Request("POST " + mailing + "/order")
	require.JSONEq(t, `{}`, string(order.body))
}

func TestSubmitFreePostcardQuotaExceeded(t *testing.T) {
	api, client := setup(t, testToken)
	api.quota = `{"available": false, "next": "2024-01-02T00:00"}`

	_, err := client.SubmitFreePostcard(context.Background(), testutil.ValidPostcard(t))

	var quotaErr *QuotaExceededError
	require.ErrorAs(t, err, &quotaErr)
	require.Equal(t, "2024-01-02T00:00", quotaErr.Next)
	require.NotContains(t, api.Calls(), "POST /users/42/mailings")
}

func TestSubmitFreePostcardInvalid(t *testing.T) {
	api, client := setup(t, testToken)
	card := testutil.ValidPostcard(t)
	card.Recipient.Place = ""

	_, err := client.SubmitFreePostcard(context.Background(), card)

	var validationErr *postcard.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "recipient", validationErr.Party)
	require.Equal(t, []string{"place"}, validationErr.Missing)
	require.Empty(t, api.Calls())
}

func TestSubmitFreePostcardMissingPicture(t *testing.T) {
	api, client := setup(t, testToken)
	card := testutil.ValidPostcard(t)
	card.ImageLocation = filepath.Join(t.TempDir(), "missing.jpg")

	_, err := client.SubmitFreePostcard(context.Background(), card)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Empty(t, api.Calls())
}

func TestSubmitFreePostcardAbortsOnFailure(t *testing.T) {
	mailing := "/users/42/mailings/" + testMailingId
	steps := []string{
		"POST /users/42/mailings",
		"POST /users/42/assets",
		"PUT " + mailing + "/recipients",
		"PUT " + mailing + "/pages/1",
		"PUT " + mailing + "/pages/2",
		"POST " + mailing + "/order",
	}

	for i, failing := range steps {
		t.Run(failing, func(t *testing.T) {
			api, client := setup(t, testToken)
			api.status[failing] = http.StatusInternalServerError

			mailingId, err := client.SubmitFreePostcard(context.Background(), testutil.ValidPostcard(t))

			var failed *RequestFailedError
			require.ErrorAs(t, err, &failed)
			require.Equal(t, http.StatusInternalServerError, failed.StatusCode)
			require.Contains(t, failed.Endpoint, strings.SplitN(failing, " ", 2)[1])
			require.False(t, failed.Unauthorized())

			var leftBehind *DraftLeftBehindError
			if i == 0 {
				require.False(t, errors.As(err, &leftBehind))
				require.Empty(t, mailingId)
			} else {
				require.ErrorAs(t, err, &leftBehind)
				require.Equal(t, testMailingId, leftBehind.MailingId)
				require.NotEmpty(t, leftBehind.Step)
				require.Equal(t, testMailingId, mailingId)
			}

			calls := api.Calls()
			require.Equal(t, failing, calls[len(calls)-1])
			for _, skipped := range steps[i+1:] {
				require.NotContains(t, calls, skipped)
			}
		})
	}
}

func TestSubmitFreePostcardMissingLocation(t *testing.T) {
	api, client := setup(t, testToken)
	api.location = ""

	_, err := client.SubmitFreePostcard(context.Background(), testutil.ValidPostcard(t))
	require.ErrorIs(t, err, ErrMissingMailingId)
	require.NotContains(t, api.Calls(), "POST /users/42/assets")
}

func TestExpiredToken(t *testing.T) {
	_, client := setup(t, auth.Token{AccessToken: "expired"})

	_, err := client.GetCurrentUser(context.Background())

	var failed *RequestFailedError
	require.ErrorAs(t, err, &failed)
	require.True(t, failed.Unauthorized())
	require.Contains(t, failed.Body, "invalid_token")
}

func TestMailingIdFromLocation(t *testing.T) {
	testCases := []struct {
		location string
		id       string
		ok       bool
	}{
		{"https://postcardcreator.post.ch/rest/2.1/users/42/mailings/4821", "4821", true},
		{"/rest/2.1/users/42/mailings/4821/", "4821", true},
		{"/users/42/mailings/4821?draft=true", "4821", true},
		{"/users/42/mailings/", "", false},
		{"/users/42/assets/7", "", false},
		{"", "", false},
	}

	for _, test := range testCases {
		id, ok := mailingIdFromLocation(test.location)
		require.Equal(t, test.ok, ok, test.location)
		require.Equal(t, test.id, id, test.location)
	}
}
