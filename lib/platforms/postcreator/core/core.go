package core

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"postcard-creator/lib/chrono"
	"postcard-creator/lib/platforms/postcreator/auth"
	"postcard-creator/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	BaseUrl = "https://postcardcreator.post.ch/rest/2.1"

	report_client_request        = "client.request"
	report_client_decode         = "client.decode"
	report_client_create_mailing = "client.create-mailing"
	report_client_submit         = "client.submit-free-postcard"
	report_client_submitted      = "client.submitted-postcards"

	defaultTimeout   = time.Minute
	defaultRateLimit = rate.Limit(2)
)

type Options struct {
	// BaseUrl defaults to the production api when empty.
	BaseUrl string
	Timeout time.Duration
	// RateLimit is the max requests per second, rate.Inf disables limiting.
	RateLimit rate.Limit

	Clock     chrono.API
	Telemetry telemetry.API
	// TraceOutput receives full dumps of every request when it is not nil.
	TraceOutput telemetry.InstrumentOutput
}

// Client is an authenticated client of the postcard creator rest api. It is
// not safe for concurrent use, a submission runs its requests one after another.
type Client struct {
	http  *resty.Client
	clock chrono.API
	tel   telemetry.API

	submitted int64
}

func NewClient(token auth.Token, opts Options) (*Client, error) {
	if token.AccessToken == "" {
		return nil, ErrMissingToken
	}
	if opts.BaseUrl == "" {
		opts.BaseUrl = BaseUrl
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RateLimit == 0 {
		opts.RateLimit = defaultRateLimit
	}
	if opts.Clock == nil {
		clock, err := chrono.NewStandardImpl()
		if err != nil {
			return nil, err
		}
		opts.Clock = clock
	}
	if opts.Telemetry == nil {
		opts.Telemetry = telemetry.SlogAPI{}
	}
	tel := telemetry.NewScopedAPI("postcreator_core", opts.Telemetry)

	httpClient := resty.New()
	httpClient.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	httpClient.SetTimeout(opts.Timeout)
	httpClient.SetHeader("User-Agent", auth.UserAgent)
	httpClient.SetAuthToken(token.AccessToken)

	// max burst >= 2 just means that no requests will be dropped
	rateLimiter := rate.NewLimiter(opts.RateLimit, 2)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, tel, opts.TraceOutput)

	return &Client{
		http:  httpClient,
		clock: opts.Clock,
		tel:   tel,
	}, nil
}

func isSuccess(status int) bool {
	return status == http.StatusOK ||
		status == http.StatusCreated ||
		status == http.StatusNoContent
}

// do executes a prepared request against an endpoint relative to the base url.
func (c *Client) do(ctx context.Context, req *resty.Request, method, endpoint string) (*resty.Response, error) {
	// the api expects a trailing slash on every endpoint
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	c.tel.ReportDebug("request", method, endpoint)

	res, err := req.
		SetContext(ctx).
		Execute(method, endpoint)
	if err != nil {
		c.tel.ReportBroken(
			report_client_request,
			fmt.Errorf("fetch: %w", err),
			method, endpoint,
		)
		return nil, fmt.Errorf("postcard creator: %s %s: %w", method, endpoint, err)
	}

	if !isSuccess(res.StatusCode()) {
		failed := &RequestFailedError{
			Method:     method,
			Endpoint:   res.Request.URL,
			StatusCode: res.StatusCode(),
			Body:       res.String(),
		}
		if failed.Unauthorized() {
			c.tel.ReportWarning(report_client_request, "access token rejected, it has likely expired", endpoint)
		} else {
			c.tel.ReportBroken(report_client_request, failed)
		}
		return nil, failed
	}
	return res, nil
}

// getJson decodes the response into `typed` and, when it is not nil, into `raw`.
func (c *Client) getJson(ctx context.Context, endpoint string, typed any, raw *map[string]any) error {
	res, err := c.do(ctx, c.http.R(), http.MethodGet, endpoint)
	if err != nil {
		return err
	}

	err = json.Unmarshal(res.Body(), typed)
	if err == nil && raw != nil {
		err = json.Unmarshal(res.Body(), raw)
	}
	if err != nil {
		c.tel.ReportBroken(
			report_client_decode,
			fmt.Errorf("unmarshal json: %w", err),
			endpoint,
		)
		return fmt.Errorf("postcard creator: decode %s: %w", endpoint, err)
	}
	return nil
}
