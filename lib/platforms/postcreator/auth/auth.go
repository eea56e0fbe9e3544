package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/cookiejar"
	"time"

	"postcard-creator/lib/chrono"
	"postcard-creator/lib/htmlutil"
	"postcard-creator/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

const (
	report_client_login          = "client.login"
	report_client_token_exchange = "client.token-exchange"
)

const (
	IdentityProviderUrl = "https://account.post.ch/SAML/IdentityProvider/"
	LoginQuery          = "login&app=pcc&service=pcc&targetURL=https%3A%2F%2Fpostcardcreator.post.ch&abortURL=https%3A%2F%2Fpostcardcreator.post.ch&inMobileApp=true"
	TokenUrl            = "https://postcardcreator.post.ch/saml/SSO/alias/defaultAlias"
	RelayState          = "https://postcardcreator.post.ch?inMobileApp=true&inIframe=false&lang=en"

	// UserAgent is the user agent of the android app, the identity provider
	// serves a different login flow to desktop browsers.
	UserAgent = "Mozilla/5.0 (Linux; Android 6.0.1; LG-D855 Build/M4B30X; wv) AppleWebKit/537.36 (KHTML, like Gecko) Version/4.0 Chrome/52.0.2743.98 Mobile Safari/537.36"

	origin              = "https://account.post.ch"
	samlResponseField   = "SAMLResponse"
	defaultLoginTimeout = time.Second * 30
)

var (
	ErrMissingCredentials = errors.New("postcard creator: no username/password given")
	ErrInvalidCredentials = errors.New("postcard creator: wrong user credentials")
	ErrProtocolChanged    = errors.New("postcard creator: the login page no longer contains a SAMLResponse, the identity provider very likely changed")
)

// Authenticator exchanges a username and password for an access token.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (Token, error)
}

type Options struct {
	// the following urls default to the production endpoints when empty
	IdentityProviderUrl string
	LoginQuery          string
	TokenUrl            string
	RelayState          string

	Timeout time.Duration
	// CloudflareBypass wraps the transport so requests look like they
	// come from a regular browser.
	CloudflareBypass bool

	Clock     chrono.API
	Telemetry telemetry.API
	// TraceOutput receives full dumps of every request when it is not nil.
	TraceOutput telemetry.InstrumentOutput
}

// Client logs into the identity provider, every call to Authenticate uses a new session.
type Client struct {
	opts Options
	tel  telemetry.API
}

func NewClient(opts Options) (*Client, error) {
	if opts.IdentityProviderUrl == "" {
		opts.IdentityProviderUrl = IdentityProviderUrl
	}
	if opts.LoginQuery == "" {
		opts.LoginQuery = LoginQuery
	}
	if opts.TokenUrl == "" {
		opts.TokenUrl = TokenUrl
	}
	if opts.RelayState == "" {
		opts.RelayState = RelayState
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaultLoginTimeout
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

	return &Client{
		opts: opts,
		tel:  telemetry.NewScopedAPI("postcreator_auth", opts.Telemetry),
	}, nil
}

func (c *Client) newSession() (*resty.Client, error) {
	session := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	session.SetCookieJar(jar)
	if c.opts.CloudflareBypass {
		session.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(session.GetClient().Transport)
	}
	session.SetTimeout(c.opts.Timeout)
	session.SetHeader("User-Agent", UserAgent)
	session.SetHeader("Origin", origin)

	telemetry.InstrumentResty(session, c.tel, c.opts.TraceOutput)
	return session, nil
}

// Authenticate runs the three identity provider rounds and exchanges the
// resulting SAML assertion for an access token. Any failure aborts the whole
// exchange, there are no retries.
func (c *Client) Authenticate(ctx context.Context, username, password string) (Token, error) {
	if username == "" || password == "" {
		return Token{}, ErrMissingCredentials
	}

	session, err := c.newSession()
	if err != nil {
		c.tel.ReportBroken(report_client_login, fmt.Errorf("new session: %w", err))
		return Token{}, err
	}

	samlResponse, err := c.login(ctx, session, username, password)
	if err != nil {
		return Token{}, err
	}
	return c.exchange(ctx, session, samlResponse)
}

func (c *Client) login(ctx context.Context, session *resty.Client, username, password string) (string, error) {
	loginUrl := fmt.Sprintf("%s?%s", c.opts.IdentityProviderUrl, c.opts.LoginQuery)

	checkRound := func(round int, res *resty.Response, err error) error {
		if err != nil {
			c.tel.ReportBroken(
				report_client_login,
				fmt.Errorf("round %d: %w", round, err),
			)
			return fmt.Errorf("postcard creator: login round %d: %w", round, err)
		}
		if !res.IsSuccess() {
			c.tel.ReportWarning(
				report_client_login,
				fmt.Errorf("round %d: unexpected status", round),
				res.StatusCode(),
			)
			return fmt.Errorf("%w: login round %d returned status %d", ErrInvalidCredentials, round, res.StatusCode())
		}
		return nil
	}

	c.tel.ReportDebug("login round 1: load login page")
	res, err := session.R().
		SetContext(ctx).
		Get(loginUrl)
	err = checkRound(1, res, err)
	if err != nil {
		return "", err
	}

	c.tel.ReportDebug("login round 2: submit credentials")
	res, err = session.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"isiwebuserid": username,
			"isiwebpasswd": password,
			"confirmLogin": "",
		}).
		Post(loginUrl)
	err = checkRound(2, res, err)
	if err != nil {
		return "", err
	}

	c.tel.ReportDebug("login round 3: confirm login")
	res, err = session.R().
		SetContext(ctx).
		Post(loginUrl)
	err = checkRound(3, res, err)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		c.tel.ReportBroken(
			report_client_login,
			fmt.Errorf("parse confirmation page: %w", err),
		)
		return "", fmt.Errorf("%w: %w", ErrProtocolChanged, err)
	}

	samlResponse, ok := htmlutil.InputValue(doc, samlResponseField)
	if !ok || samlResponse == "" {
		c.tel.ReportWarning(
			report_client_login,
			fmt.Errorf("could not find input[name=%s]", samlResponseField),
			htmlutil.PageTitle(doc),
		)
		return "", ErrProtocolChanged
	}
	return samlResponse, nil
}

type tokenResponse struct {
	AccessToken *string `json:"access_token"`
	TokenType   *string `json:"token_type"`
	ExpiresIn   *int64  `json:"expires_in"`
}

func (c *Client) exchange(ctx context.Context, session *resty.Client, samlResponse string) (Token, error) {
	res, err := session.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"RelayState":   c.opts.RelayState,
			"SAMLResponse": samlResponse,
		}).
		Post(c.opts.TokenUrl)
	if err != nil {
		c.tel.ReportBroken(
			report_client_token_exchange,
			fmt.Errorf("fetch: %w", err),
		)
		return Token{}, &TokenExchangeError{Err: err}
	}
	if !res.IsSuccess() {
		c.tel.ReportBroken(report_client_token_exchange, res.StatusCode(), res.String())
		return Token{}, &TokenExchangeError{
			StatusCode: res.StatusCode(),
			Body:       res.String(),
		}
	}

	var parsed tokenResponse
	err = json.Unmarshal(res.Body(), &parsed)
	if err != nil {
		c.tel.ReportBroken(
			report_client_token_exchange,
			fmt.Errorf("unmarshal json: %w", err),
		)
		return Token{}, &TokenExchangeError{
			StatusCode: res.StatusCode(),
			Body:       res.String(),
			Err:        err,
		}
	}

	var missing []string
	if parsed.AccessToken == nil || *parsed.AccessToken == "" {
		missing = append(missing, "access_token")
	}
	if parsed.TokenType == nil || *parsed.TokenType == "" {
		missing = append(missing, "token_type")
	}
	if parsed.ExpiresIn == nil {
		missing = append(missing, "expires_in")
	}
	if len(missing) > 0 {
		c.tel.ReportBroken(report_client_token_exchange, missing)
		return Token{}, &TokenExchangeError{
			StatusCode: res.StatusCode(),
			Body:       res.String(),
			Missing:    missing,
		}
	}

	return Token{
		AccessToken: *parsed.AccessToken,
		TokenType:   *parsed.TokenType,
		ExpiresIn:   *parsed.ExpiresIn,
		FetchedAt:   c.opts.Clock.Now(),
	}, nil
}
