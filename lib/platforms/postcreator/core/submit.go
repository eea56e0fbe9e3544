package core

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"postcard-creator/lib/postcard"
)

type createMailingRequest struct {
	Name          string `json:"name"`
	AddressFormat string `json:"addressFormat"`
	Paid          bool   `json:"paid"`
}

// SubmitFreePostcard orders a postcard using the free quota of the account and
// returns the id of the created mailing.
//
// The postcard is validated and its picture loaded before any request is made.
// A failure after the draft mailing is created leaves the draft behind on the
// server, nothing is rolled back. Such failures are a *DraftLeftBehindError
// and the mailing id is returned alongside it.
func (c *Client) SubmitFreePostcard(ctx context.Context, card postcard.Postcard) (string, error) {
	err := card.Validate()
	if err != nil {
		c.tel.ReportWarning(report_client_submit, err)
		return "", err
	}
	picture, err := card.LoadPicture()
	if err != nil {
		c.tel.ReportWarning(report_client_submit, err)
		return "", err
	}

	user, err := c.GetCurrentUser(ctx)
	if err != nil {
		return "", err
	}
	quota, err := c.getQuota(ctx, user)
	if err != nil {
		return "", err
	}
	if !quota.Available {
		return "", &QuotaExceededError{Next: quota.Next}
	}

	mailingId, err := c.createMailing(ctx, user)
	if err != nil {
		return "", fmt.Errorf("create mailing: %w", err)
	}
	c.tel.ReportDebug("created draft mailing", mailingId)

	leftBehind := func(step string, err error) error {
		return &DraftLeftBehindError{MailingId: mailingId, Step: step, Err: err}
	}

	err = c.uploadAsset(ctx, user, picture)
	if err != nil {
		return mailingId, leftBehind("upload asset", err)
	}
	err = c.setRecipient(ctx, user, mailingId, card.Recipient)
	if err != nil {
		return mailingId, leftBehind("set recipient", err)
	}
	for _, page := range []int{postcard.PageFront, postcard.PageBack} {
		err = c.setPage(ctx, user, mailingId, card, page)
		if err != nil {
			return mailingId, leftBehind(fmt.Sprintf("set page %d", page), err)
		}
	}
	err = c.order(ctx, user, mailingId)
	if err != nil {
		return mailingId, leftBehind("order", err)
	}

	c.submitted++
	c.tel.ReportCount(report_client_submitted, c.submitted)
	return mailingId, nil
}

// mailingIdFromLocation extracts the id from a location like `.../mailings/4821`.
func mailingIdFromLocation(location string) (string, bool) {
	_, after, found := strings.Cut(location, "mailings/")
	if !found {
		return "", false
	}
	after, _, _ = strings.Cut(after, "?")
	id, _, _ := strings.Cut(after, "/")
	if id == "" {
		return "", false
	}
	return id, true
}

func (c *Client) createMailing(ctx context.Context, user User) (string, error) {
	req := c.http.R().SetBody(createMailingRequest{
		Name:          fmt.Sprintf("Mobile App Mailing %s", c.clock.Now().Format("2006-01-02 15:04")),
		AddressFormat: "PERSON_FIRST",
		Paid:          false,
	})
	res, err := c.do(ctx, req, http.MethodPost, fmt.Sprintf("/users/%s/mailings", user.Id))
	if err != nil {
		return "", err
	}

	location := res.Header().Get("Location")
	mailingId, ok := mailingIdFromLocation(location)
	if !ok {
		c.tel.ReportBroken(report_client_create_mailing, ErrMissingMailingId, location)
		return "", ErrMissingMailingId
	}
	return mailingId, nil
}

func (c *Client) uploadAsset(ctx context.Context, user User, picture postcard.Picture) error {
	req := c.http.R().
		SetHeader("Origin", "file://").
		SetMultipartFormData(map[string]string{
			"title": "Title of image",
		}).
		SetMultipartField(
			"asset",
			"asset"+picture.Extension,
			picture.ContentType,
			bytes.NewReader(picture.Data),
		)
	_, err := c.do(ctx, req, http.MethodPost, fmt.Sprintf("/users/%s/assets", user.Id))
	return err
}

func (c *Client) setRecipient(ctx context.Context, user User, mailingId string, recipient postcard.Recipient) error {
	req := c.http.R().SetBody(recipient.WireFormat())
	_, err := c.do(ctx, req, http.MethodPut, fmt.Sprintf("/users/%s/mailings/%s/recipients", user.Id, mailingId))
	return err
}

func (c *Client) setPage(ctx context.Context, user User, mailingId string, card postcard.Postcard, page int) error {
	svg, err := card.RenderPage(page, postcard.PageContext{UserId: user.Id.String()})
	if err != nil {
		return err
	}
	req := c.http.R().
		SetHeader("Origin", "file://").
		SetHeader("Content-Type", "image/svg+xml").
		SetBody(svg)
	_, err = c.do(ctx, req, http.MethodPut, fmt.Sprintf("/users/%s/mailings/%s/pages/%d", user.Id, mailingId, page))
	return err
}

func (c *Client) order(ctx context.Context, user User, mailingId string) error {
	req := c.http.R().
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{})
	_, err := c.do(ctx, req, http.MethodPost, fmt.Sprintf("/users/%s/mailings/%s/order", user.Id, mailingId))
	return err
}
