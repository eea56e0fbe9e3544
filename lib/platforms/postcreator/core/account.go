package core

import (
	"context"
	"encoding/json"
	"fmt"
)

type User struct {
	Id json.Number `json:"userId"`
	// Fields holds the complete response.
	Fields map[string]any `json:"-"`
}

type Quota struct {
	Available bool `json:"available"`
	// Next is when the next free postcard becomes available, it is only
	// meaningful when Available is false.
	Next   string         `json:"next"`
	Fields map[string]any `json:"-"`
}

type BillingBalance map[string]any

func (c *Client) GetCurrentUser(ctx context.Context) (User, error) {
	var user User
	err := c.getJson(ctx, "/users/current", &user, &user.Fields)
	if err != nil {
		return User{}, err
	}
	if user.Id == "" {
		err := fmt.Errorf("postcard creator: current user response has no userId")
		c.tel.ReportBroken(report_client_decode, err)
		return User{}, err
	}
	return user, nil
}

func (c *Client) getQuota(ctx context.Context, user User) (Quota, error) {
	var quota Quota
	err := c.getJson(ctx, fmt.Sprintf("/users/%s/quota", user.Id), &quota, &quota.Fields)
	return quota, err
}

func (c *Client) GetQuota(ctx context.Context) (Quota, error) {
	user, err := c.GetCurrentUser(ctx)
	if err != nil {
		return Quota{}, err
	}
	return c.getQuota(ctx, user)
}

func (c *Client) GetBillingBalance(ctx context.Context) (BillingBalance, error) {
	user, err := c.GetCurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	var balance BillingBalance
	err = c.getJson(ctx, fmt.Sprintf("/users/%s/billingOnlineAccountSaldo", user.Id), &balance, nil)
	return balance, err
}

// HasFreePostcardAvailable reports the availability flag of the quota.
func (c *Client) HasFreePostcardAvailable(ctx context.Context) (bool, error) {
	quota, err := c.GetQuota(ctx)
	if err != nil {
		return false, err
	}
	return quota.Available, nil
}
