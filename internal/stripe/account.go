package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Account is the subset of account metadata kept on the client handle.
type Account struct {
	ID              string          `json:"id"`
	Email           string          `json:"email,omitempty"`
	Country         string          `json:"country,omitempty"`
	DefaultCurrency string          `json:"default_currency,omitempty"`
	BusinessName    string          `json:"business_name,omitempty"`
	ChargesEnabled  bool            `json:"charges_enabled"`
	PayoutsEnabled  bool            `json:"payouts_enabled"`
	Created         int64           `json:"created,omitempty"`
	Raw             json.RawMessage `json:"-"`
}

// Account returns the account bound to the secret key. The first successful
// fetch is cached and shared by every clone of the handle.
func (c *Client) Account(ctx context.Context) (*Account, error) {
	c.account.mu.Lock()
	defer c.account.mu.Unlock()

	if c.account.account != nil {
		return c.account.account, nil
	}

	body, err := c.get(ctx, "/v1/account", nil)
	if err != nil {
		return nil, err
	}

	account, err := decodeAccount(body)
	if err != nil {
		return nil, err
	}
	c.account.account = account
	return account, nil
}

// CachedAccount returns the account metadata if it has been fetched.
func (c *Client) CachedAccount() *Account {
	c.account.mu.Lock()
	defer c.account.mu.Unlock()
	return c.account.account
}

func decodeAccount(body []byte) (*Account, error) {
	var payload struct {
		Account
		Settings struct {
			Dashboard struct {
				DisplayName string `json:"display_name"`
			} `json:"dashboard"`
		} `json:"settings"`
		BusinessProfile struct {
			Name string `json:"name"`
		} `json:"business_profile"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode stripe account: %w", err)
	}
	if payload.ID == "" {
		return nil, fmt.Errorf("decode stripe account: missing id")
	}

	account := payload.Account
	account.BusinessName = payload.BusinessProfile.Name
	if account.BusinessName == "" {
		account.BusinessName = payload.Settings.Dashboard.DisplayName
	}
	account.Raw = append(json.RawMessage(nil), body...)
	return &account, nil
}

// get performs a GET through the retry coordinator and returns the body of a
// 200 response. Other statuses surface as *APIError.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	resp, err := c.Do(ctx, c.NewRequest(ctx, http.MethodGet, path, query))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read stripe response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if apiErr := parseAPIError(resp, body); apiErr != nil {
			return nil, apiErr
		}
		return nil, fmt.Errorf("unexpected stripe response: HTTP %d", resp.StatusCode)
	}
	return body, nil
}
