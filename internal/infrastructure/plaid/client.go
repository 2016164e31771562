package plaid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultTimeout   = 30 * time.Second
	maxResponseBytes = 10 << 20

	exchangePath     = "/item/public_token/exchange"
	accountsPath     = "/accounts/get"
	balancesPath     = "/accounts/balance/get"
	transactionsPath = "/transactions/get"
)

// Client handles communication with the Plaid API
type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	secret     string
	timeout    time.Duration
}

// Ensure Client implements ClientInterface
var _ ClientInterface = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default instrumented HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-call deadline applied on top of the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient creates a new Plaid API client for baseURL
// (e.g. https://sandbox.plaid.com).
func NewClient(baseURL, clientID, secret string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL:  baseURL,
		clientID: clientID,
		secret:   secret,
		timeout:  defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Error is the error body Plaid returns on any non-2xx response.
type Error struct {
	StatusCode     int    `json:"-"`
	ErrorType      string `json:"error_type"`
	ErrorCode      string `json:"error_code"`
	ErrorMessage   string `json:"error_message"`
	DisplayMessage string `json:"display_message"`
	RequestID      string `json:"request_id"`
}

func (e *Error) Error() string {
	if e.ErrorType == "" && e.ErrorCode == "" {
		return fmt.Sprintf("plaid error (status %d): %s", e.StatusCode, e.ErrorMessage)
	}
	return fmt.Sprintf("plaid error (status %d): %s/%s - %s", e.StatusCode, e.ErrorType, e.ErrorCode, e.ErrorMessage)
}

// AsError extracts a *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

type credentials struct {
	ClientID string `json:"client_id"`
	Secret   string `json:"secret"`
}

type exchangeRequest struct {
	credentials
	PublicToken string `json:"public_token"`
}

// ExchangeResponse is the result of swapping a public token.
type ExchangeResponse struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
	RequestID   string `json:"request_id"`
}

type accessTokenRequest struct {
	credentials
	AccessToken string `json:"access_token"`
}

// AccountsResponse is returned by both /accounts/get and /accounts/balance/get.
type AccountsResponse struct {
	Accounts  []Account `json:"accounts"`
	Item      Item      `json:"item"`
	RequestID string    `json:"request_id"`
}

// Item identifies the institution login the access token belongs to.
type Item struct {
	ItemID        string `json:"item_id"`
	InstitutionID string `json:"institution_id"`
}

// Account represents an account from the Plaid API
type Account struct {
	AccountID    string   `json:"account_id"`
	Name         string   `json:"name"`
	OfficialName *string  `json:"official_name"`
	Mask         *string  `json:"mask"`
	Type         string   `json:"type"`
	Subtype      *string  `json:"subtype"`
	Balances     Balances `json:"balances"`
}

// Balances holds the provider balance figures. Any of them may be null.
type Balances struct {
	Available       decimal.NullDecimal `json:"available"`
	Current         decimal.NullDecimal `json:"current"`
	Limit           decimal.NullDecimal `json:"limit"`
	ISOCurrencyCode *string             `json:"iso_currency_code"`
}

// AvailableOrZero returns the available balance, or zero when Plaid omits it.
func (b Balances) AvailableOrZero() decimal.Decimal {
	if !b.Available.Valid {
		return decimal.Zero
	}
	return b.Available.Decimal
}

// TransactionsRequest selects one page of transactions. Dates are YYYY-MM-DD.
type TransactionsRequest struct {
	AccessToken string
	StartDate   string
	EndDate     string
	Count       int
	Offset      int
}

type transactionsRequest struct {
	credentials
	AccessToken string              `json:"access_token"`
	StartDate   string              `json:"start_date"`
	EndDate     string              `json:"end_date"`
	Options     transactionsOptions `json:"options"`
}

type transactionsOptions struct {
	Count  int `json:"count"`
	Offset int `json:"offset"`
}

// TransactionsResponse is one page of /transactions/get.
type TransactionsResponse struct {
	Accounts          []Account     `json:"accounts"`
	Transactions      []Transaction `json:"transactions"`
	TotalTransactions int           `json:"total_transactions"`
	RequestID         string        `json:"request_id"`
}

// Transaction represents a transaction from the Plaid API
type Transaction struct {
	TransactionID           string                   `json:"transaction_id"`
	AccountID               string                   `json:"account_id"`
	Name                    string                   `json:"name"`
	MerchantName            *string                  `json:"merchant_name"`
	Date                    string                   `json:"date"`
	Amount                  decimal.Decimal          `json:"amount"`
	Pending                 bool                     `json:"pending"`
	ISOCurrencyCode         *string                  `json:"iso_currency_code"`
	PersonalFinanceCategory *PersonalFinanceCategory `json:"personal_finance_category"`
}

// PersonalFinanceCategory is Plaid's two-level category.
type PersonalFinanceCategory struct {
	Primary  string `json:"primary"`
	Detailed string `json:"detailed"`
}

// PrimaryCategory returns the primary category or "" when absent.
func (t *Transaction) PrimaryCategory() string {
	if t.PersonalFinanceCategory == nil {
		return ""
	}
	return t.PersonalFinanceCategory.Primary
}

// ExchangePublicToken swaps a one-time public token for a durable access token.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeResponse, error) {
	var resp ExchangeResponse
	body := exchangeRequest{credentials: c.credentials(), PublicToken: publicToken}
	if err := c.post(ctx, exchangePath, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetAccounts fetches the accounts (with cached balances) behind an access token.
func (c *Client) GetAccounts(ctx context.Context, accessToken string) (*AccountsResponse, error) {
	var resp AccountsResponse
	body := accessTokenRequest{credentials: c.credentials(), AccessToken: accessToken}
	if err := c.post(ctx, accountsPath, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetBalances fetches real-time balances behind an access token.
func (c *Client) GetBalances(ctx context.Context, accessToken string) (*AccountsResponse, error) {
	var resp AccountsResponse
	body := accessTokenRequest{credentials: c.credentials(), AccessToken: accessToken}
	if err := c.post(ctx, balancesPath, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetTransactions fetches one page of transactions in the requested window.
func (c *Client) GetTransactions(ctx context.Context, req TransactionsRequest) (*TransactionsResponse, error) {
	var resp TransactionsResponse
	body := transactionsRequest{
		credentials: c.credentials(),
		AccessToken: req.AccessToken,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Options:     transactionsOptions{Count: req.Count, Offset: req.Offset},
	}
	if err := c.post(ctx, transactionsPath, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) credentials() credentials {
	return credentials{ClientID: c.clientID, Secret: c.secret}
}

// post sends a JSON request and decodes a 2xx response into out.
// Non-2xx responses are returned as *Error.
func (c *Client) post(ctx context.Context, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(body, apiErr); err != nil || apiErr.ErrorMessage == "" {
			apiErr.ErrorMessage = string(body)
		}
		return apiErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
