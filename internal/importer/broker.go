package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// brokerResponse is the envelope every broker API endpoint answers with.
type brokerResponse struct {
	Accounts []Account `json:"accounts,omitempty"`
	Holdings []Holding `json:"holdings,omitempty"`
	Error    *string   `json:"error"`
}

// BrokerClient is a Source that pulls accounts and holdings from a broker HTTP API.
//
// Endpoints, relative to the base URL:
//   - GET /accounts                 -> {"accounts": [...]}
//   - GET /accounts/{id}/holdings   -> {"holdings": [...]}
//
// A non-null "error" field in the body is reported as a failure.
type BrokerClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewBrokerClient creates a client for the broker API at baseURL.
// An empty token sends no Authorization header.
func NewBrokerClient(baseURL, token string) *BrokerClient {
	return &BrokerClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FetchAccounts lists the broker accounts visible to the token.
func (c *BrokerClient) FetchAccounts(ctx context.Context) ([]Account, error) {
	resp, err := c.query(ctx, c.baseURL+"/accounts")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch broker accounts: %w", err)
	}
	return resp.Accounts, nil
}

// FetchHoldings lists the holdings of one broker account.
func (c *BrokerClient) FetchHoldings(ctx context.Context, accountID string) ([]Holding, error) {
	resp, err := c.query(ctx, c.baseURL+"/accounts/"+url.PathEscape(accountID)+"/holdings")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch holdings for broker account %s: %w", accountID, err)
	}
	return resp.Holdings, nil
}

// query executes a GET request and decodes the broker envelope.
func (c *BrokerClient) query(ctx context.Context, endpoint string) (brokerResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return brokerResponse{}, err
	}

	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return brokerResponse{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return brokerResponse{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return brokerResponse{}, fmt.Errorf("broker returned status %d", resp.StatusCode)
	}

	var response brokerResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return brokerResponse{}, err
	}

	if response.Error != nil {
		return response, fmt.Errorf("broker error: %s", *response.Error)
	}

	return response, nil
}
