package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Feed is a Source backed by a JSON document uploaded by the caller.
//
// Example document:
//
//	{
//	  "accounts": [
//	    {
//	      "accountId": "A1",
//	      "name": "Broker One",
//	      "holdings": [
//	        {"fundCode": "000001", "fundName": "Growth", "share": "100.12345",
//	         "nav": "1.23456", "amount": "123.456", "operationDate": "2024-01-15"}
//	      ]
//	    }
//	  ]
//	}
type Feed struct {
	Accounts []FeedAccount `json:"accounts"`
}

// FeedAccount is a broker account together with its holdings.
type FeedAccount struct {
	Account
	Holdings []Holding `json:"holdings"`
}

// ParseFeed decodes and checks a feed document.
func ParseFeed(r io.Reader) (*Feed, error) {
	var feed Feed
	dec := json.NewDecoder(r)
	if err := dec.Decode(&feed); err != nil {
		return nil, fmt.Errorf("failed to decode import feed: %w", err)
	}
	if err := feed.Validate(); err != nil {
		return nil, err
	}
	return &feed, nil
}

// Validate checks that every account carries an ID and a name and that IDs are unique.
func (f *Feed) Validate() error {
	seen := make(map[string]bool, len(f.Accounts))
	for i, a := range f.Accounts {
		if strings.TrimSpace(a.ID) == "" {
			return fmt.Errorf("account %d: accountId is required", i)
		}
		if strings.TrimSpace(a.Name) == "" {
			return fmt.Errorf("account %s: name is required", a.ID)
		}
		if seen[a.ID] {
			return fmt.Errorf("account %s: duplicate accountId", a.ID)
		}
		seen[a.ID] = true
	}
	return nil
}

// FetchAccounts returns the feed's accounts in document order.
func (f *Feed) FetchAccounts(_ context.Context) ([]Account, error) {
	accounts := make([]Account, 0, len(f.Accounts))
	for _, a := range f.Accounts {
		accounts = append(accounts, a.Account)
	}
	return accounts, nil
}

// FetchHoldings returns the holdings listed under accountID.
func (f *Feed) FetchHoldings(_ context.Context, accountID string) ([]Holding, error) {
	for _, a := range f.Accounts {
		if a.ID == accountID {
			return a.Holdings, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, accountID)
}
