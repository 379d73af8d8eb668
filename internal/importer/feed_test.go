package importer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseFeed tests decoding and validation of uploaded feeds.
//
// WHY: The feed is user input that ends up as ledger entries; malformed
// documents must be rejected before any account is touched.
func TestParseFeed(t *testing.T) {
	t.Run("decodes accounts and holdings", func(t *testing.T) {
		doc := `{"accounts":[{"accountId":"A1","name":"Broker One","holdings":[
			{"fundCode":"000001","fundName":"Growth","share":"100.12345","nav":1.23456,"amount":"123.456","operationDate":"2024-01-15"}
		]}]}`

		feed, err := ParseFeed(strings.NewReader(doc))
		require.NoError(t, err)
		require.Len(t, feed.Accounts, 1)

		h := feed.Accounts[0].Holdings[0]
		assert.Equal(t, "000001", h.FundCode)
		assert.True(t, h.Share.Equal(decimal.RequireFromString("100.12345")))
		assert.True(t, h.Nav.Equal(decimal.RequireFromString("1.23456")))
		assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), h.OperationDate.Time)
	})

	t.Run("rejects bad dates", func(t *testing.T) {
		doc := `{"accounts":[{"accountId":"A1","name":"B","holdings":[{"fundCode":"1","operationDate":"15/01/2024"}]}]}`
		_, err := ParseFeed(strings.NewReader(doc))
		assert.Error(t, err)
	})

	t.Run("rejects accounts without name", func(t *testing.T) {
		_, err := ParseFeed(strings.NewReader(`{"accounts":[{"accountId":"A1","name":" "}]}`))
		assert.Error(t, err)
	})

	t.Run("rejects duplicate account ids", func(t *testing.T) {
		doc := `{"accounts":[{"accountId":"A1","name":"x"},{"accountId":"A1","name":"y"}]}`
		_, err := ParseFeed(strings.NewReader(doc))
		assert.Error(t, err)
	})
}

// TestFeed_Source tests the Source implementation of Feed.
func TestFeed_Source(t *testing.T) {
	feed := &Feed{Accounts: []FeedAccount{
		{Account: Account{ID: "A1", Name: "One"}, Holdings: []Holding{{FundCode: "000001"}}},
		{Account: Account{ID: "A2", Name: "Two"}},
	}}
	ctx := context.Background()

	accounts, err := feed.FetchAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Account{{ID: "A1", Name: "One"}, {ID: "A2", Name: "Two"}}, accounts)

	holdings, err := feed.FetchHoldings(ctx, "A1")
	require.NoError(t, err)
	assert.Len(t, holdings, 1)

	_, err = feed.FetchHoldings(ctx, "missing")
	assert.True(t, errors.Is(err, ErrUnknownAccount))
}
