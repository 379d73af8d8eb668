package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ndewijer/fundval-backend/internal/api/handlers"
	"github.com/ndewijer/fundval-backend/internal/api/request"
	"github.com/ndewijer/fundval-backend/internal/api/response"
	"github.com/ndewijer/fundval-backend/internal/model"
	"github.com/ndewijer/fundval-backend/internal/repository"
	"github.com/ndewijer/fundval-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buyBody(accountID, fundID, date, share, amount string) request.LedgerEntryRequest {
	s, a := testutil.Dec(share), testutil.Dec(amount)
	return request.LedgerEntryRequest{
		AccountID:     accountID,
		FundID:        fundID,
		Type:          string(model.EntryTypeBuy),
		OperationDate: date,
		Share:         s,
		Amount:        a,
		Nav:           a.DivRound(s, 4),
	}
}

func sellBody(accountID, fundID, date, share string) request.LedgerEntryRequest {
	return request.LedgerEntryRequest{
		AccountID:     accountID,
		FundID:        fundID,
		Type:          string(model.EntryTypeSell),
		OperationDate: date,
		Share:         testutil.Dec(share),
		Nav:           testutil.Dec("10"),
	}
}

// TestOperationHandler_CreateOperation tests recording buys and sells over HTTP.
//
// WHY: The response must reflect the recalculated position, and an oversell
// must come back as a client error with nothing written.
func TestOperationHandler_CreateOperation(t *testing.T) {
	ctx := context.Background()

	t.Run("buy creates the entry and its position", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		handler := handlers.NewOperationHandler(testutil.NewTestLedgerService(t, db))
		_, child := testutil.CreateChildAccount(t, db, "user-1")
		fund := testutil.CreateFund(t, db, testutil.MakeFundCode())

		// Execute
		w := httptest.NewRecorder()
		handler.CreateOperation(w, testutil.NewJSONRequest(http.MethodPost, "/api/operation",
			buyBody(child.ID, fund.ID, "2024-01-01", "100", "1000"), nil))

		// Assert
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		entry := decode[model.LedgerEntry](t, w)
		assert.Equal(t, model.EntryTypeBuy, entry.Type)
		assert.Equal(t, fund.ID, entry.FundID)

		pos, err := repository.NewPositionRepository(db).GetPositionByPair(ctx, child.ID, fund.ID)
		require.NoError(t, err)
		assert.True(t, testutil.Dec("100").Equal(pos.HoldingShare))
		assert.True(t, testutil.Dec("10").Equal(pos.HoldingNav))
	})

	t.Run("oversell is rejected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := handlers.NewOperationHandler(testutil.NewTestLedgerService(t, db))
		_, child := testutil.CreateChildAccount(t, db, "user-1")
		fund := testutil.CreateFund(t, db, testutil.MakeFundCode())
		testutil.NewLedgerEntry(child.ID, fund.ID).Buy("100", "1000").Build(t, db)

		w := httptest.NewRecorder()
		handler.CreateOperation(w, testutil.NewJSONRequest(http.MethodPost, "/api/operation",
			sellBody(child.ID, fund.ID, "2024-06-01", "150"), nil))

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "failed to create operation", decode[response.ErrorResponse](t, w).Error)

		entries, err := repository.NewLedgerRepository(db).GetEntriesForPair(ctx, child.ID, fund.ID)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("root account is rejected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := handlers.NewOperationHandler(testutil.NewTestLedgerService(t, db))
		root := testutil.CreateRootAccount(t, db, "user-1", "Main")
		fund := testutil.CreateFund(t, db, testutil.MakeFundCode())

		w := httptest.NewRecorder()
		handler.CreateOperation(w, testutil.NewJSONRequest(http.MethodPost, "/api/operation",
			buyBody(root.ID, fund.ID, "2024-01-01", "100", "1000"), nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown fund is 404", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := handlers.NewOperationHandler(testutil.NewTestLedgerService(t, db))
		_, child := testutil.CreateChildAccount(t, db, "user-1")

		w := httptest.NewRecorder()
		handler.CreateOperation(w, testutil.NewJSONRequest(http.MethodPost, "/api/operation",
			buyBody(child.ID, testutil.MakeID(), "2024-01-01", "100", "1000"), nil))

		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "fund not found", decode[response.ErrorResponse](t, w).Error)
	})

	t.Run("malformed JSON is a bad request", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := handlers.NewOperationHandler(testutil.NewTestLedgerService(t, db))

		w := httptest.NewRecorder()
		handler.CreateOperation(w, testutil.NewJSONRequest(http.MethodPost, "/api/operation", "not an object", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

// TestOperationHandler_Mutations tests replacing and deleting entries.
func TestOperationHandler_Mutations(t *testing.T) {
	ctx := context.Background()

	t.Run("update replaces the entry and refolds", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := handlers.NewOperationHandler(testutil.NewTestLedgerService(t, db))
		_, child := testutil.CreateChildAccount(t, db, "user-1")
		fund := testutil.CreateFund(t, db, testutil.MakeFundCode())
		entry := testutil.NewLedgerEntry(child.ID, fund.ID).Buy("100", "1000").Build(t, db)

		w := httptest.NewRecorder()
		handler.UpdateOperation(w, testutil.NewJSONRequest(http.MethodPut, "/api/operation/"+entry.ID,
			buyBody(child.ID, fund.ID, "2024-01-01", "200", "2400"), map[string]string{"uuid": entry.ID}))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, entry.ID, decode[model.LedgerEntry](t, w).ID)

		pos, err := repository.NewPositionRepository(db).GetPositionByPair(ctx, child.ID, fund.ID)
		require.NoError(t, err)
		assert.True(t, testutil.Dec("200").Equal(pos.HoldingShare))
		assert.True(t, testutil.Dec("12").Equal(pos.HoldingNav))
	})

	t.Run("delete removes the entry", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := handlers.NewOperationHandler(testutil.NewTestLedgerService(t, db))
		_, child := testutil.CreateChildAccount(t, db, "user-1")
		fund := testutil.CreateFund(t, db, testutil.MakeFundCode())
		entry := testutil.NewLedgerEntry(child.ID, fund.ID).Buy("100", "1000").Build(t, db)

		w := httptest.NewRecorder()
		handler.DeleteOperation(w, testutil.NewRequestWithURLParams(http.MethodDelete, "/api/operation/"+entry.ID, map[string]string{"uuid": entry.ID}))

		assert.Equal(t, http.StatusNoContent, w.Code)

		w = httptest.NewRecorder()
		handler.GetOperation(w, testutil.NewRequestWithURLParams(http.MethodGet, "/api/operation/"+entry.ID, map[string]string{"uuid": entry.ID}))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("batch delete reports counts", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := handlers.NewOperationHandler(testutil.NewTestLedgerService(t, db))
		_, child := testutil.CreateChildAccount(t, db, "user-1")
		fundA := testutil.CreateFund(t, db, testutil.MakeFundCode())
		fundB := testutil.CreateFund(t, db, testutil.MakeFundCode())
		a := testutil.NewLedgerEntry(child.ID, fundA.ID).Buy("100", "1000").Build(t, db)
		b := testutil.NewLedgerEntry(child.ID, fundB.ID).Buy("50", "500").Build(t, db)

		w := httptest.NewRecorder()
		handler.BatchDeleteOperations(w, testutil.NewJSONRequest(http.MethodPost, "/api/operation/batch-delete",
			request.BatchDeleteRequest{IDs: []string{a.ID, b.ID}}, nil))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, model.BatchDeleteResult{DeletedCount: 2, Recalculated: 2}, decode[model.BatchDeleteResult](t, w))
	})

	t.Run("batch delete with no IDs is a bad request", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := handlers.NewOperationHandler(testutil.NewTestLedgerService(t, db))

		w := httptest.NewRecorder()
		handler.BatchDeleteOperations(w, testutil.NewJSONRequest(http.MethodPost, "/api/operation/batch-delete",
			request.BatchDeleteRequest{IDs: []string{}}, nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

// TestOperationHandler_ListOperations tests ledger listing filters.
func TestOperationHandler_ListOperations(t *testing.T) {
	t.Run("filters by fund", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := handlers.NewOperationHandler(testutil.NewTestLedgerService(t, db))
		_, child := testutil.CreateChildAccount(t, db, "user-1")
		fundA := testutil.CreateFund(t, db, testutil.MakeFundCode())
		fundB := testutil.CreateFund(t, db, testutil.MakeFundCode())
		testutil.NewLedgerEntry(child.ID, fundA.ID).Buy("100", "1000").Build(t, db)
		testutil.NewLedgerEntry(child.ID, fundB.ID).Buy("50", "500").Build(t, db)

		w := httptest.NewRecorder()
		handler.ListOperations(w, testutil.NewRequestWithQueryParams(http.MethodGet, "/api/operation", map[string]string{"fund": fundA.ID}))

		require.Equal(t, http.StatusOK, w.Code)
		entries := decode[[]model.LedgerEntryResponse](t, w)
		require.Len(t, entries, 1)
		assert.Equal(t, fundA.Code, entries[0].FundCode)
		assert.Equal(t, child.Name, entries[0].AccountName)
	})

	t.Run("rejects a malformed account filter", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := handlers.NewOperationHandler(testutil.NewTestLedgerService(t, db))

		w := httptest.NewRecorder()
		handler.ListOperations(w, testutil.NewRequestWithQueryParams(http.MethodGet, "/api/operation", map[string]string{"account": "nope"}))

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid account parameter", decode[response.ErrorResponse](t, w).Error)
	})
}
