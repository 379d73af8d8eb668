package handlers_test

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ndewijer/fundval-backend/internal/api/handlers"
	"github.com/ndewijer/fundval-backend/internal/api/request"
	"github.com/ndewijer/fundval-backend/internal/model"
	"github.com/ndewijer/fundval-backend/internal/repository"
	"github.com/ndewijer/fundval-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPositionHandler(t *testing.T, db *sql.DB) *handlers.PositionHandler {
	t.Helper()
	return handlers.NewPositionHandler(testutil.NewTestPositionService(t, db), testutil.NewTestLedgerService(t, db))
}

// TestPositionHandler_ListPositions tests position listing with profit and loss.
//
// WHY: Listing by a root account must roll up its children, and pnl must be
// computed against the fund's latest confirmed NAV.
func TestPositionHandler_ListPositions(t *testing.T) {
	ctx := context.Background()

	t.Run("lists a root account's children with pnl", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		handler := newPositionHandler(t, db)
		root, child := testutil.CreateChildAccount(t, db, "user-1")
		fund := testutil.NewFund().WithLatestNav("12.5", testutil.Date(2024, 3, 1)).Build(t, db)
		testutil.NewLedgerEntry(child.ID, fund.ID).Buy("100", "1000").Build(t, db)
		_, err := testutil.NewTestPositionService(t, db).RecalculatePosition(ctx, child.ID, fund.ID)
		require.NoError(t, err)

		// Execute
		w := httptest.NewRecorder()
		handler.ListPositions(w, testutil.NewRequestWithQueryParams(http.MethodGet, "/api/position", map[string]string{"account": root.ID}))

		// Assert
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		positions := decode[[]model.PositionResponse](t, w)
		require.Len(t, positions, 1)
		assert.Equal(t, child.ID, positions[0].AccountID)
		assert.Equal(t, fund.Code, positions[0].FundCode)
		assert.True(t, testutil.Dec("250").Equal(positions[0].Pnl), "pnl = %s", positions[0].Pnl)
	})

	t.Run("unknown account is 404", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := newPositionHandler(t, db)

		w := httptest.NewRecorder()
		handler.ListPositions(w, testutil.NewRequestWithQueryParams(http.MethodGet, "/api/position", map[string]string{"account": testutil.MakeID()}))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed account filter is a bad request", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := newPositionHandler(t, db)

		w := httptest.NewRecorder()
		handler.ListPositions(w, testutil.NewRequestWithQueryParams(http.MethodGet, "/api/position", map[string]string{"account": "123"}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

// TestPositionHandler_ClearPosition tests wiping a position's ledger.
func TestPositionHandler_ClearPosition(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes the ledger and the position", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := newPositionHandler(t, db)
		_, child := testutil.CreateChildAccount(t, db, "user-1")
		fund := testutil.CreateFund(t, db, testutil.MakeFundCode())
		testutil.NewLedgerEntry(child.ID, fund.ID).Buy("100", "1000").OnDate(testutil.Date(2024, 1, 1)).Build(t, db)
		testutil.NewLedgerEntry(child.ID, fund.ID).Sell("40").OnDate(testutil.Date(2024, 2, 1)).Build(t, db)
		pos, err := testutil.NewTestPositionService(t, db).RecalculatePosition(ctx, child.ID, fund.ID)
		require.NoError(t, err)
		stored, err := repository.NewPositionRepository(db).GetPositionByPair(ctx, child.ID, fund.ID)
		require.NoError(t, err)
		assert.True(t, pos.HoldingShare.Equal(stored.HoldingShare))

		w := httptest.NewRecorder()
		handler.ClearPosition(w, testutil.NewRequestWithURLParams(http.MethodDelete, "/api/position/"+stored.ID+"/clear", map[string]string{"uuid": stored.ID}))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, 2, decode[handlers.ClearResponse](t, w).DeletedCount)

		w = httptest.NewRecorder()
		handler.GetPosition(w, testutil.NewRequestWithURLParams(http.MethodGet, "/api/position/"+stored.ID, map[string]string{"uuid": stored.ID}))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unknown position is 404", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := newPositionHandler(t, db)
		id := testutil.MakeID()

		w := httptest.NewRecorder()
		handler.ClearPosition(w, testutil.NewRequestWithURLParams(http.MethodDelete, "/api/position/"+id+"/clear", map[string]string{"uuid": id}))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

// TestPositionHandler_RecalculatePositions tests the bulk rebuild endpoint.
func TestPositionHandler_RecalculatePositions(t *testing.T) {
	t.Run("rebuilds every pair without a body", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := newPositionHandler(t, db)
		_, child := testutil.CreateChildAccount(t, db, "user-1")
		fundA := testutil.CreateFund(t, db, testutil.MakeFundCode())
		fundB := testutil.CreateFund(t, db, testutil.MakeFundCode())
		testutil.NewLedgerEntry(child.ID, fundA.ID).Build(t, db)
		testutil.NewLedgerEntry(child.ID, fundB.ID).Build(t, db)

		w := httptest.NewRecorder()
		handler.RecalculatePositions(w, httptest.NewRequest(http.MethodPost, "/api/position/recalculate", nil))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		summary := decode[model.RecalculateSummary](t, w)
		assert.Equal(t, 2, summary.Pairs)
		assert.Equal(t, 2, summary.Recalculated)
		assert.Empty(t, summary.Failed)
	})

	t.Run("scopes to one account", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := newPositionHandler(t, db)
		_, childA := testutil.CreateChildAccount(t, db, "user-1")
		_, childB := testutil.CreateChildAccount(t, db, "user-2")
		fund := testutil.CreateFund(t, db, testutil.MakeFundCode())
		testutil.NewLedgerEntry(childA.ID, fund.ID).Build(t, db)
		testutil.NewLedgerEntry(childB.ID, fund.ID).Build(t, db)

		w := httptest.NewRecorder()
		handler.RecalculatePositions(w, testutil.NewJSONRequest(http.MethodPost, "/api/position/recalculate",
			request.RecalculateRequest{AccountID: &childA.ID}, nil))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, 1, decode[model.RecalculateSummary](t, w).Pairs)
	})

	t.Run("failed pairs surface as 500 with the summary", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := newPositionHandler(t, db)
		root := testutil.CreateRootAccount(t, db, "user-1", "Main")
		fund := testutil.CreateFund(t, db, testutil.MakeFundCode())
		testutil.NewLedgerEntry(root.ID, fund.ID).Build(t, db)

		w := httptest.NewRecorder()
		handler.RecalculatePositions(w, httptest.NewRequest(http.MethodPost, "/api/position/recalculate", nil))

		require.Equal(t, http.StatusInternalServerError, w.Code)
		body := decode[struct {
			Error   string                   `json:"error"`
			Details model.RecalculateSummary `json:"details"`
		}](t, w)
		assert.Equal(t, "position recalculation incomplete", body.Error)
		require.Len(t, body.Details.Failed, 1)
		assert.Equal(t, root.ID, body.Details.Failed[0].AccountID)
	})
}
