package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ndewijer/fundval-backend/internal/api/handlers"
	"github.com/ndewijer/fundval-backend/internal/api/request"
	"github.com/ndewijer/fundval-backend/internal/importer"
	"github.com/ndewijer/fundval-backend/internal/model"
	"github.com/ndewijer/fundval-backend/internal/repository"
	"github.com/ndewijer/fundval-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedBody(ownerID string) request.ImportRequest {
	return request.ImportRequest{
		OwnerID: ownerID,
		Feed: importer.Feed{Accounts: []importer.FeedAccount{{
			Account: importer.Account{ID: "A1", Name: "Broker X"},
			Holdings: []importer.Holding{
				testutil.MakeHolding("000001", "Alpha", "100", "10", "1000", 2024, 1, 1),
			},
		}}},
	}
}

// TestImportHandler_ImportFeed tests importing an uploaded broker feed.
//
// WHY: The upload is the only import path that works without a broker API,
// so it must reconcile exactly like the pull import.
func TestImportHandler_ImportFeed(t *testing.T) {
	ctx := context.Background()

	t.Run("imports the feed", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		handler := handlers.NewImportHandler(testutil.NewTestImportService(t, db), nil)

		// Execute
		w := httptest.NewRecorder()
		handler.ImportFeed(w, testutil.NewJSONRequest(http.MethodPost, "/api/import", feedBody("user-1"), nil))

		// Assert
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, model.ImportResult{AccountsCreated: 1, HoldingsCreated: 1, Recalculated: 1}, decode[model.ImportResult](t, w))

		child, err := repository.NewAccountRepository(db).GetAccountByName(ctx, "user-1", "Broker X")
		require.NoError(t, err)
		assert.False(t, child.IsRoot())
	})

	t.Run("second upload is skipped", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := handlers.NewImportHandler(testutil.NewTestImportService(t, db), nil)

		w := httptest.NewRecorder()
		handler.ImportFeed(w, testutil.NewJSONRequest(http.MethodPost, "/api/import", feedBody("user-1"), nil))
		require.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		handler.ImportFeed(w, testutil.NewJSONRequest(http.MethodPost, "/api/import", feedBody("user-1"), nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, model.ImportResult{AccountsSkipped: 1, HoldingsSkipped: 1}, decode[model.ImportResult](t, w))
	})

	t.Run("feed without account names is rejected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := handlers.NewImportHandler(testutil.NewTestImportService(t, db), nil)
		body := feedBody("user-1")
		body.Accounts[0].Name = ""

		w := httptest.NewRecorder()
		handler.ImportFeed(w, testutil.NewJSONRequest(http.MethodPost, "/api/import", body, nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid overwrite flag is rejected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := handlers.NewImportHandler(testutil.NewTestImportService(t, db), nil)

		w := httptest.NewRecorder()
		handler.ImportFeed(w, testutil.NewJSONRequest(http.MethodPost, "/api/import?overwrite=maybe", feedBody("user-1"), nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

// TestImportHandler_ImportBroker tests the pull import from a broker API.
func TestImportHandler_ImportBroker(t *testing.T) {
	t.Run("503 without a configured broker", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := handlers.NewImportHandler(testutil.NewTestImportService(t, db), nil)

		w := httptest.NewRecorder()
		handler.ImportBroker(w, testutil.NewRequestWithQueryParams(http.MethodPost, "/api/import/broker", map[string]string{"owner": "user-1"}))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("pulls from the broker", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		source := testutil.NewMockSource().WithAccount("A1", "Broker X",
			testutil.MakeHolding("000001", "Alpha", "100", "10", "1000", 2024, 1, 1))
		handler := handlers.NewImportHandler(testutil.NewTestImportService(t, db), source)

		w := httptest.NewRecorder()
		handler.ImportBroker(w, testutil.NewRequestWithQueryParams(http.MethodPost, "/api/import/broker", map[string]string{"owner": "user-1"}))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, 1, decode[model.ImportResult](t, w).HoldingsCreated)
	})

	t.Run("broker failure is a bad gateway", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		source := testutil.NewMockSource().WithError(errors.New("connection refused"))
		handler := handlers.NewImportHandler(testutil.NewTestImportService(t, db), source)

		w := httptest.NewRecorder()
		handler.ImportBroker(w, testutil.NewRequestWithQueryParams(http.MethodPost, "/api/import/broker", map[string]string{"owner": "user-1"}))

		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("missing owner is a bad request", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		source := testutil.NewMockSource()
		handler := handlers.NewImportHandler(testutil.NewTestImportService(t, db), source)

		w := httptest.NewRecorder()
		handler.ImportBroker(w, httptest.NewRequest(http.MethodPost, "/api/import/broker", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Zero(t, source.FetchCount)
	})
}
