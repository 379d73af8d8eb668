package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ndewijer/fundval-backend/internal/apperrors"
	"github.com/ndewijer/fundval-backend/internal/model"
	"github.com/ndewijer/fundval-backend/internal/repository"
	"github.com/ndewijer/fundval-backend/internal/testutil"
	"github.com/ndewijer/fundval-backend/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestImportService_Import tests reconciling broker holdings into the ledger.
//
// WHY: Imports run repeatedly against the same broker. A plain re-run must not
// duplicate anything, an overwrite must rebuild from the broker alone, and
// malformed holdings must be skipped without failing the whole import.
func TestImportService_Import(t *testing.T) {
	ctx := context.Background()

	t.Run("creates accounts, entries and positions", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestImportService(t, db)
		source := testutil.NewMockSource().WithAccount("A1", "Broker X",
			testutil.MakeHolding("000001", "Alpha", "100.12345", "1.23456", "123.456", 2024, 1, 1),
			testutil.MakeHolding("000002", "", "10", "2", "20", 2024, 1, 2),
		)

		// Execute
		result, err := svc.Import(ctx, "user-1", source, false)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, model.ImportResult{AccountsCreated: 1, HoldingsCreated: 2, Recalculated: 2}, result)

		accountRepo := repository.NewAccountRepository(db)
		parent, err := accountRepo.GetAccountByName(ctx, "user-1", testutil.DefaultImportParent)
		require.NoError(t, err)
		assert.True(t, parent.IsRoot())
		child, err := accountRepo.GetAccountByName(ctx, "user-1", "Broker X")
		require.NoError(t, err)
		require.NotNil(t, child.ParentID)
		assert.Equal(t, parent.ID, *child.ParentID)

		fundRepo := repository.NewFundRepository(db)
		alpha, err := fundRepo.GetFundByCode(ctx, "000001")
		require.NoError(t, err)
		assert.Equal(t, "Alpha", alpha.Name)
		unnamed, err := fundRepo.GetFundByCode(ctx, "000002")
		require.NoError(t, err)
		assert.Equal(t, "000002", unnamed.Name)

		entries, err := repository.NewLedgerRepository(db).GetEntriesForPair(ctx, child.ID, alpha.ID)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, model.EntryTypeBuy, entries[0].Type)
		assert.True(t, entries[0].BeforeCutoff)
		assertDec(t, "100.1234", entries[0].Share)
		assertDec(t, "1.2345", entries[0].Nav)
		assertDec(t, "123.45", entries[0].Amount)

		pos, err := repository.NewPositionRepository(db).GetPositionByPair(ctx, child.ID, alpha.ID)
		require.NoError(t, err)
		assertDec(t, "100.1234", pos.HoldingShare)
		assertDec(t, "123.45", pos.HoldingCost)
	})

	t.Run("re-running is idempotent", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestImportService(t, db)
		source := testutil.NewMockSource().WithAccount("A1", "Broker X",
			testutil.MakeHolding("000001", "Alpha", "100", "10", "1000", 2024, 1, 1),
		)

		_, err := svc.Import(ctx, "user-1", source, false)
		require.NoError(t, err)

		result, err := svc.Import(ctx, "user-1", source, false)

		require.NoError(t, err)
		assert.Equal(t, model.ImportResult{AccountsSkipped: 1, HoldingsSkipped: 1}, result)

		entries, err := testutil.NewTestLedgerService(t, db).ListEntries(ctx, model.LedgerFilter{OwnerID: "user-1"})
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("overwrite rebuilds the account from the broker", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestImportService(t, db)

		first := testutil.NewMockSource().WithAccount("A1", "Broker X",
			testutil.MakeHolding("000001", "Alpha", "100", "10", "1000", 2024, 1, 1),
			testutil.MakeHolding("000002", "Beta", "10", "1", "10", 2024, 1, 1),
		)
		_, err := svc.Import(ctx, "user-1", first, false)
		require.NoError(t, err)

		second := testutil.NewMockSource().WithAccount("A1", "Broker X",
			testutil.MakeHolding("000001", "Alpha", "50", "12", "600", 2024, 1, 1),
		)
		result, err := svc.Import(ctx, "user-1", second, true)

		require.NoError(t, err)
		assert.Equal(t, 1, result.HoldingsCreated)
		assert.Equal(t, 2, result.Recalculated)

		child, err := repository.NewAccountRepository(db).GetAccountByName(ctx, "user-1", "Broker X")
		require.NoError(t, err)
		alpha, err := repository.NewFundRepository(db).GetFundByCode(ctx, "000001")
		require.NoError(t, err)
		beta, err := repository.NewFundRepository(db).GetFundByCode(ctx, "000002")
		require.NoError(t, err)

		positionRepo := repository.NewPositionRepository(db)
		pos, err := positionRepo.GetPositionByPair(ctx, child.ID, alpha.ID)
		require.NoError(t, err)
		assertDec(t, "50", pos.HoldingShare)
		assertDec(t, "600", pos.HoldingCost)
		_, err = positionRepo.GetPositionByPair(ctx, child.ID, beta.ID)
		assert.ErrorIs(t, err, apperrors.ErrPositionNotFound)
	})

	t.Run("unusable holdings and accounts are skipped", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestImportService(t, db)
		mainRoot := testutil.CreateRootAccount(t, db, "user-1", "Main")

		source := testutil.NewMockSource().
			WithAccount("A1", "Broker X",
				testutil.MakeHolding("", "No Code", "1", "1", "1", 2024, 1, 1),
				testutil.MakeHolding("000001", "Alpha", "1", "1", "1", 2024, 1, 1),
			).
			WithAccount("A2", "  ",
				testutil.MakeHolding("000001", "Alpha", "1", "1", "1", 2024, 1, 1),
			).
			WithAccount("A3", "Main",
				testutil.MakeHolding("000001", "Alpha", "1", "1", "1", 2024, 1, 1),
				testutil.MakeHolding("000002", "Beta", "1", "1", "1", 2024, 1, 1),
			)

		result, err := svc.Import(ctx, "user-1", source, false)

		require.NoError(t, err)
		assert.Equal(t, 1, result.AccountsCreated)
		assert.Equal(t, 1, result.AccountsSkipped)
		assert.Equal(t, 1, result.HoldingsCreated)
		assert.Equal(t, 4, result.HoldingsSkipped)

		count, err := repository.NewLedgerRepository(db).CountEntriesForAccount(ctx, mainRoot.ID)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("import parent name taken by a child account", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestImportService(t, db)
		root := testutil.CreateRootAccount(t, db, "user-1", "Main")
		testutil.NewAccount("user-1").WithName(testutil.DefaultImportParent).WithParent(root.ID).Build(t, db)

		source := testutil.NewMockSource().WithAccount("A1", "Broker X",
			testutil.MakeHolding("000001", "Alpha", "1", "1", "1", 2024, 1, 1),
		)
		_, err := svc.Import(ctx, "user-1", source, false)

		assert.ErrorIs(t, err, apperrors.ErrAccountDepthExceeded)
		_, err = repository.NewAccountRepository(db).GetAccountByName(ctx, "user-1", "Broker X")
		assert.ErrorIs(t, err, apperrors.ErrAccountNotFound)
	})

	t.Run("source failure writes nothing", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestImportService(t, db)
		source := testutil.NewMockSource().WithError(errors.New("broker unavailable"))

		_, err := svc.Import(ctx, "user-1", source, false)

		assert.ErrorIs(t, err, apperrors.ErrFailedToImport)
		nodes, err := testutil.NewTestAccountService(t, db).ListAccounts(ctx, "user-1")
		require.NoError(t, err)
		assert.Empty(t, nodes)
	})

	t.Run("owner is required", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestImportService(t, db)
		source := testutil.NewMockSource()

		_, err := svc.Import(ctx, " ", source, false)

		var verr *validation.Error
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "ownerId")
		assert.Zero(t, source.FetchCount)
	})
}
