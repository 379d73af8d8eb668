package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/ndewijer/fundval-backend/internal/api/request"
	"github.com/ndewijer/fundval-backend/internal/apperrors"
	"github.com/ndewijer/fundval-backend/internal/model"
	"github.com/ndewijer/fundval-backend/internal/repository"
	"github.com/ndewijer/fundval-backend/internal/service"
	"github.com/ndewijer/fundval-backend/internal/testutil"
	"github.com/ndewijer/fundval-backend/internal/validation"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFundService_GetOrCreateFund tests fund lookup by code.
//
// WHY: Funds are created on first reference from several places. A second
// reference with the same code must resolve to the same row.
func TestFundService_GetOrCreateFund(t *testing.T) {
	ctx := context.Background()

	t.Run("creates then reuses", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestFundService(t, db)

		first, created, err := svc.GetOrCreateFund(ctx, request.GetOrCreateFundRequest{Code: " 000001 ", Name: "Alpha", Type: "equity"})
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "000001", first.Code)
		assert.Equal(t, "equity", first.Type)

		second, created, err := svc.GetOrCreateFund(ctx, request.GetOrCreateFundRequest{Code: "000001", Name: "Other Name"})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "Alpha", second.Name)
	})

	t.Run("name defaults to code", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestFundService(t, db)

		fund, _, err := svc.GetOrCreateFund(ctx, request.GetOrCreateFundRequest{Code: "000002"})

		require.NoError(t, err)
		assert.Equal(t, "000002", fund.Name)
	})

	t.Run("code is required", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestFundService(t, db)

		_, _, err := svc.GetOrCreateFund(ctx, request.GetOrCreateFundRequest{Code: "  "})

		var verr *validation.Error
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "code")
	})
}

// TestFundService_UpdateNav tests NAV bookkeeping.
//
// WHY: NAV updates feed profit and loss only. They must never touch the
// ledger-derived holding values.
func TestFundService_UpdateNav(t *testing.T) {
	ctx := context.Background()

	t.Run("records the confirmed nav without recalculating positions", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestFundService(t, db)
		ledger := testutil.NewTestLedgerService(t, db)
		_, child := testutil.CreateChildAccount(t, db, "user-1")
		fund := testutil.CreateFund(t, db, "000001")
		_, err := ledger.CreateEntry(ctx, buyRequest(child.ID, fund.ID, "2024-01-01", "100", "1000"))
		require.NoError(t, err)

		updated, err := svc.UpdateNav(ctx, fund.ID, request.UpdateNavRequest{Nav: testutil.Dec("11.5"), Date: "2024-03-01"})

		require.NoError(t, err)
		require.True(t, updated.LatestNav.Valid)
		assertDec(t, "11.5", updated.LatestNav.Decimal)
		require.NotNil(t, updated.LatestNavDate)
		assert.Equal(t, testutil.Date(2024, 3, 1), *updated.LatestNavDate)

		pos, err := repository.NewPositionRepository(db).GetPositionByPair(ctx, child.ID, fund.ID)
		require.NoError(t, err)
		assertDec(t, "10", pos.HoldingNav)
	})

	t.Run("unknown fund", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestFundService(t, db)

		_, err := svc.UpdateNav(ctx, testutil.MakeID(), request.UpdateNavRequest{Nav: testutil.Dec("1"), Date: "2024-03-01"})

		assert.ErrorIs(t, err, apperrors.ErrFundNotFound)
	})

	t.Run("rejects non-positive nav", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestFundService(t, db)
		fund := testutil.CreateFund(t, db, "000001")

		_, err := svc.UpdateNav(ctx, fund.ID, request.UpdateNavRequest{Nav: testutil.Dec("0"), Date: "2024-03-01"})

		var verr *validation.Error
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "nav")
	})
}

// TestFundService_UpdateEstimate tests the intraday estimate cache.
func TestFundService_UpdateEstimate(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	svc := testutil.NewTestFundService(t, db)
	fund := testutil.CreateFund(t, db, "000001")

	updated, err := svc.UpdateEstimate(ctx, fund.ID, request.UpdateEstimateRequest{
		Nav:    testutil.Dec("1.2345"),
		Growth: testutil.Dec("-0.52"),
		Time:   "2024-03-01T14:30:00+08:00",
	})

	require.NoError(t, err)
	assertDec(t, "1.2345", updated.EstimateNav.Decimal)
	assertDec(t, "-0.52", updated.EstimateGrowth.Decimal)
	require.NotNil(t, updated.EstimateTime)
	assert.True(t, time.Date(2024, 3, 1, 6, 30, 0, 0, time.UTC).Equal(*updated.EstimateTime))

	funds, err := svc.ListFunds(ctx)
	require.NoError(t, err)
	assert.Len(t, funds, 1)
}

// TestSystemService tests health and version reporting.
func TestSystemService(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	svc := testutil.NewTestSystemService(t, db)

	assert.NoError(t, svc.CheckHealth())

	info, err := svc.CheckVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dev", info.AppVersion)
	assert.Positive(t, info.DbVersion)
}

// TestEstimateErrorRate tests the error rate of an estimate against the published NAV.
func TestEstimateErrorRate(t *testing.T) {
	tests := []struct {
		name     string
		estimate string
		actual   string
		want     string
	}{
		{"estimate below actual", "1.1370", "1.1490", "0.010444"},
		{"estimate above actual", "1.1610", "1.1490", "0.010444"},
		{"exact estimate", "2.5", "2.5", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := service.EstimateErrorRate(testutil.Dec(tt.estimate), testutil.Dec(tt.actual))

			require.True(t, got.Valid)
			assertDec(t, tt.want, got.Decimal)
		})
	}

	t.Run("no rate without a positive actual", func(t *testing.T) {
		assert.False(t, service.EstimateErrorRate(testutil.Dec("1.1"), testutil.Dec("0")).Valid)
	})
}

// TestFundService_NavHistory tests that confirmed NAVs are kept per date.
//
// WHY: The fund row only holds the latest NAV. The history is what estimate
// snapshots are scored against, so every date must keep exactly one NAV.
func TestFundService_NavHistory(t *testing.T) {
	ctx := context.Background()

	t.Run("nav updates are recorded once per date", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestFundService(t, db)
		fund := testutil.CreateFund(t, db, "000001")

		_, err := svc.UpdateNav(ctx, fund.ID, request.UpdateNavRequest{Nav: testutil.Dec("1.10"), Date: "2024-03-01"})
		require.NoError(t, err)
		_, err = svc.UpdateNav(ctx, fund.ID, request.UpdateNavRequest{Nav: testutil.Dec("1.12"), Date: "2024-03-01"})
		require.NoError(t, err)
		_, err = svc.UpdateNav(ctx, fund.ID, request.UpdateNavRequest{Nav: testutil.Dec("1.15"), Date: "2024-03-04"})
		require.NoError(t, err)

		navs, err := svc.ListNavHistory(ctx, fund.ID, model.NavHistoryFilter{})
		require.NoError(t, err)
		require.Len(t, navs, 2)
		assert.Equal(t, testutil.Date(2024, 3, 4), navs[0].NavDate)
		assertDec(t, "1.15", navs[0].UnitNav)
		assert.Equal(t, testutil.Date(2024, 3, 1), navs[1].NavDate)
		assertDec(t, "1.12", navs[1].UnitNav)
	})

	t.Run("range bounds are inclusive", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestFundService(t, db)
		fund := testutil.CreateFund(t, db, "000001")
		for day := 1; day <= 5; day++ {
			testutil.CreateNavHistory(t, db, fund.ID, testutil.Date(2024, 3, day), "1.0")
		}
		start, end := testutil.Date(2024, 3, 2), testutil.Date(2024, 3, 4)

		navs, err := svc.ListNavHistory(ctx, fund.ID, model.NavHistoryFilter{Start: &start, End: &end})

		require.NoError(t, err)
		require.Len(t, navs, 3)
		assert.Equal(t, end, navs[0].NavDate)
		assert.Equal(t, start, navs[2].NavDate)
	})

	t.Run("unknown fund", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestFundService(t, db)

		_, err := svc.ListNavHistory(ctx, testutil.MakeID(), model.NavHistoryFilter{})

		assert.ErrorIs(t, err, apperrors.ErrFundNotFound)
	})
}

// TestFundService_ImportNavHistory tests bulk NAV uploads.
func TestFundService_ImportNavHistory(t *testing.T) {
	ctx := context.Background()

	items := func(pairs ...string) request.ImportNavHistoryRequest {
		var req request.ImportNavHistoryRequest
		for i := 0; i < len(pairs); i += 2 {
			req.Items = append(req.Items, request.NavHistoryItem{Date: pairs[i], UnitNav: testutil.Dec(pairs[i+1])})
		}
		return req
	}

	t.Run("counts created and updated dates and moves the latest nav", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestFundService(t, db)
		fund := testutil.CreateFund(t, db, "000001")
		testutil.CreateNavHistory(t, db, fund.ID, testutil.Date(2024, 3, 1), "1.00")

		result, err := svc.ImportNavHistory(ctx, fund.ID, items("2024-03-04", "1.04", "2024-03-01", "1.01", "2024-03-05", "1.05"))

		require.NoError(t, err)
		assert.Equal(t, 2, result.Created)
		assert.Equal(t, 1, result.Updated)

		updated, err := svc.GetFund(ctx, fund.ID)
		require.NoError(t, err)
		assertDec(t, "1.05", updated.LatestNav.Decimal)
		require.NotNil(t, updated.LatestNavDate)
		assert.Equal(t, testutil.Date(2024, 3, 5), *updated.LatestNavDate)
	})

	t.Run("older history leaves the latest nav alone", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestFundService(t, db)
		fund := testutil.NewFund().WithLatestNav("2.00", testutil.Date(2024, 6, 1)).Build(t, db)

		_, err := svc.ImportNavHistory(ctx, fund.ID, items("2024-01-02", "1.50"))
		require.NoError(t, err)

		updated, err := svc.GetFund(ctx, fund.ID)
		require.NoError(t, err)
		assertDec(t, "2.00", updated.LatestNav.Decimal)
		assert.Equal(t, testutil.Date(2024, 6, 1), *updated.LatestNavDate)
	})

	t.Run("keeps stored optional values when omitted", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestFundService(t, db)
		fund := testutil.CreateFund(t, db, "000001")
		req := items("2024-03-01", "1.10")
		req.Items[0].AccumulatedNav = decimal.NewNullDecimal(testutil.Dec("3.10"))
		_, err := svc.ImportNavHistory(ctx, fund.ID, req)
		require.NoError(t, err)

		_, err = svc.UpdateNav(ctx, fund.ID, request.UpdateNavRequest{Nav: testutil.Dec("1.11"), Date: "2024-03-01"})
		require.NoError(t, err)

		navs, err := svc.ListNavHistory(ctx, fund.ID, model.NavHistoryFilter{})
		require.NoError(t, err)
		require.Len(t, navs, 1)
		assertDec(t, "1.11", navs[0].UnitNav)
		require.True(t, navs[0].AccumulatedNav.Valid)
		assertDec(t, "3.10", navs[0].AccumulatedNav.Decimal)
	})

	t.Run("rejects repeated dates", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestFundService(t, db)
		fund := testutil.CreateFund(t, db, "000001")

		_, err := svc.ImportNavHistory(ctx, fund.ID, items("2024-03-01", "1.0", "2024-03-01", "1.1"))

		var verr *validation.Error
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "items[1].date")
	})

	t.Run("unknown fund writes nothing", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestFundService(t, db)

		_, err := svc.ImportNavHistory(ctx, testutil.MakeID(), items("2024-03-01", "1.0"))

		assert.ErrorIs(t, err, apperrors.ErrFundNotFound)
		var count int
		require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM fund_nav_history`).Scan(&count))
		assert.Zero(t, count)
	})
}

// TestFundService_EstimateAccuracy tests that estimates are scored against published NAVs.
//
// WHY: An estimate and the NAV it predicts arrive in either order. The
// snapshot must end up scored no matter which comes first.
func TestFundService_EstimateAccuracy(t *testing.T) {
	ctx := context.Background()

	estimate := func(nav, ts, source string) request.UpdateEstimateRequest {
		return request.UpdateEstimateRequest{Nav: testutil.Dec(nav), Growth: testutil.Dec("0.1"), Time: ts, Source: source}
	}

	t.Run("nav after estimate scores the snapshot", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestFundService(t, db)
		fund := testutil.CreateFund(t, db, "000001")

		_, err := svc.UpdateEstimate(ctx, fund.ID, estimate("1.1370", "2024-03-01T14:59:00+08:00", "eastmoney"))
		require.NoError(t, err)
		_, err = svc.UpdateNav(ctx, fund.ID, request.UpdateNavRequest{Nav: testutil.Dec("1.1490"), Date: "2024-03-01"})
		require.NoError(t, err)

		report, err := svc.GetAccuracy(ctx, fund.ID)
		require.NoError(t, err)
		require.Len(t, report.Records, 1)
		rec := report.Records[0]
		assert.Equal(t, "eastmoney", rec.SourceName)
		assert.Equal(t, testutil.Date(2024, 3, 1), rec.EstimateDate)
		require.True(t, rec.ActualNav.Valid)
		assertDec(t, "1.149", rec.ActualNav.Decimal)
		require.True(t, rec.ErrorRate.Valid)
		assertDec(t, "0.010444", rec.ErrorRate.Decimal)
	})

	t.Run("estimate after nav is scored at once", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestFundService(t, db)
		fund := testutil.CreateFund(t, db, "000001")
		_, err := svc.UpdateNav(ctx, fund.ID, request.UpdateNavRequest{Nav: testutil.Dec("2.00"), Date: "2024-03-01"})
		require.NoError(t, err)

		_, err = svc.UpdateEstimate(ctx, fund.ID, estimate("2.02", "2024-03-01T15:00:00+08:00", ""))
		require.NoError(t, err)

		report, err := svc.GetAccuracy(ctx, fund.ID)
		require.NoError(t, err)
		require.Len(t, report.Records, 1)
		assert.Equal(t, service.DefaultEstimateSource, report.Records[0].SourceName)
		assertDec(t, "0.01", report.Records[0].ErrorRate.Decimal)
	})

	t.Run("snapshot day follows the timestamp offset", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestFundService(t, db)
		fund := testutil.CreateFund(t, db, "000001")

		_, err := svc.UpdateEstimate(ctx, fund.ID, estimate("1.0", "2024-03-02T00:30:00+08:00", "a"))
		require.NoError(t, err)

		report, err := svc.GetAccuracy(ctx, fund.ID)
		require.NoError(t, err)
		require.Len(t, report.Records, 1)
		assert.Equal(t, testutil.Date(2024, 3, 2), report.Records[0].EstimateDate)
	})

	t.Run("later estimate replaces the day's snapshot", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestFundService(t, db)
		fund := testutil.CreateFund(t, db, "000001")

		_, err := svc.UpdateEstimate(ctx, fund.ID, estimate("1.00", "2024-03-01T10:00:00+08:00", "a"))
		require.NoError(t, err)
		_, err = svc.UpdateEstimate(ctx, fund.ID, estimate("1.05", "2024-03-01T15:00:00+08:00", "a"))
		require.NoError(t, err)

		report, err := svc.GetAccuracy(ctx, fund.ID)
		require.NoError(t, err)
		require.Len(t, report.Records, 1)
		assertDec(t, "1.05", report.Records[0].EstimateNav)
		assert.False(t, report.Records[0].ErrorRate.Valid)
	})

	t.Run("sources are averaged separately", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestFundService(t, db)
		fund := testutil.CreateFund(t, db, "000001")
		for _, e := range []request.UpdateEstimateRequest{
			estimate("1.01", "2024-03-01T15:00:00+08:00", "a"),
			estimate("1.03", "2024-03-04T15:00:00+08:00", "a"),
			estimate("1.00", "2024-03-01T15:00:00+08:00", "b"),
			estimate("1.00", "2024-03-05T15:00:00+08:00", "b"),
		} {
			_, err := svc.UpdateEstimate(ctx, fund.ID, e)
			require.NoError(t, err)
		}
		_, err := svc.ImportNavHistory(ctx, fund.ID, request.ImportNavHistoryRequest{Items: []request.NavHistoryItem{
			{Date: "2024-03-01", UnitNav: testutil.Dec("1.00")},
			{Date: "2024-03-04", UnitNav: testutil.Dec("1.00")},
		}})
		require.NoError(t, err)

		report, err := svc.GetAccuracy(ctx, fund.ID)
		require.NoError(t, err)
		assert.Len(t, report.Records, 4)
		require.Len(t, report.Sources, 2)

		a, b := report.Sources[0], report.Sources[1]
		assert.Equal(t, "a", a.SourceName)
		assert.Equal(t, 2, a.Scored)
		assertDec(t, "0.02", a.MeanErrorRate)
		assert.Equal(t, "b", b.SourceName)
		assert.Equal(t, 2, b.Snapshots)
		assert.Equal(t, 1, b.Scored)
		assertDec(t, "0", b.MeanErrorRate)
	})

	t.Run("unknown fund", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestFundService(t, db)

		_, err := svc.GetAccuracy(ctx, testutil.MakeID())

		assert.ErrorIs(t, err, apperrors.ErrFundNotFound)
	})
}

// TestFundService_AuditAccuracy tests the repair sweep over one day's snapshots.
func TestFundService_AuditAccuracy(t *testing.T) {
	ctx := context.Background()
	day := testutil.Date(2024, 3, 1)

	// Setup: snapshots written without scoring, one fund with a published NAV.
	db := testutil.SetupTestDB(t)
	svc := testutil.NewTestFundService(t, db)
	published := testutil.CreateFund(t, db, "000001")
	pending := testutil.CreateFund(t, db, "000002")
	testutil.CreateEstimateSnapshot(t, db, published.ID, "a", day, "1.1370")
	testutil.CreateEstimateSnapshot(t, db, published.ID, "b", day, "1.1490")
	testutil.CreateEstimateSnapshot(t, db, pending.ID, "a", day, "2.0")
	testutil.CreateEstimateSnapshot(t, db, published.ID, "a", day.AddDate(0, 0, 1), "1.2")
	testutil.CreateNavHistory(t, db, published.ID, day, "1.1490")

	// Execute
	result, err := svc.AuditAccuracy(ctx, day.Add(13*time.Hour))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, day, result.Date)
	assert.Equal(t, 2, result.Scored)
	assert.Equal(t, 1, result.Pending)

	records, err := repository.NewAccuracyRepository(db).ListByFundAndDate(ctx, published.ID, day)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assertDec(t, "0.010444", records[0].ErrorRate.Decimal)
	assertDec(t, "0", records[1].ErrorRate.Decimal)

	again, err := svc.AuditAccuracy(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, result, again)
}
