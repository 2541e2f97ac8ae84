package handlers_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/costplane/costplane/app/config"
	"github.com/costplane/costplane/app/storage/repo"
	"github.com/costplane/costplane/app/storage/sqlite"
	"github.com/costplane/costplane/app/types"
)

func createRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, "http://localhost"+path, body)
	// test.InvokeService sends the request through a real client, which
	// rejects requests with RequestURI set.
	req.RequestURI = ""
	return req
}

var marchWindow = types.TimeRange{
	Start: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
}

func testSnapshot() *config.Snapshot {
	return &config.Snapshot{
		Version:     "test",
		OrgCurrency: "USD",
		Budgets: []types.Budget{{
			Name:        "platform-monthly",
			AmountMinor: 10000,
			Currency:    "USD",
			Period:      types.BudgetMonthly,
			AnchorDate:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		}},
		AllocationRules: []types.AllocationRule{{
			Name:      "by-team",
			Dimension: types.AllocateByTeam,
			Method:    types.AllocationTagBased,
			TagKey:    "team",
		}},
	}
}

func testStores(t *testing.T) (*repo.CostRecordRepo, *repo.ViolationRepo) {
	t.Helper()
	db, err := sqlite.NewSQLiteDriver(sqlite.InMemoryDSN)
	require.NoError(t, err)
	records, err := repo.NewCostRecordRepo(db)
	require.NoError(t, err)
	violations, err := repo.NewViolationRepo(db)
	require.NoError(t, err)
	return records, violations
}

func seedRecords(t *testing.T, store *repo.CostRecordRepo, records ...types.CostRecord) {
	t.Helper()
	byAccount := map[string][]types.CostRecord{}
	for _, r := range records {
		byAccount[r.AccountID] = append(byAccount[r.AccountID], r)
	}
	for account, batch := range byAccount {
		require.NoError(t, store.CommitBatch(t.Context(), types.CloudAWS, account, marchWindow, batch))
	}
}

func costRecord(account, service string, amount int64, tags types.Tags) types.CostRecord {
	return types.CostRecord{
		Cloud:         types.CloudAWS,
		AccountID:     account,
		Service:       service,
		Tags:          tags,
		PeriodStart:   marchWindow.Start,
		PeriodEnd:     marchWindow.Start.AddDate(0, 0, 1),
		AmountMinor:   amount,
		Currency:      "USD",
		IngestedAt:    marchWindow.Start,
		SourceBatchID: "b1",
	}
}
