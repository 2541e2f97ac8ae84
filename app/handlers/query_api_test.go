package handlers_test

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/go-obvious/server/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costplane/costplane/app/domain/aggregate"
	"github.com/costplane/costplane/app/domain/report"
	"github.com/costplane/costplane/app/handlers"
	"github.com/costplane/costplane/app/types"
)

func newQueryAPI(t *testing.T) *handlers.QueryAPI {
	t.Helper()
	records, _ := testStores(t)
	seedRecords(t, records,
		costRecord("A1", "EC2", 12000, types.Tags{"team": "backend"}),
		costRecord("A1", "S3", 3000, nil),
	)
	engine := aggregate.New(records, "USD")
	return handlers.NewQueryAPI("/", engine, report.NewBuilder(engine, nil))
}

func TestUnit_Handlers_Query_Aggregate(t *testing.T) {
	api := newQueryAPI(t)

	path := "/aggregate?group_by=service&from=2026-03-01&to=2026-04-01"
	resp, err := test.InvokeService(api.Service, path, *createRequest("GET", path, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	var result types.AggregateResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "EC2", result.Rows[0].Key)
	assert.Equal(t, int64(15000), result.TotalMinor)
}

func TestUnit_Handlers_Query_AggregateScoped(t *testing.T) {
	api := newQueryAPI(t)

	path := "/aggregate?group_by=service&from=2026-03-01&to=2026-04-01&tag=team:backend"
	resp, err := test.InvokeService(api.Service, path, *createRequest("GET", path, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	var result types.AggregateResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.Len(t, result.Rows, 1)
	assert.Equal(t, int64(12000), result.TotalMinor, "pct baseline is the filtered total")
	assert.InDelta(t, 100.0, result.Rows[0].PctOfTotal, 1e-9)
}

func TestUnit_Handlers_Query_AggregateCSV(t *testing.T) {
	api := newQueryAPI(t)

	path := "/aggregate?group_by=service&from=2026-03-01&to=2026-04-01&format=csv"
	resp, err := test.InvokeService(api.Service, path, *createRequest("GET", path, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "EC2,120.00,USD")
}

func TestUnit_Handlers_Query_AggregateBadRequest(t *testing.T) {
	api := newQueryAPI(t)

	for _, path := range []string{
		"/aggregate?group_by=region&from=2026-03-01&to=2026-04-01",
		"/aggregate?group_by=service",
		"/aggregate?group_by=service&from=2026-04-01&to=2026-03-01",
		"/aggregate?group_by=service&from=2026-03-01&to=2026-04-01&tag=noseparator",
	} {
		resp, err := test.InvokeService(api.Service, path, *createRequest("GET", path, nil))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, 400, resp.StatusCode, path)
	}
}

func TestUnit_Handlers_Query_Summary(t *testing.T) {
	api := newQueryAPI(t)

	path := "/summary?as_of=2026-03-15"
	resp, err := test.InvokeService(api.Service, path, *createRequest("GET", path, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	var summary report.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.Equal(t, int64(15000), summary.TotalMinor)
	assert.Equal(t, "USD", summary.Currency)
}
