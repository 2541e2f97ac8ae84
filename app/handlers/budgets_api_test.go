package handlers_test

import (
	"encoding/json"
	"testing"

	"github.com/go-obvious/server/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costplane/costplane/app/domain/aggregate"
	"github.com/costplane/costplane/app/domain/budget"
	"github.com/costplane/costplane/app/handlers"
	"github.com/costplane/costplane/app/types"
)

func newBudgetsAPI(t *testing.T) *handlers.BudgetsAPI {
	t.Helper()
	records, _ := testStores(t)
	seedRecords(t, records, costRecord("A1", "EC2", 4000, nil))
	tracker := budget.New(aggregate.New(records, "USD"), 5.0)
	return handlers.NewBudgetsAPI("/", testSnapshot(), tracker)
}

func TestUnit_Handlers_Budgets_List(t *testing.T) {
	api := newBudgetsAPI(t)

	path := "/?as_of=2026-03-16"
	resp, err := test.InvokeService(api.Service, path, *createRequest("GET", path, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	var statuses []types.BudgetStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&statuses))
	require.Len(t, statuses, 1)
	assert.Equal(t, "platform-monthly", statuses[0].Budget)
	assert.Equal(t, types.BudgetOnTrack, statuses[0].State)
	assert.Equal(t, int64(4000), statuses[0].ConsumedMinor)
}

func TestUnit_Handlers_Budgets_Get(t *testing.T) {
	api := newBudgetsAPI(t)

	path := "/platform-monthly?as_of=2026-03-16"
	resp, err := test.InvokeService(api.Service, path, *createRequest("GET", path, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	var status types.BudgetStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.InDelta(t, 40.0, status.ConsumedPct, 1e-9)
}

func TestUnit_Handlers_Budgets_GetUnknown(t *testing.T) {
	api := newBudgetsAPI(t)

	path := "/no-such-budget"
	resp, err := test.InvokeService(api.Service, path, *createRequest("GET", path, nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 404, resp.StatusCode)
}

func TestUnit_Handlers_Budgets_BadAsOf(t *testing.T) {
	api := newBudgetsAPI(t)

	path := "/?as_of=yesterday"
	resp, err := test.InvokeService(api.Service, path, *createRequest("GET", path, nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 400, resp.StatusCode)
}
