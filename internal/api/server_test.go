package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/Veraticus/spiceflow/internal/category"
	"github.com/Veraticus/spiceflow/internal/common"
	"github.com/Veraticus/spiceflow/internal/dashboard"
	"github.com/Veraticus/spiceflow/internal/model"
	"github.com/Veraticus/spiceflow/internal/plaid"
	"github.com/Veraticus/spiceflow/internal/syncer"
	"github.com/Veraticus/spiceflow/internal/testutil"
)

type fixture struct {
	db       *testutil.TestDB
	provider *plaid.MockClient
	server   *Server
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	return newFixtureWithSyncStore(t, opts, func(s syncer.Store) syncer.Store { return s })
}

// newFixtureWithSyncStore lets a test wrap the store the sync coordinator
// writes through.
func newFixtureWithSyncStore(t *testing.T, opts Options, wrap func(syncer.Store) syncer.Store) *fixture {
	t.Helper()
	ctx := context.Background()

	db := testutil.SetupTestDB(t)
	provider := plaid.NewMockClient()

	var dash *dashboard.Service
	resolver, err := category.NewResolver(ctx, db.Storage, category.WithOnChange(func() { dash.Invalidate() }))
	require.NoError(t, err)
	dash = dashboard.NewService(db.Storage, resolver, dashboard.WithClock(func() time.Time {
		return time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	}))

	coordinator := syncer.New(wrap(db.Storage), provider)
	server := NewServer(Deps{
		Dashboard: dash,
		Resolver:  resolver,
		Syncer:    coordinator,
		Linker:    syncer.NewLinker(provider, db.Storage),
		Seeder:    syncer.NewSeeder(provider, coordinator),
	}, opts)

	return &fixture{db: db, provider: provider, server: server}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, kind common.Kind) {
	t.Helper()
	assert.Equal(t, status, rec.Code, rec.Body.String())
	body := decode[errorResponse](t, rec)
	assert.Equal(t, string(kind), body.Kind)
	assert.NotEmpty(t, body.Error)
}

func TestDashboard(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	acc := f.db.Account("acc-1", "Checking", "0000")
	f.db.Transactions(
		testutil.Txn("t1", acc).Amount("12.50").Primary("FOOD_AND_DRINK"),
		testutil.Txn("t2", acc).Amount("7.50").Primary("FOOD_AND_DRINK"),
	)

	rec := f.do(t, http.MethodGet, "/api/dashboard?month=2024-03&account=all", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	resp := decode[dashboard.Response](t, rec)
	assert.Equal(t, "2024-03", resp.Month)
	assert.Equal(t, "20.00", resp.Totals.Spending.StringFixed(2))
	assert.Len(t, resp.Transactions, 2)
	assert.Len(t, resp.Graph.Edges, 1)

	rec = f.do(t, http.MethodGet, "/api/dashboard?shape=tripartite&exclude=FOOD_AND_DRINK", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[dashboard.Response](t, rec)
	assert.True(t, resp.Totals.Spending.IsZero())
	assert.Empty(t, resp.Transactions)
	assert.Zero(t, resp.Matched)
}

func TestDashboard_InvalidMonth(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	rec := f.do(t, http.MethodGet, "/api/dashboard?month=2024-3", "")
	assertError(t, rec, http.StatusBadRequest, common.KindValidation)
}

func TestOverrides(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	acc := f.db.Account("acc-1", "Checking", "")
	f.db.Transactions(testutil.Txn("t1", acc).Primary("FOOD_AND_DRINK"))

	rec := f.do(t, http.MethodPost, "/api/overrides", `{"transactionId":"t1","category":"Groceries"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	dash := decode[dashboard.Response](t, f.do(t, http.MethodGet, "/api/dashboard?month=2024-03", ""))
	require.Len(t, dash.Transactions, 1)
	assert.Equal(t, "Groceries", dash.Transactions[0].Category)
	assert.Equal(t, category.SourceOverride, dash.Transactions[0].Source)

	rec = f.do(t, http.MethodPost, "/api/overrides", `{"transactionId":"t1","category":null}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, true, body["cleared"])

	dash = decode[dashboard.Response](t, f.do(t, http.MethodGet, "/api/dashboard?month=2024-03", ""))
	assert.Equal(t, "FOOD_AND_DRINK", dash.Transactions[0].Category)
}

func TestOverrides_Errors(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	tests := []struct {
		name   string
		body   string
		status int
		kind   common.Kind
	}{
		{name: "unknown transaction", body: `{"transactionId":"nope","category":"X"}`, status: http.StatusNotFound, kind: common.KindNotFound},
		{name: "missing id", body: `{"category":"X"}`, status: http.StatusBadRequest, kind: common.KindValidation},
		{name: "empty category", body: `{"transactionId":"t1","category":"  "}`, status: http.StatusBadRequest, kind: common.KindValidation},
		{name: "malformed", body: `{"transactionId":`, status: http.StatusBadRequest, kind: common.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/overrides", tt.body)
			assertError(t, rec, tt.status, tt.kind)
		})
	}
}

func TestRules(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	acc := f.db.Account("acc-1", "Checking", "")
	f.db.Transactions(
		testutil.Txn("t1", acc).Merchant("STARBUCKS #123"),
		testutil.Txn("t2", acc).Merchant("Whole Foods"),
	)

	rec := f.do(t, http.MethodPost, "/api/rules", `{"pattern":"STARBUCKS","category":"Coffee"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode[map[string]any](t, rec)
	assert.EqualValues(t, 1, body["applied"])

	rec = f.do(t, http.MethodPost, "/api/rules", `{"matchType":"regex","pattern":"(?i)whole","category":"Groceries","applyNow":false}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body = decode[map[string]any](t, rec)
	assert.Nil(t, body["applied"])

	rec = f.do(t, http.MethodGet, "/api/rules", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Rules []model.Rule `json:"rules"`
	}](t, rec)
	require.Len(t, list.Rules, 2)
	assert.Equal(t, model.MatchContains, list.Rules[0].MatchType)
	assert.Equal(t, model.MatchRegex, list.Rules[1].MatchType)

	dash := decode[dashboard.Response](t, f.do(t, http.MethodGet, "/api/dashboard?month=2024-03", ""))
	categories := map[string]string{}
	for _, txn := range dash.Transactions {
		categories[txn.ID] = txn.Category
	}
	assert.Equal(t, "Coffee", categories["t1"])
	assert.Equal(t, "Groceries", categories["t2"])
}

func TestRules_Validation(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	for _, body := range []string{
		`{"matchType":"glob","pattern":"x","category":"X"}`,
		`{"pattern":"","category":"X"}`,
		`{"pattern":"x","category":""}`,
		`{"matchType":"regex","pattern":"([","category":"X"}`,
	} {
		rec := f.do(t, http.MethodPost, "/api/rules", body)
		assertError(t, rec, http.StatusBadRequest, common.KindValidation)
	}

	rec := f.do(t, http.MethodGet, "/api/rules", "")
	list := decode[map[string][]model.Rule](t, rec)
	assert.NotNil(t, list["rules"])
	assert.Empty(t, list["rules"])
}

func syncPage() *model.SyncPage {
	food := "FOOD_AND_DRINK"
	return &model.SyncPage{
		NextCursor: "c1",
		Accounts:   []model.ProviderAccount{{ExternalID: "acc-1", Name: "Checking", Type: "depository"}},
		Added: []model.ProviderTransaction{{
			ExternalID:        "t1",
			AccountExternalID: "acc-1",
			Date:              "2024-03-10",
			Name:              "Cafe",
			Amount:            4.25,
			CategoryPrimary:   &food,
		}},
	}
}

func TestSync(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	item := f.db.Item("item-a")
	f.provider.AddPage(item.AccessToken, "", syncPage())

	// Prime the dashboard cache so the sync must invalidate it.
	before := decode[dashboard.Response](t, f.do(t, http.MethodGet, "/api/dashboard?month=2024-03", ""))
	assert.Empty(t, before.Transactions)

	rec := f.do(t, http.MethodPost, "/api/plaid/sync", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[struct {
		Results []itemSyncResponse `json:"results"`
	}](t, rec)
	require.Len(t, body.Results, 1)
	require.NotNil(t, body.Results[0].Result)
	assert.Equal(t, 1, body.Results[0].Result.Added)
	assert.Equal(t, "c1", body.Results[0].Result.Cursor)

	after := decode[dashboard.Response](t, f.do(t, http.MethodGet, "/api/dashboard?month=2024-03", ""))
	require.Len(t, after.Transactions, 1)
	assert.Equal(t, "4.25", after.Totals.Spending.StringFixed(2))
}

func TestSync_Errors(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	item := f.db.Item("item-a")

	rec := f.do(t, http.MethodPost, "/api/plaid/sync", `{"itemId":999}`)
	assertError(t, rec, http.StatusNotFound, common.KindNotFound)

	rec = f.do(t, http.MethodPost, "/api/plaid/sync", `{"itemId":-1}`)
	assertError(t, rec, http.StatusBadRequest, common.KindValidation)

	f.provider.TransactionsSyncFn = func(context.Context, string, string) (*model.SyncPage, error) {
		return nil, common.ProviderError("transactions sync", errors.New("ITEM_LOGIN_REQUIRED"))
	}
	rec = f.do(t, http.MethodPost, "/api/plaid/sync", fmt.Sprintf(`{"itemId":%d}`, item.ID))
	assertError(t, rec, http.StatusBadGateway, common.KindProvider)

	rec = f.do(t, http.MethodPost, "/api/plaid/sync", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Results []itemSyncResponse `json:"results"`
	}](t, rec)
	require.Len(t, body.Results, 1)
	assert.Equal(t, string(common.KindProvider), body.Results[0].Kind)
	assert.Nil(t, body.Results[0].Result)
}

// cursorFailingStore commits transactions but cannot advance the cursor.
type cursorFailingStore struct {
	syncer.Store
}

func (cursorFailingStore) SetItemCursor(context.Context, int64, string) error {
	return common.StoreError("failed to update cursor", errors.New("database is locked"))
}

func TestSync_FailedPassInvalidatesDashboard(t *testing.T) {
	f := newFixtureWithSyncStore(t, DefaultOptions(), func(s syncer.Store) syncer.Store {
		return cursorFailingStore{Store: s}
	})
	item := f.db.Item("item-a")
	f.provider.AddPage(item.AccessToken, "", syncPage())

	before := decode[dashboard.Response](t, f.do(t, http.MethodGet, "/api/dashboard?month=2024-03", ""))
	assert.Empty(t, before.Transactions)

	rec := f.do(t, http.MethodPost, "/api/plaid/sync", fmt.Sprintf(`{"itemId":%d}`, item.ID))
	assertError(t, rec, http.StatusInternalServerError, common.KindStore)

	// The rows written before the cursor failure are visible immediately.
	after := decode[dashboard.Response](t, f.do(t, http.MethodGet, "/api/dashboard?month=2024-03", ""))
	require.Len(t, after.Transactions, 1)
}

func TestLinkAndExchange(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	rec := f.do(t, http.MethodPost, "/api/plaid/link-token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	token := decode[map[string]string](t, rec)
	assert.True(t, strings.HasPrefix(token["link_token"], "link-sandbox-spiceflow-"))

	rec = f.do(t, http.MethodPost, "/api/plaid/exchange", `{"public_token":"public-123"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[map[string]itemResponse](t, rec)
	assert.Equal(t, "item-public-123", body["item"].ExternalID)
	assert.Positive(t, body["item"].ID)

	rec = f.do(t, http.MethodPost, "/api/plaid/exchange", `{"public_token":""}`)
	assertError(t, rec, http.StatusBadRequest, common.KindValidation)
}

func TestSeed(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	rec := f.do(t, http.MethodPost, "/api/plaid/seed", "")
	assertError(t, rec, http.StatusBadRequest, common.KindValidation)

	f.db.Item("item-a")

	rec = f.do(t, http.MethodPost, "/api/plaid/seed", `{"count":101}`)
	assertError(t, rec, http.StatusBadRequest, common.KindValidation)

	rec = f.do(t, http.MethodPost, "/api/plaid/seed", `{"count":5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[struct {
		Results []seedItemResponse `json:"results"`
	}](t, rec)
	require.Len(t, body.Results, 1)
	assert.Equal(t, 5, body.Results[0].Created)
	assert.Empty(t, body.Results[0].Error)
	require.Len(t, f.provider.SandboxCalls, 1)
	assert.Len(t, f.provider.SandboxCalls[0].Transactions, 5)
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, Options{RateLimit: rate.Every(time.Hour), Burst: 1})

	rec := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", decode[errorResponse](t, rec).Kind)
}

func TestRequestIDPropagation(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	id := "3f2504e0-4f89-41d3-9a0c-0305e82c3301"
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, id)
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	assert.Equal(t, id, rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid")
	rec = httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	assert.NotEqual(t, "not-a-uuid", rec.Header().Get(RequestIDHeader))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(common.KindValidation))
	assert.Equal(t, http.StatusNotFound, statusFor(common.KindNotFound))
	assert.Equal(t, http.StatusBadGateway, statusFor(common.KindProvider))
	assert.Equal(t, http.StatusInternalServerError, statusFor(common.KindStore))
	assert.Equal(t, http.StatusInternalServerError, statusFor(common.KindInternal))
}
