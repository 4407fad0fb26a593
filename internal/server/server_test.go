package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/lensgrid/internal/export"
	"github.com/leapstack-labs/lensgrid/internal/grid"
	"github.com/leapstack-labs/lensgrid/internal/inputs"
	"github.com/leapstack-labs/lensgrid/internal/state"
	"github.com/leapstack-labs/lensgrid/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func setupServer(t *testing.T) (*Server, *state.SQLiteStore) {
	t.Helper()
	store, err := state.OpenStore(":memory:", testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	srv := NewServer(Config{
		Store:     store,
		Generator: grid.New(grid.Options{MaxPoints: 10_000}),
		Defaults:  inputs.Defaults(),
		Logger:    testutil.NewTestLogger(t),
	})
	return srv, store
}

func do(t *testing.T, h http.Handler, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := setupServer(t)
	rec := do(t, srv.Handler(), http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestGetInputs_Defaults(t *testing.T) {
	srv, _ := setupServer(t)
	rec := do(t, srv.Handler(), http.MethodGet, "/api/inputs", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp inputsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Stored)
	assert.Equal(t, inputs.Defaults().Map(), resp.Inputs)
}

func TestPutInputs(t *testing.T) {
	srv, store := setupServer(t)
	h := srv.Handler()

	events := srv.Notifier().Subscribe()
	defer srv.Notifier().Unsubscribe(events)

	rec := do(t, h, http.MethodPut, "/api/inputs", `{"sph_max": 4, "AXIS_STEP": "5"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp inputsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Stored)
	assert.Equal(t, "4", resp.Inputs[inputs.SPHMax])
	assert.Equal(t, "5", resp.Inputs[inputs.AxisStep])

	saved, err := store.LoadInputs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "4", saved[inputs.SPHMax])
	assert.Equal(t, "0.25", saved[inputs.SPHStep], "untouched fields are stored too")

	select {
	case <-events:
	case <-time.After(time.Second):
		t.Error("expected an input change notification")
	}

	rec = do(t, h, http.MethodGet, "/api/inputs", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Stored)
	assert.Equal(t, "4", resp.Inputs[inputs.SPHMax])
}

func TestPutInputs_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		errSubstr string
	}{
		{"malformed", `{"sph_max":`, "malformed JSON"},
		{"unknown field", `{"sph_begin": 1}`, "unknown field"},
		{"not a number", `{"sph_step": "abc"}`, "is not a number"},
		{"zero step", `{"cyl_step": 0}`, "step"},
		{"object value", `{"sph_max": {"a": 1}}`, "invalid input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, store := setupServer(t)
			rec := do(t, srv.Handler(), http.MethodPut, "/api/inputs", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Contains(t, resp.Error, tt.errSubstr)

			saved, err := store.LoadInputs(context.Background())
			require.NoError(t, err)
			assert.Empty(t, saved, "nothing is persisted on a rejected update")
		})
	}
}

func TestCount(t *testing.T) {
	srv, _ := setupServer(t)
	h := srv.Handler()

	rec := do(t, h, http.MethodGet, "/api/grid/count", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var counts grid.Counts
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &counts))
	assert.Equal(t, grid.Counts{SPH: 9, CYL: 6, Axis: 18, Total: 972}, counts)

	rec = do(t, h, http.MethodGet, "/api/grid/count?axis_step=0.1&axis_start=0&axis_max=0.3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &counts))
	assert.Equal(t, 3, counts.Axis)

	rec = do(t, h, http.MethodGet, "/api/grid/count?sph_step=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/grid/count?sph_step=0.0001&sph_max=100", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "max points exceeded")
}

func TestCount_EmptyGridWithHugeAxis(t *testing.T) {
	srv, _ := setupServer(t)

	start := time.Now()
	rec := do(t, srv.Handler(), http.MethodGet, "/api/grid/count?sph_start=5&sph_max=0&axis_step=0.000001&axis_max=1e9", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Less(t, time.Since(start), 2*time.Second)

	var counts grid.Counts
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &counts))
	assert.Equal(t, 0, counts.SPH)
	assert.Equal(t, 0, counts.Total)

	rec = do(t, srv.Handler(), http.MethodGet, "/api/grid?format=csv&sph_start=5&sph_max=0&axis_step=0.000001&axis_max=1e9", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SPH,CYL,Axis\n", rec.Body.String())
}

func TestGrid_JSON(t *testing.T) {
	srv, _ := setupServer(t)
	rec := do(t, srv.Handler(), http.MethodGet, "/api/grid?sph_max=0.25&cyl_max=0.25&axis_max=20", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Header().Get("Content-Disposition"))

	var points []grid.Point
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &points))
	assert.Equal(t, []grid.Point{
		{SPH: 0, CYL: 0.25, Axis: 10},
		{SPH: 0, CYL: 0.25, Axis: 20},
		{SPH: 0.25, CYL: 0.25, Axis: 10},
		{SPH: 0.25, CYL: 0.25, Axis: 20},
	}, points)
}

func TestGrid_CSV(t *testing.T) {
	srv, _ := setupServer(t)
	rec := do(t, srv.Handler(), http.MethodGet, "/api/grid?format=csv&axis_max=10&sph_max=0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".csv")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "SPH,CYL,Axis", lines[0])
	assert.Equal(t, "0,0.25,10", lines[1])
}

func TestGrid_XLSX(t *testing.T) {
	srv, _ := setupServer(t)
	rec := do(t, srv.Handler(), http.MethodGet, "/api/grid?format=xlsx", "")
	require.Equal(t, http.StatusOK, rec.Code)

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	assert.Len(t, rows, 973)
	assert.Equal(t, export.Columns, rows[0])
}

func TestGrid_Errors(t *testing.T) {
	srv, _ := setupServer(t)
	h := srv.Handler()

	rec := do(t, h, http.MethodGet, "/api/grid?format=pdf", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown export format")

	rec = do(t, h, http.MethodGet, "/api/grid?format=csv&cyl_step=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Header().Get("Content-Disposition"))
}

func TestExports(t *testing.T) {
	srv, store := setupServer(t)
	h := srv.Handler()

	rec := do(t, h, http.MethodGet, "/api/exports", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	ctx := context.Background()
	for _, p := range []string{"a.xlsx", "b.xlsx"} {
		require.NoError(t, store.RecordExport(ctx, &state.Export{Path: p, Format: "xlsx", Rows: 972}))
	}

	rec = do(t, h, http.MethodGet, "/api/exports?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var exports []state.Export
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &exports))
	assert.Len(t, exports, 1)

	rec = do(t, h, http.MethodGet, "/api/exports?limit=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// failingStore fails every operation.
type failingStore struct{ state.Store }

func (failingStore) LoadInputs(context.Context) (map[string]string, error) {
	return nil, assert.AnError
}

func (failingStore) ListExports(context.Context, int) ([]*state.Export, error) {
	return nil, assert.AnError
}

func TestStoreFailure(t *testing.T) {
	srv := NewServer(Config{Store: failingStore{}, Defaults: inputs.Defaults()})
	h := srv.Handler()

	for _, target := range []string{"/api/inputs", "/api/grid/count", "/api/grid", "/api/exports"} {
		rec := do(t, h, http.MethodGet, target, "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code, target)
	}
	rec := do(t, h, http.MethodPut, "/api/inputs", `{"sph_max": 1}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServeListener_ShutsDownOnCancel(t *testing.T) {
	srv, _ := setupServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ServeListener(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestEvents(t *testing.T) {
	srv, _ := setupServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return srv.Notifier().Len() == 1 }, time.Second, 10*time.Millisecond)

	put, err := http.NewRequest(http.MethodPut, ts.URL+"/api/inputs", strings.NewReader(`{"sph_max": 1}`))
	require.NoError(t, err)
	putResp, err := http.DefaultClient.Do(put)
	require.NoError(t, err)
	_ = putResp.Body.Close()

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: inputs\n", line)
}
