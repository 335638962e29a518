package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/caremarket/backend/internal/application/services"
	"github.com/zatekoja/caremarket/backend/internal/domain/entities"
	"github.com/zatekoja/caremarket/backend/internal/domain/repositories"
)

type MockImportRunner struct {
	mock.Mock
}

func (m *MockImportRunner) Start(ctx context.Context, opts services.RunOptions) (string, error) {
	args := m.Called(ctx, opts)
	return args.String(0), args.Error(1)
}

func (m *MockImportRunner) Latest() (entities.ImportRunSnapshot, bool, bool) {
	args := m.Called()
	return args.Get(0).(entities.ImportRunSnapshot), args.Bool(1), args.Bool(2)
}

type MockReportBuilder struct {
	mock.Mock
}

func (m *MockReportBuilder) Build(ctx context.Context, run *entities.ImportRunSnapshot) (*services.ImportReport, error) {
	args := m.Called(ctx, run)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ImportReport), args.Error(1)
}

type memoryIdempotency struct {
	keys map[string]bool
	err  error
}

func (m *memoryIdempotency) SetIfAbsent(ctx context.Context, key string, value []byte, expirationSeconds int) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memoryIdempotency) Delete(ctx context.Context, key string) error {
	delete(m.keys, key)
	return nil
}

func newTestHandler(runner *MockImportRunner, reports *MockReportBuilder, idem IdempotencyStore) *FacilityImportHandler {
	return NewFacilityImportHandler(context.Background(), runner, reports, idem, time.Hour)
}

func postImport(h *FacilityImportHandler, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/admin/facility-imports", strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.StartImport(w, req)
	return w
}

func TestFacilityImportHandler_StartImport(t *testing.T) {
	runner := new(MockImportRunner)
	runner.On("Start", mock.Anything, services.RunOptions{}).Return("run-1", nil).Once()

	w := postImport(newTestHandler(runner, nil, nil), "", nil)

	assert.Equal(t, http.StatusAccepted, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "started", body["status"])
	assert.Equal(t, "run-1", body["run_id"])
	runner.AssertExpectations(t)
}

func TestFacilityImportHandler_StartImportOptions(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantOpts   *services.RunOptions
	}{
		{"dry run", `{"dry_run": true}`, http.StatusAccepted, &services.RunOptions{DryRun: true}},
		{"reset confirmed", `{"reset": true, "confirm": "yes"}`, http.StatusAccepted, &services.RunOptions{Reset: true}},
		{"dry run reset needs no confirmation", `{"reset": true, "dry_run": true}`, http.StatusAccepted, &services.RunOptions{Reset: true, DryRun: true}},
		{"reset without confirmation", `{"reset": true}`, http.StatusBadRequest, nil},
		{"reset with wrong confirmation", `{"reset": true, "confirm": "y"}`, http.StatusBadRequest, nil},
		{"malformed body", `{"reset": `, http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := new(MockImportRunner)
			if tt.wantOpts != nil {
				runner.On("Start", mock.Anything, *tt.wantOpts).Return("run-2", nil).Once()
			}

			w := postImport(newTestHandler(runner, nil, nil), tt.body, nil)

			assert.Equal(t, tt.wantStatus, w.Code)
			runner.AssertExpectations(t)
		})
	}
}

func TestFacilityImportHandler_StartImportErrors(t *testing.T) {
	t.Run("run in progress", func(t *testing.T) {
		runner := new(MockImportRunner)
		runner.On("Start", mock.Anything, mock.Anything).Return("", services.ErrRunInProgress)

		w := postImport(newTestHandler(runner, nil, nil), `{}`, nil)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "already running")
	})

	t.Run("lock backend down", func(t *testing.T) {
		runner := new(MockImportRunner)
		runner.On("Start", mock.Anything, mock.Anything).Return("", errors.New("redis: connection refused"))

		w := postImport(newTestHandler(runner, nil, nil), `{}`, nil)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.NotContains(t, w.Body.String(), "redis")
	})
}

func TestFacilityImportHandler_RunOutlivesRequest(t *testing.T) {
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := new(MockImportRunner)
	runner.On("Start", runCtx, mock.Anything).Return("run-3", nil).Once()
	h := NewFacilityImportHandler(runCtx, runner, nil, nil, 0)

	reqCtx, reqCancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/api/admin/facility-imports", nil).WithContext(reqCtx)
	w := httptest.NewRecorder()
	h.StartImport(w, req)
	reqCancel()

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.NoError(t, runCtx.Err())
	runner.AssertExpectations(t)
}

func TestFacilityImportHandler_Idempotency(t *testing.T) {
	runner := new(MockImportRunner)
	runner.On("Start", mock.Anything, mock.Anything).Return("run-4", nil).Once()
	h := newTestHandler(runner, nil, &memoryIdempotency{keys: map[string]bool{}})

	first := postImport(h, `{}`, map[string]string{"Idempotency-Key": "nightly-2026-10-18"})
	second := postImport(h, `{}`, map[string]string{"X-Idempotency-Key": "nightly-2026-10-18"})

	assert.Equal(t, http.StatusAccepted, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &body))
	assert.Equal(t, "duplicate", body["status"])
	assert.Equal(t, "nightly-2026-10-18", body["idempotency_key"])
	runner.AssertExpectations(t)
}

func TestFacilityImportHandler_RejectedStartReleasesIdempotencyKey(t *testing.T) {
	tests := []struct {
		name     string
		startErr error
		status   int
	}{
		{"run in progress", services.ErrRunInProgress, http.StatusConflict},
		{"lock unavailable", errors.New("redis: connection refused"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := new(MockImportRunner)
			runner.On("Start", mock.Anything, mock.Anything).Return("", tt.startErr).Once()
			runner.On("Start", mock.Anything, mock.Anything).Return("run-9", nil).Once()
			idem := &memoryIdempotency{keys: map[string]bool{}}
			h := newTestHandler(runner, nil, idem)
			headers := map[string]string{"Idempotency-Key": "nightly-2026-10-18"}

			rejected := postImport(h, `{}`, headers)
			assert.Equal(t, tt.status, rejected.Code)
			assert.Empty(t, idem.keys)

			retried := postImport(h, `{}`, headers)
			assert.Equal(t, http.StatusAccepted, retried.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(retried.Body.Bytes(), &body))
			assert.Equal(t, "run-9", body["run_id"])
			assert.True(t, idem.keys[idempotencyKeyPrefix+"nightly-2026-10-18"])
			runner.AssertExpectations(t)
		})
	}
}

func TestFacilityImportHandler_IdempotencyStoreDown(t *testing.T) {
	runner := new(MockImportRunner)
	runner.On("Start", mock.Anything, mock.Anything).Return("run-5", nil).Once()
	h := newTestHandler(runner, nil, &memoryIdempotency{err: errors.New("connection refused")})

	w := postImport(h, `{}`, map[string]string{"Idempotency-Key": "k"})

	assert.Equal(t, http.StatusAccepted, w.Code)
	runner.AssertExpectations(t)
}

func TestFacilityImportHandler_GetCurrentImport(t *testing.T) {
	t.Run("no run yet", func(t *testing.T) {
		runner := new(MockImportRunner)
		runner.On("Latest").Return(entities.ImportRunSnapshot{}, false, false)

		w := httptest.NewRecorder()
		newTestHandler(runner, nil, nil).GetCurrentImport(w, httptest.NewRequest(http.MethodGet, "/api/admin/facility-imports/current", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("running", func(t *testing.T) {
		runner := new(MockImportRunner)
		runner.On("Latest").Return(entities.ImportRunSnapshot{
			RunID:         "run-6",
			Found:         40,
			Imported:      12,
			SegmentsDone:  3,
			SegmentsTotal: 63,
		}, true, true)

		w := httptest.NewRecorder()
		newTestHandler(runner, nil, nil).GetCurrentImport(w, httptest.NewRequest(http.MethodGet, "/api/admin/facility-imports/current", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var body importStatusResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.True(t, body.Running)
		assert.Equal(t, "run-6", body.Run.RunID)
		assert.Equal(t, 12, body.Run.Imported)
		assert.Equal(t, 63, body.Run.SegmentsTotal)
	})
}

func TestFacilityImportHandler_GetReport(t *testing.T) {
	t.Run("with latest run", func(t *testing.T) {
		snap := entities.ImportRunSnapshot{RunID: "run-7", Imported: 2}
		runner := new(MockImportRunner)
		runner.On("Latest").Return(snap, false, true)
		reports := new(MockReportBuilder)
		reports.On("Build", mock.Anything, &snap).Return(&services.ImportReport{
			Run:          &snap,
			TotalManaged: 2,
			ByProvince:   []repositories.GroupCount{{Key: "Gauteng", Count: 2}},
		}, nil)

		w := httptest.NewRecorder()
		newTestHandler(runner, reports, nil).GetReport(w, httptest.NewRequest(http.MethodGet, "/api/admin/facility-report", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var body services.ImportReport
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, int64(2), body.TotalManaged)
		require.NotNil(t, body.Run)
		assert.Equal(t, "run-7", body.Run.RunID)
		reports.AssertExpectations(t)
	})

	t.Run("without a run", func(t *testing.T) {
		runner := new(MockImportRunner)
		runner.On("Latest").Return(entities.ImportRunSnapshot{}, false, false)
		reports := new(MockReportBuilder)
		reports.On("Build", mock.Anything, (*entities.ImportRunSnapshot)(nil)).Return(&services.ImportReport{TotalManaged: 5}, nil)

		w := httptest.NewRecorder()
		newTestHandler(runner, reports, nil).GetReport(w, httptest.NewRequest(http.MethodGet, "/api/admin/facility-report", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		reports.AssertExpectations(t)
	})

	t.Run("store error", func(t *testing.T) {
		runner := new(MockImportRunner)
		runner.On("Latest").Return(entities.ImportRunSnapshot{}, false, false)
		reports := new(MockReportBuilder)
		reports.On("Build", mock.Anything, mock.Anything).Return(nil, errors.New("count managed facilities: boom"))

		w := httptest.NewRecorder()
		newTestHandler(runner, reports, nil).GetReport(w, httptest.NewRequest(http.MethodGet, "/api/admin/facility-report", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "boom")
	})
}
