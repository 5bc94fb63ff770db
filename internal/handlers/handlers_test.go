package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sjperalta/transfer-ledger/internal/config"
	"github.com/sjperalta/transfer-ledger/internal/database"
	"github.com/sjperalta/transfer-ledger/internal/middleware"
	"github.com/sjperalta/transfer-ledger/internal/models"
	"github.com/sjperalta/transfer-ledger/internal/repository"
	"github.com/sjperalta/transfer-ledger/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "handler-test-secret"

type busyUnitOfWork struct{}

func (busyUnitOfWork) Do(ctx context.Context, fn func(repos *repository.Repositories) error) error {
	return repository.ErrConflict
}

type testServer struct {
	router *gin.Engine
	svcs   *services.Services
}

func newTestServer(t *testing.T, uow func(repository.UnitOfWork) repository.UnitOfWork) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	policy := config.DefaultLedgerPolicy()
	policy.MaxAttempts = 2
	policy.BaseBackoff = time.Millisecond

	repos := repository.NewRepositories(db)
	work := repository.NewUnitOfWork(db)
	if uow != nil {
		work = uow(work)
	}
	svcs := services.NewServices(repos, work, nil, policy)

	router := gin.New()
	RegisterRoutes(router, NewHandlers(svcs), testSecret)
	return &testServer{router: router, svcs: svcs}
}

func token(t *testing.T, role string) string {
	t.Helper()
	claims := middleware.Claims{
		UserID: 1,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (s *testServer) do(t *testing.T, method, path, role string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, role))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func completedEvent(reservationID string) map[string]interface{} {
	return map[string]interface{}{
		"reservation_id": reservationID,
		"total_price":    "150.00",
		"payment_method": "card",
		"driver_id":      "D1",
		"completed_at":   "2026-03-10T15:00:00Z",
	}
}

func TestReservationCompleted_CreatedThenDuplicate(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPut, "/api/v1/drivers/system/D1", middleware.RoleService, map[string]interface{}{"name": "Luis"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/v1/events/reservation-completed", middleware.RoleService, completedEvent("R1"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var first services.AppendResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	assert.False(t, first.Duplicate)
	assert.Equal(t, "22.50", first.Transaction.NetAmount.StringFixed(2))

	// wrapped payload form is accepted too
	w = s.do(t, http.MethodPost, "/api/v1/events/reservation-completed", middleware.RoleService,
		map[string]interface{}{"event": completedEvent("R1")})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var replay services.AppendResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &replay))
	assert.True(t, replay.Duplicate)
	assert.Equal(t, first.Transaction.ID, replay.Transaction.ID)
}

func TestReservationHistory_Endpoint(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/api/v1/reservations/R7/ledger", middleware.RoleViewer, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/events/reservation-completed", middleware.RoleService, completedEvent("R7"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/v1/reservations/R7/ledger", middleware.RoleViewer, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var history services.ReservationHistory
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	assert.Len(t, history.Entries, 1)
	assert.True(t, history.Reversible)

	assert.Equal(t, http.StatusForbidden,
		s.do(t, http.MethodGet, "/api/v1/reservations/R7/ledger", middleware.RoleService, nil).Code)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t, nil)

	bad := completedEvent("R2")
	bad["total_price"] = "-5"
	w := s.do(t, http.MethodPost, "/api/v1/events/reservation-completed", middleware.RoleService, bad)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/reservations/missing/reverse", middleware.RoleAdmin, map[string]string{"note": "refund"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/reports/periods?granularity=week", middleware.RoleViewer, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/events/reservation-completed", middleware.RoleService, completedEvent("R3"))
	require.Equal(t, http.StatusCreated, w.Code)
	var result services.AppendResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))

	w = s.do(t, http.MethodDelete, "/api/v1/ledger/manual-entries/"+result.Transaction.ID, middleware.RoleAdmin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// no background worker in this server
	w = s.do(t, http.MethodPost, "/api/v1/jobs/reconciliation", middleware.RoleAdmin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRoles(t *testing.T) {
	s := newTestServer(t, nil)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/v1/reports/company", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/api/v1/events/reservation-completed", middleware.RoleViewer, completedEvent("R1")).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/api/v1/reconciliation/run", middleware.RoleService, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/reports/company", middleware.RoleViewer, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/health", "", nil).Code)
}

func TestLedgerBusy_ServiceUnavailable(t *testing.T) {
	s := newTestServer(t, func(repository.UnitOfWork) repository.UnitOfWork { return busyUnitOfWork{} })

	w := s.do(t, http.MethodPost, "/api/v1/ledger/manual-entries", middleware.RoleAdmin, map[string]interface{}{
		"type":     "manual_expense",
		"amount":   "25",
		"category": "fuel",
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestManualEntryAndReports(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/v1/ledger/manual-entries", middleware.RoleAdmin, map[string]interface{}{
		"entry": map[string]interface{}{
			"type":     "manual_income",
			"amount":   40,
			"category": "tips",
			"date":     "2026-03-02T10:00:00Z",
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/v1/ledger/transactions?type=manual_income&from=2026-03-01", middleware.RoleViewer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	w = s.do(t, http.MethodGet, "/api/v1/ledger/transactions?from=yesterday", middleware.RoleViewer, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/reports/periods.csv", middleware.RoleViewer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "Period,Start,Revenue"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "ledger_month_report_")

	w = s.do(t, http.MethodGet, "/api/v1/reports/periods.xlsx", middleware.RoleViewer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")
}

func TestManualEntry_ShortTypeWithDescription(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/v1/ledger/manual-entries", middleware.RoleAdmin, map[string]interface{}{
		"type":        "income",
		"amount":      "120.50",
		"category":    "advertising",
		"description": "sponsor banner",
		"date":        "2026-03-05T09:00:00Z",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var result services.AppendResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, models.TransactionTypeManualIncome, result.Transaction.Type)
	assert.Equal(t, "sponsor banner", result.Transaction.Note)

	w = s.do(t, http.MethodPost, "/api/v1/ledger/manual-entries", middleware.RoleAdmin, map[string]interface{}{
		"type":     "expense",
		"amount":   "20",
		"category": "fuel",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/v1/ledger/manual-entries", middleware.RoleAdmin, map[string]interface{}{
		"type":   "income",
		"amount": "5",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, "category is required")

	w = s.do(t, http.MethodGet, "/api/v1/reports/company", middleware.RoleViewer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snapshot services.CompanySnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snapshot))
	require.NotNil(t, snapshot.Account)
	assert.Equal(t, "120.50", snapshot.Account.ManualIncome.StringFixed(2))
	assert.Equal(t, "20.00", snapshot.Account.ManualExpenses.StringFixed(2))
}

func TestManualDriverFlow(t *testing.T) {
	s := newTestServer(t, nil)

	event := map[string]interface{}{
		"reservation_id": "R9",
		"total_price":    120,
		"payment_method": "cash",
		"driver_id":      "manual",
		"manual_driver":  map[string]interface{}{"name": "Ana", "phone": "+50490000000", "agreed_price": 80},
		"completed_at":   "2026-03-10T15:00:00Z",
	}
	w := s.do(t, http.MethodPost, "/api/v1/events/reservation-completed", middleware.RoleService, event)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	drivers, err := s.svcs.Drivers.ListManualDrivers(context.Background())
	require.NoError(t, err)
	require.Len(t, drivers, 1)
	id := drivers[0].ID

	w = s.do(t, http.MethodPost, "/api/v1/drivers/manual/"+id+"/transactions", middleware.RoleAdmin,
		map[string]interface{}{"type": "collection", "amount": "40", "note": "cash handed over"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/v1/drivers/manual/"+id, middleware.RoleViewer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var driver models.ManualDriver
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &driver))
	assert.True(t, driver.Balance.IsZero(), "collection settles the cash trip, got %s", driver.Balance)

	w = s.do(t, http.MethodGet, "/api/v1/drivers/"+id+"/statement", middleware.RoleViewer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var statement services.DriverStatement
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &statement))
	assert.Len(t, statement.Lines, 2)
	assert.False(t, statement.Mismatch)

	w = s.do(t, http.MethodGet, "/api/v1/drivers/"+id+"/statement.pdf", middleware.RoleViewer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))

	w = s.do(t, http.MethodGet, "/api/v1/drivers/manual/nope", middleware.RoleViewer, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
