package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/diewo77/go-quotes/auth"
	"github.com/diewo77/go-quotes/internal/cache"
	"github.com/diewo77/go-quotes/internal/db"
	"github.com/diewo77/go-quotes/internal/eligibility"
	"github.com/diewo77/go-quotes/internal/middleware"
	"github.com/diewo77/go-quotes/internal/models"
	"github.com/diewo77/go-quotes/internal/policy"
)

const testSecret = "e2e-secret"

type e2e struct {
	t      *testing.T
	app    *App
	db     *gorm.DB
	tokens map[models.Role]string
	ids    map[models.Role]uint
}

func setupE2E(t *testing.T) *e2e {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:e2e_%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(conn))

	log := zaptest.NewLogger(t)
	app := NewApp(Deps{
		DB:        conn,
		Log:       log,
		JWTSecret: testSecret,
		Gate:      policy.NewAuthGate(conn, time.Minute),
		RuleCache: cache.NewMemory(time.Minute),
		Defaults:  eligibility.MustLoadDefaults(),
	})

	env := &e2e{t: t, app: app, db: conn, tokens: map[models.Role]string{}, ids: map[models.Role]uint{}}
	signer := auth.New(testSecret, nil)
	for _, role := range models.Roles {
		u := models.User{Email: string(role) + "@example.com", Role: role}
		require.NoError(t, conn.Create(&u).Error)
		tok, err := signer.Sign(u.ID, time.Hour)
		require.NoError(t, err)
		env.tokens[role] = tok
		env.ids[role] = u.ID
	}
	return env
}

func (e *e2e) do(role models.Role, method, path string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok, ok := e.tokens[role]; ok {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rr := httptest.NewRecorder()
	e.app.ServeHTTP(rr, req)
	return rr
}

func (e *e2e) status(rr *httptest.ResponseRecorder) string {
	e.t.Helper()
	var q struct {
		Status string `json:"status"`
	}
	require.NoError(e.t, json.Unmarshal(rr.Body.Bytes(), &q), rr.Body.String())
	return q.Status
}

func TestHealthIsPublic(t *testing.T) {
	e := setupE2E(t)
	rr := e.do("", http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get(middleware.RequestIDHeader))

	rr = e.do("", http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAPIRequiresToken(t *testing.T) {
	e := setupE2E(t)
	rr := e.do("", http.MethodGet, "/api/quotes", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, rr.Body.String())

	// a valid signature for a user that does not exist
	tok, err := auth.New(testSecret, nil).Sign(4242, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/quotes", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr = httptest.NewRecorder()
	e.app.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	tok, err = auth.New("other-secret", nil).Sign(e.ids[models.RoleAdmin], time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/quotes", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr = httptest.NewRecorder()
	e.app.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRolePermissionsOnRoutes(t *testing.T) {
	e := setupE2E(t)
	rule := map[string]any{"part_name": "Camera", "rule_type": "required_for", "brands": []string{"Kia"}}

	tests := []struct {
		role   models.Role
		method string
		path   string
		body   any
		want   int
	}{
		{models.RoleQuoteCreator, http.MethodPost, "/api/rules", rule, http.StatusForbidden},
		{models.RolePriceManager, http.MethodDelete, "/api/rules/Camera", nil, http.StatusForbidden},
		{models.RoleAdmin, http.MethodPost, "/api/rules", rule, http.StatusCreated},
		{models.RoleQuoteCreator, http.MethodGet, "/api/rules", nil, http.StatusOK},
		{models.RoleQualityController, http.MethodGet, "/api/parts?brand=Kia", nil, http.StatusOK},
		{models.RoleQuoteCreator, http.MethodGet, "/api/reports/actions", nil, http.StatusForbidden},
		{models.RoleQualityController, http.MethodGet, "/api/reports/actions", nil, http.StatusOK},
		{models.RolePriceManager, http.MethodGet, "/api/admin/users", nil, http.StatusForbidden},
		{models.RoleAdmin, http.MethodGet, "/api/admin/users", nil, http.StatusOK},
		{models.RolePriceManager, http.MethodPost, "/api/quotes", map[string]any{}, http.StatusForbidden},
		{models.RoleQualityController, http.MethodPost, "/api/quotes/deliver", map[string]any{"ids": []uint{1}}, http.StatusForbidden},
		{models.RoleQuoteCreator, http.MethodDelete, "/api/quotes/1", nil, http.StatusForbidden},
	}
	for _, tt := range tests {
		rr := e.do(tt.role, tt.method, tt.path, tt.body)
		assert.Equal(t, tt.want, rr.Code, "%s %s %s: %s", tt.role, tt.method, tt.path, rr.Body.String())
	}
}

func TestQuoteWorkflowEndToEnd(t *testing.T) {
	e := setupE2E(t)

	rr := e.do(models.RoleQuoteCreator, http.MethodPost, "/api/quotes", map[string]any{
		"customer": map[string]any{"name": "Alex"},
		"vehicle":  map[string]any{"brand": "Toyota", "model": "Hilux", "year": 2021},
		"parts":    []map[string]any{{"part_name": "Bonnet"}, {"part_name": "Front Bumper", "part_id": "FB-2"}},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	base := fmt.Sprintf("/api/quotes/%d", created.ID)

	rr = e.do(models.RoleQuoteCreator, http.MethodPost, base+"/verify", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = e.do(models.RolePriceManager, http.MethodPut, base+"/prices", map[string]any{
		"items": []map[string]any{{"final_price": "210.00", "list_price": "250.00"}, {}},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "waiting_verification", e.status(rr))

	rr = e.do(models.RoleQualityController, http.MethodPost, base+"/verify", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "priced", e.status(rr))

	rr = e.do(models.RoleQualityController, http.MethodPost, base+"/complete", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "completed", e.status(rr))

	rr = e.do(models.RoleQualityController, http.MethodPost, base+"/order", map[string]string{"tax_invoice_number": "TI-1"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = e.do(models.RolePriceManager, http.MethodPost, base+"/order", map[string]string{"tax_invoice_number": ""})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = e.do(models.RolePriceManager, http.MethodPost, base+"/order", map[string]string{"tax_invoice_number": "TI-1"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ordered", e.status(rr))

	rr = e.do(models.RolePriceManager, http.MethodPost, "/api/quotes/deliver", map[string]any{"ids": []uint{created.ID}})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), fmt.Sprintf(`"delivered":[%d]`, created.ID))

	rr = e.do(models.RoleAdmin, http.MethodPost, base+"/wrong", nil)
	assert.Equal(t, http.StatusConflict, rr.Code, "delivered is terminal")

	rr = e.do(models.RoleQuoteCreator, http.MethodGet, base+"/actions", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var actions []models.QuoteAction
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &actions))
	require.Len(t, actions, 6)
	assert.Equal(t, e.ids[models.RoleQualityController], actions[2].UserID)
	assert.Equal(t, models.ActionVerified, actions[2].ActionType)

	rr = e.do(models.RoleQualityController, http.MethodGet, "/api/reports/actions.xlsx", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), ".xlsx")
}

func TestQuoteCreatorEditsOnlyOwnParts(t *testing.T) {
	e := setupE2E(t)
	other := models.User{Email: "creator2@example.com", Role: models.RoleQuoteCreator}
	require.NoError(t, e.db.Create(&other).Error)
	tok, err := auth.New(testSecret, nil).Sign(other.ID, time.Hour)
	require.NoError(t, err)
	e.tokens["creator2"] = tok

	rr := e.do(models.RoleQuoteCreator, http.MethodPost, "/api/quotes", map[string]any{
		"customer": map[string]any{"name": "Alex"},
		"vehicle":  map[string]any{"brand": "Mazda"},
		"parts":    []map[string]any{{"part_name": "Bonnet"}},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	path := fmt.Sprintf("/api/quotes/%d/parts", created.ID)
	body := map[string]any{"parts": []map[string]any{{"part_name": "Bonnet", "part_id": "BN-1"}}}

	rr = e.do("creator2", http.MethodPut, path, body)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	rr = e.do(models.RoleQuoteCreator, http.MethodPut, path, body)
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestRuleChangesReachPartsLookup(t *testing.T) {
	e := setupE2E(t)

	rr := e.do(models.RoleQuoteCreator, http.MethodGet, "/api/parts/availability?part=Camera&brand=Toyota", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"available":false`)

	rr = e.do(models.RoleAdmin, http.MethodPut, "/api/rules/Camera", map[string]any{"rule_type": "none"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = e.do(models.RoleQuoteCreator, http.MethodGet, "/api/parts/availability?part=Camera&brand=Toyota", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"available":true`)
}

func TestAdminRoleChangeTakesEffect(t *testing.T) {
	e := setupE2E(t)
	uid := e.ids[models.RoleQuoteCreator]

	rr := e.do(models.RoleQuoteCreator, http.MethodGet, "/api/reports/actions", nil)
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = e.do(models.RoleAdmin, http.MethodPut, fmt.Sprintf("/api/admin/users/%d/role", uid), map[string]string{"role": "quality_controller"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = e.do(models.RoleQuoteCreator, http.MethodGet, "/api/reports/actions", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}
