package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"dokon/backend/internal/cache"
	"dokon/backend/internal/domain"
	"dokon/backend/internal/ledger"
	"dokon/backend/internal/store/memory"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestHandler(t *testing.T) (http.Handler, *memory.Store) {
	t.Helper()
	repo := memory.New()
	ctx := context.Background()

	if _, err := repo.InsertCategory(ctx, domain.Category{Name: "Oziq-ovqat"}); err != nil {
		t.Fatalf("seed category: %v", err)
	}
	for _, p := range []domain.Product{
		{ID: "p-choy", Name: "Choy", Category: "Oziq-ovqat", Price: 10000, Quantity: 10},
		{ID: "p-shakar", Name: "Shakar", Category: "Oziq-ovqat", Price: 20000, Quantity: 10},
	} {
		if _, err := repo.InsertProduct(ctx, p); err != nil {
			t.Fatalf("seed product: %v", err)
		}
	}

	adminHash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if _, err := repo.InsertUser(ctx, domain.User{
		ID: "u-admin", Username: "admin", PasswordHash: string(adminHash),
		Name: "Administrator", Role: domain.RoleAdmin,
	}); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	// Imported from the old deployment: password still in plain text.
	if _, err := repo.InsertUser(ctx, domain.User{
		ID: "u-seller", Username: "sotuvchi", PasswordHash: "sotuvchi123",
		Name: "Sotuvchi", Role: domain.RoleUser,
	}); err != nil {
		t.Fatalf("seed seller: %v", err)
	}

	engine := ledger.New(repo, false)
	auth := NewAuthManager(testSecret, time.Hour, repo)
	api := New(engine, repo, auth, cache.NoopDashboardCache{}, 20*time.Second, "http://127.0.0.1:3000")
	return api.Handler(), repo
}

func doRequest(t *testing.T, handler http.Handler, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func loginAs(t *testing.T, handler http.Handler, username, password string) string {
	t.Helper()
	rec := doRequest(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{
		Username: username,
		Password: password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login as %s failed: %d %s", username, rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatalf("expected access token")
	}
	return resp.AccessToken
}

func TestHealthIsPublic(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := doRequest(t, handler, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{
		Username: "admin",
		Password: "noto'g'ri",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestLegacyPlaintextPasswordUpgradedOnLogin(t *testing.T) {
	handler, repo := newTestHandler(t)

	loginAs(t, handler, "sotuvchi", "sotuvchi123")

	user, err := repo.FindUserByUsername(context.Background(), "sotuvchi")
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if !strings.HasPrefix(user.PasswordHash, "$2") {
		t.Fatalf("expected plain-text password to be rewritten as bcrypt, got %q", user.PasswordHash)
	}

	// The upgraded hash must keep working.
	loginAs(t, handler, "sotuvchi", "sotuvchi123")
}

func TestEndpointsRequireBearerToken(t *testing.T) {
	handler, _ := newTestHandler(t)

	for _, path := range []string{
		"/api/v1/products",
		"/api/v1/transactions",
		"/api/v1/dashboard",
		"/api/v1/stats",
		"/api/v1/users",
	} {
		rec := doRequest(t, handler, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %s, got %d", path, rec.Code)
		}
	}
}

func TestProductMutationForbiddenForSeller(t *testing.T) {
	handler, _ := newTestHandler(t)
	token := loginAs(t, handler, "sotuvchi", "sotuvchi123")

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/products", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("seller must read products, got %d", rec.Code)
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/v1/products", token, domain.ProductCreateRequest{
		Name: "Non", Category: "Oziq-ovqat", Price: 3000,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, handler, http.MethodDelete, "/api/v1/products/p-choy", token, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 on delete, got %d", rec.Code)
	}
}

func TestSaleFlowThroughAPI(t *testing.T) {
	handler, _ := newTestHandler(t)
	token := loginAs(t, handler, "sotuvchi", "sotuvchi123")

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/sales", token, domain.SaleRequest{
		Items: []domain.SaleLine{
			{ProductID: "p-choy", Quantity: 1},
			{ProductID: "p-shakar", Quantity: 1},
		},
		PaymentType:  domain.PaymentDebt,
		CustomerName: "Karim aka",
		PaidAmount:   15000,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("sale failed: %d %s", rec.Code, rec.Body.String())
	}

	var result domain.SaleResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode sale result: %v", err)
	}
	if result.TotalAmount != 30000 || result.PaidAmount != 15000 || result.Debt != 15000 {
		t.Fatalf("unexpected totals: %+v", result)
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/v1/sales?period=day", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list sales failed: %d", rec.Code)
	}
	var listing struct {
		Sales []domain.Sale `json:"sales"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode sales: %v", err)
	}
	if len(listing.Sales) != 1 || listing.Sales[0].SaleID != result.SaleID {
		t.Fatalf("expected the recorded sale, got %+v", listing.Sales)
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/v1/dashboard", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard failed: %d", rec.Code)
	}
	var snapshot domain.DashboardSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if snapshot.Stats.TotalDebt != 15000 {
		t.Fatalf("expected outstanding debt on dashboard, got %+v", snapshot.Stats)
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/v1/stats?period=week", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats failed: %d", rec.Code)
	}
}

func TestRestockPartialFailureExposedToClient(t *testing.T) {
	handler, _ := newTestHandler(t)
	token := loginAs(t, handler, "sotuvchi", "sotuvchi123")

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/restock", token, domain.RestockRequest{
		Lines: []domain.RestockLine{
			{ProductID: "p-choy", Quantity: 5},
			{ProductID: "p-yoq", Quantity: 2},
		},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d %s", rec.Code, rec.Body.String())
	}

	var body struct {
		FailedLine int `json:"failed_line"`
		Committed  int `json:"committed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.FailedLine != 1 || body.Committed != 1 {
		t.Fatalf("expected failed_line=1 committed=1, got %+v", body)
	}
}

func TestUserManagementAdminOnly(t *testing.T) {
	handler, _ := newTestHandler(t)
	sellerToken := loginAs(t, handler, "sotuvchi", "sotuvchi123")
	adminToken := loginAs(t, handler, "admin", "admin123")

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/users", sellerToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for seller, got %d", rec.Code)
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/v1/users", adminToken, domain.UserCreateRequest{
		Username: "malika", Password: "parol123", Name: "Malika opa", Role: domain.RoleUser,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create user failed: %d %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, handler, http.MethodDelete, "/api/v1/users/u-admin", adminToken, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("self-delete must be rejected, got %d", rec.Code)
	}
}

func TestCategoryDeletionConflictMapsTo409(t *testing.T) {
	handler, repo := newTestHandler(t)
	adminToken := loginAs(t, handler, "admin", "admin123")

	categories, _ := repo.ListCategories(context.Background())
	path := fmt.Sprintf("/api/v1/categories/%s", categories[0].ID)

	rec := doRequest(t, handler, http.MethodDelete, path, adminToken, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 while category in use, got %d", rec.Code)
	}
}

func TestLoginRateLimited(t *testing.T) {
	handler, _ := newTestHandler(t)

	var last int
	for i := 0; i < 6; i++ {
		rec := doRequest(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{
			Username: "admin",
			Password: "noto'g'ri",
		})
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after repeated failures, got %d", last)
	}
}

func TestTokenRoleTamperingRejected(t *testing.T) {
	handler, _ := newTestHandler(t)
	token := loginAs(t, handler, "sotuvchi", "sotuvchi123")

	// Forge a token signed with a different secret.
	other := NewAuthManager("another-secret-that-is-long-enough!!", time.Hour, nil)
	forged, err := other.sign(&domain.User{Username: "sotuvchi", Role: domain.RoleAdmin}, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign forged token: %v", err)
	}

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/users", forged, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected forged token rejection, got %d", rec.Code)
	}

	// The legitimate token still only carries the seller role.
	rec = doRequest(t, handler, http.MethodGet, "/api/v1/users", token, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for seller role, got %d", rec.Code)
	}
}
