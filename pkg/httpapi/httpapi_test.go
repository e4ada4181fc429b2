package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"loyaltyhub/pkg/config"
	"loyaltyhub/pkg/health"
	"loyaltyhub/services/customer"
	"loyaltyhub/services/loyalty"
	"loyaltyhub/services/testutil"
	"loyaltyhub/services/user"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const password = "correct-horse"

func init() {
	gin.SetMode(gin.TestMode)
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeCodes struct {
	n atomic.Int64
}

func (f *fakeCodes) NextVoucherCode(ctx context.Context) (string, error) {
	return fmt.Sprintf("VCH-TEST-%03d", f.n.Add(1)), nil
}

type api struct {
	t      *testing.T
	router *gin.Engine
	cfg    *config.Config
}

func newAPI(t *testing.T) *api {
	t.Helper()

	models := append([]any{&user.User{}, &customer.Customer{}}, loyalty.Models()...)
	db := testutil.NewTestDB(t, models...)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Session.Name = "loyaltyhub_session"
	cfg.Session.Secret = "test-secret"
	cfg.Session.TTL = time.Hour

	users, err := user.NewService(user.ServiceParams{DB: db, Node: node, Config: cfg})
	require.NoError(t, err)

	enforcer, err := user.NewEnforcer()
	require.NoError(t, err)

	router, err := NewRouter(RouterParams{
		Config:    cfg,
		Customers: customer.NewService(customer.ServiceParams{DB: db, Node: node}),
		Loyalty: loyalty.NewService(loyalty.ServiceParams{
			DB:    db,
			Node:  node,
			Codes: &fakeCodes{},
			Defaults: loyalty.Defaults{
				PurchaseAmount:  decimal.NewFromInt(100),
				VoucherValue:    decimal.NewFromInt(10),
				VoucherDuration: 600,
			},
		}),
		Users:    users,
		Enforcer: enforcer,
		Health:   health.ProvideHealth(health.HealthParams{DB: db}),
	})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = users.Bootstrap(ctx, "admin", password, "admin@example.com")
	require.NoError(t, err)
	_, err = users.Create(ctx, user.CreateParams{
		Username: "clerk",
		Name:     "Shop Clerk",
		Email:    "clerk@example.com",
		Password: password,
		Role:     user.RoleStaff,
	})
	require.NoError(t, err)

	return &api{t: t, router: router, cfg: cfg}
}

func (a *api) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()

	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		req = httptest.NewRequest(method, path, strings.NewReader(string(b)))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *api) browse(method, path, cookie string, form url.Values) *httptest.ResponseRecorder {
	a.t.Helper()

	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: a.cfg.Session.Name, Value: cookie})
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *api) login(username string) string {
	a.t.Helper()

	w := a.do(http.MethodPost, "/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Token string `json:"token"`
	}
	decode(a.t, w, &body)
	require.NotEmpty(a.t, body.Token)
	return body.Token
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decode(t, w, &body)
	return body.Error.Code
}

func TestLoginSession(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodPost, "/login", "", map[string]string{"username": "admin", "password": "wrong-password"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "unauthorized", errorCode(t, w))

	w = a.do(http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = a.do(http.MethodGet, "/", "not-a-token", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	token := a.login("admin")
	w = a.do(http.MethodGet, "/", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var home struct {
		User struct {
			Username string `json:"username"`
			Role     string `json:"role"`
		} `json:"user"`
		Config loyalty.VoucherConfigJSON `json:"config"`
	}
	decode(t, w, &home)
	require.Equal(t, "admin", home.User.Username)
	require.Equal(t, "admin", home.User.Role)
	require.Equal(t, "100.00", home.Config.PurchaseAmount)

	w = a.do(http.MethodPost, "/logout", token, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Contains(t, w.Header().Get("Set-Cookie"), a.cfg.Session.Name+"=;")
}

func TestPurchaseFlow(t *testing.T) {
	a := newAPI(t)
	token := a.login("clerk")

	w := a.do(http.MethodPost, "/customers", token, map[string]string{
		"first": "Ada",
		"last":  "Lovelace",
		"email": "ada@example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var cu customer.CustomerJSON
	decode(t, w, &cu)

	w = a.do(http.MethodPost, "/purchases", token, map[string]any{
		"customer_id": cu.ID,
		"amount":      "150",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var first loyalty.PurchaseJSON
	decode(t, w, &first)
	require.Equal(t, "150.00", first.Amount)
	require.NotNil(t, first.IssuedVoucher)
	require.Equal(t, "10.00", first.IssuedVoucher.Value)

	w = a.do(http.MethodGet, "/customers/"+cu.ID+"/balance", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var balance loyalty.BalanceJSON
	decode(t, w, &balance)
	require.Equal(t, "50.00", balance.Accumulated)
	require.Equal(t, int64(1), balance.ActiveVouchers)

	w = a.do(http.MethodPost, "/purchases", token, map[string]any{
		"customer_id": cu.ID,
		"amount":      60,
		"voucher_ids": []string{first.IssuedVoucher.ID},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var second loyalty.PurchaseJSON
	decode(t, w, &second)
	require.Equal(t, []string{first.IssuedVoucher.ID}, second.RedeemedVoucherIDs)
	require.NotNil(t, second.IssuedVoucher)

	w = a.do(http.MethodPost, "/purchases", token, map[string]any{
		"customer_id": cu.ID,
		"amount":      "5",
		"voucher_ids": []string{first.IssuedVoucher.ID},
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Equal(t, "unprocessable_entity", errorCode(t, w))

	w = a.do(http.MethodPost, "/purchases", token, map[string]any{
		"customer_id": cu.ID,
		"amount":      "0",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodPost, "/purchases", token, map[string]any{
		"customer_id": "12345",
		"amount":      "10",
	})
	require.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(http.MethodGet, "/purchases?customer_id="+cu.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var purchases listResponse[loyalty.PurchaseJSON]
	decode(t, w, &purchases)
	require.Len(t, purchases.Data, 2)
	require.Equal(t, second.ID, purchases.Data[0].ID)

	w = a.do(http.MethodGet, "/customers/"+cu.ID+"/vouchers", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var vouchers listResponse[loyalty.VoucherJSON]
	decode(t, w, &vouchers)
	require.Len(t, vouchers.Data, 2)

	w = a.do(http.MethodGet, "/vouchers/"+first.IssuedVoucher.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var redeemed loyalty.VoucherJSON
	decode(t, w, &redeemed)
	require.Equal(t, loyalty.VoucherRedeemed, redeemed.Status)
	require.Equal(t, second.ID, redeemed.RedeemedPurchaseID)

	w = a.do(http.MethodGet, "/purchases/"+first.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(http.MethodPut, "/purchases/"+first.ID, token, map[string]any{"amount": "1"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	w = a.do(http.MethodDelete, "/purchases/"+first.ID, token, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodGet, "/customers/999/purchases", token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCustomerUpdate(t *testing.T) {
	a := newAPI(t)
	token := a.login("clerk")

	w := a.do(http.MethodPost, "/customers", token, map[string]string{"first": "Ada", "last": "Lovelace", "email": "ada@example.com"})
	require.Equal(t, http.StatusCreated, w.Code)
	var cu customer.CustomerJSON
	decode(t, w, &cu)

	w = a.do(http.MethodPost, "/customers", token, map[string]string{"first": "Ada", "last": "Byron", "email": "ADA@example.com"})
	require.Equal(t, http.StatusConflict, w.Code)

	w = a.do(http.MethodPut, "/customers/"+cu.ID, token, map[string]string{"first": "Ada", "last": "King", "email": "ada@example.com"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(http.MethodGet, "/customers/"+cu.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &cu)
	require.Equal(t, "King", cu.Last)

	w = a.do(http.MethodGet, "/customers", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list listResponse[customer.CustomerJSON]
	decode(t, w, &list)
	require.Len(t, list.Data, 1)

	w = a.do(http.MethodGet, "/customers/abc", token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestConfigRequiresAdmin(t *testing.T) {
	a := newAPI(t)
	staff := a.login("clerk")
	admin := a.login("admin")

	body := map[string]any{"purchase_amount": "200", "voucher_value": "25", "voucher_duration": 3600}

	w := a.do(http.MethodPost, "/vouchers/config", staff, body)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(http.MethodGet, "/vouchers/config", staff, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(http.MethodPost, "/vouchers/config", admin, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var cfg loyalty.VoucherConfigJSON
	decode(t, w, &cfg)
	require.Equal(t, "200.00", cfg.PurchaseAmount)
	require.Equal(t, "25.00", cfg.VoucherValue)
	require.Equal(t, 3600.0, cfg.VoucherDuration)

	w = a.do(http.MethodPost, "/vouchers/config", admin, map[string]any{"purchase_amount": "-1", "voucher_value": "25", "voucher_duration": 3600})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodPost, "/users", staff, map[string]string{"username": "intruder", "password": password})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(http.MethodPost, "/users", admin, map[string]string{"username": "cashier", "password": password, "email": "cashier@example.com"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created user.UserJSON
	decode(t, w, &created)
	require.Equal(t, user.RoleStaff, created.Role)

	w = a.do(http.MethodGet, "/users/"+created.ID, staff, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(http.MethodGet, "/users", staff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var users listResponse[user.UserJSON]
	decode(t, w, &users)
	require.Len(t, users.Data, 3)
}

func TestBrowserFlow(t *testing.T) {
	a := newAPI(t)

	w := a.browse(http.MethodGet, "/customers", "", nil)
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "/login", w.Header().Get("Location"))

	w = a.browse(http.MethodGet, "/login", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `name="password"`)

	w = a.browse(http.MethodPost, "/login", "", url.Values{"username": {"clerk"}, "password": {"nope-nope"}})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "invalid username or password")

	w = a.browse(http.MethodPost, "/login", "", url.Values{"username": {"clerk"}, "password": {password}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "/", w.Header().Get("Location"))

	var session string
	for _, c := range w.Result().Cookies() {
		if c.Name == a.cfg.Session.Name {
			session = c.Value
		}
	}
	require.NotEmpty(t, session)

	w = a.browse(http.MethodGet, "/", session, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Welcome, clerk")

	w = a.browse(http.MethodPost, "/customers", session, url.Values{"first": {"Grace"}, "last": {"Hopper"}, "email": {"grace@example.com"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	location := w.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, "/customers/"))
	id := strings.TrimPrefix(location, "/customers/")

	w = a.browse(http.MethodPost, "/purchases", session, url.Values{"customer_id": {id}, "amount": {"120.50"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, location, w.Header().Get("Location"))

	w = a.browse(http.MethodGet, location, session, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	require.Contains(t, body, "grace@example.com")
	require.Contains(t, body, "120.50")
	require.Contains(t, body, "VCH-TEST-001")

	w = a.browse(http.MethodPost, location, session, url.Values{"first": {"Grace"}, "last": {"Murray"}, "email": {"grace@example.com"}})
	require.Equal(t, http.StatusSeeOther, w.Code)

	w = a.browse(http.MethodPost, "/purchases", session, url.Values{"customer_id": {id}, "amount": {"abc"}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "malformed request")

	w = a.browse(http.MethodGet, "/vouchers/config", session, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `value="100.00"`)

	w = a.browse(http.MethodGet, "/no/such/page", session, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "page not found")

	w = a.browse(http.MethodPost, "/logout", session, nil)
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "/login", w.Header().Get("Location"))
}

func TestOperationalEndpoints(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "loyaltyhub_http_requests_total")
}

func TestPurchaseAcceptsNumericIDs(t *testing.T) {
	a := newAPI(t)
	token := a.login("clerk")

	w := a.do(http.MethodPost, "/customers", token, map[string]string{
		"first": "Grace",
		"last":  "Hopper",
		"email": "grace@example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var cu customer.CustomerJSON
	decode(t, w, &cu)

	w = a.do(http.MethodPost, "/purchases", token, map[string]any{
		"customer_id": json.Number(cu.ID),
		"amount":      150,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var first loyalty.PurchaseJSON
	decode(t, w, &first)
	require.Equal(t, cu.ID, first.CustomerID)
	require.NotNil(t, first.IssuedVoucher)

	w = a.do(http.MethodPost, "/purchases", token, map[string]any{
		"customer_id": json.Number(cu.ID),
		"amount":      20,
		"voucher_ids": []json.Number{json.Number(first.IssuedVoucher.ID)},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var second loyalty.PurchaseJSON
	decode(t, w, &second)
	require.Equal(t, []string{first.IssuedVoucher.ID}, second.RedeemedVoucherIDs)
}

func TestPurchaseRejectsMissingCustomer(t *testing.T) {
	a := newAPI(t)
	token := a.login("clerk")

	w := a.do(http.MethodPost, "/purchases", token, map[string]any{"amount": "10"})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	require.Equal(t, "bad_request", errorCode(t, w))

	w = a.do(http.MethodPost, "/purchases", token, map[string]any{
		"customer_id": "ada",
		"amount":      "10",
	})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = a.do(http.MethodPost, "/purchases", token, map[string]any{
		"customer_id": 12345,
		"amount":      "10",
	})
	require.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
}
