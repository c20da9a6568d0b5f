package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chowspace/pkg/backend"
	"chowspace/pkg/cart"
	"chowspace/pkg/checkout"
	"chowspace/pkg/dashboard"
	"chowspace/pkg/menu"
	"chowspace/pkg/order"
	"chowspace/pkg/session"
)

const managerToken = "secret"

// fakeBackend stands in for the order API.
func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	today := time.Now().UTC().Format(time.RFC3339)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/order", func(w http.ResponseWriter, r *http.Request) {
		var ord map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ord))
		ord["_id"] = "64f0c2a1b9e3d4a5f6a7b8c9"
		_ = json.NewEncoder(w).Encode(map[string]any{"order": ord, "authorizationUrl": "https://pay.example/abc"})
	})
	mux.HandleFunc("POST /api/verifyPayment", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Reference string `json:"reference"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Reference == "declined" {
			_, _ = w.Write([]byte(`{"success":false}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"order":{"_id":"64f0c2a1b9e3d4a5f6a7b8c9","paymentStatus":"paid"}}`))
	})
	authorized := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+managerToken {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}
	mux.HandleFunc("GET /api/manager/orders", authorized(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"orders":[
			{"_id":"aaaaaa111111","status":"pending","paymentStatus":"paid","totalAmount":3000,"createdAt":%q},
			{"_id":"bbbbbb222222","status":"completed","paymentStatus":"paid","totalAmount":1500,"createdAt":%q},
			{"_id":"cccccc333333","status":"pending","paymentStatus":"unpaid","totalAmount":800,"createdAt":"2020-01-01T10:00:00Z"}
		]}`, today, today)
	}))
	mux.HandleFunc("PUT /api/order/{id}", authorized(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	mux.HandleFunc("DELETE /api/cleanupPendingOrders", authorized(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type testEnv struct {
	server *httptest.Server
	client *http.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	sessions := session.NewManager(session.Config{}, nil)
	t.Cleanup(sessions.Close)

	products, err := menu.Load("")
	require.NoError(t, err)
	menuService, err := menu.NewService(products)
	require.NoError(t, err)
	t.Cleanup(menuService.Close)

	api, err := backend.NewClient(backend.Config{BaseURL: fakeBackend(t).URL, RatePerSecond: 1000}, nil)
	require.NoError(t, err)

	srv, err := New(sessions, menuService, checkout.NewService(api, nil), dashboard.New(api, nil), nil)
	require.NoError(t, err)

	server := httptest.NewServer(srv.Handler())
	t.Cleanup(server.Close)

	return &testEnv{server: server, client: newClient(t)}
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func (e *testEnv) do(t *testing.T, client *http.Client, method, path, body string, header ...string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(bytes.TrimSpace(data)) > 0 && data[0] == '{' {
		require.NoError(t, json.Unmarshal(data, &out), string(data))
	}
	return resp.StatusCode, out
}

// quantities maps item id to quantity for one pack of a cart response.
func quantities(t *testing.T, body map[string]any, pack int) map[string]float64 {
	t.Helper()
	packs, ok := body["packs"].([]any)
	require.True(t, ok, "response has packs: %v", body)
	require.Less(t, pack, len(packs))
	out := map[string]float64{}
	for _, raw := range packs[pack].([]any) {
		item := raw.(map[string]any)
		out[item["id"].(string)] = item["quantity"].(float64)
	}
	return out
}

func TestHealthAndMenu(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, env.client, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	resp, err := env.client.Get(env.server.URL + "/api/menu")
	require.NoError(t, err)
	defer resp.Body.Close()
	var products []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&products))
	require.NotEmpty(t, products)
	assert.Equal(t, "jollof-rice", products[0]["id"])
}

func TestCartFlow(t *testing.T) {
	env := newTestEnv(t)
	c := env.client

	status, body := env.do(t, c, http.MethodGet, "/api/cart", "")
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, quantities(t, body, 0))
	assert.EqualValues(t, 0, body["active"])

	env.do(t, c, http.MethodPost, "/api/cart/items", `{"id":"jollof-rice"}`)
	status, body = env.do(t, c, http.MethodPost, "/api/cart/items", `{"id":"jollof-rice"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]float64{"jollof-rice": 2}, quantities(t, body, 0))
	assert.EqualValues(t, 3000, body["total"])
	assert.EqualValues(t, 2, body["itemCount"])

	status, body = env.do(t, c, http.MethodPost, "/api/cart/packs", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["active"])

	status, body = env.do(t, c, http.MethodPost, "/api/cart/items?pack=0", `{"_id":"suya","name":"Suya","price":"2500","spice":"hot"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]float64{"jollof-rice": 2, "suya": 1}, quantities(t, body, 0))
	assert.Empty(t, quantities(t, body, 1))

	status, body = env.do(t, c, http.MethodDelete, "/api/cart/items/jollof-rice?pack=0", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]float64{"jollof-rice": 1, "suya": 1}, quantities(t, body, 0))

	status, body = env.do(t, c, http.MethodPost, "/api/cart/items/suya/increment?pack=0", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]float64{"jollof-rice": 1, "suya": 2}, quantities(t, body, 0))

	status, body = env.do(t, c, http.MethodPost, "/api/cart/packs/0/duplicate", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, body["active"])
	assert.Equal(t, quantities(t, body, 0), quantities(t, body, 2))

	status, body = env.do(t, c, http.MethodPut, "/api/cart/packs/active", `{"index":1}`)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["active"])

	status, body = env.do(t, c, http.MethodPost, "/api/cart/items", `{"id":"chapman"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]float64{"chapman": 1}, quantities(t, body, 1))

	status, body = env.do(t, c, http.MethodDelete, "/api/cart", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["packs"], 1)
	assert.Empty(t, quantities(t, body, 0))
}

func TestCartRejections(t *testing.T) {
	env := newTestEnv(t)
	c := env.client

	tests := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodPost, "/api/cart/items", `{"id":"pounded-yam"}`, http.StatusNotFound},
		{http.MethodPost, "/api/cart/items", `{"name":"No id"}`, http.StatusBadRequest},
		{http.MethodPost, "/api/cart/items", `{not json`, http.StatusBadRequest},
		{http.MethodPost, "/api/cart/items", `{"id":"x","name":"X","price":1e50000000}`, http.StatusBadRequest},
		{http.MethodPost, "/api/cart/items", `{"id":"x","name":"X","price":-5}`, http.StatusBadRequest},
		{http.MethodPost, "/api/cart/items", `{"id":"x","name":"` + strings.Repeat("a", maxBodyBytes) + `"}`, http.StatusRequestEntityTooLarge},
		{http.MethodPost, "/api/cart/items?pack=9", `{"id":"chapman"}`, http.StatusBadRequest},
		{http.MethodPost, "/api/cart/items?pack=abc", `{"id":"chapman"}`, http.StatusBadRequest},
		{http.MethodDelete, "/api/cart/items/chapman?pack=-1", "", http.StatusBadRequest},
		{http.MethodPost, "/api/cart/packs/7/duplicate", "", http.StatusBadRequest},
		{http.MethodPost, "/api/cart/packs/x/duplicate", "", http.StatusBadRequest},
		{http.MethodPut, "/api/cart/packs/active", `{}`, http.StatusBadRequest},
		{http.MethodPut, "/api/cart/packs/active", `{"index":3}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		status, body := env.do(t, c, tt.method, tt.path, tt.body)
		assert.Equal(t, tt.want, status, "%s %s %s", tt.method, tt.path, tt.body)
		assert.NotEmpty(t, body["error"], "%s %s", tt.method, tt.path)
	}

	// Removing something that is not there is a no-op, not an error.
	status, body := env.do(t, c, http.MethodDelete, "/api/cart/items/chapman", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, quantities(t, body, 0))
	assert.EqualValues(t, 0, body["total"], "totals are JSON numbers")
}

func TestSessionsAreIsolated(t *testing.T) {
	env := newTestEnv(t)
	alice, bob := newClient(t), newClient(t)

	env.do(t, alice, http.MethodPost, "/api/cart/items", `{"id":"chapman"}`)
	_, body := env.do(t, bob, http.MethodGet, "/api/cart", "")
	assert.Empty(t, quantities(t, body, 0))
	_, body = env.do(t, alice, http.MethodGet, "/api/cart", "")
	assert.Equal(t, map[string]float64{"chapman": 1}, quantities(t, body, 0))
}

func TestCheckoutFlow(t *testing.T) {
	env := newTestEnv(t)
	c := env.client

	status, body := env.do(t, c, http.MethodPost, "/api/checkout", `{"guestInfo":{"name":"Ada","phone":"0803"},"deliveryMethod":"pickup"}`)
	assert.Equal(t, http.StatusBadRequest, status, "empty cart")
	assert.Equal(t, "cart is empty", body["error"])

	env.do(t, c, http.MethodPost, "/api/cart/items", `{"id":"jollof-rice"}`)

	status, body = env.do(t, c, http.MethodPost, "/api/checkout", `{"guestInfo":{"name":"Ada","phone":"0803"},"deliveryMethod":"delivery"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "address is required for delivery", body["error"])

	status, _ = env.do(t, c, http.MethodPost, "/api/checkout/verify?reference=ref-1", "")
	assert.Equal(t, http.StatusConflict, status, "nothing is pending yet")

	status, body = env.do(t, c, http.MethodPost, "/api/checkout", `{"guestInfo":{"name":"Ada","phone":"0803","address":"12 Allen Avenue"},"deliveryMethod":"delivery"}`)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "https://pay.example/abc", body["authorizationUrl"])

	status, _ = env.do(t, c, http.MethodPost, "/api/checkout/verify", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = env.do(t, c, http.MethodPost, "/api/checkout/verify?reference=declined", "")
	require.Equal(t, http.StatusPaymentRequired, status)
	assert.Equal(t, string(checkout.StateFailed), body["state"])
	assert.NotEmpty(t, body["error"])
	pending, ok := body["order"].(map[string]any)
	require.True(t, ok, "failed confirmation carries the pending order: %v", body)
	assert.Equal(t, "64f0c2a1b9e3d4a5f6a7b8c9", pending["_id"])
	assert.EqualValues(t, 1500, pending["totalAmount"])

	status, body = env.do(t, c, http.MethodPost, "/api/checkout/verify?reference=ref-1", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, string(checkout.StateConfirmed), body["state"])

	_, body = env.do(t, c, http.MethodGet, "/api/cart", "")
	assert.Empty(t, quantities(t, body, 0), "confirmed payment empties the cart")
}

func TestManagerRoutes(t *testing.T) {
	env := newTestEnv(t)
	c := env.client
	auth := []string{"Authorization", "Bearer " + managerToken}

	status, _ := env.do(t, c, http.MethodGet, "/api/manager/orders", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = env.do(t, c, http.MethodGet, "/api/manager/orders", "", "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := env.do(t, c, http.MethodGet, "/api/manager/orders", "", auth...)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["orders"], 2, "only today's orders")
	summary := body["summary"].(map[string]any)
	assert.EqualValues(t, 4500, summary["revenue"])

	status, body = env.do(t, c, http.MethodGet, "/api/manager/orders?status=completed", "", auth...)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["orders"], 1)

	status, _ = env.do(t, c, http.MethodGet, "/api/manager/orders?date=yesterday", "", auth...)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = env.do(t, c, http.MethodPut, "/api/manager/orders/aaaaaa111111/toggle", `{"status":"pending"}`, auth...)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "completed", body["status"])

	status, _ = env.do(t, c, http.MethodPut, "/api/manager/orders/aaaaaa111111/toggle", `{}`, auth...)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, c, http.MethodDelete, "/api/manager/orders/pending", "", auth...)
	assert.Equal(t, http.StatusNoContent, status)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{cart.ErrInvalidItem, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", cart.ErrInvalidIndex), http.StatusBadRequest},
		{dashboard.ErrInvalidFilter, http.StatusBadRequest},
		{checkout.ErrMissingReference, http.StatusBadRequest},
		{checkout.ErrNoPendingOrder, http.StatusConflict},
		{checkout.ErrPaymentNotConfirmed, http.StatusPaymentRequired},
		{menu.ErrNotFound, http.StatusNotFound},
		{backend.ErrNotFound, http.StatusNotFound},
		{backend.ErrUnauthorized, http.StatusUnauthorized},
		{backend.ErrUnavailable, http.StatusBadGateway},
		{&backend.APIError{StatusCode: 422}, http.StatusBadGateway},
		{session.ErrClosed, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}

	_, err := order.Build(cart.Snapshot{}, order.GuestInfo{}, "")
	assert.Equal(t, http.StatusBadRequest, statusFor(err))
}
