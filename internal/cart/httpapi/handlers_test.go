package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	cartapp "github.com/littlelayers/cartsync/internal/cart/app"
	"github.com/littlelayers/cartsync/internal/cart/infra/memory"
	checkoutapp "github.com/littlelayers/cartsync/internal/checkout/app"
	"github.com/littlelayers/cartsync/internal/identity"
)

func newTestServer(t *testing.T) (*httptest.Server, *cartapp.Engine, *identity.Tracker) {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := cartapp.NewEngine(memory.NewLocalStore(), memory.NewRemoteStore(), log)
	tracker := identity.NewTracker(log)
	checkout := checkoutapp.NewService(engine)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = tracker.Run(ctx, func(ctx context.Context, ev identity.Event) error {
			switch ev.Kind {
			case identity.KindSignedIn:
				return engine.SignIn(ctx, ev.UserID)
			case identity.KindSignedOut:
				return engine.SignOut(ctx)
			default:
				return engine.RestoreSession(ctx, ev.UserID)
			}
		})
	}()

	srv := httptest.NewServer(NewServer(engine, checkout, tracker, log).Routes())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return srv, engine, tracker
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, respBody
}

func TestCartLifecycleOverHTTP(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/cart/items",
		`{"product_id":"p1","product_name":"Romper","product_price":2400,"quantity":2}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add item status = %d: %s", resp.StatusCode, body)
	}

	var cart cartView
	if err := json.Unmarshal(body, &cart); err != nil {
		t.Fatalf("decode cart: %v", err)
	}
	if cart.TotalItems != 2 || cart.TotalPrice != 4800 {
		t.Fatalf("cart = %+v, want 2 items / 4800", cart)
	}

	resp, body = doJSON(t, http.MethodPut, srv.URL+"/cart/items/p1", `{"quantity":5}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set quantity status = %d: %s", resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, &cart); err != nil {
		t.Fatalf("decode cart: %v", err)
	}
	if cart.TotalItems != 5 {
		t.Fatalf("total items = %d, want 5", cart.TotalItems)
	}

	resp, body = doJSON(t, http.MethodDelete, srv.URL+"/cart/items/p1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("remove status = %d: %s", resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, &cart); err != nil {
		t.Fatalf("decode cart: %v", err)
	}
	if len(cart.Items) != 0 {
		t.Fatalf("cart not empty after remove: %+v", cart.Items)
	}
}

func TestAddItemRejectsBadPayload(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/cart/items", `{"product_id":"","quantity":1}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}

	var e errorBody
	if err := json.Unmarshal(body, &e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if e.Error.Code != "INVALID_MUTATION" {
		t.Fatalf("code = %s, want INVALID_MUTATION", e.Error.Code)
	}
}

func TestSignInFlowsThroughTracker(t *testing.T) {
	srv, engine, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/session/signin", `{"user_id":"u1"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if engine.Identity().IsAuthenticated() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("engine never transitioned to authenticated")
}

func TestCheckoutQuoteAndPlaceOrder(t *testing.T) {
	srv, engine, _ := newTestServer(t)

	if _, body := doJSON(t, http.MethodPost, srv.URL+"/cart/items",
		`{"product_id":"p1","product_name":"Romper","product_price":2400,"quantity":2}`); len(body) == 0 {
		t.Fatal("add item returned no body")
	}

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/checkout/quote", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("quote status = %d: %s", resp.StatusCode, body)
	}
	var q checkoutapp.Quote
	if err := json.Unmarshal(body, &q); err != nil {
		t.Fatalf("decode quote: %v", err)
	}
	if q.Total.Amount != 4800 {
		t.Fatalf("quote total = %d, want 4800", q.Total.Amount)
	}

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/checkout/", "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("place order status = %d: %s", resp.StatusCode, body)
	}
	var r checkoutapp.Receipt
	if err := json.Unmarshal(body, &r); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if r.Reference == "" {
		t.Fatal("empty receipt reference")
	}
	if !engine.Snapshot().Empty() {
		t.Fatal("cart not cleared after checkout")
	}
}

func TestQuoteOnEmptyCart(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/checkout/quote", "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
}
