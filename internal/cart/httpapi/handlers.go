// Package httpapi is the boundary the presentation adapter talks through:
// cart mutations in, converged snapshots out. The engine stays the owner of
// all cart state; handlers only translate.
package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	cartapp "github.com/littlelayers/cartsync/internal/cart/app"
	"github.com/littlelayers/cartsync/internal/cart/domain"
	checkoutapp "github.com/littlelayers/cartsync/internal/checkout/app"
	"github.com/littlelayers/cartsync/internal/identity"
)

type Server struct {
	log      *slog.Logger
	engine   *cartapp.Engine
	checkout *checkoutapp.Service
	tracker  *identity.Tracker
}

func NewServer(engine *cartapp.Engine, checkout *checkoutapp.Service, tracker *identity.Tracker, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{log: log, engine: engine, checkout: checkout, tracker: tracker}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", s.handleGetCart)
		r.Delete("/", s.handleClearCart)
		r.Post("/items", s.handleAddItem)
		r.Put("/items/{productID}", s.handleSetQuantity)
		r.Delete("/items/{productID}", s.handleRemoveItem)
		r.Post("/sync", s.handleSync)
	})

	r.Route("/session", func(r chi.Router) {
		r.Post("/signin", s.handleSignIn)
		r.Post("/signout", s.handleSignOut)
	})

	r.Route("/checkout", func(r chi.Router) {
		r.Get("/quote", s.handleQuote)
		r.Post("/", s.handlePlaceOrder)
	})

	return r
}

type itemView struct {
	ProductID string `json:"product_id"`
	Name      string `json:"product_name"`
	UnitPrice int64  `json:"product_price"`
	ImageRef  string `json:"product_image"`
	Quantity  int32  `json:"quantity"`
}

type cartView struct {
	Items      []itemView `json:"items"`
	TotalItems int32      `json:"total_items"`
	TotalPrice int64      `json:"total_price"`
	Degraded   bool       `json:"degraded"`
}

func (s *Server) cartViewOf(snap domain.Snapshot) cartView {
	items := make([]itemView, len(snap.Items))
	for i, it := range snap.Items {
		items[i] = itemView{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			ImageRef:  it.ImageRef,
			Quantity:  it.Quantity,
		}
	}
	return cartView{
		Items:      items,
		TotalItems: snap.TotalItems(),
		TotalPrice: snap.TotalPrice(),
		Degraded:   s.engine.Degraded(),
	}
}

func (s *Server) handleGetCart(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cartViewOf(s.engine.Snapshot()))
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Name      string `json:"product_name"`
	UnitPrice int64  `json:"product_price"`
	ImageRef  string `json:"product_image"`
	Quantity  int32  `json:"quantity"`
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", cartapp.ErrInvalidMutation, err))
		return
	}

	snap, err := s.engine.AddItem(r.Context(), domain.Item{
		ProductID: req.ProductID,
		Name:      req.Name,
		UnitPrice: req.UnitPrice,
		ImageRef:  req.ImageRef,
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.cartViewOf(snap))
}

type setQuantityRequest struct {
	Quantity int32 `json:"quantity"`
}

func (s *Server) handleSetQuantity(w http.ResponseWriter, r *http.Request) {
	var req setQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", cartapp.ErrInvalidMutation, err))
		return
	}

	snap, err := s.engine.SetQuantity(r.Context(), chi.URLParam(r, "productID"), req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.cartViewOf(snap))
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.RemoveItem(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.cartViewOf(snap))
}

func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.Clear(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.cartViewOf(snap))
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Sync(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.cartViewOf(s.engine.Snapshot()))
}

type signInRequest struct {
	UserID string `json:"user_id"`
}

// handleSignIn enqueues the transition; the tracker processes it in order
// and the engine reconciles. The response is the pre-merge snapshot, the
// converged one follows on the next read.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", identity.ErrInvalidUserID, err))
		return
	}
	if err := s.tracker.SignIn(req.UserID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleSignOut(w http.ResponseWriter, _ *http.Request) {
	s.tracker.SignOut()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	q, err := s.checkout.Quote(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.checkout.PlaceOrder(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	s.log.Info("mock order placed",
		slog.String("reference", receipt.Reference),
		slog.Int64("total", receipt.Total.Amount))
	writeJSON(w, http.StatusCreated, receipt)
}
