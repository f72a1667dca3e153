package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	cartapp "github.com/littlelayers/cartsync/internal/cart/app"
	checkoutapp "github.com/littlelayers/cartsync/internal/checkout/app"
	"github.com/littlelayers/cartsync/internal/identity"
)

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// httpStatusFromErr maps the engine's error taxonomy onto HTTP. Remote
// trouble is 503: transient, retryable, never a blocked cart.
func httpStatusFromErr(err error) (int, string) {
	switch {
	case errors.Is(err, cartapp.ErrInvalidMutation):
		return http.StatusBadRequest, "INVALID_MUTATION"
	case errors.Is(err, identity.ErrInvalidUserID):
		return http.StatusBadRequest, "INVALID_USER_ID"
	case errors.Is(err, checkoutapp.ErrEmptyCart):
		return http.StatusConflict, "EMPTY_CART"
	case errors.Is(err, cartapp.ErrPartialMerge):
		return http.StatusServiceUnavailable, "PARTIAL_MERGE"
	case errors.Is(err, cartapp.ErrRemoteUnavailable):
		return http.StatusServiceUnavailable, "REMOTE_UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, code := httpStatusFromErr(err)
	var body errorBody
	body.Error.Code = code
	body.Error.Message = err.Error()
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
