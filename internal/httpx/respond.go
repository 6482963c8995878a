package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ariefcatur/go-laundry-cart/internal/apperr"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type errorBody struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindRemoteUnavailable:
		return http.StatusServiceUnavailable
	case apperr.KindNotAuthorized:
		return http.StatusForbidden
	case apperr.KindCouponRejected:
		return http.StatusUnprocessableEntity
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	kind := apperr.KindOf(err)
	code := statusFor(kind)
	body := errorBody{Error: err.Error(), Kind: kind.String(), Reason: apperr.ReasonOf(err)}

	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Err != nil {
		body.Error = ae.Message
	}
	if code >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())), zap.Error(err))
		if kind == apperr.KindInternal {
			body.Error = "internal error"
		}
	}
	writeJSON(w, code, body)
}

func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return apperr.Validation("InvalidJSON", "invalid json")
}

func requireUser(r *http.Request) (string, error) {
	id := identityFrom(r.Context())
	if !id.Authenticated() {
		return "", apperr.NotAuthorized("sign in required")
	}
	return id.UserID, nil
}
