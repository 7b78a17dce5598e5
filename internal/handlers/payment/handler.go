package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	paymentService "github.com/merchantkit/ogone-service/internal/services/payment"
	pkgerrors "github.com/merchantkit/ogone-service/pkg/errors"
)

// Handler exposes the payment operations over HTTP
type Handler struct {
	service *paymentService.Service
	logger  *zap.Logger
}

// NewHandler creates a new payment HTTP handler
func NewHandler(service *paymentService.Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Routes mounts the payment endpoints on a chi router
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/authorize", h.operation(h.service.Authorize))
	r.Post("/purchase", h.operation(h.service.Purchase))
	r.Post("/capture", h.operation(h.service.Capture))
	r.Post("/void", h.operation(h.service.Void))
	r.Post("/credit", h.operation(h.service.Credit))
	r.Post("/refund", h.operation(h.service.Refund))

	return r
}

// errorResponse is the JSON body for request and upstream failures
type errorResponse struct {
	Error string `json:"error"`
}

// operation wraps one service call in the shared decode/respond plumbing.
// Processor declines come back as 200 with success=false: the exchange with
// the processor worked, the payment did not.
func (h *Handler) operation(call func(ctx context.Context, req *paymentService.PaymentRequest) (*paymentService.PaymentResponse, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req paymentService.PaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		resp, err := call(r.Context(), &req)
		if err != nil {
			var validationErr *pkgerrors.ValidationError
			if errors.As(err, &validationErr) {
				h.respondError(w, http.StatusBadRequest, validationErr.Error())
				return
			}

			var paymentErr *pkgerrors.PaymentError
			if errors.As(err, &paymentErr) {
				h.logger.Error("Gateway exchange failed",
					zap.String("code", paymentErr.Code),
					zap.String("category", string(paymentErr.Category)),
					zap.Bool("retriable", paymentErr.IsRetriable),
					zap.Error(err),
				)
				switch paymentErr.Category {
				case pkgerrors.CategoryNetworkError:
					h.respondError(w, http.StatusBadGateway, "payment processor unreachable")
				default:
					h.respondError(w, http.StatusBadGateway, "invalid payment processor response")
				}
				return
			}

			h.logger.Error("Gateway exchange failed", zap.Error(err))
			h.respondError(w, http.StatusBadGateway, "payment processor unreachable")
			return
		}

		h.respondJSON(w, http.StatusOK, resp)
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, errorResponse{Error: message})
}
