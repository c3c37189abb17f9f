// Package handler exposes the HTTP surface: checkout session and intent
// endpoints, item and order detail payloads, and the write surface for
// managing items, orders, discounts, and taxes.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/kassa/internal/domain/billing"
	"github.com/xenking/kassa/internal/domain/catalog"
	"github.com/xenking/kassa/internal/domain/checkout"
	"github.com/xenking/kassa/internal/domain/order"
	"github.com/xenking/kassa/internal/domain/pricing"
	"github.com/xenking/kassa/internal/gateway"
)

// Handler wires the domain services to the HTTP routes.
type Handler struct {
	items     catalog.Repository
	orders    *order.Service
	billing   billing.Repository
	lifecycle *billing.Lifecycle
	builder   *checkout.Builder
	gw        gateway.Gateway

	validate *validator.Validate
	sessions metric.Int64Counter
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	items catalog.Repository,
	orders *order.Service,
	billingRepo billing.Repository,
	lifecycle *billing.Lifecycle,
	builder *checkout.Builder,
	gw gateway.Gateway,
	meter metric.Meter,
) (*Handler, error) {
	sessions, err := meter.Int64Counter("kassa.checkout.requests",
		metric.WithDescription("Checkout session and intent requests built"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create counter")
	}

	return &Handler{
		items:     items,
		orders:    orders,
		billing:   billingRepo,
		lifecycle: lifecycle,
		builder:   builder,
		gw:        gw,
		validate:  validator.New(),
		sessions:  sessions,
	}, nil
}

// Routes mounts all API routes on a fresh chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/items", func(r chi.Router) {
		r.Get("/", h.listItems)
		r.Post("/", h.createItem)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getItem)
			r.Put("/", h.updateItem)
			r.Delete("/", h.deleteItem)
			r.Get("/session", h.itemSession)
			r.Get("/intent", h.itemIntent)
		})
	})

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getOrder)
			r.Delete("/", h.deleteOrder)
			r.Get("/session", h.orderSession)
			r.Post("/items", h.addOrderItems)
			r.Delete("/items", h.clearOrderItems)
			r.Delete("/items/{itemID}", h.removeOrderItem)
			r.Post("/recompute", h.recomputeOrder)
			r.Put("/discount", h.setOrderDiscount)
			r.Delete("/discount", h.clearOrderDiscount)
			r.Put("/tax", h.setOrderTax)
			r.Delete("/tax", h.clearOrderTax)
		})
	})

	r.Route("/discounts", func(r chi.Router) {
		r.Get("/", h.listDiscounts)
		r.Post("/", h.createDiscount)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getDiscount)
			r.Put("/", h.updateDiscount)
			r.Delete("/", h.deleteDiscount)
		})
	})

	r.Route("/taxes", func(r chi.Router) {
		r.Get("/", h.listTaxes)
		r.Post("/", h.createTax)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getTax)
			r.Put("/", h.updateTax)
			r.Delete("/", h.deleteTax)
		})
	})

	return r
}

// malformedRequestError marks a body that could not be parsed at all, as
// opposed to one that parsed but failed validation.
type malformedRequestError struct {
	err error
}

func (e *malformedRequestError) Error() string {
	return "malformed request body: " + e.err.Error()
}

// decode parses the request body into dst and runs struct validation.
func (h *Handler) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &malformedRequestError{err: err}
	}
	if err := h.validate.Struct(dst); err != nil {
		return err
	}
	return nil
}

// writeJSON encodes a response body with jx and writes it with the given
// status.
func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError maps a domain error to its HTTP status and writes the error
// envelope.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("request failed",
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(status)
		e.FieldStart("message")
		e.Str(err.Error())
		e.ObjEnd()
	})
}

func statusOf(err error) int {
	var (
		itemNF    *order.ItemNotFoundError
		price     *pricing.InvalidPriceError
		rate      *pricing.InvalidRateError
		percent   *billing.InvalidPercentageError
		valErrs   validator.ValidationErrors
		malformed *malformedRequestError
		gwErr     *gateway.Error
	)

	switch {
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, billing.ErrNotFound),
		errors.As(err, &itemNF):
		return http.StatusNotFound

	case errors.Is(err, order.ErrDuplicateItem),
		errors.As(err, &price),
		errors.As(err, &rate),
		errors.As(err, &percent),
		errors.As(err, &valErrs),
		errors.As(err, &malformed):
		return http.StatusBadRequest

	case errors.Is(err, checkout.ErrTaxNotSupported):
		return http.StatusUnprocessableEntity

	case errors.As(err, &gwErr):
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(http.StatusBadRequest)
		e.FieldStart("message")
		e.Str(msg)
		e.ObjEnd()
	})
}
