package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// itemSession builds and creates a hosted checkout session for a single item.
func (h *Handler) itemSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := h.builder.ItemSession(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	sessionID, err := h.gw.CreateSession(ctx, *req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.sessions.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "item_session")))

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("session_id")
		e.Str(sessionID)
		e.ObjEnd()
	})
}

// itemIntent creates a payment intent for a single item and returns the
// client secret for in-page confirmation.
func (h *Handler) itemIntent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := h.builder.ItemIntent(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	secret, err := h.gw.CreatePaymentIntent(ctx, *req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.sessions.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "item_intent")))

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("client_secret")
		e.Str(secret)
		e.ObjEnd()
	})
}

// orderSession builds and creates a hosted checkout session for a whole
// order, applying its discount when one is attached.
func (h *Handler) orderSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := h.builder.OrderSession(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	sessionID, err := h.gw.CreateSession(ctx, *req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.sessions.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "order_session")))

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("session_id")
		e.Str(sessionID)
		e.ObjEnd()
	})
}
