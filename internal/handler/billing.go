package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kassa/internal/domain/billing"
)

// Discount and tax writes go through the lifecycle manager so the gateway
// coupon and tax rate objects stay in step with the local records.

type discountRequest struct {
	Name       string          `json:"name"`
	Percentage decimal.Decimal `json:"percentage"`
}

type taxRequest struct {
	Name       string          `json:"name"`
	Percentage decimal.Decimal `json:"percentage"`
}

func encodeDiscount(e *jx.Encoder, d *billing.Discount) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(d.ID)
	e.FieldStart("name")
	e.Str(d.Name)
	e.FieldStart("percentage")
	e.Str(d.Percentage.String())
	e.FieldStart("coupon_id")
	e.Str(d.ExternalCouponID)
	e.ObjEnd()
}

func encodeTax(e *jx.Encoder, t *billing.Tax) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(t.ID)
	e.FieldStart("name")
	e.Str(t.Name)
	e.FieldStart("percentage")
	e.Str(t.Percentage.String())
	e.FieldStart("rate_id")
	e.Str(t.ExternalRateID)
	e.ObjEnd()
}

func (h *Handler) listDiscounts(w http.ResponseWriter, r *http.Request) {
	discounts, err := h.billing.ListDiscounts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range discounts {
			encodeDiscount(e, &discounts[i])
		}
		e.ArrEnd()
	})
}

func (h *Handler) getDiscount(w http.ResponseWriter, r *http.Request) {
	d, err := h.billing.GetDiscount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeDiscount(e, d) })
}

func (h *Handler) createDiscount(w http.ResponseWriter, r *http.Request) {
	var req discountRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	d := &billing.Discount{Name: req.Name, Percentage: req.Percentage}
	if err := h.lifecycle.SaveDiscount(r.Context(), d); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeDiscount(e, d) })
}

func (h *Handler) updateDiscount(w http.ResponseWriter, r *http.Request) {
	var req discountRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	prev, err := h.billing.GetDiscount(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	d := &billing.Discount{
		ID:               id,
		Name:             req.Name,
		Percentage:       req.Percentage,
		ExternalCouponID: prev.ExternalCouponID,
	}
	if err := h.lifecycle.SaveDiscount(r.Context(), d); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeDiscount(e, d) })
}

func (h *Handler) deleteDiscount(w http.ResponseWriter, r *http.Request) {
	if err := h.lifecycle.DeleteDiscount(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listTaxes(w http.ResponseWriter, r *http.Request) {
	taxes, err := h.billing.ListTaxes(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range taxes {
			encodeTax(e, &taxes[i])
		}
		e.ArrEnd()
	})
}

func (h *Handler) getTax(w http.ResponseWriter, r *http.Request) {
	t, err := h.billing.GetTax(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeTax(e, t) })
}

func (h *Handler) createTax(w http.ResponseWriter, r *http.Request) {
	var req taxRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	t := &billing.Tax{Name: req.Name, Percentage: req.Percentage}
	if err := h.lifecycle.SaveTax(r.Context(), t); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeTax(e, t) })
}

func (h *Handler) updateTax(w http.ResponseWriter, r *http.Request) {
	var req taxRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	prev, err := h.billing.GetTax(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	t := &billing.Tax{
		ID:             id,
		Name:           req.Name,
		Percentage:     req.Percentage,
		ExternalRateID: prev.ExternalRateID,
	}
	if err := h.lifecycle.SaveTax(r.Context(), t); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeTax(e, t) })
}

func (h *Handler) deleteTax(w http.ResponseWriter, r *http.Request) {
	if err := h.lifecycle.DeleteTax(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
