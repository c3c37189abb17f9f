package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/kassa/internal/domain/catalog"
	"github.com/xenking/kassa/internal/domain/order"
)

type itemRequest struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency" validate:"required,oneof=usd rub"`
}

func encodeItem(e *jx.Encoder, it *catalog.Item) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(it.ID)
	e.FieldStart("name")
	e.Str(it.Name)
	e.FieldStart("description")
	e.Str(it.Description)
	e.FieldStart("price")
	e.Str(it.Price.String())
	e.FieldStart("currency")
	e.Str(string(it.Currency))
	e.ObjEnd()
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.items.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range items {
			encodeItem(e, &items[i])
		}
		e.ArrEnd()
	})
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	it, err := h.items.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeItem(e, it) })
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Price.IsNegative() {
		badRequest(w, "price must not be negative")
		return
	}

	it := &catalog.Item{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Currency:    catalog.Currency(req.Currency),
	}
	if err := h.items.Create(r.Context(), it); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeItem(e, it) })
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Price.IsNegative() {
		badRequest(w, "price must not be negative")
		return
	}

	it := &catalog.Item{
		ID:          chi.URLParam(r, "id"),
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Currency:    catalog.Currency(req.Currency),
	}
	if err := h.items.Update(r.Context(), it); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeItem(e, it) })
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.items.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createOrderRequest struct {
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description"`
	ItemIDs     []string `json:"item_ids"`
	DiscountID  string   `json:"discount_id"`
	TaxID       string   `json:"tax_id"`
}

type orderItemsRequest struct {
	ItemIDs []string `json:"item_ids" validate:"required,min=1"`
}

type orderDiscountRequest struct {
	DiscountID string `json:"discount_id" validate:"required"`
}

type orderTaxRequest struct {
	TaxID string `json:"tax_id" validate:"required"`
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("name")
	e.Str(o.Name)
	e.FieldStart("description")
	e.Str(o.Description)
	e.FieldStart("item_ids")
	e.ArrStart()
	for _, id := range o.ItemIDs {
		e.Str(id)
	}
	e.ArrEnd()
	if o.DiscountID != "" {
		e.FieldStart("discount_id")
		e.Str(o.DiscountID)
	}
	if o.TaxID != "" {
		e.FieldStart("tax_id")
		e.Str(o.TaxID)
	}
	e.FieldStart("total_price")
	e.Str(o.TotalPrice.StringFixed(2))
	e.ObjEnd()
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.Create(r.Context(), order.CreateRequest{
		Name:        req.Name,
		Description: req.Description,
		ItemIDs:     req.ItemIDs,
		DiscountID:  req.DiscountID,
		TaxID:       req.TaxID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addOrderItems(w http.ResponseWriter, r *http.Request) {
	var req orderItemsRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.AddItems(r.Context(), chi.URLParam(r, "id"), req.ItemIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) removeOrderItem(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.RemoveItems(r.Context(),
		chi.URLParam(r, "id"),
		[]string{chi.URLParam(r, "itemID")},
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) clearOrderItems(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.ClearItems(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) recomputeOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Recompute(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) setOrderDiscount(w http.ResponseWriter, r *http.Request) {
	var req orderDiscountRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.SetDiscount(r.Context(), chi.URLParam(r, "id"), req.DiscountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) clearOrderDiscount(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.SetDiscount(r.Context(), chi.URLParam(r, "id"), "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) setOrderTax(w http.ResponseWriter, r *http.Request) {
	var req orderTaxRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.SetTax(r.Context(), chi.URLParam(r, "id"), req.TaxID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) clearOrderTax(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.SetTax(r.Context(), chi.URLParam(r, "id"), "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}
