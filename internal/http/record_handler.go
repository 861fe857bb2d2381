package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/andreasstove999/ecommerce-system/services/product-api-go/internal/events"
	"github.com/andreasstove999/ecommerce-system/services/product-api-go/internal/product"
)

const backendRelational = "sql"

// RecordHandler serves /api/sql/products against the relational store.
type RecordHandler struct {
	repo product.RecordRepository
	changeNotifier
}

func NewRecordHandler(repo product.RecordRepository, n changeNotifier) *RecordHandler {
	return &RecordHandler{repo: repo, changeNotifier: n}
}

func (h *RecordHandler) decodeInput(w http.ResponseWriter, r *http.Request) (product.RecordInput, bool) {
	body, err := readBody(w, r)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid JSON body")
		return product.RecordInput{}, false
	}
	in, err := product.DecodeRecordInput(body)
	if err != nil {
		var verr *product.ValidationError
		if errors.As(err, &verr) {
			writeFailure(w, http.StatusBadRequest, verr.Messages[0])
			return product.RecordInput{}, false
		}
		writeFailure(w, http.StatusBadRequest, "Invalid JSON body")
		return product.RecordInput{}, false
	}
	return in, true
}

func (h *RecordHandler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := product.ParseRecordID(chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid product ID format")
		return 0, false
	}
	return id, true
}

func (h *RecordHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeInput(w, r)
	if !ok {
		return
	}
	rec, err := in.ToNew()
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "Name and price are required fields")
		return
	}

	created, err := h.repo.Create(r.Context(), rec)
	if err != nil {
		writeBackendError(w, "Error creating product", err)
		return
	}

	h.notify(r, events.Change{Kind: events.ProductCreated, Backend: backendRelational, ProductID: strconv.FormatInt(created.ID, 10), Product: created})
	writeData(w, http.StatusCreated, "Product created successfully", created)
}

func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}

	recs, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeBackendError(w, "Error retrieving products", err)
		return
	}
	writeList(w, recs)
}

func (h *RecordHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	rec, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeFailure(w, http.StatusNotFound, "Product not found")
			return
		}
		writeBackendError(w, "Error retrieving product", err)
		return
	}
	writeData(w, http.StatusOK, "", rec)
}

// Update applies only the fields present in the body.
func (h *RecordHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	in, ok := h.decodeInput(w, r)
	if !ok {
		return
	}

	rec, err := h.repo.Update(r.Context(), id, in)
	if err != nil {
		switch {
		case errors.Is(err, product.ErrNotFound):
			writeFailure(w, http.StatusNotFound, "Product not found")
		case errors.Is(err, product.ErrNoFields):
			writeFailure(w, http.StatusBadRequest, "No fields to update")
		default:
			writeBackendError(w, "Error updating product", err)
		}
		return
	}

	h.notify(r, events.Change{Kind: events.ProductUpdated, Backend: backendRelational, ProductID: strconv.FormatInt(rec.ID, 10), Product: rec})
	writeData(w, http.StatusOK, "Product updated successfully", rec)
}

func (h *RecordHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	rec, err := h.repo.Delete(r.Context(), id)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeFailure(w, http.StatusNotFound, "Product not found")
			return
		}
		writeBackendError(w, "Error deleting product", err)
		return
	}

	h.notify(r, events.Change{Kind: events.ProductDeleted, Backend: backendRelational, ProductID: strconv.FormatInt(rec.ID, 10), Product: rec})
	writeData(w, http.StatusOK, "Product deleted successfully", rec)
}
