package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/andreasstove999/ecommerce-system/services/product-api-go/internal/events"
	"github.com/andreasstove999/ecommerce-system/services/product-api-go/internal/product"
)

const backendDocument = "nosql"

// DocumentHandler serves /api/nosql/products against the document store.
type DocumentHandler struct {
	repo product.DocumentRepository
	changeNotifier
}

func NewDocumentHandler(repo product.DocumentRepository, n changeNotifier) *DocumentHandler {
	return &DocumentHandler{repo: repo, changeNotifier: n}
}

// decodeFields reads and validates a create or replace payload. It writes
// the 400 response itself and reports false when the request is rejected.
func (h *DocumentHandler) decodeFields(w http.ResponseWriter, r *http.Request) (product.DocumentFields, bool) {
	body, err := readBody(w, r)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid JSON body")
		return product.DocumentFields{}, false
	}
	in, err := product.DecodeDocumentInput(body)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid JSON body")
		return product.DocumentFields{}, false
	}
	fields, err := in.Validate()
	if err != nil {
		var verr *product.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "Validation error", Errors: verr.Messages})
			return product.DocumentFields{}, false
		}
		writeFailure(w, http.StatusBadRequest, err.Error())
		return product.DocumentFields{}, false
	}
	return fields, true
}

// writeLookupError maps id and existence failures; anything else is a 500
// carrying fallback as the message.
func (h *DocumentHandler) writeLookupError(w http.ResponseWriter, fallback string, err error) {
	switch {
	case errors.Is(err, product.ErrInvalidID):
		writeFailure(w, http.StatusBadRequest, "Invalid product ID format")
	case errors.Is(err, product.ErrNotFound):
		writeFailure(w, http.StatusNotFound, "Product not found")
	default:
		writeBackendError(w, fallback, err)
	}
}

func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	fields, ok := h.decodeFields(w, r)
	if !ok {
		return
	}

	doc, err := h.repo.Create(r.Context(), fields)
	if err != nil {
		writeBackendError(w, "Error creating product", err)
		return
	}

	h.notify(r, events.Change{Kind: events.ProductCreated, Backend: backendDocument, ProductID: doc.ID.Hex(), Product: doc})
	writeData(w, http.StatusCreated, "Product created successfully", doc)
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}

	docs, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeBackendError(w, "Error retrieving products", err)
		return
	}
	writeList(w, docs)
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.repo.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeLookupError(w, "Error retrieving product", err)
		return
	}
	writeData(w, http.StatusOK, "", doc)
}

// Update replaces all four business fields; omitted optional fields fall
// back to their defaults.
func (h *DocumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	fields, ok := h.decodeFields(w, r)
	if !ok {
		return
	}

	doc, err := h.repo.Replace(r.Context(), chi.URLParam(r, "id"), fields)
	if err != nil {
		h.writeLookupError(w, "Error updating product", err)
		return
	}

	h.notify(r, events.Change{Kind: events.ProductUpdated, Backend: backendDocument, ProductID: doc.ID.Hex(), Product: doc})
	writeData(w, http.StatusOK, "Product updated successfully", doc)
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	doc, err := h.repo.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeLookupError(w, "Error deleting product", err)
		return
	}

	h.notify(r, events.Change{Kind: events.ProductDeleted, Backend: backendDocument, ProductID: doc.ID.Hex(), Product: doc})
	writeData(w, http.StatusOK, "Product deleted successfully", doc)
}
