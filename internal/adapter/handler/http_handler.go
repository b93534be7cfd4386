package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"github.com/rl1809/library-lending/internal/core/domain"
	"github.com/rl1809/library-lending/internal/core/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// IdempotencyHeader carries the request key for POST /api/borrowings.
const IdempotencyHeader = "Idempotency-Key"

type HTTPHandler struct {
	engine *service.Engine
	log    zerolog.Logger
}

func NewHTTPHandler(engine *service.Engine, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{engine: engine, log: logger}
}

// Register mounts every route on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)

	mux.HandleFunc("GET /api/books", h.ListBooks)
	mux.HandleFunc("POST /api/books", h.CreateBook)
	mux.HandleFunc("GET /api/books/{id}", h.GetBook)
	mux.HandleFunc("PUT /api/books/{id}", h.UpdateBook)
	mux.HandleFunc("DELETE /api/books/{id}", h.DeleteBook)

	mux.HandleFunc("GET /api/borrowers", h.ListBorrowers)
	mux.HandleFunc("POST /api/borrowers", h.CreateBorrower)
	mux.HandleFunc("GET /api/borrowers/{id}", h.GetBorrower)
	mux.HandleFunc("PUT /api/borrowers/{id}", h.UpdateBorrower)
	mux.HandleFunc("DELETE /api/borrowers/{id}", h.DeleteBorrower)

	mux.HandleFunc("GET /api/borrowings", h.ListBorrowings)
	mux.HandleFunc("POST /api/borrowings", h.BorrowBook)
	mux.HandleFunc("GET /api/borrowings/{id}", h.GetBorrowing)
	mux.HandleFunc("POST /api/borrowings/{id}/return", h.ReturnBook)

	mux.HandleFunc("GET /api/audit", h.Audit)
}

func (h *HTTPHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var in domain.BookInput
	if !h.decode(w, r, &in) {
		return
	}
	book, err := h.engine.CreateBook(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookResponse(book))
}

func (h *HTTPHandler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var in domain.BookInput
	if !h.decode(w, r, &in) {
		return
	}
	book, err := h.engine.UpdateBook(r.Context(), id, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookResponse(book))
}

func (h *HTTPHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	h.deleteByID(w, r, h.engine.DeleteBook)
}

func (h *HTTPHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	book, err := h.engine.GetBook(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookResponse(book))
}

func (h *HTTPHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	books, err := h.engine.ListBooks(r.Context(), domain.BookFilter{
		Search:        q.Get("search"),
		AvailableOnly: queryBool(q.Get("available")),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(books, toBookResponse))
}

func (h *HTTPHandler) CreateBorrower(w http.ResponseWriter, r *http.Request) {
	var in domain.BorrowerInput
	if !h.decode(w, r, &in) {
		return
	}
	borrower, err := h.engine.CreateBorrower(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBorrowerResponse(borrower))
}

func (h *HTTPHandler) UpdateBorrower(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var in domain.BorrowerInput
	if !h.decode(w, r, &in) {
		return
	}
	borrower, err := h.engine.UpdateBorrower(r.Context(), id, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBorrowerResponse(borrower))
}

func (h *HTTPHandler) DeleteBorrower(w http.ResponseWriter, r *http.Request) {
	h.deleteByID(w, r, h.engine.DeleteBorrower)
}

func (h *HTTPHandler) GetBorrower(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	borrower, err := h.engine.GetBorrower(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBorrowerResponse(borrower))
}

func (h *HTTPHandler) ListBorrowers(w http.ResponseWriter, r *http.Request) {
	borrowers, err := h.engine.ListBorrowers(r.Context(), domain.BorrowerFilter{
		Search: r.URL.Query().Get("search"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(borrowers, toBorrowerResponse))
}

func (h *HTTPHandler) BorrowBook(w http.ResponseWriter, r *http.Request) {
	var req BorrowRequest
	if !h.decode(w, r, &req) {
		return
	}
	borrowDate, err := optionalDay(req.BorrowDate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	key := r.Header.Get(IdempotencyHeader)
	if key == "" {
		key = req.RequestKey
	}

	record, err := h.engine.BorrowBookOnce(r.Context(), key, req.BookID, req.BorrowerID, borrowDate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBorrowingResponse(record))
}

func (h *HTTPHandler) ReturnBook(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	// The body is optional; an empty one returns the book today.
	var req ReturnRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}
	returnDate, err := optionalDay(req.ReturnDate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	record, err := h.engine.ReturnBook(r.Context(), id, returnDate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBorrowingResponse(record))
}

func (h *HTTPHandler) GetBorrowing(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	record, err := h.engine.GetBorrowing(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBorrowingResponse(record))
}

func (h *HTTPHandler) ListBorrowings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.BorrowingFilter{
		Search:   q.Get("search"),
		OpenOnly: queryBool(q.Get("open")),
	}
	var err error
	if filter.BookID, err = queryID(q.Get("book_id"), "book_id"); err != nil {
		h.writeError(w, r, err)
		return
	}
	if filter.BorrowerID, err = queryID(q.Get("borrower_id"), "borrower_id"); err != nil {
		h.writeError(w, r, err)
		return
	}

	details, err := h.engine.ListBorrowings(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(details, toBorrowingDetailResponse))
}

func (h *HTTPHandler) Audit(w http.ResponseWriter, r *http.Request) {
	found, err := h.engine.Audit(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(found, toDiscrepancyResponse))
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) deleteByID(w http.ResponseWriter, r *http.Request, del func(context.Context, int64) error) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := del(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeBadBody(w)
		return false
	}
	return true
}

// decodeOptional accepts a missing body, whatever the Content-Length says.
func (h *HTTPHandler) decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeBadBody(w)
		return false
	}
	return true
}

func writeBadBody(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "validation",
		Message: "invalid request body",
	})
}

func (h *HTTPHandler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, r, &domain.ValidationError{Field: "id", Reason: "must be a positive integer"})
		return 0, false
	}
	return id, true
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	m := mapError(err)
	if m.status >= http.StatusInternalServerError {
		h.log.Error().Err(err).
			Str("request_id", RequestID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
	}
	writeJSON(w, m.status, ErrorResponse{Error: m.kind, Message: publicMessage(err, m)})
}

func queryBool(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}

func queryID(v, field string) (int64, error) {
	if v == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, &domain.ValidationError{Field: field, Reason: "must be a positive integer"}
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
