package handler

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/library-lending/internal/adapter/auth"
	"github.com/rl1809/library-lending/internal/core/domain"
)

type httpClient struct {
	t       *testing.T
	handler http.Handler
}

func newHTTPClient(t *testing.T) *httpClient {
	h := NewHTTPHandler(newTestEngine(t), zerolog.Nop())
	return &httpClient{t: t, handler: h.Routes(nil)}
}

func (c *httpClient) do(method, path string, body any, header ...string) *httptest.ResponseRecorder {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHTTP_HealthCheck(t *testing.T) {
	c := newHTTPClient(t)

	rec := c.do(http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestHTTP_BorrowAndReturnFlow(t *testing.T) {
	c := newHTTPClient(t)

	rec := c.do(http.MethodPost, "/api/books", map[string]any{
		"title": "Dune", "author": "Herbert", "isbn": "9780441013593", "total_copies": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	book := decodeBody[BookResponse](t, rec)
	assert.Equal(t, 1, book.AvailableCopies)

	rec = c.do(http.MethodPost, "/api/borrowers", map[string]any{"name": "Alice", "contact_info": "alice@example.com"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	alice := decodeBody[BorrowerResponse](t, rec)

	rec = c.do(http.MethodPost, "/api/borrowings", BorrowRequest{BookID: book.ID, BorrowerID: alice.ID, BorrowDate: "2024-03-01"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	loan := decodeBody[BorrowingResponse](t, rec)
	assert.Equal(t, "open", loan.State)
	assert.Equal(t, "2024-03-01", loan.BorrowDate)

	rec = c.do(http.MethodPost, "/api/borrowings", BorrowRequest{BookID: book.ID, BorrowerID: alice.ID})
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Equal(t, "out_of_stock", decodeBody[ErrorResponse](t, rec).Error)

	rec = c.do(http.MethodDelete, "/api/books/"+itoa(book.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "referential_conflict", decodeBody[ErrorResponse](t, rec).Error)

	rec = c.do(http.MethodPost, "/api/borrowings/"+itoa(loan.ID)+"/return", ReturnRequest{ReturnDate: "2024-03-10"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	returned := decodeBody[BorrowingResponse](t, rec)
	assert.Equal(t, "closed", returned.State)
	assert.Equal(t, "2024-03-10", returned.ReturnDate)

	rec = c.do(http.MethodPost, "/api/borrowings/"+itoa(loan.ID)+"/return", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_returned", decodeBody[ErrorResponse](t, rec).Error)

	rec = c.do(http.MethodGet, "/api/books/"+itoa(book.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeBody[BookResponse](t, rec).AvailableCopies)

	rec = c.do(http.MethodGet, "/api/borrowings?search=dune", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]BorrowingResponse](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "Dune", list[0].BookTitle)
	assert.Equal(t, "Alice", list[0].BorrowerName)

	rec = c.do(http.MethodGet, "/api/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]DiscrepancyResponse](t, rec))
}

func TestHTTP_ErrorMapping(t *testing.T) {
	c := newHTTPClient(t)

	rec := c.do(http.MethodPost, "/api/books", map[string]any{"title": "", "author": "x", "isbn": "1234567890", "total_copies": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", decodeBody[ErrorResponse](t, rec).Error)

	rec = c.do(http.MethodGet, "/api/books/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.do(http.MethodGet, "/api/books/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodGet, "/api/borrowings?book_id=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := map[string]any{"name": "Alice"}
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/borrowers", body).Code)
	rec = c.do(http.MethodPost, "/api/borrowers", map[string]any{"name": "alice"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_key", decodeBody[ErrorResponse](t, rec).Error)

	req := httptest.NewRequest(http.MethodPost, "/api/books", bytes.NewBufferString("{not json"))
	rec = httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTP_IdempotencyKey(t *testing.T) {
	c := newHTTPClient(t)

	book := decodeBody[BookResponse](t, c.do(http.MethodPost, "/api/books", map[string]any{
		"title": "Emma", "author": "Austen", "isbn": "0141439587", "total_copies": 3,
	}))
	bob := decodeBody[BorrowerResponse](t, c.do(http.MethodPost, "/api/borrowers", map[string]any{"name": "Bob"}))

	req := BorrowRequest{BookID: book.ID, BorrowerID: bob.ID}
	first := c.do(http.MethodPost, "/api/borrowings", req, IdempotencyHeader, "form-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := c.do(http.MethodPost, "/api/borrowings", req, IdempotencyHeader, "form-1")
	assert.Equal(t, http.StatusConflict, second.Code)
	assert.Equal(t, "duplicate_request", decodeBody[ErrorResponse](t, second).Error)

	rec := c.do(http.MethodGet, "/api/books/"+itoa(book.ID), nil)
	assert.Equal(t, 2, decodeBody[BookResponse](t, rec).AvailableCopies)
}

func TestHTTP_BasicAuth(t *testing.T) {
	h := NewHTTPHandler(newTestEngine(t), zerolog.Nop())
	routes := h.Routes(auth.NewStatic("admin", "secret"))

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/books", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/books", nil)
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHTTP_ReturnWithoutBody(t *testing.T) {
	c := newHTTPClient(t)

	book := decodeBody[BookResponse](t, c.do(http.MethodPost, "/api/books",
		domain.BookInput{Title: "Dune", Author: "Frank Herbert", ISBN: "9780441013593", TotalCopies: 2}))
	alice := decodeBody[BorrowerResponse](t, c.do(http.MethodPost, "/api/borrowers", domain.BorrowerInput{Name: "Alice"}))

	tests := []struct {
		name string
		body io.Reader
	}{
		// Neither reader type lets httptest know the length, so ContentLength is -1.
		{name: "chunked_empty", body: io.NopCloser(strings.NewReader(""))},
		{name: "chunked_whitespace", body: io.NopCloser(strings.NewReader("  \n"))},
		{name: "no_body", body: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := c.do(http.MethodPost, "/api/borrowings", BorrowRequest{BookID: book.ID, BorrowerID: alice.ID})
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
			loan := decodeBody[BorrowingResponse](t, rec)

			req := httptest.NewRequest(http.MethodPost, "/api/borrowings/"+itoa(loan.ID)+"/return", tt.body)
			rec = httptest.NewRecorder()
			c.handler.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, "closed", decodeBody[BorrowingResponse](t, rec).State)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/borrowings/1/return", io.NopCloser(strings.NewReader("{")))
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
