package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"opsportal/src/model"
	"opsportal/src/repository"
)

type mockOrderSearcher struct {
	orders        []model.Order
	err           error
	status        *string
	highlighted   *bool
	createdAfter  *time.Time
	createdBefore *time.Time
	limit         int
	offset        int
	calledCount   int
}

func (m *mockOrderSearcher) Search(ctx context.Context, options repository.OrderSearchOptions) ([]model.Order, error) {
	m.calledCount++
	m.status = options.Status
	m.highlighted = options.Highlighted
	m.createdAfter = options.CreatedAfter
	m.createdBefore = options.CreatedBefore
	m.limit = options.Limit
	m.offset = options.Offset
	return m.orders, m.err
}

func TestSearchOrdersHandler_InvalidHighlighted(t *testing.T) {
	handler := SearchOrdersHandler(&mockOrderSearcher{})

	req := httptest.NewRequest(http.MethodGet, "/api/orders?highlighted=maybe", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestSearchOrdersHandler_InvalidCreatedFrom(t *testing.T) {
	handler := SearchOrdersHandler(&mockOrderSearcher{})

	req := httptest.NewRequest(http.MethodGet, "/api/orders?createdFrom=yesterday", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestSearchOrdersHandler_RepoError(t *testing.T) {
	mockRepo := &mockOrderSearcher{err: assert.AnError}
	handler := SearchOrdersHandler(mockRepo)

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}

func TestSearchOrdersHandler_PassesFilters(t *testing.T) {
	mockRepo := &mockOrderSearcher{orders: []model.Order{
		{ID: 1, OrderNumber: "WC-501", Status: model.OrderStatusProcessing, Highlighted: true},
	}}
	handler := SearchOrdersHandler(mockRepo)

	req := httptest.NewRequest(http.MethodGet,
		"/api/orders?status=processing&highlighted=true&page=3&pageSize=10", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	assert.Equal(t, 1, mockRepo.calledCount)
	if assert.NotNil(t, mockRepo.status) {
		assert.Equal(t, "processing", *mockRepo.status)
	}
	if assert.NotNil(t, mockRepo.highlighted) {
		assert.True(t, *mockRepo.highlighted)
	}
	assert.Equal(t, 10, mockRepo.limit)
	assert.Equal(t, 20, mockRepo.offset)

	var payload []model.Order
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(payload) != 1 || payload[0].OrderNumber != "WC-501" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

type mockHighlightClearer struct {
	err     error
	cleared []uint
}

func (m *mockHighlightClearer) ClearHighlight(ctx context.Context, orderID uint) error {
	m.cleared = append(m.cleared, orderID)
	return m.err
}

func seenRequest(t *testing.T, id string) *http.Request {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/orders/"+id+"/seen", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestMarkOrderSeenHandler_Success(t *testing.T) {
	mockRepo := &mockHighlightClearer{}
	handler := MarkOrderSeenHandler(mockRepo)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, seenRequest(t, "42"))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	assert.Equal(t, []uint{42}, mockRepo.cleared)
}

func TestMarkOrderSeenHandler_InvalidID(t *testing.T) {
	handler := MarkOrderSeenHandler(&mockHighlightClearer{})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, seenRequest(t, "abc"))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestMarkOrderSeenHandler_NotFound(t *testing.T) {
	handler := MarkOrderSeenHandler(&mockHighlightClearer{err: gorm.ErrRecordNotFound})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, seenRequest(t, "42"))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestMarkOrderSeenHandler_RepoError(t *testing.T) {
	handler := MarkOrderSeenHandler(&mockHighlightClearer{err: assert.AnError})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, seenRequest(t, "42"))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}
