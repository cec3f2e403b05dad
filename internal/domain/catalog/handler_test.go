package catalog

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

func TestCreateItemHandler(t *testing.T) {
	svc, _, _ := newTestService()
	h := NewHandler(svc)

	e := echo.New()
	body := `{"name":"X-Ray","item_type":"test","price":"120"}`
	req := httptest.NewRequest(http.MethodPost, "/catalog/items", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateItem(c); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var item Item
	if err := json.Unmarshal(rec.Body.Bytes(), &item); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if item.Name != "X-Ray" || !item.Price.Equal(decimal.NewFromInt(120)) {
		t.Errorf("unexpected item: %+v", item)
	}
}

func TestGetItemHandlerNotFound(t *testing.T) {
	svc, _, _ := newTestService()
	h := NewHandler(svc)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("b2f7dd4e-13ba-4a4d-b65f-6f8d4f08e7ab")

	err := h.GetItem(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestGetItemHandlerInvalidID(t *testing.T) {
	svc, _, _ := newTestService()
	h := NewHandler(svc)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	err := h.GetItem(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}
