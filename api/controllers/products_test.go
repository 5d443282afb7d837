package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/sellerhub-backend/api/middleware"
	"github.com/angelmondragon/sellerhub-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/sellerhub-backend/pkg/errors"
	"github.com/angelmondragon/sellerhub-backend/pkg/logger"
	"github.com/angelmondragon/sellerhub-backend/pkg/pagination"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

func authedContext(userID, orgID uuid.UUID) context.Context {
	ctx := middleware.WithUserID(context.Background(), userID.String())
	return middleware.WithOrganisationID(ctx, orgID.String())
}

func withURLParam(ctx context.Context, key, value string) context.Context {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return context.WithValue(ctx, chi.RouteCtxKey, routeCtx)
}

type stubCatalog struct {
	created    *catalog.ProductInput
	createdBy  catalog.Actor
	view       *catalog.ProductView
	err        error
	listOrg    uuid.UUID
	listParams pagination.Params
}

func (s *stubCatalog) Create(_ context.Context, actor catalog.Actor, input catalog.ProductInput) (*catalog.ProductView, error) {
	s.created = &input
	s.createdBy = actor
	return s.view, s.err
}

func (s *stubCatalog) Update(_ context.Context, _ catalog.Actor, _ uuid.UUID, _ catalog.ProductInput) (*catalog.ProductView, error) {
	return s.view, s.err
}

func (s *stubCatalog) Get(_ context.Context, _ uuid.UUID) (*catalog.ProductView, error) {
	return s.view, s.err
}

func (s *stubCatalog) List(_ context.Context, orgID uuid.UUID, params pagination.Params) (*catalog.ProductListResult, error) {
	s.listOrg = orgID
	s.listParams = params
	return &catalog.ProductListResult{Products: []catalog.ProductSummary{}}, s.err
}

type stubLifecycle struct {
	deleted  []uuid.UUID
	restored []uuid.UUID
	err      error
}

func (s *stubLifecycle) DeleteProduct(_ context.Context, _ uuid.UUID, id uuid.UUID) error {
	s.deleted = append(s.deleted, id)
	return s.err
}

func (s *stubLifecycle) RestoreProduct(_ context.Context, _ uuid.UUID, id uuid.UUID) (*catalog.ProductView, error) {
	s.restored = append(s.restored, id)
	if s.err != nil {
		return nil, s.err
	}
	return &catalog.ProductView{ID: id}, nil
}

func (s *stubLifecycle) DeleteVariant(_ context.Context, _ uuid.UUID, id uuid.UUID) error {
	s.deleted = append(s.deleted, id)
	return s.err
}

func (s *stubLifecycle) RestoreVariant(_ context.Context, _ uuid.UUID, id uuid.UUID) (*catalog.ProductView, error) {
	s.restored = append(s.restored, id)
	if s.err != nil {
		return nil, s.err
	}
	return &catalog.ProductView{ID: uuid.New()}, nil
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return payload.Error.Code
}

func TestProductCreate(t *testing.T) {
	logg := testLogger()
	userID, orgID := uuid.New(), uuid.New()

	t.Run("missing user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		ProductCreate(&stubCatalog{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 when user missing, got %d", rec.Code)
		}
	})

	t.Run("missing organisation", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(`{}`))
		req = req.WithContext(middleware.WithUserID(context.Background(), userID.String()))
		rec := httptest.NewRecorder()
		ProductCreate(&stubCatalog{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403 when organisation missing, got %d", rec.Code)
		}
	})

	t.Run("invalid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(`{"name":""}`))
		req = req.WithContext(authedContext(userID, orgID))
		rec := httptest.NewRecorder()
		ProductCreate(&stubCatalog{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for missing name, got %d", rec.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		stub := &stubCatalog{view: &catalog.ProductView{ID: uuid.New(), OrganisationID: orgID, Name: "Tee"}}
		body := `{"name":"Tee","tax":"1","properties":{"price":"10","cost":"4","quantity":3}}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(body))
		req = req.WithContext(authedContext(userID, orgID))
		rec := httptest.NewRecorder()
		ProductCreate(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if stub.created == nil || stub.created.Properties == nil || stub.created.Properties.Quantity != 3 {
			t.Fatalf("expected decoded properties, got %+v", stub.created)
		}
		if stub.createdBy.OrganisationID != orgID || stub.createdBy.UserID != userID {
			t.Fatalf("unexpected actor %+v", stub.createdBy)
		}
	})
}

func TestProductGetHidesForeignProducts(t *testing.T) {
	logg := testLogger()
	userID, orgID := uuid.New(), uuid.New()
	productID := uuid.New()

	stub := &stubCatalog{view: &catalog.ProductView{ID: productID, OrganisationID: uuid.New()}}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/"+productID.String(), nil)
	req = req.WithContext(withURLParam(authedContext(userID, orgID), "productId", productID.String()))
	rec := httptest.NewRecorder()
	ProductGet(stub, logg).ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign product, got %d", rec.Code)
	}

	stub.view.OrganisationID = orgID
	rec = httptest.NewRecorder()
	ProductGet(stub, logg).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for own product, got %d", rec.Code)
	}
}

func TestProductListParsesPaging(t *testing.T) {
	logg := testLogger()
	userID, orgID := uuid.New(), uuid.New()

	stub := &stubCatalog{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?limit=5&cursor=abc", nil)
	req = req.WithContext(authedContext(userID, orgID))
	rec := httptest.NewRecorder()
	ProductList(stub, logg).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if stub.listOrg != orgID || stub.listParams.Limit != 5 || stub.listParams.Cursor != "abc" {
		t.Fatalf("unexpected list call org=%s params=%+v", stub.listOrg, stub.listParams)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/products?limit=1000", nil)
	req = req.WithContext(authedContext(userID, orgID))
	rec = httptest.NewRecorder()
	ProductList(stub, logg).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out of range limit, got %d", rec.Code)
	}
}

func TestProductDelete(t *testing.T) {
	logg := testLogger()
	userID, orgID := uuid.New(), uuid.New()
	productID := uuid.New()

	t.Run("invalid product id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/products/invalid", nil)
		req = req.WithContext(withURLParam(authedContext(userID, orgID), "productId", "not-a-uuid"))
		rec := httptest.NewRecorder()
		ProductDelete(&stubLifecycle{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for invalid id, got %d", rec.Code)
		}
	})

	t.Run("unknown product", func(t *testing.T) {
		stub := &stubLifecycle{err: catalog.ProductNotFound()}
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/products/"+productID.String(), nil)
		req = req.WithContext(withURLParam(authedContext(userID, orgID), "productId", productID.String()))
		rec := httptest.NewRecorder()
		ProductDelete(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		if code := decodeErrorCode(t, rec); code != string(pkgerrors.CodeNotFound) {
			t.Fatalf("unexpected code %s", code)
		}
	})

	t.Run("success", func(t *testing.T) {
		stub := &stubLifecycle{}
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/products/"+productID.String(), nil)
		req = req.WithContext(withURLParam(authedContext(userID, orgID), "productId", productID.String()))
		rec := httptest.NewRecorder()
		ProductDelete(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204 on success, got %d", rec.Code)
		}
		if len(stub.deleted) != 1 || stub.deleted[0] != productID {
			t.Fatalf("expected delete for %s, got %v", productID, stub.deleted)
		}
	})
}

func TestSKURestoreReturnsProduct(t *testing.T) {
	logg := testLogger()
	userID, orgID := uuid.New(), uuid.New()
	skuID := uuid.New()

	stub := &stubLifecycle{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/skus/"+skuID.String()+"/restore", nil)
	req = req.WithContext(withURLParam(authedContext(userID, orgID), "skuId", skuID.String()))
	rec := httptest.NewRecorder()
	SKURestore(stub, logg).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(stub.restored) != 1 || stub.restored[0] != skuID {
		t.Fatalf("expected restore for %s, got %v", skuID, stub.restored)
	}

	stub.err = pkgerrors.New(pkgerrors.CodeNotFound, "This variant don't found")
	rec = httptest.NewRecorder()
	SKUDelete(stub, logg).ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown sku, got %d", rec.Code)
	}
}
