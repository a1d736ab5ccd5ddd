package httpadapter

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	legacyrouter "github.com/getkin/kin-openapi/routers/legacy"
)

// Validates live handler responses against api/openapi.yaml so the published
// contract cannot drift from the implementation silently.
func TestResponsesMatchOpenAPIContract(t *testing.T) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile("../../../api/openapi.yaml")
	if err != nil {
		t.Fatalf("load contract: %v", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		t.Fatalf("openapi document invalid: %v", err)
	}
	contractRouter, err := legacyrouter.NewRouter(doc)
	if err != nil {
		t.Fatalf("build contract router: %v", err)
	}

	validate := func(t *testing.T, req *http.Request, res *httptest.ResponseRecorder) {
		t.Helper()
		route, pathParams, err := contractRouter.FindRoute(req)
		if err != nil {
			t.Fatalf("route %s %s not in contract: %v", req.Method, req.URL.Path, err)
		}
		input := &openapi3filter.ResponseValidationInput{
			RequestValidationInput: &openapi3filter.RequestValidationInput{
				Request:    req,
				PathParams: pathParams,
				Route:      route,
			},
			Status: res.Code,
			Header: res.Header(),
			Body:   io.NopCloser(bytes.NewReader(res.Body.Bytes())),
			Options: &openapi3filter.Options{
				IncludeResponseStatus: true,
			},
		}
		if err := openapi3filter.ValidateResponse(context.Background(), input); err != nil {
			t.Fatalf("response violates contract: %v\nbody: %s", err, res.Body.String())
		}
	}

	t.Run("successful detection", func(t *testing.T) {
		handler := newTestRouter(&fakeDetectionService{report: sampleReport("req-contract")})
		body, contentType := multipartBody(t, "images", "forest.jpg")
		req := httptest.NewRequest(http.MethodPost, "/v1/fire/detect", body)
		req.Header.Set("Content-Type", contentType)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusOK {
			t.Fatalf("status = %d", res.Code)
		}
		validate(t, req, res)
	})

	t.Run("validation error", func(t *testing.T) {
		handler := newTestRouter(&fakeDetectionService{})
		req := httptest.NewRequest(http.MethodPost, "/v1/fire/detect", bytes.NewBufferString("not multipart"))
		req.Header.Set("Content-Type", "multipart/form-data; boundary=broken")
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", res.Code)
		}
		validate(t, req, res)
	})

	t.Run("health probe", func(t *testing.T) {
		handler := newTestRouter(&fakeDetectionService{})
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		validate(t, req, res)
	})
}
