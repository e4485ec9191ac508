package rest_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"catalog/application/services"
	"catalog/infrastructure/persistence/memory"
	"catalog/infrastructure/search/bleve"
	"catalog/interfaces/rest"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := zaptest.NewLogger(t)

	resources := memory.NewResourceRepository()
	graph := memory.NewGraphRepository()
	index, err := bleve.NewIndex("", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	catalog := services.NewCatalogService(resources, graph, index, nil, nil, logger, nil)

	router := chi.NewRouter()
	rest.NewHandler(catalog, logger).Routes(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func servicePayload(name string) map[string]interface{} {
	return map[string]interface{}{
		"type":      "Service",
		"name":      name,
		"namespace": "prod",
		"version":   "1.0.0",
		"tags":      []string{"critical"},
		"properties": map[string]string{
			"endpoint":    "https://" + name + ".internal",
			"protocol":    "grpc",
			"description": name + " service",
		},
	}
}

func doJSON(t *testing.T, method, url string, payload interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(raw)
	} else {
		body = &bytes.Buffer{}
	}

	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]interface{}
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&decoded)
	}
	return resp, decoded
}

func doJSONList(t *testing.T, url string) (*http.Response, []map[string]interface{}) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded []map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func createResource(t *testing.T, srv *httptest.Server, name string) string {
	t.Helper()

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/resources", servicePayload(name))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, ok := body["id"].(string)
	require.True(t, ok)
	require.NotEmpty(t, id)
	return id
}

func TestResourceLifecycle(t *testing.T) {
	srv := newTestServer(t)

	id := createResource(t, srv, "payments")

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/resources/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "payments", body["name"])
	assert.Equal(t, "Service", body["type"])
	assert.Equal(t, "prod", body["namespace"])
	assert.Equal(t, "1.0.0", body["version"])
	assert.Equal(t, true, body["active"])

	updated := servicePayload("payments")
	updated["version"] = "1.1.0"
	resp, body = doJSON(t, http.MethodPut, srv.URL+"/api/v1/resources/"+id, updated)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1.1.0", body["version"])

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/resources/"+id, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/v1/resources/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/resources/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRegisterRejectsBadInput(t *testing.T) {
	srv := newTestServer(t)

	t.Run("malformed body", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/api/v1/resources", "application/json",
			strings.NewReader("{not json"))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown type", func(t *testing.T) {
		payload := servicePayload("billing")
		payload["type"] = "Mainframe"
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/resources", payload)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("missing required property", func(t *testing.T) {
		payload := servicePayload("billing")
		payload["properties"] = map[string]string{"endpoint": "https://billing"}
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/resources", payload)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("duplicate name", func(t *testing.T) {
		createResource(t, srv, "billing")
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/resources", servicePayload("billing"))
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})
}

func TestListResourceFilters(t *testing.T) {
	srv := newTestServer(t)
	createResource(t, srv, "orders")
	createResource(t, srv, "shipping")

	resp, list := doJSONList(t, srv.URL+"/api/v1/resources?type=Service")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, list, 2)

	resp, list = doJSONList(t, srv.URL+"/api/v1/resources?namespace=prod")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, list, 2)

	resp, list = doJSONList(t, srv.URL+"/api/v1/resources?tags=critical")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, list, 2)

	resp, _ = doJSONList(t, srv.URL+"/api/v1/resources")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetResourceByName(t *testing.T) {
	srv := newTestServer(t)
	id := createResource(t, srv, "ledger")

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/resources/by-name/ledger?namespace=prod", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, id, body["id"])

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/v1/resources/by-name/unknown?namespace=prod", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRelationshipsAndCycleGuard(t *testing.T) {
	srv := newTestServer(t)
	a := createResource(t, srv, "api-gateway")
	b := createResource(t, srv, "user-store")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/relationships", map[string]interface{}{
		"type": "DependsOn", "sourceId": a, "targetId": b,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	relID := body["id"].(string)

	// the reverse DependsOn edge would close a cycle
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/relationships", map[string]interface{}{
		"type": "DependsOn", "sourceId": b, "targetId": a,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet,
		fmt.Sprintf("%s/api/v1/cycle-check?source=%s&target=%s&type=DependsOn", srv.URL, b, a), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["wouldCycle"])

	// References is not cycle-checked
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/relationships", map[string]interface{}{
		"type": "References", "sourceId": b, "targetId": a,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, list := doJSONList(t, srv.URL+"/api/v1/relationships?type=DependsOn")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list, 1)
	assert.Equal(t, relID, list[0]["id"])

	resp, list = doJSONList(t, fmt.Sprintf("%s/api/v1/relationships?source=%s&target=%s", srv.URL, a, b))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, list, 2)

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/relationships/"+relID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/relationships/"+relID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDependencyTraversal(t *testing.T) {
	srv := newTestServer(t)
	a := createResource(t, srv, "frontend")
	b := createResource(t, srv, "backend")
	c := createResource(t, srv, "database-proxy")

	for _, edge := range [][2]string{{a, b}, {b, c}} {
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/relationships", map[string]interface{}{
			"type": "DependsOn", "sourceId": edge[0], "targetId": edge[1],
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, list := doJSONList(t, srv.URL+"/api/v1/resources/"+a+"/dependencies?depth=1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list, 1)
	assert.Equal(t, "backend", list[0]["name"])

	resp, list = doJSONList(t, srv.URL+"/api/v1/resources/"+a+"/dependencies?depth=2")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, list, 2)

	resp, list = doJSONList(t, srv.URL+"/api/v1/resources/"+c+"/dependents?depth=10")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, list, 2)

	resp, _ = doJSONList(t, srv.URL+"/api/v1/resources/"+a+"/dependencies?depth=11")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, list = doJSONList(t, srv.URL+"/api/v1/resources/"+a+"/relationships?direction=out")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, list, 1)

	resp, list = doJSONList(t, srv.URL+"/api/v1/resources/"+c+"/relationships?direction=in")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, list, 1)
}

func TestSearchEndpoints(t *testing.T) {
	srv := newTestServer(t)
	createResource(t, srv, "checkout")
	createResource(t, srv, "checkout-worker")
	createResource(t, srv, "inventory")

	resp, list := doJSONList(t, srv.URL+"/api/v1/search?q=checkout")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, list, 2)

	resp, list = doJSONList(t, srv.URL+"/api/v1/search/autocomplete?prefix=inv")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list, 1)
	assert.Equal(t, "inventory", list[0]["name"])

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/search/facets", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(3), body["type:Service"])
}

func TestReindex(t *testing.T) {
	srv := newTestServer(t)
	createResource(t, srv, "alpha")
	createResource(t, srv, "beta")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/admin/reindex", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["indexed"])
}
