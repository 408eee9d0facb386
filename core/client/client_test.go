package client

import (
	"fmt"
	"net/http"
	"strconv"
	"testing"

	"github.com/apae-gestao/apae/core/access"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaths(t *testing.T) {
	client := NewWithRouter(nil)
	id := uuid.MustParse("c46da255-eb72-4cc6-8835-1b34a9917826")

	collection := client.Collection("assistido")
	assert.Equal(t, "/api/assistidos", collection.CollectionPath())
	assert.Equal(t, "/api/assistidos/"+id.String(), collection.Item(id).Path())

	collection = client.Collection("profissional").WithFilter("email", "ana@apae.org").WithParameter("order", "nome")
	assert.Equal(t, "/api/profissionais?filter=email%3Dana%40apae.org&order=nome", collection.CollectionPath())

	// filter really is a only a shortcut for WithParameter
	other := client.Collection("profissional").WithParameter("filter", "email=ana@apae.org").WithParameter("order", "nome")
	assert.Equal(t, collection.CollectionPath(), other.CollectionPath())

	// parameters do not leak into the parent collection
	base := client.Collection("assistido").WithParameter("a", "1")
	_ = base.WithParameter("b", "2")
	assert.Equal(t, "/api/assistidos?a=1", base.CollectionPath())
}

func testRouter() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/api/itens", func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page == 0 {
			page = 1
		}
		w.Header().Set("Pagination-Page-Count", "3")
		w.Header().Set("Pagination-Total-Count", "5")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `[{"Page":%d}]`, page)
	}).Methods(http.MethodGet)
	router.HandleFunc("/api/itens", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		body["Role"] = ""
		if auth := access.AuthorizationFromContext(r.Context()); auth != nil {
			body["Role"] = auth.Roles[0]
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(body)
	}).Methods(http.MethodPost)
	router.HandleFunc("/api/itens/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodDelete)
	router.HandleFunc("/api/itens/{id}", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}).Methods(http.MethodGet)
	router.HandleFunc("/api/header", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.Header.Get("X-Test")))
	}).Methods(http.MethodGet)
	return router
}

func TestRouterRequests(t *testing.T) {
	client := NewWithRouter(testRouter()).WithRole("profissional")
	itens := client.Collection("item")

	var created map[string]interface{}
	status, err := itens.Create(map[string]interface{}{"Nome": "um"}, &created)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "um", created["Nome"])
	assert.Equal(t, "profissional", created["Role"])

	status, err = itens.Item(uuid.New()).Delete()
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, status)

	status, err = itens.Item(uuid.New()).Read(nil)
	assert.Error(t, err)
	assert.Equal(t, http.StatusNotFound, status)

	var raw []byte
	status, err = client.WithHeader("X-Test", "abc").RawGet("/api/header", &raw)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "abc", string(raw))
}

func TestPages(t *testing.T) {
	client := NewWithRouter(testRouter())
	var pages []int
	for p := client.Collection("item").FirstPage(); p.HasData(); p = p.Next() {
		var result []struct{ Page int }
		_, err := p.Get(&result)
		require.NoError(t, err)
		require.Len(t, result, 1)
		pages = append(pages, result[0].Page)
		assert.Equal(t, 5, p.TotalCount())
	}
	assert.Equal(t, []int{1, 2, 3}, pages)
}
