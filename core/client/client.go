/*
Package client provides easy and fast in-process access to a REST api

Instead of marshalling HTTP, the client talks directly to the mux router. The client
is the tool of choice if one request handler needs to call other handlers to fulfill
its task. It is also perfectly suited for unit tests.

The same client can also talk to a remote service through a URL and a bearer token.
*/
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/apae-gestao/apae/core"
	"github.com/apae-gestao/apae/core/access"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Client provides easy access to the REST API.
type Client struct {
	router     *mux.Router
	httpClient *http.Client
	url        string
	token      string
	auth       *access.Authorization
	ctx        context.Context

	defaultHeaders map[string]string
}

// NewWithRouter creates a client to make pseudo-REST requests to the backend,
// through the mux router
//
// WithAuthorization() adds an authorization to the request context.
// WithContext() specifies a different base context all together.
func NewWithRouter(router *mux.Router) Client {
	return Client{
		router:         router,
		defaultHeaders: map[string]string{},
	}
}

// NewWithURL creates a client to make REST requests to the backend
//
// WithToken adds an authorization token to the request header.
func NewWithURL(url string) Client {
	return Client{
		url:            strings.TrimSuffix(url, "/"),
		httpClient:     &http.Client{Timeout: 20 * time.Second},
		defaultHeaders: map[string]string{},
	}
}

// WithHeader returns a new client with a default header added
func (c Client) WithHeader(key string, value string) Client {
	headers := map[string]string{key: value}
	for k, v := range c.defaultHeaders {
		if k != key {
			headers[k] = v
		}
	}
	c.defaultHeaders = headers
	return c
}

// WithToken returns a new client which sends token as bearer token
func (c Client) WithToken(token string) Client {
	c.token = token
	return c
}

// WithAdminAuthorization returns a new client with admin authorizations
// (this works only directly against the mux router, for a normal client
// use WithToken())
func (c Client) WithAdminAuthorization() Client {
	return c.WithRole(access.RoleAdmin)
}

// WithRole returns a new client with role authorization
// (this works only directly against the mux router, for a normal client
// use WithToken())
func (c Client) WithRole(role string) Client {
	c.auth = &access.Authorization{
		Roles: []string{role},
	}
	return c
}

// WithAuthorization returns a new client with specific authorizations
// (this works only directly against the mux router, for a normal client
// use WithToken())
func (c Client) WithAuthorization(auth *access.Authorization) Client {
	c.auth = auth
	return c
}

// WithContext returns a new client with specific request context
func (c Client) WithContext(ctx context.Context) Client {
	c.ctx = ctx
	return c
}

// Context returns the request context, including the authorization
func (c Client) Context() context.Context {
	ctx := c.ctx
	if c.ctx == nil {
		ctx = context.Background()
	}
	if c.auth != nil {
		ctx = access.ContextWithAuthorization(ctx, c.auth)
	}
	return ctx
}

// do executes one request, either through the router or through HTTP
func (c Client) do(method, path string, header map[string]string, body []byte) (int, http.Header, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	r, err := http.NewRequestWithContext(c.Context(), method, c.url+path, reader)
	if err != nil {
		return http.StatusBadRequest, nil, nil, err
	}
	for key, value := range c.defaultHeaders {
		r.Header.Set(key, value)
	}
	for key, value := range header {
		r.Header.Set(key, value)
	}

	if c.router != nil {
		rec := httptest.NewRecorder()
		c.router.ServeHTTP(rec, r)
		res := rec.Result()
		return res.StatusCode, res.Header, rec.Body.Bytes(), nil
	}

	if c.token != "" {
		r.Header.Set("Authorization", "Bearer "+c.token)
	}
	res, err := c.httpClient.Do(r)
	if err != nil {
		return http.StatusInternalServerError, nil, nil, err
	}
	defer res.Body.Close()
	resBody, err := io.ReadAll(res.Body)
	return res.StatusCode, res.Header, resBody, err
}

func marshalBody(method, path string, body interface{}) ([]byte, map[string]string, error) {
	if body == nil {
		return nil, nil, nil
	}
	if raw, ok := body.([]byte); ok {
		return raw, nil, nil
	}
	j, err := json.Marshal(body)
	if err != nil {
		return nil, nil, fmt.Errorf("%s to %s: %w", method, path, err)
	}
	return j, map[string]string{"Content-Type": "application/json"}, nil
}

func unmarshalResult(resBody []byte, result interface{}) error {
	if len(resBody) == 0 || result == nil {
		return nil
	}
	if raw, ok := result.(*[]byte); ok {
		*raw = resBody
		return nil
	}
	return json.Unmarshal(resBody, result)
}

func wrongStatus(status int, want int, resBody []byte) error {
	return fmt.Errorf("handler returned wrong status code: got %v want %v. Error: %s",
		status, want, strings.TrimSpace(string(resBody)))
}

// RawGet gets the resource from path. Expects http.StatusOK as response, otherwise it will
// flag an error. Returns the actual http status code.
//
// The path can be extend with query strings.
//
// result can be map[string]interface{} or a raw *[]byte.
// result can be nil.
func (c Client) RawGet(path string, result interface{}) (int, error) {
	status, _, err := c.RawGetWithHeader(path, nil, result)
	return status, err
}

// RawGetWithHeader gets the resource from path. Expects http.StatusOK as response, otherwise it will
// flag an error. Returns the actual http status code and the header.
//
// result can be map[string]interface{} or a raw *[]byte.
// result can be nil.
func (c Client) RawGetWithHeader(path string, header map[string]string, result interface{}) (int, http.Header, error) {
	status, resHeader, resBody, err := c.do(http.MethodGet, path, header, nil)
	if err != nil {
		return status, resHeader, err
	}
	if status == http.StatusNoContent || status == http.StatusNotModified {
		return status, resHeader, nil
	}
	if status != http.StatusOK {
		return status, resHeader, wrongStatus(status, http.StatusOK, resBody)
	}
	return status, resHeader, unmarshalResult(resBody, result)
}

// RawGetBlobWithHeader gets a binary resource from path. Expects http.StatusOK as response, otherwise it will
// flag an error.
//
// Returns the actual http status code and the return header
func (c Client) RawGetBlobWithHeader(path string, header map[string]string, blob *[]byte) (int, http.Header, error) {
	return c.RawGetWithHeader(path, header, blob)
}

// RawPostWithHeader posts a resource to path. Expects http.StatusCreated or http.StatusOK
// as response, otherwise it will flag an error. Returns the actual http status code.
//
// body can also be a []byte, result can also be raw *[]byte.
// result can be nil.
func (c Client) RawPostWithHeader(path string, header map[string]string, body interface{}, result interface{}) (int, error) {
	j, bodyHeader, err := marshalBody(http.MethodPost, path, body)
	if err != nil {
		return http.StatusBadRequest, err
	}
	status, _, resBody, err := c.do(http.MethodPost, path, merge(bodyHeader, header), j)
	if err != nil {
		return status, err
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return status, wrongStatus(status, http.StatusCreated, resBody)
	}
	return status, unmarshalResult(resBody, result)
}

// RawPost posts a resource to path. Expects http.StatusCreated or http.StatusOK as response,
// otherwise it will flag an error. Returns the actual http status code.
//
// body can also be a []byte, result can also be raw *[]byte.
// result can be nil.
func (c Client) RawPost(path string, body interface{}, result interface{}) (int, error) {
	return c.RawPostWithHeader(path, nil, body, result)
}

// RawPut puts a resource to path. Expects http.StatusOK, http.StatusCreated or http.StatusNoContent as valid responses,
// otherwise it will flag an error. Returns the actual http status code.
//
// body can also be a []byte, result can also be raw *[]byte.
// result can be nil.
func (c Client) RawPut(path string, body interface{}, result interface{}) (int, error) {
	return c.RawPutWithHeader(path, nil, body, result)
}

// RawPutWithHeader is RawPut with additional request headers
func (c Client) RawPutWithHeader(path string, header map[string]string, body interface{}, result interface{}) (int, error) {
	j, bodyHeader, err := marshalBody(http.MethodPut, path, body)
	if err != nil {
		return http.StatusBadRequest, err
	}
	status, _, resBody, err := c.do(http.MethodPut, path, merge(bodyHeader, header), j)
	if err != nil {
		return status, err
	}
	if status != http.StatusOK && status != http.StatusCreated && status != http.StatusNoContent {
		return status, fmt.Errorf("put got status=%d body=%s", status, strings.TrimSpace(string(resBody)))
	}
	return status, unmarshalResult(resBody, result)
}

// RawPatch puts a patch to path. Expects http.StatusOK, http.StatusCreated,  or http.StatusNoContent as valid responses,
// otherwise it will flag an error. Returns the actual http status code.
//
// body can also be a []byte, result can also be raw *[]byte.
// result can be nil.
func (c Client) RawPatch(path string, body interface{}, result interface{}) (int, error) {
	j, bodyHeader, err := marshalBody(http.MethodPatch, path, body)
	if err != nil {
		return http.StatusBadRequest, err
	}
	status, _, resBody, err := c.do(http.MethodPatch, path, bodyHeader, j)
	if err != nil {
		return status, err
	}
	if status != http.StatusOK && status != http.StatusCreated && status != http.StatusNoContent {
		return status, fmt.Errorf("patch got status=%d body=%s", status, strings.TrimSpace(string(resBody)))
	}
	return status, unmarshalResult(resBody, result)
}

// RawDelete deletes the resource at path. Expects http.StatusNoContent as response,
// otherwise it will flag an error. Returns the actual http status code.
func (c Client) RawDelete(path string) (int, error) {
	status, _, resBody, err := c.do(http.MethodDelete, path, nil, nil)
	if err != nil {
		return status, err
	}
	if status != http.StatusNoContent {
		return status, wrongStatus(status, http.StatusNoContent, resBody)
	}
	return status, nil
}

func merge(headers ...map[string]string) map[string]string {
	res := map[string]string{}
	for _, h := range headers {
		for k, v := range h {
			res[k] = v
		}
	}
	return res
}

// Collection represents a collection of particular resource
type Collection struct {
	client     *Client
	resource   string
	parameters []string
}

// Collection returns a new collection client. The path of the collection is
// /api/ followed by the plural of resource.
func (c Client) Collection(resource string) Collection {
	return Collection{
		client:   &c,
		resource: resource,
	}
}

// WithParameter returns a new collection client with a URL parameter added.
func (r Collection) WithParameter(key string, value string) Collection {
	parameter := url.QueryEscape(key) + "=" + url.QueryEscape(value)
	// we want a true copy to avoid side effects
	r.parameters = append(append([]string{}, r.parameters...), parameter)
	return r
}

// WithFilter returns a new collection client with a URL filter parameter added.
// This is a shortcut for WithParameter("filter", key+"="+value)
func (r Collection) WithFilter(key string, value string) Collection {
	return r.WithParameter("filter", key+"="+value)
}

// CollectionPath returns the created path for the collection plus optional query strings
func (r Collection) CollectionPath() string {
	path := "/api/" + core.Plural(r.resource)
	if len(r.parameters) > 0 {
		path += "?" + strings.Join(r.parameters, "&")
	}
	return path
}

// Create always creates a new item.
//
// The operation corresponds to a POST request.
//
// Expects http.StatusCreated as response, otherwise it will
// flag an error. Returns the actual http status code.
func (r Collection) Create(body interface{}, result interface{}) (int, error) {
	return r.client.RawPost(r.CollectionPath(), body, result)
}

// List gets the collection up until the specified limit.
//
// If you potentially need multiple pages, use FirstPage() instead.
func (r Collection) List(result interface{}) (int, error) {
	return r.client.RawGet(r.CollectionPath(), result)
}

// Item represents a single item in a collection
type Item struct {
	col Collection
	id  uuid.UUID
}

// Item gets an item from a collection
func (r Collection) Item(id uuid.UUID) Item {
	return Item{col: r, id: id}
}

// Path returns the created path for this item
func (r Item) Path() string {
	return "/api/" + core.Plural(r.col.resource) + "/" + r.id.String()
}

// Read reads an item from a collection
//
// Expects http.StatusOK as response, otherwise it will
// flag an error. Returns the actual http status code.
func (r Item) Read(result interface{}) (int, error) {
	return r.col.client.RawGet(r.Path(), result)
}

// Update replaces an item, the operation corresponds to a PUT request.
func (r Item) Update(body interface{}, result interface{}) (int, error) {
	return r.col.client.RawPut(r.Path(), body, result)
}

// Delete deletes an item from a collection
//
// Expects http.StatusNoContent as response, otherwise it will
// flag an error.
func (r Item) Delete() (int, error) {
	return r.col.client.RawDelete(r.Path())
}

// Action posts to a sub route of the item, like /api/agendamentos/{id}/cancelar
func (r Item) Action(action string, body interface{}, result interface{}) (int, error) {
	return r.col.client.RawPost(r.Path()+"/"+action, body, result)
}

// Page is a requester for one page in a collection
type Page struct {
	r          Collection
	page       int
	pageCount  int
	totalCount int
}

// FirstPage returns a requester for the first page of a collection
//
// Do not specify the page parameter when using the page requester, as
// it manages page itself. You can set all others parameters, including
// limit.
func (r Collection) FirstPage() Page {
	return Page{page: 1, r: r}
}

// HasData returns true if the page has data (by definition true for the first page)
func (p Page) HasData() bool {
	return p.page == 1 || p.page <= p.pageCount
}

// TotalCount returns the total number of elements (only available after you have called Get on the page)
func (p Page) TotalCount() int {
	return p.totalCount
}

// Get gets one page of the collection
func (p *Page) Get(result interface{}) (int, error) {
	path := p.r.WithParameter("page", strconv.Itoa(p.page)).CollectionPath()
	status, header, err := p.r.client.RawGetWithHeader(path, nil, result)
	if err != nil {
		return status, err
	}
	if pageCount, err := strconv.Atoi(header.Get("Pagination-Page-Count")); err == nil {
		p.pageCount = pageCount
	}
	if totalCount, err := strconv.Atoi(header.Get("Pagination-Total-Count")); err == nil {
		p.totalCount = totalCount
	}
	return status, nil
}

// Next returns the next page
func (p Page) Next() Page {
	return Page{
		r:         p.r,
		page:      p.page + 1,
		pageCount: p.pageCount,
	}
}
