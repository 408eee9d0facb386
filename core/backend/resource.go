package backend

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/apae-gestao/apae/core"
	"github.com/apae-gestao/apae/core/access"
	"github.com/apae-gestao/apae/core/logger"
	"github.com/apae-gestao/apae/core/repository"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// list limits
const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// Service is what a resource needs from the domain layer
type Service[T any] interface {
	List(ctx context.Context, q repository.Query) ([]T, error)
	Count(ctx context.Context, q repository.Query) (int, error)
	Get(ctx context.Context, id uuid.UUID) (*T, error)
	Create(ctx context.Context, item *T) error
	Update(ctx context.Context, item *T) error
	Delete(ctx context.Context, id uuid.UUID) error
	Table() *repository.Table
}

// Resource describes a REST resource of entity T, presented as D
type Resource[T, D any] struct {
	// Name is the singular resource name, it is also the table name
	Name    string
	Service Service[T]
	// Present maps entities to their presentation. Lists are mapped in one
	// call so that references can be resolved in bulk.
	Present func(ctx context.Context, items []T) ([]D, error)
	Permits []access.Permit
	// SchemaID is the JSON schema request bodies are validated against. Optional.
	SchemaID string
}

// Identity is a Present function for entities which are their own presentation
func Identity[T any](ctx context.Context, items []T) ([]T, error) {
	return items, nil
}

// HandleResource installs the collection routes of resource
func HandleResource[T, D any](b *Backend, resource Resource[T, D]) {
	if resource.Service == nil || resource.Present == nil {
		panic("resource " + resource.Name + " needs a service and a presenter")
	}
	if resource.SchemaID != "" && !b.validator.HasSchema(resource.SchemaID) {
		panic("resource " + resource.Name + ": unknown schema " + resource.SchemaID)
	}
	b.registerTable(resource.Name)

	h := &resourceHandler[T, D]{b: b, r: resource, table: resource.Service.Table()}
	collectionRoute := "/api/" + core.Plural(resource.Name)
	itemRoute := collectionRoute + "/{id}"

	rlog := logger.Default()
	rlog.Debugln("resource", resource.Name)
	rlog.Debugln("  handle collection route:", collectionRoute, "GET,POST")
	rlog.Debugln("  handle item route:", itemRoute, "GET,PUT,DELETE")

	b.router.HandleFunc(collectionRoute, h.list).Methods(http.MethodOptions, http.MethodGet)
	b.router.HandleFunc(collectionRoute, h.create).Methods(http.MethodOptions, http.MethodPost)
	b.router.HandleFunc(itemRoute, h.read).Methods(http.MethodOptions, http.MethodGet)
	b.router.HandleFunc(itemRoute, h.update).Methods(http.MethodOptions, http.MethodPut)
	b.router.HandleFunc(itemRoute, h.delete).Methods(http.MethodOptions, http.MethodDelete)
}

// defaulter is implemented by entities with default values other than the
// zero value. Defaults are set before the body is decoded, so fields missing
// in the body keep them.
type defaulter interface {
	SetDefaults()
}

type resourceHandler[T, D any] struct {
	b     *Backend
	r     Resource[T, D]
	table *repository.Table
}

// ParseListQuery reads the list parameters of the request. It returns the
// repository query and the requested page.
func ParseListQuery(r *http.Request, table *repository.Table) (repository.Query, int, error) {
	var (
		q     repository.Query
		limit = DefaultLimit
		page  = 1
		order string
		desc  bool
		err   error
	)
	for key, array := range r.URL.Query() {
		if key != "filter" && len(array) > 1 {
			return q, 0, core.Validationf("illegal parameter array '%s'", key)
		}
		value := array[0]
		switch key {
		case "limit":
			limit, err = strconv.Atoi(value)
			if err != nil || limit < 1 || limit > MaxLimit {
				return q, 0, core.Validationf("parameter 'limit' must be between 1 and %d", MaxLimit)
			}
		case "page":
			page, err = strconv.Atoi(value)
			if err != nil || page < 1 {
				return q, 0, core.Validationf("parameter 'page' must be a positive number")
			}
		case "filter":
			for _, value := range array {
				i := strings.IndexAny(value, "=~")
				if i < 1 {
					return q, 0, core.Validationf("cannot parse filter, must be of type property=value or property~value")
				}
				column, ok := table.Column(value[:i])
				if !ok {
					return q, 0, core.Validationf("unknown filter property '%s'", value[:i])
				}
				if value[i] == '~' {
					q.Filters = append(q.Filters, repository.Like(column, value[i+1:]))
				} else {
					q.Filters = append(q.Filters, repository.Eq(column, value[i+1:]))
				}
			}
		case "sort":
			column, ok := table.Column(value)
			if !ok {
				return q, 0, core.Validationf("unknown sort property '%s'", value)
			}
			order = column
		case "order":
			if value != "asc" && value != "desc" {
				return q, 0, core.Validationf("order must be asc or desc")
			}
			desc = value == "desc"
		default:
			return q, 0, core.Validationf("parameter '%s': unknown query parameter", key)
		}
	}
	return q.OrderBy(order, desc).Page(limit, (page-1)*limit), page, nil
}

func (h *resourceHandler[T, D]) list(w http.ResponseWriter, r *http.Request) {
	if !h.b.Authorize(w, r, h.r.Permits, core.OperationList) {
		return
	}
	q, page, err := ParseListQuery(r, h.table)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	ctx := r.Context()
	items, err := h.r.Service.List(ctx, q)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	totalCount, err := h.r.Service.Count(ctx, q)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	presented, err := h.r.Present(ctx, items)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if presented == nil {
		presented = []D{} // do not return null in json, but empty array
	}
	jsonData, err := json.MarshalWithOption(presented, json.DisableHTMLEscape())
	if err != nil {
		logger.FromContext(ctx).WithError(err).Errorln("Error 4003: cannot marshal list")
		http.Error(w, "Error 4003", http.StatusInternalServerError)
		return
	}

	limit := q.Limit
	w.Header().Set("Pagination-Limit", strconv.Itoa(limit))
	w.Header().Set("Pagination-Total-Count", strconv.Itoa(totalCount))
	w.Header().Set("Pagination-Page-Count", strconv.Itoa(((totalCount-1)/limit)+1))
	w.Header().Set("Pagination-Current-Page", strconv.Itoa(page))

	etag := bytesPlusTotalCountToEtag(jsonData, totalCount)
	w.Header().Set("Etag", etag)
	if ifNoneMatchFound(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Write(jsonData)
}

func (h *resourceHandler[T, D]) present(w http.ResponseWriter, r *http.Request, status int, item *T) {
	presented, err := h.r.Present(r.Context(), []T{*item})
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if len(presented) != 1 {
		logger.FromContext(r.Context()).Errorf("Error 4004: presenter of %s returned %d items", h.r.Name, len(presented))
		http.Error(w, "Error 4004", http.StatusInternalServerError)
		return
	}
	WriteJSON(w, r, status, presented[0])
}

func (h *resourceHandler[T, D]) read(w http.ResponseWriter, r *http.Request) {
	if !h.b.Authorize(w, r, h.r.Permits, core.OperationRead) {
		return
	}
	if err := CheckParameters(r); err != nil {
		WriteError(w, r, err)
		return
	}
	id, err := PathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	item, err := h.r.Service.Get(r.Context(), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	h.present(w, r, http.StatusOK, item)
}

// decode reads and validates the body
func (h *resourceHandler[T, D]) decode(r *http.Request) (*T, error) {
	data, err := ReadBody(r)
	if err != nil {
		return nil, err
	}
	if h.r.SchemaID != "" {
		if err := h.b.validator.ValidateBytes(data, h.r.SchemaID); err != nil {
			return nil, err
		}
	}
	item := new(T)
	if d, ok := any(item).(defaulter); ok {
		d.SetDefaults()
	}
	if err := unmarshalBody(data, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (h *resourceHandler[T, D]) create(w http.ResponseWriter, r *http.Request) {
	if !h.b.Authorize(w, r, h.r.Permits, core.OperationCreate) {
		return
	}
	if err := CheckParameters(r); err != nil {
		WriteError(w, r, err)
		return
	}
	item, err := h.decode(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.r.Service.Create(r.Context(), item); err != nil {
		WriteError(w, r, err)
		return
	}
	h.present(w, r, http.StatusCreated, item)
}

func (h *resourceHandler[T, D]) update(w http.ResponseWriter, r *http.Request) {
	if !h.b.Authorize(w, r, h.r.Permits, core.OperationUpdate) {
		return
	}
	if err := CheckParameters(r); err != nil {
		WriteError(w, r, err)
		return
	}
	id, err := PathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	item, err := h.decode(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if bodyID := h.table.ID(item); bodyID != uuid.Nil && bodyID != id {
		WriteError(w, r, core.Validationf("identifier mismatch for %s", h.r.Name))
		return
	}
	h.table.SetID(item, id)
	if err := h.r.Service.Update(r.Context(), item); err != nil {
		WriteError(w, r, err)
		return
	}
	h.present(w, r, http.StatusOK, item)
}

func (h *resourceHandler[T, D]) delete(w http.ResponseWriter, r *http.Request) {
	if !h.b.Authorize(w, r, h.r.Permits, core.OperationDelete) {
		return
	}
	if err := CheckParameters(r); err != nil {
		WriteError(w, r, err)
		return
	}
	id, err := PathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.r.Service.Delete(r.Context(), id); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
