package repository

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// well known columns
const (
	idColumn      = "id"
	createdColumn = "criado_em"
)

type column struct {
	name    string
	index   []int
	isArray bool
	private bool
}

// Table describes how a struct type maps onto a database table.
//
// The mapping is derived from `db:"column"` struct tags. Fields without a tag
// or tagged with "-" are not persisted. Columns tagged `db:"column,private"`
// are persisted but Column does not resolve them, so clients can neither
// filter nor sort by them.
type Table struct {
	Name       string
	typ        reflect.Type
	columns    []column
	byName     map[string]int
	properties map[string]string // lower case field name -> column
	id         int
	created    int
}

var tableCache sync.Map // reflect.Type -> *Table

// Describe returns the table description for T. It panics if T is not a struct
// or has no uuid.UUID column "id", this is a programming error.
func Describe[T any](name string) *Table {
	var zero T
	typ := reflect.TypeOf(zero)
	key := name + "|" + typ.String()
	if t, ok := tableCache.Load(key); ok {
		return t.(*Table)
	}
	t, err := describe(name, typ)
	if err != nil {
		panic(err)
	}
	tableCache.Store(key, t)
	return t
}

func describe(name string, typ reflect.Type) (*Table, error) {
	if typ == nil || typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("table %s: %v is not a struct", name, typ)
	}
	t := &Table{
		Name:       name,
		typ:        typ,
		byName:     map[string]int{},
		properties: map[string]string{},
		id:         -1,
		created:    -1,
	}
	uuidType := reflect.TypeOf(uuid.UUID{})
	timeType := reflect.TypeOf(time.Time{})
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		options := strings.Split(f.Tag.Get("db"), ",")
		tag := options[0]
		if tag == "" || tag == "-" || !f.IsExported() {
			continue
		}
		if _, ok := t.byName[tag]; ok {
			return nil, fmt.Errorf("table %s: duplicate column %s", name, tag)
		}
		c := column{
			name:    tag,
			index:   f.Index,
			isArray: f.Type.Kind() == reflect.Slice && f.Type.Elem().Kind() != reflect.Uint8,
		}
		for _, o := range options[1:] {
			switch o {
			case "private":
				c.private = true
			default:
				return nil, fmt.Errorf("table %s: unknown option %q of column %s", name, o, tag)
			}
		}
		if c.private && (tag == idColumn || tag == createdColumn) {
			return nil, fmt.Errorf("table %s: column %s cannot be private", name, tag)
		}
		t.byName[tag] = len(t.columns)
		t.properties[strings.ToLower(f.Name)] = tag
		switch tag {
		case idColumn:
			if f.Type != uuidType {
				return nil, fmt.Errorf("table %s: column id must be uuid.UUID", name)
			}
			t.id = len(t.columns)
		case createdColumn:
			if f.Type == timeType {
				t.created = len(t.columns)
			}
		}
		t.columns = append(t.columns, c)
	}
	if t.id < 0 {
		return nil, fmt.Errorf("table %s: missing id column", name)
	}
	return t, nil
}

// Columns returns the column names in declaration order
func (t *Table) Columns() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.name
	}
	return names
}

// HasColumn returns true if the table has the named column
func (t *Table) HasColumn(name string) bool {
	_, ok := t.byName[name]
	return ok
}

// Column resolves a property to its column. The property can either be the
// column name itself or the field name (case insensitive), so that clients can
// filter with the names they see in JSON. Private columns are not resolved.
func (t *Table) Column(property string) (string, bool) {
	name := property
	if !t.HasColumn(name) {
		var ok bool
		if name, ok = t.properties[strings.ToLower(property)]; !ok {
			return "", false
		}
	}
	if t.columns[t.byName[name]].private {
		return "", false
	}
	return name, true
}

// ID returns the id of item, which must be a pointer to the table's struct type
func (t *Table) ID(item interface{}) uuid.UUID {
	return t.idOf(reflect.ValueOf(item).Elem())
}

// SetID sets the id of item, which must be a pointer to the table's struct type
func (t *Table) SetID(item interface{}, id uuid.UUID) {
	t.setID(reflect.ValueOf(item).Elem(), id)
}

func (t *Table) field(v reflect.Value, name string) (reflect.Value, bool) {
	i, ok := t.byName[name]
	if !ok {
		return reflect.Value{}, false
	}
	return v.FieldByIndex(t.columns[i].index), true
}

func (t *Table) idOf(v reflect.Value) uuid.UUID {
	return v.FieldByIndex(t.columns[t.id].index).Interface().(uuid.UUID)
}

func (t *Table) setID(v reflect.Value, id uuid.UUID) {
	v.FieldByIndex(t.columns[t.id].index).Set(reflect.ValueOf(id))
}

// prepareInsert assigns a new id and creation time when they are not set yet
func (t *Table) prepareInsert(v reflect.Value) {
	if t.idOf(v) == uuid.Nil {
		t.setID(v, uuid.New())
	}
	if t.created >= 0 {
		f := v.FieldByIndex(t.columns[t.created].index)
		if f.Interface().(time.Time).IsZero() {
			f.Set(reflect.ValueOf(time.Now().UTC()))
		}
	}
}

// scanTargets returns pointers to all mapped fields of v, in column order
func (t *Table) scanTargets(v reflect.Value) []interface{} {
	targets := make([]interface{}, len(t.columns))
	for i, c := range t.columns {
		addr := v.FieldByIndex(c.index).Addr().Interface()
		if c.isArray {
			addr = pq.Array(addr)
		}
		targets[i] = addr
	}
	return targets
}

// values returns the values of all mapped fields of v, in column order
func (t *Table) values(v reflect.Value) []interface{} {
	values := make([]interface{}, len(t.columns))
	for i, c := range t.columns {
		value := v.FieldByIndex(c.index).Interface()
		if c.isArray {
			value = pq.Array(value)
		}
		values[i] = value
	}
	return values
}

// validate checks that all columns referenced by q exist
func (t *Table) validate(q Query) error {
	for _, f := range q.Filters {
		if !t.HasColumn(f.Column) {
			return invalidColumn(t.Name, f.Column)
		}
		if f.Op == OpIn {
			if _, ok := f.Value.([]interface{}); !ok {
				return fmt.Errorf("%w: filter in on %s needs a list", ErrInvalidQuery, f.Column)
			}
		}
	}
	if q.Order != "" && !t.HasColumn(q.Order) {
		return invalidColumn(t.Name, q.Order)
	}
	if q.Limit < 0 || q.Offset < 0 {
		return fmt.Errorf("%w: negative limit or offset", ErrInvalidQuery)
	}
	return nil
}

func invalidColumn(table, column string) error {
	return fmt.Errorf("%w: %s has no property '%s'", ErrInvalidQuery, table, column)
}
