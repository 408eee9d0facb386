package repository

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is a Repository kept in memory. It is used by tests and by the
// demo mode of the service. Unique constraints can be declared with Unique,
// foreign keys are not checked.
type Memory[T any] struct {
	mutex  sync.RWMutex
	table  *Table
	items  map[uuid.UUID]T
	unique [][]string
}

// NewMemory returns an empty in-memory repository for T
func NewMemory[T any](name string) *Memory[T] {
	return &Memory[T]{
		table: Describe[T](name),
		items: map[uuid.UUID]T{},
	}
}

// Unique declares a unique constraint over the given columns. Items where one
// of the columns is NULL never conflict, as in postgres.
func (r *Memory[T]) Unique(columns ...string) *Memory[T] {
	for _, c := range columns {
		if !r.table.HasColumn(c) {
			panic(fmt.Sprintf("table %s has no column %s", r.table.Name, c))
		}
	}
	r.unique = append(r.unique, columns)
	return r
}

// Table implements Repository
func (r *Memory[T]) Table() *Table {
	return r.table
}

// List implements Repository
func (r *Memory[T]) List(ctx context.Context, q Query) ([]T, error) {
	if err := r.table.validate(q); err != nil {
		return nil, err
	}
	r.mutex.RLock()
	items := r.matching(q)
	r.mutex.RUnlock()

	order := []string{}
	if q.Order != "" {
		order = append(order, q.Order)
	}
	if r.table.created >= 0 {
		order = append(order, createdColumn)
	}
	order = append(order, idColumn)
	sort.SliceStable(items, func(i, j int) bool {
		a, b := reflect.ValueOf(&items[i]).Elem(), reflect.ValueOf(&items[j]).Elem()
		for _, column := range order {
			fa, _ := r.table.field(a, column)
			fb, _ := r.table.field(b, column)
			c := compareFields(fa, fb)
			if c == 0 {
				continue
			}
			if q.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})

	if q.Offset > 0 {
		if q.Offset >= len(items) {
			return []T{}, nil
		}
		items = items[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(items) {
		items = items[:q.Limit]
	}
	return items, nil
}

// Count implements Repository
func (r *Memory[T]) Count(ctx context.Context, q Query) (int, error) {
	if err := r.table.validate(q); err != nil {
		return 0, err
	}
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.matching(q)), nil
}

// Get implements Repository
func (r *Memory[T]) Get(ctx context.Context, id uuid.UUID) (*T, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	item, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	item = r.clone(item)
	return &item, nil
}

// Insert implements Repository
func (r *Memory[T]) Insert(ctx context.Context, item *T) error {
	v := reflect.ValueOf(item).Elem()
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.table.prepareInsert(v)
	id := r.table.idOf(v)
	if _, ok := r.items[id]; ok {
		return fmt.Errorf("%w: %s: duplicate id %s", ErrConflict, r.table.Name, id)
	}
	if err := r.checkUnique(v, id); err != nil {
		return err
	}
	r.items[id] = r.clone(*item)
	return nil
}

// Update implements Repository
func (r *Memory[T]) Update(ctx context.Context, item *T) error {
	v := reflect.ValueOf(item).Elem()
	r.mutex.Lock()
	defer r.mutex.Unlock()
	id := r.table.idOf(v)
	existing, ok := r.items[id]
	if !ok {
		return ErrNotFound
	}
	if err := r.checkUnique(v, id); err != nil {
		return err
	}
	if r.table.created >= 0 {
		index := r.table.columns[r.table.created].index
		v.FieldByIndex(index).Set(reflect.ValueOf(existing).FieldByIndex(index))
	}
	r.items[id] = r.clone(*item)
	return nil
}

// Delete implements Repository
func (r *Memory[T]) Delete(ctx context.Context, id uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.items[id]; !ok {
		return ErrNotFound
	}
	delete(r.items, id)
	return nil
}

// matching must be called with the mutex held
func (r *Memory[T]) matching(q Query) []T {
	items := []T{}
	for _, item := range r.items {
		v := reflect.ValueOf(&item).Elem()
		ok := true
		for _, f := range q.Filters {
			field, _ := r.table.field(v, f.Column)
			if !matches(field, f) {
				ok = false
				break
			}
		}
		if ok {
			items = append(items, r.clone(item))
		}
	}
	return items
}

// checkUnique must be called with the mutex held
func (r *Memory[T]) checkUnique(v reflect.Value, id uuid.UUID) error {
	for _, columns := range r.unique {
		for otherID, other := range r.items {
			if otherID == id {
				continue
			}
			o := reflect.ValueOf(&other).Elem()
			same := true
			for _, c := range columns {
				a, _ := r.table.field(v, c)
				b, _ := r.table.field(o, c)
				av, aok := deref(a)
				bv, bok := deref(b)
				if !aok || !bok || compareValues(av, bv) != 0 {
					same = false
					break
				}
			}
			if same {
				return fmt.Errorf("%w: %s: duplicate %s", ErrConflict, r.table.Name, strings.Join(columns, ", "))
			}
		}
	}
	return nil
}

// clone copies the slices of item so callers cannot modify stored items
func (r *Memory[T]) clone(item T) T {
	v := reflect.ValueOf(&item).Elem()
	for _, c := range r.table.columns {
		if !c.isArray {
			continue
		}
		f := v.FieldByIndex(c.index)
		if f.IsNil() {
			continue
		}
		cp := reflect.MakeSlice(f.Type(), f.Len(), f.Len())
		reflect.Copy(cp, f)
		f.Set(cp)
	}
	return item
}

func matches(field reflect.Value, f Filter) bool {
	value, ok := deref(field)
	switch f.Op {
	case OpEq:
		if f.Value == nil {
			return !ok
		}
		return ok && compareWith(value, f.Value) == 0
	case OpLike:
		return ok && strings.Contains(strings.ToLower(fmt.Sprint(value)), strings.ToLower(fmt.Sprint(f.Value)))
	case OpGte:
		return ok && compareWith(value, f.Value) >= 0
	case OpLte:
		return ok && compareWith(value, f.Value) <= 0
	case OpIn:
		if !ok {
			return false
		}
		for _, candidate := range f.Value.([]interface{}) {
			if compareWith(value, candidate) == 0 {
				return true
			}
		}
	}
	return false
}

// deref returns the value of field, following pointers. It returns false for
// nil pointers, which stand for NULL.
func deref(field reflect.Value) (interface{}, bool) {
	for field.Kind() == reflect.Ptr {
		if field.IsNil() {
			return nil, false
		}
		field = field.Elem()
	}
	return field.Interface(), true
}

func compareFields(a, b reflect.Value) int {
	av, aok := deref(a)
	bv, bok := deref(b)
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return 1 // NULLS LAST
	case !bok:
		return -1
	}
	return compareValues(av, bv)
}

// compareWith compares a stored value with a filter value. Filter values from
// query strings arrive as strings and are converted to the stored type.
func compareWith(stored, filter interface{}) int {
	if s, ok := filter.(string); ok {
		switch stored.(type) {
		case time.Time:
			if t, err := parseTime(s); err == nil {
				filter = t
			}
		case bool:
			if b, err := strconv.ParseBool(s); err == nil {
				filter = b
			}
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				filter = f
			}
		}
	}
	return compareValues(stored, filter)
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func compareValues(a, b interface{}) int {
	ta, aIsTime := a.(time.Time)
	tb, bIsTime := b.(time.Time)
	if aIsTime && bIsTime {
		switch {
		case ta.Before(tb):
			return -1
		case ta.After(tb):
			return 1
		}
		return 0
	}
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	ba, aIsBool := a.(bool)
	bb, bIsBool := b.(bool)
	if aIsBool && bIsBool {
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		}
		return 1
	}
	sa, sb := fmt.Sprint(a), fmt.Sprint(b)
	if c := strings.Compare(strings.ToLower(sa), strings.ToLower(sb)); c != 0 {
		return c
	}
	return strings.Compare(sa, sb)
}

func number(x interface{}) (float64, bool) {
	v := reflect.ValueOf(x)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	}
	return 0, false
}
