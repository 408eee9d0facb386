package repository

// Op is a filter operator
type Op string

// supported filter operators
const (
	OpEq   Op = "="
	OpLike Op = "~"
	OpGte  Op = ">="
	OpLte  Op = "<="
	OpIn   Op = "in"
)

// Filter restricts a query to items whose Column matches Value
type Filter struct {
	Column string
	Op     Op
	Value  interface{}
}

// Eq matches items where column equals value. A nil value matches NULL.
func Eq(column string, value interface{}) Filter {
	return Filter{Column: column, Op: OpEq, Value: value}
}

// Like matches items where column contains value, case-insensitive
func Like(column string, value string) Filter {
	return Filter{Column: column, Op: OpLike, Value: value}
}

// Gte matches items where column is greater than or equal to value
func Gte(column string, value interface{}) Filter {
	return Filter{Column: column, Op: OpGte, Value: value}
}

// Lte matches items where column is less than or equal to value
func Lte(column string, value interface{}) Filter {
	return Filter{Column: column, Op: OpLte, Value: value}
}

// In matches items where column equals one of values
func In(column string, values ...interface{}) Filter {
	return Filter{Column: column, Op: OpIn, Value: values}
}

// Query selects, orders and pages the items of a repository.
// The zero Query returns everything in creation order.
type Query struct {
	Filters    []Filter
	Order      string
	Descending bool
	Limit      int
	Offset     int
}

// Where returns a copy of q with the filters added
func (q Query) Where(filters ...Filter) Query {
	q.Filters = append(append([]Filter{}, q.Filters...), filters...)
	return q
}

// OrderBy returns a copy of q ordered by column
func (q Query) OrderBy(column string, descending bool) Query {
	q.Order = column
	q.Descending = descending
	return q
}

// Page returns a copy of q limited to limit items starting at offset.
// A limit of 0 means no limit.
func (q Query) Page(limit, offset int) Query {
	q.Limit = limit
	q.Offset = offset
	return q
}
