package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/apae-gestao/apae/core"
	"github.com/apae-gestao/apae/core/csql"
	"github.com/apae-gestao/apae/core/logger"
	"github.com/google/uuid"
)

// Postgres is a Repository on a postgres table. The table must exist, it is
// created by the migrations of the owning package.
type Postgres[T any] struct {
	db    *csql.DB
	table *Table

	sqlColumns string
	sqlTable   string
	sqlInsert  string
	sqlUpdate  string
	sqlGet     string
	sqlDelete  string
	updateArgs []int
}

// NewPostgres returns a repository for T stored in the named table of db's schema
func NewPostgres[T any](db *csql.DB, name string) *Postgres[T] {
	t := Describe[T](name)
	r := &Postgres[T]{
		db:       db,
		table:    t,
		sqlTable: db.Table(name),
	}

	quoted := make([]string, len(t.columns))
	placeholders := make([]string, len(t.columns))
	var sets []string
	for i, c := range t.columns {
		quoted[i] = quote(c.name)
		placeholders[i] = "$" + strconv.Itoa(i+1)
		if i != t.id && i != t.created {
			r.updateArgs = append(r.updateArgs, i)
			sets = append(sets, quote(c.name)+" = $"+strconv.Itoa(len(r.updateArgs)))
		}
	}
	r.updateArgs = append(r.updateArgs, t.id)
	idParam := "$" + strconv.Itoa(len(r.updateArgs))

	r.sqlColumns = strings.Join(quoted, ", ")
	r.sqlInsert = "INSERT INTO " + r.sqlTable + " (" + r.sqlColumns + ") VALUES (" + strings.Join(placeholders, ", ") + ");"
	r.sqlUpdate = "UPDATE " + r.sqlTable + " SET " + strings.Join(sets, ", ") + " WHERE " + quote(idColumn) + " = " + idParam + " RETURNING " + r.sqlColumns + ";"
	r.sqlGet = "SELECT " + r.sqlColumns + " FROM " + r.sqlTable + " WHERE " + quote(idColumn) + " = $1;"
	r.sqlDelete = "DELETE FROM " + r.sqlTable + " WHERE " + quote(idColumn) + " = $1;"
	return r
}

// Table implements Repository
func (r *Postgres[T]) Table() *Table {
	return r.table
}

// List implements Repository
func (r *Postgres[T]) List(ctx context.Context, q Query) ([]T, error) {
	if err := r.table.validate(q); err != nil {
		return nil, err
	}
	where, args := r.where(q)
	query := "SELECT " + r.sqlColumns + " FROM " + r.sqlTable + where + r.orderBy(q)
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		query += " OFFSET $" + strconv.Itoa(len(args))
	}
	query += ";"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapError(ctx, err)
	}
	defer rows.Close()

	items := []T{}
	for rows.Next() {
		var item T
		if err := rows.Scan(r.table.scanTargets(reflect.ValueOf(&item).Elem())...); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Count implements Repository
func (r *Postgres[T]) Count(ctx context.Context, q Query) (int, error) {
	if err := r.table.validate(q); err != nil {
		return 0, err
	}
	where, args := r.where(q)
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT count(*) FROM "+r.sqlTable+where+";", args...).Scan(&count)
	if err != nil {
		return 0, r.mapError(ctx, err)
	}
	return count, nil
}

// Get implements Repository
func (r *Postgres[T]) Get(ctx context.Context, id uuid.UUID) (*T, error) {
	var item T
	err := r.db.QueryRowContext(ctx, r.sqlGet, id).Scan(r.table.scanTargets(reflect.ValueOf(&item).Elem())...)
	if err != nil {
		return nil, r.mapError(ctx, err)
	}
	return &item, nil
}

// Insert implements Repository
func (r *Postgres[T]) Insert(ctx context.Context, item *T) error {
	v := reflect.ValueOf(item).Elem()
	r.table.prepareInsert(v)
	_, err := r.db.ExecContext(ctx, r.sqlInsert, r.table.values(v)...)
	return r.mapError(ctx, err)
}

// Update implements Repository. On success item is refreshed from the
// database, so it carries the stored creation time.
func (r *Postgres[T]) Update(ctx context.Context, item *T) error {
	v := reflect.ValueOf(item).Elem()
	values := r.table.values(v)
	args := make([]interface{}, len(r.updateArgs))
	for i, column := range r.updateArgs {
		args[i] = values[column]
	}
	err := r.db.QueryRowContext(ctx, r.sqlUpdate, args...).Scan(r.table.scanTargets(v)...)
	return r.mapError(ctx, err)
}

// Delete implements Repository
func (r *Postgres[T]) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, r.sqlDelete, id)
	if err != nil {
		return r.mapError(ctx, err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Postgres[T]) where(q Query) (string, []interface{}) {
	var clauses []string
	var args []interface{}
	param := func(value interface{}) string {
		args = append(args, value)
		return "$" + strconv.Itoa(len(args))
	}

	for _, f := range q.Filters {
		col := quote(f.Column)
		switch f.Op {
		case OpEq:
			if f.Value == nil {
				clauses = append(clauses, col+" IS NULL")
			} else {
				clauses = append(clauses, col+" = "+param(f.Value))
			}
		case OpLike:
			clauses = append(clauses, "CAST("+col+" AS text) ILIKE "+param("%"+escapeLike(fmt.Sprint(f.Value))+"%"))
		case OpGte:
			clauses = append(clauses, col+" >= "+param(f.Value))
		case OpLte:
			clauses = append(clauses, col+" <= "+param(f.Value))
		case OpIn:
			values := f.Value.([]interface{})
			if len(values) == 0 {
				clauses = append(clauses, "FALSE")
				continue
			}
			params := make([]string, len(values))
			for i, value := range values {
				params[i] = param(value)
			}
			clauses = append(clauses, col+" IN ("+strings.Join(params, ", ")+")")
		}
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *Postgres[T]) orderBy(q Query) string {
	direction := " ASC"
	if q.Descending {
		direction = " DESC"
	}
	var order []string
	if q.Order != "" {
		order = append(order, quote(q.Order)+direction)
	}
	if r.table.created >= 0 && q.Order != createdColumn {
		order = append(order, quote(createdColumn)+direction)
	}
	order = append(order, quote(idColumn)+direction)
	return " ORDER BY " + strings.Join(order, ", ")
}

func (r *Postgres[T]) mapError(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, csql.ErrNoRows):
		return ErrNotFound
	case csql.IsUniqueViolation(err):
		return fmt.Errorf("%w: %s: %v", ErrConflict, r.table.Name, err)
	case csql.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: %s: %v", ErrReference, r.table.Name, err)
	case csql.IsInvalidTextRepresentation(err):
		return fmt.Errorf("%w: %v", core.ErrValidation, err)
	}
	logger.FromContext(ctx).WithError(err).Errorln("query on", r.table.Name, "failed")
	return err
}

func quote(column string) string {
	return `"` + column + `"`
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
