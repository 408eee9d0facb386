package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Operation represents a backend storage operation, one of Create, Read, Update, Delete, List
type Operation string

// all supported database operations
const (
	OperationCreate Operation = "create"
	OperationRead   Operation = "read"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
	OperationList   Operation = "list"
)

// UnmarshalJSON is a custom JSON unmarshaller
func (o *Operation) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*o = Operation(s)
	switch *o {
	case OperationCreate, OperationRead, OperationUpdate, OperationDelete, OperationList:
		return nil
	default:
		return fmt.Errorf("%s is not valid Operation", s)
	}
}

// Notifier receives change notifications for resources
type Notifier interface {
	Notify(ctx context.Context, resource string, operation Operation, id uuid.UUID, payload []byte)
}

// ErrValidation is returned, wrapped, when a request violates a business rule
var ErrValidation = errors.New("validation failed")

// Validationf returns an error wrapping ErrValidation with a formatted message
func Validationf(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, a...))
}

// Plural returns the plural form of the passed singular Portuguese noun.
//
// This is the algorithm used to create idiomatic REST routes
func Plural(singular string) string {
	switch {
	case strings.HasSuffix(singular, "ão"):
		return strings.TrimSuffix(singular, "ão") + "ões"
	case strings.HasSuffix(singular, "il"):
		return strings.TrimSuffix(singular, "il") + "is"
	case strings.HasSuffix(singular, "l"):
		return strings.TrimSuffix(singular, "l") + "is"
	case strings.HasSuffix(singular, "m"):
		return strings.TrimSuffix(singular, "m") + "ns"
	case strings.HasSuffix(singular, "r"), strings.HasSuffix(singular, "z"), strings.HasSuffix(singular, "s"):
		return singular + "es"
	}
	return singular + "s"
}
