// Package store is the data access layer: a schema-generic record store
// with a Postgres implementation for production and an in-memory one for
// development and tests. Entities are declared in the static registry.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Record struct {
	ID        string         `json:"id"`
	Version   int64          `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Deleted   bool           `json:"-"`
	Data      map[string]any `json:"data"`
}

// Flatten merges system columns and user data into one map for API output.
// User fields never shadow system ones.
func (r *Record) Flatten() map[string]any {
	out := map[string]any{
		"id":         r.ID,
		"version":    r.Version,
		"created_at": r.CreatedAt.Format(time.RFC3339),
		"updated_at": r.UpdatedAt.Format(time.RFC3339),
	}
	for k, v := range r.Data {
		if _, clash := out[k]; clash {
			out["data."+k] = v
			continue
		}
		out[k] = v
	}
	return out
}

type Op string

const (
	OpEq       Op = "eq"
	OpNeq      Op = "neq"
	OpIn       Op = "in"
	OpContains Op = "contains" // substring, case-insensitive
	OpGte      Op = "gte"
	OpLte      Op = "lte"
)

type Filter struct {
	Field string
	Op    Op
	Value any
}

func Eq(field string, v any) Filter  { return Filter{Field: field, Op: OpEq, Value: v} }
func Neq(field string, v any) Filter { return Filter{Field: field, Op: OpNeq, Value: v} }
func In(field string, vs []string) Filter {
	return Filter{Field: field, Op: OpIn, Value: vs}
}
func Lte(field string, v any) Filter { return Filter{Field: field, Op: OpLte, Value: v} }
func Gte(field string, v any) Filter { return Filter{Field: field, Op: OpGte, Value: v} }

type Order struct {
	Field string
	Desc  bool
}

type Query struct {
	Entity  string // FQN "module.entity"
	Filters []Filter
	Order   []Order
	Limit   int // 0 = unlimited
	Offset  int
}

// Store is the remote relational backend seen by the service layer. Writes
// are soft deletes; Update/Patch take an expected version for optimistic
// concurrency (pass NoVersionCheck for internal service writes).
type Store interface {
	Insert(ctx context.Context, entity string, data map[string]any) (*Record, error)
	BulkInsert(ctx context.Context, entity string, rows []map[string]any) ([]*Record, error)
	Get(ctx context.Context, entity, id string) (*Record, error)
	Select(ctx context.Context, q Query) ([]*Record, error)
	Count(ctx context.Context, entity string, filters ...Filter) (int, error)
	Update(ctx context.Context, entity, id string, expectedVersion int64, data map[string]any) (*Record, error)
	Patch(ctx context.Context, entity, id string, expectedVersion int64, patch map[string]any) (*Record, error)
	Delete(ctx context.Context, entity, id string) error
	Restore(ctx context.Context, entity, id string) error
}

const NoVersionCheck int64 = -1

var (
	ErrNotFound        = errors.New("record not found")
	ErrEntityUnknown   = errors.New("entity not registered")
	ErrVersionConflict = errors.New("version conflict")
)

// ValidationError is raised before any remote call when a business rule or
// required-field check fails.
type ValidationError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Field)
}

// Error codes shared with the API envelope.
const (
	ErrRequired        = "required"
	ErrTypeMismatch    = "type_mismatch"
	ErrEnumInvalid     = "enum_invalid"
	ErrUniqueViolation = "unique_violation"
	ErrRefNotFound     = "ref_not_found"
	ErrReadOnly        = "readonly_field"
	ErrSystemProtected = "system_protected"
	ErrInUse           = "in_use"
	ErrExpired         = "expired"
	ErrBadState        = "bad_state"
)

func Invalid(code, field, msg string) *ValidationError {
	return &ValidationError{Code: code, Field: field, Message: msg}
}
