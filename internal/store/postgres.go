package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Postgres stores every entity in its registry table with the same column
// set: system columns plus the record body as jsonb. Filters and ordering
// run against jsonb paths, so the schema never has to chase the registry.
type Postgres struct {
	db *sql.DB

	entropyMu sync.Mutex
	entropy   io.Reader
}

func NewPostgres(db *sql.DB) *Postgres {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Postgres{db: db, entropy: ulid.Monotonic(src, 0)}
}

func (p *Postgres) newID() string {
	p.entropyMu.Lock()
	defer p.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), p.entropy).String()
}

func tableFor(entity string) (string, error) {
	e, ok := Registry[entity]
	if !ok {
		return "", ErrEntityUnknown
	}
	return e.Table, nil
}

func systemColumn(field string) (string, bool) {
	switch field {
	case "id", "version", "created_at", "updated_at":
		return field, true
	}
	return "", false
}

// whereSQL renders filters into a WHERE fragment; deleted rows are always
// excluded by the caller's base clause.
func whereSQL(filters []Filter, args *[]any) (string, error) {
	var parts []string
	expr := func(field string) string {
		if col, ok := systemColumn(field); ok {
			return col
		}
		return fmt.Sprintf("data->>'%s'", strings.ReplaceAll(field, "'", ""))
	}
	for _, f := range filters {
		e := expr(f.Field)
		switch f.Op {
		case OpEq:
			*args = append(*args, stringify(f.Value))
			parts = append(parts, fmt.Sprintf("%s = $%d", e, len(*args)))
		case OpNeq:
			*args = append(*args, stringify(f.Value))
			parts = append(parts, fmt.Sprintf("(%s is null or %s <> $%d)", e, e, len(*args)))
		case OpIn:
			vs, _ := f.Value.([]string)
			if len(vs) == 0 {
				parts = append(parts, "false")
				continue
			}
			ph := make([]string, 0, len(vs))
			for _, v := range vs {
				*args = append(*args, v)
				ph = append(ph, fmt.Sprintf("$%d", len(*args)))
			}
			parts = append(parts, fmt.Sprintf("%s in (%s)", e, strings.Join(ph, ", ")))
		case OpContains:
			*args = append(*args, "%"+stringify(f.Value)+"%")
			parts = append(parts, fmt.Sprintf("%s ilike $%d", e, len(*args)))
		case OpGte, OpLte:
			op := ">="
			if f.Op == OpLte {
				op = "<="
			}
			if n, ok := asNumber(f.Value); ok {
				*args = append(*args, n)
				parts = append(parts, fmt.Sprintf("(%s)::numeric %s $%d", e, op, len(*args)))
			} else {
				*args = append(*args, stringify(f.Value))
				parts = append(parts, fmt.Sprintf("%s %s $%d", e, op, len(*args)))
			}
		default:
			return "", fmt.Errorf("unsupported filter op %q", f.Op)
		}
	}
	if len(parts) == 0 {
		return "", nil
	}
	return " and " + strings.Join(parts, " and "), nil
}

func orderSQL(order []Order) string {
	if len(order) == 0 {
		return " order by created_at, id"
	}
	var parts []string
	for _, o := range order {
		var e string
		if col, ok := systemColumn(o.Field); ok {
			e = col
		} else {
			// jsonb comparison keeps numbers numeric
			e = fmt.Sprintf("data->'%s'", strings.ReplaceAll(o.Field, "'", ""))
		}
		dir := "asc"
		if o.Desc {
			dir = "desc"
		}
		parts = append(parts, fmt.Sprintf("%s %s nulls last", e, dir))
	}
	return " order by " + strings.Join(parts, ", ")
}

func scanRecord(rows interface{ Scan(...any) error }) (*Record, error) {
	var rec Record
	var raw []byte
	if err := rows.Scan(&rec.ID, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt, &rec.Deleted, &raw); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &rec.Data); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", rec.ID, err)
	}
	return &rec, nil
}

const recordCols = "id, version, created_at, updated_at, deleted, data"

func (p *Postgres) Insert(ctx context.Context, entity string, data map[string]any) (*Record, error) {
	tbl, err := tableFor(entity)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	id := p.newID()
	row := p.db.QueryRowContext(ctx, fmt.Sprintf(
		`insert into %s (id, version, created_at, updated_at, deleted, data)
		 values ($1, 1, now(), now(), false, $2)
		 returning `+recordCols, tbl), id, raw)
	rec, err := scanRecord(row)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", entity, err)
	}
	return rec, nil
}

func (p *Postgres) BulkInsert(ctx context.Context, entity string, rows []map[string]any) ([]*Record, error) {
	out := make([]*Record, 0, len(rows))
	for _, row := range rows {
		rec, err := p.Insert(ctx, entity, row)
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (p *Postgres) Get(ctx context.Context, entity, id string) (*Record, error) {
	tbl, err := tableFor(entity)
	if err != nil {
		return nil, err
	}
	row := p.db.QueryRowContext(ctx, fmt.Sprintf(
		"select "+recordCols+" from %s where id = $1 and not deleted", tbl), id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", entity, id, err)
	}
	return rec, nil
}

func (p *Postgres) Select(ctx context.Context, q Query) ([]*Record, error) {
	tbl, err := tableFor(q.Entity)
	if err != nil {
		return nil, err
	}
	var args []any
	where, err := whereSQL(q.Filters, &args)
	if err != nil {
		return nil, err
	}
	sqlText := fmt.Sprintf("select "+recordCols+" from %s where not deleted%s%s", tbl, where, orderSQL(q.Order))
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sqlText += fmt.Sprintf(" limit $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		sqlText += fmt.Sprintf(" offset $%d", len(args))
	}
	rows, err := p.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", q.Entity, err)
	}
	defer rows.Close()
	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *Postgres) Count(ctx context.Context, entity string, filters ...Filter) (int, error) {
	tbl, err := tableFor(entity)
	if err != nil {
		return 0, err
	}
	var args []any
	where, err := whereSQL(filters, &args)
	if err != nil {
		return 0, err
	}
	var n int
	err = p.db.QueryRowContext(ctx, fmt.Sprintf(
		"select count(*) from %s where not deleted%s", tbl, where), args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", entity, err)
	}
	return n, nil
}

func (p *Postgres) Update(ctx context.Context, entity, id string, expectedVersion int64, data map[string]any) (*Record, error) {
	return p.write(ctx, entity, id, expectedVersion, data, false)
}

func (p *Postgres) Patch(ctx context.Context, entity, id string, expectedVersion int64, patch map[string]any) (*Record, error) {
	return p.write(ctx, entity, id, expectedVersion, patch, true)
}

func (p *Postgres) write(ctx context.Context, entity, id string, expectedVersion int64, data map[string]any, merge bool) (*Record, error) {
	tbl, err := tableFor(entity)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	dataExpr := "$2::jsonb"
	if merge {
		dataExpr = "data || $2::jsonb"
	}
	args := []any{id, raw}
	verClause := ""
	if expectedVersion != NoVersionCheck {
		args = append(args, expectedVersion)
		verClause = fmt.Sprintf(" and version = $%d", len(args))
	}
	row := p.db.QueryRowContext(ctx, fmt.Sprintf(
		`update %s set data = %s, version = version + 1, updated_at = now()
		 where id = $1 and not deleted%s
		 returning `+recordCols, tbl, dataExpr, verClause), args...)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		// Disambiguate missing row vs stale version.
		if _, getErr := p.Get(ctx, entity, id); getErr == nil {
			return nil, ErrVersionConflict
		}
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", entity, id, err)
	}
	return rec, nil
}

func (p *Postgres) Delete(ctx context.Context, entity, id string) error {
	return p.setDeleted(ctx, entity, id, true)
}

func (p *Postgres) Restore(ctx context.Context, entity, id string) error {
	return p.setDeleted(ctx, entity, id, false)
}

func (p *Postgres) setDeleted(ctx context.Context, entity, id string, deleted bool) error {
	tbl, err := tableFor(entity)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, fmt.Sprintf(
		`update %s set deleted = $2, version = version + 1, updated_at = now()
		 where id = $1 and deleted <> $2`, tbl),
		id, deleted)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", entity, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if !deleted {
			// restoring a live row is a no-op, same as the memory store
			var one int
			if err := p.db.QueryRowContext(ctx, fmt.Sprintf(
				"select 1 from %s where id = $1 and not deleted", tbl), id).Scan(&one); err == nil {
				return nil
			}
		}
		return ErrNotFound
	}
	return nil
}
