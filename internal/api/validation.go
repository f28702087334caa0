package api

import (
	"context"
	"fmt"
	"time"

	"labops/internal/store"
)

// validate checks a payload against the registry entity: required fields
// (create and full update only), declared types, readonly protection, ref
// existence and enum membership. Enum codes come from the reference
// catalog; a category with no rows yet validates everything, so an
// unseeded install stays usable.
func (s *Server) validate(ctx context.Context, ent *store.Entity, data map[string]any, full bool) []*store.ValidationError {
	var errs []*store.ValidationError

	known := map[string]*store.FieldSpec{}
	for i := range ent.Fields {
		known[ent.Fields[i].Name] = &ent.Fields[i]
	}

	for name := range data {
		f, ok := known[name]
		if !ok {
			errs = append(errs, store.Invalid(store.ErrTypeMismatch, name, "unknown field"))
			continue
		}
		if f.ReadOnly {
			errs = append(errs, store.Invalid(store.ErrReadOnly, name, "field is read-only"))
		}
	}

	for i := range ent.Fields {
		f := &ent.Fields[i]
		v, present := data[f.Name]

		if !present || v == nil || v == "" {
			if full && f.Required {
				errs = append(errs, store.Invalid(store.ErrRequired, f.Name, "field is required"))
			}
			continue
		}

		if e := checkType(f, v); e != nil {
			errs = append(errs, e)
			continue
		}

		if f.Type == store.TRef {
			id, _ := v.(string)
			if _, err := s.store.Get(ctx, f.Ref, id); err != nil {
				errs = append(errs, store.Invalid(store.ErrRefNotFound, f.Name,
					fmt.Sprintf("%s %q not found", f.Ref, id)))
			}
			continue
		}

		if f.Enum != "" {
			if e := s.checkEnum(ctx, f, v); e != nil {
				errs = append(errs, e)
			}
		}
	}
	return errs
}

func checkType(f *store.FieldSpec, v any) *store.ValidationError {
	bad := func() *store.ValidationError {
		return store.Invalid(store.ErrTypeMismatch, f.Name,
			fmt.Sprintf("expected %s", f.Type))
	}
	switch f.Type {
	case store.TString, store.TRef:
		if _, ok := v.(string); !ok {
			return bad()
		}
	case store.TBool:
		if _, ok := v.(bool); !ok {
			return bad()
		}
	case store.TInt:
		switch t := v.(type) {
		case int, int64:
		case float64:
			if t != float64(int64(t)) {
				return bad()
			}
		default:
			return bad()
		}
	case store.TFloat:
		switch v.(type) {
		case int, int64, float64:
		default:
			return bad()
		}
	case store.TDatetime:
		s, ok := v.(string)
		if !ok {
			return bad()
		}
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			if _, err := time.Parse("2006-01-02", s); err != nil {
				return store.Invalid(store.ErrTypeMismatch, f.Name, "expected RFC3339 or YYYY-MM-DD")
			}
		}
	case store.TJSON:
		// anything goes
	}
	return nil
}

func (s *Server) checkEnum(ctx context.Context, f *store.FieldSpec, v any) *store.ValidationError {
	code, ok := v.(string)
	if !ok {
		return store.Invalid(store.ErrTypeMismatch, f.Name, "expected string")
	}
	items, err := s.refs.List(ctx, f.Enum, false)
	if err != nil || len(items) == 0 {
		return nil
	}
	// Historical rows store display strings in some enum columns (the
	// complexity levels in particular), so both forms are accepted.
	for _, it := range items {
		if it.Code == code || it.DisplayName == code {
			return nil
		}
	}
	return store.Invalid(store.ErrEnumInvalid, f.Name,
		fmt.Sprintf("%q is not an active %s code", code, f.Enum))
}
