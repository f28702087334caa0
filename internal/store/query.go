package store

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// In-memory filter matching and multi-key sorting. Values are compared by
// string form except gte/lte, which go numeric when both sides parse.

func fieldValue(rec *Record, field string) (any, bool) {
	switch field {
	case "id":
		return rec.ID, true
	case "version":
		return rec.Version, true
	case "created_at":
		return rec.CreatedAt, true
	case "updated_at":
		return rec.UpdatedAt, true
	}
	v, ok := rec.Data[field]
	return v, ok
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func asNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case string:
		n, err := strconv.ParseFloat(t, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func matchesAll(rec *Record, filters []Filter) bool {
	for _, f := range filters {
		if !matches(rec, f) {
			return false
		}
	}
	return true
}

func matches(rec *Record, f Filter) bool {
	v, ok := fieldValue(rec, f.Field)
	switch f.Op {
	case OpEq:
		return ok && stringify(v) == stringify(f.Value)
	case OpNeq:
		return !ok || stringify(v) != stringify(f.Value)
	case OpIn:
		if !ok {
			return false
		}
		vs, _ := f.Value.([]string)
		s := stringify(v)
		for _, want := range vs {
			if s == want {
				return true
			}
		}
		return false
	case OpContains:
		return ok && strings.Contains(strings.ToLower(stringify(v)), strings.ToLower(stringify(f.Value)))
	case OpGte, OpLte:
		if !ok {
			return false
		}
		if a, aok := asNumber(v); aok {
			if b, bok := asNumber(f.Value); bok {
				if f.Op == OpGte {
					return a >= b
				}
				return a <= b
			}
		}
		if f.Op == OpGte {
			return stringify(v) >= stringify(f.Value)
		}
		return stringify(v) <= stringify(f.Value)
	default:
		return false
	}
}

// sortRecords sorts in place by the given keys; missing values go last.
func sortRecords(records []*Record, keys []Order) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		for _, k := range keys {
			if c := cmpByKey(records[i], records[j], k); c != 0 {
				return c < 0
			}
		}
		return false
	})
}

func cmpByKey(a, b *Record, key Order) int {
	va, oka := fieldValue(a, key.Field)
	vb, okb := fieldValue(b, key.Field)

	na := !oka || va == nil
	nb := !okb || vb == nil
	if na && nb {
		return 0
	}
	if na != nb {
		if na {
			return +1 // nulls last regardless of direction
		}
		return -1
	}

	rel := 0
	if x, xok := asNumber(va); xok {
		if y, yok := asNumber(vb); yok {
			switch {
			case x < y:
				rel = -1
			case x > y:
				rel = +1
			}
			if key.Desc {
				rel = -rel
			}
			return rel
		}
	}
	sa, sb := stringify(va), stringify(vb)
	switch {
	case sa < sb:
		rel = -1
	case sa > sb:
		rel = +1
	}
	if key.Desc {
		rel = -rel
	}
	return rel
}
