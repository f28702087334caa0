package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"labops/internal/store"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// listParams carries limit/offset/sort plus field filters parsed from the
// query string. Filter keys use the field__op form: status__in=a,b or
// priority__gte=3; a bare key means equality.
type listParams struct {
	Limit   int
	Offset  int
	Order   []store.Order
	Filters []store.Filter
}

var reservedKeys = map[string]bool{
	"limit": true, "offset": true, "sort": true, "include_inactive": true,
}

func parseListParams(q url.Values) listParams {
	lp := listParams{Limit: defaultLimit}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		lp.Limit = min(v, maxLimit)
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v > 0 {
		lp.Offset = v
	}
	for _, part := range strings.Split(q.Get("sort"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.HasPrefix(part, "-") {
			lp.Order = append(lp.Order, store.Order{Field: part[1:], Desc: true})
		} else {
			lp.Order = append(lp.Order, store.Order{Field: part})
		}
	}
	for key, vals := range q {
		if reservedKeys[key] || len(vals) == 0 || vals[0] == "" {
			continue
		}
		field, op := key, "eq"
		if i := strings.LastIndex(key, "__"); i > 0 {
			field, op = key[:i], key[i+2:]
		}
		v := vals[0]
		switch op {
		case "eq":
			lp.Filters = append(lp.Filters, store.Eq(field, v))
		case "neq":
			lp.Filters = append(lp.Filters, store.Neq(field, v))
		case "in":
			var parts []string
			for _, p := range strings.Split(v, ",") {
				if p = strings.TrimSpace(p); p != "" {
					parts = append(parts, p)
				}
			}
			lp.Filters = append(lp.Filters, store.In(field, parts))
		case "gte":
			lp.Filters = append(lp.Filters, store.Gte(field, v))
		case "lte":
			lp.Filters = append(lp.Filters, store.Lte(field, v))
		case "contains":
			lp.Filters = append(lp.Filters, store.Filter{Field: field, Op: store.OpContains, Value: v})
		}
	}
	return lp
}

// readExpectedVersion reads the optimistic-lock version from If-Match or
// from body.version. If-Match wins; W/"3" and quoted forms are accepted.
func readExpectedVersion(c *gin.Context, body map[string]any) (int64, bool) {
	ifMatch := strings.TrimSpace(c.GetHeader("If-Match"))
	if ifMatch != "" {
		ifMatch = strings.TrimPrefix(ifMatch, "W/")
		ifMatch = strings.Trim(ifMatch, `"'`)
		if v, err := strconv.ParseInt(ifMatch, 10, 64); err == nil {
			return v, true
		}
	}
	if body != nil {
		switch t := body["version"].(type) {
		case float64:
			return int64(t), true
		case string:
			if v, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
				return v, true
			}
		}
	}
	return 0, false
}

const codeVersionConflict = "version_conflict"

func statusForErrors(errs []*store.ValidationError) int {
	for _, e := range errs {
		switch e.Code {
		case store.ErrUniqueViolation, store.ErrRefNotFound, store.ErrInUse, codeVersionConflict:
			return http.StatusConflict
		}
	}
	return http.StatusBadRequest
}

// writeError maps service and store errors onto the response envelope:
// {"errors":[{code,field,message}]} for business failures, {"error": ...}
// for plumbing.
func writeError(c *gin.Context, err error) {
	var verr *store.ValidationError
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
	case errors.Is(err, store.ErrEntityUnknown):
		c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
	case errors.Is(err, store.ErrVersionConflict):
		c.JSON(http.StatusConflict, gin.H{"errors": []*store.ValidationError{
			store.Invalid(codeVersionConflict, "version", "version conflict"),
		}})
	case errors.As(err, &verr):
		c.JSON(statusForErrors([]*store.ValidationError{verr}), gin.H{"errors": []*store.ValidationError{verr}})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// currentUser is the authn shim: identity arrives on a trusted header and
// is used for audit fields only.
func currentUser(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader("X-User"))
}

func flatten(recs []*store.Record) []map[string]any {
	out := make([]map[string]any, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Flatten())
	}
	return out
}
