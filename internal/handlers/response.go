package handlers

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	xhttp "github.com/nimasrn/cashback-ledger/pkg/http"
)

type listResponse[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, code, msg string) {
	writeJSON(ctx, status, errorResponse{Error: msg, Code: code})
}

func pathParam(ctx *xhttp.RequestCtx, name string) string {
	v, _ := ctx.UserValue(name).(string)
	return v
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

// queryList splits a comma separated query value, dropping blanks.
func queryList(ctx *xhttp.RequestCtx, key string) []string {
	v := query(ctx, key)
	if v == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type page struct {
	from, to      *time.Time
	limit, offset int
	desc          bool
}

func queryPage(ctx *xhttp.RequestCtx) page {
	var p page
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			p.from = &t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v); e == nil {
			p.to = &t
		}
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			p.limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			p.offset = n
		}
	}
	p.desc = strings.EqualFold(query(ctx, "order"), "desc")
	return p
}

func parseTime(s string) (time.Time, error) {
	// Accept RFC3339 or YYYY-MM-DD
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
