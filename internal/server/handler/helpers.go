// Package handler contains the HTTP surface of the settlement engine. Each
// file pairs a service with its routes; the helpers here keep response
// encoding and query parsing consistent across them.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/golang-sql/civil"

	"github.com/phetrusrodrigues1997/predictionpot/internal/domain"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

// writeJSON encodes v and writes it with the given status. An encode
// failure degrades to a canned 500 body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(body)
}

// writeError is writeJSON for the standard {"error": msg} shape.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseListOpts reads limit/offset from the query string, clamping limit to
// maxPageLimit and ignoring values that do not parse.
func parseListOpts(r *http.Request) domain.ListOpts {
	opts := domain.ListOpts{Limit: defaultPageLimit}
	q := r.URL.Query()

	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		opts.Limit = min(n, maxPageLimit)
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n > 0 {
		opts.Offset = n
	}
	return opts
}

// parseDate parses a YYYY-MM-DD value. Empty input yields the zero date,
// which the services read as "today in UTC".
func parseDate(s string) (civil.Date, error) {
	if s == "" {
		return civil.Date{}, nil
	}
	return civil.ParseDate(s)
}

// pathParam reads a named path segment from the request's route pattern.
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}
