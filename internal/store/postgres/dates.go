package postgres

import (
	"time"

	"github.com/golang-sql/civil"
)

// dateArg converts a civil date into the midnight-UTC time value that pgx
// encodes as a SQL DATE parameter.
func dateArg(d civil.Date) time.Time {
	return d.In(time.UTC)
}

// scanDate converts a scanned SQL DATE (surfaced by pgx as a time.Time) back
// into a civil date.
func scanDate(t time.Time) civil.Date {
	return civil.DateOf(t.UTC())
}
