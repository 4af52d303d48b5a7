package postgres

import (
	"testing"
	"time"

	"github.com/golang-sql/civil"
	"github.com/stretchr/testify/assert"
)

func TestDSNExplicitWins(t *testing.T) {
	cfg := ClientConfig{
		DSN:  "postgres://u:p@db:5432/potd?sslmode=require",
		Host: "ignored",
	}
	assert.Equal(t, cfg.DSN, DSN(cfg))
}

func TestDSNFromFields(t *testing.T) {
	cfg := ClientConfig{
		Host:     "localhost",
		Port:     5433,
		Database: "potd",
		User:     "potd",
		Password: "pw",
		SSLMode:  "require",
	}
	assert.Equal(t, "postgres://potd:pw@localhost:5433/potd?sslmode=require", DSN(cfg))
}

func TestDSNDefaults(t *testing.T) {
	cfg := ClientConfig{
		Host:     "localhost",
		Database: "potd",
		User:     "potd",
	}
	assert.Equal(t, "postgres://potd:@localhost:5432/potd?sslmode=disable", DSN(cfg))
}

func TestDateRoundTrip(t *testing.T) {
	d := civil.Date{Year: 2026, Month: 3, Day: 15}
	assert.Equal(t, d, scanDate(dateArg(d)))

	// A DATE surfaced in a non-UTC location still maps to the same day.
	loc := time.FixedZone("UTC+14", 14*3600)
	assert.Equal(t, d, scanDate(dateArg(d).In(loc)))
}
