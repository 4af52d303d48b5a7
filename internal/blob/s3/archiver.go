package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/golang-sql/civil"

	"github.com/phetrusrodrigues1997/predictionpot/internal/domain"
)

// SnapshotArchiver implements domain.SettlementArchiver by serializing a
// settled date's prediction rows to JSONL and uploading them to object
// storage before the executor deletes them. The upload happens first; if it
// fails, settlement aborts and the rows survive for the retry.
type SnapshotArchiver struct {
	writer domain.BlobWriter
	audit  domain.AuditStore
}

// NewSnapshotArchiver creates a SnapshotArchiver.
func NewSnapshotArchiver(writer domain.BlobWriter, audit domain.AuditStore) *SnapshotArchiver {
	return &SnapshotArchiver{
		writer: writer,
		audit:  audit,
	}
}

// snapshotLine is the JSONL record written per prediction row.
type snapshotLine struct {
	Wallet         string `json:"wallet"`
	QuestionName   string `json:"question_name"`
	Side           string `json:"side"`
	Contract       string `json:"contract"`
	PredictionDate string `json:"prediction_date"`
	CreatedAt      string `json:"created_at"`
}

// ArchivePredictions uploads the given prediction rows to
// settlements/{market}/{date}.jsonl and returns the object path. An empty
// slice is a no-op that still returns the path it would have written, so the
// executor's flow stays uniform.
func (a *SnapshotArchiver) ArchivePredictions(ctx context.Context, mt domain.MarketType, question string, date civil.Date, predictions []domain.Prediction) (string, error) {
	path := fmt.Sprintf("settlements/%s/%s.jsonl", mt, date.String())

	if len(predictions) == 0 {
		return path, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, p := range predictions {
		line := snapshotLine{
			Wallet:         p.Wallet,
			QuestionName:   p.QuestionName,
			Side:           string(p.Side),
			Contract:       p.Contract,
			PredictionDate: p.PredictionDate.String(),
			CreatedAt:      p.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		}
		if err := enc.Encode(line); err != nil {
			return "", fmt.Errorf("s3blob: encode snapshot line: %w", err)
		}
	}

	if err := a.writer.Put(ctx, path, &buf, "application/x-ndjson"); err != nil {
		return "", fmt.Errorf("s3blob: archive predictions %s: %w", path, err)
	}

	if a.audit != nil {
		_ = a.audit.Log(ctx, "predictions_archived", map[string]any{
			"market_type": string(mt),
			"question":    question,
			"date":        date.String(),
			"count":       len(predictions),
			"path":        path,
		})
	}

	return path, nil
}

// Compile-time interface check.
var _ domain.SettlementArchiver = (*SnapshotArchiver)(nil)
