package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"finstat/pkg/core/financial"
)

// ReportRepo stores derived reports as JSONB documents.
type ReportRepo struct {
	db DB
}

// NewReportRepo creates a repository over db.
func NewReportRepo(db DB) *ReportRepo {
	return &ReportRepo{db: db}
}

// Save upserts report by (symbol, period end date). A report without a
// valid UUID is given a new one; on conflict the existing row keeps its ID
// and report.ID is updated to it.
func (r *ReportRepo) Save(ctx context.Context, report *financial.Report) error {
	id, err := uuid.Parse(report.ID)
	if err != nil {
		id = uuid.New()
		report.ID = id.String()
	}
	// The row id is authoritative; the stored document carries none.
	doc := *report
	doc.ID = ""
	data, err := json.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	err = r.db.QueryRow(ctx, `
		INSERT INTO reports (id, symbol, period_end_date, report_json, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (symbol, period_end_date)
		DO UPDATE SET
			report_json = EXCLUDED.report_json,
			updated_at = EXCLUDED.updated_at
		RETURNING id`,
		id, report.Symbol, report.PeriodEndDate, data,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	report.ID = id.String()
	return nil
}

// FindBySymbolAndPeriod loads one report.
func (r *ReportRepo) FindBySymbolAndPeriod(ctx context.Context, symbol, period string) (*financial.Report, error) {
	var (
		id   uuid.UUID
		data []byte
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, report_json FROM reports WHERE symbol = $1 AND period_end_date = $2`,
		symbol, period,
	).Scan(&id, &data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: report %s %s", ErrNotFound, symbol, period)
		}
		return nil, fmt.Errorf("failed to load report: %w", err)
	}

	report := &financial.Report{}
	if err := json.Unmarshal(data, report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	report.ID = id.String()
	return report, nil
}
