package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"finstat/pkg/core/filing"
)

// FilingRepo stores parsed filings and their facts.
type FilingRepo struct {
	db DB
}

// NewFilingRepo creates a repository over db.
func NewFilingRepo(db DB) *FilingRepo {
	return &FilingRepo{db: db}
}

// Save upserts f by (symbol, period end date) and replaces its facts, all in
// one transaction. f.ID is set to the stored row id.
func (r *FilingRepo) Save(ctx context.Context, f *filing.Filing) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO filings (symbol, type, report_date, period_end_date, accession, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (symbol, period_end_date)
		DO UPDATE SET
			type = EXCLUDED.type,
			report_date = EXCLUDED.report_date,
			accession = EXCLUDED.accession,
			updated_at = EXCLUDED.updated_at
		RETURNING id`,
		f.Symbol, f.Type, f.ReportDate, f.PeriodEndDate, f.Accession,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to save filing %s: %w", f, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM filing_facts WHERE filing_id = $1`, id); err != nil {
		return fmt.Errorf("failed to clear facts: %w", err)
	}

	batch := &pgx.Batch{}
	for seq, fact := range f.Facts() {
		members, err := encodeMembers(fact.Members())
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO filing_facts (filing_id, seq, tag, end_date, members, unit, value, quarters)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			id, seq, fact.Tag(), fact.EndDate(), members, fact.Unit(), fact.Value(), fact.Quarters())
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to save facts: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit filing: %w", err)
	}
	f.ID = id
	return nil
}

// FindBySymbolAndPeriod loads one filing with all its facts.
func (r *FilingRepo) FindBySymbolAndPeriod(ctx context.Context, symbol, period string) (*filing.Filing, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, symbol, type, report_date, period_end_date, accession
		FROM filings WHERE symbol = $1 AND period_end_date = $2`, symbol, period)

	f, err := scanFiling(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: filing %s %s", ErrNotFound, symbol, period)
		}
		return nil, fmt.Errorf("failed to load filing: %w", err)
	}
	if err := r.loadFacts(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// FindAllBySymbol loads every filing of symbol, oldest period first.
func (r *FilingRepo) FindAllBySymbol(ctx context.Context, symbol string) ([]*filing.Filing, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, symbol, type, report_date, period_end_date, accession
		FROM filings WHERE symbol = $1 ORDER BY period_end_date`, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to list filings: %w", err)
	}

	var filings []*filing.Filing
	for rows.Next() {
		f, err := scanFiling(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan filing: %w", err)
		}
		filings = append(filings, f)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list filings: %w", err)
	}

	for _, f := range filings {
		if err := r.loadFacts(ctx, f); err != nil {
			return nil, err
		}
	}
	return filings, nil
}

func (r *FilingRepo) loadFacts(ctx context.Context, f *filing.Filing) error {
	rows, err := r.db.Query(ctx, `
		SELECT tag, end_date, members, unit, value, quarters
		FROM filing_facts WHERE filing_id = $1 ORDER BY seq`, f.ID)
	if err != nil {
		return fmt.Errorf("failed to load facts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec factRecord
		if err := rows.Scan(&rec.Tag, &rec.EndDate, &rec.Members, &rec.Unit, &rec.Value, &rec.Quarters); err != nil {
			return fmt.Errorf("failed to scan fact: %w", err)
		}
		fact, err := rec.fact()
		if err != nil {
			return err
		}
		f.AddFact(fact)
	}
	return rows.Err()
}

func scanFiling(row pgx.Row) (*filing.Filing, error) {
	f := &filing.Filing{}
	if err := row.Scan(&f.ID, &f.Symbol, &f.Type, &f.ReportDate, &f.PeriodEndDate, &f.Accession); err != nil {
		return nil, err
	}
	return f, nil
}

// factRecord is one filing_facts row.
type factRecord struct {
	Tag      string
	EndDate  string
	Members  string
	Unit     string
	Value    float64
	Quarters int
}

func (rec factRecord) fact() (*filing.Fact, error) {
	members, err := decodeMembers(rec.Members)
	if err != nil {
		return nil, err
	}
	return filing.NewFact(rec.Tag, rec.EndDate, members, rec.Quarters, rec.Unit, rec.Value), nil
}

// encodeMembers renders members as JSON. Map keys are sorted by the
// encoder, so equal member sets always encode to the same primary key text.
func encodeMembers(members map[string]string) (string, error) {
	if members == nil {
		members = map[string]string{}
	}
	b, err := json.Marshal(members)
	if err != nil {
		return "", fmt.Errorf("failed to encode members: %w", err)
	}
	return string(b), nil
}

func decodeMembers(s string) (map[string]string, error) {
	members := map[string]string{}
	if s == "" {
		return members, nil
	}
	if err := json.Unmarshal([]byte(s), &members); err != nil {
		return nil, fmt.Errorf("failed to decode members %q: %w", s, err)
	}
	return members, nil
}
