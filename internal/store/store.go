// Package store persists rules, analyzed clauses and contract summaries in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ericksa/contractlens/internal/model"
)

// ErrNotFound is returned when a row with the requested key does not exist.
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS rules (
	id TEXT PRIMARY KEY,
	keyword TEXT NOT NULL,
	allowed INTEGER NOT NULL DEFAULT 0,
	risk_score INTEGER NOT NULL DEFAULT 5,
	category TEXT,
	description TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS clauses (
	id TEXT PRIMARY KEY,
	seq INTEGER NOT NULL,
	document_id TEXT NOT NULL,
	clause TEXT NOT NULL,
	section TEXT,
	page INTEGER,
	category TEXT,
	risk_score INTEGER NOT NULL,
	compliance_status TEXT NOT NULL,
	completed INTEGER NOT NULL DEFAULT 0,
	recommendations TEXT,
	compliance_issues TEXT
);
CREATE INDEX IF NOT EXISTS idx_clauses_document ON clauses(document_id, seq);
CREATE TABLE IF NOT EXISTS summaries (
	document_id TEXT PRIMARY KEY,
	title TEXT,
	parties TEXT,
	effective_date TEXT,
	term_length TEXT,
	payment_terms TEXT NOT NULL,
	rate_card TEXT NOT NULL,
	fees TEXT NOT NULL,
	key_obligations TEXT NOT NULL,
	confidentiality_terms TEXT,
	termination_clauses TEXT NOT NULL,
	digest TEXT,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. ":memory:" gives a
// private in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps an in-memory database shared and serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Rules

func (s *Store) ListRules(ctx context.Context) ([]model.ComplianceRule, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, keyword, allowed, risk_score, category, description, created_at FROM rules ORDER BY created_at, rowid")
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	rules := []model.ComplianceRule{}
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func (s *Store) GetRule(ctx context.Context, id string) (model.ComplianceRule, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, keyword, allowed, risk_score, category, description, created_at FROM rules WHERE id = ?", id)
	r, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ComplianceRule{}, ErrNotFound
	}
	return r, err
}

func (s *Store) CreateRule(ctx context.Context, r model.ComplianceRule) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO rules (id, keyword, allowed, risk_score, category, description, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		r.ID, r.Keyword, r.Allowed, r.RiskScore, r.Category, r.Description, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}
	return nil
}

func (s *Store) UpdateRule(ctx context.Context, r model.ComplianceRule) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE rules SET keyword = ?, allowed = ?, risk_score = ?, category = ?, description = ? WHERE id = ?",
		r.Keyword, r.Allowed, r.RiskScore, r.Category, r.Description, r.ID)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	return requireRow(res)
}

func (s *Store) DeleteRule(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM rules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return requireRow(res)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRule(sc scanner) (model.ComplianceRule, error) {
	var (
		r        model.ComplianceRule
		category sql.NullString
		desc     sql.NullString
		created  sql.NullTime
	)
	if err := sc.Scan(&r.ID, &r.Keyword, &r.Allowed, &r.RiskScore, &category, &desc, &created); err != nil {
		return model.ComplianceRule{}, err
	}
	r.Category = category.String
	r.Description = desc.String
	r.CreatedAt = created.Time
	return r, nil
}

// Clauses

// ReplaceClauses removes every stored clause and inserts the given ones in
// order, in one transaction.
func (s *Store) ReplaceClauses(ctx context.Context, clauses []model.Clause) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := replaceClauses(ctx, tx, clauses); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceDocument stores a freshly analyzed document: the clause set is
// replaced and the summary upserted together, or not at all.
func (s *Store) ReplaceDocument(ctx context.Context, clauses []model.Clause, sum model.ContractSummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := replaceClauses(ctx, tx, clauses); err != nil {
		return err
	}
	if err := upsertSummary(ctx, tx, sum); err != nil {
		return err
	}
	return tx.Commit()
}

func replaceClauses(ctx context.Context, tx *sql.Tx, clauses []model.Clause) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM clauses"); err != nil {
		return fmt.Errorf("failed to clear clauses: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO clauses
		(id, seq, document_id, clause, section, page, category, risk_score, compliance_status, completed, recommendations, compliance_issues)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range clauses {
		recs, err := json.Marshal(c.Recommendations)
		if err != nil {
			return err
		}
		issues, err := json.Marshal(c.ComplianceIssues)
		if err != nil {
			return err
		}
		var page sql.NullInt64
		if c.Page != nil {
			page = sql.NullInt64{Int64: int64(*c.Page), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, c.ID, i, c.DocumentID, c.Clause, c.Section, page, c.Category,
			c.RiskScore, string(c.ComplianceStatus), c.Completed, string(recs), string(issues)); err != nil {
			return fmt.Errorf("failed to insert clause %d: %w", i, err)
		}
	}
	return nil
}

// ResetClauses deletes every clause and summary.
func (s *Store) ResetClauses(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM clauses"); err != nil {
		return fmt.Errorf("failed to clear clauses: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM summaries"); err != nil {
		return fmt.Errorf("failed to clear summaries: %w", err)
	}
	return nil
}

const clauseColumns = "id, document_id, clause, section, page, category, risk_score, compliance_status, completed, recommendations, compliance_issues"

func (s *Store) ListClauses(ctx context.Context, documentID string) ([]model.Clause, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+clauseColumns+" FROM clauses WHERE document_id = ? ORDER BY seq", documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list clauses: %w", err)
	}
	defer rows.Close()

	clauses := []model.Clause{}
	for rows.Next() {
		c, err := scanClause(rows)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, c)
	}
	return clauses, rows.Err()
}

// SetCompleted flips the reviewed flag, the only clause field that changes after analysis.
func (s *Store) SetCompleted(ctx context.Context, id string, completed bool) (model.Clause, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE clauses SET completed = ? WHERE id = ?", completed, id)
	if err != nil {
		return model.Clause{}, fmt.Errorf("failed to update clause: %w", err)
	}
	if err := requireRow(res); err != nil {
		return model.Clause{}, err
	}
	return scanClause(s.db.QueryRowContext(ctx, "SELECT "+clauseColumns+" FROM clauses WHERE id = ?", id))
}

func scanClause(sc scanner) (model.Clause, error) {
	var (
		c            model.Clause
		status       string
		section, cat sql.NullString
		page         sql.NullInt64
		recs, issues sql.NullString
	)
	if err := sc.Scan(&c.ID, &c.DocumentID, &c.Clause, &section, &page, &cat, &c.RiskScore, &status,
		&c.Completed, &recs, &issues); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Clause{}, ErrNotFound
		}
		return model.Clause{}, err
	}
	c.Section = section.String
	c.Category = cat.String
	c.ComplianceStatus = model.ComplianceStatus(status)
	if page.Valid {
		p := int(page.Int64)
		c.Page = &p
	}
	if err := decodeJSON(recs, &c.Recommendations); err != nil {
		return model.Clause{}, err
	}
	if err := decodeJSON(issues, &c.ComplianceIssues); err != nil {
		return model.Clause{}, err
	}
	return c, nil
}

// Summaries

// UpsertSummary stores the summary, replacing any previous record for the document.
func (s *Store) UpsertSummary(ctx context.Context, sum model.ContractSummary) error {
	return upsertSummary(ctx, s.db, sum)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertSummary(ctx context.Context, ex execer, sum model.ContractSummary) error {
	cols, err := encodeSummary(sum)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, `INSERT INTO summaries
		(document_id, title, parties, effective_date, term_length, payment_terms, rate_card, fees,
		 key_obligations, confidentiality_terms, termination_clauses, digest, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			title = excluded.title,
			parties = excluded.parties,
			effective_date = excluded.effective_date,
			term_length = excluded.term_length,
			payment_terms = excluded.payment_terms,
			rate_card = excluded.rate_card,
			fees = excluded.fees,
			key_obligations = excluded.key_obligations,
			confidentiality_terms = excluded.confidentiality_terms,
			termination_clauses = excluded.termination_clauses,
			digest = excluded.digest,
			updated_at = excluded.updated_at`,
		sum.DocumentID, sum.Title, cols.parties, sum.EffectiveDate, sum.TermLength, cols.paymentTerms,
		cols.rateCard, cols.fees, cols.keyObligations, sum.ConfidentialityTerms, cols.termination,
		cols.digest, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert summary: %w", err)
	}
	return nil
}

func (s *Store) GetSummary(ctx context.Context, documentID string) (model.ContractSummary, error) {
	var (
		sum                                          model.ContractSummary
		title, parties, eff, term, conf, digest      sql.NullString
		payment, rateCard, fees, obligations, termCl string
	)
	err := s.db.QueryRowContext(ctx, `SELECT document_id, title, parties, effective_date, term_length,
		payment_terms, rate_card, fees, key_obligations, confidentiality_terms, termination_clauses, digest
		FROM summaries WHERE document_id = ?`, documentID).
		Scan(&sum.DocumentID, &title, &parties, &eff, &term, &payment, &rateCard, &fees, &obligations, &conf, &termCl, &digest)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ContractSummary{}, ErrNotFound
	}
	if err != nil {
		return model.ContractSummary{}, fmt.Errorf("failed to read summary: %w", err)
	}

	sum.Title = title.String
	sum.EffectiveDate = eff.String
	sum.TermLength = term.String
	sum.ConfidentialityTerms = conf.String
	if parties.Valid && parties.String != "" && parties.String != "null" {
		sum.Parties = &model.Parties{}
		if err := json.Unmarshal([]byte(parties.String), sum.Parties); err != nil {
			return model.ContractSummary{}, err
		}
	}
	for _, f := range []struct {
		raw string
		dst any
	}{
		{payment, &sum.PaymentTerms},
		{rateCard, &sum.RateCard},
		{fees, &sum.Fees},
		{obligations, &sum.KeyObligations},
		{termCl, &sum.TerminationClauses},
	} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return model.ContractSummary{}, fmt.Errorf("corrupt summary column: %w", err)
		}
	}
	if err := decodeJSON(digest, &sum.Digest); err != nil {
		return model.ContractSummary{}, err
	}
	return sum, nil
}

type summaryColumns struct {
	parties, paymentTerms, rateCard, fees, keyObligations, termination, digest string
}

func encodeSummary(sum model.ContractSummary) (summaryColumns, error) {
	var cols summaryColumns
	var err error
	enc := func(v any, empty string) string {
		if err != nil {
			return ""
		}
		b, e := json.Marshal(v)
		if e != nil {
			err = e
			return ""
		}
		if string(b) == "null" {
			return empty
		}
		return string(b)
	}
	cols.parties = enc(sum.Parties, "")
	cols.paymentTerms = enc(sum.PaymentTerms, "[]")
	cols.rateCard = enc(sum.RateCard, "[]")
	cols.fees = enc(sum.Fees, "[]")
	cols.keyObligations = enc(sum.KeyObligations, "[]")
	cols.termination = enc(sum.TerminationClauses, "[]")
	cols.digest = enc(sum.Digest, "")
	if err != nil {
		return summaryColumns{}, fmt.Errorf("failed to encode summary: %w", err)
	}
	return cols, nil
}

func decodeJSON(ns sql.NullString, dst any) error {
	if !ns.Valid || ns.String == "" || ns.String == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(ns.String), dst); err != nil {
		return fmt.Errorf("corrupt JSON column: %w", err)
	}
	return nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
