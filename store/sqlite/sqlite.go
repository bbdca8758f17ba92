/*
Package sqlite provides the SQLite-backed implementation of loan.Store.

PURPOSE:
  Persists loans, their installment ledgers and their posting history. In
  production the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

KEY TABLES:
  loans              terms, strategy and allocation rules (JSON columns),
                     plus the schedule header (disbursement, down payment,
                     EMI)
  installments       one row per repayment period, replaced wholesale when
                     a posting updates the ledger
  loan_transactions  append-only posting history; reversals are new rows
                     referencing the original

APPEND-ONLY ENFORCEMENT:
  loan_transactions has no UPDATE path except the reversed flag and no
  DELETE path at all. Corrections happen via reversal rows.

WAL MODE:
  The database is opened with WAL so readers do not block the single
  writer.
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/loan-engine/allocation"
	"github.com/warp/loan-engine/engine"
	"github.com/warp/loan-engine/loan"
)

const dateLayout = "2006-01-02"

type Store struct {
	mu sync.RWMutex
	db *sql.DB
}

// New opens (and migrates) a SQLite database at the given path. Use
// ":memory:" for an in-memory database.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS loans (
	id                  TEXT PRIMARY KEY,
	strategy            TEXT NOT NULL,
	currency_code       TEXT NOT NULL,
	currency_digits     INTEGER NOT NULL,
	terms_json          TEXT NOT NULL,
	payment_rules_json  TEXT NOT NULL,
	credit_rules_json   TEXT NOT NULL,
	disbursement_date   TEXT NOT NULL,
	disbursement_amount TEXT NOT NULL,
	down_payment_date   TEXT,
	down_payment_amount TEXT,
	emi                 TEXT NOT NULL,
	created_at          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS installments (
	loan_id         TEXT NOT NULL REFERENCES loans(id),
	number          INTEGER NOT NULL,
	from_date       TEXT NOT NULL,
	due_date        TEXT NOT NULL,
	principal_due   TEXT NOT NULL,
	interest_due    TEXT NOT NULL,
	fee_due         TEXT NOT NULL,
	penalty_due     TEXT NOT NULL,
	principal_paid  TEXT NOT NULL,
	interest_paid   TEXT NOT NULL,
	fee_paid        TEXT NOT NULL,
	penalty_paid    TEXT NOT NULL,
	obligations_met INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (loan_id, number)
);

CREATE TABLE IF NOT EXISTS loan_transactions (
	id          TEXT PRIMARY KEY,
	loan_id     TEXT NOT NULL REFERENCES loans(id),
	kind        TEXT NOT NULL,
	tx_type     TEXT NOT NULL,
	tx_date     TEXT NOT NULL,
	amount      TEXT NOT NULL,
	deltas_json TEXT NOT NULL,
	reversed    INTEGER NOT NULL DEFAULT 0,
	reverses_id TEXT,
	created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_installments_loan ON installments(loan_id, number);
CREATE INDEX IF NOT EXISTS idx_transactions_loan ON loan_transactions(loan_id, created_at);
`
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// =============================================================================
// loan.Store implementation
// =============================================================================

func (s *Store) CreateLoan(ctx context.Context, l *loan.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	termsJSON, err := json.Marshal(l.Terms)
	if err != nil {
		return fmt.Errorf("marshal terms: %w", err)
	}
	paymentJSON, err := json.Marshal(l.PaymentRules)
	if err != nil {
		return fmt.Errorf("marshal payment rules: %w", err)
	}
	creditJSON, err := json.Marshal(l.CreditRules)
	if err != nil {
		return fmt.Errorf("marshal credit rules: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var downDate, downAmount sql.NullString
	if dp := l.Schedule.DownPayment; dp != nil {
		downDate = sql.NullString{String: dp.Date.Format(dateLayout), Valid: true}
		downAmount = sql.NullString{String: dp.Amount.Amount().String(), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO loans (id, strategy, currency_code, currency_digits, terms_json,
			payment_rules_json, credit_rules_json, disbursement_date, disbursement_amount,
			down_payment_date, down_payment_amount, emi, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(l.ID), l.Strategy, l.Schedule.Currency.Code, l.Schedule.Currency.Digits,
		string(termsJSON), string(paymentJSON), string(creditJSON),
		l.Schedule.Disbursement.Date.Format(dateLayout),
		l.Schedule.Disbursement.Amount.Amount().String(),
		downDate, downAmount,
		l.Schedule.EMI.Amount().String(),
		l.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert loan: %w", err)
	}

	if err := insertInstallments(ctx, tx, l.ID, l.Schedule.Installments); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Loan(ctx context.Context, id loan.ID) (*loan.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT strategy, currency_code, currency_digits, terms_json,
			payment_rules_json, credit_rules_json, disbursement_date,
			disbursement_amount, down_payment_date, down_payment_amount, emi, created_at
		FROM loans WHERE id = ?`, string(id))

	var (
		l                    = loan.Loan{ID: id}
		cur                  engine.Currency
		termsJSON            string
		paymentJSON          string
		creditJSON           string
		disbDate, createdAt  string
		disbAmount, emi      string
		downDate, downAmount sql.NullString
	)
	err := row.Scan(&l.Strategy, &cur.Code, &cur.Digits, &termsJSON, &paymentJSON,
		&creditJSON, &disbDate, &disbAmount, &downDate, &downAmount, &emi, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, loan.ErrLoanNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(termsJSON), &l.Terms); err != nil {
		return nil, fmt.Errorf("unmarshal terms: %w", err)
	}
	if err := json.Unmarshal([]byte(paymentJSON), &l.PaymentRules); err != nil {
		return nil, fmt.Errorf("unmarshal payment rules: %w", err)
	}
	if err := json.Unmarshal([]byte(creditJSON), &l.CreditRules); err != nil {
		return nil, fmt.Errorf("unmarshal credit rules: %w", err)
	}

	l.Schedule.Currency = cur
	if l.Schedule.Disbursement.Date, err = time.Parse(dateLayout, disbDate); err != nil {
		return nil, fmt.Errorf("parse disbursement date: %w", err)
	}
	m, err := engine.NewMoneyFromString(cur, disbAmount)
	if err != nil {
		return nil, err
	}
	l.Schedule.Disbursement.Amount = m
	if downDate.Valid && downAmount.Valid {
		d, err := time.Parse(dateLayout, downDate.String)
		if err != nil {
			return nil, fmt.Errorf("parse down payment date: %w", err)
		}
		a, err := engine.NewMoneyFromString(cur, downAmount.String)
		if err != nil {
			return nil, err
		}
		l.Schedule.DownPayment = &engine.DownPaymentPeriod{Date: d, Amount: a}
	}
	if l.Schedule.EMI, err = engine.NewMoneyFromString(cur, emi); err != nil {
		return nil, err
	}
	if l.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parse loan created_at: %w", err)
	}

	if l.Schedule.Installments, err = s.loadInstallments(ctx, id, cur); err != nil {
		return nil, err
	}
	if l.Transactions, err = s.loadTransactions(ctx, id, cur); err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *Store) ListLoans(ctx context.Context) ([]*loan.Loan, error) {
	s.mu.RLock()
	ids := []loan.ID{}
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM loans ORDER BY created_at DESC`)
	if err != nil {
		s.mu.RUnlock()
		return nil, err
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			s.mu.RUnlock()
			return nil, err
		}
		ids = append(ids, loan.ID(id))
	}
	rows.Close()
	s.mu.RUnlock()

	out := make([]*loan.Loan, 0, len(ids))
	for _, id := range ids {
		l, err := s.Loan(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *Store) UpdateInstallments(ctx context.Context, id loan.ID, installments []engine.Installment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM installments WHERE loan_id = ?`, string(id)); err != nil {
		return err
	}
	if err := insertInstallments(ctx, tx, id, installments); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) AppendTransaction(ctx context.Context, id loan.ID, t loan.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deltasJSON, err := json.Marshal(t.Deltas)
	if err != nil {
		return fmt.Errorf("marshal deltas: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO loan_transactions (id, loan_id, kind, tx_type, tx_date, amount,
			deltas_json, reversed, reverses_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, string(id), string(t.Kind), string(t.Type), t.Date.Format(dateLayout),
		t.Amount.Amount().String(), string(deltasJSON), boolToInt(t.Reversed),
		t.ReversesID, t.CreatedAt.Format(time.RFC3339),
	)
	return err
}

func (s *Store) MarkReversed(ctx context.Context, id loan.ID, txID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE loan_transactions SET reversed = 1 WHERE id = ? AND loan_id = ?`,
		txID, string(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return loan.ErrTransactionNotFound
	}
	return nil
}

// =============================================================================
// helpers
// =============================================================================

func insertInstallments(ctx context.Context, tx *sql.Tx, id loan.ID, installments []engine.Installment) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO installments (loan_id, number, from_date, due_date,
			principal_due, interest_due, fee_due, penalty_due,
			principal_paid, interest_paid, fee_paid, penalty_paid, obligations_met)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, inst := range installments {
		_, err := stmt.ExecContext(ctx,
			string(id), inst.Number,
			inst.From.Format(dateLayout), inst.DueOn.Format(dateLayout),
			inst.PrincipalDue.Amount().String(), inst.InterestDue.Amount().String(),
			inst.FeeDue.Amount().String(), inst.PenaltyDue.Amount().String(),
			inst.PrincipalPaid.Amount().String(), inst.InterestPaid.Amount().String(),
			inst.FeePaid.Amount().String(), inst.PenaltyPaid.Amount().String(),
			boolToInt(inst.ObligationsMet),
		)
		if err != nil {
			return fmt.Errorf("insert installment %d: %w", inst.Number, err)
		}
	}
	return nil
}

func (s *Store) loadInstallments(ctx context.Context, id loan.ID, cur engine.Currency) ([]engine.Installment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT number, from_date, due_date,
			principal_due, interest_due, fee_due, penalty_due,
			principal_paid, interest_paid, fee_paid, penalty_paid, obligations_met
		FROM installments WHERE loan_id = ? ORDER BY number`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.Installment
	for rows.Next() {
		var (
			inst           engine.Installment
			from, due      string
			amounts        [8]string
			obligationsMet int
		)
		if err := rows.Scan(&inst.Number, &from, &due,
			&amounts[0], &amounts[1], &amounts[2], &amounts[3],
			&amounts[4], &amounts[5], &amounts[6], &amounts[7],
			&obligationsMet); err != nil {
			return nil, err
		}
		if inst.From, err = time.Parse(dateLayout, from); err != nil {
			return nil, fmt.Errorf("parse installment %d from date: %w", inst.Number, err)
		}
		if inst.DueOn, err = time.Parse(dateLayout, due); err != nil {
			return nil, fmt.Errorf("parse installment %d due date: %w", inst.Number, err)
		}
		moneys := make([]engine.Money, 8)
		for i, a := range amounts {
			m, err := engine.NewMoneyFromString(cur, a)
			if err != nil {
				return nil, err
			}
			moneys[i] = m
		}
		inst.PrincipalDue, inst.InterestDue, inst.FeeDue, inst.PenaltyDue = moneys[0], moneys[1], moneys[2], moneys[3]
		inst.PrincipalPaid, inst.InterestPaid, inst.FeePaid, inst.PenaltyPaid = moneys[4], moneys[5], moneys[6], moneys[7]
		inst.ObligationsMet = obligationsMet != 0
		out = append(out, inst)
	}
	return out, rows.Err()
}

func (s *Store) loadTransactions(ctx context.Context, id loan.ID, cur engine.Currency) ([]loan.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, tx_type, tx_date, amount, deltas_json, reversed, reverses_id, created_at
		FROM loan_transactions WHERE loan_id = ? ORDER BY created_at`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []loan.Transaction
	for rows.Next() {
		var (
			t            loan.Transaction
			kind, txType string
			txDate       string
			amount       string
			deltasJSON   string
			reversed     int
			reversesID   sql.NullString
			createdAt    string
		)
		if err := rows.Scan(&t.ID, &kind, &txType, &txDate, &amount,
			&deltasJSON, &reversed, &reversesID, &createdAt); err != nil {
			return nil, err
		}
		t.Kind = loan.TransactionKind(kind)
		t.Type = allocation.TransactionType(txType)
		if t.Date, err = time.Parse(dateLayout, txDate); err != nil {
			return nil, fmt.Errorf("parse transaction %s date: %w", t.ID, err)
		}
		if t.Amount, err = engine.NewMoneyFromString(cur, amount); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(deltasJSON), &t.Deltas); err != nil {
			return nil, fmt.Errorf("unmarshal deltas: %w", err)
		}
		t.Reversed = reversed != 0
		t.ReversesID = reversesID.String
		if t.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parse transaction %s created_at: %w", t.ID, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
