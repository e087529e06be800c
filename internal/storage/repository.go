package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"contas/internal/core"
	"contas/internal/ledger"
)

// ErrAccountNotFound is returned when an account id is unknown.
var ErrAccountNotFound = ledger.ErrAccountNotFound

// SQLiteRepository is the persistence collaborator: it owns account and
// transaction records and is the executor for ALLOCATION writes. The
// core never touches it directly, only through the ledger ports.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const accountColumns = `id, name, type, currency,
	balance, total_balance, available_balance, allocated_balance,
	credit_limit, due_day, closing_day, linked_account_id,
	is_personal, account_owner_id`

// GetAccount implements ledger.AccountReader.
func (r *SQLiteRepository) GetAccount(ctx context.Context, id string) (*core.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)

	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}
	return a, nil
}

// ListAccounts implements ledger.AccountReader.
func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// ListTransactions implements ledger.TransactionReader. An empty
// account id lists the full transaction set.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, accountID string) ([]core.Transaction, error) {
	query := `SELECT id, type, amount, account_id, related_entity_id,
		from_account_id, to_account_id, date, paid, category_name, description, notes
		FROM transactions`
	args := []any{}
	if accountID != "" {
		query += ` WHERE account_id = ?`
		args = append(args, accountID)
	}
	query += ` ORDER BY date, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			t          core.Transaction
			amount     string
			related    sql.NullString
			fromAcc    sql.NullString
			toAcc      sql.NullString
			date       string
			paid       int64
		)
		if err := rows.Scan(&t.ID, &t.Type, &amount, &t.AccountID, &related,
			&fromAcc, &toAcc, &date, &paid, &t.CategoryName, &t.Description, &t.Notes); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", amount, err)
		}
		t.Date, err = time.Parse(time.RFC3339, date)
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", date, err)
		}
		t.RelatedEntityID = related.String
		t.FromAccountID = fromAcc.String
		t.ToAccountID = toAcc.String
		t.Paid = paid != 0
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateAllocation implements ledger.AllocationExecutor. The signed
// ALLOCATION row and the bank account's aggregate move in one database
// transaction, and the write is rejected if the snapshot the caller
// validated against has gone stale (another household member moved the
// balance first).
func (r *SQLiteRepository) CreateAllocation(ctx context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, t.AccountID)
	bank, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrAccountNotFound, t.AccountID)
	}
	if err != nil {
		return "", fmt.Errorf("load bank account: %w", err)
	}

	balance := core.ComputeBalance(bank)
	available := balance.Available.Sub(t.Amount)
	allocated := balance.Allocated.Add(t.Amount)
	if available.IsNegative() || allocated.IsNegative() {
		return "", core.ErrInsufficientBalance
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (id, type, amount, account_id, related_entity_id, date, paid, description, notes)
		 VALUES (?, 'ALLOCATION', ?, ?, ?, ?, 1, ?, ?)`,
		t.ID, t.Amount.String(), t.AccountID, t.RelatedEntityID,
		t.Date.UTC().Format(time.RFC3339), t.Description, t.Notes); err != nil {
		return "", fmt.Errorf("insert allocation: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts
		 SET available_balance = ?, allocated_balance = ?, total_balance = ?,
		     updated_at = datetime('now')
		 WHERE id = ?`,
		available.String(), allocated.String(), available.Add(allocated).String(),
		t.AccountID); err != nil {
		return "", fmt.Errorf("update aggregates: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Allocation persisted",
		"transaction_id", t.ID,
		"account_id", t.AccountID,
		"card_id", t.RelatedEntityID,
		"amount", t.Amount.String())

	return t.ID, nil
}

// CreateTransaction inserts a non-allocation transaction row, used when
// loading a household's history.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, type, amount, account_id, related_entity_id,
			from_account_id, to_account_id, date, paid, category_name, description, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, string(t.Type), t.Amount.String(), t.AccountID, nullable(t.RelatedEntityID),
		nullable(t.FromAccountID), nullable(t.ToAccountID),
		t.Date.UTC().Format(time.RFC3339), boolToInt(t.Paid),
		t.CategoryName, t.Description, t.Notes)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// UpsertAccount inserts or replaces an account record.
func (r *SQLiteRepository) UpsertAccount(ctx context.Context, a core.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			currency = excluded.currency,
			balance = excluded.balance,
			total_balance = excluded.total_balance,
			available_balance = excluded.available_balance,
			allocated_balance = excluded.allocated_balance,
			credit_limit = excluded.credit_limit,
			due_day = excluded.due_day,
			closing_day = excluded.closing_day,
			linked_account_id = excluded.linked_account_id,
			is_personal = excluded.is_personal,
			account_owner_id = excluded.account_owner_id,
			updated_at = datetime('now')`,
		a.ID, a.Name, string(a.Type), a.Currency,
		decString(a.Balance), decString(a.TotalBalance),
		decString(a.AvailableBalance), decString(a.AllocatedBalance),
		decString(a.CreditLimit), nullableInt(a.DueDay), nullableInt(a.ClosingDay),
		nullable(a.LinkedAccountID), boolToInt(a.IsPersonal), nullable(a.AccountOwnerID))
	if err != nil {
		return fmt.Errorf("upsert account %s: %w", a.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*core.Account, error) {
	var (
		a          core.Account
		balance    sql.NullString
		total      sql.NullString
		available  sql.NullString
		allocated  sql.NullString
		limit      sql.NullString
		dueDay     sql.NullInt64
		closingDay sql.NullInt64
		linked     sql.NullString
		personal   int64
		owner      sql.NullString
	)
	if err := row.Scan(&a.ID, &a.Name, &a.Type, &a.Currency,
		&balance, &total, &available, &allocated,
		&limit, &dueDay, &closingDay, &linked,
		&personal, &owner); err != nil {
		return nil, err
	}

	var err error
	if a.Balance, err = decPtr(balance); err != nil {
		return nil, err
	}
	if a.TotalBalance, err = decPtr(total); err != nil {
		return nil, err
	}
	if a.AvailableBalance, err = decPtr(available); err != nil {
		return nil, err
	}
	if a.AllocatedBalance, err = decPtr(allocated); err != nil {
		return nil, err
	}
	if a.CreditLimit, err = decPtr(limit); err != nil {
		return nil, err
	}
	a.DueDay = int(dueDay.Int64)
	a.ClosingDay = int(closingDay.Int64)
	a.LinkedAccountID = linked.String
	a.IsPersonal = personal != 0
	a.AccountOwnerID = owner.String
	return &a, nil
}

func decPtr(s sql.NullString) (*decimal.Decimal, error) {
	if !s.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return nil, fmt.Errorf("parse decimal %q: %w", s.String, err)
	}
	return &d, nil
}

func decString(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(i int) any {
	if i == 0 {
		return nil
	}
	return i
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
