package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	defaultUnitTimeout = 5 * time.Second

	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
	sqlStateUniqueViolation      = "23505"

	reversalsUniqueConstraint = "reversals_transaction_id_key"
)

// PostgresConfig tunes unit execution.
type PostgresConfig struct {
	// UnitTimeout bounds a whole unit once it has begun. Caller cancellation
	// is ignored after that point.
	UnitTimeout time.Duration
	// LockTimeout bounds each row lock wait; expiry surfaces as ErrConflict.
	LockTimeout time.Duration
}

// PostgresStore persists wallets, transactions and reversals in PostgreSQL.
type PostgresStore struct {
	db  *pgxpool.Pool
	cfg PostgresConfig
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(db *pgxpool.Pool, cfg PostgresConfig) *PostgresStore {
	if cfg.UnitTimeout <= 0 {
		cfg.UnitTimeout = defaultUnitTimeout
	}
	return &PostgresStore{db: db, cfg: cfg}
}

// InUnit runs fn inside a read-committed transaction. Decision reads are
// protected by the row locks fn takes through the unit.
func (s *PostgresStore) InUnit(ctx context.Context, fn func(ctx context.Context, u Unit) error) error {
	if err := ctx.Err(); err != nil {
		return asLedgerError(err)
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.UnitTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if s.cfg.LockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.cfg.LockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return classify(err)
		}
	}

	if err := fn(ctx, &pgUnit{tx: tx}); err != nil {
		return classify(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return classify(err)
	}
	return nil
}

// CreateWallet provisions a zero balance wallet for ownerID.
func (s *PostgresStore) CreateWallet(ctx context.Context, ownerID string) (Wallet, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return Wallet{}, newError(KindInvalidInput, "owner id must be a uuid", err)
	}
	id := uuid.New()
	row := s.db.QueryRow(ctx, `INSERT INTO wallets (id, owner_id, balance, flagged, version)
        VALUES ($1, $2, 0, FALSE, 1)
        RETURNING `+walletColumns, id, owner)
	w, err := scanWallet(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == sqlStateUniqueViolation {
			return Wallet{}, newError(KindConflict, fmt.Sprintf("owner %s already has a wallet", ownerID), err)
		}
		return Wallet{}, classify(err)
	}
	return w, nil
}

// Wallet fetches a wallet by id.
func (s *PostgresStore) Wallet(ctx context.Context, id string) (Wallet, error) {
	walletID, err := uuid.Parse(id)
	if err != nil {
		return Wallet{}, notFound("wallet", id)
	}
	w, err := scanWallet(s.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, walletID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Wallet{}, notFound("wallet", id)
	}
	if err != nil {
		return Wallet{}, classify(err)
	}
	return w, nil
}

// WalletByOwner fetches the wallet belonging to ownerID.
func (s *PostgresStore) WalletByOwner(ctx context.Context, ownerID string) (Wallet, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return Wallet{}, notFound("wallet for owner", ownerID)
	}
	w, err := scanWallet(s.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE owner_id = $1`, owner))
	if errors.Is(err, pgx.ErrNoRows) {
		return Wallet{}, notFound("wallet for owner", ownerID)
	}
	if err != nil {
		return Wallet{}, classify(err)
	}
	return w, nil
}

// Wallets lists every wallet ordered by id.
func (s *PostgresStore) Wallets(ctx context.Context) ([]Wallet, error) {
	rows, err := s.db.Query(ctx, `SELECT `+walletColumns+` FROM wallets ORDER BY id`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	var out []Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, classify(err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// SetConsistency writes the reconciliation flag.
func (s *PostgresStore) SetConsistency(ctx context.Context, walletID string, c Consistency) error {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return notFound("wallet", walletID)
	}
	cmd, err := s.db.Exec(ctx, `UPDATE wallets SET flagged = $1, updated_at = now() WHERE id = $2`, c == Flagged, id)
	if err != nil {
		return classify(err)
	}
	if cmd.RowsAffected() == 0 {
		return notFound("wallet", walletID)
	}
	return nil
}

// Transaction fetches a single ledger row.
func (s *PostgresStore) Transaction(ctx context.Context, id string) (Transaction, error) {
	txID, err := uuid.Parse(id)
	if err != nil {
		return Transaction{}, notFound("transaction", id)
	}
	tx, err := scanTransaction(s.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, txID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, notFound("transaction", id)
	}
	if err != nil {
		return Transaction{}, classify(err)
	}
	return tx, nil
}

// Transactions lists every row touching walletID, newest first.
func (s *PostgresStore) Transactions(ctx context.Context, walletID string) ([]Transaction, error) {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return nil, notFound("wallet", walletID)
	}
	rows, err := s.db.Query(ctx, `SELECT `+transactionColumns+` FROM transactions
        WHERE from_wallet = $1 OR to_wallet = $1
        ORDER BY created_at DESC, seq DESC`, id)
	if err != nil {
		return nil, classify(err)
	}
	return collectTransactions(rows)
}

// ReversalFor fetches the reversal record of a transaction.
func (s *PostgresStore) ReversalFor(ctx context.Context, transactionID string) (Reversal, error) {
	txID, err := uuid.Parse(transactionID)
	if err != nil {
		return Reversal{}, notFound("reversal for transaction", transactionID)
	}
	row := s.db.QueryRow(ctx, `SELECT id, transaction_id, requested_by, reason, reversed_at
        FROM reversals WHERE transaction_id = $1`, txID)
	var (
		id, tid     uuid.UUID
		requestedBy uuid.NullUUID
		r           Reversal
	)
	if err := row.Scan(&id, &tid, &requestedBy, &r.Reason, &r.ReversedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Reversal{}, notFound("reversal for transaction", transactionID)
		}
		return Reversal{}, classify(err)
	}
	r.ID = id.String()
	r.TransactionID = tid.String()
	if requestedBy.Valid {
		r.RequestedBy = requestedBy.UUID.String()
	}
	r.ReversedAt = r.ReversedAt.UTC()
	return r, nil
}

type pgUnit struct {
	tx pgx.Tx
}

func (u *pgUnit) LockWallets(ctx context.Context, ids ...string) (map[string]Wallet, error) {
	parsed := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		walletID, err := uuid.Parse(id)
		if err != nil {
			return nil, notFound("wallet", id)
		}
		parsed = append(parsed, walletID)
	}
	rows, err := u.tx.Query(ctx, `SELECT `+walletColumns+` FROM wallets
        WHERE id = ANY($1) ORDER BY id FOR UPDATE`, parsed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]Wallet, len(ids))
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		out[w.ID] = w
	}
	return out, rows.Err()
}

func (u *pgUnit) UpdateBalance(ctx context.Context, w Wallet, balance decimal.Decimal) (Wallet, error) {
	id, err := uuid.Parse(w.ID)
	if err != nil {
		return Wallet{}, notFound("wallet", w.ID)
	}
	row := u.tx.QueryRow(ctx, `UPDATE wallets SET balance = $1, version = version + 1, updated_at = now()
        WHERE id = $2 AND version = $3
        RETURNING `+walletColumns, balance, id, w.Version)
	updated, err := scanWallet(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Wallet{}, ErrConflict
	}
	return updated, err
}

func (u *pgUnit) InsertTransaction(ctx context.Context, tx Transaction) error {
	id, err := uuid.Parse(tx.ID)
	if err != nil {
		return newError(KindInvalidInput, "transaction id must be a uuid", err)
	}
	to, err := uuid.Parse(tx.ToWallet)
	if err != nil {
		return notFound("wallet", tx.ToWallet)
	}
	from, err := nullableID(tx.FromWallet)
	if err != nil {
		return notFound("wallet", tx.FromWallet)
	}
	reversalOf, err := nullableID(tx.ReversalOf)
	if err != nil {
		return notFound("transaction", tx.ReversalOf)
	}
	_, err = u.tx.Exec(ctx, `INSERT INTO transactions
        (id, from_wallet, to_wallet, amount, kind, status, description, reversal_of, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, from, to, tx.Amount, string(tx.Kind), string(tx.Status), tx.Description, reversalOf, tx.CreatedAt.UTC())
	return err
}

func (u *pgUnit) LockTransaction(ctx context.Context, id string) (Transaction, error) {
	txID, err := uuid.Parse(id)
	if err != nil {
		return Transaction{}, notFound("transaction", id)
	}
	tx, err := scanTransaction(u.tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions
        WHERE id = $1 FOR UPDATE`, txID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, notFound("transaction", id)
	}
	return tx, err
}

func (u *pgUnit) UpdateTransactionStatus(ctx context.Context, id string, from, to Status) error {
	txID, err := uuid.Parse(id)
	if err != nil {
		return notFound("transaction", id)
	}
	cmd, err := u.tx.Exec(ctx, `UPDATE transactions SET status = $1 WHERE id = $2 AND status = $3`,
		string(to), txID, string(from))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (u *pgUnit) HasReversal(ctx context.Context, transactionID string) (bool, error) {
	txID, err := uuid.Parse(transactionID)
	if err != nil {
		return false, notFound("transaction", transactionID)
	}
	var exists bool
	err = u.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM reversals WHERE transaction_id = $1)`, txID).Scan(&exists)
	return exists, err
}

func (u *pgUnit) InsertReversal(ctx context.Context, r Reversal) error {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return newError(KindInvalidInput, "reversal id must be a uuid", err)
	}
	txID, err := uuid.Parse(r.TransactionID)
	if err != nil {
		return notFound("transaction", r.TransactionID)
	}
	requestedBy, err := nullableID(r.RequestedBy)
	if err != nil {
		return newError(KindInvalidInput, "requested_by must be a uuid", err)
	}
	_, err = u.tx.Exec(ctx, `INSERT INTO reversals (id, transaction_id, requested_by, reason, reversed_at)
        VALUES ($1, $2, $3, $4, $5)`, id, txID, requestedBy, r.Reason, r.ReversedAt.UTC())
	return err
}

func (u *pgUnit) TransactionsFor(ctx context.Context, walletID string) ([]Transaction, error) {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return nil, notFound("wallet", walletID)
	}
	rows, err := u.tx.Query(ctx, `SELECT `+transactionColumns+` FROM transactions
        WHERE from_wallet = $1 OR to_wallet = $1
        ORDER BY created_at, seq`, id)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

const walletColumns = `id, owner_id, balance, flagged, version, created_at, updated_at`

const transactionColumns = `id, from_wallet, to_wallet, amount, kind, status, description, reversal_of, created_at`

func scanWallet(row pgx.Row) (Wallet, error) {
	var (
		id, owner uuid.UUID
		flagged   bool
		w         Wallet
	)
	if err := row.Scan(&id, &owner, &w.Balance, &flagged, &w.Version, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return Wallet{}, err
	}
	w.ID = id.String()
	w.OwnerID = owner.String()
	w.Consistency = Healthy
	if flagged {
		w.Consistency = Flagged
	}
	w.CreatedAt = w.CreatedAt.UTC()
	w.UpdatedAt = w.UpdatedAt.UTC()
	return w, nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		id, to           uuid.UUID
		from, reversalOf uuid.NullUUID
		kind, status     string
		tx               Transaction
	)
	if err := row.Scan(&id, &from, &to, &tx.Amount, &kind, &status, &tx.Description, &reversalOf, &tx.CreatedAt); err != nil {
		return Transaction{}, err
	}
	tx.ID = id.String()
	tx.ToWallet = to.String()
	if from.Valid {
		tx.FromWallet = from.UUID.String()
	}
	if reversalOf.Valid {
		tx.ReversalOf = reversalOf.UUID.String()
	}
	tx.Kind = TransactionKind(kind)
	tx.Status = Status(status)
	tx.CreatedAt = tx.CreatedAt.UTC()
	return tx, nil
}

func collectTransactions(rows pgx.Rows) ([]Transaction, error) {
	defer rows.Close()
	out := make([]Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, classify(err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

func nullableID(id string) (uuid.NullUUID, error) {
	if id == "" {
		return uuid.NullUUID{}, nil
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.NullUUID{}, err
	}
	return uuid.NullUUID{UUID: parsed, Valid: true}, nil
}

// classify maps driver errors onto the ledger taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ledgerErr *Error
	if errors.As(err, &ledgerErr) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateLockNotAvailable:
			return newError(KindConflict, ErrConflict.Message, err)
		case sqlStateUniqueViolation:
			if pgErr.ConstraintName == reversalsUniqueConstraint {
				return newError(KindAlreadyReversed, ErrAlreadyReversed.Message, err)
			}
			return newError(KindConflict, ErrConflict.Message, err)
		}
	}
	return newError(KindPersistenceFailure, ErrPersistenceFailure.Message, err)
}
