/*
Package sqlite provides a SQLite-backed implementation of ledger.Store.

PURPOSE:
  Durable record store for the reward ledger. In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements touch the transactions table
  - Voucher usage records are insert-only
  - Corrections happen as new ADMIN_ADJUSTMENT transactions upstream

ATOMICITY:
  AppendWithAccount / AppendWithVoucher run inside one database
  transaction: the version-guarded account update, the ledger insert, and
  (for issuance) the voucher insert commit together or not at all.

OPTIMISTIC VERSIONING:
  Account and voucher updates are guarded with
  `WHERE id = ? AND version = ?`; zero rows affected on an existing row
  means a concurrent writer won, surfaced as ErrConcurrentModification.

CODE RESERVATION:
  reserved_codes has the code as PRIMARY KEY; INSERT OR IGNORE makes
  check-and-reserve a single atomic statement.

WAL MODE:
  Opened with WAL for better concurrency: readers don't block, single
  writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/rewards.db")   // or ":memory:"
  log := ledger.NewLog(store)

SEE ALSO:
  - ledger/store.go: Interface contract
  - ledger/store/memory.go: In-memory implementation for unit tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/swiftfix/reward-ledger/ledger"
)

// Store implements ledger.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex // serializes writers; SQLite allows one at a time
}

var _ ledger.Store = (*Store)(nil)

// New opens (or creates) the database at dbPath. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite has a single writer anyway, and ":memory:"
	// databases exist per connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	-- Accounts (cached balance + counters, version-guarded)
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		referral_code TEXT UNIQUE,
		acct_type TEXT NOT NULL,
		reward_type TEXT NOT NULL,
		can_exchange INTEGER NOT NULL DEFAULT 0,
		balance INTEGER NOT NULL DEFAULT 0,
		total_earned INTEGER NOT NULL DEFAULT 0,
		total_redeemed INTEGER NOT NULL DEFAULT 0,
		pending_commission TEXT NOT NULL DEFAULT '0',
		tier1_points INTEGER NOT NULL DEFAULT 0,
		tier2_points INTEGER NOT NULL DEFAULT 0,
		tier1_money TEXT NOT NULL DEFAULT '0',
		tier2_money TEXT NOT NULL DEFAULT '0',
		active INTEGER NOT NULL DEFAULT 1,
		has_welcome_bonus INTEGER NOT NULL DEFAULT 0,
		welcome_bonus_at TEXT,
		has_first_order INTEGER NOT NULL DEFAULT 0,
		first_order_at TEXT,
		has_first_subscription INTEGER NOT NULL DEFAULT 0,
		first_subscription_at TEXT,
		created_at TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 0
	);

	-- Transactions (append-only ledger)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		delta INTEGER NOT NULL,
		tx_type TEXT NOT NULL,
		description TEXT,
		related_kind TEXT,
		related_id TEXT,
		balance_after INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_account_created
		ON transactions(account_id, created_at DESC);

	-- Referral chain (at most one entry per account+tier)
	CREATE TABLE IF NOT EXISTS referral_chain (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		tier INTEGER NOT NULL CHECK (tier IN (1, 2)),
		referrer_id TEXT NOT NULL REFERENCES accounts(id),
		referrer_type TEXT NOT NULL,
		joined_at TEXT NOT NULL,
		UNIQUE (account_id, tier)
	);

	-- Vouchers (minted instances; deactivated, never deleted)
	CREATE TABLE IF NOT EXISTS vouchers (
		code TEXT PRIMARY KEY,
		template_id TEXT NOT NULL,
		owner_id TEXT NOT NULL REFERENCES accounts(id),
		kind TEXT NOT NULL,
		value TEXT NOT NULL,
		min_order TEXT NOT NULL,
		max_discount TEXT,
		category TEXT NOT NULL,
		usage_limit INTEGER NOT NULL,
		usage_count INTEGER NOT NULL DEFAULT 0,
		active INTEGER NOT NULL DEFAULT 1,
		valid_from TEXT NOT NULL,
		valid_until TEXT NOT NULL,
		created_at TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_vouchers_owner ON vouchers(owner_id, created_at DESC);

	-- Voucher usage records (insert-only)
	CREATE TABLE IF NOT EXISTS voucher_usages (
		id TEXT PRIMARY KEY,
		voucher_code TEXT NOT NULL REFERENCES vouchers(code),
		account_id TEXT NOT NULL,
		order_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		used_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_usages_voucher ON voucher_usages(voucher_code);

	-- Reserved codes (atomic uniqueness check for voucher/referral codes)
	CREATE TABLE IF NOT EXISTS reserved_codes (
		code TEXT PRIMARY KEY,
		reserved_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ACCOUNTS
// =============================================================================

const accountCols = `id, referral_code, acct_type, reward_type, can_exchange,
	balance, total_earned, total_redeemed, pending_commission,
	tier1_points, tier2_points, tier1_money, tier2_money, active,
	has_welcome_bonus, welcome_bonus_at,
	has_first_order, first_order_at,
	has_first_subscription, first_subscription_at,
	created_at, version`

func (s *Store) CreateAccount(ctx context.Context, a ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountCols+`)
		VALUES (?,?,?,?,?, ?,?,?,?, ?,?,?,?,?, ?,?, ?,?, ?,?, ?,?)`,
		string(a.ID), a.ReferralCode, string(a.Type), string(a.RewardType), boolInt(a.CanExchangePointsForMoney),
		a.Balance, a.TotalEarned, a.TotalRedeemed, a.PendingCommission.String(),
		a.Tier1PointsReward, a.Tier2PointsReward, a.Tier1MoneyReward.String(), a.Tier2MoneyReward.String(), boolInt(a.Active),
		boolInt(a.HasWelcomeBonus), fmtTime(a.WelcomeBonusAt),
		boolInt(a.HasCompletedFirstOrder), fmtTime(a.FirstOrderCompletedAt),
		boolInt(a.HasCompletedFirstSubscription), fmtTime(a.FirstSubscriptionCompletedAt),
		fmtTime(a.CreatedAt), a.Version,
	)
	return err
}

func (s *Store) Account(ctx context.Context, id ledger.AccountID) (ledger.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountCols+` FROM accounts WHERE id = ?`, string(id))
	return scanAccount(row)
}

func (s *Store) AccountByReferralCode(ctx context.Context, code string) (ledger.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountCols+` FROM accounts WHERE referral_code = ?`, code)
	return scanAccount(row)
}

func (s *Store) UpdateAccount(ctx context.Context, a ledger.Account, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateAccountExec(ctx, s.db, a, expectedVersion)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) updateAccountExec(ctx context.Context, ex execer, a ledger.Account, expectedVersion int64) error {
	res, err := ex.ExecContext(ctx, `
		UPDATE accounts SET
			reward_type = ?, can_exchange = ?,
			balance = ?, total_earned = ?, total_redeemed = ?, pending_commission = ?,
			tier1_points = ?, tier2_points = ?, tier1_money = ?, tier2_money = ?, active = ?,
			has_welcome_bonus = ?, welcome_bonus_at = ?,
			has_first_order = ?, first_order_at = ?,
			has_first_subscription = ?, first_subscription_at = ?,
			version = ?
		WHERE id = ? AND version = ?`,
		string(a.RewardType), boolInt(a.CanExchangePointsForMoney),
		a.Balance, a.TotalEarned, a.TotalRedeemed, a.PendingCommission.String(),
		a.Tier1PointsReward, a.Tier2PointsReward, a.Tier1MoneyReward.String(), a.Tier2MoneyReward.String(), boolInt(a.Active),
		boolInt(a.HasWelcomeBonus), fmtTime(a.WelcomeBonusAt),
		boolInt(a.HasCompletedFirstOrder), fmtTime(a.FirstOrderCompletedAt),
		boolInt(a.HasCompletedFirstSubscription), fmtTime(a.FirstSubscriptionCompletedAt),
		a.Version,
		string(a.ID), expectedVersion,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either the account is missing or a concurrent writer bumped the
		// version. Distinguish so callers retry only real conflicts.
		var one int
		err := ex.QueryRowContext(ctx, `SELECT 1 FROM accounts WHERE id = ?`, string(a.ID)).Scan(&one)
		if err == sql.ErrNoRows {
			return ledger.ErrAccountNotFound
		}
		if err != nil {
			return err
		}
		return ledger.ErrConcurrentModification
	}
	return nil
}

// =============================================================================
// TRANSACTIONS (append-only)
// =============================================================================

func (s *Store) AppendWithAccount(ctx context.Context, tx ledger.Transaction, a ledger.Account, expectedVersion int64) error {
	return s.appendInTx(ctx, tx, a, expectedVersion, nil)
}

func (s *Store) AppendWithVoucher(ctx context.Context, tx ledger.Transaction, a ledger.Account, expectedVersion int64, v ledger.Voucher) error {
	return s.appendInTx(ctx, tx, a, expectedVersion, &v)
}

func (s *Store) appendInTx(ctx context.Context, tx ledger.Transaction, a ledger.Account, expectedVersion int64, v *ledger.Voucher) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	if err := s.updateAccountExec(ctx, dbTx, a, expectedVersion); err != nil {
		return err
	}

	var relatedKind, relatedID any
	if tx.Related != nil {
		relatedKind, relatedID = string(tx.Related.Kind), tx.Related.ID
	}
	if _, err := dbTx.ExecContext(ctx, `
		INSERT INTO transactions (id, account_id, delta, tx_type, description,
			related_kind, related_id, balance_after, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		string(tx.ID), string(tx.AccountID), tx.Delta, string(tx.Type), tx.Description,
		relatedKind, relatedID, tx.BalanceAfter, fmtTime(tx.CreatedAt),
	); err != nil {
		return err
	}

	if v != nil {
		if err := insertVoucher(ctx, dbTx, *v); err != nil {
			return err
		}
	}
	return dbTx.Commit()
}

func (s *Store) Transactions(ctx context.Context, id ledger.AccountID, page, perPage int) ([]ledger.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, delta, tx_type, description, related_kind, related_id, balance_after, created_at
		FROM transactions WHERE account_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`,
		string(id), perPage, (page-1)*perPage)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (s *Store) AllTransactions(ctx context.Context, id ledger.AccountID) ([]ledger.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, delta, tx_type, description, related_kind, related_id, balance_after, created_at
		FROM transactions WHERE account_id = ?
		ORDER BY created_at ASC, rowid ASC`,
		string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// =============================================================================
// REFERRAL CHAIN
// =============================================================================

func (s *Store) SaveChainEntry(ctx context.Context, e ledger.ChainEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO referral_chain (id, account_id, tier, referrer_id, referrer_type, joined_at)
		VALUES (?,?,?,?,?,?)`,
		e.ID, string(e.AccountID), e.Tier, string(e.ReferrerID), string(e.ReferrerType), fmtTime(e.JoinedAt))
	return err
}

func (s *Store) ChainEntries(ctx context.Context, id ledger.AccountID) ([]ledger.ChainEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, tier, referrer_id, referrer_type, joined_at
		FROM referral_chain WHERE account_id = ? ORDER BY tier ASC`,
		string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ledger.ChainEntry
	for rows.Next() {
		var e ledger.ChainEntry
		var acctID, refID, refType, joined string
		if err := rows.Scan(&e.ID, &acctID, &e.Tier, &refID, &refType, &joined); err != nil {
			return nil, err
		}
		e.AccountID = ledger.AccountID(acctID)
		e.ReferrerID = ledger.AccountID(refID)
		e.ReferrerType = ledger.ReferrerType(refType)
		e.JoinedAt = parseTime(joined)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// VOUCHERS
// =============================================================================

func (s *Store) SaveVoucher(ctx context.Context, v ledger.Voucher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertVoucher(ctx, s.db, v)
}

func insertVoucher(ctx context.Context, ex execer, v ledger.Voucher) error {
	var maxDiscount any
	if v.MaxDiscountAmount != nil {
		maxDiscount = v.MaxDiscountAmount.String()
	}
	_, err := ex.ExecContext(ctx, `
		INSERT INTO vouchers (code, template_id, owner_id, kind, value, min_order,
			max_discount, category, usage_limit, usage_count, active,
			valid_from, valid_until, created_at, version)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		v.Code, v.TemplateID, string(v.OwnerID), string(v.Kind), v.Value.String(), v.MinOrderAmount.String(),
		maxDiscount, string(v.Category), v.UsageLimit, v.UsageCount, boolInt(v.Active),
		fmtTime(v.ValidFrom), fmtTime(v.ValidUntil), fmtTime(v.CreatedAt), v.Version)
	return err
}

func (s *Store) UpdateVoucher(ctx context.Context, v ledger.Voucher, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	res, err := dbTx.ExecContext(ctx, `
		UPDATE vouchers SET usage_count = ?, active = ?, version = ?
		WHERE code = ? AND version = ?`,
		v.UsageCount, boolInt(v.Active), v.Version, v.Code, expectedVersion)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var one int
		err := dbTx.QueryRowContext(ctx, `SELECT 1 FROM vouchers WHERE code = ?`, v.Code).Scan(&one)
		if err == sql.ErrNoRows {
			return ledger.ErrVoucherNotFound
		}
		if err != nil {
			return err
		}
		return ledger.ErrConcurrentModification
	}

	// Usage records are insert-only; OR IGNORE keeps re-sent records from
	// duplicating without ever updating an existing one.
	for _, u := range v.Usages {
		if _, err := dbTx.ExecContext(ctx, `
			INSERT OR IGNORE INTO voucher_usages (id, voucher_code, account_id, order_id, amount, used_at)
			VALUES (?,?,?,?,?,?)`,
			u.ID, v.Code, string(u.AccountID), u.OrderID, u.AmountDiscounted.String(), fmtTime(u.UsedAt)); err != nil {
			return err
		}
	}
	return dbTx.Commit()
}

func (s *Store) VoucherByCode(ctx context.Context, code string) (ledger.Voucher, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT code, template_id, owner_id, kind, value, min_order, max_discount,
			category, usage_limit, usage_count, active, valid_from, valid_until, created_at, version
		FROM vouchers WHERE code = ?`, code)

	v, err := scanVoucher(row)
	if err != nil {
		return ledger.Voucher{}, err
	}
	v.Usages, err = s.voucherUsages(ctx, code)
	return v, err
}

func (s *Store) VouchersByOwner(ctx context.Context, id ledger.AccountID) ([]ledger.Voucher, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT code FROM vouchers WHERE owner_id = ? ORDER BY created_at DESC, rowid DESC`,
		string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	vouchers := make([]ledger.Voucher, 0, len(codes))
	for _, code := range codes {
		v, err := s.VoucherByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		vouchers = append(vouchers, v)
	}
	return vouchers, nil
}

func (s *Store) voucherUsages(ctx context.Context, code string) ([]ledger.UsageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, order_id, amount, used_at
		FROM voucher_usages WHERE voucher_code = ? ORDER BY used_at ASC, rowid ASC`, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var usages []ledger.UsageRecord
	for rows.Next() {
		var u ledger.UsageRecord
		var acctID, amount, usedAt string
		if err := rows.Scan(&u.ID, &acctID, &u.OrderID, &amount, &usedAt); err != nil {
			return nil, err
		}
		u.AccountID = ledger.AccountID(acctID)
		u.AmountDiscounted = mustDecimal(amount)
		u.UsedAt = parseTime(usedAt)
		usages = append(usages, u)
	}
	return usages, rows.Err()
}

// =============================================================================
// CODE RESERVATION
// =============================================================================

func (s *Store) ReserveCode(ctx context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO reserved_codes (code, reserved_at) VALUES (?, ?)`,
		code, fmtTime(time.Now()))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) ReleaseCode(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM reserved_codes WHERE code = ?`, code)
	return err
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (ledger.Account, error) {
	var a ledger.Account
	var id, acctType, rewardType, pending, tier1Money, tier2Money, createdAt string
	var referralCode, welcomeAt, firstOrderAt, firstSubAt sql.NullString
	var canExchange, active, hasWelcome, hasOrder, hasSub int

	err := row.Scan(&id, &referralCode, &acctType, &rewardType, &canExchange,
		&a.Balance, &a.TotalEarned, &a.TotalRedeemed, &pending,
		&a.Tier1PointsReward, &a.Tier2PointsReward, &tier1Money, &tier2Money, &active,
		&hasWelcome, &welcomeAt, &hasOrder, &firstOrderAt, &hasSub, &firstSubAt,
		&createdAt, &a.Version)
	if err == sql.ErrNoRows {
		return ledger.Account{}, ledger.ErrAccountNotFound
	}
	if err != nil {
		return ledger.Account{}, err
	}

	a.ID = ledger.AccountID(id)
	a.ReferralCode = referralCode.String
	a.Type = ledger.ReferrerType(acctType)
	a.RewardType = ledger.RewardType(rewardType)
	a.CanExchangePointsForMoney = canExchange != 0
	a.PendingCommission = mustDecimal(pending)
	a.Tier1MoneyReward = mustDecimal(tier1Money)
	a.Tier2MoneyReward = mustDecimal(tier2Money)
	a.Active = active != 0
	a.HasWelcomeBonus = hasWelcome != 0
	a.WelcomeBonusAt = parseTime(welcomeAt.String)
	a.HasCompletedFirstOrder = hasOrder != 0
	a.FirstOrderCompletedAt = parseTime(firstOrderAt.String)
	a.HasCompletedFirstSubscription = hasSub != 0
	a.FirstSubscriptionCompletedAt = parseTime(firstSubAt.String)
	a.CreatedAt = parseTime(createdAt)
	return a, nil
}

func scanVoucher(row rowScanner) (ledger.Voucher, error) {
	var v ledger.Voucher
	var ownerID, kind, value, minOrder, category, validFrom, validUntil, createdAt string
	var maxDiscount sql.NullString
	var active int

	err := row.Scan(&v.Code, &v.TemplateID, &ownerID, &kind, &value, &minOrder, &maxDiscount,
		&category, &v.UsageLimit, &v.UsageCount, &active, &validFrom, &validUntil, &createdAt, &v.Version)
	if err == sql.ErrNoRows {
		return ledger.Voucher{}, ledger.ErrVoucherNotFound
	}
	if err != nil {
		return ledger.Voucher{}, err
	}

	v.OwnerID = ledger.AccountID(ownerID)
	v.Kind = ledger.DiscountKind(kind)
	v.Value = mustDecimal(value)
	v.MinOrderAmount = mustDecimal(minOrder)
	if maxDiscount.Valid {
		d := mustDecimal(maxDiscount.String)
		v.MaxDiscountAmount = &d
	}
	v.Category = ledger.VoucherCategory(category)
	v.Active = active != 0
	v.ValidFrom = parseTime(validFrom)
	v.ValidUntil = parseTime(validUntil)
	v.CreatedAt = parseTime(createdAt)
	return v, nil
}

func scanTransactions(rows *sql.Rows) ([]ledger.Transaction, error) {
	var txs []ledger.Transaction
	for rows.Next() {
		var tx ledger.Transaction
		var id, accountID, txType, createdAt string
		var description, relatedKind, relatedID sql.NullString
		if err := rows.Scan(&id, &accountID, &tx.Delta, &txType, &description,
			&relatedKind, &relatedID, &tx.BalanceAfter, &createdAt); err != nil {
			return nil, err
		}
		tx.ID = ledger.TransactionID(id)
		tx.AccountID = ledger.AccountID(accountID)
		tx.Type = ledger.TransactionType(txType)
		tx.Description = description.String
		if relatedKind.Valid {
			tx.Related = &ledger.RelatedRef{
				Kind: ledger.RelatedKind(relatedKind.String),
				ID:   relatedID.String,
			}
		}
		tx.CreatedAt = parseTime(createdAt)
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func mustDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
