/*
store.go - Persistence contract for the reward ledger

PURPOSE:
  Defines the interface between the ledger engines and the durable record
  store. The core consumes this generic contract, not a specific database
  product; implementations exist for SQLite and in-memory.

APPEND-ONLY CONTRACT:
  Transactions are append-only:
  - AppendWithAccount(): the ONLY transaction write, paired with the
    owning account's update in one atomic step
  - NO update or delete methods exist for transactions

OPTIMISTIC VERSIONING:
  Accounts and vouchers carry a Version counter. Every write method that
  mutates one takes the expected version and fails with
  ErrConcurrentModification if the stored version differs. Engines retry
  by re-reading and re-checking; a balance check that no longer holds
  after re-read surfaces as the business error, not the conflict.

CODE RESERVATION:
  ReserveCode is an atomic check-and-reserve against the active code
  index. Two concurrent issuances generating the same candidate code see
  exactly one true result. ReleaseCode returns a reservation that never
  became a voucher or account code.

IMPLEMENTATIONS:
  - store/sqlite: production shape (WAL, db transactions, unique indexes)
  - ledger/store: in-memory for tests and dev

SEE ALSO:
  - log.go: Higher-level posting API over this contract
*/
package ledger

import "context"

// Store is the durable record store consumed by the ledger engines.
type Store interface {
	// --- Accounts ---

	// CreateAccount persists a new account. The referral code must be
	// unique; reserve it first via ReserveCode.
	CreateAccount(ctx context.Context, acct Account) error

	// Account returns the account by id, or ErrAccountNotFound.
	Account(ctx context.Context, id AccountID) (Account, error)

	// AccountByReferralCode resolves a referral code to its owner,
	// or ErrAccountNotFound.
	AccountByReferralCode(ctx context.Context, code string) (Account, error)

	// UpdateAccount persists acct if the stored version equals
	// expectedVersion, else ErrConcurrentModification.
	UpdateAccount(ctx context.Context, acct Account, expectedVersion int64) error

	// --- Transactions (append-only) ---

	// AppendWithAccount appends tx and persists the updated owning account
	// in one atomic step, guarded by expectedVersion. This is the only way
	// a transaction enters the store.
	AppendWithAccount(ctx context.Context, tx Transaction, acct Account, expectedVersion int64) error

	// AppendWithVoucher is AppendWithAccount plus the insert of a freshly
	// minted voucher, all-or-nothing. Used by the issuance engine so the
	// points debit and the voucher cannot diverge.
	AppendWithVoucher(ctx context.Context, tx Transaction, acct Account, expectedVersion int64, v Voucher) error

	// Transactions returns a page of the account's history, newest first.
	// Page is 1-based.
	Transactions(ctx context.Context, id AccountID, page, perPage int) ([]Transaction, error)

	// AllTransactions returns the full history, oldest first. Used by
	// invariant checks and balance audits.
	AllTransactions(ctx context.Context, id AccountID) ([]Transaction, error)

	// --- Referral chain ---

	// SaveChainEntry persists a chain entry. At most one entry per
	// (account, tier) pair.
	SaveChainEntry(ctx context.Context, e ChainEntry) error

	// ChainEntries returns the entries for a referred account, tier order.
	ChainEntries(ctx context.Context, id AccountID) ([]ChainEntry, error)

	// --- Vouchers ---

	// SaveVoucher inserts a minted voucher.
	SaveVoucher(ctx context.Context, v Voucher) error

	// UpdateVoucher persists v if the stored version equals
	// expectedVersion, else ErrConcurrentModification. Usage records are
	// append-only; implementations only ever insert new ones.
	UpdateVoucher(ctx context.Context, v Voucher, expectedVersion int64) error

	// VoucherByCode returns the voucher with its usage records,
	// or ErrVoucherNotFound.
	VoucherByCode(ctx context.Context, code string) (Voucher, error)

	// VouchersByOwner returns all vouchers minted for an account,
	// newest first.
	VouchersByOwner(ctx context.Context, id AccountID) ([]Voucher, error)

	// --- Code reservation ---

	// ReserveCode atomically reserves a code if unseen. Returns false if
	// the code is already reserved or in use.
	ReserveCode(ctx context.Context, code string) (bool, error)

	// ReleaseCode frees a reservation that never became a real code.
	ReleaseCode(ctx context.Context, code string) error
}
