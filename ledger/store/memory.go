// Package store provides an in-memory ledger.Store implementation
// (for testing/dev).
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/swiftfix/reward-ledger/ledger"
)

// =============================================================================
// MEMORY STORE
// =============================================================================
// One mutex guards everything, so the multi-write operations
// (AppendWithAccount, AppendWithVoucher) are trivially atomic. Version
// checks are enforced exactly like the sqlite store so concurrency tests
// against this store exercise the same conflict paths.

type Memory struct {
	mu           sync.RWMutex
	accounts     map[ledger.AccountID]ledger.Account
	byCode       map[string]ledger.AccountID
	transactions map[ledger.AccountID][]ledger.Transaction
	chains       map[ledger.AccountID][]ledger.ChainEntry
	vouchers     map[string]ledger.Voucher
	byOwner      map[ledger.AccountID][]string
	reserved     map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		accounts:     make(map[ledger.AccountID]ledger.Account),
		byCode:       make(map[string]ledger.AccountID),
		transactions: make(map[ledger.AccountID][]ledger.Transaction),
		chains:       make(map[ledger.AccountID][]ledger.ChainEntry),
		vouchers:     make(map[string]ledger.Voucher),
		byOwner:      make(map[ledger.AccountID][]string),
		reserved:     make(map[string]bool),
	}
}

var _ ledger.Store = (*Memory)(nil)

// --- Accounts ---

func (m *Memory) CreateAccount(_ context.Context, acct ledger.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.accounts[acct.ID] = acct
	if acct.ReferralCode != "" {
		m.byCode[acct.ReferralCode] = acct.ID
	}
	return nil
}

func (m *Memory) Account(_ context.Context, id ledger.AccountID) (ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accountLocked(id)
}

func (m *Memory) accountLocked(id ledger.AccountID) (ledger.Account, error) {
	acct, ok := m.accounts[id]
	if !ok {
		return ledger.Account{}, ledger.ErrAccountNotFound
	}
	return acct, nil
}

func (m *Memory) AccountByReferralCode(_ context.Context, code string) (ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byCode[code]
	if !ok {
		return ledger.Account{}, ledger.ErrAccountNotFound
	}
	return m.accountLocked(id)
}

func (m *Memory) UpdateAccount(_ context.Context, acct ledger.Account, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateAccountLocked(acct, expectedVersion)
}

func (m *Memory) updateAccountLocked(acct ledger.Account, expectedVersion int64) error {
	current, ok := m.accounts[acct.ID]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	if current.Version != expectedVersion {
		return ledger.ErrConcurrentModification
	}
	m.accounts[acct.ID] = acct
	return nil
}

// --- Transactions ---

func (m *Memory) AppendWithAccount(_ context.Context, tx ledger.Transaction, acct ledger.Account, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.updateAccountLocked(acct, expectedVersion); err != nil {
		return err
	}
	m.transactions[tx.AccountID] = append(m.transactions[tx.AccountID], tx)
	return nil
}

func (m *Memory) AppendWithVoucher(_ context.Context, tx ledger.Transaction, acct ledger.Account, expectedVersion int64, v ledger.Voucher) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.updateAccountLocked(acct, expectedVersion); err != nil {
		return err
	}
	m.transactions[tx.AccountID] = append(m.transactions[tx.AccountID], tx)
	m.vouchers[v.Code] = cloneVoucher(v)
	m.byOwner[v.OwnerID] = append(m.byOwner[v.OwnerID], v.Code)
	return nil
}

func (m *Memory) Transactions(_ context.Context, id ledger.AccountID, page, perPage int) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.transactions[id]
	// Newest first
	result := make([]ledger.Transaction, len(all))
	copy(result, all)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	start := (page - 1) * perPage
	if start >= len(result) {
		return nil, nil
	}
	end := start + perPage
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], nil
}

func (m *Memory) AllTransactions(_ context.Context, id ledger.AccountID) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.Transaction, len(m.transactions[id]))
	copy(result, m.transactions[id])
	return result, nil
}

// --- Referral chain ---

func (m *Memory) SaveChainEntry(_ context.Context, e ledger.ChainEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.chains[e.AccountID] = append(m.chains[e.AccountID], e)
	sort.Slice(m.chains[e.AccountID], func(i, j int) bool {
		return m.chains[e.AccountID][i].Tier < m.chains[e.AccountID][j].Tier
	})
	return nil
}

func (m *Memory) ChainEntries(_ context.Context, id ledger.AccountID) ([]ledger.ChainEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.ChainEntry, len(m.chains[id]))
	copy(result, m.chains[id])
	return result, nil
}

// --- Vouchers ---

func (m *Memory) SaveVoucher(_ context.Context, v ledger.Voucher) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.vouchers[v.Code] = cloneVoucher(v)
	m.byOwner[v.OwnerID] = append(m.byOwner[v.OwnerID], v.Code)
	return nil
}

func (m *Memory) UpdateVoucher(_ context.Context, v ledger.Voucher, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.vouchers[v.Code]
	if !ok {
		return ledger.ErrVoucherNotFound
	}
	if current.Version != expectedVersion {
		return ledger.ErrConcurrentModification
	}
	m.vouchers[v.Code] = cloneVoucher(v)
	return nil
}

func (m *Memory) VoucherByCode(_ context.Context, code string) (ledger.Voucher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.vouchers[code]
	if !ok {
		return ledger.Voucher{}, ledger.ErrVoucherNotFound
	}
	return cloneVoucher(v), nil
}

func (m *Memory) VouchersByOwner(_ context.Context, id ledger.AccountID) ([]ledger.Voucher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	codes := m.byOwner[id]
	result := make([]ledger.Voucher, 0, len(codes))
	for i := len(codes) - 1; i >= 0; i-- {
		result = append(result, cloneVoucher(m.vouchers[codes[i]]))
	}
	return result, nil
}

// --- Code reservation ---

func (m *Memory) ReserveCode(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.reserved[code] {
		return false, nil
	}
	m.reserved[code] = true
	return true, nil
}

func (m *Memory) ReleaseCode(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.reserved, code)
	return nil
}

// cloneVoucher copies the voucher and its usage slice so callers can't
// mutate stored state behind the lock.
func cloneVoucher(v ledger.Voucher) ledger.Voucher {
	out := v
	out.Usages = make([]ledger.UsageRecord, len(v.Usages))
	copy(out.Usages, v.Usages)
	return out
}
