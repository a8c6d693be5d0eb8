/*
Package voucher mints vouchers from points and redeems them against orders.

PURPOSE:
  A voucher starts life as a catalog template (discount kind, value, cost
  in points). The issuance engine debits the points and mints a uniquely
  coded instance; the redemption engine validates it against an order,
  computes the discount, and records usage. Points are only touched at
  issuance - redemption is purely a discount on the order.

THE CATALOG:
  Templates are code-defined presets, not per-instance records. Minted
  vouchers copy every discount field from the template, so editing the
  catalog never changes vouchers already in the wild.

SEE ALSO:
  - issue.go: Points debit + mint as one logical unit
  - redeem.go: Validation, discount math, usage recording
*/
package voucher

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/swiftfix/reward-ledger/ledger"
)

// =============================================================================
// CATALOG
// =============================================================================

type Catalog struct {
	mu        sync.RWMutex
	templates map[string]ledger.VoucherTemplate
	order     []string
}

func NewCatalog(templates ...ledger.VoucherTemplate) *Catalog {
	c := &Catalog{templates: make(map[string]ledger.VoucherTemplate)}
	for _, t := range templates {
		c.Add(t)
	}
	return c
}

// Add registers or replaces a template.
func (c *Catalog) Add(t ledger.VoucherTemplate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.templates[t.ID]; !exists {
		c.order = append(c.order, t.ID)
	}
	c.templates[t.ID] = t
}

// Template returns the template by id, or ErrTemplateNotFound.
func (c *Catalog) Template(id string) (ledger.VoucherTemplate, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.templates[id]
	if !ok {
		return ledger.VoucherTemplate{}, fmt.Errorf("template %q: %w", id, ledger.ErrTemplateNotFound)
	}
	return t, nil
}

// =============================================================================
// AFFORDABILITY VIEW
// =============================================================================

// TemplateView annotates a template with the asking account's buying power.
type TemplateView struct {
	Template     ledger.VoucherTemplate
	CanAfford    bool
	PointsNeeded int64 // 0 when affordable
}

// List returns every template annotated for the given account, catalog order.
func (c *Catalog) List(ctx context.Context, log *ledger.Log, accountID ledger.AccountID) ([]TemplateView, error) {
	balance, err := log.Balance(ctx, accountID)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	views := make([]TemplateView, 0, len(c.order))
	for _, id := range c.order {
		t := c.templates[id]
		view := TemplateView{Template: t, CanAfford: balance >= t.PointsCost}
		if !view.CanAfford {
			view.PointsNeeded = t.PointsCost - balance
		}
		views = append(views, view)
	}
	return views, nil
}

// =============================================================================
// DEFAULT TEMPLATES
// =============================================================================

// DefaultTemplates is the standard SwiftFix voucher catalog.
func DefaultTemplates() []ledger.VoucherTemplate {
	cap25 := decimal.NewFromInt(25)
	cap15 := decimal.NewFromInt(15)

	return []ledger.VoucherTemplate{
		{
			ID:   "welcome-10-off",
			Name: "$10 Off Any Service",
			Kind: ledger.DiscountFixedAmount, Value: decimal.NewFromInt(10),
			MinOrderAmount: decimal.NewFromInt(50),
			Category:       ledger.CategoryAll,
			PointsCost:     50, ValidityDays: 90, UsageLimit: 1,
		},
		{
			ID:   "aircon-15pct",
			Name: "15% Off Aircon Servicing",
			Kind: ledger.DiscountPercentage, Value: decimal.NewFromInt(15),
			MinOrderAmount: decimal.NewFromInt(80), MaxDiscountAmount: &cap25,
			Category:   ledger.CategoryAircon,
			PointsCost: 100, ValidityDays: 60, UsageLimit: 1,
		},
		{
			ID:   "plumbing-10pct",
			Name: "10% Off Plumbing",
			Kind: ledger.DiscountPercentage, Value: decimal.NewFromInt(10),
			MinOrderAmount: decimal.NewFromInt(60), MaxDiscountAmount: &cap15,
			Category:   ledger.CategoryPlumbing,
			PointsCost: 80, ValidityDays: 60, UsageLimit: 1,
		},
		{
			ID:   "cleaning-25-off",
			Name: "$25 Off Deep Cleaning",
			Kind: ledger.DiscountFixedAmount, Value: decimal.NewFromInt(25),
			MinOrderAmount: decimal.NewFromInt(150),
			Category:       ledger.CategoryCleaning,
			PointsCost:     180, ValidityDays: 120, UsageLimit: 1,
		},
	}
}
