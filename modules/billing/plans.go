package billing

// Plan describes a purchasable subscription tier. PriceIDs maps each billing
// cycle to the provider's price identifier so checkout and webhook processing
// can translate between the two vocabularies.
type Plan struct {
	ID       string
	Name     string
	PriceIDs map[BillingCycle]string
}

// PriceID returns the provider price id for the given cycle.
func (p Plan) PriceID(cycle BillingCycle) (string, bool) {
	id, ok := p.PriceIDs[cycle]
	return id, ok
}

// Catalog is the set of plans available for checkout, keyed by plan id.
type Catalog map[string]Plan

// Get looks up a plan by id.
func (c Catalog) Get(planID string) (Plan, bool) {
	p, ok := c[planID]
	return p, ok
}

// ByPriceID resolves the plan and cycle that a provider price id belongs to.
func (c Catalog) ByPriceID(priceID string) (Plan, BillingCycle, bool) {
	for _, p := range c {
		for cycle, id := range p.PriceIDs {
			if id == priceID {
				return p, cycle, true
			}
		}
	}
	return Plan{}, "", false
}

// DefaultCatalog returns the plans sold by the product. Price ids come from
// the provider dashboard and are overridable through checkout config.
func DefaultCatalog() Catalog {
	return Catalog{
		"PREMIUM": {
			ID:   "PREMIUM",
			Name: "Premium",
			PriceIDs: map[BillingCycle]string{
				CycleMonthly: "price_premium_monthly",
				CycleYearly:  "price_premium_yearly",
			},
		},
		"PRO": {
			ID:   "PRO",
			Name: "Pro",
			PriceIDs: map[BillingCycle]string{
				CycleMonthly: "price_pro_monthly",
				CycleYearly:  "price_pro_yearly",
			},
		},
	}
}
