package service

import (
	"sort"

	"github.com/AnTengye/orderledger/model"
)

// TopProductsLimit is how many best sellers the summary lists.
const TopProductsLimit = 3

// ComputeStats summarises the ledgers. Unreadable tables count as empty.
func ComputeStats(store *LedgerStore) model.Stats {
	var stats model.Stats

	if orders, err := store.Orders(); err == nil {
		stats.TotalOrders = len(orders)
		for _, o := range orders {
			stats.TotalRevenue += model.ParseAmount(o.Amount)
		}
	}

	if customers, err := store.Customers(); err == nil {
		stats.UniqueCustomers = len(customers)
	}

	if products, err := store.Products(); err == nil {
		stats.TotalProducts = len(products)
		stats.TopProducts = TopProducts(products, TopProductsLimit)
	}

	return stats
}

// TopProducts returns up to n products by sale count, ties kept in ledger
// order.
func TopProducts(products []model.Product, n int) []model.Product {
	ranked := make([]model.Product, len(products))
	copy(ranked, products)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].SaleCount > ranked[j].SaleCount
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
