package bottlebook

type inventoryKey struct {
	category string
	brand    string
	size     string
}

// ReplayInventory reconstructs "what is currently out" for one customer
// by replaying their transactions oldest-first into per
// {category, brand, size} buckets. Issue increments, return and settle
// decrement floored at zero. Only positive buckets are returned, in
// first-seen order.
func ReplayInventory(transactions []Transaction) []InventoryLine {
	counts := make(map[inventoryKey]int)
	var order []inventoryKey

	accumulate := func(key inventoryKey, delta int) {
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		next := counts[key] + delta
		if next < 0 {
			next = 0
		}
		counts[key] = next
	}

	for _, transaction := range transactions {
		sign := 1
		if transaction.Type == TransactionReturn || transaction.Type == TransactionSettle {
			sign = -1
		}
		if len(transaction.Items) == 0 {
			key := inventoryKey{category: transaction.Category, brand: transaction.Brand, size: transaction.Size}
			accumulate(key, sign*transaction.BottleCount.Int())
			continue
		}
		for _, item := range transaction.Items {
			key := inventoryKey{category: item.Category, brand: item.Brand, size: item.Size}
			accumulate(key, sign*item.BottleCount.Int())
		}
	}

	lines := make([]InventoryLine, 0, len(order))
	for _, key := range order {
		if counts[key] <= 0 {
			continue
		}
		lines = append(lines, InventoryLine{
			Category:    key.category,
			Brand:       key.brand,
			Size:        key.size,
			BottleCount: BottleCount(counts[key]),
		})
	}
	return lines
}
