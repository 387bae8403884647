package lineitem

import "github.com/shopspring/decimal"

// RowTotal is quantity * unitPrice + laborCost.
func RowTotal(quantity int, unitPrice, laborCost decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Add(laborCost)
}

// OrderTotal sums the totals of rows, computed fresh from each row's inputs.
func OrderTotal(rows []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range rows {
		sum = sum.Add(RowTotal(r.Quantity, r.UnitPrice, r.LaborCost))
	}
	return sum
}

func withTotal(li LineItem) LineItem {
	li.Total = RowTotal(li.Quantity, li.UnitPrice, li.LaborCost)
	return li
}
