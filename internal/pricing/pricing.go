// Package pricing computes line totals, cart totals, tax, delivery fee and
// grand total. All arithmetic is exact; rounding happens only in Round2, which
// callers apply when a value is displayed or persisted.
package pricing

import "github.com/shopspring/decimal"

var (
	DefaultDeliveryFee = decimal.NewFromInt(30)
	DefaultTaxRate     = decimal.RequireFromString("0.12")
)

// Item is the part of a cart line the calculator needs.
type Item struct {
	Quantity  int
	LineTotal decimal.Decimal
}

func LineTotal(productPrice, servicePrice decimal.Decimal, qty int) decimal.Decimal {
	return productPrice.Add(servicePrice).Mul(decimal.NewFromInt(int64(qty)))
}

func Count(items []Item) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

func Subtotal(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.LineTotal)
	}
	return sum
}

func Round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

type Calculator struct {
	DeliveryFee decimal.Decimal
	TaxRate     decimal.Decimal
}

func Default() Calculator {
	return Calculator{DeliveryFee: DefaultDeliveryFee, TaxRate: DefaultTaxRate}
}

func (c Calculator) Tax(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(c.TaxRate)
}

// MaxDiscount is the non-delivery portion of the bill; no discount may exceed it.
func (c Calculator) MaxDiscount(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Add(c.Tax(subtotal))
}

// GrandTotal never drops below the delivery fee.
func (c Calculator) GrandTotal(subtotal, discount decimal.Decimal) decimal.Decimal {
	total := subtotal.Add(c.DeliveryFee).Add(c.Tax(subtotal)).Sub(discount)
	if total.LessThan(c.DeliveryFee) {
		return c.DeliveryFee
	}
	return total
}

type Bill struct {
	Count       int
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	Tax         decimal.Decimal
	Discount    decimal.Decimal
	GrandTotal  decimal.Decimal
}

func (c Calculator) Bill(items []Item, discount decimal.Decimal) Bill {
	sub := Subtotal(items)
	return Bill{
		Count:       Count(items),
		Subtotal:    sub,
		DeliveryFee: c.DeliveryFee,
		Tax:         c.Tax(sub),
		Discount:    discount,
		GrandTotal:  c.GrandTotal(sub, discount),
	}
}

// Rounded returns the bill as shown to a customer.
func (b Bill) Rounded() Bill {
	return Bill{
		Count:       b.Count,
		Subtotal:    Round2(b.Subtotal),
		DeliveryFee: Round2(b.DeliveryFee),
		Tax:         Round2(b.Tax),
		Discount:    Round2(b.Discount),
		GrandTotal:  Round2(b.GrandTotal),
	}
}
