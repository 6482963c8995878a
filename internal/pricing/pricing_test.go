package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestLineTotal_Exact(t *testing.T) {
	cases := []struct {
		product, service string
		qty              int
		want             string
	}{
		{"40", "20", 2, "120"},
		{"0.1", "0.2", 3, "0.9"},
		{"19.99", "5.01", 7, "175"},
		{"0", "0", 5, "0"},
	}
	for _, c := range cases {
		got := LineTotal(d(c.product), d(c.service), c.qty)
		assert.True(t, d(c.want).Equal(got), "%s+%s x%d = %s", c.product, c.service, c.qty, got)
	}
}

func TestCountAndSubtotal(t *testing.T) {
	items := []Item{
		{Quantity: 2, LineTotal: d("120")},
		{Quantity: 3, LineTotal: d("0.9")},
	}
	assert.Equal(t, 5, Count(items))
	assert.True(t, d("120.9").Equal(Subtotal(items)))
	assert.Equal(t, 0, Count(nil))
	assert.True(t, Subtotal(nil).IsZero())
}

func TestGrandTotal_EndToEnd(t *testing.T) {
	c := Default()
	sub := d("200")

	assert.True(t, d("24").Equal(c.Tax(sub)))
	total := c.GrandTotal(sub, decimal.Zero)
	assert.Equal(t, "254.00", total.StringFixed(2))
}

func TestGrandTotal_FlooredAtDeliveryFee(t *testing.T) {
	c := Default()
	total := c.GrandTotal(d("100"), d("500"))
	assert.True(t, c.DeliveryFee.Equal(total))
}

func TestTax_NotRoundedUntilDisplay(t *testing.T) {
	c := Default()
	tax := c.Tax(d("10.01"))
	assert.True(t, d("1.2012").Equal(tax))
	assert.Equal(t, "1.20", Round2(tax).StringFixed(2))
}

func TestBill(t *testing.T) {
	c := Calculator{DeliveryFee: d("30"), TaxRate: d("0.12")}
	b := c.Bill([]Item{{Quantity: 1, LineTotal: d("33.33")}}, d("10"))

	assert.Equal(t, 1, b.Count)
	assert.True(t, d("3.9996").Equal(b.Tax))
	assert.True(t, d("57.3296").Equal(b.GrandTotal))

	r := b.Rounded()
	assert.Equal(t, "4.00", r.Tax.StringFixed(2))
	assert.Equal(t, "57.33", r.GrandTotal.StringFixed(2))
	assert.True(t, d("37.3296").Equal(c.MaxDiscount(d("33.33"))))
}
