package calc

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecEqual(t *testing.T, expected, actual decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, expected.Equal(actual), "expected %s, got %s", expected, actual)
}

func TestComputeTotals_SimpleTaxedItems(t *testing.T) {
	totals, err := ComputeTotals(TotalsInput{
		Items: []LineItem{
			{Description: "Consulting", Quantity: dec("2"), UnitPrice: dec("100"), TaxRate: dec("10")},
		},
	})
	require.NoError(t, err)

	assertDecEqual(t, dec("200"), totals.Subtotal)
	assertDecEqual(t, dec("0"), totals.ItemDiscountTotal)
	assertDecEqual(t, dec("20"), totals.TaxTotal)
	assertDecEqual(t, dec("220"), totals.GrandTotal)
	assertDecEqual(t, dec("220"), totals.BalanceDue)
}

func TestComputeTotals_ItemDiscountReducesTaxableBase(t *testing.T) {
	totals, err := ComputeTotals(TotalsInput{
		Items: []LineItem{
			{
				Quantity:  dec("2"),
				UnitPrice: dec("100"),
				TaxRate:   dec("10"),
				Discount:  Discount{Type: DiscountPercentage, Amount: dec("10")},
			},
		},
	})
	require.NoError(t, err)

	// Tax applies to the discounted base: (200 - 20) * 10%.
	assertDecEqual(t, dec("200"), totals.Subtotal)
	assertDecEqual(t, dec("20"), totals.ItemDiscountTotal)
	assertDecEqual(t, dec("18"), totals.TaxTotal)
	assertDecEqual(t, dec("198"), totals.GrandTotal)
}

func TestComputeTotals_OverallDiscountOnPreDiscountTotal(t *testing.T) {
	totals, err := ComputeTotals(TotalsInput{
		Items: []LineItem{
			{Quantity: dec("2"), UnitPrice: dec("100"), TaxRate: dec("10")},
		},
		OverallDiscount: Discount{Type: DiscountPercentage, Amount: dec("5")},
	})
	require.NoError(t, err)

	// 5% of the 220 pre-discount total, not of the subtotal.
	assertDecEqual(t, dec("11"), totals.OverallDiscount)
	assertDecEqual(t, dec("209"), totals.GrandTotal)
}

func TestComputeTotals_ShippingBeforeOverallDiscount(t *testing.T) {
	totals, err := ComputeTotals(TotalsInput{
		Items: []LineItem{
			{Quantity: dec("1"), UnitPrice: dec("90")},
		},
		ShippingCost:    dec("10"),
		OverallDiscount: Discount{Type: DiscountPercentage, Amount: dec("10")},
	})
	require.NoError(t, err)

	// Shipping joins the base the overall discount applies to: (90+10) * 10%.
	assertDecEqual(t, dec("10"), totals.OverallDiscount)
	assertDecEqual(t, dec("90"), totals.GrandTotal)
}

func TestComputeTotals_OutstandingBalanceOnlyAffectsBalanceDue(t *testing.T) {
	totals, err := ComputeTotals(TotalsInput{
		Items: []LineItem{
			{Quantity: dec("1"), UnitPrice: dec("100")},
		},
		OutstandingBalance: dec("50"),
	})
	require.NoError(t, err)

	assertDecEqual(t, dec("100"), totals.GrandTotal)
	assertDecEqual(t, dec("150"), totals.BalanceDue)
}

func TestComputeTotals_ZeroItems(t *testing.T) {
	totals, err := ComputeTotals(TotalsInput{
		ShippingCost: dec("5"),
	})
	require.NoError(t, err)

	assertDecEqual(t, dec("0"), totals.Subtotal)
	assertDecEqual(t, dec("0"), totals.TaxTotal)
	assertDecEqual(t, dec("5"), totals.GrandTotal)
}

func TestComputeTotals_FixedDiscountLargerThanBaseIsNotClamped(t *testing.T) {
	totals, err := ComputeTotals(TotalsInput{
		Items: []LineItem{
			{
				Quantity:  dec("1"),
				UnitPrice: dec("50"),
				TaxRate:   dec("10"),
				Discount:  Discount{Type: DiscountFixed, Amount: dec("80")},
			},
		},
	})
	require.NoError(t, err)

	// The discount is applied as given, leaving a negative taxable base.
	assertDecEqual(t, dec("80"), totals.ItemDiscountTotal)
	assertDecEqual(t, dec("-3"), totals.TaxTotal)
	assertDecEqual(t, dec("-33"), totals.GrandTotal)
}

func TestComputeTotals_Deterministic(t *testing.T) {
	input := TotalsInput{
		Items: []LineItem{
			{Quantity: dec("3"), UnitPrice: dec("19.99"), TaxRate: dec("7.5"),
				Discount: Discount{Type: DiscountFixed, Amount: dec("2.50")}},
			{Quantity: dec("1"), UnitPrice: dec("250"), TaxRate: dec("21")},
		},
		ShippingCost:       dec("12.30"),
		OverallDiscount:    Discount{Type: DiscountPercentage, Amount: dec("2.5")},
		OutstandingBalance: dec("99.99"),
	}

	first, err := ComputeTotals(input)
	require.NoError(t, err)
	second, err := ComputeTotals(input)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

// The grand total must always decompose into its parts, whatever the input.
func TestComputeTotals_GrandTotalIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	randDec := func(max int) decimal.Decimal {
		return decimal.New(rng.Int63n(int64(max)*100), -2)
	}

	for i := 0; i < 200; i++ {
		itemCount := rng.Intn(5)
		items := make([]LineItem, 0, itemCount)
		for j := 0; j < itemCount; j++ {
			item := LineItem{
				Quantity:  randDec(20),
				UnitPrice: randDec(1000),
				TaxRate:   decimal.New(rng.Int63n(10000), -2),
			}
			switch rng.Intn(3) {
			case 1:
				item.Discount = Discount{Type: DiscountFixed, Amount: randDec(50)}
			case 2:
				item.Discount = Discount{Type: DiscountPercentage, Amount: decimal.New(rng.Int63n(10000), -2)}
			}
			items = append(items, item)
		}

		input := TotalsInput{
			Items:              items,
			ShippingCost:       randDec(100),
			OutstandingBalance: randDec(500),
		}
		if rng.Intn(2) == 0 {
			input.OverallDiscount = Discount{Type: DiscountPercentage, Amount: decimal.New(rng.Int63n(10000), -2)}
		}

		totals, err := ComputeTotals(input)
		require.NoError(t, err)

		expected := totals.Subtotal.
			Sub(totals.ItemDiscountTotal).
			Add(totals.TaxTotal).
			Add(totals.ShippingCost).
			Sub(totals.OverallDiscount)
		assertDecEqual(t, expected, totals.GrandTotal, "iteration %d", i)
		assertDecEqual(t, totals.GrandTotal.Add(input.OutstandingBalance), totals.BalanceDue, "iteration %d", i)
	}
}

func TestComputeTotals_RejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name  string
		input TotalsInput
		field string
	}{
		{
			name: "negative quantity",
			input: TotalsInput{Items: []LineItem{
				{Quantity: dec("-1"), UnitPrice: dec("10")},
			}},
			field: "items[0].quantity",
		},
		{
			name: "negative unit price",
			input: TotalsInput{Items: []LineItem{
				{Quantity: dec("1"), UnitPrice: dec("-10")},
			}},
			field: "items[0].unit_price",
		},
		{
			name: "tax rate above 100",
			input: TotalsInput{Items: []LineItem{
				{Quantity: dec("1"), UnitPrice: dec("10"), TaxRate: dec("101")},
			}},
			field: "items[0].tax_rate",
		},
		{
			name: "negative tax rate",
			input: TotalsInput{Items: []LineItem{
				{Quantity: dec("1"), UnitPrice: dec("10"), TaxRate: dec("-1")},
			}},
			field: "items[0].tax_rate",
		},
		{
			name: "negative item discount",
			input: TotalsInput{Items: []LineItem{
				{Quantity: dec("1"), UnitPrice: dec("10"),
					Discount: Discount{Type: DiscountFixed, Amount: dec("-5")}},
			}},
			field: "items[0].discount_amount",
		},
		{
			name:  "negative shipping",
			input: TotalsInput{ShippingCost: dec("-1")},
			field: "shipping_cost",
		},
		{
			name:  "negative overall discount",
			input: TotalsInput{OverallDiscount: Discount{Type: DiscountFixed, Amount: dec("-1")}},
			field: "discount_amount",
		},
		{
			name:  "negative outstanding balance",
			input: TotalsInput{OutstandingBalance: dec("-0.01")},
			field: "outstanding_balance",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ComputeTotals(tc.input)
			require.Error(t, err)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tc.field, vErr.Field)
		})
	}
}

func TestDiscount_AmountFor(t *testing.T) {
	base := dec("200")

	assertDecEqual(t, dec("0"), Discount{}.AmountFor(base))
	assertDecEqual(t, dec("25"), Discount{Type: DiscountFixed, Amount: dec("25")}.AmountFor(base))
	assertDecEqual(t, dec("30"), Discount{Type: DiscountPercentage, Amount: dec("15")}.AmountFor(base))
}
