package pdf

import (
	"bytes"
	"context"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"

	customerdomain "github.com/facturo/facturo/internal/customer/domain"
	invoicedomain "github.com/facturo/facturo/internal/invoice/domain"
)

const dateLayout = "2006-01-02"

type marotoProvider struct{}

func New() Provider {
	return &marotoProvider{}
}

func (p *marotoProvider) RenderInvoice(ctx context.Context, inv invoicedomain.Invoice, cust customerdomain.Customer) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(10,
		text.NewCol(12, "Invoice", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	// Invoice Meta
	m.AddRow(20,
		col.New(6).Add(
			text.New("Invoice number: "+inv.InvoiceNumber, props.Text{Top: 0}),
			text.New("Date of issue: "+inv.IssueDate.Format(dateLayout), props.Text{Top: 4}),
			text.New("Date due: "+inv.DueDate.Format(dateLayout), props.Text{Top: 8}),
			text.New("Status: "+string(inv.Status), props.Text{Top: 12}),
		),
		col.New(6),
	)

	// Bill to
	m.AddRow(30,
		col.New(6).Add(
			text.New("Bill to", props.Text{Style: fontstyle.Bold}),
			text.New(cust.Name, props.Text{Top: 5}),
			text.New(cust.BillingAddress, props.Text{Top: 9}),
			text.New(cust.Email, props.Text{Top: 18}),
		),
		col.New(6),
	)

	// Summary Title
	m.AddRow(15,
		text.NewCol(12, inv.BalanceDue.StringFixed(2)+" "+inv.Currency+" due "+inv.DueDate.Format(dateLayout), props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   5,
		}),
	)

	// Table Header
	m.AddRow(10,
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	// Items
	for _, item := range inv.Items {
		m.AddRow(12,
			text.NewCol(6, item.Description, props.Text{Size: 9}),
			text.NewCol(2, item.Quantity.String(), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.UnitPrice.StringFixed(2), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.Quantity.Mul(item.UnitPrice).StringFixed(2), props.Text{Size: 9, Align: align.Right}),
		)
	}

	// Footer Totals
	totals := []struct {
		label string
		value string
		bold  bool
	}{
		{"Subtotal", inv.Subtotal.StringFixed(2), false},
		{"Item discounts", inv.ItemDiscountTotal.Neg().StringFixed(2), false},
		{"Tax", inv.TaxTotal.StringFixed(2), false},
		{"Shipping", inv.ShippingCost.StringFixed(2), false},
		{"Discount", inv.OverallDiscount.Neg().StringFixed(2), false},
		{"Total", inv.GrandTotal.StringFixed(2), false},
		{"Amount due", inv.BalanceDue.StringFixed(2), true},
	}
	for _, row := range totals {
		style := fontstyle.Normal
		if row.bold {
			style = fontstyle.Bold
		}
		m.AddRow(8,
			col.New(8),
			text.NewCol(2, row.label, props.Text{Size: 9, Style: style}),
			text.NewCol(2, row.value, props.Text{Size: 9, Style: style, Align: align.Right}),
		)
	}

	if inv.Notes != "" {
		m.AddRow(20,
			text.NewCol(12, inv.Notes, props.Text{Size: 9, Top: 5}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}
