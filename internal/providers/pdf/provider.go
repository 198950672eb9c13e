// Package pdf renders customer-facing invoice documents.
package pdf

import (
	"context"
	"io"

	customerdomain "github.com/facturo/facturo/internal/customer/domain"
	invoicedomain "github.com/facturo/facturo/internal/invoice/domain"
	"go.uber.org/fx"
)

type Provider interface {
	RenderInvoice(ctx context.Context, inv invoicedomain.Invoice, cust customerdomain.Customer) (io.Reader, error)
}

var Module = fx.Module("providers.pdf",
	fx.Provide(New),
)
