// Package migrate applies the schema on startup.
package migrate

import (
	customerdomain "github.com/facturo/facturo/internal/customer/domain"
	invoicedomain "github.com/facturo/facturo/internal/invoice/domain"
	recurringdomain "github.com/facturo/facturo/internal/recurring/domain"
	"github.com/facturo/facturo/internal/sequence"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrate",
	fx.Invoke(Run),
)

// Models lists every persisted type, in dependency order.
func Models() []any {
	return []any{
		&customerdomain.Customer{},
		&invoicedomain.Invoice{},
		&invoicedomain.LineItem{},
		&recurringdomain.RecurringProfile{},
		&recurringdomain.GeneratedInvoiceRecord{},
		&sequence.InvoiceSequence{},
	}
}

func Run(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
