package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/facturo/facturo/internal/customer/domain"
	"github.com/facturo/facturo/internal/orgcontext"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func setupService(t *testing.T) (customerdomain.Service, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&customerdomain.Customer{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(ServiceParam{
		DB:    db,
		Log:   zaptest.NewLogger(t),
		GenID: node,
	}), db
}

func orgCtx(orgID int64) context.Context {
	return orgcontext.WithOrgID(context.Background(), snowflake.ID(orgID))
}

func TestCreateCustomer(t *testing.T) {
	svc, _ := setupService(t)

	created, err := svc.Create(orgCtx(1), customerdomain.CreateCustomerRequest{
		Name:           "  Acme Corp  ",
		Email:          "billing@acme.test",
		BillingAddress: "1 Main St",
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", created.Name)
	assert.NotZero(t, created.ID)

	got, err := svc.GetByID(orgCtx(1), created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestCreateCustomer_RequiresName(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.Create(orgCtx(1), customerdomain.CreateCustomerRequest{Name: "   "})
	assert.ErrorIs(t, err, customerdomain.ErrInvalidName)
}

func TestCreateCustomer_RequiresOrg(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.Create(context.Background(), customerdomain.CreateCustomerRequest{Name: "Acme"})
	assert.ErrorIs(t, err, customerdomain.ErrInvalidOrganization)
}

func TestGetCustomerByID_ScopedToOrg(t *testing.T) {
	svc, _ := setupService(t)

	created, err := svc.Create(orgCtx(1), customerdomain.CreateCustomerRequest{Name: "Acme"})
	require.NoError(t, err)

	_, err = svc.GetByID(orgCtx(2), created.ID.String())
	assert.ErrorIs(t, err, customerdomain.ErrNotFound)
}

func TestListCustomers_ScopedToOrg(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.Create(orgCtx(1), customerdomain.CreateCustomerRequest{Name: "Acme"})
	require.NoError(t, err)
	_, err = svc.Create(orgCtx(2), customerdomain.CreateCustomerRequest{Name: "Globex"})
	require.NoError(t, err)

	resp, err := svc.List(orgCtx(1))
	require.NoError(t, err)
	require.Len(t, resp.Customers, 1)
	assert.Equal(t, "Acme", resp.Customers[0].Name)
}

func TestOutstandingBalance(t *testing.T) {
	svc, db := setupService(t)

	created, err := svc.Create(orgCtx(1), customerdomain.CreateCustomerRequest{Name: "Acme"})
	require.NoError(t, err)

	err = db.Model(&customerdomain.Customer{}).
		Where("id = ?", created.ID).
		Update("outstanding_balance", decimal.RequireFromString("75.50")).Error
	require.NoError(t, err)

	balance, err := svc.OutstandingBalance(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("75.50")))
}
