package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/facturo/facturo/internal/customer/domain"
	"github.com/facturo/facturo/internal/orgcontext"
	"github.com/facturo/facturo/pkg/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node

	customers repository.Repository[customerdomain.Customer]
}

func NewService(p ServiceParam) customerdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("customer.service"),
		genID: p.GenID,

		customers: repository.ProvideStore[customerdomain.Customer](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req customerdomain.CreateCustomerRequest) (customerdomain.Customer, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return customerdomain.Customer{}, customerdomain.ErrInvalidOrganization
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return customerdomain.Customer{}, customerdomain.ErrInvalidName
	}

	now := time.Now().UTC()
	customer := customerdomain.Customer{
		ID:             s.genID.Generate(),
		OrgID:          orgID,
		Name:           name,
		Email:          strings.TrimSpace(req.Email),
		BillingAddress: strings.TrimSpace(req.BillingAddress),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.customers.Create(ctx, &customer); err != nil {
		return customerdomain.Customer{}, err
	}
	return customer, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (customerdomain.Customer, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return customerdomain.Customer{}, customerdomain.ErrInvalidOrganization
	}

	customerID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return customerdomain.Customer{}, customerdomain.ErrInvalidCustomerID
	}

	customer, err := s.customers.FindOne(ctx, &customerdomain.Customer{ID: customerID, OrgID: orgID})
	if err != nil {
		return customerdomain.Customer{}, err
	}
	if customer == nil {
		return customerdomain.Customer{}, customerdomain.ErrNotFound
	}
	return *customer, nil
}

func (s *Service) List(ctx context.Context) (customerdomain.ListCustomerResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return customerdomain.ListCustomerResponse{}, customerdomain.ErrInvalidOrganization
	}

	items, err := s.customers.Find(ctx, &customerdomain.Customer{OrgID: orgID})
	if err != nil {
		return customerdomain.ListCustomerResponse{}, err
	}

	customers := make([]customerdomain.Customer, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		customers = append(customers, *item)
	}
	return customerdomain.ListCustomerResponse{Customers: customers}, nil
}

func (s *Service) OutstandingBalance(ctx context.Context, customerID snowflake.ID) (decimal.Decimal, error) {
	customer, err := s.customers.FindOne(ctx, &customerdomain.Customer{ID: customerID})
	if err != nil {
		return decimal.Zero, err
	}
	if customer == nil {
		return decimal.Zero, customerdomain.ErrNotFound
	}
	return customer.OutstandingBalance, nil
}
