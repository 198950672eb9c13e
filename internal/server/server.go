// Package server exposes the HTTP API.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/facturo/facturo/internal/config"
	"github.com/facturo/facturo/internal/customer"
	customerdomain "github.com/facturo/facturo/internal/customer/domain"
	"github.com/facturo/facturo/internal/invoice"
	invoicedomain "github.com/facturo/facturo/internal/invoice/domain"
	"github.com/facturo/facturo/internal/providers/pdf"
	"github.com/facturo/facturo/internal/recurring"
	recurringdomain "github.com/facturo/facturo/internal/recurring/domain"
	"github.com/facturo/facturo/internal/sequence"
)

var Module = fx.Module("http.server",
	sequence.Module,
	customer.Module,
	invoice.Module,
	recurring.Module,
	pdf.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterRoutes() }),
	fx.Invoke(RunHTTP),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	customerSvc  customerdomain.Service
	invoiceSvc   invoicedomain.Service
	recurringSvc recurringdomain.Service
	pdfProvider  pdf.Provider
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	CustomerSvc  customerdomain.Service
	InvoiceSvc   invoicedomain.Service
	RecurringSvc recurringdomain.Service
	PDFProvider  pdf.Provider
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		customerSvc:  p.CustomerSvc,
		invoiceSvc:   p.InvoiceSvc,
		recurringSvc: p.RecurringSvc,
		pdfProvider:  p.PDFProvider,
	}
}

func (s *Server) RegisterRoutes() {
	v1 := s.engine.Group("/v1")
	v1.Use(OrgContext())

	v1.POST("/customers", s.CreateCustomer)
	v1.GET("/customers", s.ListCustomers)
	v1.GET("/customers/:id", s.GetCustomerByID)

	v1.POST("/invoices", s.CreateInvoice)
	v1.GET("/invoices", s.ListInvoices)
	v1.GET("/invoices/:id", s.GetInvoiceByID)
	v1.PUT("/invoices/:id", s.UpdateDraftInvoice)
	v1.POST("/invoices/:id/send", s.SendInvoice)
	v1.GET("/invoices/:id/pdf", s.DownloadInvoicePDF)

	v1.POST("/recurring_profiles", s.CreateRecurringProfile)
	v1.GET("/recurring_profiles", s.ListRecurringProfiles)
	v1.GET("/recurring_profiles/:id", s.GetRecurringProfileByID)
	v1.POST("/recurring_profiles/:id/pause", s.PauseRecurringProfile)
	v1.POST("/recurring_profiles/:id/resume", s.ResumeRecurringProfile)
	v1.POST("/recurring_profiles/:id/cancel", s.CancelRecurringProfile)
	v1.POST("/recurring_profiles/:id/generate", s.GenerateRecurringInvoice)
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
