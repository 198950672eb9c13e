package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	recurringdomain "github.com/facturo/facturo/internal/recurring/domain"
)

func (s *Server) CreateRecurringProfile(c *gin.Context) {
	var req recurringdomain.CreateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.recurringSvc.CreateFromInvoice(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListRecurringProfiles(c *gin.Context) {
	var query struct {
		Status string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req := recurringdomain.ListProfileRequest{}
	if status := strings.TrimSpace(query.Status); status != "" {
		st := recurringdomain.ProfileStatus(status)
		req.Status = &st
	}

	resp, err := s.recurringSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetRecurringProfileByID(c *gin.Context) {
	resp, err := s.recurringSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) PauseRecurringProfile(c *gin.Context) {
	s.transitionProfile(c, s.recurringSvc.Pause)
}

func (s *Server) ResumeRecurringProfile(c *gin.Context) {
	s.transitionProfile(c, s.recurringSvc.Resume)
}

func (s *Server) CancelRecurringProfile(c *gin.Context) {
	s.transitionProfile(c, s.recurringSvc.Cancel)
}

func (s *Server) transitionProfile(c *gin.Context, fn func(ctx context.Context, id string) (recurringdomain.RecurringProfile, error)) {
	resp, err := fn(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GenerateRecurringInvoice(c *gin.Context) {
	result, err := s.recurringSvc.GenerateNow(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"invoice_id":     result.InvoiceID.String(),
		"invoice_number": result.InvoiceNumber,
		"skipped":        result.Skipped,
		"finished":       result.Finished,
	}})
}
