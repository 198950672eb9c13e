package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/facturo/facturo/internal/orgcontext"
	"github.com/gin-gonic/gin"
)

const HeaderOrg = "X-Org-ID"

// OrgContext resolves the caller's organization from the X-Org-ID header and
// injects it into the request context. Every /v1 route requires it.
func OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderOrg))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		orgID, err := snowflake.ParseString(raw)
		if err != nil || orgID == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Request = c.Request.WithContext(orgcontext.WithOrgID(c.Request.Context(), orgID))
		c.Next()
	}
}
