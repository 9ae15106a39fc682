package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/maintenance"
)

// Maintainer inspects and repairs stored rows.
type Maintainer interface {
	TableStatus(ctx context.Context) ([]maintenance.TableReport, error)
	FindDuplicates(ctx context.Context) (maintenance.DuplicateReport, error)
	FindInvalid(ctx context.Context) (maintenance.InvalidReport, error)
	FindOrphans(ctx context.Context) (maintenance.OrphanReport, error)
	Cleanup(ctx context.Context, dryRun bool) (maintenance.CleanupResult, error)
}

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router gin.IRouter, auditor Auditor, maint Maintainer, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if auditor == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		audit(c, auditor, "", "audit test", nil)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if maint == nil {
		return
	}

	group := router.Group("/debug/maintenance")
	group.GET("/status", func(c *gin.Context) {
		report, err := maint.TableStatus(c.Request.Context())
		respondReport(c, gin.H{"tables": report}, err)
	})
	group.GET("/duplicates", func(c *gin.Context) {
		report, err := maint.FindDuplicates(c.Request.Context())
		respondReport(c, report, err)
	})
	group.GET("/invalid", func(c *gin.Context) {
		report, err := maint.FindInvalid(c.Request.Context())
		respondReport(c, report, err)
	})
	group.GET("/orphans", func(c *gin.Context) {
		report, err := maint.FindOrphans(c.Request.Context())
		respondReport(c, report, err)
	})
	group.POST("/cleanup", func(c *gin.Context) {
		dryRun := true
		if raw := c.Query("dry_run"); raw != "" {
			parsed, err := strconv.ParseBool(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dry_run"})
				return
			}
			dryRun = parsed
		}
		result, err := maint.Cleanup(c.Request.Context(), dryRun)
		if err == nil && !dryRun {
			audit(c, auditor, "maintenance_cleanup", "maintenance cleanup executed", map[string]string{
				"deleted": strconv.Itoa(result.Total()),
			})
		}
		respondReport(c, result, err)
	})
}

func respondReport(c *gin.Context, report any, err error) {
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}
