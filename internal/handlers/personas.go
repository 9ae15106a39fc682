package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/persona"
)

// ListPersonas returns the AI persona catalog.
func ListPersonas(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"personas": persona.All()})
}
