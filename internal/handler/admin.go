package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ticketflow/ingress/internal/service"
	"github.com/ticketflow/ingress/internal/tenant"
)

type TenantHandler struct {
	service *service.TenantService
}

func NewTenantHandler(service *service.TenantService) *TenantHandler {
	return &TenantHandler{service: service}
}

func (h *TenantHandler) Create(c *gin.Context) {
	var req struct {
		TenantID       string            `json:"tenant_id" binding:"required"`
		APIEndpoint    string            `json:"api_endpoint"`
		CredentialsRef string            `json:"credentials_ref"`
		Preferences    map[string]string `json:"preferences"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	secret, err := h.service.Provision(ctx, req.TenantID, req.APIEndpoint, req.CredentialsRef, req.Preferences)
	if err != nil {
		if errors.Is(err, service.ErrTenantExists) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"tenant_id":      req.TenantID,
		"signing_secret": secret,
		"message":        "Save this secret - it won't be shown again",
	})
}

func (h *TenantHandler) List(c *gin.Context) {
	tenants, err := h.service.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tenants": tenants})
}

func (h *TenantHandler) Rotate(c *gin.Context) {
	tenantID := c.Param("id")

	secret, err := h.service.Rotate(c.Request.Context(), tenantID)
	if err != nil {
		if errors.Is(err, tenant.ErrTenantNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Unknown tenant"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tenant_id":      tenantID,
		"signing_secret": secret,
		"message":        "Save this secret - it won't be shown again",
	})
}

func (h *TenantHandler) SetActive(c *gin.Context) {
	tenantID := c.Param("id")

	var req struct {
		IsActive *bool `json:"is_active" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.SetActive(c.Request.Context(), tenantID, *req.IsActive); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tenant_id": tenantID, "is_active": *req.IsActive})
}

func (h *TenantHandler) Delete(c *gin.Context) {
	tenantID := c.Param("id")

	if err := h.service.Delete(c.Request.Context(), tenantID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tenant_id": tenantID, "deleted": true})
}
