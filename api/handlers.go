package api

import (
	"errors"
	"net/http"

	"github.com/browserwing/contactwing/config"
	"github.com/browserwing/contactwing/models"
	"github.com/browserwing/contactwing/pkg/logger"
	"github.com/browserwing/contactwing/storage"
	"github.com/gin-gonic/gin"
)

// StatusProvider 提供当前探索运行的状态
type StatusProvider interface {
	Status() models.RunStatus
}

type Handler struct {
	db     storage.Store
	status StatusProvider
	config *config.Config
}

func NewHandler(db storage.Store, status StatusProvider, cfg *config.Config) *Handler {
	return &Handler{
		db:     db,
		status: status,
		config: cfg,
	}
}

// ============= 运行状态 =============

// GetStatus 获取探索运行状态及配置的重试上限
func (h *Handler) GetStatus(c *gin.Context) {
	resp := gin.H{"running": h.status != nil}
	if h.status != nil {
		resp["status"] = h.status.Status()
	}
	if h.config != nil && h.config.Explorer != nil {
		ec := h.config.Explorer
		resp["budget"] = gin.H{
			"max_passes":       ec.MaxPasses,
			"max_read_cycles":  ec.MaxReadCycles,
			"max_page_scrolls": ec.MaxPageScrolls,
			"backoff_seconds":  ec.BackoffSeconds,
		}
	}
	c.JSON(http.StatusOK, resp)
}

// ============= 联系人 =============

// ListContacts 按条件查询联系人
func (h *Handler) ListContacts(c *gin.Context) {
	var query models.ContactQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "error.invalidParams"})
		return
	}
	if query.Limit <= 0 || query.Limit > 500 {
		query.Limit = 100
	}

	contacts, err := h.db.SearchContacts(c.Request.Context(), query)
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to search contacts: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search contacts: " + err.Error()})
		return
	}
	if contacts == nil {
		contacts = []*models.ContactSummary{}
	}

	c.JSON(http.StatusOK, gin.H{
		"contacts": contacts,
		"total":    len(contacts),
	})
}

// GetContact 获取联系人（含详情）
func (h *Handler) GetContact(c *gin.Context) {
	id := c.Param("id")
	contact, err := h.db.GetContactWithDetail(c.Request.Context(), id)
	if err != nil {
		h.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

// UpdateContact 更新联系人概要
func (h *Handler) UpdateContact(c *gin.Context) {
	id := c.Param("id")

	var req models.SummaryUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "error.invalidParams"})
		return
	}

	if err := h.db.UpdateSummary(c.Request.Context(), id, req); err != nil {
		h.storeError(c, err)
		return
	}

	contact, err := h.db.GetContact(c.Request.Context(), id)
	if err != nil {
		h.storeError(c, err)
		return
	}
	logger.Info(c.Request.Context(), "Contact %s updated", id)
	c.JSON(http.StatusOK, gin.H{
		"message": "success.contactUpdated",
		"contact": contact,
	})
}

// UpdateContactDetail 更新联系人详情
func (h *Handler) UpdateContactDetail(c *gin.Context) {
	id := c.Param("id")

	var req models.DetailUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "error.invalidParams"})
		return
	}

	if err := h.db.UpdateDetail(c.Request.Context(), id, req); err != nil {
		h.storeError(c, err)
		return
	}

	contact, err := h.db.GetContactWithDetail(c.Request.Context(), id)
	if err != nil {
		h.storeError(c, err)
		return
	}
	logger.Info(c.Request.Context(), "Contact %s detail updated", id)
	c.JSON(http.StatusOK, gin.H{
		"message": "success.contactUpdated",
		"contact": contact,
	})
}

func (h *Handler) storeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "error.contactNotFound"})
	default:
		logger.Error(c.Request.Context(), "Store operation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
