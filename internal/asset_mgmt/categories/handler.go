// handler.go
package categories

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.POST("/categories", h.CreateCategory)
	r.GET("/categories", h.ListCategories)
	r.GET("/categories/:id", h.GetCategory)
	r.PUT("/categories/:id", h.UpdateCategory)
	r.DELETE("/categories/:id", h.DeleteCategory)
}

func (h *Handler) ListCategories(c *gin.Context) {
	resp, err := h.svc.ListCategories(c.Request.Context(), c.Query("all"))
	if err != nil {
		c.JSON(toHTTPStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetCategory(c *gin.Context) {
	idU64, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || idU64 == 0 {
		c.JSON(http.StatusBadRequest, ErrInvalid("invalid id"))
		return
	}
	resp, err := h.svc.GetCategory(c.Request.Context(), uint(idU64))
	if err != nil {
		c.JSON(toHTTPStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) CreateCategory(c *gin.Context) {
	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrInvalid(err.Error()))
		return
	}
	resp, err := h.svc.CreateCategory(c.Request.Context(), req.CategoryName, req.CategoryCode)
	if err != nil {
		c.JSON(toHTTPStatus(err), err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) UpdateCategory(c *gin.Context) {
	idU64, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || idU64 == 0 {
		c.JSON(http.StatusBadRequest, ErrInvalid("invalid id"))
		return
	}
	var req UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrInvalid(err.Error()))
		return
	}
	resp, err := h.svc.UpdateCategory(c.Request.Context(), uint(idU64), req.CategoryName, req.CategoryCode, req.IsDisabled)
	if err != nil {
		c.JSON(toHTTPStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) DeleteCategory(c *gin.Context) {
	idU64, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || idU64 == 0 {
		c.JSON(http.StatusBadRequest, ErrInvalid("invalid id"))
		return
	}
	err = h.svc.DeleteCategory(c.Request.Context(), uint(idU64))
	if err != nil {
		c.JSON(toHTTPStatus(err), err)
		return
	}
	c.Status(http.StatusNoContent)
}
