package assets

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"ATLAS-backend/internal/asset_mgmt/lending"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.POST("/assets", h.CreateAsset)
	r.GET("/assets", h.ListAssets)
	r.GET("/assets/:asset_id", h.GetAsset)
	r.PUT("/assets/:asset_id", h.UpdateAsset)
	r.DELETE("/assets/:asset_id", h.DeleteAsset)
}

func (h *Handler) CreateAsset(c *gin.Context) {
	var req CreateAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.CreateAsset(c.Request.Context(), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.Header("Location", "/assets/"+strconv.FormatInt(res.AssetID, 10))
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) GetAsset(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("asset_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "asset_id must be a number"))
		return
	}
	res, err := h.svc.GetAsset(c.Request.Context(), id)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListAssets(c *gin.Context) {
	var q AssetSearchQuery
	if v := c.Query("name"); v != "" {
		q.Name = &v
	}
	if v := c.Query("category_id"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			u := uint(n)
			q.CategoryID = &u
		}
	}
	if v := c.Query("status"); v != "" {
		if st, err := lending.ParseStatus(v); err == nil {
			q.Status = &st
		} else {
			c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "status must be available/lent/maintenance"))
			return
		}
	}
	p := Page{
		Limit:  atoiDef(c.Query("limit"), 50),
		Offset: atoiDef(c.Query("offset"), 0),
		Order:  strings.ToLower(c.DefaultQuery("order", "desc")),
	}
	items, total, err := h.svc.ListAssets(c.Request.Context(), q, p)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "next_offset": nextOffset(total, p)})
}

func (h *Handler) UpdateAsset(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("asset_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid asset_id"))
		return
	}
	var req UpdateAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.UpdateAsset(c.Request.Context(), id, req)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) DeleteAsset(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("asset_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid asset_id"))
		return
	}
	if err := h.svc.DeleteAsset(c.Request.Context(), id); err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// ===== helpers =====

func atoiDef(s string, d int) int {
	if s == "" {
		return d
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return n
}

func nextOffset(total int64, p Page) int {
	n := p.Offset + p.Limit
	if n >= int(total) {
		return 0
	}
	return n
}

type errDTO struct {
	Error struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func apiErr(code Code, msg string) errDTO {
	var e errDTO
	e.Error.Code = code
	e.Error.Message = msg
	return e
}

func apiErrFrom(err error) errDTO {
	if api, ok := err.(*APIError); ok {
		return apiErr(api.Code, api.Message)
	}
	return apiErr(CodeInternal, err.Error())
}
