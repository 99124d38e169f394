package maintenance

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.POST("/maintenance", h.Send)
	r.POST("/maintenance/release", h.Release)
	r.GET("/maintenance", h.List)
}

func (h *Handler) Send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiErrFrom(ErrInvalid("invalid json")))
		return
	}
	res, err := h.svc.SendToMaintenance(c.Request.Context(), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Release(c *gin.Context) {
	var req ReleaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiErrFrom(ErrInvalid("invalid json")))
		return
	}
	res, err := h.svc.ReleaseFromMaintenance(c.Request.Context(), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) List(c *gin.Context) {
	var f EventFilter
	if v := c.Query("asset_id"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.AssetID = &n
		}
	}
	if v := c.Query("open"); v == "true" || v == "1" {
		f.OpenOnly = true
	}
	f.Limit = atoiDef(c.Query("limit"), 50)
	f.Offset = atoiDef(c.Query("offset"), 0)

	items, total, err := h.svc.ListEvents(c.Request.Context(), f)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
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

type errDTO struct {
	Error struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func apiErrFrom(err error) errDTO {
	var e errDTO
	if api, ok := err.(*APIError); ok {
		e.Error.Code = api.Code
		e.Error.Message = api.Message
		return e
	}
	e.Error.Code = CodeInternal
	e.Error.Message = err.Error()
	return e
}
