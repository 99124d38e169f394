package borrowers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.POST("/borrowers", h.CreateBorrower)
	r.GET("/borrowers", h.ListBorrowers)
	r.GET("/borrowers/:borrower_id", h.GetBorrower)
	r.PUT("/borrowers/:borrower_id", h.UpdateBorrower)
	r.DELETE("/borrowers/:borrower_id", h.DeleteBorrower)
}

func (h *Handler) CreateBorrower(c *gin.Context) {
	var req CreateBorrowerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.CreateBorrower(c.Request.Context(), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.Header("Location", "/borrowers/"+strconv.FormatInt(res.BorrowerID, 10))
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) GetBorrower(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("borrower_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid borrower_id"))
		return
	}
	res, err := h.svc.GetBorrower(c.Request.Context(), id)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListBorrowers(c *gin.Context) {
	var q ListQuery
	if v := c.Query("name"); v != "" {
		q.Name = &v
	}
	q.Limit = atoiDef(c.Query("limit"), 50)
	q.Offset = atoiDef(c.Query("offset"), 0)
	q.Order = c.DefaultQuery("order", "desc")

	items, total, err := h.svc.ListBorrowers(c.Request.Context(), q)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
}

func (h *Handler) UpdateBorrower(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("borrower_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid borrower_id"))
		return
	}
	var req UpdateBorrowerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.UpdateBorrower(c.Request.Context(), id, req)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) DeleteBorrower(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("borrower_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid borrower_id"))
		return
	}
	if err := h.svc.DeleteBorrower(c.Request.Context(), id); err != nil {
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
