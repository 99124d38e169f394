package lending

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	// 貸出
	r.POST("/lends", h.CreateLend)
	r.GET("/lends", h.ListLends)
	r.GET("/lends/:lend_ulid", h.GetLendByULID)

	// 返却（資産起点）
	r.POST("/returns", h.CreateReturn)
}

// POST /lends
func (h *Handler) CreateLend(c *gin.Context) {
	var req CreateLendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}

	res, err := h.svc.Lend(c.Request.Context(), req)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}

	c.Header("Location", "/lends/"+res.LendULID)
	c.JSON(http.StatusCreated, res)
}

// POST /returns
func (h *Handler) CreateReturn(c *gin.Context) {
	var req CreateReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json"))
		return
	}

	res, err := h.svc.Return(c.Request.Context(), req)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /lends
// asset_id を指定すると資産1点の履歴（新しい順）。from/to はRFC3339。
func (h *Handler) ListLends(c *gin.Context) {
	f := RecordFilter{}
	if v := c.Query("asset_id"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.AssetID = &n
		}
	}
	if v := c.Query("borrower_id"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.BorrowerID = &n
		}
	}
	if v := c.Query("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.From = &t
		}
	}
	if v := c.Query("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.To = &t
		}
	}
	if v := c.Query("open"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			f.Open = &b
		}
	}
	p := Page{
		Limit:  parseIntDefault(c.Query("limit"), 50),
		Offset: parseIntDefault(c.Query("offset"), 0),
		Order:  c.DefaultQuery("order", "desc"),
	}

	items, total, err := h.svc.ListLends(c.Request.Context(), f, p)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
}

// GET /lends/:lend_ulid
func (h *Handler) GetLendByULID(c *gin.Context) {
	res, err := h.svc.GetLendByULID(c.Request.Context(), c.Param("lend_ulid"))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// ---------- helpers ----------

func parseIntDefault(s string, d int) int {
	if s == "" {
		return d
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return v
}

type errorDTO struct {
	Error struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func errorBody(code Code, msg string) errorDTO {
	var e errorDTO
	e.Error.Code = code
	e.Error.Message = msg
	return e
}

func errorFromErr(err error) errorDTO {
	if api, ok := err.(*APIError); ok {
		if api.Code == CodeInconsistent {
			// 不変条件の破れはユーザー起因ではない。詳細はログ側にあるので
			// 呼び出し側には一般的な失敗だけを見せる。
			return errorBody(CodeInternal, "internal error")
		}
		return errorBody(api.Code, api.Message)
	}
	return errorBody(CodeInternal, err.Error())
}
