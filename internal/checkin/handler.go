package checkin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"facescan-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

// r は認証済みグループを想定。open/cancel はさらに teacher/admin のみ。
func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	teacherOnly := auth.RequireRole(auth.RoleTeacher, auth.RoleAdmin)

	// POST /checkin-sessions/open
	r.POST("/checkin-sessions/open", teacherOnly, h.Open)
	// PUT /checkin-sessions/cancel/:id
	r.PUT("/checkin-sessions/cancel/:id", teacherOnly, h.Cancel)
	// GET /checkin-sessions/current（admin/teacher 向け一覧）
	r.GET("/checkin-sessions/current", h.ListActive)
	// GET /checkin-sessions/class/:class_id（学生が自クラスの窓を見る）
	r.GET("/checkin-sessions/class/:class_id", h.ActiveForClass)
}

func (h *Handler) Open(c *gin.Context) {
	var req OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}

	res, err := h.svc.Open(c.Request.Context(), req)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}

	c.Header("Location", "/checkin-sessions/"+res.SessionULID)
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Cancel(c *gin.Context) {
	res, err := h.svc.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListActive(c *gin.Context) {
	res, err := h.svc.ListActive(c.Request.Context())
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ActiveForClass(c *gin.Context) {
	res, err := h.svc.ActiveForClass(c.Request.Context(), c.Param("class_id"))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	if res == nil {
		// 開いている窓が無い
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, res)
}
