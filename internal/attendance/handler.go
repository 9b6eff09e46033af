package attendance

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"facescan-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

// r は認証済みグループを想定。check-in は学生本人、一覧/統計/帳票は teacher/admin。
func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	teacherOnly := auth.RequireRole(auth.RoleTeacher, auth.RoleAdmin)

	// POST /attendances/checkin
	r.POST("/attendances/checkin", h.CheckIn)
	// GET /attendances?session_id=&class_id=&user_id=&limit=&offset=
	r.GET("/attendances", teacherOnly, h.List)
	// GET /attendances/stats/:class_id
	r.GET("/attendances/stats/:class_id", teacherOnly, h.Stats)
	// GET /attendances/export/:class_id（UTF-8 BOM 付き CSV）
	r.GET("/attendances/export/:class_id", teacherOnly, h.Export)
}

func (h *Handler) CheckIn(c *gin.Context) {
	var req CheckinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}

	res, err := h.svc.CheckIn(c.Request.Context(), auth.CallerID(c), req)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	if res.Created {
		c.JSON(http.StatusCreated, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) List(c *gin.Context) {
	var q ListQuery
	if v := c.Query("session_id"); v != "" {
		q.SessionULID = &v
	}
	if v := c.Query("class_id"); v != "" {
		q.ClassULID = &v
	}
	if v := c.Query("user_id"); v != "" {
		q.UserULID = &v
	}
	q.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "0"))
	q.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, total, err := h.svc.List(c.Request.Context(), q)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
}

func (h *Handler) Stats(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	rows, err := h.svc.StatsByClass(c.Request.Context(), c.Param("class_id"), limit)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rows})
}

func (h *Handler) Export(c *gin.Context) {
	classULID := c.Param("class_id")
	rows, err := h.svc.ExportByClass(c.Request.Context(), classULID)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="attendance_`+classULID+`.csv"`)
	if err := WriteCSV(c.Writer, rows); err != nil {
		// ヘッダ送出後なのでステータスは変えられない
		log.Printf("[WARN] csv export aborted: class=%s err=%v", classULID, err)
	}
}
