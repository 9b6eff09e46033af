package class

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"facescan-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

// r は認証済みグループを想定
func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	staff := auth.RequireRole(auth.RoleTeacher, auth.RoleAdmin)

	r.POST("/classes", staff, h.Create)
	r.GET("/classes", h.List)
	r.GET("/classes/:id", h.Get)
	r.DELETE("/classes/:id", auth.RequireRole(auth.RoleAdmin), h.Delete)
	r.GET("/classes/:id/students", h.Roster)
	r.POST("/classes/:id/students", staff, h.AddStudents)
	r.DELETE("/classes/:id/students/:user_id", staff, h.RemoveStudent)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}

	res, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.Header("Location", "/classes/"+res.ClassULID)
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Get(c *gin.Context) {
	res, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	res, err := h.svc.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func (h *Handler) Roster(c *gin.Context) {
	res, err := h.svc.Roster(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) AddStudents(c *gin.Context) {
	var req AddStudentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json"))
		return
	}

	if err := h.svc.AddStudents(c.Request.Context(), c.Param("id"), req); err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "students added"})
}

func (h *Handler) RemoveStudent(c *gin.Context) {
	if err := h.svc.RemoveStudent(c.Request.Context(), c.Param("id"), c.Param("user_id")); err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "student removed"})
}
