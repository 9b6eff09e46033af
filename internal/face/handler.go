package face

import (
	"crypto/subtle"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"facescan-backend/internal/platform/auth"
)

const maxImageBytes = 5 << 20 // 5MB

type Handler struct {
	svc         *Service
	internalKey string
}

// public: 未認証グループ（内部 API・画像経路）。authed: 認証済みグループ。
func RegisterRoutes(public, authed gin.IRoutes, svc *Service, internalKey string) {
	h := &Handler{svc: svc, internalKey: internalKey}

	// 内部 service（エンコーダ）専用。X-Internal-Key 必須。
	public.POST("/faces/verify-vector", h.requireInternalKey, h.VerifyVector)
	// 旧経路の互換: 画像を受けてエンコーダ経由で同じ照合に流す
	public.POST("/faces/verify-by-image", h.VerifyByImage)

	authed.POST("/faces/verify-teacher-face", h.VerifyTeacherFace)
	authed.POST("/faces/enroll", h.Enroll)
	authed.GET("/faces/scan-logs", auth.RequireRole(auth.RoleAdmin), h.ScanLogs)
}

func (h *Handler) requireInternalKey(c *gin.Context) {
	key := c.GetHeader("X-Internal-Key")
	if h.internalKey == "" ||
		subtle.ConstantTimeCompare([]byte(key), []byte(h.internalKey)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "unauthorized"})
		return
	}
	c.Next()
}

func (h *Handler) VerifyVector(c *gin.Context) {
	var req VerifyVectorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "missing student_id or face_vector"))
		return
	}

	res, err := h.svc.VerifyStudentVector(c.Request.Context(), req)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) VerifyByImage(c *gin.Context) {
	studentNumber := c.PostForm("student_id")
	if studentNumber == "" {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "student_id is required"))
		return
	}

	fh, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "image file is required"))
		return
	}
	if fh.Size > maxImageBytes {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "image too large"))
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "image unreadable"))
		return
	}
	defer f.Close()
	image, err := io.ReadAll(io.LimitReader(f, maxImageBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "image unreadable"))
		return
	}

	var sessionULID *string
	if v := c.PostForm("session_id"); v != "" {
		sessionULID = &v
	}

	res, err := h.svc.VerifyByImage(c.Request.Context(), studentNumber, fh.Filename, image, sessionULID)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) VerifyTeacherFace(c *gin.Context) {
	var req TeacherVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "missing class_id or face_vector"))
		return
	}

	res, err := h.svc.VerifyTeacherFace(c.Request.Context(), req)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	if !res.Match {
		// 教員ゲートは不一致を forbidden として返す
		c.JSON(http.StatusForbidden, gin.H{"ok": false, "match": false, "distance": res.Distance})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Enroll(c *gin.Context) {
	var req EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json"))
		return
	}

	if err := h.svc.Enroll(c.Request.Context(), auth.CallerID(c), req); err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "face references saved"})
}

func (h *Handler) ScanLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	logs, err := h.svc.ScanLogs(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, logs)
}
