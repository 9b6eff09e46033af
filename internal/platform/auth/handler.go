package auth

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type Handler struct{ svc *Service }

// public: /auth 配下（未認証）。authed: 認証済みグループ。
func RegisterRoutes(public, authed gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	public.POST("/auth/login", h.Login)
	public.POST("/auth/register", h.Activate)

	authed.GET("/users/me", h.Me)
	authed.GET("/users", RequireRole(RoleAdmin), h.ListUsers)
	authed.POST("/users", RequireRole(RoleAdmin), h.CreateUser)
	authed.DELETE("/users/:id", RequireRole(RoleAdmin), h.DeleteUser)
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type userDTO struct {
	UserID        string  `json:"user_id"`
	StudentNumber *string `json:"student_number,omitempty"`
	Username      string  `json:"username"`
	FullName      string  `json:"full_name"`
	Email         string  `json:"email"`
	Role          string  `json:"role"`
	FaceScanned   bool    `json:"face_scanned"`
}

func toUserDTO(u *User) userDTO {
	return userDTO{
		UserID:        u.UserULID,
		StudentNumber: u.StudentNumber,
		Username:      u.Username,
		FullName:      u.FullName,
		Email:         u.Email,
		Role:          u.Role,
		FaceScanned:   u.FaceScanned,
	}
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	token, user, err := h.svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrAuthFailed) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  toUserDTO(user),
	})
}

type ActivateRequest struct {
	StudentNumber string `json:"student_id" binding:"required"`
	FullName      string `json:"full_name" binding:"required"`
}

// Activate: 名簿に載っている学生の自己登録
func (h *Handler) Activate(c *gin.Context) {
	var req ActivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	username, password, err := h.svc.Activate(c.Request.Context(), req.StudentNumber, req.FullName)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "student not found in roster"})
		case errors.Is(err, ErrRosterMismatch):
			c.JSON(http.StatusBadRequest, gin.H{"error": "student id and name do not match the roster"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "register failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"username": username, "password": password})
}

func (h *Handler) Me(c *gin.Context) {
	user, err := h.svc.Get(c.Request.Context(), CallerID(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, toUserDTO(user))
}

type CreateUserRequest struct {
	StudentNumber *string `json:"student_number,omitempty"`
	Username      string  `json:"username" binding:"required"`
	FullName      string  `json:"full_name" binding:"required"`
	Email         string  `json:"email"`
	Password      string  `json:"password" binding:"required"`
	Role          string  `json:"role"`
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	switch req.Role {
	case "", RoleStudent, RoleTeacher, RoleAdmin:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
		return
	}

	u := &User{
		StudentNumber: req.StudentNumber,
		Username:      req.Username,
		FullName:      req.FullName,
		Email:         req.Email,
		Role:          req.Role,
	}
	if err := h.svc.CreateUser(c.Request.Context(), u, req.Password); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "username already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}

	c.JSON(http.StatusCreated, toUserDTO(u))
}

func (h *Handler) ListUsers(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	users, err := h.svc.List(c.Request.Context(), c.Query("role"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	out := make([]userDTO, 0, len(users))
	for i := range users {
		out = append(out, toUserDTO(&users[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) DeleteUser(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
