package class

import "time"

type CreateClassRequest struct {
	CourseCode  string   `json:"course_code" binding:"required"`
	CourseName  string   `json:"course_name" binding:"required"`
	Section     string   `json:"section"`
	TeacherULID string   `json:"teacher_id" binding:"required"`
	Students    []string `json:"students,omitempty"` // user_ulid の列
}

type AddStudentsRequest struct {
	Students []string `json:"students" binding:"required"`
}

type ClassResponse struct {
	ClassULID   string    `json:"class_id"`
	CourseCode  string    `json:"course_code"`
	CourseName  string    `json:"course_name"`
	Section     string    `json:"section"`
	TeacherULID string    `json:"teacher_id"`
	CreatedAt   time.Time `json:"created_at"`
}
