package class

import "time"

type Class struct {
	ClassULID   string
	CourseCode  string
	CourseName  string
	Section     string
	TeacherULID string
	CreatedAt   time.Time
}

type RosterEntry struct {
	UserULID      string  `json:"user_id"`
	StudentNumber *string `json:"student_number"`
	FullName      string  `json:"full_name"`
}

func (c Class) toDTO() ClassResponse {
	return ClassResponse{
		ClassULID:   c.ClassULID,
		CourseCode:  c.CourseCode,
		CourseName:  c.CourseName,
		Section:     c.Section,
		TeacherULID: c.TeacherULID,
		CreatedAt:   c.CreatedAt,
	}
}
