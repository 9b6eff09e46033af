package class

import (
	"context"
	"crypto/rand"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"
)

type Service struct {
	store ClassStore
}

func NewService(conn *sql.DB) *Service {
	return &Service{store: NewStore(conn)}
}

func NewServiceWith(store ClassStore) *Service {
	return &Service{store: store}
}

func (s *Service) Create(ctx context.Context, req CreateClassRequest) (*ClassResponse, error) {
	if req.Section == "" {
		req.Section = "1"
	}

	id, err := ulid.New(ulid.Timestamp(time.Now().UTC()), rand.Reader)
	if err != nil {
		return nil, err
	}

	c := &Class{
		ClassULID:   id.String(),
		CourseCode:  req.CourseCode,
		CourseName:  req.CourseName,
		Section:     req.Section,
		TeacherULID: req.TeacherULID,
	}
	if err := s.store.Create(ctx, c, req.Students); err != nil {
		return nil, err
	}
	c.CreatedAt = time.Now().UTC()

	dto := c.toDTO()
	return &dto, nil
}

func (s *Service) Get(ctx context.Context, id string) (*ClassResponse, error) {
	c, err := s.store.GetByULID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNotFound("class not found")
	}
	dto := c.toDTO()
	return &dto, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]ClassResponse, error) {
	classes, err := s.store.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]ClassResponse, 0, len(classes))
	for _, c := range classes {
		out = append(out, c.toDTO())
	}
	return out, nil
}

// TeacherOf: face.TeacherResolver の実装。教員顔ゲートで使う。
func (s *Service) TeacherOf(ctx context.Context, classULID string) (string, error) {
	return s.store.TeacherOf(ctx, classULID)
}

// IsEnrolled: attendance 側の在籍チェックに使う
func (s *Service) IsEnrolled(ctx context.Context, classULID, userULID string) (bool, error) {
	return s.store.IsEnrolled(ctx, classULID, userULID)
}

func (s *Service) AddStudents(ctx context.Context, classULID string, req AddStudentsRequest) error {
	if len(req.Students) == 0 {
		return ErrInvalid("students must not be empty")
	}
	c, err := s.store.GetByULID(ctx, classULID)
	if err != nil {
		return err
	}
	if c == nil {
		return ErrNotFound("class not found")
	}
	return s.store.AddStudents(ctx, classULID, req.Students)
}

func (s *Service) RemoveStudent(ctx context.Context, classULID, userULID string) error {
	n, err := s.store.RemoveStudent(ctx, classULID, userULID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound("student not enrolled in class")
	}
	return nil
}

func (s *Service) Roster(ctx context.Context, classULID string) ([]RosterEntry, error) {
	c, err := s.store.GetByULID(ctx, classULID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNotFound("class not found")
	}
	return s.store.Roster(ctx, classULID)
}

func (s *Service) Delete(ctx context.Context, classULID string) error {
	n, err := s.store.Delete(ctx, classULID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound("class not found")
	}
	return nil
}
