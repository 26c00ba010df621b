package classroom

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// errors
	ErrNotFound         = errors.New("classroom not found")
	ErrEnrollmentExists = errors.New("this user is already enrolled in this classroom")
	ErrAssignmentExists = errors.New("this course is already assigned to this classroom")
)

// Roles carried in auth claims.
const (
	RoleTeacher = "classroom_teacher"
	RoleLearner = "classroom_learner"
	RoleAdmin   = "school_admin"
)

const defaultName = "Your Classroom Name"

type (
	// Classroom groups learners, teachers and courses, automating enrollment.
	Classroom struct {
		UUID      uuid.UUID `json:"uuid" db:"uuid"`
		SchoolID  uuid.UUID `json:"school_id" db:"school_id"`
		Name      string    `json:"name" db:"name"`
		Active    bool      `json:"active" db:"active"`
		CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
		UpdatedAt time.Time `json:"updated_at" db:"updated_at"` // UTC
	}

	// Enrollment is a (classroom, user) membership; unique per pair.
	// UserID is the user's email identifier.
	Enrollment struct {
		ID          int       `json:"id" db:"id"`
		ClassroomID uuid.UUID `json:"classroom_uuid" db:"classroom_uuid"`
		UserID      string    `json:"user_id" db:"user_id"`
		Staff       bool      `json:"staff" db:"staff"`
		Active      bool      `json:"active" db:"active"`
		CreatedAt   time.Time `json:"created_at" db:"created_at"` // UTC
		UpdatedAt   time.Time `json:"updated_at" db:"updated_at"` // UTC
	}

	// CourseAssignment links a course run to a classroom. CourseID holds a
	// template reference only transiently: it is resolved to a concrete run
	// during creation and never mutated afterwards.
	CourseAssignment struct {
		ID          int       `json:"id" db:"id"`
		ClassroomID uuid.UUID `json:"classroom_uuid" db:"classroom_uuid"`
		CourseID    string    `json:"course_id" db:"course_id"`
		CreatedAt   time.Time `json:"created_at" db:"created_at"` // UTC
		UpdatedAt   time.Time `json:"updated_at" db:"updated_at"` // UTC
	}
)

func (e Enrollment) Role() string {
	if e.Staff {
		return RoleTeacher
	}
	return RoleLearner
}

// Write models

type (
	NewClassroom struct {
		SchoolID uuid.UUID `json:"school_id"`
		Name     string    `json:"name"`
	}

	UpdateClassroom struct {
		Name   string `json:"name"`
		Active *bool  `json:"active"`
	}

	NewEnrollment struct {
		ClassroomID uuid.UUID `json:"classroom_uuid"`
		UserID      string    `json:"user_id"`
		Staff       bool      `json:"staff"`
	}

	NewAssignment struct {
		ClassroomID uuid.UUID `json:"classroom_uuid"`
		CourseID    string    `json:"course_id"`
	}

	// EnrollmentFilter applies AND operation on set fields.
	EnrollmentFilter struct {
		ClassroomID uuid.UUID
		Staff       *bool
		Active      *bool
	}
)
