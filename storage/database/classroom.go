package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/dtlearning/learninghub/core"
	"github.com/dtlearning/learninghub/core/classroom"
)

// pq error code for unique_violation
const pqUniqueViolation = "23505"

type classroomRepository struct {
	db *sqlx.DB
}

var _ classroom.Repository = (*classroomRepository)(nil)

func NewClassroomRepository(db *sql.DB) *classroomRepository {
	return &classroomRepository{db: sqlx.NewDb(db, "postgres")}
}

// Classrooms

func (repo *classroomRepository) CreateClassroom(ctx context.Context, cls classroom.Classroom) (classroom.Classroom, error) {
	q := `INSERT INTO classroom (uuid, school_id, name, active, created_at, updated_at)
	      VALUES (:uuid, :school_id, :name, :active, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, cls); err != nil {
		return classroom.Classroom{}, errors.Wrap(err, "creating classroom")
	}
	return cls, nil
}

func (repo *classroomRepository) GetClassroomByUUID(ctx context.Context, id uuid.UUID) (classroom.Classroom, error) {
	var cls classroom.Classroom
	q := `SELECT * FROM classroom WHERE uuid = $1`
	if err := repo.db.GetContext(ctx, &cls, q, id); err != nil {
		if err == sql.ErrNoRows {
			return classroom.Classroom{}, classroom.ErrNotFound
		}
		return classroom.Classroom{}, errors.Wrap(err, "getting classroom")
	}
	return cls, nil
}

func (repo *classroomRepository) QueryAllClassrooms(ctx context.Context, orderings ...core.DBOrdering) ([]classroom.Classroom, error) {
	var classrooms []classroom.Classroom
	q := `SELECT * FROM classroom` + orderBy(orderings)
	if err := repo.db.SelectContext(ctx, &classrooms, q); err != nil {
		return nil, errors.Wrap(err, "querying classrooms")
	}
	return classrooms, nil
}

func (repo *classroomRepository) FilterClassrooms(ctx context.Context, schoolID uuid.UUID, orderings ...core.DBOrdering) ([]classroom.Classroom, error) {
	var classrooms []classroom.Classroom
	q := `SELECT * FROM classroom WHERE school_id = $1` + orderBy(orderings)
	if err := repo.db.SelectContext(ctx, &classrooms, q, schoolID); err != nil {
		return nil, errors.Wrap(err, "filtering classrooms")
	}
	return classrooms, nil
}

// classroomOrderFields whitelists the classroom columns exposed for ordering.
var classroomOrderFields = map[string]bool{
	"name":       true,
	"active":     true,
	"created_at": true,
	"updated_at": true,
}

// orderBy builds an ORDER BY clause from the whitelisted orderings;
// created_at is the fallback.
func orderBy(orderings []core.DBOrdering) string {
	terms := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		if classroomOrderFields[ord.Field] {
			terms = append(terms, ord.String())
		}
	}
	if len(terms) == 0 {
		return ` ORDER BY created_at`
	}
	return ` ORDER BY ` + strings.Join(terms, ", ")
}

// UpdateClassroom only saves set fields; an empty name keeps the current one.
func (repo *classroomRepository) UpdateClassroom(ctx context.Context, cls classroom.Classroom, active *bool) (classroom.Classroom, error) {
	var updated classroom.Classroom
	q := `UPDATE classroom
	      SET name       = COALESCE(NULLIF($2, ''), name),
	          active     = COALESCE($3, active),
	          updated_at = $4
	      WHERE uuid = $1
	      RETURNING *`
	err := repo.db.QueryRowxContext(ctx, q, cls.UUID, cls.Name, active, cls.UpdatedAt).StructScan(&updated)
	if err != nil {
		if err == sql.ErrNoRows {
			return classroom.Classroom{}, classroom.ErrNotFound
		}
		return classroom.Classroom{}, errors.Wrap(err, "updating classroom")
	}
	return updated, nil
}

func (repo *classroomRepository) DeleteClassroomsByUUID(ctx context.Context, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM classroom WHERE uuid IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "deleting classrooms")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting classrooms")
	}
	return nil
}

// Enrollments

func (repo *classroomRepository) CreateEnrollment(ctx context.Context, enr classroom.Enrollment) (classroom.Enrollment, error) {
	q := `INSERT INTO classroom_enrollment (classroom_uuid, user_id, staff, active, created_at, updated_at)
	      VALUES ($1, $2, $3, $4, $5, $6)
	      RETURNING id`
	err := repo.db.QueryRowxContext(ctx, q, enr.ClassroomID, enr.UserID, enr.Staff, enr.Active, enr.CreatedAt, enr.UpdatedAt).Scan(&enr.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return classroom.Enrollment{}, classroom.ErrEnrollmentExists
		}
		return classroom.Enrollment{}, errors.Wrap(err, "creating enrollment")
	}
	return enr, nil
}

func (repo *classroomRepository) GetEnrollment(ctx context.Context, classroomID uuid.UUID, userID string) (classroom.Enrollment, error) {
	var enr classroom.Enrollment
	q := `SELECT * FROM classroom_enrollment WHERE classroom_uuid = $1 AND user_id = $2`
	if err := repo.db.GetContext(ctx, &enr, q, classroomID, userID); err != nil {
		if err == sql.ErrNoRows {
			return classroom.Enrollment{}, classroom.ErrNotFound
		}
		return classroom.Enrollment{}, errors.Wrap(err, "getting enrollment")
	}
	return enr, nil
}

func (repo *classroomRepository) FilterEnrollments(ctx context.Context, filter classroom.EnrollmentFilter) ([]classroom.Enrollment, error) {
	q := `SELECT * FROM classroom_enrollment WHERE classroom_uuid = $1`
	args := []interface{}{filter.ClassroomID}
	if filter.Staff != nil {
		args = append(args, *filter.Staff)
		q += fmt.Sprintf(` AND staff = $%d`, len(args))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		q += fmt.Sprintf(` AND active = $%d`, len(args))
	}
	q += ` ORDER BY created_at`

	var enrollments []classroom.Enrollment
	if err := repo.db.SelectContext(ctx, &enrollments, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering enrollments")
	}
	return enrollments, nil
}

func (repo *classroomRepository) DeactivateEnrollment(ctx context.Context, classroomID uuid.UUID, userID string) error {
	q := `UPDATE classroom_enrollment SET active = FALSE, updated_at = NOW() AT TIME ZONE 'utc'
	      WHERE classroom_uuid = $1 AND user_id = $2`
	res, err := repo.db.ExecContext(ctx, q, classroomID, userID)
	if err != nil {
		return errors.Wrap(err, "deactivating enrollment")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return classroom.ErrNotFound
	}
	return nil
}

// Assignments

func (repo *classroomRepository) CreateAssignment(ctx context.Context, asg classroom.CourseAssignment) (classroom.CourseAssignment, error) {
	q := `INSERT INTO course_assignment (classroom_uuid, course_id, created_at, updated_at)
	      VALUES ($1, $2, $3, $4)
	      RETURNING id`
	err := repo.db.QueryRowxContext(ctx, q, asg.ClassroomID, asg.CourseID, asg.CreatedAt, asg.UpdatedAt).Scan(&asg.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return classroom.CourseAssignment{}, classroom.ErrAssignmentExists
		}
		return classroom.CourseAssignment{}, errors.Wrap(err, "creating assignment")
	}
	return asg, nil
}

func (repo *classroomRepository) FilterAssignments(ctx context.Context, classroomID uuid.UUID) ([]classroom.CourseAssignment, error) {
	var assignments []classroom.CourseAssignment
	q := `SELECT * FROM course_assignment WHERE classroom_uuid = $1 ORDER BY created_at`
	if err := repo.db.SelectContext(ctx, &assignments, q, classroomID); err != nil {
		return nil, errors.Wrap(err, "filtering assignments")
	}
	return assignments, nil
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		return pqErr.Code == pqUniqueViolation
	}
	return false
}
