package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/dtlearning/learninghub/core"
	"github.com/dtlearning/learninghub/core/classroom"
)

var (
	enrPKCount int
	asgPKCount int
)

type classroomRepository struct {
	db *DB
}

var _ classroom.Repository = (*classroomRepository)(nil)

func NewClassroomRepository(db *DB) *classroomRepository {
	return &classroomRepository{db: db}
}

// Classrooms

func (repo *classroomRepository) CreateClassroom(_ context.Context, cls classroom.Classroom) (classroom.Classroom, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.classrooms[cls.UUID] = &cls
	return cls, nil
}

func (repo *classroomRepository) GetClassroomByUUID(_ context.Context, id uuid.UUID) (classroom.Classroom, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if cls, ok := repo.db.classrooms[id]; ok {
		return *cls, nil
	}
	return classroom.Classroom{}, classroom.ErrNotFound
}

func (repo *classroomRepository) QueryAllClassrooms(_ context.Context, orderings ...core.DBOrdering) ([]classroom.Classroom, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return sortClassrooms(repo.queryClassrooms(func(classroom.Classroom) bool { return true }), orderings), nil
}

func (repo *classroomRepository) FilterClassrooms(_ context.Context, schoolID uuid.UUID, orderings ...core.DBOrdering) ([]classroom.Classroom, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return sortClassrooms(repo.queryClassrooms(func(cls classroom.Classroom) bool { return cls.SchoolID == schoolID }), orderings), nil
}

// sortClassrooms only supports "name"; anything else keeps creation order.
func sortClassrooms(classrooms []classroom.Classroom, orderings []core.DBOrdering) []classroom.Classroom {
	for _, ord := range orderings {
		if ord.Field != "name" {
			continue
		}
		asc := ord.Ascending
		sort.SliceStable(classrooms, func(i, j int) bool {
			if asc {
				return classrooms[i].Name < classrooms[j].Name
			}
			return classrooms[i].Name > classrooms[j].Name
		})
		break
	}
	return classrooms
}

func (repo *classroomRepository) UpdateClassroom(_ context.Context, cls classroom.Classroom, active *bool) (classroom.Classroom, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	// only save set fields
	orig, ok := repo.db.classrooms[cls.UUID]
	if !ok {
		return classroom.Classroom{}, classroom.ErrNotFound
	}
	if cls.Name != "" {
		orig.Name = cls.Name
	}
	if active != nil {
		orig.Active = *active
	}
	orig.UpdatedAt = cls.UpdatedAt

	repo.db.classrooms[cls.UUID] = orig
	return *orig, nil
}

func (repo *classroomRepository) DeleteClassroomsByUUID(_ context.Context, ids ...uuid.UUID) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		delete(repo.db.classrooms, id)
		for pk, enr := range repo.db.enrollments {
			if enr.ClassroomID == id {
				delete(repo.db.enrollments, pk)
			}
		}
		for pk, asg := range repo.db.assignments {
			if asg.ClassroomID == id {
				delete(repo.db.assignments, pk)
			}
		}
	}
	return nil
}

func (repo *classroomRepository) queryClassrooms(match func(classroom.Classroom) bool) []classroom.Classroom {
	classrooms := make([]classroom.Classroom, 0, len(repo.db.classrooms))
	for _, cls := range repo.db.classrooms {
		if match(*cls) {
			classrooms = append(classrooms, *cls)
		}
	}
	sort.Slice(classrooms, func(i, j int) bool { return classrooms[i].CreatedAt.Before(classrooms[j].CreatedAt) })
	return classrooms
}

// Enrollments

func (repo *classroomRepository) CreateEnrollment(_ context.Context, enr classroom.Enrollment) (classroom.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.enrollments {
		if existing.ClassroomID == enr.ClassroomID && existing.UserID == enr.UserID {
			return classroom.Enrollment{}, classroom.ErrEnrollmentExists
		}
	}

	enrPKCount++
	enr.ID = enrPKCount
	repo.db.enrollments[enr.ID] = &enr
	return enr, nil
}

func (repo *classroomRepository) GetEnrollment(_ context.Context, classroomID uuid.UUID, userID string) (classroom.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, enr := range repo.db.enrollments {
		if enr.ClassroomID == classroomID && enr.UserID == userID {
			return *enr, nil
		}
	}
	return classroom.Enrollment{}, classroom.ErrNotFound
}

func (repo *classroomRepository) FilterEnrollments(_ context.Context, filter classroom.EnrollmentFilter) ([]classroom.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	enrollments := make([]classroom.Enrollment, 0, len(repo.db.enrollments))
	for _, enr := range repo.db.enrollments {
		if enr.ClassroomID != filter.ClassroomID {
			continue
		}
		if filter.Staff != nil && enr.Staff != *filter.Staff {
			continue
		}
		if filter.Active != nil && enr.Active != *filter.Active {
			continue
		}
		enrollments = append(enrollments, *enr)
	}
	sort.Slice(enrollments, func(i, j int) bool { return enrollments[i].ID < enrollments[j].ID })
	return enrollments, nil
}

func (repo *classroomRepository) DeactivateEnrollment(_ context.Context, classroomID uuid.UUID, userID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, enr := range repo.db.enrollments {
		if enr.ClassroomID == classroomID && enr.UserID == userID {
			enr.Active = false
			return nil
		}
	}
	return classroom.ErrNotFound
}

// Assignments

func (repo *classroomRepository) CreateAssignment(_ context.Context, asg classroom.CourseAssignment) (classroom.CourseAssignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.assignments {
		if existing.ClassroomID == asg.ClassroomID && existing.CourseID == asg.CourseID {
			return classroom.CourseAssignment{}, classroom.ErrAssignmentExists
		}
	}

	asgPKCount++
	asg.ID = asgPKCount
	repo.db.assignments[asg.ID] = &asg
	return asg, nil
}

func (repo *classroomRepository) FilterAssignments(_ context.Context, classroomID uuid.UUID) ([]classroom.CourseAssignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	assignments := make([]classroom.CourseAssignment, 0, len(repo.db.assignments))
	for _, asg := range repo.db.assignments {
		if asg.ClassroomID == classroomID {
			assignments = append(assignments, *asg)
		}
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].ID < assignments[j].ID })
	return assignments, nil
}
