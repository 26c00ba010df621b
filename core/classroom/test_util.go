package classroom

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dtlearning/learninghub/core"
)

// Test doubles shared by the package tests.

type testLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *testLogger) Enable(bool) {}
func (l *testLogger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, level+": "+msg)
}
func (l *testLogger) Debug(msg string, args ...interface{}) { l.log("DEBUG", msg) }
func (l *testLogger) Info(msg string, args ...interface{})  { l.log("INFO", msg) }
func (l *testLogger) Warn(msg string, args ...interface{})  { l.log("WARN", msg) }
func (l *testLogger) Error(msg string, args ...interface{}) { l.log("ERROR", msg) }
func (l *testLogger) Fatal(msg string, args ...interface{}) { panic(msg) }

type catalogCall struct {
	method string
	arg    interface{}
}

type fakeCatalog struct {
	mu       sync.Mutex
	calls    []catalogCall
	runType  string
	typeErr  error
	createFn func(RunSpec) (CourseRun, error)
}

var _ CatalogGateway = (*fakeCatalog)(nil)

func (c *fakeCatalog) record(method string, arg interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, catalogCall{method, arg})
}

func (c *fakeCatalog) GetCourseRunType(_ context.Context, templateRef string) (string, error) {
	c.record("GetCourseRunType", templateRef)
	return c.runType, c.typeErr
}

func (c *fakeCatalog) CreateCourseRun(_ context.Context, spec RunSpec) (CourseRun, error) {
	c.record("CreateCourseRun", spec)
	if c.createFn != nil {
		return c.createFn(spec)
	}
	return CourseRun{
		Key:   fmt.Sprintf("course-v1:%s+%s", spec.Course, spec.Term),
		Start: spec.Start,
		End:   spec.End,
	}, nil
}

func (c *fakeCatalog) ListTemplateCourses(context.Context) ([]CourseInfo, error) {
	c.record("ListTemplateCourses", nil)
	return nil, nil
}

func (c *fakeCatalog) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type teamUpdate struct {
	courseRef string
	team      []TeamMember
}

type fakeAuthoring struct {
	mu          sync.Mutex
	schedules   []string
	teamUpdates []teamUpdate
	publishErr  error
	teamErr     error
}

var _ AuthoringGateway = (*fakeAuthoring)(nil)

func (a *fakeAuthoring) PublishSchedule(_ context.Context, courseRef string, start, end time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.schedules = append(a.schedules, courseRef)
	return a.publishErr
}

func (a *fakeAuthoring) UpdateCourseTeam(_ context.Context, courseRef string, team []TeamMember) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.teamUpdates = append(a.teamUpdates, teamUpdate{courseRef, team})
	return a.teamErr
}

type bulkEnrollCall struct {
	courseRefs  []string
	identifiers []string
}

type removeCall struct {
	courseRef  string
	identifier string
}

type fakeEnrollment struct {
	mu        sync.Mutex
	bulk      []bulkEnrollCall
	removed   []removeCall
	bulkErr   error
	removeErr error
}

var _ EnrollmentGateway = (*fakeEnrollment)(nil)

func (e *fakeEnrollment) BulkEnroll(_ context.Context, courseRefs, identifiers []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bulk = append(e.bulk, bulkEnrollCall{courseRefs, identifiers})
	return e.bulkErr
}

func (e *fakeEnrollment) RemoveEnrollment(_ context.Context, courseRef, identifier string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removed = append(e.removed, removeCall{courseRef, identifier})
	return e.removeErr
}

// fakeDirectory resolves emails by stripping the domain.
type fakeDirectory struct {
	mu       sync.Mutex
	resolved [][]string
	err      error
}

var _ DirectoryGateway = (*fakeDirectory)(nil)

func (d *fakeDirectory) ResolveUsernames(_ context.Context, emails []string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resolved = append(d.resolved, emails)
	if d.err != nil {
		return nil, d.err
	}
	usernames := make([]string, 0, len(emails))
	for _, email := range emails {
		usernames = append(usernames, usernameFor(email))
	}
	return usernames, nil
}

func usernameFor(email string) string {
	for i, r := range email {
		if r == '@' {
			return email[:i]
		}
	}
	return email
}

// fakeRepo is an in-memory Repository for the package tests; the sqlx and
// inmem implementations under storage/ back the real wiring.
type fakeRepo struct {
	mu          sync.Mutex
	classrooms  map[string]Classroom
	enrollments []Enrollment
	assignments []CourseAssignment
	nextID      int

	enrollmentsErr error
	assignmentsErr error
}

var _ Repository = (*fakeRepo)(nil)

func newFakeRepo() *fakeRepo {
	return &fakeRepo{classrooms: make(map[string]Classroom)}
}

func (r *fakeRepo) CreateClassroom(_ context.Context, cls Classroom) (Classroom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classrooms[cls.UUID.String()] = cls
	return cls, nil
}

func (r *fakeRepo) GetClassroomByUUID(_ context.Context, id uuid.UUID) (Classroom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cls, ok := r.classrooms[id.String()]; ok {
		return cls, nil
	}
	return Classroom{}, ErrNotFound
}

func (r *fakeRepo) QueryAllClassrooms(_ context.Context, _ ...core.DBOrdering) ([]Classroom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]Classroom, 0, len(r.classrooms))
	for _, cls := range r.classrooms {
		all = append(all, cls)
	}
	return all, nil
}

func (r *fakeRepo) FilterClassrooms(_ context.Context, schoolID uuid.UUID, _ ...core.DBOrdering) ([]Classroom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Classroom
	for _, cls := range r.classrooms {
		if cls.SchoolID == schoolID {
			out = append(out, cls)
		}
	}
	return out, nil
}

func (r *fakeRepo) UpdateClassroom(_ context.Context, cls Classroom, active *bool) (Classroom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.classrooms[cls.UUID.String()]
	if !ok {
		return Classroom{}, ErrNotFound
	}
	if cls.Name != "" {
		existing.Name = cls.Name
	}
	if active != nil {
		existing.Active = *active
	}
	existing.UpdatedAt = cls.UpdatedAt
	r.classrooms[cls.UUID.String()] = existing
	return existing, nil
}

func (r *fakeRepo) DeleteClassroomsByUUID(_ context.Context, ids ...uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.classrooms, id.String())
	}
	return nil
}

func (r *fakeRepo) CreateEnrollment(_ context.Context, enr Enrollment) (Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	enr.ID = r.nextID
	r.enrollments = append(r.enrollments, enr)
	return enr, nil
}

func (r *fakeRepo) GetEnrollment(_ context.Context, classroomID uuid.UUID, userID string) (Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, enr := range r.enrollments {
		if enr.ClassroomID == classroomID && enr.UserID == userID {
			return enr, nil
		}
	}
	return Enrollment{}, ErrNotFound
}

func (r *fakeRepo) FilterEnrollments(_ context.Context, filter EnrollmentFilter) ([]Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enrollmentsErr != nil {
		return nil, r.enrollmentsErr
	}
	var out []Enrollment
	for _, enr := range r.enrollments {
		if enr.ClassroomID != filter.ClassroomID {
			continue
		}
		if filter.Staff != nil && enr.Staff != *filter.Staff {
			continue
		}
		if filter.Active != nil && enr.Active != *filter.Active {
			continue
		}
		out = append(out, enr)
	}
	return out, nil
}

func (r *fakeRepo) DeactivateEnrollment(_ context.Context, classroomID uuid.UUID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, enr := range r.enrollments {
		if enr.ClassroomID == classroomID && enr.UserID == userID {
			r.enrollments[i].Active = false
			return nil
		}
	}
	return ErrNotFound
}

func (r *fakeRepo) CreateAssignment(_ context.Context, asg CourseAssignment) (CourseAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	asg.ID = r.nextID
	r.assignments = append(r.assignments, asg)
	return asg, nil
}

func (r *fakeRepo) FilterAssignments(_ context.Context, classroomID uuid.UUID) ([]CourseAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.assignmentsErr != nil {
		return nil, r.assignmentsErr
	}
	var out []CourseAssignment
	for _, asg := range r.assignments {
		if asg.ClassroomID == classroomID {
			out = append(out, asg)
		}
	}
	return out, nil
}
