package classroom

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/dtlearning/learninghub/core"
)

type serviceFixture struct {
	repo       *fakeRepo
	catalog    *fakeCatalog
	authoring  *fakeAuthoring
	enrollment *fakeEnrollment
	svc        *Service
}

func newServiceFixture() *serviceFixture {
	repo := newFakeRepo()
	catalog := &fakeCatalog{}
	authoring := &fakeAuthoring{}
	enrollment := &fakeEnrollment{}
	logger := &testLogger{}
	prov := NewProvisioner(catalog, authoring, enrollment, logger)
	sync := NewSynchronizer(repo, enrollment, authoring, &fakeDirectory{}, logger)
	return &serviceFixture{
		repo:       repo,
		catalog:    catalog,
		authoring:  authoring,
		enrollment: enrollment,
		svc:        NewService(repo, prov, sync, nil, logger),
	}
}

func (f *serviceFixture) createClassroom(t *testing.T) Classroom {
	t.Helper()
	cls, err := f.svc.CreateClassroom(context.Background(), NewClassroom{SchoolID: uuid.New(), Name: "Science9"})
	if err != nil {
		t.Fatalf("CreateClassroom() failed: %v", err)
	}
	return cls
}

func TestService_CreateClassroom(t *testing.T) {
	f := newServiceFixture()

	cls := f.createClassroom(t)
	if cls.UUID == uuid.Nil {
		t.Error("classroom has no uuid")
	}
	if !cls.Active {
		t.Error("new classroom not active")
	}

	// empty name falls back to the default
	cls, err := f.svc.CreateClassroom(context.Background(), NewClassroom{SchoolID: uuid.New()})
	if err != nil {
		t.Fatalf("CreateClassroom() failed: %v", err)
	}
	if cls.Name != defaultName {
		t.Errorf("Name = %q, want %q", cls.Name, defaultName)
	}
}

func TestService_CreateEnrollment(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	cls := f.createClassroom(t)

	enr, err := f.svc.CreateEnrollment(ctx, NewEnrollment{ClassroomID: cls.UUID, UserID: " A@School.Test "})
	if err != nil {
		t.Fatalf("CreateEnrollment() failed: %v", err)
	}
	if enr.UserID != "a@school.test" {
		t.Errorf("UserID = %q, want cleaned and lowered", enr.UserID)
	}

	// duplicate membership is rejected, not re-created
	_, err = f.svc.CreateEnrollment(ctx, NewEnrollment{ClassroomID: cls.UUID, UserID: "a@school.test"})
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) || errors.Cause(vErr.Err) != ErrEnrollmentExists {
		t.Errorf("CreateEnrollment() error = %v, want ErrEnrollmentExists validation error", err)
	}

	// unknown classroom
	_, err = f.svc.CreateEnrollment(ctx, NewEnrollment{ClassroomID: uuid.New(), UserID: "b@school.test"})
	if errors.Cause(err) != ErrNotFound {
		t.Errorf("CreateEnrollment() error = %v, want ErrNotFound", err)
	}
}

func TestService_CreateEnrollment_reconciles(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	cls := f.createClassroom(t)

	if _, err := f.svc.CreateAssignment(ctx, NewAssignment{ClassroomID: cls.UUID, CourseID: "course-v1:DTL+CS101+TEMPLATE"}); err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}

	if _, err := f.svc.CreateEnrollment(ctx, NewEnrollment{ClassroomID: cls.UUID, UserID: "a@school.test"}); err != nil {
		t.Fatalf("CreateEnrollment() failed: %v", err)
	}

	if len(f.enrollment.bulk) != 1 {
		t.Fatalf("BulkEnroll called %d time(s), want 1", len(f.enrollment.bulk))
	}
	if got := f.enrollment.bulk[0].identifiers; len(got) != 1 || got[0] != "a@school.test" {
		t.Errorf("BulkEnroll identifiers = %v", got)
	}
}

func TestService_CreateAssignment(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	cls := f.createClassroom(t)

	asg, err := f.svc.CreateAssignment(ctx, NewAssignment{ClassroomID: cls.UUID, CourseID: "course-v1:DTL+CS101+TEMPLATE"})
	if err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	if strings.Contains(asg.CourseID, "TEMPLATE") {
		t.Errorf("persisted CourseID %q not resolved", asg.CourseID)
	}

	// a second assignment for the same template identity is rejected even
	// though the resolved references differ
	_, err = f.svc.CreateAssignment(ctx, NewAssignment{ClassroomID: cls.UUID, CourseID: "course-v1:DTL+CS101+TEMPLATE"})
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) || errors.Cause(vErr.Err) != ErrAssignmentExists {
		t.Errorf("CreateAssignment() error = %v, want ErrAssignmentExists validation error", err)
	}

	// malformed references are rejected up front
	_, err = f.svc.CreateAssignment(ctx, NewAssignment{ClassroomID: cls.UUID, CourseID: "garbage"})
	if !errors.As(err, &vErr) {
		t.Errorf("CreateAssignment() error = %v, want validation error", err)
	}
}

func TestService_CreateAssignment_provisioningFailureRejectsWrite(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	cls := f.createClassroom(t)

	f.catalog.createFn = func(RunSpec) (CourseRun, error) { return CourseRun{}, errors.New("HTTP 502") }

	_, err := f.svc.CreateAssignment(ctx, NewAssignment{ClassroomID: cls.UUID, CourseID: "course-v1:DTL+CS101+TEMPLATE"})
	if errors.Cause(err) != ErrProvisioningFailed {
		t.Fatalf("CreateAssignment() error = %v, want ErrProvisioningFailed", err)
	}

	// nothing persisted with a bogus reference
	assignments, _ := f.repo.FilterAssignments(ctx, cls.UUID)
	if len(assignments) != 0 {
		t.Errorf("%d assignment(s) persisted after failed provisioning", len(assignments))
	}
}

func TestService_CreateAssignment_concurrentSameTemplate(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	cls := f.createClassroom(t)

	var wg sync.WaitGroup
	results := make([]error, 10)
	for i := 0; i < len(results); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.svc.CreateAssignment(ctx, NewAssignment{ClassroomID: cls.UUID, CourseID: "course-v1:DTL+CS101+TEMPLATE"})
		}(i)
	}
	wg.Wait()

	var created int
	for _, err := range results {
		if err == nil {
			created++
		}
	}
	if created != 1 {
		t.Errorf("%d assignments created for one (classroom, template) pair", created)
	}
	assignments, _ := f.repo.FilterAssignments(ctx, cls.UUID)
	if len(assignments) != 1 {
		t.Errorf("%d assignment row(s) persisted, want 1", len(assignments))
	}
}

func TestService_Resync(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	cls := f.createClassroom(t)

	if _, err := f.svc.CreateAssignment(ctx, NewAssignment{ClassroomID: cls.UUID, CourseID: "course-v1:DTL+CS101+TEMPLATE"}); err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	if _, err := f.svc.CreateEnrollment(ctx, NewEnrollment{ClassroomID: cls.UUID, UserID: "a@school.test"}); err != nil {
		t.Fatalf("CreateEnrollment() failed: %v", err)
	}

	before := len(f.enrollment.bulk)
	if err := f.svc.Resync(ctx, cls.UUID); err != nil {
		t.Fatalf("Resync() failed: %v", err)
	}
	if len(f.enrollment.bulk) != before+1 {
		t.Errorf("Resync() issued %d bulk call(s), want 1", len(f.enrollment.bulk)-before)
	}
}

func TestService_Update(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	cls := f.createClassroom(t)

	// seed an assignment and a member so a stray trigger would have remote
	// work to do
	if _, err := f.svc.CreateAssignment(ctx, NewAssignment{ClassroomID: cls.UUID, CourseID: "course-v1:DTL+CS101+TEMPLATE"}); err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	if _, err := f.svc.CreateEnrollment(ctx, NewEnrollment{ClassroomID: cls.UUID, UserID: "a@school.test"}); err != nil {
		t.Fatalf("CreateEnrollment() failed: %v", err)
	}
	bulkBefore, teamBefore := len(f.enrollment.bulk), len(f.authoring.teamUpdates)

	inactive := false
	updated, err := f.svc.Update(ctx, cls.UUID, UpdateClassroom{Name: "Science 9B", Active: &inactive})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if updated.Name != "Science 9B" || updated.Active {
		t.Errorf("Update() = %+v", updated)
	}
	// the owning school never changes
	if updated.SchoolID != cls.SchoolID {
		t.Error("Update() changed the owning school")
	}

	// updates never reconcile; only creations do
	if len(f.enrollment.bulk) != bulkBefore || len(f.authoring.teamUpdates) != teamBefore {
		t.Errorf("Update() issued %d bulk and %d team call(s)", len(f.enrollment.bulk)-bulkBefore, len(f.authoring.teamUpdates)-teamBefore)
	}
}

func TestService_Unenroll(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	cls := f.createClassroom(t)

	if _, err := f.svc.CreateAssignment(ctx, NewAssignment{ClassroomID: cls.UUID, CourseID: "course-v1:DTL+CS101+TEMPLATE"}); err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	if _, err := f.svc.CreateEnrollment(ctx, NewEnrollment{ClassroomID: cls.UUID, UserID: "a@school.test", Staff: true}); err != nil {
		t.Fatalf("CreateEnrollment() failed: %v", err)
	}
	bulkBefore, teamBefore := len(f.enrollment.bulk), len(f.authoring.teamUpdates)
	removedBefore := len(f.enrollment.removed)

	if err := f.svc.Unenroll(ctx, cls.UUID, "A@School.Test"); err != nil {
		t.Fatalf("Unenroll() failed: %v", err)
	}

	enr, err := f.repo.GetEnrollment(ctx, cls.UUID, "a@school.test")
	if err != nil {
		t.Fatalf("GetEnrollment() failed: %v", err)
	}
	if enr.Active {
		t.Error("Unenroll() did not deactivate the membership")
	}

	// deactivation is local only; remote enrollments are left alone
	if len(f.enrollment.bulk) != bulkBefore || len(f.authoring.teamUpdates) != teamBefore {
		t.Errorf("Unenroll() issued %d bulk and %d team call(s)", len(f.enrollment.bulk)-bulkBefore, len(f.authoring.teamUpdates)-teamBefore)
	}
	if len(f.enrollment.removed) != removedBefore {
		t.Errorf("Unenroll() removed %d remote enrollment(s)", len(f.enrollment.removed)-removedBefore)
	}
}
