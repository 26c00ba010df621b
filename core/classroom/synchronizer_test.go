package classroom

import (
	"context"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

func newTestEnrollment(classroomID uuid.UUID, userID string, staff bool) Enrollment {
	now := time.Now().UTC()
	return Enrollment{ClassroomID: classroomID, UserID: userID, Staff: staff, Active: true, CreatedAt: now, UpdatedAt: now}
}

func TestSynchronizer_OnAssignmentCreated(t *testing.T) {
	clsID := uuid.New()
	repo := newFakeRepo()
	enrollment := &fakeEnrollment{}
	authoring := &fakeAuthoring{}
	directory := &fakeDirectory{}
	sync := NewSynchronizer(repo, enrollment, authoring, directory, &testLogger{})
	ctx := context.Background()

	asg := CourseAssignment{ClassroomID: clsID, CourseID: "course-v1:DTL+CS101+20210401120000000000"}

	t.Run("zero memberships is a no-op", func(t *testing.T) {
		sync.OnAssignmentCreated(ctx, asg)
		if len(enrollment.bulk) != 0 || len(authoring.teamUpdates) != 0 {
			t.Error("gateway calls issued for empty classroom")
		}
	})

	_, _ = repo.CreateEnrollment(ctx, newTestEnrollment(clsID, "a@school.test", false))
	_, _ = repo.CreateEnrollment(ctx, newTestEnrollment(clsID, "b@school.test", false))
	_, _ = repo.CreateEnrollment(ctx, newTestEnrollment(clsID, "t@school.test", true))
	inactive := newTestEnrollment(clsID, "gone@school.test", false)
	inactive.Active = false
	_, _ = repo.CreateEnrollment(ctx, inactive)

	t.Run("2 learners + 1 staff", func(t *testing.T) {
		sync.OnAssignmentCreated(ctx, asg)

		if len(enrollment.bulk) != 1 {
			t.Fatalf("BulkEnroll called %d time(s), want 1", len(enrollment.bulk))
		}
		call := enrollment.bulk[0]
		if !reflect.DeepEqual(call.courseRefs, []string{asg.CourseID}) {
			t.Errorf("BulkEnroll courses = %v", call.courseRefs)
		}
		learners := append([]string(nil), call.identifiers...)
		sort.Strings(learners)
		if !reflect.DeepEqual(learners, []string{"a@school.test", "b@school.test"}) {
			t.Errorf("BulkEnroll identifiers = %v", learners)
		}

		if len(authoring.teamUpdates) != 1 {
			t.Fatalf("UpdateCourseTeam called %d time(s), want 1", len(authoring.teamUpdates))
		}
		update := authoring.teamUpdates[0]
		if update.courseRef != asg.CourseID {
			t.Errorf("UpdateCourseTeam course = %q", update.courseRef)
		}
		// staff identifier resolved to username before the roster call
		if want := []TeamMember{{User: "t", Role: "instructor"}}; !reflect.DeepEqual(update.team, want) {
			t.Errorf("UpdateCourseTeam team = %v, want %v", update.team, want)
		}
	})
}

func TestSynchronizer_OnMembershipCreated(t *testing.T) {
	clsID := uuid.New()
	ctx := context.Background()

	t.Run("zero assignments is a no-op", func(t *testing.T) {
		enrollment := &fakeEnrollment{}
		authoring := &fakeAuthoring{}
		sync := NewSynchronizer(newFakeRepo(), enrollment, authoring, &fakeDirectory{}, &testLogger{})

		sync.OnMembershipCreated(ctx, newTestEnrollment(clsID, "a@school.test", false))
		if len(enrollment.bulk) != 0 || len(authoring.teamUpdates) != 0 {
			t.Error("gateway calls issued for classroom without assignments")
		}
	})

	t.Run("learner enrolled in all assigned courses", func(t *testing.T) {
		repo := newFakeRepo()
		enrollment := &fakeEnrollment{}
		sync := NewSynchronizer(repo, enrollment, &fakeAuthoring{}, &fakeDirectory{}, &testLogger{})

		_, _ = repo.CreateAssignment(ctx, CourseAssignment{ClassroomID: clsID, CourseID: "course-v1:DTL+CS101+R1"})
		_, _ = repo.CreateAssignment(ctx, CourseAssignment{ClassroomID: clsID, CourseID: "course-v1:DTL+CS102+R1"})

		enr, _ := repo.CreateEnrollment(ctx, newTestEnrollment(clsID, "a@school.test", false))
		sync.OnMembershipCreated(ctx, enr)

		if len(enrollment.bulk) != 1 {
			t.Fatalf("BulkEnroll called %d time(s), want 1", len(enrollment.bulk))
		}
		call := enrollment.bulk[0]
		if !reflect.DeepEqual(call.courseRefs, []string{"course-v1:DTL+CS101+R1", "course-v1:DTL+CS102+R1"}) {
			t.Errorf("BulkEnroll courses = %v", call.courseRefs)
		}
		if !reflect.DeepEqual(call.identifiers, []string{"a@school.test"}) {
			t.Errorf("BulkEnroll identifiers = %v", call.identifiers)
		}
	})

	t.Run("staff roster covers both courses with the complete staff set", func(t *testing.T) {
		repo := newFakeRepo()
		authoring := &fakeAuthoring{}
		directory := &fakeDirectory{}
		sync := NewSynchronizer(repo, &fakeEnrollment{}, authoring, directory, &testLogger{})

		_, _ = repo.CreateAssignment(ctx, CourseAssignment{ClassroomID: clsID, CourseID: "course-v1:DTL+CS101+R1"})
		_, _ = repo.CreateAssignment(ctx, CourseAssignment{ClassroomID: clsID, CourseID: "course-v1:DTL+CS102+R1"})
		_, _ = repo.CreateEnrollment(ctx, newTestEnrollment(clsID, "head@school.test", true))

		enr, _ := repo.CreateEnrollment(ctx, newTestEnrollment(clsID, "t@school.test", true))
		sync.OnMembershipCreated(ctx, enr)

		// exactly one staff pass: one resolution covering the roster...
		if len(directory.resolved) != 1 {
			t.Fatalf("ResolveUsernames called %d time(s), want 1", len(directory.resolved))
		}
		// ...then one roster replace per assigned course
		if len(authoring.teamUpdates) != 2 {
			t.Fatalf("UpdateCourseTeam called %d time(s), want 2", len(authoring.teamUpdates))
		}
		var refs []string
		for _, update := range authoring.teamUpdates {
			refs = append(refs, update.courseRef)
			if len(update.team) != 2 {
				t.Errorf("roster for %s has %d member(s), want the full staff set", update.courseRef, len(update.team))
			}
		}
		sort.Strings(refs)
		if !reflect.DeepEqual(refs, []string{"course-v1:DTL+CS101+R1", "course-v1:DTL+CS102+R1"}) {
			t.Errorf("rosters updated for %v", refs)
		}
	})
}

func TestSynchronizer_gatewayFailuresSwallowed(t *testing.T) {
	clsID := uuid.New()
	ctx := context.Background()
	repo := newFakeRepo()
	enrollment := &fakeEnrollment{bulkErr: errors.New("lms down")}
	authoring := &fakeAuthoring{teamErr: errors.New("studio down")}
	logger := &testLogger{}
	sync := NewSynchronizer(repo, enrollment, authoring, &fakeDirectory{}, logger)

	_, _ = repo.CreateEnrollment(ctx, newTestEnrollment(clsID, "a@school.test", false))
	_, _ = repo.CreateEnrollment(ctx, newTestEnrollment(clsID, "t@school.test", true))

	// must not panic or propagate
	sync.OnAssignmentCreated(ctx, CourseAssignment{ClassroomID: clsID, CourseID: "course-v1:DTL+CS101+R1"})

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.entries) == 0 {
		t.Error("gateway failures were not logged")
	}
}

func TestSynchronizer_directoryFailureSkipsRoster(t *testing.T) {
	clsID := uuid.New()
	ctx := context.Background()
	repo := newFakeRepo()
	authoring := &fakeAuthoring{}
	sync := NewSynchronizer(repo, &fakeEnrollment{}, authoring, &fakeDirectory{err: errors.New("no accounts api")}, &testLogger{})

	_, _ = repo.CreateEnrollment(ctx, newTestEnrollment(clsID, "t@school.test", true))
	sync.OnAssignmentCreated(ctx, CourseAssignment{ClassroomID: clsID, CourseID: "course-v1:DTL+CS101+R1"})

	if len(authoring.teamUpdates) != 0 {
		t.Error("roster updated with unresolved identifiers")
	}
}
