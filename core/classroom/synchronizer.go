package classroom

import (
	"context"
	"fmt"
	"sync"

	"github.com/dtlearning/learninghub/core"
)

const instructorRole = "instructor"

// Synchronizer keeps remote enrollments consistent with local memberships and
// course assignments: for every active enrollment and every assignment of a
// classroom there must exist a remote enrollment through the path matching the
// member's role. All remote pushes are best-effort; local state stays
// authoritative and a failed push leaves the system valid but incomplete until
// a later write or an explicit resync.
type Synchronizer struct {
	repo       Repository
	enrollment EnrollmentGateway
	authoring  AuthoringGateway
	directory  DirectoryGateway
	logger     core.Logger
}

func NewSynchronizer(repo Repository, enrollment EnrollmentGateway, authoring AuthoringGateway, directory DirectoryGateway, logger core.Logger) *Synchronizer {
	return &Synchronizer{
		repo:       repo,
		enrollment: enrollment,
		authoring:  authoring,
		directory:  directory,
		logger:     logger,
	}
}

// OnAssignmentCreated enrolls all existing active members of the classroom in
// the newly assigned course run. Zero memberships is a no-op. The learner and
// staff pushes run concurrently; both are joined before returning.
func (s *Synchronizer) OnAssignmentCreated(ctx context.Context, asg CourseAssignment) {
	active := true
	enrollments, err := s.repo.FilterEnrollments(ctx, EnrollmentFilter{ClassroomID: asg.ClassroomID, Active: &active})
	if err != nil {
		s.logger.Error(fmt.Sprintf("listing enrollments for classroom %s: %v", asg.ClassroomID, err), err)
		return
	}
	if len(enrollments) == 0 {
		return
	}

	var learners, staff []string
	for _, enr := range enrollments {
		if enr.Staff {
			staff = append(staff, enr.UserID)
		} else {
			learners = append(learners, enr.UserID)
		}
	}

	s.logger.Info(fmt.Sprintf("enrolling %d learner(s) and %d staff in course %s", len(learners), len(staff), asg.CourseID))

	courseRefs := []string{asg.CourseID}

	var wg sync.WaitGroup
	if len(learners) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.enrollLearners(ctx, courseRefs, learners)
		}()
	}
	if len(staff) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.enrollStaff(ctx, courseRefs, staff)
		}()
	}
	wg.Wait()
}

// OnMembershipCreated enrolls the new member in all course runs already
// assigned to the classroom. Zero assignments is a no-op.
func (s *Synchronizer) OnMembershipCreated(ctx context.Context, enr Enrollment) {
	assignments, err := s.repo.FilterAssignments(ctx, enr.ClassroomID)
	if err != nil {
		s.logger.Error(fmt.Sprintf("listing assignments for classroom %s: %v", enr.ClassroomID, err), err)
		return
	}
	if len(assignments) == 0 {
		return
	}

	courseRefs := make([]string, 0, len(assignments))
	for _, asg := range assignments {
		courseRefs = append(courseRefs, asg.CourseID)
	}

	s.logger.Info(fmt.Sprintf("enrolling user %s in %d course(s)", enr.UserID, len(assignments)))

	if !enr.Staff {
		s.enrollLearners(ctx, courseRefs, []string{enr.UserID})
		return
	}

	// The roster update replaces the remote staff set, so it must carry the
	// classroom's complete active staff, not just the new member.
	s.enrollStaff(ctx, courseRefs, s.activeStaff(ctx, enr))
}

// activeStaff returns the classroom's full active staff set, falling back to
// the triggering member alone if the query fails.
func (s *Synchronizer) activeStaff(ctx context.Context, enr Enrollment) []string {
	active, staffOnly := true, true
	enrollments, err := s.repo.FilterEnrollments(ctx, EnrollmentFilter{ClassroomID: enr.ClassroomID, Staff: &staffOnly, Active: &active})
	if err != nil {
		s.logger.Error(fmt.Sprintf("listing staff for classroom %s: %v", enr.ClassroomID, err), err)
		return []string{enr.UserID}
	}
	staff := make([]string, 0, len(enrollments))
	seen := false
	for _, e := range enrollments {
		staff = append(staff, e.UserID)
		seen = seen || e.UserID == enr.UserID
	}
	if !seen {
		staff = append(staff, enr.UserID)
	}
	return staff
}

// enrollLearners delegates to the LMS bulk enrollment path: auto-enroll, no
// welcome email. Gateway failure is logged and swallowed; enrollment is
// retryable externally and no retry queue is kept in-process.
func (s *Synchronizer) enrollLearners(ctx context.Context, courseRefs, identifiers []string) {
	if err := s.enrollment.BulkEnroll(ctx, courseRefs, identifiers); err != nil {
		s.logger.Error(fmt.Sprintf("bulk enrolling %d user(s) in %d course(s): %v", len(identifiers), len(courseRefs), err), err)
	}
}

// enrollStaff resolves emails to usernames and sets each course's staff roster
// to the given set with the instructor role. This is a replace, not an append.
func (s *Synchronizer) enrollStaff(ctx context.Context, courseRefs, identifiers []string) {
	if len(identifiers) == 0 {
		return
	}

	usernames, err := s.directory.ResolveUsernames(ctx, identifiers)
	if err != nil {
		s.logger.Error(fmt.Sprintf("resolving %d staff username(s): %v", len(identifiers), err), err)
		return
	}

	team := make([]TeamMember, 0, len(usernames))
	for _, username := range usernames {
		team = append(team, TeamMember{User: username, Role: instructorRole})
	}

	s.logger.Info(fmt.Sprintf("setting %d instructor(s) on %d course(s)", len(team), len(courseRefs)))

	for _, ref := range courseRefs {
		if err := s.authoring.UpdateCourseTeam(ctx, ref, team); err != nil {
			s.logger.Error(fmt.Sprintf("updating course team for %s: %v", ref, err), err)
		}
	}
}
