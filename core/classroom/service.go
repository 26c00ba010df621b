package classroom

import (
	"context"
	"fmt"
	"net/mail"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/dtlearning/learninghub/core"
	"github.com/dtlearning/learninghub/core/coursekey"
)

type (
	Repository interface {
		CreateClassroom(ctx context.Context, cls Classroom) (Classroom, error)
		GetClassroomByUUID(ctx context.Context, id uuid.UUID) (Classroom, error)
		QueryAllClassrooms(ctx context.Context, orderings ...core.DBOrdering) ([]Classroom, error)
		// FilterClassrooms returns the classrooms owned by the given school.
		FilterClassrooms(ctx context.Context, schoolID uuid.UUID, orderings ...core.DBOrdering) ([]Classroom, error)
		UpdateClassroom(ctx context.Context, cls Classroom, active *bool) (Classroom, error)
		DeleteClassroomsByUUID(ctx context.Context, ids ...uuid.UUID) error

		CreateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
		GetEnrollment(ctx context.Context, classroomID uuid.UUID, userID string) (Enrollment, error)
		// FilterEnrollments applies AND operation on set EnrollmentFilter fields.
		FilterEnrollments(ctx context.Context, filter EnrollmentFilter) ([]Enrollment, error)
		DeactivateEnrollment(ctx context.Context, classroomID uuid.UUID, userID string) error

		CreateAssignment(ctx context.Context, asg CourseAssignment) (CourseAssignment, error)
		FilterAssignments(ctx context.Context, classroomID uuid.UUID) ([]CourseAssignment, error)
	}

	ServiceInterface interface {
		CreateClassroom(ctx context.Context, nc NewClassroom) (Classroom, error)
		GetByUUID(ctx context.Context, id uuid.UUID) (Classroom, error)
		QueryAll(ctx context.Context, orderings ...core.DBOrdering) ([]Classroom, error)
		Filter(ctx context.Context, schoolID uuid.UUID, orderings ...core.DBOrdering) ([]Classroom, error)
		Update(ctx context.Context, id uuid.UUID, uc UpdateClassroom) (Classroom, error)
		Delete(ctx context.Context, ids ...uuid.UUID) error

		CreateEnrollment(ctx context.Context, ne NewEnrollment) (Enrollment, error)
		QueryEnrollments(ctx context.Context, classroomID uuid.UUID) ([]Enrollment, error)
		Unenroll(ctx context.Context, classroomID uuid.UUID, userID string) error

		CreateAssignment(ctx context.Context, na NewAssignment) (CourseAssignment, error)
		QueryAssignments(ctx context.Context, classroomID uuid.UUID) ([]CourseAssignment, error)

		Resync(ctx context.Context, classroomID uuid.UUID) error
	}

	Service struct {
		repo        Repository
		provisioner *Provisioner
		sync        *Synchronizer
		mailSvc     core.EmailService
		logger      core.Logger

		// provisioning advisory locks, keyed per (classroom, template).
		// Process-local only; the store's unique constraints remain the
		// backstop across processes.
		locksMu sync.Mutex
		locks   map[string]*sync.Mutex
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, provisioner *Provisioner, synchronizer *Synchronizer, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{
		repo:        repo,
		provisioner: provisioner,
		sync:        synchronizer,
		mailSvc:     mailSvc,
		logger:      logger,
		locks:       make(map[string]*sync.Mutex),
	}
}

// Classrooms

func (svc *Service) CreateClassroom(ctx context.Context, nc NewClassroom) (Classroom, error) {
	now := time.Now().UTC()
	name := core.CleanString(nc.Name)
	if name == "" {
		name = defaultName
	}
	cls := Classroom{
		UUID:      uuid.New(),
		SchoolID:  nc.SchoolID,
		Name:      name,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateClassroom(ctx, cls)
}

func (svc *Service) GetByUUID(ctx context.Context, id uuid.UUID) (Classroom, error) {
	return svc.repo.GetClassroomByUUID(ctx, id)
}

func (svc *Service) QueryAll(ctx context.Context, orderings ...core.DBOrdering) ([]Classroom, error) {
	return svc.repo.QueryAllClassrooms(ctx, orderings...)
}

func (svc *Service) Filter(ctx context.Context, schoolID uuid.UUID, orderings ...core.DBOrdering) ([]Classroom, error) {
	return svc.repo.FilterClassrooms(ctx, schoolID, orderings...)
}

// Update changes the classroom's name and/or active flag; the owning school is
// immutable after creation.
func (svc *Service) Update(ctx context.Context, id uuid.UUID, uc UpdateClassroom) (Classroom, error) {
	cls := Classroom{
		UUID:      id,
		Name:      core.CleanString(uc.Name),
		UpdatedAt: time.Now().UTC(),
	}
	return svc.repo.UpdateClassroom(ctx, cls, uc.Active)
}

func (svc *Service) Delete(ctx context.Context, ids ...uuid.UUID) error {
	return svc.repo.DeleteClassroomsByUUID(ctx, ids...)
}

// Enrollments

// CreateEnrollment persists the membership, then reconciles it against the
// classroom's existing course assignments. Reconciliation failures never roll
// back the local write.
func (svc *Service) CreateEnrollment(ctx context.Context, ne NewEnrollment) (Enrollment, error) {
	if _, err := svc.repo.GetClassroomByUUID(ctx, ne.ClassroomID); err != nil {
		return Enrollment{}, err
	}

	userID := core.CleanString(ne.UserID, true /* lower */)
	if _, err := svc.repo.GetEnrollment(ctx, ne.ClassroomID, userID); err == nil {
		return Enrollment{}, core.NewValidationError(ErrEnrollmentExists, core.FieldError{Field: "user_id", Error: ErrEnrollmentExists.Error()})
	} else if errors.Cause(err) != ErrNotFound {
		return Enrollment{}, err
	}

	now := time.Now().UTC()
	enr, err := svc.repo.CreateEnrollment(ctx, Enrollment{
		ClassroomID: ne.ClassroomID,
		UserID:      userID,
		Staff:       ne.Staff,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Enrollment{}, err
	}

	svc.sync.OnMembershipCreated(ctx, enr)

	if enr.Staff {
		svc.notifyStaffEnrolled(ctx, enr)
	}
	return enr, nil
}

func (svc *Service) QueryEnrollments(ctx context.Context, classroomID uuid.UUID) ([]Enrollment, error) {
	return svc.repo.FilterEnrollments(ctx, EnrollmentFilter{ClassroomID: classroomID})
}

// Unenroll deactivates the membership. It does not remove remote enrollments
// and never fires reconciliation; reactivation is an update, not a creation.
func (svc *Service) Unenroll(ctx context.Context, classroomID uuid.UUID, userID string) error {
	return svc.repo.DeactivateEnrollment(ctx, classroomID, core.CleanString(userID, true))
}

// Assignments

// CreateAssignment provisions a course run for the referenced course (template
// references are cloned into a fresh run first), persists the assignment with
// the resolved reference, then enrolls the classroom's existing members in it.
// A failed provisioning call rejects the whole write: an assignment must never
// be persisted with a template reference masquerading as resolved.
func (svc *Service) CreateAssignment(ctx context.Context, na NewAssignment) (CourseAssignment, error) {
	cls, err := svc.repo.GetClassroomByUUID(ctx, na.ClassroomID)
	if err != nil {
		return CourseAssignment{}, err
	}

	courseRef := core.CleanString(na.CourseID)
	key, err := coursekey.Parse(courseRef)
	if err != nil {
		return CourseAssignment{}, core.NewValidationError(err, core.FieldError{Field: "course_id", Error: coursekey.ErrInvalidKey.Error()})
	}

	unlock := svc.lockTemplate(cls.UUID, key.Template())
	defer unlock()

	if err = svc.checkAssignmentUniqueness(ctx, cls.UUID, key.Template()); err != nil {
		return CourseAssignment{}, err
	}

	resolvedRef, err := svc.provisioner.Provision(ctx, courseRef, cls)
	if err != nil {
		return CourseAssignment{}, err
	}

	now := time.Now().UTC()
	asg, err := svc.repo.CreateAssignment(ctx, CourseAssignment{
		ClassroomID: cls.UUID,
		CourseID:    resolvedRef,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return CourseAssignment{}, err
	}

	svc.sync.OnAssignmentCreated(ctx, asg)
	return asg, nil
}

func (svc *Service) QueryAssignments(ctx context.Context, classroomID uuid.UUID) ([]CourseAssignment, error) {
	return svc.repo.FilterAssignments(ctx, classroomID)
}

// Resync re-pushes every assignment's enrollments for the classroom; the
// external correction path for degraded remote state.
func (svc *Service) Resync(ctx context.Context, classroomID uuid.UUID) error {
	assignments, err := svc.repo.FilterAssignments(ctx, classroomID)
	if err != nil {
		return err
	}
	for _, asg := range assignments {
		svc.sync.OnAssignmentCreated(ctx, asg)
	}
	return nil
}

// checkAssignmentUniqueness rejects a second assignment whose template
// identity (org+number) matches an existing one, regardless of run segment.
func (svc *Service) checkAssignmentUniqueness(ctx context.Context, classroomID uuid.UUID, template coursekey.TemplateID) error {
	assignments, err := svc.repo.FilterAssignments(ctx, classroomID)
	if err != nil {
		return err
	}
	for _, asg := range assignments {
		existing, err := coursekey.Parse(asg.CourseID)
		if err != nil {
			continue
		}
		if existing.Template() == template {
			return core.NewValidationError(ErrAssignmentExists, core.FieldError{Field: "course_id", Error: ErrAssignmentExists.Error()})
		}
	}
	return nil
}

// lockTemplate serializes provisioning per (classroom, template) so two
// concurrent requests cannot both observe "no existing run" and each create
// one.
func (svc *Service) lockTemplate(classroomID uuid.UUID, template coursekey.TemplateID) (unlock func()) {
	key := classroomID.String() + "|" + template.String()

	svc.locksMu.Lock()
	mu, ok := svc.locks[key]
	if !ok {
		mu = new(sync.Mutex)
		svc.locks[key] = mu
	}
	svc.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

func (svc *Service) notifyStaffEnrolled(ctx context.Context, enr Enrollment) {
	if svc.mailSvc == nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Address: enr.UserID}},
		Subject: "You have been added as a teacher",
		BodyStr: fmt.Sprintf("You were added as a teacher of classroom %s. Course access will appear in your dashboard shortly.", enr.ClassroomID),
	})
}
