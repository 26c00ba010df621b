package classroom

import (
	"context"
	"time"
)

// Gateway contracts for the three remote services this engine writes to.
// Implementations live in services/apiclient; tests substitute fakes.

type (
	// RunSpec describes the course run to create from a template course.
	RunSpec struct {
		Course     string    // template identity, `<org>+<number>`
		Term       string    // derived run token
		Start      time.Time // UTC
		End        time.Time // UTC
		PacingType string
		RunType    string
		Status     string
	}

	// CourseRun is the catalog's record of a created run.
	CourseRun struct {
		Key   string
		Start time.Time
		End   time.Time
	}

	// TeamMember is one entry of a course's staff roster.
	TeamMember struct {
		User string `json:"user"`
		Role string `json:"role"`
	}

	// CourseInfo is a catalog listing entry for a template course.
	CourseInfo struct {
		Key              string `json:"key"`
		Title            string `json:"title"`
		ShortDescription string `json:"short_description"`
		ImageURL         string `json:"image_url"`
	}

	// CatalogGateway talks to the course discovery service.
	CatalogGateway interface {
		// GetCourseRunType returns the run type UUID associated with the
		// template course, or "" when the course has no results yet.
		GetCourseRunType(ctx context.Context, templateRef string) (string, error)
		// CreateCourseRun creates a new run; failure here is fatal to
		// provisioning and must be propagated.
		CreateCourseRun(ctx context.Context, spec RunSpec) (CourseRun, error)
		// ListTemplateCourses returns the template courses available for
		// course assignments.
		ListTemplateCourses(ctx context.Context) ([]CourseInfo, error)
	}

	// AuthoringGateway talks to the content authoring (studio) service.
	AuthoringGateway interface {
		// PublishSchedule pushes the run's start/end dates; run creation does
		// not publish them on its own.
		PublishSchedule(ctx context.Context, courseRef string, start, end time.Time) error
		// UpdateCourseTeam replaces the course's staff roster. Callers must
		// pass the complete desired set.
		UpdateCourseTeam(ctx context.Context, courseRef string, team []TeamMember) error
	}

	// EnrollmentGateway talks to the LMS enrollment API. Enrolling an
	// already-enrolled user is a remote no-op; idempotency is not
	// re-implemented locally.
	EnrollmentGateway interface {
		BulkEnroll(ctx context.Context, courseRefs, identifiers []string) error
		RemoveEnrollment(ctx context.Context, courseRef, identifier string) error
	}

	// DirectoryGateway resolves email identifiers to the username form
	// required by the staff roster API.
	DirectoryGateway interface {
		ResolveUsernames(ctx context.Context, emails []string) ([]string, error)
	}
)
