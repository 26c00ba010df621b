package classroom

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/dtlearning/learninghub/core"
	"github.com/dtlearning/learninghub/core/coursekey"
)

var ErrProvisioningFailed = errors.New("course run provisioning failed")

const (
	// runWindow is the fixed schedule policy: start now, end 90 days later.
	runWindow = 90 * 24 * time.Hour

	pacingSelfPaced = "self_paced"
	statusPublished = "published"

	// placeholderUser is the system account the catalog seeds new runs with;
	// it is removed from the learner list after creation.
	placeholderUser = "discovery"
)

// Provisioner turns a template course reference into a live, schedule-published
// course run. Retries of a whole Provision call are not de-duplicated here:
// each call derives a fresh run token, so a caller retrying after a reported
// failure may create a second run. Service serializes calls per
// (classroom, template) to keep single-process callers out of that trap.
type Provisioner struct {
	catalog    CatalogGateway
	authoring  AuthoringGateway
	enrollment EnrollmentGateway
	logger     core.Logger

	mu        sync.Mutex
	lastToken string
	nowFunc   func() time.Time // mockable
}

func NewProvisioner(catalog CatalogGateway, authoring AuthoringGateway, enrollment EnrollmentGateway, logger core.Logger) *Provisioner {
	return &Provisioner{
		catalog:    catalog,
		authoring:  authoring,
		enrollment: enrollment,
		logger:     logger,
		nowFunc:    time.Now,
	}
}

// Provision resolves templateRef to a concrete course run reference, creating
// the run remotely if needed. Non-template references pass through unchanged.
// Only a failed creation call is fatal; schedule publishing and placeholder
// cleanup are best-effort.
func (p *Provisioner) Provision(ctx context.Context, templateRef string, cls Classroom) (string, error) {
	key, err := coursekey.Parse(templateRef)
	if err != nil {
		return "", err
	}
	if !key.IsTemplate() {
		// already a concrete run; link it directly to the classroom
		return templateRef, nil
	}

	runType, err := p.catalog.GetCourseRunType(ctx, templateRef)
	if err != nil {
		// a course may have no discoverable run type yet; proceed with default
		p.logger.Warn(fmt.Sprintf("no run type found for %s, using default: %v", templateRef, err))
		runType = ""
	}

	start := p.now().UTC()
	end := start.Add(runWindow)

	run, err := p.catalog.CreateCourseRun(ctx, RunSpec{
		Course:     key.Template().String(),
		Term:       p.nextRunToken(start),
		Start:      start,
		End:        end,
		PacingType: pacingSelfPaced,
		RunType:    runType,
		Status:     statusPublished,
	})
	if err != nil {
		p.logger.Error(fmt.Sprintf("creating course run from %s for classroom %s: %v", templateRef, cls.UUID, err), err)
		return "", ErrProvisioningFailed
	}
	// A run the catalog reports without a usable key is as fatal as a failed
	// call: the returned reference is what gets persisted.
	if created, err := coursekey.Parse(run.Key); err != nil || created.IsTemplate() {
		p.logger.Error(fmt.Sprintf("catalog returned unusable run key %q for %s", run.Key, templateRef), err)
		return "", ErrProvisioningFailed
	}

	// Run creation does not publish the schedule; push the dates through the
	// authoring API as a second write. A created-but-unpublished run beats no
	// run, so failures only degrade.
	if err = p.authoring.PublishSchedule(ctx, run.Key, run.Start, run.End); err != nil {
		p.logger.Error(fmt.Sprintf("publishing schedule for %s: %v", run.Key, err), err)
	}

	// The catalog seeds the new run with its own system account as sole
	// learner; drop it.
	if err = p.enrollment.RemoveEnrollment(ctx, run.Key, placeholderUser); err != nil {
		p.logger.Error(fmt.Sprintf("removing placeholder user from %s: %v", run.Key, err), err)
	}

	return run.Key, nil
}

func (p *Provisioner) now() time.Time {
	return p.nowFunc()
}

// nextRunToken derives a run token from ts, bumping the timestamp by 1µs
// while the token collides with the previous one issued by this process.
func (p *Provisioner) nextRunToken(ts time.Time) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	token := coursekey.DeriveRunToken(ts)
	for token <= p.lastToken && p.lastToken != "" {
		ts = ts.Add(time.Microsecond)
		token = coursekey.DeriveRunToken(ts)
	}
	p.lastToken = token
	return token
}
