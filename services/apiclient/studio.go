package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dtlearning/learninghub/core"
	"github.com/dtlearning/learninghub/core/classroom"
)

// StudioClient talks to the content authoring (studio) service.
type StudioClient struct {
	*baseClient
	baseURL string
}

var _ classroom.AuthoringGateway = (*StudioClient)(nil)

func NewStudioClient(conf *core.Config, logger core.Logger) *StudioClient {
	return &StudioClient{
		baseClient: newBaseClient(conf, logger),
		baseURL:    conf.Gateways.StudioBaseURL,
	}
}

type (
	scheduleBody struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}

	schedulePatch struct {
		Schedule scheduleBody `json:"schedule"`
	}

	teamPatch struct {
		Team []classroom.TeamMember `json:"team"`
	}
)

// PublishSchedule force-publishes the run's start/end dates. Run creation
// leaves the schedule unpublished until a staff member updates it from studio;
// patching it through this API publishes it without that manual step.
func (c *StudioClient) PublishSchedule(ctx context.Context, courseRef string, start, end time.Time) error {
	c.logger.Info(fmt.Sprintf("publishing schedule for course run %s", courseRef))

	patch := schedulePatch{Schedule: scheduleBody{Start: fmtDatetime(start), End: fmtDatetime(end)}}
	return c.patchCourseRun(ctx, courseRef, patch)
}

// UpdateCourseTeam replaces the course run's staff roster.
func (c *StudioClient) UpdateCourseTeam(ctx context.Context, courseRef string, team []classroom.TeamMember) error {
	c.logger.Info(fmt.Sprintf("setting %d team member(s) on course run %s", len(team), courseRef))

	if team == nil {
		team = []classroom.TeamMember{}
	}
	return c.patchCourseRun(ctx, courseRef, teamPatch{Team: team})
}

func (c *StudioClient) patchCourseRun(ctx context.Context, courseRef string, payload interface{}) error {
	endpoint := joinURL(c.baseURL, "api/v1/course_runs", courseRef) + "/"
	return c.do(ctx, http.MethodPatch, endpoint, nil, payload, nil)
}
