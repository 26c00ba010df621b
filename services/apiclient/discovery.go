package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/dtlearning/learninghub/core"
	"github.com/dtlearning/learninghub/core/classroom"
	"github.com/dtlearning/learninghub/core/coursekey"
)

// templateCatalogNames are the discovery catalogs holding template courses.
var templateCatalogNames = []string{"Starter Pack", "Creator Pack", "Maker Pack"}

// DiscoveryClient talks to the course discovery service.
type DiscoveryClient struct {
	*baseClient
	apiURL string
}

var _ classroom.CatalogGateway = (*DiscoveryClient)(nil)

func NewDiscoveryClient(conf *core.Config, logger core.Logger) *DiscoveryClient {
	return &DiscoveryClient{
		baseClient: newBaseClient(conf, logger),
		apiURL:     conf.Gateways.DiscoveryAPIURL,
	}
}

type (
	courseRunResult struct {
		Key     string `json:"key"`
		RunType string `json:"run_type"`
		Start   string `json:"start"`
		End     string `json:"end"`
	}

	courseRunPage struct {
		Results []courseRunResult `json:"results"`
	}

	createRunRequest struct {
		Course     string `json:"course"`
		Term       string `json:"term"`
		Start      string `json:"start"`
		End        string `json:"end"`
		PacingType string `json:"pacing_type"`
		RunType    string `json:"run_type"`
		Status     string `json:"status"`
	}

	catalogResult struct {
		ID           int    `json:"id"`
		Name         string `json:"name"`
		CoursesCount int    `json:"courses_count"`
	}

	catalogPage struct {
		Results []catalogResult `json:"results"`
	}

	catalogCourse struct {
		CourseRuns []struct {
			Key              string `json:"key"`
			Title            string `json:"title"`
			ShortDescription string `json:"short_description"`
			Image            struct {
				Src string `json:"src"`
			} `json:"image"`
		} `json:"course_runs"`
	}

	catalogCoursePage struct {
		Results []catalogCourse `json:"results"`
	}
)

// GetCourseRunType returns the run type UUID associated with the template
// course, or "" when the course has no results yet.
func (c *DiscoveryClient) GetCourseRunType(ctx context.Context, templateRef string) (string, error) {
	c.logger.Info(fmt.Sprintf("getting run type for course %s", templateRef))

	var page courseRunPage
	query := url.Values{"keys": []string{templateRef}}
	if err := c.do(ctx, http.MethodGet, joinURL(c.apiURL, "course_runs")+"/", query, nil, &page); err != nil {
		return "", err
	}
	if len(page.Results) == 0 {
		return "", nil
	}
	return page.Results[0].RunType, nil
}

// CreateCourseRun creates a new run of the given course. A transport or HTTP
// failure here is the fatal provisioning case and is propagated.
func (c *DiscoveryClient) CreateCourseRun(ctx context.Context, spec classroom.RunSpec) (classroom.CourseRun, error) {
	c.logger.Info(fmt.Sprintf("creating course run from course %s", spec.Course))

	payload := createRunRequest{
		Course:     spec.Course,
		Term:       spec.Term,
		Start:      fmtDatetime(spec.Start),
		End:        fmtDatetime(spec.End),
		PacingType: spec.PacingType,
		RunType:    spec.RunType,
		Status:     spec.Status,
	}
	var result courseRunResult
	if err := c.do(ctx, http.MethodPost, joinURL(c.apiURL, "course_runs")+"/", nil, payload, &result); err != nil {
		return classroom.CourseRun{}, err
	}

	c.logger.Info(fmt.Sprintf("created course run %s", result.Key))
	return classroom.CourseRun{
		Key:   result.Key,
		Start: parseDatetime(result.Start, spec.Start),
		End:   parseDatetime(result.End, spec.End),
	}, nil
}

// ListTemplateCourses returns the template course runs available in the known
// catalogs for use as course assignments.
func (c *DiscoveryClient) ListTemplateCourses(ctx context.Context) ([]classroom.CourseInfo, error) {
	var catalogs catalogPage
	if err := c.do(ctx, http.MethodGet, joinURL(c.apiURL, "catalogs")+"/", nil, nil, &catalogs); err != nil {
		return nil, err
	}

	var catalogIDs []int
	for _, cat := range catalogs.Results {
		if cat.CoursesCount > 0 && isTemplateCatalog(cat.Name) {
			catalogIDs = append(catalogIDs, cat.ID)
		}
	}

	var courses []classroom.CourseInfo
	for _, id := range catalogIDs {
		var page catalogCoursePage
		endpoint := joinURL(c.apiURL, "catalogs", fmt.Sprintf("%d", id), "courses") + "/"
		if err := c.do(ctx, http.MethodGet, endpoint, nil, nil, &page); err != nil {
			return nil, err
		}
		for _, course := range page.Results {
			for _, run := range course.CourseRuns {
				if strings.Contains(run.Key, coursekey.TemplateRun) {
					courses = append(courses, classroom.CourseInfo{
						Key:              run.Key,
						Title:            run.Title,
						ShortDescription: run.ShortDescription,
						ImageURL:         run.Image.Src,
					})
				}
			}
		}
	}

	c.logger.Debug(fmt.Sprintf("found %d template course(s)", len(courses)))
	return courses, nil
}

func isTemplateCatalog(name string) bool {
	for _, known := range templateCatalogNames {
		if name == known {
			return true
		}
	}
	return false
}
