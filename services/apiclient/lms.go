package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/dtlearning/learninghub/core"
	"github.com/dtlearning/learninghub/core/classroom"
)

// LMSClient talks to the LMS: the bulk enrollment API and the user accounts
// API used to resolve emails to usernames.
type LMSClient struct {
	*baseClient
	baseURL string
}

var (
	_ classroom.EnrollmentGateway = (*LMSClient)(nil)
	_ classroom.DirectoryGateway  = (*LMSClient)(nil)
)

func NewLMSClient(conf *core.Config, logger core.Logger) *LMSClient {
	return &LMSClient{
		baseClient: newBaseClient(conf, logger),
		baseURL:    conf.Gateways.LMSBaseURL,
	}
}

type (
	bulkEnrollRequest struct {
		AutoEnroll    bool   `json:"auto_enroll"`
		EmailStudents bool   `json:"email_students"`
		Action        string `json:"action"`
		Courses       string `json:"courses"`
		Identifiers   string `json:"identifiers"`
	}

	accountResult struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}
)

// BulkEnroll enrolls the identified users in the given course runs:
// auto-enroll, no welcome email. The remote side treats already-enrolled users
// as a no-op.
func (c *LMSClient) BulkEnroll(ctx context.Context, courseRefs, identifiers []string) error {
	c.logger.Info(fmt.Sprintf("enrolling %d user(s) in %d course(s)", len(identifiers), len(courseRefs)))

	payload := bulkEnrollRequest{
		AutoEnroll:    true,
		EmailStudents: false,
		Action:        "enroll",
		Courses:       strings.Join(courseRefs, ","),
		Identifiers:   strings.Join(identifiers, ","),
	}
	endpoint := joinURL(c.baseURL, "api/bulk_enroll/v1/bulk_enroll")
	return c.do(ctx, http.MethodPost, endpoint, nil, payload, nil)
}

// RemoveEnrollment unenrolls a single identifier from the course run.
func (c *LMSClient) RemoveEnrollment(ctx context.Context, courseRef, identifier string) error {
	c.logger.Info(fmt.Sprintf("removing %s from course %s", identifier, courseRef))

	payload := bulkEnrollRequest{
		AutoEnroll:    true,
		EmailStudents: false,
		Action:        "unenroll",
		Courses:       courseRef,
		Identifiers:   identifier,
	}
	endpoint := joinURL(c.baseURL, "api/bulk_enroll/v1/bulk_enroll")
	return c.do(ctx, http.MethodPost, endpoint, nil, payload, nil)
}

// ResolveUsernames maps user emails to LMS usernames via the accounts API.
// Resolution is all-or-nothing: a staff roster with missing members would
// silently drop instructors, so any unresolved email fails the whole batch.
func (c *LMSClient) ResolveUsernames(ctx context.Context, emails []string) ([]string, error) {
	usernames := make([]string, 0, len(emails))
	for _, email := range emails {
		var accounts []accountResult
		query := url.Values{"email": []string{email}}
		endpoint := joinURL(c.baseURL, "api/user/v1/accounts")
		if err := c.do(ctx, http.MethodGet, endpoint, query, nil, &accounts); err != nil {
			return nil, err
		}
		if len(accounts) == 0 {
			return nil, errors.Errorf("no account found for %s", email)
		}
		usernames = append(usernames, accounts[0].Username)
	}
	return usernames, nil
}
