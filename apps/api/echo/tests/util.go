package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	. "github.com/dtlearning/learninghub/apps/api/echo"
	"github.com/dtlearning/learninghub/core"
	"github.com/dtlearning/learninghub/core/classroom"
	emailsvc "github.com/dtlearning/learninghub/services/email"
	inmemdb "github.com/dtlearning/learninghub/storage/database/inmem"
	testutil "github.com/dtlearning/learninghub/tests"
)

var (
	clsRepo  classroom.Repository
	remoteGW *fakeGateway

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
)

// fakeGateway stands in for all four remote services.
type fakeGateway struct {
	mu          sync.Mutex
	bulkEnrolls [][]string // identifiers per call
	teamUpdates []string   // course refs
}

var (
	_ classroom.CatalogGateway    = (*fakeGateway)(nil)
	_ classroom.AuthoringGateway  = (*fakeGateway)(nil)
	_ classroom.EnrollmentGateway = (*fakeGateway)(nil)
	_ classroom.DirectoryGateway  = (*fakeGateway)(nil)
)

func (g *fakeGateway) GetCourseRunType(context.Context, string) (string, error) {
	return "rt-uuid", nil
}

func (g *fakeGateway) CreateCourseRun(_ context.Context, spec classroom.RunSpec) (classroom.CourseRun, error) {
	return classroom.CourseRun{
		Key:   fmt.Sprintf("course-v1:%s+%s", spec.Course, spec.Term),
		Start: spec.Start,
		End:   spec.End,
	}, nil
}

func (g *fakeGateway) ListTemplateCourses(context.Context) ([]classroom.CourseInfo, error) {
	return []classroom.CourseInfo{
		{Key: "course-v1:DTL+CS101+TEMPLATE", Title: "Intro CS"},
		{Key: "course-v1:DTL+ART200+TEMPLATE", Title: "Digital Art"},
	}, nil
}

func (g *fakeGateway) PublishSchedule(context.Context, string, time.Time, time.Time) error {
	return nil
}

func (g *fakeGateway) UpdateCourseTeam(_ context.Context, courseRef string, _ []classroom.TeamMember) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.teamUpdates = append(g.teamUpdates, courseRef)
	return nil
}

func (g *fakeGateway) BulkEnroll(_ context.Context, _, identifiers []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bulkEnrolls = append(g.bulkEnrolls, identifiers)
	return nil
}

func (g *fakeGateway) RemoveEnrollment(context.Context, string, string) error {
	return nil
}

// callCounts reports how many bulk-enroll and team-update calls were made.
func (g *fakeGateway) callCounts() (bulk, team int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.bulkEnrolls), len(g.teamUpdates)
}

func (g *fakeGateway) ResolveUsernames(_ context.Context, emails []string) ([]string, error) {
	usernames := make([]string, 0, len(emails))
	for _, email := range emails {
		usernames = append(usernames, strings.SplitN(email, "@", 2)[0])
	}
	return usernames, nil
}

func setup(t *testing.T) Server {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger()

	validate := validator.New()
	translator := testutil.NewTranslator()
	core.InitValidators(validate, translator)
	classroom.InitValidators(validate, translator)

	// set up DB & repos
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	repo := inmemdb.NewClassroomRepository(db)
	clsRepo = repo

	// set up services
	gw := &fakeGateway{}
	remoteGW = gw
	provisioner := classroom.NewProvisioner(gw, gw, gw, logger)
	synchronizer := classroom.NewSynchronizer(repo, gw, gw, gw, logger)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	clsSvc := classroom.NewService(repo, provisioner, synchronizer, mailSvc, logger)

	// set up server
	return NewServer(
		&Options{
			DisableReqLogs: true,
			Conf:           conf,
			Logger:         logger,
			ClassroomSvc:   clsSvc,
			Catalog:        gw,
			Validate:       validate,
			Translator:     translator,
		},
	)
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, username string, schoolID uuid.UUID, roles ...string) string {
	claims := GetClaims(username, username+"@school.test", schoolID, roles...)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func unmarshall(data []byte, obj interface{}) error {
	return json.Unmarshal(data, obj)
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ObjectsAreEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
