package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtlearning/learninghub/core"
	"github.com/dtlearning/learninghub/core/classroom"
)

type nopLogger struct{}

func (nopLogger) Enable(bool)                        {}
func (nopLogger) Debug(string, ...interface{})       {}
func (nopLogger) Info(string, ...interface{})        {}
func (nopLogger) Warn(string, ...interface{})        {}
func (nopLogger) Error(string, ...interface{})       {}
func (nopLogger) Fatal(msg string, _ ...interface{}) { panic(msg) }

func testConf(baseURL string) *core.Config {
	return &core.Config{
		Gateways: core.GatewayConfig{
			LMSBaseURL:      baseURL,
			StudioBaseURL:   baseURL,
			DiscoveryAPIURL: baseURL + "/api/v1/",
			Timeout:         2 * time.Second,
			MaxRetries:      3,
		},
	}
}

func TestBaseClient_retriesTransientFailures(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"results":[{"run_type":"rt-uuid"}]}`))
	}))
	defer srv.Close()

	client := NewDiscoveryClient(testConf(srv.URL), nopLogger{})
	runType, err := client.GetCourseRunType(context.Background(), "course-v1:DTL+CS101+TEMPLATE")
	require.NoError(t, err)
	assert.Equal(t, "rt-uuid", runType)
	assert.Equal(t, 3, calls)
}

func TestBaseClient_neverRetries4xx(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewDiscoveryClient(testConf(srv.URL), nopLogger{})
	_, err := client.GetCourseRunType(context.Background(), "course-v1:DTL+CS101+TEMPLATE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
	assert.Equal(t, 1, calls)
}

func TestDiscoveryClient_GetCourseRunType_absent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "course-v1:DTL+CS101+TEMPLATE", r.URL.Query().Get("keys"))
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	client := NewDiscoveryClient(testConf(srv.URL), nopLogger{})
	runType, err := client.GetCourseRunType(context.Background(), "course-v1:DTL+CS101+TEMPLATE")
	require.NoError(t, err)
	assert.Empty(t, runType)
}

func TestDiscoveryClient_CreateCourseRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/course_runs/", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "DTL+CS101", body["course"])
		assert.Equal(t, "20210401120000000000", body["term"])
		assert.Equal(t, "self_paced", body["pacing_type"])
		assert.Equal(t, "published", body["status"])
		assert.Equal(t, "2021-04-01T12:00:00", body["start"])

		_, _ = w.Write([]byte(`{"key":"course-v1:DTL+CS101+20210401120000000000","start":"2021-04-01T12:00:00","end":"2021-06-30T12:00:00"}`))
	}))
	defer srv.Close()

	client := NewDiscoveryClient(testConf(srv.URL), nopLogger{})
	start := time.Date(2021, 4, 1, 12, 0, 0, 0, time.UTC)
	run, err := client.CreateCourseRun(context.Background(), classroom.RunSpec{
		Course:     "DTL+CS101",
		Term:       "20210401120000000000",
		Start:      start,
		End:        start.Add(90 * 24 * time.Hour),
		PacingType: "self_paced",
		Status:     "published",
	})
	require.NoError(t, err)
	assert.Equal(t, "course-v1:DTL+CS101+20210401120000000000", run.Key)
	assert.Equal(t, time.Date(2021, 6, 30, 12, 0, 0, 0, time.UTC), run.End)
}

func TestDiscoveryClient_ListTemplateCourses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/catalogs/":
			_, _ = w.Write([]byte(`{"results":[
				{"id":1,"name":"Starter Pack","courses_count":2},
				{"id":2,"name":"Internal","courses_count":5},
				{"id":3,"name":"Maker Pack","courses_count":0}
			]}`))
		case "/api/v1/catalogs/1/courses/":
			_, _ = w.Write([]byte(`{"results":[{"course_runs":[
				{"key":"course-v1:DTL+CS101+TEMPLATE","title":"Intro CS","short_description":"CS","image":{"src":"http://img/cs.png"}},
				{"key":"course-v1:DTL+CS101+2020T1","title":"Intro CS (old run)"}
			]}]}`))
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewDiscoveryClient(testConf(srv.URL), nopLogger{})
	courses, err := client.ListTemplateCourses(context.Background())
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "course-v1:DTL+CS101+TEMPLATE", courses[0].Key)
	assert.Equal(t, "Intro CS", courses[0].Title)
	assert.Equal(t, "http://img/cs.png", courses[0].ImageURL)
}

func TestStudioClient_PublishSchedule(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/api/v1/course_runs/course-v1:DTL+CS101+R1/", r.URL.Path)

		var body schedulePatch
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "2021-04-01T12:00:00", body.Schedule.Start)
		assert.Equal(t, "2021-06-30T12:00:00", body.Schedule.End)
	}))
	defer srv.Close()

	client := NewStudioClient(testConf(srv.URL), nopLogger{})
	err := client.PublishSchedule(context.Background(),
		"course-v1:DTL+CS101+R1",
		time.Date(2021, 4, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2021, 6, 30, 12, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
}

func TestStudioClient_UpdateCourseTeam(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body teamPatch
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []classroom.TeamMember{
			{User: "teacher1", Role: "instructor"},
			{User: "teacher2", Role: "instructor"},
		}, body.Team)
	}))
	defer srv.Close()

	client := NewStudioClient(testConf(srv.URL), nopLogger{})
	err := client.UpdateCourseTeam(context.Background(), "course-v1:DTL+CS101+R1", []classroom.TeamMember{
		{User: "teacher1", Role: "instructor"},
		{User: "teacher2", Role: "instructor"},
	})
	require.NoError(t, err)
}

func TestLMSClient_BulkEnroll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/bulk_enroll/v1/bulk_enroll", r.URL.Path)

		var body bulkEnrollRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body.AutoEnroll)
		assert.False(t, body.EmailStudents)
		assert.Equal(t, "enroll", body.Action)
		assert.Equal(t, "course-v1:DTL+CS101+R1,course-v1:DTL+CS102+R1", body.Courses)
		assert.Equal(t, "a@school.test,b@school.test", body.Identifiers)
	}))
	defer srv.Close()

	client := NewLMSClient(testConf(srv.URL), nopLogger{})
	err := client.BulkEnroll(context.Background(),
		[]string{"course-v1:DTL+CS101+R1", "course-v1:DTL+CS102+R1"},
		[]string{"a@school.test", "b@school.test"},
	)
	require.NoError(t, err)
}

func TestLMSClient_RemoveEnrollment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bulkEnrollRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "unenroll", body.Action)
		assert.Equal(t, "discovery", body.Identifiers)
	}))
	defer srv.Close()

	client := NewLMSClient(testConf(srv.URL), nopLogger{})
	require.NoError(t, client.RemoveEnrollment(context.Background(), "course-v1:DTL+CS101+R1", "discovery"))
}

func TestLMSClient_ResolveUsernames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/user/v1/accounts", r.URL.Path)
		switch r.URL.Query().Get("email") {
		case "a@school.test":
			_, _ = w.Write([]byte(`[{"username":"usera","email":"a@school.test"}]`))
		case "missing@school.test":
			_, _ = w.Write([]byte(`[]`))
		}
	}))
	defer srv.Close()

	client := NewLMSClient(testConf(srv.URL), nopLogger{})

	usernames, err := client.ResolveUsernames(context.Background(), []string{"a@school.test"})
	require.NoError(t, err)
	assert.Equal(t, []string{"usera"}, usernames)

	// any unresolved email fails the batch
	_, err = client.ResolveUsernames(context.Background(), []string{"a@school.test", "missing@school.test"})
	require.Error(t, err)
}
