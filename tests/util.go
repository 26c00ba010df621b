package testutil

import (
	"context"
	"encoding/json"
	"log"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/google/uuid"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/dtlearning/learninghub/core"
	"github.com/dtlearning/learninghub/core/classroom"
)

// NewConfig returns the app config tuned for tests.
func NewConfig() *core.Config {
	conf := core.NewConfig("test")
	conf.Debug = false
	conf.TestMode = true
	return conf
}

func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// NewLogger returns a core.Logger that discards everything but fatals.
func NewLogger() core.Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Enable(bool)                        {}
func (nopLogger) Debug(string, ...interface{})       {}
func (nopLogger) Info(string, ...interface{})        {}
func (nopLogger) Warn(string, ...interface{})        {}
func (nopLogger) Error(string, ...interface{})       {}
func (nopLogger) Fatal(msg string, _ ...interface{}) { log.Fatal(msg) }

// Fixtures

func CreateClassroom(t *testing.T, repo classroom.Repository, schoolID uuid.UUID, name string) classroom.Classroom {
	t.Helper()
	now := time.Now().UTC()
	cls, err := repo.CreateClassroom(context.Background(), classroom.Classroom{
		UUID:      uuid.New(),
		SchoolID:  schoolID,
		Name:      name,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateClassroom() failed: %v", err)
	}
	return cls
}

func CreateEnrollment(t *testing.T, repo classroom.Repository, cls classroom.Classroom, userID string, staff bool) classroom.Enrollment {
	t.Helper()
	now := time.Now().UTC()
	enr, err := repo.CreateEnrollment(context.Background(), classroom.Enrollment{
		ClassroomID: cls.UUID,
		UserID:      userID,
		Staff:       staff,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("CreateEnrollment() failed: %v", err)
	}
	return enr
}

func CreateAssignment(t *testing.T, repo classroom.Repository, cls classroom.Classroom, courseID string) classroom.CourseAssignment {
	t.Helper()
	now := time.Now().UTC()
	asg, err := repo.CreateAssignment(context.Background(), classroom.CourseAssignment{
		ClassroomID: cls.UUID,
		CourseID:    courseID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	return asg
}

// AssertJSONEq fails with a line diff when the two JSON payloads differ
// structurally.
func AssertJSONEq(t *testing.T, want, got []byte) {
	t.Helper()

	var wantObj, gotObj interface{}
	if err := json.Unmarshal(want, &wantObj); err != nil {
		t.Fatalf("AssertJSONEq() invalid want JSON: %v", err)
	}
	if err := json.Unmarshal(got, &gotObj); err != nil {
		t.Fatalf("AssertJSONEq() invalid got JSON: %v", err)
	}

	wantPretty, _ := json.MarshalIndent(wantObj, "", "  ")
	gotPretty, _ := json.MarshalIndent(gotObj, "", "  ")
	if string(wantPretty) == string(gotPretty) {
		return
	}

	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(wantPretty)),
		B:        difflib.SplitLines(string(gotPretty)),
		FromFile: "want",
		ToFile:   "got",
		Context:  3,
	})
	t.Errorf("JSON mismatch:\n%s", diff)
}
