package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dtlearning/learninghub/core/classroom"
	inmemdb "github.com/dtlearning/learninghub/storage/database/inmem"
	testutil "github.com/dtlearning/learninghub/tests"
)

var clsRepo classroom.Repository

type stubGateway struct{}

func (stubGateway) GetCourseRunType(context.Context, string) (string, error) { return "", nil }
func (stubGateway) CreateCourseRun(_ context.Context, spec classroom.RunSpec) (classroom.CourseRun, error) {
	return classroom.CourseRun{
		Key:   fmt.Sprintf("course-v1:%s+%s", spec.Course, spec.Term),
		Start: spec.Start,
		End:   spec.End,
	}, nil
}
func (stubGateway) ListTemplateCourses(context.Context) ([]classroom.CourseInfo, error) {
	return nil, nil
}
func (stubGateway) PublishSchedule(context.Context, string, time.Time, time.Time) error { return nil }
func (stubGateway) UpdateCourseTeam(context.Context, string, []classroom.TeamMember) error {
	return nil
}
func (stubGateway) BulkEnroll(context.Context, []string, []string) error     { return nil }
func (stubGateway) RemoveEnrollment(context.Context, string, string) error   { return nil }
func (stubGateway) ResolveUsernames(_ context.Context, emails []string) ([]string, error) {
	return emails, nil
}

func setup(t *testing.T) *commandLine {
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	repo := inmemdb.NewClassroomRepository(db)
	clsRepo = repo

	logger := testutil.NewLogger()
	gw := stubGateway{}
	provisioner := classroom.NewProvisioner(gw, gw, gw, logger)
	synchronizer := classroom.NewSynchronizer(repo, gw, gw, gw, logger)
	clsSvc := classroom.NewService(repo, provisioner, synchronizer, nil, logger)

	return &commandLine{clsSvc: clsSvc}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, fsys fs.FS, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "classroom", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			}
		})
	}
}

func Test_commandLine_createClassroom(t *testing.T) {
	cli := setup(t)
	schoolID := uuid.New()

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "missing school", args: []string{"createclassroom"}, wantErr: errHelp},
		{name: "malformed school", args: []string{"createclassroom", "-school", "lol"}, wantErr: errHelp},
		{name: "create", args: []string{"createclassroom", "-school", schoolID.String(), "-name", "Grade 5"}},
		{name: "create unnamed", args: []string{"createclassroom", "-school", schoolID.String()}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil && err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	classrooms, err := clsRepo.FilterClassrooms(context.Background(), schoolID)
	if err != nil {
		t.Fatalf("FilterClassrooms() failed: %v", err)
	}
	if len(classrooms) != 2 {
		t.Errorf("created classrooms = %d; want 2", len(classrooms))
	}
}

func Test_commandLine_syncClassroom(t *testing.T) {
	cli := setup(t)
	cls := testutil.CreateClassroom(t, clsRepo, uuid.New(), "Grade 5 Science")
	testutil.CreateAssignment(t, clsRepo, cls, "course-v1:DTL+CS101+20260101000000000000")

	tests := []cliTest{
		{name: "missing uuid", args: []string{"syncclassroom"}, wantErr: errHelp},
		{name: "malformed uuid", args: []string{"syncclassroom", "-uuid", "lol"}, wantErr: errHelp},
		{name: "unknown classroom is a no-op", args: []string{"syncclassroom", "-uuid", uuid.NewString()}},
		{name: "sync", args: []string{"syncclassroom", "-uuid", cls.UUID.String()}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil && err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
