package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"

	"github.com/google/uuid"

	"github.com/dtlearning/learninghub/core/classroom"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db     *sql.DB
	clsSvc classroom.ServiceInterface
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Println("  createclassroom -school UUID [-name NAME] - create a classroom for a school")
	fmt.Println("  syncclassroom -uuid UUID - re-push a classroom's enrollments to the LMS")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	createCmd := flag.NewFlagSet("createclassroom", flag.ExitOnError)
	createSchool := createCmd.String("school", "", "The owning school's UUID.")
	createName := createCmd.String("name", "", "The classroom name; a default is used when empty.")

	syncCmd := flag.NewFlagSet("syncclassroom", flag.ExitOnError)
	syncUUID := syncCmd.String("uuid", "", "The classroom's UUID.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "createclassroom":
		if err := createCmd.Parse(args[2:]); err != nil {
			return err
		}
		schoolID, err := uuid.Parse(*createSchool)
		if err != nil {
			createCmd.Usage()
			return errHelp
		}
		return cli.createClassroom(schoolID, *createName)
	case "syncclassroom":
		if err := syncCmd.Parse(args[2:]); err != nil {
			return err
		}
		classroomID, err := uuid.Parse(*syncUUID)
		if err != nil {
			syncCmd.Usage()
			return errHelp
		}
		return cli.syncClassroom(classroomID)
	default:
		cli.printUsage()
		return errHelp
	}
}
