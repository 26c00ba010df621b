package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dtlearning/learninghub/core/classroom"
)

func (cli *commandLine) createClassroom(schoolID uuid.UUID, name string) error {
	cls, err := cli.clsSvc.CreateClassroom(context.Background(), classroom.NewClassroom{
		SchoolID: schoolID,
		Name:     name,
	})
	if err != nil {
		return err
	}
	fmt.Printf("created classroom %s (%q)\n", cls.UUID, cls.Name)
	return nil
}
