package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// syncClassroom re-pushes every assignment's enrollments; the manual fix-up
// for degraded LMS state.
func (cli *commandLine) syncClassroom(classroomID uuid.UUID) error {
	if err := cli.clsSvc.Resync(context.Background(), classroomID); err != nil {
		return err
	}
	fmt.Printf("resynchronized classroom %s\n", classroomID)
	return nil
}
