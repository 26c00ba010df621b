// Package inmemdb provides an in-memory store used by tests and local tooling.
package inmemdb

import (
	"sync"

	"github.com/google/uuid"

	"github.com/dtlearning/learninghub/core/classroom"
)

type DB struct {
	classrooms  map[uuid.UUID]*classroom.Classroom
	enrollments map[int]*classroom.Enrollment
	assignments map[int]*classroom.CourseAssignment
	mutex       sync.RWMutex
}

func Open() (*DB, error) {
	db := &DB{
		classrooms:  make(map[uuid.UUID]*classroom.Classroom),
		enrollments: make(map[int]*classroom.Enrollment),
		assignments: make(map[int]*classroom.CourseAssignment),
	}
	return db, nil
}
