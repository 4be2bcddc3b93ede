// Package inmemdb provides in-memory repositories used in tests and local development.
package inmemdb

import (
	"sync"

	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/course"
	"github.com/trezcool/mahudhurio/core/intervention"
	"github.com/trezcool/mahudhurio/core/user"
)

type (
	userTable struct {
		mutex sync.RWMutex
		table map[string]*user.User
	}

	eventTable struct {
		mutex sync.RWMutex
		table map[string]*attendance.Event
	}

	interventionTable struct {
		mutex sync.RWMutex
		table map[string]*intervention.Intervention
	}

	courseTable struct {
		mutex sync.RWMutex
		table map[string]*course.Course
		// courseID -> studentIDs in enrollment order
		enrollments map[string][]string
	}

	DB struct {
		user         *userTable
		event        *eventTable
		intervention *interventionTable
		course       *courseTable
	}
)

func NewDB() *DB {
	return &DB{
		user:         &userTable{table: make(map[string]*user.User)},
		event:        &eventTable{table: make(map[string]*attendance.Event)},
		intervention: &interventionTable{table: make(map[string]*intervention.Intervention)},
		course: &courseTable{
			table:       make(map[string]*course.Course),
			enrollments: make(map[string][]string),
		},
	}
}
