package project

import "errors"

// Domain errors for the project package.
var (
	// ErrProjectNotFound is returned when a project ID does not exist.
	ErrProjectNotFound = errors.New("project: not found")

	// ErrProjectExists is returned when creating a project with an ID that already exists.
	ErrProjectExists = errors.New("project: already exists")

	// ErrInvalidProject is returned when project validation fails, including
	// references to MCUs or sensors the catalog does not know.
	ErrInvalidProject = errors.New("project: invalid")

	// ErrInvalidName is returned when a project name is empty or too long.
	ErrInvalidName = errors.New("project: invalid name")

	// ErrRunNotFound is returned when a project has no recorded allocation run.
	ErrRunNotFound = errors.New("project: run not found")

	// ErrRunStale is returned when the latest run was made from a spec the
	// project no longer has.
	ErrRunStale = errors.New("project: latest run is stale")
)
