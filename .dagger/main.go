// Splice CI/CD
//
// Package main provides reproducible builds and tests locally and in GitHub actions.
package main

import (
	"context"

	"dagger/splice/internal/dagger"
)

// Splice is the main module for the splice CI/CD pipeline
type Splice struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new Splice CI/CD module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".direnv", ".splice", "build", "tmp", "_examples"]
	source *dagger.Directory,
) *Splice {
	return &Splice{
		Source: source,
	}
}

// goContainer returns a Debian Bookworm-based Go container with gcc and CGO
// enabled for go-sqlite3 and sqlite-vec, with the project source mounted.
func (s *Splice) goContainer(platform dagger.Platform) *dagger.Container {
	return dag.Container(dagger.ContainerOpts{Platform: platform}).
		From("golang:1.25-bookworm").
		WithExec([]string{"apt-get", "update"}).
		WithExec([]string{"apt-get", "install", "-y", "gcc", "libsqlite3-dev"}).
		WithEnvVariable("CGO_ENABLED", "1").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod-"+string(platform))).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build-"+string(platform))).
		WithWorkdir("/src").
		WithDirectory("/src", s.Source)
}

// Test runs the splice unit tests via "go test"
func (s *Splice) Test(ctx context.Context) (string, error) {
	return s.goContainer("").
		WithExec([]string{"go", "test", "-v", "./..."}).
		Stdout(ctx)
}
