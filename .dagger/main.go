// Rolechat CI/CD
//
// Package main provides reproducible builds and tests locally and in GitHub actions.
// It is the main harness for handling nearly all dev operations.
package main

import (
	"context"

	"dagger/rolechat/internal/dagger"
)

// Rolechat is the main module for the Rolechat CI/CD pipeline
type Rolechat struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new Rolechat CI/CD module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".direnv", ".devenv", "build", "tmp", ".rolechat"]
	source *dagger.Directory,
) *Rolechat {
	return &Rolechat{
		Source: source,
	}
}

// goContainer returns an Alpine-based Go container with the project source
// mounted and CGO disabled.
func (r *Rolechat) goContainer() *dagger.Container {
	return dag.Container().
		From("golang:1.25-alpine").
		WithEnvVariable("CGO_ENABLED", "0").
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithWorkdir("/src").
		WithDirectory("/src", r.Source)
}

// Test runs the rolechat unit and integration tests via "go test"
//
// +check
func (r *Rolechat) Test(ctx context.Context) (string, error) {
	return r.goContainer().
		WithExec([]string{"go", "test", "-race", "./..."}).
		Stdout(ctx)
}

// Vet runs "go vet" across the module
//
// +check
func (r *Rolechat) Vet(ctx context.Context) (string, error) {
	return r.goContainer().
		WithExec([]string{"go", "vet", "./..."}).
		Stdout(ctx)
}
