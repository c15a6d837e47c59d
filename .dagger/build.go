package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/rolechat/internal/dagger"
)

// binaries maps each output name to its main package.
var binaries = map[string]string{
	"rolechat": "./cli/rolechat",
}

// Build and return directory of go binaries
func (r *Rolechat) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	gooses := []string{"linux", "darwin", "windows"}
	goarches := []string{"amd64", "arm64"}

	outputs := dag.Directory()
	golang := r.goContainer()

	for _, goos := range gooses {
		for _, goarch := range goarches {
			path := fmt.Sprintf("%s/%s/", goos, goarch)

			build := golang.
				WithEnvVariable("GOOS", goos).
				WithEnvVariable("GOARCH", goarch)

			for name, pkg := range binaries {
				if goos == "windows" {
					name += ".exe"
				}
				build = build.WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path + name, pkg})
			}

			outputs = outputs.WithDirectory(path, build.Directory(path))
		}
	}

	return outputs
}

// BuildRelease compiles versioned release binaries with embedded version info
func (r *Rolechat) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	const utilsPkg = "github.com/papercomputeco/rolechat/pkg/utils"

	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X '%s.Version=%s'", utilsPkg, version),
		fmt.Sprintf("-X '%s.Sha=%s'", utilsPkg, commit),
		fmt.Sprintf("-X '%s.Buildtime=%s'", utilsPkg, time.Now().UTC().Format(time.RFC3339)),
	}

	return r.Build(ctx, strings.Join(ldflags, " "))
}
