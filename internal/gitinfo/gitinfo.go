// Package gitinfo resolves best-effort git context for a directory.
package gitinfo

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"
)

const lookupTimeout = time.Second

// Info is the git provenance attached to ingested events.
type Info struct {
	RemoteURL  string
	CommitHash string
}

// Resolver looks up git context for a directory. Lookups are
// time-bounded and always non-fatal: a directory outside a repository
// resolves to the zero Info.
type Resolver interface {
	Resolve(ctx context.Context, dir string) Info
}

type execResolver struct{}

// NewResolver returns a Resolver backed by the git binary.
func NewResolver() Resolver { return execResolver{} }

func (execResolver) Resolve(ctx context.Context, dir string) Info {
	if dir == "" {
		return Info{}
	}
	if _, err := os.Stat(dir); err != nil {
		return Info{}
	}

	var info Info
	info.RemoteURL = gitOutput(ctx, dir, "remote", "get-url", "origin")
	info.CommitHash = gitOutput(ctx, dir, "rev-parse", "HEAD")
	return info
}

func gitOutput(ctx context.Context, dir string, args ...string) string {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
