// Package pipeline reads new lines from changed session files and
// records them durably. It never performs network I/O on the ingestion
// path; the one exception is the degraded mode used when local storage
// is unavailable at startup.
package pipeline

import (
	"bufio"
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/Zuo-Peng/ai-session-sync/internal/event"
	"github.com/Zuo-Peng/ai-session-sync/internal/gitinfo"
	"github.com/Zuo-Peng/ai-session-sync/internal/scan"
)

const maxLineSize = 10 * 1024 * 1024 // 10MB

// Forwarder is the degraded-mode escape hatch: when the store could not
// be opened, parsed events are redacted and handed here instead.
type Forwarder interface {
	Forward(ctx context.Context, ev event.Event) error
}

// Pipeline ingests one file-change notification at a time.
type Pipeline struct {
	Root     string
	Store    Store
	Git      gitinfo.Resolver
	Filter   string // debug project filter, empty means all
	Classify event.Classifier
	Fallback Forwarder
}

// Store is the slice of the event store the pipeline needs.
type Store interface {
	LastLine(fileName string) (int, error)
	SetLastLine(fileName string, line int) error
	InsertBatch(events []event.Event) (int, error)
}

// ProcessFile ingests every line past the file's cursor. Malformed
// lines are logged and skipped, and the cursor still advances past them
// so a bad line can never wedge the file.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) error {
	if filepath.Ext(path) != ".jsonl" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil // deleted between notification and processing
	}

	fileName := scan.Rel(p.Root, path)
	if p.Filter != "" && !strings.HasPrefix(fileName, p.Filter) {
		return nil
	}

	if p.Store == nil {
		return p.forwardFile(ctx, path, fileName)
	}

	lastLine, err := p.Store.LastLine(fileName)
	if err != nil {
		return err
	}

	lines, err := readLines(path)
	if err != nil {
		return err
	}
	if lastLine >= len(lines) {
		// Touch never-seen empty files so they register as tracked.
		if lastLine == 0 && len(lines) == 0 {
			return p.Store.SetLastLine(fileName, 0)
		}
		return nil
	}
	newLines := lines[lastLine:]
	log.Printf("processing %d new line(s) from %s", len(newLines), fileName)

	// Git context is resolved once per pass and stamped on every event.
	git := p.resolveGit(ctx, newLines)

	var (
		batch     []event.Event
		malformed int
		finalLine = lastLine
	)
	for i, line := range newLines {
		lineNumber := lastLine + i + 1
		finalLine = lineNumber
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		ev, err := event.Parse(fileName, lineNumber, line)
		if err != nil {
			log.Printf("invalid JSON at %s:%d: %v", fileName, lineNumber, err)
			malformed++
			continue
		}
		ev.GitRemoteURL = git.RemoteURL
		ev.GitCommitHash = git.CommitHash
		batch = append(batch, ev)
	}

	// The batch lands durably before the cursor moves; a crash between
	// the two re-ingests the batch, which dedup absorbs.
	if len(batch) > 0 {
		if _, err := p.Store.InsertBatch(batch); err != nil {
			return err
		}
	}
	if err := p.Store.SetLastLine(fileName, finalLine); err != nil {
		return err
	}

	if malformed > 0 {
		log.Printf("skipped %d malformed line(s) in %s", malformed, fileName)
	}
	if len(batch) > 0 {
		log.Printf("stored %d event(s) from %s", len(batch), fileName)
	}
	return nil
}

// Sweep runs ProcessFile over every source file under the root, catching
// changes made while the process was not running.
func (p *Pipeline) Sweep(ctx context.Context) error {
	files, err := scan.Walk(p.Root)
	if err != nil {
		return err
	}
	log.Printf("sweeping %d existing file(s)", len(files))
	for _, fi := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.ProcessFile(ctx, fi.Path); err != nil {
			log.Printf("error processing %s: %v", fi.Rel, err)
		}
	}
	return nil
}

// forwardFile is the store-less degraded mode: redact and push straight
// to the remote collector. Without a cursor there is no dedup, so this
// only keeps the current session flowing until storage recovers.
func (p *Pipeline) forwardFile(ctx context.Context, path, fileName string) error {
	if p.Fallback == nil {
		return nil
	}
	lines, err := readLines(path)
	if err != nil {
		return err
	}
	git := p.resolveGit(ctx, lines)
	for i, line := range lines {
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		ev, err := event.Parse(fileName, i+1, line)
		if err != nil {
			continue
		}
		ev.Payload = event.Redact(ev.Payload, p.Classify)
		ev.GitRemoteURL = git.RemoteURL
		ev.GitCommitHash = git.CommitHash
		if err := p.Fallback.Forward(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// resolveGit finds the first line carrying a working directory and
// resolves git context for it. Best-effort; absence is normal.
func (p *Pipeline) resolveGit(ctx context.Context, lines [][]byte) gitinfo.Info {
	if p.Git == nil {
		return gitinfo.Info{}
	}
	for _, line := range lines {
		if cwd := event.Cwd(line); cwd != "" {
			return p.Git.Resolve(ctx, cwd)
		}
	}
	return gitinfo.Info{}
}

func readLines(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var lines [][]byte
	for sc.Scan() {
		line := make([]byte, len(sc.Bytes()))
		copy(line, sc.Bytes())
		lines = append(lines, line)
	}
	return lines, sc.Err()
}
