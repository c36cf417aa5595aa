package main

import (
	"regexp"

	"github.com/Zuo-Peng/ai-session-sync/internal/event"
)

// secretPatterns covers the common machine-recognizable credential
// shapes. The classifier contract allows swapping in a real scanner;
// this built-in one catches the formats that show up in session logs
// most often.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),                    // AWS access key ID
	regexp.MustCompile(`sk-[A-Za-z0-9_\-]{20,}`),              // API secret keys
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{36,}`),          // GitHub tokens
	regexp.MustCompile(`xox[baprs]-[A-Za-z0-9\-]{10,}`),       // Slack tokens
	regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----`),  // PEM private keys
	regexp.MustCompile(`eyJ[A-Za-z0-9_\-]{10,}\.eyJ[A-Za-z0-9_\-]{10,}`), // JWTs
}

// defaultClassifier replaces the whole text span when any credential
// pattern appears in it. Whole-span replacement loses context but can
// never leak a partial secret through a sloppy boundary match.
func defaultClassifier(text string) string {
	for _, re := range secretPatterns {
		if re.MatchString(text) {
			return event.Sentinel
		}
	}
	return text
}
