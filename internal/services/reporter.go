package services

import (
	"fmt"
	"io"
	"strings"
)

// Reporter writes the operator-facing progress lines. The wording is fixed:
// scripts and log scrapers match on it.
type Reporter struct {
	out io.Writer
}

// NewReporter creates a Reporter writing to out (normally stdout).
func NewReporter(out io.Writer) *Reporter {
	if out == nil {
		panic("out cannot be nil")
	}
	return &Reporter{out: out}
}

// FileFinished reports a committed file.
func (r *Reporter) FileFinished(processed, total int, name string) {
	fmt.Fprintf(r.out, "Finished file: %d/%d (%s)\n", processed, total, name)
}

// Summary reports how many of the listed files were committed.
func (r *Reporter) Summary(processed, total int) {
	fmt.Fprintf(r.out, "Total processed files: %d/%d\n", processed, total)
}

// Failure reports the error that stopped the run and the file it happened in.
// The report is always one line; line breaks inside err become "; ".
func (r *Reporter) Failure(err error, name string) {
	fmt.Fprintf(r.out, "An error occurred: %s at file %s\n", oneLine(err.Error()), name)
}

func oneLine(msg string) string {
	parts := strings.FieldsFunc(msg, func(c rune) bool { return c == '\n' || c == '\r' })
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return strings.Join(parts, "; ")
}
