// Package detector runs the jscpd copy/paste detector over a project and
// converts its JSON report into clone records.
package detector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"stopcpd/clone"
	"stopcpd/logging"
	"stopcpd/scanner"

	"github.com/tidwall/gjson"
	"mvdan.cc/sh/v3/shell"
)

// ReportFile is the name jscpd's json reporter writes into the output dir.
const ReportFile = "jscpd-report.json"

// ErrNotFound is returned when neither the configured command nor npx is on PATH.
var ErrNotFound = errors.New("jscpd not found")

// Options mirror the jscpd settings used for every scan.
type Options struct {
	Paths     []string
	Pattern   []string
	Ignore    []string
	Gitignore bool
	MinTokens int
	MinLines  int
}

// JSCPD detects clones by running the jscpd CLI.
type JSCPD struct {
	command []string
	opts    Options
	sources *scanner.Matcher
}

// New resolves the command line and returns a detector. sources may be nil;
// when set, scans of a project with no matching files skip the subprocess.
func New(commandLine string, opts Options, sources *scanner.Matcher) (*JSCPD, error) {
	command, err := ResolveCommand(commandLine, exec.LookPath)
	if err != nil {
		return nil, err
	}
	return &JSCPD{command: command, opts: opts, sources: sources}, nil
}

// Command returns the resolved command and its leading arguments.
func (j *JSCPD) Command() []string {
	return append([]string(nil), j.command...)
}

// Detect runs one full scan and returns every clone jscpd reports.
func (j *JSCPD) Detect(ctx context.Context) ([]clone.Clone, error) {
	log := logging.New("detector")

	if j.sources != nil {
		files, err := j.sources.Sources()
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			log.Debug("no source files, skipping jscpd")
			return nil, nil
		}
	}

	outDir, err := os.MkdirTemp("", "stopcpd-report-")
	if err != nil {
		return nil, fmt.Errorf("detector: create report dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	args := append(j.command[1:len(j.command):len(j.command)], j.Args(outDir)...)
	cmd := exec.CommandContext(ctx, j.command[0], args...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("detector: %s failed: %w: %s", j.command[0], err, strings.TrimSpace(output.String()))
	}

	data, err := os.ReadFile(filepath.Join(outDir, ReportFile))
	if errors.Is(err, os.ErrNotExist) {
		// No report means jscpd found nothing to analyze.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("detector: read report: %w", err)
	}

	clones, err := ParseReport(data)
	if err != nil {
		return nil, err
	}
	log.Debug("scan finished", "clones", len(clones), "took", time.Since(start).Round(time.Millisecond))
	return clones, nil
}

// Args builds the jscpd arguments for a scan writing its report to outDir.
func (j *JSCPD) Args(outDir string) []string {
	args := []string{
		"--min-tokens", strconv.Itoa(j.opts.MinTokens),
		"--min-lines", strconv.Itoa(j.opts.MinLines),
	}
	if len(j.opts.Pattern) > 0 {
		args = append(args, "--pattern", patternArg(j.opts.Pattern))
	}
	if len(j.opts.Ignore) > 0 {
		args = append(args, "--ignore", strings.Join(j.opts.Ignore, ","))
	}
	if j.opts.Gitignore {
		args = append(args, "--gitignore")
	}
	args = append(args,
		"--reporters", "json",
		"--output", outDir,
		"--absolute",
		"--silent",
	)
	return append(args, j.opts.Paths...)
}

// patternArg folds several globs into one, since jscpd takes a single pattern.
func patternArg(patterns []string) string {
	if len(patterns) == 1 {
		return patterns[0]
	}
	return "{" + strings.Join(patterns, ",") + "}"
}

// ResolveCommand splits a shell-style command line. A bare "jscpd" that is not
// on PATH falls back to "npx --yes jscpd".
func ResolveCommand(commandLine string, lookPath func(string) (string, error)) ([]string, error) {
	fields, err := shell.Fields(commandLine, nil)
	if err != nil {
		return nil, fmt.Errorf("detector: parse command %q: %w", commandLine, err)
	}
	if len(fields) == 0 {
		return nil, errors.New("detector: empty command")
	}

	if _, err := lookPath(fields[0]); err == nil {
		return fields, nil
	}
	if len(fields) == 1 && fields[0] == "jscpd" {
		if _, err := lookPath("npx"); err == nil {
			return []string{"npx", "--yes", "jscpd"}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, fields[0])
}

// ParseReport converts a jscpd json report into clones. firstFile becomes
// DuplicationA and secondFile DuplicationB.
func ParseReport(data []byte) ([]clone.Clone, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("detector: report is not valid JSON")
	}

	dups := gjson.GetBytes(data, "duplicates")
	if !dups.Exists() {
		return nil, errors.New("detector: report has no duplicates field")
	}

	clones := make([]clone.Clone, 0, len(dups.Array()))
	dups.ForEach(func(_, d gjson.Result) bool {
		clones = append(clones, clone.Clone{
			DuplicationA: parseFragment(d.Get("firstFile")),
			DuplicationB: parseFragment(d.Get("secondFile")),
			Format:       d.Get("format").String(),
			Lines:        int(d.Get("lines").Int()),
			Tokens:       int(d.Get("tokens").Int()),
		})
		return true
	})
	return clones, nil
}

func parseFragment(f gjson.Result) clone.Fragment {
	start := f.Get("startLoc.line").Int()
	if start == 0 {
		start = f.Get("start").Int()
	}
	end := f.Get("endLoc.line").Int()
	if end == 0 {
		end = f.Get("end").Int()
	}
	return clone.Fragment{
		SourceID: f.Get("name").String(),
		Start:    clone.Position{Line: int(start), Column: int(f.Get("startLoc.column").Int())},
		End:      clone.Position{Line: int(end), Column: int(f.Get("endLoc.column").Int())},
	}
}
