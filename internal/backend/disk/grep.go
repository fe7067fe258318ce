package disk

import (
	"bufio"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"

	"github.com/agentfs/agentfs/internal/backend"
	"github.com/agentfs/agentfs/internal/backend/search"
	"github.com/agentfs/agentfs/internal/shared/pathutil"
)

// grepper is the on-disk search strategy. The line scanner is always
// available; ripgrep is a pure acceleration with identical output.
type grepper interface {
	grep(ctx context.Context, s *Store, re *regexp.Regexp, pattern, host, fileGlob string, shadowed map[string]bool) ([]backend.SearchMatch, error)
}

func newGrepper() grepper {
	if bin, err := exec.LookPath("rg"); err == nil {
		return &ripgrep{bin: bin, fallback: lineScan{}}
	}
	return lineScan{}
}

// lineScan is the mandatory fallback: walk the tree and scan line by line.
type lineScan struct{}

func (lineScan) grep(ctx context.Context, s *Store, re *regexp.Regexp, _, host, fileGlob string, shadowed map[string]bool) ([]backend.SearchMatch, error) {
	info, statErr := os.Stat(host)
	if statErr != nil {
		return nil, nil
	}

	var matches []backend.SearchMatch

	scanOne := func(p string) {
		vp := s.virtualPath(p)
		if shadowed[vp] {
			return
		}
		if fileGlob != "" {
			rel := strings.TrimPrefix(vp, pathutil.Separator)
			if ok, err := doublestar.Match(fileGlob, rel); err != nil || !ok {
				return
			}
		}
		if !isTextFile(p) {
			return
		}
		matches = append(matches, scanFile(re, p, vp)...)
	}

	if !info.IsDir() {
		scanOne(host)
		return matches, nil
	}

	conf := fastwalk.Config{Follow: false}
	walkErr := fastwalk.Walk(&conf, host, func(p string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil || d.IsDir() {
			return nil
		}
		scanOne(p)
		return nil
	})
	if walkErr != nil && errors.Is(walkErr, context.Canceled) {
		return nil, walkErr
	}
	return matches, nil
}

func scanFile(re *regexp.Regexp, host, vp string) []backend.SearchMatch {
	f, err := os.Open(host)
	if err != nil {
		return nil
	}
	defer f.Close()

	var matches []backend.SearchMatch
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNum := 1
	for scanner.Scan() {
		if re.Match(scanner.Bytes()) {
			matches = append(matches, backend.SearchMatch{Path: vp, Line: lineNum, Text: scanner.Text()})
			if len(matches) >= search.MaxMatchesPerFile {
				break
			}
		}
		lineNum++
	}
	return matches
}

// isTextFile sniffs content type so binary files are skipped, matching
// ripgrep's default behavior.
func isTextFile(p string) bool {
	if info, err := os.Stat(p); err == nil && info.Size() == 0 {
		return true
	}
	mtype, err := mimetype.DetectFile(p)
	if err != nil {
		return false
	}
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// ripgrep shells out to rg for large trees. File-glob filters keep the
// fallback path so glob semantics stay byte-identical with the overlay's.
type ripgrep struct {
	bin      string
	fallback lineScan
}

func (r *ripgrep) grep(ctx context.Context, s *Store, re *regexp.Regexp, pattern, host, fileGlob string, shadowed map[string]bool) ([]backend.SearchMatch, error) {
	if fileGlob != "" {
		return r.fallback.grep(ctx, s, re, pattern, host, fileGlob, shadowed)
	}
	if _, err := os.Stat(host); err != nil {
		return nil, nil
	}

	// --hidden and --no-ignore keep rg's file set identical to the line
	// scanner's, which knows nothing of dotfiles or ignore rules. --null
	// terminates the path with a NUL byte so colons in file names parse.
	cmd := exec.CommandContext(ctx, r.bin,
		"--line-number", "--no-heading", "--with-filename", "--null",
		"--color", "never", "--hidden", "--no-ignore",
		"--max-count", strconv.Itoa(search.MaxMatchesPerFile),
		"--regexp", pattern, "--", host)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return nil, nil // no matches
		}
		// rg failed for another reason; degrade to the line scanner.
		return r.fallback.grep(ctx, s, re, pattern, host, fileGlob, shadowed)
	}

	var matches []backend.SearchMatch
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		hostPath, lineNum, text, ok := parseMatch(line)
		if !ok {
			continue
		}
		vp := s.virtualPath(filepath.Clean(hostPath))
		if shadowed[vp] {
			continue
		}
		matches = append(matches, backend.SearchMatch{Path: vp, Line: lineNum, Text: text})
	}
	return matches, nil
}

// parseMatch splits one line of rg --null output: "<path>\x00<line>:<text>".
// The NUL terminator makes paths containing colons unambiguous.
func parseMatch(line string) (hostPath string, lineNum int, text string, ok bool) {
	hostPath, rest, found := strings.Cut(line, "\x00")
	if !found {
		return "", 0, "", false
	}
	numStr, text, found := strings.Cut(rest, ":")
	if !found {
		return "", 0, "", false
	}
	n, err := strconv.Atoi(numStr)
	if err != nil {
		return "", 0, "", false
	}
	return hostPath, n, text, true
}
