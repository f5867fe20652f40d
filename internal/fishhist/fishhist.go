package fishhist

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/danmuck/plenty/internal/history"
)

const (
	cmdPrefix   = "- cmd: "
	whenPrefix  = "  when: "
	pathsHeader = "  paths:"
	pathPrefix  = "    - "

	// Records that fish's layout cannot carry verbatim get an escaped copy
	// under keys fish ignores.
	rawCmdPrefix = "  plenty_cmd: "
	extraPrefix  = "  plenty_extra: "
)

// Parse reads every complete entry from r. Entries without a parseable
// timestamp are dropped; unknown lines are ignored.
func Parse(r io.Reader) ([]history.Record, error) {
	var (
		out     = make([]history.Record, 0)
		cur     entry
		inPaths bool
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, cmdPrefix):
			out = cur.appendTo(out)
			cur = entry{cmd: strings.TrimPrefix(line, cmdPrefix), open: true}
			inPaths = false
		case strings.HasPrefix(line, whenPrefix):
			when, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(line, whenPrefix)), 10, 64)
			cur.when, cur.hasWhen = when, err == nil
			inPaths = false
		case strings.HasPrefix(line, rawCmdPrefix):
			cur.cmd = unescape(strings.TrimPrefix(line, rawCmdPrefix))
			inPaths = false
		case strings.HasPrefix(line, extraPrefix):
			cur.extra, cur.hasExtra = unescape(strings.TrimPrefix(line, extraPrefix)), true
			inPaths = false
		case line == pathsHeader || strings.HasPrefix(line, pathsHeader+" "):
			cur.paths = []string{line}
			inPaths = true
		case inPaths && strings.HasPrefix(line, pathPrefix):
			cur.paths = append(cur.paths, line)
		default:
			inPaths = false
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("fishhist: read: %w", err)
	}
	return cur.appendTo(out), nil
}

type entry struct {
	cmd      string
	when     int64
	hasWhen  bool
	paths    []string
	extra    string
	hasExtra bool
	open     bool
}

func (e entry) appendTo(out []history.Record) []history.Record {
	if !e.open || !e.hasWhen {
		return out
	}
	extra := strings.Join(e.paths, "\n")
	if e.hasExtra {
		extra = e.extra
	}
	return append(out, history.New(e.cmd, e.when, extra))
}

// Format writes records in file order. A command spanning lines and any
// extra that is not a fish paths block are escaped so Parse returns them
// unchanged.
func Format(w io.Writer, records []history.Record) error {
	bw := bufio.NewWriter(w)
	for _, r := range records {
		multiline := strings.ContainsAny(r.Command, "\r\n")
		cmd := r.Command
		if multiline {
			cmd = escape(cmd)
		}
		fmt.Fprintf(bw, "%s%s\n%s%d\n", cmdPrefix, cmd, whenPrefix, r.When)
		if multiline {
			fmt.Fprintf(bw, "%s%s\n", rawCmdPrefix, cmd)
		}
		switch {
		case r.Extra == "":
		case isPathsBlock(r.Extra):
			bw.WriteString(r.Extra)
			bw.WriteByte('\n')
		default:
			fmt.Fprintf(bw, "%s%s\n", extraPrefix, escape(r.Extra))
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("fishhist: write: %w", err)
	}
	return nil
}

// isPathsBlock reports whether extra is exactly what Parse collects from a
// paths list.
func isPathsBlock(extra string) bool {
	if strings.ContainsRune(extra, '\r') {
		return false
	}
	lines := strings.Split(extra, "\n")
	if lines[0] != pathsHeader {
		return false
	}
	for _, l := range lines[1:] {
		if !strings.HasPrefix(l, pathPrefix) {
			return false
		}
	}
	return true
}

var (
	escaper   = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`)
	unescaper = strings.NewReplacer(`\\`, `\`, `\n`, "\n", `\r`, "\r")
)

func escape(s string) string   { return escaper.Replace(s) }
func unescape(s string) string { return unescaper.Replace(s) }
