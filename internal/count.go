package internal

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Unit is the normalization window printed next to a final count, e.g.
// 1 "lps" (loops per second) or 60 "lpm" (loops per minute).
type Unit struct {
	Count int
	Label string
}

var units = map[string]Unit{
	"lps": {Count: 1, Label: "lps"},
	"lpm": {Count: 60, Label: "lpm"},
}

func ParseUnit(label string) (Unit, error) {
	u, ok := units[label]
	if !ok {
		return Unit{}, fmt.Errorf("unknown unit: %q (want lps or lpm)", label)
	}
	return u, nil
}

// Window is the wall-clock span the unit normalizes to.
func (u Unit) Window() time.Duration {
	return time.Duration(u.Count) * time.Second
}

// Rate normalizes n rounds completed in elapsed to rounds per window.
func (u Unit) Rate(n uint64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(n) * float64(u.Window()) / float64(elapsed)
}

const countPrefix = "COUNT|"

// FormatCount renders the final report line, without a trailing newline.
func FormatCount(n uint64, u Unit) string {
	return fmt.Sprintf("COUNT|%d|%d|%s", n, u.Count, u.Label)
}

// ParseCount parses a line produced by FormatCount.
func ParseCount(line string) (uint64, Unit, error) {
	fields := strings.Split(strings.TrimSpace(line), "|")
	if len(fields) != 4 || fields[0] != "COUNT" {
		return 0, Unit{}, fmt.Errorf("bad count line: %q", line)
	}
	n, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0, Unit{}, fmt.Errorf("bad count line: %q: %w", line, err)
	}
	c, err := strconv.Atoi(fields[2])
	if err != nil {
		return 0, Unit{}, fmt.Errorf("bad count line: %q: %w", line, err)
	}
	return n, Unit{Count: c, Label: fields[3]}, nil
}

// ScanCount reads r to the end and returns the single count line in it. It
// fails if there is no such line or more than one.
func ScanCount(r io.Reader) (uint64, Unit, error) {
	var lines []string
	s := bufio.NewScanner(r)
	for s.Scan() {
		if strings.HasPrefix(s.Text(), countPrefix) {
			lines = append(lines, s.Text())
		}
	}
	if err := s.Err(); err != nil {
		return 0, Unit{}, err
	}
	switch len(lines) {
	case 0:
		return 0, Unit{}, fmt.Errorf("no count line")
	case 1:
		return ParseCount(lines[0])
	default:
		return 0, Unit{}, fmt.Errorf("%d count lines, want 1", len(lines))
	}
}
