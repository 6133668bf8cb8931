// Package playback replays recorded NMEA captures.
//
// Capture format: line-oriented text.
//
//   - Blank lines are ignored.
//   - Lines starting with '#' are comments.
//   - Every other line is one sentence, emitted as-is (invalid sentences
//     included, so they reach the audit log like live input).
//   - A line may carry a recorded offset: <offset_ns><TAB><sentence>, where
//     offset_ns is nanoseconds since the capture started. Recorder writes
//     this form. Without offsets lines are spaced by the base interval.
package playback

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

var ErrNoLines = errors.New("playback: no sentences in file")

// Line is one playable sentence.
type Line struct {
	Sentence string
	// At is the recorded offset; only meaningful when HasAt is set.
	At    time.Duration
	HasAt bool
	// Num is the 1-based line number in the file.
	Num int
}

type Reader struct {
	r io.Reader
	// MaxLineBytes caps a single line. Zero means 64 KiB.
	MaxLineBytes int
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (rr *Reader) ReadAll() ([]Line, error) {
	max := rr.MaxLineBytes
	if max <= 0 {
		max = 64 * 1024
	}
	s := bufio.NewScanner(rr.r)
	s.Buffer(make([]byte, 0, 4096), max)

	out := make([]Line, 0, 256)
	num := 0
	for s.Scan() {
		num++
		text := strings.TrimSpace(s.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		out = append(out, parseLine(text, num))
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("read capture line %d: %w", num+1, err)
	}
	return out, nil
}

func parseLine(text string, num int) Line {
	l := Line{Sentence: text, Num: num}
	tab := strings.IndexByte(text, '\t')
	if tab <= 0 {
		return l
	}
	ns, err := strconv.ParseInt(text[:tab], 10, 64)
	if err != nil || ns < 0 {
		return l
	}
	l.Sentence = strings.TrimSpace(text[tab+1:])
	l.At = time.Duration(ns)
	l.HasAt = true
	return l
}

// Load reads a capture file. A file with no playable lines is ErrNoLines.
func Load(path string) ([]Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	lines, err := NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoLines)
	}
	return lines, nil
}
