package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"nmeaflow/internal/mapper"
	"nmeaflow/internal/nmea"
	"nmeaflow/internal/playback"
)

var errInvalidLines = errors.New("capture contains invalid lines")

func newCheckCommand() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "check <file>",
		Short: "Validate and summarize a capture file offline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := printCaptureSummary(cmd.OutOrStdout(), args[0])
			if err != nil {
				return err
			}
			if strict && s.ChecksumFail+s.Malformed > 0 {
				return fmt.Errorf("%w: %d", errInvalidLines, s.ChecksumFail+s.Malformed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when any line fails validation.")
	return cmd
}

type captureSummary struct {
	Lines        int
	Valid        int
	ChecksumFail int
	Malformed    int
	Unsupported  int
	Mismatch     int
	Updates      int
	// Span is the last recorded offset. Zero for captures without offsets.
	Span       time.Duration
	TypeCounts map[string]int
	Reasons    map[string]int
}

func summarizeCapture(lines []playback.Line) captureSummary {
	s := captureSummary{TypeCounts: map[string]int{}, Reasons: map[string]int{}}
	for _, l := range lines {
		s.Lines++
		if l.HasAt && l.At > s.Span {
			s.Span = l.At
		}

		res := nmea.Validate(l.Sentence)
		switch res.Status {
		case nmea.StatusChecksumFail:
			s.ChecksumFail++
			s.Reasons[res.Reason]++
			continue
		case nmea.StatusMalformed:
			s.Malformed++
			s.Reasons[res.Reason]++
			continue
		}
		s.Valid++
		s.TypeCounts[res.Payload.Type]++

		sentence, err := nmea.Parse(res.Payload)
		if err != nil {
			var pe *nmea.ParseError
			if errors.As(err, &pe) && pe.Kind == nmea.KindUnsupportedType {
				s.Unsupported++
			} else {
				s.Mismatch++
			}
			continue
		}
		updates, err := mapper.MapChecked(sentence)
		if err == nil {
			s.Updates += len(updates)
		}
	}
	return s
}

func printCaptureSummary(w io.Writer, path string) (captureSummary, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return captureSummary{}, fmt.Errorf("path is empty")
	}
	lines, err := playback.Load(path)
	if err != nil {
		return captureSummary{}, err
	}
	s := summarizeCapture(lines)

	table := uitable.New()
	table.MaxColWidth = 80
	table.AddRow("PATH:", path)
	table.AddRow("LINES:", s.Lines)
	table.AddRow("VALID:", s.Valid)
	table.AddRow("CHECKSUM FAIL:", s.ChecksumFail)
	table.AddRow("MALFORMED:", s.Malformed)
	table.AddRow("UNSUPPORTED:", s.Unsupported)
	table.AddRow("FIELD MISMATCH:", s.Mismatch)
	table.AddRow("FIELD UPDATES:", s.Updates)
	table.AddRow("SPAN:", s.Span)
	_, _ = fmt.Fprintln(w, table)

	if len(s.TypeCounts) > 0 {
		types := uitable.New()
		types.AddRow("TYPE", "COUNT")
		for _, k := range sortedKeys(s.TypeCounts) {
			types.AddRow(k, s.TypeCounts[k])
		}
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, types)
	}
	if len(s.Reasons) > 0 {
		reasons := uitable.New()
		reasons.AddRow("INVALID REASON", "COUNT")
		for _, k := range sortedKeys(s.Reasons) {
			reasons.AddRow(k, s.Reasons[k])
		}
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, reasons)
	}
	return s, nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
