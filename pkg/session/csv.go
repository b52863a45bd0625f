package session

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

var header = []string{
	"start", "end", "duration_ms", "requested_ms", "reason",
	"toggles", "readings", "min_c", "max_c", "mean_c",
}

// WriteCSV writes records as CSV with a header row.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return writeRows(cw, records)
}

// AppendCSV appends records to the file at path, creating it with a header
// row when it does not exist yet.
func AppendCSV(path string, records []Record) error {
	_, err := os.Stat(path)
	fresh := errors.Is(err, os.ErrNotExist)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open record file: %w", err)
	}
	defer f.Close()

	if fresh {
		return WriteCSV(f, records)
	}
	return writeRows(csv.NewWriter(f), records)
}

func writeRows(cw *csv.Writer, records []Record) error {
	for _, r := range records {
		if err := cw.Write(row(r)); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush records: %w", err)
	}
	return nil
}

func row(r Record) []string {
	temp := func(v float64) string {
		if r.Readings == 0 {
			return ""
		}
		return strconv.FormatFloat(v, 'f', 2, 64)
	}
	return []string{
		r.Start.Format(time.RFC3339Nano),
		r.End.Format(time.RFC3339Nano),
		strconv.FormatInt(r.Duration().Milliseconds(), 10),
		strconv.FormatInt(r.Requested.Milliseconds(), 10),
		r.Reason.String(),
		strconv.Itoa(r.Toggles),
		strconv.Itoa(r.Readings),
		temp(r.MinC),
		temp(r.MaxC),
		temp(r.MeanC),
	}
}
