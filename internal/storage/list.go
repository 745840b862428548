package storage

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseList reads a file list with one "<file> <label>" pair per line.
// Blank lines and lines starting with # are skipped.
func ParseList(r io.Reader) ([]string, []int32, error) {
	var (
		files  []string
		labels []int32
	)
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, nil, fmt.Errorf("line %d: want \"<file> <label>\", got %q", line, text)
		}
		label, err := strconv.ParseInt(fields[1], 10, 32)
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: label: %w", line, err)
		}
		files = append(files, fields[0])
		labels = append(labels, int32(label))
	}
	if err := sc.Err(); err != nil {
		return nil, nil, err
	}
	return files, labels, nil
}
