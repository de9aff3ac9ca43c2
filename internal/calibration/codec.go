package calibration

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Parse reads calibration lines of the form "key,x,y".
//
// Lines that do not split into exactly three fields, or whose coordinates are
// not integers, are skipped; skipped reports how many. When a key appears more
// than once the last line wins and the key keeps its first slot.
func Parse(r io.Reader) (entries []Entry, skipped int, err error) {
	index := make(map[string]int)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		entry, ok := parseLine(line)
		if !ok {
			skipped++
			continue
		}

		if i, exists := index[entry.Key]; exists {
			entries[i] = entry
			continue
		}
		index[entry.Key] = len(entries)
		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("read calibration lines: %w", err)
	}

	return entries, skipped, nil
}

func parseLine(line string) (Entry, bool) {
	parts := strings.Split(line, ",")
	if len(parts) != 3 {
		return Entry{}, false
	}

	x, err := strconv.Atoi(parts[1])
	if err != nil {
		return Entry{}, false
	}
	y, err := strconv.Atoi(parts[2])
	if err != nil {
		return Entry{}, false
	}

	return Entry{Key: parts[0], Position: Position{X: x, Y: y}}, true
}

// Write serializes entries in order, one "key,x,y" line each.
func Write(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		if _, err := fmt.Fprintf(bw, "%s,%d,%d\n", e.Key, e.Position.X, e.Position.Y); err != nil {
			return err
		}
	}
	return bw.Flush()
}
