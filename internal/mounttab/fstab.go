package mounttab

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadConfig parses the static mount configuration table at path using the
// given column schema. Comment lines and blank lines are skipped. An
// unreadable path is the caller's problem: fatal for membership checks,
// tolerable for autoselection configured to accept an empty result.
func ReadConfig(path string, schema Schema) (Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	tab, err := parse(file, schema)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return tab, nil
}

func parse(r io.Reader, schema Schema) (Table, error) {
	var tab Table
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tab = append(tab, schema.Row(strings.Fields(line)))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return tab, nil
}
