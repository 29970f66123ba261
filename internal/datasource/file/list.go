package file

import (
	"bufio"
	"os"
	"strings"
)

// ReadList reads a text file line by line and returns the non-empty,
// non-comment lines, e.g. a batch of customer ids to look up.
//
// Lines that are empty or start with '#' (after trimming leading/trailing
// whitespace) are skipped. The order of lines is preserved.
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
