package detection

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// readLabels reads one class name per line. Blank lines and lines starting
// with '#' are skipped.
func readLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open labels: %w", err)
	}
	defer f.Close()

	var labels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		labels = append(labels, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read labels %s: %w", path, err)
	}
	return labels, nil
}

// className returns labels[class] or the class index as text.
func className(labels []string, class int) string {
	if class >= 0 && class < len(labels) {
		return labels[class]
	}
	return strconv.Itoa(class)
}
