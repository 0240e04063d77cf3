package digest

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Record is one FASTA entry.
type Record struct {
	Header   string
	Sequence string
}

// ReadFASTA reads all records from r. Lines starting with ';' are comments.
// Sequence text before the first header is an error.
func ReadFASTA(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var records []Record
	var current *Record
	var seq strings.Builder
	lineNum := 0

	flush := func() {
		if current != nil {
			current.Sequence = seq.String()
			records = append(records, *current)
			seq.Reset()
		}
	}

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, ">") {
			flush()
			current = &Record{Header: strings.TrimSpace(line[1:])}
			continue
		}
		if current == nil {
			return nil, fmt.Errorf("line %d: sequence before first header", lineNum)
		}
		seq.WriteString(strings.Join(strings.Fields(line), ""))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading FASTA: %w", err)
	}
	flush()

	return records, nil
}
