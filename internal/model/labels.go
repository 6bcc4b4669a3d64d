package model

import (
	"bufio"
	"os"
	"path/filepath"

	"github.com/nolovision/ciraedge/internal/cerr"
)

// Labels is the ordered, immutable-while-loaded class name table
// (spec.md §3). Class ids outside the table render as UnknownLabel.
type Labels struct {
	names []string
}

// Name returns the label for a class id, or UnknownLabel if id is out of
// range (spec.md §8 invariant 2).
func (l Labels) Name(id int) string {
	if id < 0 || id >= len(l.names) {
		return UnknownLabel
	}
	return l.names[id]
}

// Len returns the number of loaded labels.
func (l Labels) Len() int { return len(l.names) }

// Names returns a copy of the underlying slice for JSON/by-label views.
func (l Labels) Names() []string {
	out := make([]string, len(l.names))
	copy(out, l.names)
	return out
}

// LoadLabels reads the first existing of obj.names or labels.txt under
// dir, one label per line, trailing CR/LF stripped, lines truncated to
// MaxLabelLen-1 bytes, empty lines skipped, capped at MaxLabels entries
// (spec.md §4.1). A missing label file is not an error: it yields an
// empty table.
func LoadLabels(dir string) (Labels, error) {
	for _, name := range []string{"obj.names", "labels.txt"} {
		path := filepath.Join(dir, name)
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		defer f.Close()

		var names []string
		scanner := bufio.NewScanner(f)
		for scanner.Scan() && len(names) < MaxLabels {
			line := scanner.Text()
			if len(line) == 0 {
				continue
			}
			if len(line) > MaxLabelLen-1 {
				line = line[:MaxLabelLen-1]
			}
			names = append(names, line)
		}
		if err := scanner.Err(); err != nil {
			return Labels{}, cerr.Wrap(cerr.File, "read label file "+path, err)
		}
		return Labels{names: names}, nil
	}
	return Labels{}, nil
}
