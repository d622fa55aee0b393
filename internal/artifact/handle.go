// Package artifact acquires the accent classifier's on-disk model artifacts
// and produces the process-wide Handle the classifier works from.
//
// Acquisition is a tiered fallback chain (local directory, registry download
// with an isolated staging area, persistent registry cache, naive in-place
// download) driven once at startup. Failure of the whole chain is fatal: the
// service cannot run without a model.
package artifact

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// labelEncoderFile is the speechbrain label-encoder file inside the artifact
// directory. Its presence (and parsability) is what makes a directory a valid
// model artifact set.
const labelEncoderFile = "label_encoder.txt"

// Handle is a loaded reference to the accent model's artifacts. It is created
// once by [Loader.Load], never mutated afterwards, and shared read-only by
// every inference call for the life of the process.
type Handle struct {
	// Dir is the permanent artifact directory.
	Dir string

	// Labels are the accent codes the model can emit, ordered by the model's
	// internal class index.
	Labels []string
}

// loadHandle validates dir as an artifact directory and parses its label
// encoder. It is the "load" half of every fallback tier.
func loadHandle(dir string) (*Handle, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("artifact: read dir %q: %w", dir, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("artifact: dir %q is empty", dir)
	}

	labels, err := parseLabelEncoder(filepath.Join(dir, labelEncoderFile))
	if err != nil {
		return nil, err
	}
	return &Handle{Dir: dir, Labels: labels}, nil
}

// parseLabelEncoder reads a speechbrain CategoricalEncoder dump. The format
// is one "'label' => index" line per class, followed by a divider line and
// bookkeeping entries that are ignored:
//
//	'us' => 0
//	'england' => 1
//	================
//	'starting_index' => 0
func parseLabelEncoder(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("artifact: open label encoder: %w", err)
	}
	defer f.Close()

	type entry struct {
		label string
		index int
	}
	var entries []entry

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "====") {
			break
		}
		label, index, ok := parseEncoderLine(line)
		if !ok {
			continue
		}
		entries = append(entries, entry{label: label, index: index})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("artifact: read label encoder: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("artifact: label encoder %q has no labels", path)
	}

	labels := make([]string, len(entries))
	for _, e := range entries {
		if e.index < 0 || e.index >= len(entries) || labels[e.index] != "" {
			return nil, fmt.Errorf("artifact: label encoder %q has inconsistent indices", path)
		}
		labels[e.index] = e.label
	}
	return labels, nil
}

// parseEncoderLine parses a single "'label' => index" line.
func parseEncoderLine(line string) (label string, index int, ok bool) {
	left, right, found := strings.Cut(line, "=>")
	if !found {
		return "", 0, false
	}
	label = strings.Trim(strings.TrimSpace(left), "'")
	if label == "" {
		return "", 0, false
	}
	if _, err := fmt.Sscanf(strings.TrimSpace(right), "%d", &index); err != nil {
		return "", 0, false
	}
	return label, index, true
}
