// Package whitelist loads the imported, read-only trusted-author list. The
// operator-editable list lives in the state document; membership in either
// excludes a comment from dispatch.
package whitelist

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Load reads one username per line. Lines may be CSV rows (first field
// taken), may carry a u/ prefix, and may be blank or #-commented. Names come
// back lowercased and deduplicated. A missing file is an empty list.
func Load(path string) (map[string]struct{}, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return map[string]struct{}{}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]struct{}{}, nil
		}
		return nil, err
	}
	defer f.Close()

	set := make(map[string]struct{})
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		name := normalizeName(sc.Text())
		if name == "" {
			continue
		}
		set[name] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	return set, nil
}

// Union combines the imported set with names from the editable list into a
// new lowercased set. Neither input is modified.
func Union(imported map[string]struct{}, editable []string) map[string]struct{} {
	out := make(map[string]struct{}, len(imported)+len(editable))
	for name := range imported {
		out[name] = struct{}{}
	}
	for _, name := range editable {
		name = normalizeName(name)
		if name == "" {
			continue
		}
		out[name] = struct{}{}
	}
	return out
}

func normalizeName(raw string) string {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return ""
	}
	if idx := strings.IndexByte(line, ','); idx >= 0 {
		line = strings.TrimSpace(line[:idx])
	}
	line = strings.TrimPrefix(line, "u/")
	return strings.ToLower(strings.TrimSpace(line))
}
