/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package sequence discovers image sequences on disk. A sequence member is a
// file whose name carries a 4-8 digit frame number directly before the
// extension, e.g. shot010_beauty.0101.exr. Patterns may be given either in
// printf notation (%04d) or with hash padding (####).
package sequence

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	frameRe   = regexp.MustCompile(`^.+[._](\d{4,8})\.[A-Za-z]{3,4}$`)
	paddingRe = regexp.MustCompile(`(\d{4,8}|#{4,8})\.([A-Za-z]{3,4})$`)
	printfRe  = regexp.MustCompile(`%0(\d)d`)
)

// FrameOf extracts the frame number from a file name. ok is false when the
// name carries no frame number.
func FrameOf(path string) (frame int, ok bool) {
	m := frameRe.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Detect turns a concrete frame path (or a ####-padded pattern) into a printf
// pattern. shot.0101.exr and shot.####.exr both become shot.%04d.exr.
// ok is false when the path carries neither a frame number nor padding.
func Detect(path string) (pattern string, ok bool) {
	dir, base := filepath.Split(path)
	m := paddingRe.FindStringSubmatchIndex(base)
	if m == nil {
		return "", false
	}
	token := base[m[2]:m[3]]
	repl := fmt.Sprintf("%%0%dd", len(token))
	return dir + base[:m[2]] + repl + base[m[3]:], true
}

// FramePath renders a printf pattern for one frame. Patterns without a %0Nd
// verb are returned unchanged.
func FramePath(pattern string, frame int) string {
	if !printfRe.MatchString(pattern) {
		return pattern
	}
	return fmt.Sprintf(pattern, frame)
}

// IsPattern reports whether the path contains a printf frame verb.
func IsPattern(path string) bool { return printfRe.MatchString(path) }

// ParseRange parses a frame range of the form "first-last[,first-last...]".
// Single frames are accepted ("15" equals "15-15"). The result is sorted and
// de-duplicated.
func ParseRange(s string) ([]int, error) {
	seen := map[int]bool{}
	var frames []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		first, last, err := parseSpan(part)
		if err != nil {
			return nil, err
		}
		for f := first; f <= last; f++ {
			if !seen[f] {
				seen[f] = true
				frames = append(frames, f)
			}
		}
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("empty frame range %q", s)
	}
	sort.Ints(frames)
	return frames, nil
}

func parseSpan(part string) (int, int, error) {
	if i := strings.IndexByte(part, '-'); i > 0 {
		first, err := strconv.Atoi(strings.TrimSpace(part[:i]))
		if err != nil {
			return 0, 0, fmt.Errorf("bad frame range %q: %w", part, err)
		}
		last, err := strconv.Atoi(strings.TrimSpace(part[i+1:]))
		if err != nil {
			return 0, 0, fmt.Errorf("bad frame range %q: %w", part, err)
		}
		if last < first {
			return 0, 0, fmt.Errorf("bad frame range %q: last before first", part)
		}
		return first, last, nil
	}
	n, err := strconv.Atoi(part)
	if err != nil {
		return 0, 0, fmt.Errorf("bad frame %q: %w", part, err)
	}
	return n, n, nil
}

// Find lists the on-disk files belonging to the sequence that path is part
// of. With a non-empty frameRange only those frames are returned (missing
// files are skipped). Without one, the sequence is globbed. A path with no
// frame number yields just that file.
func Find(path, frameRange string) ([]string, error) {
	pattern := path
	if !IsPattern(pattern) {
		p, ok := Detect(path)
		if !ok {
			if _, err := os.Stat(path); err != nil {
				return nil, fmt.Errorf("stat %s: %w", path, err)
			}
			return []string{path}, nil
		}
		pattern = p
	}

	if strings.TrimSpace(frameRange) != "" {
		frames, err := ParseRange(frameRange)
		if err != nil {
			return nil, err
		}
		var files []string
		for _, f := range frames {
			p := FramePath(pattern, f)
			if _, err := os.Stat(p); err == nil {
				files = append(files, p)
			}
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no frames of %s found in range %s", pattern, frameRange)
		}
		return files, nil
	}

	glob := printfRe.ReplaceAllString(pattern, "*")
	matches, err := filepath.Glob(glob)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", glob, err)
	}
	var files []string
	for _, m := range matches {
		if _, ok := FrameOf(m); ok {
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no frames of %s found", pattern)
	}
	sort.Strings(files)
	return files, nil
}

// Bounds returns the first and last frame numbers among the given files.
func Bounds(files []string) (first, last int, ok bool) {
	for _, f := range files {
		n, has := FrameOf(f)
		if !has {
			continue
		}
		if !ok {
			first, last, ok = n, n, true
			continue
		}
		if n < first {
			first = n
		}
		if n > last {
			last = n
		}
	}
	return first, last, ok
}
