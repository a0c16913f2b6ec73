package gifenc

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

var frameIndexRe = regexp.MustCompile(`(\d+)`)

// FrameName returns the file name for frame i.
func FrameName(i int) string {
	return "frame" + leftPad(strconv.Itoa(i), 4) + ".png"
}

func leftPad(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return strings.Repeat("0", n-len(s)) + s
}

// FramePaths lists the PNG files in dir ordered by their numeric frame
// index. Names without digits sort last, by name.
func FramePaths(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &Error{Op: "list", Path: dir, Err: err}
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".png") {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return nil, &Error{Op: "list", Path: dir, Err: eris.New("no images")}
	}

	SortFrames(names)
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(dir, n)
	}
	return paths, nil
}

// SortFrames orders frame file names by the last run of digits in each name.
func SortFrames(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		a, aok := frameIndex(names[i])
		b, bok := frameIndex(names[j])
		switch {
		case aok && bok && a != b:
			return a < b
		case aok != bok:
			return aok
		}
		return names[i] < names[j]
	})
}

func frameIndex(name string) (int, bool) {
	m := frameIndexRe.FindAllString(filepath.Base(name), -1)
	if len(m) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(m[len(m)-1])
	if err != nil {
		return 0, false
	}
	return n, true
}
