package series

import (
	"os"
	"path/filepath"

	"github.com/gobwas/glob"
)

// listFiles expands paths (a mix of files and directories) into the flat
// list of regular files Scan will attempt to read, applying
// Options.PathGlob as an early filter so non-matching files never reach
// the reader at all.
func listFiles(paths []string, pathGlob string) ([]string, error) {
	var g glob.Glob
	if pathGlob != "" {
		compiled, err := glob.Compile(pathGlob)
		if err != nil {
			return nil, err
		}
		g = compiled
	}

	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if g == nil || g.Match(filepath.Base(p)) {
				out = append(out, p)
			}
			continue
		}
		err = filepath.Walk(p, func(walked string, wi os.FileInfo, werr error) error {
			if werr != nil {
				return werr
			}
			if wi.IsDir() {
				return nil
			}
			if g == nil || g.Match(filepath.Base(walked)) {
				out = append(out, walked)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
