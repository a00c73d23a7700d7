package importer

import (
	"fmt"
	"sort"

	"github.com/muesli/gitcha"
)

// patterns are the file names FindFiles looks for.
var patterns = []string{"*.md", "*.markdown", "*.txt", "*.json"}

// FindFiles returns the importable files below dir in lexical order.
// Files ignored by git are skipped unless all is set.
func FindFiles(dir string, all bool) ([]string, error) {
	var (
		ch  chan gitcha.SearchResult
		err error
	)
	if all {
		ch, err = gitcha.FindAllFilesExcept(dir, patterns, nil)
	} else {
		ch, err = gitcha.FindFilesExcept(dir, patterns, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("error finding files in %s: %w", dir, err)
	}

	var paths []string
	for res := range ch {
		if res.Info != nil && res.Info.IsDir() {
			continue
		}
		paths = append(paths, res.Path)
	}
	sort.Strings(paths)
	return paths, nil
}
