package schema

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
)

// sdlExtensions are the file extensions read when a schema path is a
// directory.
var sdlExtensions = []string{".graphql", ".graphqls"}

// discoverSDL walks root and returns every SDL file below it in lexical
// order. Hidden directories are skipped, so a schema tree may live next to
// .git and similar.
func discoverSDL(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if slices.Contains(sdlExtensions, filepath.Ext(d.Name())) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk schema directory %q: %w", root, err)
	}
	slices.Sort(files)
	return files, nil
}
