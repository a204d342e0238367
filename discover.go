package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/maruel/natural"
)

const (
	sourceExtension = ".jack"
	outputExtension = ".vm"
	tokensExtension = ".tokens.json"
)

func removeExtension(filePath string) string {
	extension := filepath.Ext(filePath)
	return filePath[:len(filePath)-len(extension)]
}

func getClassName(filePath string) string {
	return removeExtension(filepath.Base(filePath))
}

func getOutputPath(filePath, emit string) string {
	if emit == EmitTokens {
		return removeExtension(filePath) + tokensExtension
	}
	return removeExtension(filePath) + outputExtension
}

// collectFiles returns fileOrDir itself, or every regular source file below
// it matching include, in natural order.
func collectFiles(fileOrDir, include string) (files []string, err error) {
	fileOrDirStat, err := os.Stat(fileOrDir)
	if err != nil {
		return nil, fmt.Errorf("cannot stat file/dir %q: %w", fileOrDir, err)
	}

	if !fileOrDirStat.IsDir() {
		if filepath.Ext(fileOrDir) != sourceExtension {
			return nil, fmt.Errorf("%q is not a %s file", fileOrDir, sourceExtension)
		}
		return []string{fileOrDir}, nil
	}

	matches, err := doublestar.Glob(os.DirFS(fileOrDir), include)
	if err != nil {
		return nil, fmt.Errorf("could not search directory %q: %w", fileOrDir, err)
	}

	for _, match := range matches {
		if filepath.Ext(match) != sourceExtension {
			continue
		}
		path := filepath.Join(fileOrDir, filepath.FromSlash(match))
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, path)
	}

	sort.Slice(files, func(i, j int) bool {
		return natural.Less(files[i], files[j])
	})
	return files, nil
}

// matchesInclude reports whether path, somewhere below root, is selected by
// include.
func matchesInclude(root, path, include string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	ok, err := doublestar.Match(include, filepath.ToSlash(rel))
	return err == nil && ok
}
