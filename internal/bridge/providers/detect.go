package providers

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
)

// readPackageJSON loads and parses the package.json in dir.
//
// Parameters:
//   - dir: The project directory
//
// Returns:
//   - gjson.Result: The parsed document
//   - bool: False when the file is missing or not valid JSON
func readPackageJSON(dir string) (gjson.Result, bool) {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return gjson.Result{}, false
	}
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, false
	}
	return gjson.ParseBytes(data), true
}

// hasPackageDependency reports whether a plain (unscoped) package name
// appears in dependencies or devDependencies.
func hasPackageDependency(pkg gjson.Result, name string) bool {
	return pkg.Get("dependencies."+name).Exists() ||
		pkg.Get("devDependencies."+name).Exists()
}

// scriptInvoking returns the first package.json script whose command
// runs tool as a standalone token. Token matching keeps "vite" from
// matching a "vitest run" script.
func scriptInvoking(pkg gjson.Result, tool string) (name, command string, found bool) {
	pkg.Get("scripts").ForEach(func(key, value gjson.Result) bool {
		for _, field := range strings.Fields(value.String()) {
			if field == tool {
				name = key.String()
				command = value.String()
				found = true
				return false
			}
		}
		return true
	})
	return name, command, found
}

// ProjectName returns the package.json name, falling back to the
// directory basename.
//
// Parameters:
//   - dir: The project directory
//
// Returns:
//   - string: A non-empty project name
func ProjectName(dir string) string {
	if pkg, ok := readPackageJSON(dir); ok {
		if name := pkg.Get("name").String(); name != "" {
			return name
		}
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return filepath.Base(dir)
	}
	return filepath.Base(abs)
}

// fileExists reports whether name exists under dir as a regular file.
func fileExists(dir, name string) bool {
	info, err := os.Stat(filepath.Join(dir, name))
	return err == nil && !info.IsDir()
}

// conventionalSourceDirs are directories whose contents bundlers serve
// under same-named URL prefixes.
var conventionalSourceDirs = []string{"src", "public", "assets"}

// SourceDirs returns the conventional frontend source directories that
// exist under dir. They become proxy path prefixes.
func SourceDirs(dir string) []string {
	var dirs []string
	for _, name := range conventionalSourceDirs {
		info, err := os.Stat(filepath.Join(dir, name))
		if err == nil && info.IsDir() {
			dirs = append(dirs, name)
		}
	}
	return dirs
}
