// Package testutil provides architecture guards for package tests: which layers may import
// which, checked either by parsing a directory or by loading the package graph.
package testutil

import (
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// AssertNoTransitiveDependency loads pattern with its full dependency graph and fails if
// any package in it satisfies forbidden.
func AssertNoTransitiveDependency(t testing.TB, pattern string, forbidden func(path string) bool, reason string) {
	t.Helper()
	viols, err := transitiveDependencyViolations(pattern, forbidden)
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	failIfViolations(t, "forbidden transitive dependency", reason, viols)
}

// AssertNoDirectImports scans the non-test .go files in dir and fails if any import path
// satisfies forbidden. Build tags are not evaluated.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	viols, err := directImportViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	failIfViolations(t, "forbidden direct imports", reason, viols)
}

// AssertImportBoundary loads pattern including test variants and fails when a package not
// exempted imports a path satisfying forbidden.
func AssertImportBoundary(t testing.TB, pattern string, exempt, forbidden func(path string) bool, reason string) {
	t.Helper()
	viols, err := boundaryViolations(pattern, exempt, forbidden)
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	failIfViolations(t, "import boundary crossed", reason, viols)
}

// DomainImportForbidden matches import paths that point to the domain package.
func DomainImportForbidden(path string) bool {
	return strings.HasSuffix(path, "/pkg/domain") || strings.Contains(path, "/pkg/domain@")
}

// InternalImportForbidden matches any import path containing /internal/.
func InternalImportForbidden(path string) bool {
	return strings.Contains(path, "/internal/")
}

// Within returns a predicate matching prefix and every package below it.
func Within(prefix string) func(path string) bool {
	return func(path string) bool {
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
}

var loadPackages = func(cfg *packages.Config, patterns ...string) ([]*packages.Package, error) {
	return packages.Load(cfg, patterns...)
}

func transitiveDependencyViolations(pattern string, forbidden func(string) bool) ([]string, error) {
	pkgs, err := loadPackages(&packages.Config{Mode: packages.NeedName | packages.NeedImports | packages.NeedDeps}, pattern)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var viols []string
	packages.Visit(pkgs, func(p *packages.Package) bool {
		if seen[p.PkgPath] {
			return false
		}
		seen[p.PkgPath] = true
		if forbidden(p.PkgPath) {
			viols = append(viols, p.PkgPath)
		}
		return true
	}, nil)
	sort.Strings(viols)
	return viols, nil
}

func boundaryViolations(pattern string, exempt, forbidden func(string) bool) ([]string, error) {
	pkgs, err := loadPackages(&packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}, pattern)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var viols []string
	for _, pkg := range pkgs {
		if exempt(pkg.PkgPath) {
			continue
		}
		for importPath := range pkg.Imports {
			if !forbidden(importPath) {
				continue
			}
			v := pkg.PkgPath + ": " + importPath
			if !seen[v] {
				seen[v] = true
				viols = append(viols, v)
			}
		}
	}
	sort.Strings(viols)
	return viols, nil
}

func directImportViolations(dir string, forbidden func(importPath string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		fileAst, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range fileAst.Imports {
			ip := strings.Trim(imp.Path.Value, "\"")
			if forbidden(ip) {
				viols = append(viols, fmt.Sprintf("%s (in %s)", ip, name))
			}
		}
	}
	return viols, nil
}

type fatalLogger interface {
	Fatalf(format string, args ...any)
}

func failIfViolations(t fatalLogger, kind, reason string, viols []string) {
	if len(viols) > 0 {
		t.Fatalf("%s detected (%s):\n%s", kind, reason, strings.Join(viols, "\n"))
	}
}
