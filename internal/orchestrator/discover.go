package orchestrator

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"pbjrag/internal/logging"
)

// Discover walks roots and returns the .py files not excluded by patterns,
// sorted. A root may also be a single file, which is returned as given.
func Discover(ctx context.Context, patterns []string, roots ...string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", root, err)
		}
		if !info.IsDir() {
			add(root)
			continue
		}

		err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err != nil {
				logging.OrchestratorWarn("walk %s: %v", p, err)
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			rel, relErr := filepath.Rel(root, p)
			if relErr != nil || rel == "." {
				return nil
			}
			if isIgnored(rel, d.Name(), patterns) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.IsDir() && strings.HasSuffix(d.Name(), ".py") {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(out)
	return out, nil
}

// isIgnored matches a root-relative path against ignore patterns: bare names
// match any path component, globs match the relative path, and "dir/*"
// excludes everything below dir.
func isIgnored(rel, name string, patterns []string) bool {
	rel = filepath.ToSlash(rel)
	for _, raw := range patterns {
		p := strings.Trim(filepath.ToSlash(strings.TrimSpace(raw)), "/")
		if p == "" {
			continue
		}
		if strings.ContainsAny(p, "*?[") {
			if ok, _ := path.Match(p, rel); ok {
				return true
			}
			if ok, _ := path.Match(p, name); ok {
				return true
			}
			if strings.HasSuffix(p, "/*") && strings.HasPrefix(rel, strings.TrimSuffix(p, "/*")+"/") {
				return true
			}
			continue
		}
		if name == p || rel == p || strings.HasPrefix(rel, p+"/") {
			return true
		}
		if !strings.Contains(p, "/") && slices.Contains(strings.Split(rel, "/"), p) {
			return true
		}
	}
	return false
}

// ReadFiles loads paths into source files. Unreadable files become failures
// instead of aborting the batch.
func ReadFiles(paths []string) ([]SourceFile, []FileFailure) {
	files := make([]SourceFile, 0, len(paths))
	var failures []FileFailure
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			failures = append(failures, FileFailure{File: p, Reason: err.Error(), Err: err})
			continue
		}
		files = append(files, SourceFile{Path: p, Content: data})
	}
	return files, failures
}

// RunPaths discovers Python files under roots and runs them. Unreadable files
// are reported as failures.
func (o *Orchestrator) RunPaths(ctx context.Context, roots ...string) (*Report, error) {
	paths, err := Discover(ctx, o.cfg.Analysis.IgnorePatterns, roots...)
	if err != nil {
		return nil, err
	}
	files, failures := ReadFiles(paths)
	for i := range files {
		files[i].Path = o.displayPath(files[i].Path)
	}
	for i := range failures {
		failures[i].File = o.displayPath(failures[i].File)
	}
	report, err := o.Run(ctx, files)
	if err != nil {
		return nil, err
	}
	if len(failures) > 0 {
		report.Failures = append(failures, report.Failures...)
		report.Files += len(failures)
	}
	return report, nil
}

// displayPath rewrites p relative to the workspace with forward slashes, so
// fragment IDs do not depend on where the workspace lives.
func (o *Orchestrator) displayPath(p string) string {
	if o.workspace == "" {
		return p
	}
	base, err := filepath.Abs(o.workspace)
	if err != nil {
		return p
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return p
	}
	return filepath.ToSlash(rel)
}
