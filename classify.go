package main

import "strings"

// XDG directories under the home directory whose contents belong to
// installed applications rather than the user's own projects.
var homeSensitivePrefixes = []string{".config", ".local/share", ".cache"}

// Package manager cache directories. They look system-managed by location
// but hold nothing except downloaded packages, so a node_modules beneath
// them is always safe to remove. This is a hand-maintained allow-list; do
// not try to generalize it.
var cacheAllowList = []string{".cache", ".npm", ".pnpm"}

// sensitivePath reports whether an application or the OS may depend on the
// directory at path, meaning it should not be pre-selected for deletion.
// When in doubt a path is flagged; flagged entries can still be selected by
// hand.
//
// path must be absolute. home may be empty when no home directory is known;
// the home-relative rules are skipped in that case.
func sensitivePath(path, home string) bool {
	norm := normalizePath(path)

	if home != "" {
		if rel, ok := pathUnder(norm, normalizePath(home)); ok {
			for _, prefix := range homeSensitivePrefixes {
				if rel == prefix || strings.HasPrefix(rel, prefix+"/") {
					return true
				}
			}
			top, _, _ := strings.Cut(rel, "/")
			if top == ".npm" || top == ".pnpm" {
				return false
			}
			if strings.HasPrefix(top, ".") && top != "." && top != ".." {
				return true
			}
		}
	}

	if inAppBundle(norm) {
		return true
	}
	if uncHiddenSegment(norm) {
		return true
	}
	if strings.Contains(norm, "/appdata/roaming") {
		return true
	}
	if strings.Contains(norm, "/appdata/local") {
		return !cacheAllowListed(norm)
	}

	return false
}

// normalizePath rewrites a path for cross-platform comparison: forward
// slashes only, Windows drive letter stripped, everything lowercased
// (Windows filesystems are case-insensitive).
func normalizePath(p string) string {
	s := strings.ToLower(strings.ReplaceAll(p, `\`, "/"))
	if len(s) >= 3 && s[1] == ':' && s[2] == '/' {
		s = s[2:]
	}
	return s
}

// pathUnder returns the remainder of path below root, both normalized.
func pathUnder(path, root string) (string, bool) {
	if path == root {
		return "", true
	}
	if strings.HasPrefix(path, root+"/") {
		return strings.TrimLeft(path[len(root):], "/"), true
	}
	return "", false
}

// inAppBundle matches /applications/<name>.app/… where the bundle is a
// direct child of an Applications folder.
func inAppBundle(norm string) bool {
	const marker = "/applications/"
	idx := strings.Index(norm, marker)
	if idx == -1 {
		return false
	}
	rest := norm[idx+len(marker):]
	end := strings.Index(rest, ".app/")
	return end != -1 && !strings.Contains(rest[:end], "/")
}

// uncHiddenSegment reports whether a UNC path (//server/share/…) has a
// hidden segment anywhere below the share.
func uncHiddenSegment(norm string) bool {
	if !strings.HasPrefix(norm, "//") {
		return false
	}
	parts := strings.Split(norm, "/")
	if len(parts) <= 4 {
		return false
	}
	for _, part := range parts[4:] {
		if part != "" && strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

func cacheAllowListed(norm string) bool {
	for _, name := range cacheAllowList {
		if strings.Contains(norm, "/"+name+"/") || strings.HasSuffix(norm, "/"+name) {
			return true
		}
	}
	return false
}
