// Copyright 2026 The Wiregraph Authors
// SPDX-License-Identifier: Apache-2.0

package wiregraph

import (
	"fmt"
	"strconv"
	"strings"
)

// pathAnchorMode selects how a path's ancestor walk begins (§3 Path, §4.3
// step 1).
type pathAnchorMode uint8

const (
	anchorNearest    pathAnchorMode = iota // nearest ancestor with a child matching the first segment
	anchorLevelUp                          // FindAncestorByLevel(k)
	anchorTypeMatch                        // FindAncestorByType(T)
)

// path is a sequence of navigation steps: an anchor (how far/which way to
// go up), followed by ordered child-name descent segments.
type path struct {
	anchor     pathAnchorMode
	levels     int    // valid when anchor == anchorLevelUp
	typeName   string // valid when anchor == anchorTypeMatch
	segments   []string
	raw        string
}

// parsePath parses a path expression of the form:
//
//	"^3.Field.Sub"     -> up 3 ancestors, then descend Field, Sub
//	"^TypeName.Field"  -> up to nearest ancestor whose Go type name is exactly
//	                      TypeName (a type that embeds TypeName does not match)
//	"Field.Sub"        -> nearest ancestor with a child named Field, then descend Sub
func parsePath(raw string) (path, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return path{}, fmt.Errorf("%w: empty path", ErrBindingPathInvalid)
	}
	p := path{raw: raw}
	rest := raw
	if strings.HasPrefix(raw, "^") {
		rest = raw[1:]
		head, tail, hasTail := strings.Cut(rest, ".")
		if n, err := strconv.Atoi(head); err == nil {
			p.anchor = anchorLevelUp
			p.levels = n
		} else {
			p.anchor = anchorTypeMatch
			p.typeName = head
		}
		if hasTail {
			rest = tail
		} else {
			rest = ""
		}
	} else {
		p.anchor = anchorNearest
	}
	if rest != "" {
		p.segments = strings.Split(rest, ".")
		for _, seg := range p.segments {
			if seg == "" {
				return path{}, fmt.Errorf("%w: path %q has an empty segment", ErrBindingPathInvalid, raw)
			}
		}
	}
	if p.anchor == anchorNearest && len(p.segments) == 0 {
		return path{}, fmt.Errorf("%w: path %q needs at least one segment to anchor on", ErrBindingPathInvalid, raw)
	}
	return p, nil
}

func (p path) String() string { return p.raw }
