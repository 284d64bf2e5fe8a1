// Package graph implements the dependency graph builder:
// three-color DFS producing a topologically ordered build queue plus a
// bidirectional reference map, permitting intentional "circular" edges.
package graph

import (
	"fmt"
	"strings"

	"github.com/tsb-dev/tsb/internal/configcache"
	"github.com/tsb-dev/tsb/internal/hostfs"
	"github.com/tsb-dev/tsb/internal/projectid"
)

// color is the DFS node state.
type color int

const (
	white color = iota // unvisited
	grey               // temporary: on the current DFS stack
	black              // permanent: fully processed
)

// Graph is the dependency graph builder's output: the build queue
// (dependency-leaves-first) and the bidirectional reference map.
type Graph struct {
	Queue            []projectid.ID
	ParentToChildren map[projectid.ID][]projectid.ID
	ChildToParents   map[projectid.ID][]projectid.ID
}

// CycleError reports an illegal cycle: a reference path that returns to a
// node still on the DFS stack without any edge along it marked circular.
type CycleError struct {
	Stack []projectid.ID
}

func (e *CycleError) Error() string {
	names := make([]string, len(e.Stack))
	for i, id := range e.Stack {
		names[i] = string(id)
	}
	return fmt.Sprintf("Circularity detected while resolving configuration:\n%s", strings.Join(names, "\n"))
}

// ConfigSource resolves a project identifier to its config cache entry.
// *configcache.Cache satisfies this directly; tests substitute a plain map
// so graph construction can be exercised without a real config parse, the
// same way status.ProjectSource decouples the classifier from the cache.
type ConfigSource interface {
	Get(id projectid.ID) configcache.Entry
}

// Build walks the reference graph from roots and returns the build queue
// and reference map. On success, error is nil and Queue holds every
// project in dependency-leaves-first order. If any config failed to parse
// or an illegal cycle was found, error is non-nil — but the returned
// *Graph is never nil: ParentToChildren/ChildToParents still hold every
// edge traversed before the failure, so a caller can retain them for
// watch-mode invalidation to locate dependents of a project whose own
// subtree failed, even though Queue itself is incomplete and unusable for
// a build.
func Build(roots []projectid.ID, cache ConfigSource, host hostfs.Host) (*Graph, error) {
	b := &builder{
		cache:  cache,
		host:   host,
		colors: map[projectid.ID]color{},
		g: Graph{
			ParentToChildren: map[projectid.ID][]projectid.ID{},
			ChildToParents:   map[projectid.ID][]projectid.ID{},
		},
	}

	var firstErr error
	for _, root := range roots {
		if err := b.visit(root, false); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return &b.g, firstErr
}

type builder struct {
	cache  ConfigSource
	host   hostfs.Host
	colors map[projectid.ID]color
	stack  []projectid.ID
	g      Graph
}

func (b *builder) visit(id projectid.ID, inCircularContext bool) error {
	switch b.colors[id] {
	case black:
		return nil
	case grey:
		if inCircularContext {
			return nil
		}
		return &CycleError{Stack: append(append([]projectid.ID{}, b.stack...), id)}
	}

	b.colors[id] = grey
	b.stack = append(b.stack, id)

	entry := b.cache.Get(id)
	if !entry.Ok() {
		b.colors[id] = black
		b.stack = b.stack[:len(b.stack)-1]
		return fmt.Errorf("project %s failed to parse", id)
	}

	var firstErr error
	for _, ref := range entry.Project.References {
		childID, ok := projectid.Resolve(b.host, ref.Path)
		if !ok {
			continue
		}
		b.g.ParentToChildren[id] = appendUnique(b.g.ParentToChildren[id], childID)
		b.g.ChildToParents[childID] = appendUnique(b.g.ChildToParents[childID], id)

		if err := b.visit(childID, inCircularContext || ref.Circular); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	b.colors[id] = black
	b.stack = b.stack[:len(b.stack)-1]
	if firstErr != nil {
		return firstErr
	}
	// Post-order: a node's body runs exactly once, so the queue never sees
	// a duplicate.
	b.g.Queue = append(b.g.Queue, id)
	return nil
}

func appendUnique(list []projectid.ID, id projectid.ID) []projectid.ID {
	for _, existing := range list {
		if existing == id {
			return list
		}
	}
	return append(list, id)
}
