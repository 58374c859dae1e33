package livestock

import (
	"errors"
	"fmt"
	"sort"

	"github.com/artpar/menagerie/domain/fault"
)

// ValidateLineage checks the parent references among all.
// A livestock may not be its own parent, list the same parent twice, have a
// parent of another species, or take part in a cycle. Parents missing from
// all are allowed: they may have been processed or sold.
// This is a PURE function.
func ValidateLineage(all map[string]Livestock) error {
	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var errs []error
	for _, id := range ids {
		child := all[id]
		if child.FatherID != "" && child.FatherID == child.MotherID {
			errs = append(errs, fmt.Errorf("livestock %s lists parent %s twice", id, child.FatherID))
		}
		for _, parentID := range child.Parents() {
			if parentID == id {
				errs = append(errs, fmt.Errorf("livestock %s references itself as a parent", id))
				continue
			}
			parent, ok := all[parentID]
			if !ok {
				continue
			}
			if parent.Species != child.Species {
				errs = append(errs, fmt.Errorf("livestock %s parent %s has mismatched species", id, parentID))
			}
		}
	}

	if cycle := findCycle(all, ids); cycle != "" {
		errs = append(errs, fmt.Errorf("lineage cycle through %s", cycle))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", fault.ErrInvalidArgument, errors.Join(errs...))
	}
	return nil
}

const (
	white = iota
	grey
	black
)

// findCycle runs a colouring DFS over parent edges and returns an id on a
// cycle, or "".
func findCycle(all map[string]Livestock, ids []string) string {
	colour := make(map[string]int, len(all))

	var visit func(id string) string
	visit = func(id string) string {
		colour[id] = grey
		for _, p := range all[id].Parents() {
			if p == id {
				continue
			}
			if _, ok := all[p]; !ok {
				continue
			}
			switch colour[p] {
			case grey:
				return p
			case white:
				if c := visit(p); c != "" {
					return c
				}
			}
		}
		colour[id] = black
		return ""
	}

	for _, id := range ids {
		if colour[id] == white {
			if c := visit(id); c != "" {
				return c
			}
		}
	}
	return ""
}
