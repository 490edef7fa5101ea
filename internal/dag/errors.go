package dag

import (
	"fmt"
	"strings"
)

// UnknownReferenceError reports a reference to an entity that is not declared
// anywhere in the document.
type UnknownReferenceError struct {
	// Name is the undeclared entity the reference points at.
	Name string
	// Entity is the declared entity the reference was found in.
	Entity string
	// Field is the document position of the offending reference.
	Field string
}

func (e *UnknownReferenceError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("unknown entity %q referenced by %q", e.Name, e.Entity)
	}
	return fmt.Sprintf("unknown entity %q referenced by %q at %s", e.Name, e.Entity, e.Field)
}

// UnknownReferences collects every UnknownReferenceError from an error tree,
// such as the joined error Build returns when several references dangle.
func UnknownReferences(err error) []*UnknownReferenceError {
	var out []*UnknownReferenceError
	var walk func(error)
	walk = func(err error) {
		if err == nil {
			return
		}
		if uerr, ok := err.(*UnknownReferenceError); ok {
			out = append(out, uerr)
			return
		}
		switch x := err.(type) {
		case interface{ Unwrap() []error }:
			for _, nested := range x.Unwrap() {
				walk(nested)
			}
		case interface{ Unwrap() error }:
			walk(x.Unwrap())
		}
	}
	walk(err)
	return out
}

// CycleError reports a dependency cycle. Path lists each node of the cycle
// exactly once, in traversal order; the last element depends on the first.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return "dependency cycle detected"
	}
	return fmt.Sprintf("dependency cycle: %s -> %s", strings.Join(e.Path, " -> "), e.Path[0])
}
