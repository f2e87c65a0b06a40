// Package errors provides the standardized error taxonomy shared by the
// expression converter, the catalog and the reverse builder.
package errors

import (
	"fmt"
	"strings"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryConversion     ErrorCategory = "CONVERSION"
	CategoryLookup         ErrorCategory = "LOOKUP"
	CategoryArity          ErrorCategory = "ARITY"
	CategoryLimit          ErrorCategory = "LIMIT"
	CategoryReconstruction ErrorCategory = "RECONSTRUCTION"
)

// StandardError is implemented by every error of the taxonomy.
type StandardError interface {
	error
	Category() ErrorCategory
	Code() string
}

func format(category ErrorCategory, code, message string) string {
	return fmt.Sprintf("[%s:%s] %s", category, code, message)
}

// UnsupportedNodeKindError is returned when forward conversion meets a node
// kind outside the closed set.
type UnsupportedNodeKindError struct {
	Kind string
}

func (e *UnsupportedNodeKindError) Category() ErrorCategory { return CategoryConversion }
func (e *UnsupportedNodeKindError) Code() string            { return "UNSUPPORTED_NODE_KIND" }
func (e *UnsupportedNodeKindError) Error() string {
	return format(e.Category(), e.Code(), fmt.Sprintf("unsupported node kind %s", e.Kind))
}

// LookupError reports that a descriptor matched no catalog entry.
type LookupError struct {
	What       string // "type" or "member"
	Descriptor string
	Found      int
}

func (e *LookupError) Category() ErrorCategory { return CategoryLookup }
func (e *LookupError) Code() string            { return "NOT_FOUND" }
func (e *LookupError) Error() string {
	return format(e.Category(), e.Code(),
		fmt.Sprintf("%s %s not found in catalog (found %d)", e.What, e.Descriptor, e.Found))
}

// AmbiguousLookupError reports that a descriptor matched several catalog
// entries. The catalog never picks one of them.
type AmbiguousLookupError struct {
	What       string
	Descriptor string
	Found      int
	Candidates []string
}

func (e *AmbiguousLookupError) Category() ErrorCategory { return CategoryLookup }
func (e *AmbiguousLookupError) Code() string            { return "AMBIGUOUS" }
func (e *AmbiguousLookupError) Error() string {
	return format(e.Category(), e.Code(),
		fmt.Sprintf("%s %s is ambiguous (found %d: %s)",
			e.What, e.Descriptor, e.Found, strings.Join(e.Candidates, ", ")))
}

// ArityMismatchError reports a disagreement between a declared parameter
// count and the number of values supplied.
type ArityMismatchError struct {
	Context  string
	Expected int
	Actual   int
}

func (e *ArityMismatchError) Category() ErrorCategory { return CategoryArity }
func (e *ArityMismatchError) Code() string            { return "ARITY_MISMATCH" }
func (e *ArityMismatchError) Error() string {
	return format(e.Category(), e.Code(),
		fmt.Sprintf("%s expects %d argument(s), got %d", e.Context, e.Expected, e.Actual))
}

// RecursionLimitError is returned when a tree is deeper than the configured
// limit.
type RecursionLimitError struct {
	Limit int
}

func (e *RecursionLimitError) Category() ErrorCategory { return CategoryLimit }
func (e *RecursionLimitError) Code() string            { return "RECURSION_LIMIT" }
func (e *RecursionLimitError) Error() string {
	return format(e.Category(), e.Code(), fmt.Sprintf("maximum depth %d exceeded", e.Limit))
}

// ReconstructionError wraps a failure of the reverse builder with the path
// of the node that caused it.
type ReconstructionError struct {
	Path string
	Err  error
}

func (e *ReconstructionError) Category() ErrorCategory { return CategoryReconstruction }
func (e *ReconstructionError) Code() string            { return "RECONSTRUCTION_FAILED" }
func (e *ReconstructionError) Error() string {
	return format(e.Category(), e.Code(), fmt.Sprintf("at %s: %v", e.Path, e.Err))
}
func (e *ReconstructionError) Unwrap() error { return e.Err }

// Reconstruction wraps err with path unless it already carries one.
func Reconstruction(path string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*ReconstructionError); ok {
		return err
	}
	return &ReconstructionError{Path: path, Err: err}
}
