// Package errs provides the accumulating error collection that every
// validate step fills and every REST handler renders.
package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidResult is returned when an execute step receives a validation
// result that carries errors. It signals a programming mistake in the
// caller, not bad user input.
var ErrInvalidResult = errors.New("validation result is not valid")

// Reason categorises why an operation failed.
type Reason string

const (
	ReasonNotLoggedIn      Reason = "NOT_LOGGED_IN"
	ReasonForbidden        Reason = "FORBIDDEN"
	ReasonNotFound         Reason = "NOT_FOUND"
	ReasonConflict         Reason = "CONFLICT"
	ReasonValidationFailed Reason = "VALIDATION_FAILED"
	ReasonServerError      Reason = "SERVER_ERROR"
)

// severity orders reasons when a single one must be reported.
var severity = map[Reason]int{
	ReasonServerError:      6,
	ReasonNotLoggedIn:      5,
	ReasonForbidden:        4,
	ReasonNotFound:         3,
	ReasonConflict:         2,
	ReasonValidationFailed: 1,
}

// Collection accumulates field errors, general messages and reasons.
// The zero value is ready to use. A Collection is not safe for
// concurrent use.
type Collection struct {
	fields   map[string]string
	messages []string
	reasons  map[Reason]struct{}
}

// New returns an empty collection.
func New() *Collection {
	return &Collection{}
}

// AddError records msg against field. A later error on the same field
// replaces the earlier one.
func (c *Collection) AddError(field, msg string) {
	if c.fields == nil {
		c.fields = make(map[string]string)
	}
	c.fields[field] = msg
}

// AddErrorWithReason records a field error and a reason together.
func (c *Collection) AddErrorWithReason(field, msg string, r Reason) {
	c.AddError(field, msg)
	c.AddReason(r)
}

// AddErrorMessage records a message that is not tied to a field.
func (c *Collection) AddErrorMessage(msg string) {
	c.messages = append(c.messages, msg)
}

// AddErrorMessageWithReason records a general message and a reason.
func (c *Collection) AddErrorMessageWithReason(msg string, r Reason) {
	c.AddErrorMessage(msg)
	c.AddReason(r)
}

// AddReason records r.
func (c *Collection) AddReason(r Reason) {
	if c.reasons == nil {
		c.reasons = make(map[Reason]struct{})
	}
	c.reasons[r] = struct{}{}
}

// AddCollection merges other into c.
func (c *Collection) AddCollection(other *Collection) {
	if other == nil {
		return
	}
	for f, m := range other.fields {
		c.AddError(f, m)
	}
	c.messages = append(c.messages, other.messages...)
	for r := range other.reasons {
		c.AddReason(r)
	}
}

// HasAnyErrors reports whether any field error or message was recorded.
// Reasons alone do not count.
func (c *Collection) HasAnyErrors() bool {
	return c != nil && (len(c.fields) > 0 || len(c.messages) > 0)
}

// Errors returns a copy of the field errors.
func (c *Collection) Errors() map[string]string {
	out := make(map[string]string, len(c.fields))
	for f, m := range c.fields {
		out[f] = m
	}
	return out
}

// ErrorMessages returns the general messages in insertion order.
func (c *Collection) ErrorMessages() []string {
	return append([]string(nil), c.messages...)
}

// Reasons returns the recorded reasons sorted by name.
func (c *Collection) Reasons() []Reason {
	out := make([]Reason, 0, len(c.reasons))
	for r := range c.reasons {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// HasReason reports whether r was recorded.
func (c *Collection) HasReason(r Reason) bool {
	_, ok := c.reasons[r]
	return ok
}

// Worst returns the most severe recorded reason. When errors exist but
// no reason was given, it returns ReasonValidationFailed; when the
// collection is empty it returns "".
func (c *Collection) Worst() Reason {
	var worst Reason
	for r := range c.reasons {
		if severity[r] > severity[worst] {
			worst = r
		}
	}
	if worst == "" && c.HasAnyErrors() {
		return ReasonValidationFailed
	}
	return worst
}

// Error implements error so a collection can be returned and wrapped.
func (c *Collection) Error() string {
	parts := append([]string(nil), c.messages...)
	keys := make([]string, 0, len(c.fields))
	for f := range c.fields {
		keys = append(keys, f)
	}
	sort.Strings(keys)
	for _, f := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", f, c.fields[f]))
	}
	if len(parts) == 0 {
		return "no errors"
	}
	return strings.Join(parts, "; ")
}

// Err returns c as an error when it holds errors, nil otherwise.
func (c *Collection) Err() error {
	if !c.HasAnyErrors() {
		return nil
	}
	return c
}

// From extracts a Collection from err's chain.
func From(err error) (*Collection, bool) {
	var c *Collection
	if errors.As(err, &c) {
		return c, true
	}
	return nil, false
}
