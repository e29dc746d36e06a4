// Package changes accepts catalog change notifications from the marketplace
// backend and fans them out over Kafka so that every searcher replica
// flushes its result cache.
package changes

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nepal-guide-hub/discovery/internal/catalog"
	"github.com/nepal-guide-hub/discovery/internal/searcher/cache"
)

const maxReasonLength = 255

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s:%s", name, e.Fields[name])
	}
	return strings.Join(parts, "; ")
}

// Validate checks a change notification. An empty kind means "anything may
// have changed"; an id is only meaningful together with a kind.
func Validate(event *cache.InvalidationEvent) error {
	errs := make(map[string]string)

	event.Kind = strings.ToLower(strings.TrimSpace(event.Kind))
	if event.Kind != "" && !knownKind(event.Kind) {
		errs["kind"] = "kind must be one of packages, guides, agencies"
	}
	switch {
	case event.ID < 0:
		errs["id"] = "id must not be negative"
	case event.ID > 0 && event.Kind == "":
		errs["id"] = "id requires a kind"
	}
	event.Reason = strings.TrimSpace(event.Reason)
	if event.Reason == "" {
		errs["reason"] = "reason is required"
	} else if len(event.Reason) > maxReasonLength {
		errs["reason"] = fmt.Sprintf("reason must be at most %d characters", maxReasonLength)
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func knownKind(kind string) bool {
	for _, k := range catalog.Kinds {
		if string(k) == kind {
			return true
		}
	}
	return false
}
