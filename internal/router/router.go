// Package router picks the backend track for a conversation.
package router

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ashutoshrp06/logpilot/internal/types"
)

// Route binds a track to the keywords that select it.
type Route struct {
	Track    types.Track
	Keywords []string
}

// DefaultRoutes returns the built-in routing table. The queue route comes
// first, so recency words shared by both routes select the queue track.
func DefaultRoutes() []Route {
	return []Route{
		{
			Track:    types.TrackQueue,
			Keywords: []string{"latest", "recent", "newest", "current", "mq"},
		},
		{
			Track:    types.TrackCache,
			Keywords: []string{"latest", "recent", "newest", "current", "redis"},
		},
	}
}

// Classifier matches the latest user message against an ordered list of
// routes. It is immutable after construction and safe for concurrent use.
type Classifier struct {
	routes []Route
}

// NewClassifier builds a classifier from routes, lower-casing keywords.
// Routes are evaluated in the given order.
func NewClassifier(routes []Route) (*Classifier, error) {
	normalized := make([]Route, 0, len(routes))
	for i, r := range routes {
		if r.Track == types.TrackDefault {
			return nil, fmt.Errorf("route %d: the default track cannot be keyword routed", i)
		}
		if len(r.Keywords) == 0 {
			return nil, fmt.Errorf("route %d (%s): no keywords", i, r.Track)
		}
		kws := make([]string, 0, len(r.Keywords))
		for _, kw := range r.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				return nil, errors.New("route keywords must not be empty")
			}
			kws = append(kws, kw)
		}
		normalized = append(normalized, Route{Track: r.Track, Keywords: kws})
	}
	return &Classifier{routes: normalized}, nil
}

// Default returns a classifier over DefaultRoutes.
func Default() *Classifier {
	c, _ := NewClassifier(DefaultRoutes())
	return c
}

// Classify inspects the latest message of history. Anything other than a
// user message selects the default track.
func (c *Classifier) Classify(history []types.Message) types.Track {
	if len(history) == 0 {
		return types.TrackDefault
	}
	last := history[len(history)-1]
	if last.Role != types.RoleUser {
		return types.TrackDefault
	}
	return c.ClassifyText(last.Content)
}

// ClassifyText returns the track of the first route with a keyword that is
// a case-insensitive substring of text.
func (c *Classifier) ClassifyText(text string) types.Track {
	lower := strings.ToLower(text)
	for _, r := range c.routes {
		for _, kw := range r.Keywords {
			if strings.Contains(lower, kw) {
				return r.Track
			}
		}
	}
	return types.TrackDefault
}

// Routes returns a copy of the routing table.
func (c *Classifier) Routes() []Route {
	out := make([]Route, len(c.routes))
	for i, r := range c.routes {
		out[i] = Route{Track: r.Track, Keywords: append([]string(nil), r.Keywords...)}
	}
	return out
}
