package model

import (
	"slices"
	"time"
)

// FeedKind tells a feed entry's source sequence apart.
type FeedKind string

const (
	FeedMessage FeedKind = "message"
	FeedVersion FeedKind = "version"
)

// FeedItem is one entry of the chronological project timeline.  Exactly one
// of Message and Version is set.
type FeedItem struct {
	Kind      FeedKind  `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Message   *Message  `json:"message,omitempty"`
	Version   *Version  `json:"version,omitempty"`
}

// MergeFeed interleaves messages and versions by timestamp.  Both inputs are
// expected in creation order; equal timestamps keep that order, messages
// first.
func MergeFeed(messages []Message, versions []Version) []FeedItem {
	items := make([]FeedItem, 0, len(messages)+len(versions))
	for i := range messages {
		items = append(items, FeedItem{Kind: FeedMessage, Timestamp: messages[i].CreatedAt, Message: &messages[i]})
	}
	for i := range versions {
		items = append(items, FeedItem{Kind: FeedVersion, Timestamp: versions[i].CreatedAt, Version: &versions[i]})
	}
	slices.SortStableFunc(items, func(a, b FeedItem) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return items
}
