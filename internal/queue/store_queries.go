package queue

import "sort"

// Get returns a copy of one item.
func (s *Store) Get(id string) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := indexOf(s.items, id)
	if idx < 0 {
		return Item{}, false
	}
	return s.items[idx].Clone(), true
}

// List returns items in insertion order, optionally filtered by status.
func (s *Store) List(statuses ...Status) []Item {
	filter := make(map[Status]struct{}, len(statuses))
	for _, status := range statuses {
		filter[status] = struct{}{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Item, 0, len(s.items))
	for _, item := range s.items {
		if len(filter) > 0 {
			if _, ok := filter[item.Status]; !ok {
				continue
			}
		}
		out = append(out, item.Clone())
	}
	return out
}

// ItemsForGroup returns the items of one group in insertion order.
func (s *Store) ItemsForGroup(groupID string) []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Item, 0)
	for _, item := range s.items {
		if item.GroupID == groupID {
			out = append(out, item.Clone())
		}
	}
	return out
}

// Counts aggregates statuses for groupID, or for the whole queue when groupID is empty.
func (s *Store) Counts(groupID string) Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var counts Counts
	for _, item := range s.items {
		if groupID != "" && item.GroupID != groupID {
			continue
		}
		counts.add(item, s.retryLimit)
	}
	return counts
}

// Groups summarises every group present in the queue, sorted by id.
func (s *Store) Groups() []GroupSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byGroup := make(map[string]*Counts)
	for _, item := range s.items {
		counts, ok := byGroup[item.GroupID]
		if !ok {
			counts = &Counts{}
			byGroup[item.GroupID] = counts
		}
		counts.add(item, s.retryLimit)
	}
	out := make([]GroupSummary, 0, len(byGroup))
	for groupID, counts := range byGroup {
		out = append(out, GroupSummary{GroupID: groupID, Counts: *counts})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GroupID < out[j].GroupID })
	return out
}

// NextEligible returns the first item in insertion order that is pending, or
// failed with RetryCount below the retry limit. Groups are not interleaved
// fairly; arrival order alone decides.
func (s *Store) NextEligible() (*Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items {
		if eligible(item, s.retryLimit) {
			next := item.Clone()
			return &next, true
		}
	}
	return nil, false
}

// HasEligible reports whether NextEligible would return an item.
func (s *Store) HasEligible() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items {
		if eligible(item, s.retryLimit) {
			return true
		}
	}
	return false
}

// HasRemainingWork reports whether any item is pending, uploading, or failed
// with retry budget left.
func (s *Store) HasRemainingWork() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items {
		if item.Status == StatusUploading || eligible(item, s.retryLimit) {
			return true
		}
	}
	return false
}
