package link

import "sync"

// VisitedSet tracks normalized URLs already queued during a single run.
type VisitedSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewVisitedSet() *VisitedSet {
	return &VisitedSet{seen: make(map[string]struct{})}
}

// Add marks url as visited and returns true if it was not visited before.
func (s *VisitedSet) Add(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[url]; ok {
		return false
	}
	s.seen[url] = struct{}{}

	return true
}

func (s *VisitedSet) Contains(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.seen[url]
	return ok
}

func (s *VisitedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.seen)
}
