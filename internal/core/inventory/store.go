package inventory

import "github.com/rl1809/vending/internal/core/domain"

const DefaultCapacity = 20

// Store keeps items by code and maps slot positions to codes. Restocking an
// existing code only aggregates its count; placing a new code needs a free slot.
//
// Store is not safe for concurrent use; callers serialize access.
type Store struct {
	capacity int
	items    map[string]domain.Item
	order    []string       // insertion order of codes
	slots    map[int]string // position -> code
	index    map[string]int // code -> position
}

func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		items:    make(map[string]domain.Item),
		slots:    make(map[int]string),
		index:    make(map[string]int),
	}
}

func (s *Store) Capacity() int { return s.capacity }

func (s *Store) Occupied() int { return len(s.slots) }

// Put stores item in the first free slot, or aggregates its count into an
// item with the same code.
func (s *Store) Put(item domain.Item) bool {
	if item == nil {
		return false
	}
	if s.aggregate(item) {
		return true
	}
	for pos := 0; pos < s.capacity; pos++ {
		if _, taken := s.slots[pos]; !taken {
			s.insert(item, pos)
			return true
		}
	}
	return false
}

// PutAt is Put with an explicit position, which must be in range and free.
func (s *Store) PutAt(item domain.Item, pos int) bool {
	if item == nil {
		return false
	}
	if s.aggregate(item) {
		return true
	}
	if pos < 0 || pos >= s.capacity {
		return false
	}
	if _, taken := s.slots[pos]; taken {
		return false
	}
	s.insert(item, pos)
	return true
}

func (s *Store) aggregate(item domain.Item) bool {
	curr, ok := s.items[item.Code()]
	if !ok {
		return false
	}
	curr.AddCount(item.Count())
	return true
}

func (s *Store) insert(item domain.Item, pos int) {
	code := item.Code()
	s.slots[pos] = code
	s.index[code] = pos
	s.items[code] = item
	s.order = append(s.order, code)
}

// Remove deletes the item and every slot pointing at its code.
func (s *Store) Remove(code string) bool {
	if _, ok := s.items[code]; !ok {
		return false
	}
	for pos, c := range s.slots {
		if c == code {
			delete(s.slots, pos)
		}
	}
	delete(s.index, code)
	delete(s.items, code)
	for i, c := range s.order {
		if c == code {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *Store) Get(code string) (domain.Item, bool) {
	item, ok := s.items[code]
	return item, ok
}

func (s *Store) GetAt(pos int) (domain.Item, bool) {
	code, ok := s.slots[pos]
	if !ok {
		return nil, false
	}
	item, ok := s.items[code]
	return item, ok
}

// List returns the items passing Check, in insertion order.
func (s *Store) List() []domain.Item {
	items := make([]domain.Item, 0, len(s.order))
	for _, code := range s.order {
		if item := s.items[code]; item.Check() {
			items = append(items, item)
		}
	}
	return items
}

func (s *Store) Find(code string) (int, bool) {
	pos, ok := s.index[code]
	if !ok {
		return 0, false
	}
	if s.slots[pos] != code {
		// index went stale, fall back to the lowest mapped position
		return s.scan(code)
	}
	return pos, true
}

func (s *Store) scan(code string) (int, bool) {
	found := -1
	for pos, c := range s.slots {
		if c == code && (found < 0 || pos < found) {
			found = pos
		}
	}
	return found, found >= 0
}
