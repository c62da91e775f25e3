// history keeps an in memory log of executed queries and derives analytics
// from it. The log is bounded and evicts the least recently touched entry.
// Favorite entries are kept outside the bound until they are unfavorited or
// deleted.
package history

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Lava-10/queryCraft/compiler"
)

var ErrNotFound = errors.New("history entry not found")

// Kind classifies a query by its leading keyword.
type Kind string

const (
	KindSelect Kind = "SELECT"
	KindInsert Kind = "INSERT"
	KindCreate Kind = "CREATE"
	KindDrop   Kind = "DROP"
	KindOther  Kind = "OTHER"
)

var kinds = []Kind{KindSelect, KindInsert, KindCreate, KindDrop, KindOther}

// Classify returns the kind of query. Leading comments and whitespace are
// ignored and keywords match in any case.
func Classify(query string) Kind {
	tokens := compiler.Tokenize(query)
	if tokens[0].Type != compiler.TokenKeyword {
		return KindOther
	}
	switch k := Kind(tokens[0].Value); k {
	case KindSelect, KindInsert, KindCreate, KindDrop:
		return k
	}
	return KindOther
}

type Entry struct {
	ID            uuid.UUID
	Query         string
	Kind          Kind
	ExecutionTime time.Duration
	Timestamp     time.Time
	Favorite      bool
	// Error is the message of the failed query or empty on success.
	Error string
	// seq orders entries added within the same clock tick.
	seq uint64
}

const DefaultSize = 1000

type Store struct {
	mu        sync.Mutex
	entries   *lru.Cache[uuid.UUID, *Entry]
	// favorites are never evicted and do not count against the bound.
	favorites map[uuid.UUID]*Entry
	seq       uint64
	now       func() time.Time
}

type Option func(*Store)

// WithClock replaces the clock used to timestamp entries.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New returns a store holding at most size entries.
func New(size int, opts ...Option) (*Store, error) {
	entries, err := lru.New[uuid.UUID, *Entry](size)
	if err != nil {
		return nil, err
	}
	s := &Store{
		entries:   entries,
		favorites: map[uuid.UUID]*Entry{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Add records a query. queryErr is the error the query failed with or nil.
func (s *Store) Add(query string, executionTime time.Duration, queryErr error) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq += 1
	e := &Entry{
		ID:            uuid.New(),
		Query:         query,
		Kind:          Classify(query),
		ExecutionTime: executionTime,
		Timestamp:     s.now(),
		seq:           s.seq,
	}
	if queryErr != nil {
		e.Error = queryErr.Error()
	}
	s.entries.Add(e.ID, e)
	return *e
}

// List returns all entries newest first.
func (s *Store) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Store) snapshot() []Entry {
	ret := make([]Entry, 0, s.entries.Len()+len(s.favorites))
	for _, e := range s.entries.Values() {
		ret = append(ret, *e)
	}
	for _, e := range s.favorites {
		ret = append(ret, *e)
	}
	sort.Slice(ret, func(i, j int) bool {
		if !ret[i].Timestamp.Equal(ret[j].Timestamp) {
			return ret[i].Timestamp.After(ret[j].Timestamp)
		}
		return ret[i].seq > ret[j].seq
	})
	return ret
}

// ToggleFavorite flips the favorite flag of an entry and returns the updated
// entry. An unfavorited entry goes back into the bounded log as the most
// recently touched one.
func (s *Store) ToggleFavorite(id uuid.UUID) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.favorites[id]; ok {
		delete(s.favorites, id)
		e.Favorite = false
		s.entries.Add(id, e)
		return *e, nil
	}
	e, ok := s.entries.Peek(id)
	if !ok {
		return Entry{}, ErrNotFound
	}
	s.entries.Remove(id)
	e.Favorite = true
	s.favorites[id] = e
	return *e, nil
}

func (s *Store) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.favorites[id]; ok {
		delete(s.favorites, id)
		return nil
	}
	if !s.entries.Remove(id) {
		return ErrNotFound
	}
	return nil
}

type KindCount struct {
	Kind  Kind
	Count int
}

// Trend summarizes the queries of one calendar day.
type Trend struct {
	Date                 string
	AverageExecutionTime time.Duration
	QueryCount           int
}

type Analytics struct {
	TotalQueries         int
	AverageExecutionTime time.Duration
	// SlowestQueries holds up to five entries ordered by descending execution
	// time.
	SlowestQueries []Entry
	// QueryTypes counts entries per kind. Kinds without entries are omitted.
	QueryTypes []KindCount
	// PerformanceTrends has one element per day with queries in the seven days
	// before now, oldest day first.
	PerformanceTrends []Trend
}

const (
	slowestQueries = 5
	trendWindow    = 7 * 24 * time.Hour
	dateLayout     = "2006-01-02"
)

// Analytics summarizes the log as of now.
func (s *Store) Analytics(now time.Time) Analytics {
	s.mu.Lock()
	entries := s.snapshot()
	s.mu.Unlock()

	ret := Analytics{
		TotalQueries:      len(entries),
		SlowestQueries:    []Entry{},
		QueryTypes:        []KindCount{},
		PerformanceTrends: []Trend{},
	}
	if len(entries) == 0 {
		return ret
	}

	var total time.Duration
	counts := map[Kind]int{}
	for _, e := range entries {
		total += e.ExecutionTime
		counts[e.Kind] += 1
	}
	ret.AverageExecutionTime = total / time.Duration(len(entries))
	for _, k := range kinds {
		if counts[k] > 0 {
			ret.QueryTypes = append(ret.QueryTypes, KindCount{Kind: k, Count: counts[k]})
		}
	}

	slowest := make([]Entry, len(entries))
	copy(slowest, entries)
	sort.SliceStable(slowest, func(i, j int) bool {
		return slowest[i].ExecutionTime > slowest[j].ExecutionTime
	})
	ret.SlowestQueries = slowest[:min(slowestQueries, len(slowest))]

	type day struct {
		total time.Duration
		count int
	}
	days := map[string]*day{}
	since := now.Add(-trendWindow)
	for _, e := range entries {
		if e.Timestamp.Before(since) || e.Timestamp.After(now) {
			continue
		}
		key := e.Timestamp.In(now.Location()).Format(dateLayout)
		d, ok := days[key]
		if !ok {
			d = &day{}
			days[key] = d
		}
		d.total += e.ExecutionTime
		d.count += 1
	}
	for date, d := range days {
		ret.PerformanceTrends = append(ret.PerformanceTrends, Trend{
			Date:                 date,
			AverageExecutionTime: d.total / time.Duration(d.count),
			QueryCount:           d.count,
		})
	}
	sort.Slice(ret.PerformanceTrends, func(i, j int) bool {
		return ret.PerformanceTrends[i].Date < ret.PerformanceTrends[j].Date
	})
	return ret
}
