// Package store holds the in-memory task collection the presentation layer
// reads from. It applies optimistic mutations, reconciles them with the
// store's answers and undoes them from rollback tokens.
//
// Every operation runs under one lock and replaces whole entities, so a
// reader sees either the state before a mutation or after it, never a mix.
// Store methods never fail.
package store

import (
	"sync"
	"sync/atomic"

	"github.com/BuzzLyutic/task-tracker/internal/model"
)

// OpKind names the mutation an Op performs.
type OpKind int

const (
	OpCreate OpKind = iota
	OpUpdate
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	}
	return "unknown"
}

// Op is a pending mutation. For creates ID is the temporary id from
// NextTempID and Task the optimistic entity; for updates Task is the full
// merged entity; for deletes only ID is used.
type Op struct {
	Kind OpKind
	ID   int64
	Task model.Task
}

// RollbackToken remembers what an op replaced so it can be undone or
// committed later.
type RollbackToken struct {
	op      Op
	prior   model.Task
	existed bool
	index   int
	prevID  int64
	hasPrev bool
}

// Op returns the mutation the token was issued for.
func (t RollbackToken) Op() Op {
	return t.op
}

// Store keeps tasks in insertion order. A task with an unresolved
// optimistic delete stays in order but is hidden from readers, so rolling
// the delete back returns it to its exact slot.
type Store struct {
	mu      sync.RWMutex
	tasks   map[int64]model.Task
	order   []int64
	deleted map[int64]bool
	aliases map[int64]int64
	tempID  atomic.Int64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		tasks:   make(map[int64]model.Task),
		deleted: make(map[int64]bool),
		aliases: make(map[int64]int64),
	}
}

// NextTempID returns a fresh negative id for an optimistic create.
func (s *Store) NextTempID() int64 {
	return -s.tempID.Add(1)
}

// Resolve maps id to the id the store confirmed for it. Confirmed ids map to
// themselves; a temporary id resolves only once its create has committed.
func (s *Store) Resolve(id int64) (int64, bool) {
	if id > 0 {
		return id, true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	confirmed, ok := s.aliases[id]
	return confirmed, ok
}

// Load replaces the collection with tasks, keeping their order. Later
// duplicates of an id are dropped.
func (s *Store) Load(tasks []model.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = make(map[int64]model.Task, len(tasks))
	s.order = make([]int64, 0, len(tasks))
	s.deleted = make(map[int64]bool)
	for _, t := range tasks {
		if _, dup := s.tasks[t.ID]; dup {
			continue
		}
		s.tasks[t.ID] = t.Clone()
		s.order = append(s.order, t.ID)
	}
}

// Snapshot returns a deep copy of the visible tasks in order.
func (s *Store) Snapshot() []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Task, 0, len(s.order))
	for _, id := range s.order {
		if s.deleted[id] {
			continue
		}
		out = append(out, s.tasks[id].Clone())
	}
	return out
}

func (s *Store) Get(id int64) (model.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.visible(id)
	if !ok {
		return model.Task{}, false
	}
	return t.Clone(), true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order) - len(s.deleted)
}

// ApplyOptimistic makes op visible at once and returns the token that
// commits or undoes it.
func (s *Store) ApplyOptimistic(op Op) RollbackToken {
	s.mu.Lock()
	defer s.mu.Unlock()

	op.Task = op.Task.Clone()
	tok := RollbackToken{op: op, index: -1}
	if prior, ok := s.visible(op.ID); ok {
		tok.prior = prior.Clone()
		tok.existed = true
		tok.index = s.indexOf(op.ID)
		if tok.index > 0 {
			tok.prevID, tok.hasPrev = s.order[tok.index-1], true
		}
	}

	switch op.Kind {
	case OpCreate, OpUpdate:
		t := op.Task
		t.ID = op.ID
		s.put(t)
	case OpDelete:
		if tok.existed {
			s.deleted[op.ID] = true
		}
	}
	return tok
}

// Commit reconciles the op behind tok with the store's answer. confirmed is
// ignored for deletes.
func (s *Store) Commit(tok RollbackToken, confirmed model.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch tok.op.Kind {
	case OpCreate:
		confirmed = confirmed.Clone()
		if i := s.indexOf(tok.op.ID); i >= 0 {
			delete(s.tasks, tok.op.ID)
			if _, dup := s.tasks[confirmed.ID]; dup {
				s.order = append(s.order[:i], s.order[i+1:]...)
			} else {
				s.order[i] = confirmed.ID
			}
		} else if _, ok := s.tasks[confirmed.ID]; !ok {
			s.order = append(s.order, confirmed.ID)
		}
		s.tasks[confirmed.ID] = confirmed
		delete(s.deleted, confirmed.ID)
		s.aliases[tok.op.ID] = confirmed.ID
	case OpUpdate:
		confirmed = confirmed.Clone()
		confirmed.ID = tok.op.ID
		s.put(confirmed)
	case OpDelete:
		s.remove(tok.op.ID)
	}
}

// Rollback puts back exactly what the op behind tok replaced.
func (s *Store) Rollback(tok RollbackToken) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := tok.op.ID
	if !tok.existed {
		if tok.op.Kind != OpDelete {
			s.remove(id)
		}
		return
	}
	delete(s.deleted, id)
	if _, ok := s.tasks[id]; ok {
		s.tasks[id] = tok.prior.Clone()
		return
	}
	s.tasks[id] = tok.prior.Clone()
	s.insertAt(s.restoreIndex(tok), id)
}

// Reconcile stores an entity the store confirmed outside of any optimistic
// op, replacing it in place or appending it.
func (s *Store) Reconcile(t model.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(t.Clone())
}

// Counts tallies tasks per status. Every status is present in the result.
func (s *Store) Counts() map[model.Status]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[model.Status]int, len(model.Statuses))
	for _, st := range model.Statuses {
		counts[st] = 0
	}
	for id, t := range s.tasks {
		if s.deleted[id] {
			continue
		}
		counts[t.Status]++
	}
	return counts
}

func (s *Store) visible(id int64) (model.Task, bool) {
	t, ok := s.tasks[id]
	if !ok || s.deleted[id] {
		return model.Task{}, false
	}
	return t, true
}

func (s *Store) indexOf(id int64) int {
	for i, v := range s.order {
		if v == id {
			return i
		}
	}
	return -1
}

// put replaces t in place or appends it.
func (s *Store) put(t model.Task) {
	if _, ok := s.tasks[t.ID]; !ok {
		s.order = append(s.order, t.ID)
	}
	s.tasks[t.ID] = t
	delete(s.deleted, t.ID)
}

func (s *Store) remove(id int64) {
	delete(s.deleted, id)
	if _, ok := s.tasks[id]; !ok {
		return
	}
	delete(s.tasks, id)
	if i := s.indexOf(id); i >= 0 {
		s.order = append(s.order[:i], s.order[i+1:]...)
	}
}

func (s *Store) insertAt(i int, id int64) {
	s.order = append(s.order, 0)
	copy(s.order[i+1:], s.order[i:])
	s.order[i] = id
}

// restoreIndex is used when the entry vanished from order entirely, for
// example after a reload. It prefers the spot right after the old
// predecessor and falls back to the old index.
func (s *Store) restoreIndex(tok RollbackToken) int {
	if !tok.hasPrev {
		if tok.index == 0 {
			return 0
		}
	} else if i := s.indexOf(tok.prevID); i >= 0 {
		return i + 1
	}
	if tok.index < 0 || tok.index > len(s.order) {
		return len(s.order)
	}
	return tok.index
}
