// Package state is the core API for the PoP integration of one altchain. It
// serializes every mutation of the block trees behind a single writer and
// runs the stateless payload checks on a worker pool.
package state

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/genesis"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/mempool"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/pop"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/validation"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/worker"
)

// ErrCorrupted is returned by every operation once an internal invariant was
// found violated. The state must be rebuilt from storage.
var ErrCorrupted = errors.New("state is corrupted")

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of blocks and payloads.
type EventHandler func(v string, args ...any)

// Config represents the configuration required to start the PoP state of
// an altchain node.
type Config struct {
	Genesis        genesis.Genesis
	Repository     database.Repository
	SelectStrategy string
	Workers        int
	EvHandler      EventHandler
	OnCorruption   func(err error)
	Now            func() time.Time
}

// State manages the block trees, the mempool and their persistence.
type State struct {
	mu           sync.RWMutex
	evHandler    EventHandler
	onCorruption func(err error)
	corrupted    error

	genesis genesis.Genesis
	db      *database.Database
	engine  *pop.Engine
	mempool *mempool.Mempool
	pool    *worker.Pool
}

// New constructs the state and restores what was previously saved in the
// repository.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if cfg.Repository == nil {
		return nil, errors.New("state: repository is required")
	}

	if err := cfg.Genesis.Validate(); err != nil {
		return nil, err
	}

	db, err := database.New(cfg.Repository)
	if err != nil {
		return nil, err
	}

	engine, err := pop.New(pop.Config{
		Genesis:   cfg.Genesis,
		Store:     db,
		EvHandler: ev,
		Now:       cfg.Now,
	})
	if err != nil {
		return nil, err
	}

	// Construct a mempool with the specified select strategy.
	strategy := cfg.SelectStrategy
	if strategy == "" {
		strategy = "fee"
	}
	mp, err := mempool.NewWithStrategy(cfg.Genesis.Alt, strategy)
	if err != nil {
		return nil, err
	}

	s := State{
		evHandler:    ev,
		onCorruption: cfg.OnCorruption,
		genesis:      cfg.Genesis,
		db:           db,
		engine:       engine,
		mempool:      mp,
		pool:         worker.New(cfg.Workers, ev),
	}

	if err := s.load(); err != nil {
		s.pool.Shutdown()
		return nil, fmt.Errorf("load: %w", err)
	}

	return &s, nil
}

// Shutdown saves the altchain tree, stops the worker pool and closes the
// repository.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Make sure the repository is properly closed.
	defer func() {
		s.db.Close()
	}()

	s.pool.Shutdown()

	if err := s.Save(); err != nil && !errors.Is(err, ErrCorrupted) {
		return err
	}

	return nil
}

// Genesis returns the chain parameters the state runs with.
func (s *State) Genesis() genesis.Genesis {
	return s.genesis
}

// Corrupted returns the corruption that stopped the state, if any.
func (s *State) Corrupted() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.corrupted
}

// =============================================================================

// write runs a mutation as the single writer. A corruption raised inside the
// mutation poisons the state.
func (s *State) write(op string, fn func() error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.corrupted != nil {
		return ErrCorrupted
	}

	defer s.poison(op, &err)
	defer validation.Recover(&err)

	return fn()
}

// read runs a query under the read lock.
func (s *State) read(fn func() error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.corrupted != nil {
		return ErrCorrupted
	}

	return fn()
}

// poison records a corruption error. The caller must hold the write lock.
func (s *State) poison(op string, errp *error) {
	if !validation.IsCorruption(*errp) {
		return
	}

	s.corrupted = *errp
	s.evHandler("state: %s: CORRUPTED: %s", op, *errp)

	if s.onCorruption != nil {
		s.onCorruption(*errp)
	}

	*errp = fmt.Errorf("%s: %w: %w", op, ErrCorrupted, *errp)
}
