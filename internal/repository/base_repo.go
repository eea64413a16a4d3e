package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mbeoliero/kit/log"

	"github.com/mbeoliero/chatline/internal/config"
	"github.com/mbeoliero/chatline/pkg/idgen"
)

// ErrNotFound is returned when the addressed document does not exist
var ErrNotFound = errors.New("document not found")

// Opener connects to a store and builds its repositories
type Opener func(ctx context.Context, cfg *config.Config) (*Repositories, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Opener)
)

// Register makes a store driver available by name. It panics if the name
// is registered twice.
func Register(name string, open Opener) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if _, dup := drivers[name]; dup {
		panic("repository: Register called twice for driver " + name)
	}
	drivers[name] = open
}

// Drivers returns the sorted names of the registered drivers
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Repositories holds all repositories
type Repositories struct {
	Driver       string
	Conversation ConversationRepo
	Message      MessageRepo

	ping  func(ctx context.Context) error
	close func() error
}

// NewRepositories opens the store selected by cfg.Store.Driver
func NewRepositories(ctx context.Context, cfg *config.Config) (*Repositories, error) {
	driversMu.RLock()
	open, ok := drivers[cfg.Store.Driver]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown store driver %q (available: %v)", cfg.Store.Driver, Drivers())
	}

	repos, err := open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Driver, err)
	}
	repos.Driver = cfg.Store.Driver

	log.CtxInfo(ctx, "store initialized: driver=%s, conversations=%s, messages=%s",
		cfg.Store.Driver, cfg.Store.ConversationCollection, cfg.Store.MessageCollection)
	return repos, nil
}

var (
	sharedOnce  sync.Once
	sharedRepos *Repositories
	sharedErr   error
)

// Shared returns the process-wide repositories. The first call opens the
// store; later calls return the same instance (or the same error) and ignore cfg.
func Shared(ctx context.Context, cfg *config.Config) (*Repositories, error) {
	sharedOnce.Do(func() {
		sharedRepos, sharedErr = NewRepositories(ctx, cfg)
	})
	return sharedRepos, sharedErr
}

// Close closes the underlying store client
func (r *Repositories) Close() error {
	if r.close == nil {
		return nil
	}
	return r.close()
}

// CheckConnection checks if the store is reachable
func (r *Repositories) CheckConnection(ctx context.Context) error {
	if r.ping == nil {
		return nil
	}
	if err := r.ping(ctx); err != nil {
		log.CtxError(ctx, "%s ping failed: %v", r.Driver, err)
		return err
	}
	return nil
}

func newIDGenerator(cfg *config.Config) (idgen.IDGenerator, error) {
	return idgen.New(cfg.IDGen.Kind, cfg.IDGen.MachineID)
}
