package auth

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hireready/backend/internal/logger"
	"github.com/hireready/backend/internal/metrics"
)

const DefaultBcryptCost = 12

var ErrHasherStopped = errors.New("password hasher is not running")

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	// Compare reports whether password matches hash. An empty hash is compared
	// against a throwaway hash so unknown accounts cost the same as known ones.
	Compare(ctx context.Context, hash, password string) (bool, error)
}

// HasherConfig holds configuration for the hashing pool
type HasherConfig struct {
	Workers int
	Cost    int
}

// Hasher runs bcrypt on a fixed number of workers so that a burst of logins
// cannot occupy every CPU.
type Hasher struct {
	cost        int
	workerCount int
	jobs        chan func()
	dummy       []byte

	wg       sync.WaitGroup
	stopChan chan struct{}
	mu       sync.RWMutex
	running  bool

	log *logger.Logger
}

// NewHasher creates a hashing pool. Call Start before use.
func NewHasher(cfg *HasherConfig, log *logger.Logger) (*Hasher, error) {
	if cfg == nil {
		cfg = &HasherConfig{}
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	cost := cfg.Cost
	if cost == 0 {
		cost = DefaultBcryptCost
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("timing-equalizer-0"), cost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	return &Hasher{
		cost:        cost,
		workerCount: workers,
		jobs:        make(chan func()),
		dummy:       dummy,
		stopChan:    make(chan struct{}),
		log:         log.WithComponent("hasher"),
	}, nil
}

// Start launches the workers
func (h *Hasher) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return
	}

	h.running = true
	h.stopChan = make(chan struct{})

	for i := 0; i < h.workerCount; i++ {
		h.wg.Add(1)
		go h.worker(h.stopChan)
	}

	h.log.Info(context.Background(), "password hasher started", map[string]interface{}{
		"workers": h.workerCount,
		"cost":    h.cost,
	})
}

// Stop waits for in-flight operations to finish
func (h *Hasher) Stop(ctx context.Context) error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = false
	close(h.stopChan)
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info(ctx, "password hasher stopped")
		return nil
	case <-ctx.Done():
		h.log.Warn(ctx, "password hasher shutdown timed out")
		return ctx.Err()
	}
}

func (h *Hasher) worker(stop <-chan struct{}) {
	defer h.wg.Done()
	for {
		select {
		case <-stop:
			return
		case job := <-h.jobs:
			job()
		}
	}
}

// run hands fn to a worker and waits for it. Once a worker has accepted the
// job it always runs to completion.
func (h *Hasher) run(ctx context.Context, op string, fn func()) error {
	h.mu.RLock()
	running, stop := h.running, h.stopChan
	h.mu.RUnlock()
	if !running {
		return ErrHasherStopped
	}

	start := time.Now()
	done := make(chan struct{})
	job := func() {
		defer close(done)
		fn()
	}

	select {
	case h.jobs <- job:
	case <-ctx.Done():
		return ctx.Err()
	case <-stop:
		return ErrHasherStopped
	}

	<-done
	metrics.RecordPasswordHash(op, time.Since(start))
	return nil
}

func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	var (
		hash []byte
		err  error
	)
	if runErr := h.run(ctx, "hash", func() {
		hash, err = bcrypt.GenerateFromPassword([]byte(password), h.cost)
	}); runErr != nil {
		return "", runErr
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (h *Hasher) Compare(ctx context.Context, hash, password string) (bool, error) {
	target := []byte(hash)
	if hash == "" {
		target = h.dummy
	}

	var err error
	if runErr := h.run(ctx, "compare", func() {
		err = bcrypt.CompareHashAndPassword(target, []byte(password))
	}); runErr != nil {
		return false, runErr
	}

	switch {
	case err == nil:
		return hash != "", nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("compare password: %w", err)
	}
}
