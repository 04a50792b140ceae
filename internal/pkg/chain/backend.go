package chain

import (
	"github.com/vreid/janken/internal/pkg/ledger"
	"github.com/vreid/janken/internal/pkg/rps"
	"github.com/vreid/janken/internal/pkg/store/memory"
)

// Backend runs fn as one atomic unit of store and ledger changes.
type Backend interface {
	Update(fn func(store rps.Store, ledger rps.Ledger) error) error
	View(fn func(reader rps.Reader, balances rps.Balances) error) error
}

// MemoryBackend keeps everything in memory. Units are not rolled back on
// failure; the only failures that reach it are halts, after which the chain
// service refuses further work.
type MemoryBackend struct {
	Store  *memory.Store
	Ledger *ledger.Memory
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		Store:  memory.New(),
		Ledger: ledger.NewMemory(),
	}
}

func (b *MemoryBackend) Update(fn func(store rps.Store, ledger rps.Ledger) error) error {
	return fn(b.Store, b.Ledger)
}

func (b *MemoryBackend) View(fn func(reader rps.Reader, balances rps.Balances) error) error {
	return fn(b.Store, b.Ledger)
}
