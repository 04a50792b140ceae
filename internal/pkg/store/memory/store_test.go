package memory_test

import (
	"testing"

	"github.com/vreid/janken/internal/pkg/rps"
	"github.com/vreid/janken/internal/pkg/store/memory"
	"github.com/vreid/janken/internal/pkg/store/storetest"
)

func TestStore(t *testing.T) {
	t.Parallel()

	storetest.Run(t, func(_ *testing.T) storetest.Update {
		store := memory.New()

		return func(fn func(store rps.Store) error) error {
			return fn(store)
		}
	})
}
