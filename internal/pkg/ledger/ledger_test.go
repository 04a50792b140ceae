package ledger_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vreid/janken/internal/pkg/ledger"
	"github.com/vreid/janken/internal/pkg/rps"
)

func TestMemoryLedger(t *testing.T) {
	t.Parallel()

	l := ledger.NewMemory()

	require.NoError(t, l.Credit("A", "XCP", 100, "deposit-1", rps.ActionDeposit))
	require.NoError(t, l.Debit("A", "XCP", 40, "tx1", rps.ActionOpen))

	balance, err := l.Balance("A", "XCP")
	require.NoError(t, err)
	assert.Equal(t, int64(60), balance)

	balance, err = l.Balance("A", "BTC")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	err = l.Debit("A", "XCP", 61, "tx2", rps.ActionOpen)
	require.ErrorIs(t, err, rps.ErrInsufficientFunds)

	err = l.Credit("A", "XCP", -1, "tx3", rps.ActionWins)
	require.ErrorIs(t, err, ledger.ErrInvalidAmount)

	assert.Equal(t, []ledger.Entry{
		{Account: "A", Asset: "XCP", Amount: 100, Event: "deposit-1", Action: rps.ActionDeposit},
		{Account: "A", Asset: "XCP", Amount: -40, Event: "tx1", Action: rps.ActionOpen},
	}, l.Journal())
}

func TestMemoryLedgerIsIdempotent(t *testing.T) {
	t.Parallel()

	l := ledger.NewMemory()

	for range 3 {
		require.NoError(t, l.Credit("A", "XCP", 100, "match", rps.ActionRecredit))
		require.NoError(t, l.Credit("B", "XCP", 100, "match", rps.ActionRecredit))
		require.NoError(t, l.Debit("A", "XCP", 30, "match", rps.ActionReopen))
	}

	a, err := l.Balance("A", "XCP")
	require.NoError(t, err)
	assert.Equal(t, int64(70), a)

	b, err := l.Balance("B", "XCP")
	require.NoError(t, err)
	assert.Equal(t, int64(100), b)

	assert.Len(t, l.Journal(), 3)
}

func TestMemoryLedgerRefusesOverflow(t *testing.T) {
	t.Parallel()

	l := ledger.NewMemory()

	require.NoError(t, l.Credit("A", "XCP", math.MaxInt64, "deposit-1", rps.ActionDeposit))
	require.NoError(t, l.Credit("A", "XCP", math.MaxInt64, "deposit-1", rps.ActionDeposit))

	err := l.Credit("A", "XCP", 1, "match", rps.ActionWins)
	require.ErrorIs(t, err, ledger.ErrBalanceOverflow)

	err = l.Credit("B", "XCP", 1, "deposit-2", rps.ActionDeposit)
	require.ErrorIs(t, err, ledger.ErrBalanceOverflow)

	require.NoError(t, l.Credit("B", "BTC", 1, "deposit-2", rps.ActionDeposit))

	a, err := l.Balance("A", "XCP")
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), a)

	b, err := l.Balance("B", "XCP")
	require.NoError(t, err)
	assert.Equal(t, int64(0), b)

	assert.Len(t, l.Journal(), 2)
}
