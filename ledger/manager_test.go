package ledger

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"escrowd/escrow"
	"escrowd/storage"
)

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(storage.NewMemDB())
}

func TestGetAccountDefaultsToZeroBalance(t *testing.T) {
	m := newTestManager(t)
	acc, err := m.GetAccount(testAddr(0x01))
	require.NoError(t, err)
	require.NotNil(t, acc.Balance)
	require.Zero(t, acc.Balance.Sign())
}

func TestTransferMovesBalance(t *testing.T) {
	m := newTestManager(t)
	from := testAddr(0x01)
	to := testAddr(0x02)
	require.NoError(t, m.Mint(from, big.NewInt(100)))

	require.NoError(t, m.Transfer(from, to, big.NewInt(40)))

	fromAcc, err := m.GetAccount(from)
	require.NoError(t, err)
	toAcc, err := m.GetAccount(to)
	require.NoError(t, err)
	require.Zero(t, fromAcc.Balance.Cmp(big.NewInt(60)))
	require.Zero(t, toAcc.Balance.Cmp(big.NewInt(40)))
}

func TestTransferInsufficientBalance(t *testing.T) {
	m := newTestManager(t)
	from := testAddr(0x01)
	to := testAddr(0x02)
	require.NoError(t, m.Mint(from, big.NewInt(10)))

	err := m.Transfer(from, to, big.NewInt(11))
	require.ErrorIs(t, err, ErrInsufficientBalance)

	// Neither account may be mutated by the failed transfer.
	fromAcc, err := m.GetAccount(from)
	require.NoError(t, err)
	require.Zero(t, fromAcc.Balance.Cmp(big.NewInt(10)))
	toAcc, err := m.GetAccount(to)
	require.NoError(t, err)
	require.Zero(t, toAcc.Balance.Sign())
}

func TestTransferEdgeCases(t *testing.T) {
	m := newTestManager(t)
	addr := testAddr(0x01)
	require.NoError(t, m.Mint(addr, big.NewInt(10)))

	// Zero and nil amounts are no-ops.
	require.NoError(t, m.Transfer(addr, testAddr(0x02), nil))
	require.NoError(t, m.Transfer(addr, testAddr(0x02), big.NewInt(0)))

	// Negative amounts are rejected outright.
	require.Error(t, m.Transfer(addr, testAddr(0x02), big.NewInt(-1)))

	// A self-transfer must not double the balance.
	require.NoError(t, m.Transfer(addr, addr, big.NewInt(5)))
	acc, err := m.GetAccount(addr)
	require.NoError(t, err)
	require.Zero(t, acc.Balance.Cmp(big.NewInt(10)))
}

func TestEscrowPutGetRoundTrip(t *testing.T) {
	m := newTestManager(t)
	esc := &escrow.Escrow{
		ID:        4,
		Buyer:     testAddr(0x01),
		Seller:    testAddr(0x02),
		Amount:    big.NewInt(777),
		State:     escrow.StateFunded,
		CreatedAt: 1700000000,
	}
	require.NoError(t, m.EscrowPut(esc))

	got, ok := m.EscrowGet(4)
	require.True(t, ok)
	require.Equal(t, esc.ID, got.ID)
	require.Equal(t, esc.Buyer, got.Buyer)
	require.Equal(t, esc.Seller, got.Seller)
	require.Zero(t, got.Amount.Cmp(esc.Amount))
	require.Equal(t, escrow.StateFunded, got.State)
	require.Equal(t, esc.CreatedAt, got.CreatedAt)

	_, ok = m.EscrowGet(99)
	require.False(t, ok)
}

func TestEscrowPutRejectsInvalidRecord(t *testing.T) {
	m := newTestManager(t)
	err := m.EscrowPut(&escrow.Escrow{Buyer: testAddr(0x01), Seller: testAddr(0x01), Amount: big.NewInt(1)})
	require.Error(t, err)
}

func TestEscrowNextIDIsMonotonic(t *testing.T) {
	db := storage.NewMemDB()
	m := NewManager(db)

	for want := uint64(0); want < 5; want++ {
		id, err := m.EscrowNextID()
		require.NoError(t, err)
		require.Equal(t, want, id)
	}

	// The counter survives a manager restart over the same database.
	restarted := NewManager(db)
	id, err := restarted.EscrowNextID()
	require.NoError(t, err)
	require.Equal(t, uint64(5), id)
}

func TestVaultAddressIsStableAndDistinct(t *testing.T) {
	m := newTestManager(t)
	vault := m.VaultAddress()
	require.Equal(t, vault, NewManager(storage.NewMemDB()).VaultAddress())
	require.NotEqual(t, [20]byte{}, vault)
}

func TestApplyGenesisRunsOnce(t *testing.T) {
	db := storage.NewMemDB()
	m := NewManager(db)
	addr := testAddr(0x01)

	allocs := map[[20]byte]*big.Int{addr: big.NewInt(1000)}
	require.NoError(t, m.ApplyGenesis(allocs))
	require.NoError(t, m.ApplyGenesis(allocs))

	acc, err := m.GetAccount(addr)
	require.NoError(t, err)
	require.Zero(t, acc.Balance.Cmp(big.NewInt(1000)))

	// A restarted daemon must not re-credit balances either.
	require.NoError(t, NewManager(db).ApplyGenesis(allocs))
	acc, err = m.GetAccount(addr)
	require.NoError(t, err)
	require.Zero(t, acc.Balance.Cmp(big.NewInt(1000)))
}
