package ledger

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"escrowd/escrow"
	"escrowd/storage"
)

var (
	escrowRecordPrefix = []byte("escrow/record/")
	escrowCounterKey   = []byte("escrow/next-id")
	accountPrefix      = []byte("ledger/account/")
	genesisAppliedKey  = []byte("ledger/genesis-applied")
)

// ErrIDExhausted is returned when the escrow identifier counter can no longer
// be incremented.
var ErrIDExhausted = errors.New("ledger: escrow id counter exhausted")

// ErrInsufficientBalance is returned by Transfer when the source account does
// not hold the requested amount.
var ErrInsufficientBalance = errors.New("ledger: insufficient balance")

// Account is the persisted balance record of a single address.
type Account struct {
	Balance *big.Int `json:"balance"`
	Nonce   uint64   `json:"nonce"`
}

func ensureAccount(acc *Account) *Account {
	if acc == nil {
		return &Account{Balance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}

// Manager persists accounts, escrow records and the identifier counter in a
// key-value database, and provides the atomic value-transfer primitive the
// escrow engine settles through.
type Manager struct {
	mu sync.Mutex
	db storage.Database
}

// NewManager wraps the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func accountKey(addr [20]byte) []byte {
	key := make([]byte, 0, len(accountPrefix)+len(addr))
	key = append(key, accountPrefix...)
	return append(key, addr[:]...)
}

func escrowKey(id uint64) []byte {
	key := make([]byte, 0, len(escrowRecordPrefix)+8)
	key = append(key, escrowRecordPrefix...)
	return binary.BigEndian.AppendUint64(key, id)
}

// GetAccount loads the account for the address, returning a zero-balance
// account when none has been stored yet.
func (m *Manager) GetAccount(addr [20]byte) (*Account, error) {
	raw, err := m.db.Get(accountKey(addr))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return &Account{Balance: big.NewInt(0)}, nil
	}
	if err != nil {
		return nil, err
	}
	acc := &Account{}
	if err := json.Unmarshal(raw, acc); err != nil {
		return nil, fmt.Errorf("ledger: decode account: %w", err)
	}
	return ensureAccount(acc), nil
}

// PutAccount persists the account under its address.
func (m *Manager) PutAccount(addr [20]byte, acc *Account) error {
	acc = ensureAccount(acc)
	if acc.Balance.Sign() < 0 {
		return fmt.Errorf("ledger: negative account balance")
	}
	raw, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("ledger: encode account: %w", err)
	}
	return m.db.Put(accountKey(addr), raw)
}

// Transfer atomically moves amount from one address to another. It fails
// without mutating either account when the source balance is insufficient.
func (m *Manager) Transfer(from, to [20]byte, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("ledger: negative transfer amount")
	}
	fromAcc, err := m.GetAccount(from)
	if err != nil {
		return err
	}
	if fromAcc.Balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if from == to {
		return nil
	}
	toAcc, err := m.GetAccount(to)
	if err != nil {
		return err
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amount)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amount)
	if err := m.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return m.PutAccount(to, toAcc)
}

// Mint credits freshly issued units to the address. Only used when applying
// genesis allocations to an empty database.
func (m *Manager) Mint(addr [20]byte, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("ledger: mint amount must be positive")
	}
	acc, err := m.GetAccount(addr)
	if err != nil {
		return err
	}
	acc.Balance = new(big.Int).Add(acc.Balance, amount)
	return m.PutAccount(addr, acc)
}

// EscrowPut validates and persists the escrow record.
func (m *Manager) EscrowPut(e *escrow.Escrow) error {
	sanitized, err := escrow.Sanitize(e)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(sanitized)
	if err != nil {
		return fmt.Errorf("ledger: encode escrow: %w", err)
	}
	return m.db.Put(escrowKey(sanitized.ID), raw)
}

// EscrowGet loads the escrow record for the identifier. The returned record
// is owned by the caller.
func (m *Manager) EscrowGet(id uint64) (*escrow.Escrow, bool) {
	raw, err := m.db.Get(escrowKey(id))
	if err != nil {
		return nil, false
	}
	esc := &escrow.Escrow{}
	if err := json.Unmarshal(raw, esc); err != nil {
		return nil, false
	}
	return esc, true
}

// EscrowNextID allocates the next escrow identifier. Identifiers start at
// zero, increase by one per allocation and are never reused.
func (m *Manager) EscrowNextID() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := uint64(0)
	raw, err := m.db.Get(escrowCounterKey)
	switch {
	case errors.Is(err, storage.ErrKeyNotFound):
	case err != nil:
		return 0, err
	default:
		if len(raw) != 8 {
			return 0, fmt.Errorf("ledger: corrupt escrow counter")
		}
		next = binary.BigEndian.Uint64(raw)
	}
	if next == math.MaxUint64 {
		return 0, ErrIDExhausted
	}
	buf := binary.BigEndian.AppendUint64(nil, next+1)
	if err := m.db.Put(escrowCounterKey, buf); err != nil {
		return 0, err
	}
	return next, nil
}

// VaultAddress returns the module custody address funds are held at between
// funding and settlement or refund. The address is derived from a
// domain-separation string, so no private key can ever spend from it.
func (m *Manager) VaultAddress() [20]byte {
	return vaultAddress
}

var vaultAddress = deriveVaultAddress()

func deriveVaultAddress() [20]byte {
	var addr [20]byte
	digest := ethcrypto.Keccak256([]byte("escrowd/custody/vault"))
	copy(addr[:], digest[12:])
	return addr
}

// GenesisApplied reports whether initial allocations were already written.
func (m *Manager) GenesisApplied() (bool, error) {
	return m.db.Has(genesisAppliedKey)
}

// ApplyGenesis mints the supplied allocations once. Subsequent calls are
// no-ops so a restarted daemon never re-credits balances.
func (m *Manager) ApplyGenesis(allocs map[[20]byte]*big.Int) error {
	applied, err := m.GenesisApplied()
	if err != nil {
		return err
	}
	if applied {
		return nil
	}
	for addr, amount := range allocs {
		if amount == nil || amount.Sign() <= 0 {
			continue
		}
		if err := m.Mint(addr, amount); err != nil {
			return err
		}
	}
	return m.db.Put(genesisAppliedKey, []byte{1})
}
