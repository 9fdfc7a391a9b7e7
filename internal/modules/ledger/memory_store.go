package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type holdingKey struct {
	userID int64
	symbol string
}

type memoryState struct {
	cash         map[int64]decimal.Decimal
	holdings     map[holdingKey]Holding
	transactions map[int64]Transaction
	nextID       int64
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		cash:         make(map[int64]decimal.Decimal, len(s.cash)),
		holdings:     make(map[holdingKey]Holding, len(s.holdings)),
		transactions: make(map[int64]Transaction, len(s.transactions)),
		nextID:       s.nextID,
	}
	for k, v := range s.cash {
		c.cash[k] = v
	}
	for k, v := range s.holdings {
		c.holdings[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	return c
}

// MemoryStore is an in-process UnitOfWork. Units of work are serialized and
// roll back to a snapshot on error. Transaction ids are never reused.
type MemoryStore struct {
	work  sync.Mutex // serializes Do
	mu    sync.Mutex // guards state
	state *memoryState
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memoryState{
			cash:         make(map[int64]decimal.Decimal),
			holdings:     make(map[holdingKey]Holding),
			transactions: make(map[int64]Transaction),
		},
	}
}

// AddUser registers a user with an opening cash balance
func (m *MemoryStore) AddUser(userID int64, cash decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.cash[userID] = cash
}

// Do runs fn and restores the previous state if it fails
func (m *MemoryStore) Do(ctx context.Context, fn func(Stores) error) error {
	m.work.Lock()
	defer m.work.Unlock()

	m.mu.Lock()
	snapshot := m.state.clone()
	m.mu.Unlock()

	if err := fn(m.Read()); err != nil {
		m.mu.Lock()
		// ids handed out by the failed unit stay burnt
		snapshot.nextID = m.state.nextID
		m.state = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

// Read returns stores operating directly on the current state
func (m *MemoryStore) Read() Stores {
	return Stores{
		Holdings:     memoryHoldings{m},
		Cash:         memoryCash{m},
		Transactions: memoryTransactions{m},
	}
}

type memoryHoldings struct{ m *MemoryStore }

func (s memoryHoldings) Get(_ context.Context, userID int64, symbol string) (*Holding, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	h, ok := s.m.state.holdings[holdingKey{userID, symbol}]
	if !ok {
		return nil, nil
	}
	return &h, nil
}

func (s memoryHoldings) Upsert(_ context.Context, userID int64, symbol string, quantity, averageCost decimal.Decimal) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	s.m.state.holdings[holdingKey{userID, symbol}] = Holding{
		UserID:      userID,
		Symbol:      symbol,
		Quantity:    quantity,
		AverageCost: averageCost,
		UpdatedAt:   time.Now().UTC(),
	}
	return nil
}

func (s memoryHoldings) Remove(_ context.Context, userID int64, symbol string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	delete(s.m.state.holdings, holdingKey{userID, symbol})
	return nil
}

func (s memoryHoldings) List(_ context.Context, userID int64) ([]Holding, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	holdings := make([]Holding, 0)
	for k, h := range s.m.state.holdings {
		if k.userID == userID {
			holdings = append(holdings, h)
		}
	}
	sort.Slice(holdings, func(i, j int) bool { return holdings[i].Symbol < holdings[j].Symbol })
	return holdings, nil
}

type memoryCash struct{ m *MemoryStore }

func (s memoryCash) Balance(_ context.Context, userID int64) (decimal.Decimal, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	balance, ok := s.m.state.cash[userID]
	if !ok {
		return decimal.Zero, fmt.Errorf("user %d does not exist", userID)
	}
	return balance, nil
}

func (s memoryCash) SetBalance(_ context.Context, userID int64, balance decimal.Decimal) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	if _, ok := s.m.state.cash[userID]; !ok {
		return fmt.Errorf("user %d does not exist", userID)
	}
	s.m.state.cash[userID] = balance
	return nil
}

type memoryTransactions struct{ m *MemoryStore }

func (s memoryTransactions) Create(_ context.Context, tx Transaction) (*Transaction, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	s.m.state.nextID++
	tx.ID = s.m.state.nextID
	s.m.state.transactions[tx.ID] = tx
	return &tx, nil
}

func (s memoryTransactions) Get(_ context.Context, userID, id int64) (*Transaction, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	tx, ok := s.m.state.transactions[id]
	if !ok || tx.UserID != userID {
		return nil, nil
	}
	return &tx, nil
}

func (s memoryTransactions) Delete(_ context.Context, userID, id int64) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	if tx, ok := s.m.state.transactions[id]; ok && tx.UserID == userID {
		delete(s.m.state.transactions, id)
	}
	return nil
}

func (s memoryTransactions) List(_ context.Context, userID int64) ([]Transaction, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	transactions := make([]Transaction, 0)
	for _, tx := range s.m.state.transactions {
		if tx.UserID == userID {
			transactions = append(transactions, tx)
		}
	}
	sort.Slice(transactions, func(i, j int) bool {
		a, b := transactions[i], transactions[j]
		if !a.TransactionDate.Equal(b.TransactionDate) {
			return a.TransactionDate.After(b.TransactionDate)
		}
		return a.ID > b.ID
	})
	return transactions, nil
}
