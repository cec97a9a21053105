package ledger

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Memo caches the discount figures last derived for one row position.
type Memo struct {
	SallaTotalDiscount    decimal.Decimal
	TotalOfOrdersDiscount decimal.Decimal

	// last-seen raw selector text
	Coupon  string
	Payment string

	// last-seen inputs behind each cached discount
	CouponBase  decimal.Decimal
	CouponRate  decimal.Decimal
	PaymentBase decimal.Decimal
	PaymentRate decimal.Decimal

	// true: TotalDiscountValue is current and must not be recomputed
	TotalDiscountPreCalculated bool
	TotalDiscountValue         decimal.Decimal
	TotalGrossProfit           decimal.Decimal
}

// MemoStore holds one Memo per row position. Memos are positional: any
// structural change at or above a position invalidates it.
type MemoStore struct {
	mu    sync.Mutex
	memos map[int]*Memo
}

func NewMemoStore() *MemoStore {
	return &MemoStore{memos: make(map[int]*Memo)}
}

func (s *MemoStore) GetOrCreate(row int) *Memo {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.memos[row]
	if !ok {
		m = &Memo{}
		s.memos[row] = m
	}
	return m
}

// peek returns the memo for row without creating one.
func (s *MemoStore) peek(row int) (*Memo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memos[row]
	return m, ok
}

func (s *MemoStore) Reset(row int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.memos, row)
}

func (s *MemoStore) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memos = make(map[int]*Memo)
}

// InvalidateFrom drops every memo at position row or below it in the table
// (higher indices). Called on row insert and removal.
func (s *MemoStore) InvalidateFrom(row int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for idx := range s.memos {
		if idx >= row {
			delete(s.memos, idx)
		}
	}
}

func (s *MemoStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.memos)
}
