package ledger

import (
	"sync"

	"owner_ledger/internal/money"

	"github.com/shopspring/decimal"
)

type sheetRow struct {
	key     uint64
	cells   Cells
	unsaved bool
}

// RowView is a read-only copy of a row for rendering.
type RowView struct {
	Index   int             `json:"index"`
	Key     uint64          `json:"key"`
	Cells   map[string]Cell `json:"cells"`
	Unsaved bool            `json:"unsaved"`
}

// Sheet is the in-memory ledger table. Each row gets a stable key at
// insertion so work queued for a row survives index shifts.
type Sheet struct {
	mu      sync.RWMutex
	rows    []*sheetRow
	nextKey uint64
	hooks   []func(from int)
}

func NewSheet() *Sheet {
	return &Sheet{nextKey: 1}
}

// OnStructureChange registers fn to run after rows at index from and
// beyond changed position (insert, remove, replace).
func (s *Sheet) OnStructureChange(fn func(from int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

func (s *Sheet) fire(from int) {
	s.mu.RLock()
	hooks := append([]func(int){}, s.hooks...)
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn(from)
	}
}

func (s *Sheet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

func (s *Sheet) Row(row int) (Cells, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if row < 0 || row >= len(s.rows) {
		return nil, ErrRowOutOfRange
	}
	return s.rows[row].cells.Clone(), nil
}

func (s *Sheet) Key(row int) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if row < 0 || row >= len(s.rows) {
		return 0, ErrRowOutOfRange
	}
	return s.rows[row].key, nil
}

// IndexOf returns the current position of the row with key.
func (s *Sheet) IndexOf(key uint64) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexOf(key)
}

// RowByKey returns the current position and cells of the row with key.
func (s *Sheet) RowByKey(key uint64) (int, Cells, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.indexOf(key)
	if !ok {
		return -1, nil, false
	}
	return i, s.rows[i].cells.Clone(), true
}

// View renders the row with key the way Snapshot does.
func (s *Sheet) View(key uint64) (RowView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.indexOf(key)
	if !ok {
		return RowView{}, false
	}
	return s.view(i), true
}

func (s *Sheet) view(i int) RowView {
	r := s.rows[i]
	return RowView{Index: i, Key: r.key, Unsaved: r.unsaved, Cells: r.cells.Map()}
}

func (s *Sheet) indexOf(key uint64) (int, bool) {
	for i, r := range s.rows {
		if r.key == key {
			return i, true
		}
	}
	return -1, false
}

// SetCell writes one cell. Out-of-range rows are ignored.
func (s *Sheet) SetCell(row int, f Field, display string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row < 0 || row >= len(s.rows) {
		return
	}
	s.rows[row].cells[f] = Cell{Display: display, Value: value}
}

// SetCellByKey writes one cell of the row with key, wherever it is now.
func (s *Sheet) SetCellByKey(key uint64, f Field, display string, value any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.indexOf(key)
	if !ok {
		return false
	}
	s.rows[i].cells[f] = Cell{Display: display, Value: value}
	return true
}

// InsertRow inserts cells at pos, or appends when pos is out of range.
// It returns the index the row landed at.
func (s *Sheet) InsertRow(pos int, cells Cells) int {
	s.mu.Lock()
	if cells == nil {
		cells = Cells{}
	}
	r := &sheetRow{key: s.nextKey, cells: cells.Clone()}
	s.nextKey++
	if pos < 0 || pos >= len(s.rows) {
		pos = len(s.rows)
		s.rows = append(s.rows, r)
	} else {
		s.rows = append(s.rows, nil)
		copy(s.rows[pos+1:], s.rows[pos:])
		s.rows[pos] = r
	}
	s.mu.Unlock()

	s.fire(pos)
	return pos
}

// RemoveRow removes the row at index and returns its last cells.
func (s *Sheet) RemoveRow(row int) (Cells, error) {
	s.mu.Lock()
	if row < 0 || row >= len(s.rows) {
		s.mu.Unlock()
		return nil, ErrRowOutOfRange
	}
	removed := s.rows[row].cells
	s.rows = append(s.rows[:row], s.rows[row+1:]...)
	s.mu.Unlock()

	s.fire(row)
	return removed, nil
}

// Replace swaps the whole row set, as after a reload or a search.
func (s *Sheet) Replace(rows []Cells) {
	s.mu.Lock()
	s.rows = make([]*sheetRow, 0, len(rows))
	for _, c := range rows {
		s.rows = append(s.rows, &sheetRow{key: s.nextKey, cells: c.Clone()})
		s.nextKey++
	}
	s.mu.Unlock()

	s.fire(0)
}

func (s *Sheet) MarkUnsaved(key uint64, unsaved bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.indexOf(key); ok {
		s.rows[i].unsaved = unsaved
	}
}

func (s *Sheet) Unsaved(row int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if row < 0 || row >= len(s.rows) {
		return false
	}
	return s.rows[row].unsaved
}

func (s *Sheet) Snapshot() []RowView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]RowView, 0, len(s.rows))
	for i := range s.rows {
		out = append(out, s.view(i))
	}
	return out
}

// Sums totals every money column over all rows, like the ledger's footer row.
func (s *Sheet) Sums() map[Field]decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sums := make(map[Field]decimal.Decimal)
	for _, f := range Fields() {
		if f.Money() {
			sums[f] = decimal.Zero
		}
	}
	for _, r := range s.rows {
		for f := range sums {
			sums[f] = sums[f].Add(r.cells.Amount(f))
		}
	}
	for f, v := range sums {
		sums[f] = money.Round(v)
	}
	return sums
}
