package service

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Rishie123/billprocessor/config"
	"github.com/Rishie123/billprocessor/model"
)

// BillStore is an in-memory record of processed bills backing the status
// and history endpoints. The durable outputs live in Drive and Sheets; this
// store only remembers what happened to each upload.
type BillStore struct {
	bills    map[string]*model.Bill
	mu       sync.RWMutex
	maxBills int // Maximum bills to keep, 0 = unlimited
}

var (
	globalStore *BillStore
	storeOnce   sync.Once
)

// NewBillStore creates a standalone store, mostly useful for tests.
func NewBillStore(maxBills int) *BillStore {
	if maxBills < 0 {
		maxBills = 0
	}
	return &BillStore{
		bills:    make(map[string]*model.Bill),
		maxBills: maxBills,
	}
}

// InitBillStore initializes the global bill store with configuration
func InitBillStore(cfg *config.StoreConfig) {
	storeOnce.Do(func() {
		globalStore = NewBillStore(cfg.MaxBills)
		slog.Info("bill store initialized", "max_bills", globalStore.maxBills)
	})
}

// GetBillStore returns the global bill store
func GetBillStore() *BillStore {
	if globalStore == nil {
		// Fallback initialization with default settings
		globalStore = &BillStore{
			bills:    make(map[string]*model.Bill),
			maxBills: 200,
		}
	}
	return globalStore
}

func (s *BillStore) Save(bill *model.Bill) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bill.UpdatedAt = time.Now()
	s.bills[bill.ID] = bill

	s.cleanupIfNeeded()
}

func (s *BillStore) Get(id string) *model.Bill {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bills[id]
}

// List returns all bills, newest first.
func (s *BillStore) List() []*model.Bill {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*model.Bill, 0, len(s.bills))
	for _, b := range s.bills {
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// SetStage advances the pipeline status of a bill.
func (s *BillStore) SetStage(id, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bills[id]; ok {
		b.Status = status
		b.UpdatedAt = time.Now()
	}
}

// SetClassification records the first model stage's outcome.
func (s *BillStore) SetClassification(id, billType, partyName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bills[id]; ok {
		b.BillType = billType
		b.PartyName = partyName
		b.UpdatedAt = time.Now()
	}
}

// SetDriveLink records where the image was archived.
func (s *BillStore) SetDriveLink(id, link string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bills[id]; ok {
		b.DriveLink = link
		b.UpdatedAt = time.Now()
	}
}

// SetRecord stores the extracted field record.
func (s *BillStore) SetRecord(id string, rec *model.BillRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bills[id]; ok {
		b.Record = rec
		b.UpdatedAt = time.Now()
	}
}

// Fail marks a bill as failed with a reason.
func (s *BillStore) Fail(id, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bills[id]; ok {
		b.Status = model.StatusFailed
		b.ErrorMsg = errMsg
		b.UpdatedAt = time.Now()
	}
}

// cleanupIfNeeded removes oldest bills if the store exceeds maxBills
// Must be called with lock held
func (s *BillStore) cleanupIfNeeded() {
	if s.maxBills <= 0 {
		return // Unlimited
	}

	if len(s.bills) <= s.maxBills {
		return
	}

	bills := make([]*model.Bill, 0, len(s.bills))
	for _, b := range s.bills {
		bills = append(bills, b)
	}
	sort.Slice(bills, func(i, j int) bool {
		return bills[i].CreatedAt.Before(bills[j].CreatedAt)
	})

	removeCount := len(bills) - s.maxBills
	for i := 0; i < removeCount; i++ {
		slog.Info("auto-cleaning old bill",
			"bill_id", bills[i].ID,
			"created_at", bills[i].CreatedAt,
		)
		delete(s.bills, bills[i].ID)
	}
}

// Count returns the number of bills in the store
func (s *BillStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bills)
}
