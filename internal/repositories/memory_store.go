package repositories

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"habitly/internal/models/db_models"
	"habitly/pkg/utils"
)

// Commit stages at which a fault can be injected into MemoryStore.
const (
	StageBalanceChecked = "balance_checked"
	StageSeriesInserted = "series_inserted"
	StageBalanceDebited = "balance_debited"
	StageLedgerAppended = "ledger_appended"
)

// FaultFunc is called at each commit stage; a non-nil error aborts the unit.
type FaultFunc func(stage string) error

// MemoryStore keeps users, series and the ledger in process memory. A commit
// works on copies and swaps them in only after every stage succeeded, so a
// failure at any stage leaves the store untouched.
type MemoryStore struct {
	mu     sync.Mutex
	users  map[uuid.UUID]db_models.User
	series map[uuid.UUID]db_models.HabitSeries
	ledger []db_models.QuotaTransaction
	fault  FaultFunc
	now    func() time.Time
}

var (
	_ UserRepository        = (*MemoryStore)(nil)
	_ HabitSeriesRepository = (*MemoryStore)(nil)
	_ QuotaLedger           = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[uuid.UUID]db_models.User),
		series: make(map[uuid.UUID]db_models.HabitSeries),
		now:    time.Now,
	}
}

// SetFault installs f as the commit fault hook; nil removes it.
func (m *MemoryStore) SetFault(f FaultFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fault = f
}

func (m *MemoryStore) inject(stage string) error {
	if m.fault == nil {
		return nil
	}
	return m.fault(stage)
}

func (m *MemoryStore) Insert(_ context.Context, user *db_models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user.Stamp(m.now().Unix())
	if _, exists := m.users[user.ID]; exists {
		return errors.New("user already exists")
	}
	stored := *user
	stored.HabitSeries = nil
	m.users[user.ID] = stored
	return nil
}

func (m *MemoryStore) FindById(_ context.Context, id string) (*db_models.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[uid]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func (m *MemoryStore) CommitGenerated(_ context.Context, req CommitRequest) (CommitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[req.UserID]
	if !ok {
		return CommitResult{}, utils.NewDataAccessFailure("commit habit series: user not found", nil)
	}
	if err := checkCommitPreconditions(&user, req); err != nil {
		return CommitResult{}, err
	}
	if err := m.inject(StageBalanceChecked); err != nil {
		return CommitResult{}, classifyCommitError("commit habit series", err)
	}

	series := copySeries(*req.Series)
	series.UserID = user.ID
	series.Stamp(req.Now)
	if series.LastActivityAt == 0 {
		series.LastActivityAt = req.Now
	}
	for i := range series.Actions {
		series.Actions[i].Stamp(req.Now)
		series.Actions[i].HabitSeriesID = series.ID
		series.Actions[i].Position = i
	}
	if _, exists := m.series[series.ID]; exists {
		return CommitResult{}, utils.NewTransactionFailure("commit habit series: duplicate id", nil)
	}
	if err := m.inject(StageSeriesInserted); err != nil {
		return CommitResult{}, classifyCommitError("commit habit series", err)
	}

	before := user.Energy.Current
	user.Energy.Current -= req.Cost
	user.Energy.LifetimeConsumed += req.Cost
	user.Limits.ActiveSeriesCount++
	user.UpdatedAt = req.Now
	if err := m.inject(StageBalanceDebited); err != nil {
		return CommitResult{}, classifyCommitError("commit habit series", err)
	}

	entry := db_models.QuotaTransaction{
		ID:            uuid.New(),
		UserID:        user.ID,
		CreatedAt:     req.Now,
		Action:        db_models.LedgerActionHabitSeriesCreate,
		Delta:         -req.Cost,
		BalanceBefore: before,
		BalanceAfter:  user.Energy.Current,
		Metadata:      commitMetadata(series.ID, req.PassCosts),
	}
	if err := m.inject(StageLedgerAppended); err != nil {
		return CommitResult{}, classifyCommitError("commit habit series", err)
	}

	m.series[series.ID] = series
	m.users[user.ID] = user
	m.ledger = append(m.ledger, entry)

	// Mirror the ids back the way a gorm Create would.
	req.Series.ID = series.ID
	req.Series.UserID = series.UserID
	req.Series.CreatedAt = series.CreatedAt
	req.Series.UpdatedAt = series.UpdatedAt
	req.Series.LastActivityAt = series.LastActivityAt
	req.Series.Actions = copySeries(series).Actions

	return CommitResult{
		SeriesID:      series.ID,
		BalanceBefore: before,
		BalanceAfter:  user.Energy.Current,
	}, nil
}

func (m *MemoryStore) FindByIdForUser(_ context.Context, userID, seriesID string) (*db_models.HabitSeries, error) {
	uid, err1 := uuid.Parse(userID)
	sid, err2 := uuid.Parse(seriesID)
	if err1 != nil || err2 != nil {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.series[sid]
	if !ok || s.UserID != uid {
		return nil, nil
	}
	out := copySeries(s)
	return &out, nil
}

func (m *MemoryStore) ListByUser(_ context.Context, userID string, page, pageSize int) ([]db_models.HabitSeries, int64, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, 0, nil
	}

	m.mu.Lock()
	var all []db_models.HabitSeries
	for _, s := range m.series {
		if s.UserID == uid {
			all = append(all, copySeries(s))
		}
	}
	m.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt == all[j].CreatedAt {
			return all[i].ID.String() > all[j].ID.String()
		}
		return all[i].CreatedAt > all[j].CreatedAt
	})

	total := int64(len(all))
	start := (page - 1) * pageSize
	if start >= len(all) {
		return []db_models.HabitSeries{}, total, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (m *MemoryStore) DeleteForUser(_ context.Context, userID, seriesID string) (bool, error) {
	uid, err1 := uuid.Parse(userID)
	sid, err2 := uuid.Parse(seriesID)
	if err1 != nil || err2 != nil {
		return false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.series[sid]
	if !ok || s.UserID != uid {
		return false, nil
	}
	user, ok := m.users[uid]
	if !ok {
		return false, nil
	}

	delete(m.series, sid)
	if user.Limits.ActiveSeriesCount > 0 {
		user.Limits.ActiveSeriesCount--
	}
	m.users[uid] = user
	return true, nil
}

func (m *MemoryStore) ApplyDailyRecharge(_ context.Context, req RechargeRequest) (RechargeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[req.UserID]
	if !ok {
		return RechargeResult{}, utils.NewDataAccessFailure("daily recharge: user not found", nil)
	}

	next, entry, changed := planRecharge(user.ID, user.Energy, req)
	if !changed {
		return RechargeResult{Energy: user.Energy}, nil
	}

	entry.ID = uuid.New()
	user.Energy = next
	m.users[user.ID] = user
	m.ledger = append(m.ledger, *entry)

	return RechargeResult{Energy: next, Recharged: true, Transacted: entry}, nil
}

func (m *MemoryStore) ListTransactions(_ context.Context, userID string, limit int) ([]db_models.QuotaTransaction, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []db_models.QuotaTransaction
	for i := len(m.ledger) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if m.ledger[i].UserID == uid {
			out = append(out, m.ledger[i])
		}
	}
	return out, nil
}

// SeriesCount returns how many series are stored across all users.
func (m *MemoryStore) SeriesCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.series)
}

func copySeries(s db_models.HabitSeries) db_models.HabitSeries {
	s.Actions = append([]db_models.HabitAction(nil), s.Actions...)
	return s
}
