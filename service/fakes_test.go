package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"grievance/models"
	"grievance/repository"
)

// memStore is an in-memory EscalationStore and ComplaintStore. Transactions
// are serialized and roll back on error, which stands in for the row lock.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	nextID     int64
	complaints map[int64]*models.Complaint
	configs    map[int]models.EscalationConfig
	history    []models.EscalationHistory
	users      map[int64]*models.UserContact

	failSave    map[int64]error
	panicLock   map[int64]bool
	failConfigs error
	failDue     error
	locks       int
}

func newMemStore() *memStore {
	return &memStore{
		complaints: map[int64]*models.Complaint{},
		configs:    map[int]models.EscalationConfig{},
		users:      map[int64]*models.UserContact{},
		failSave:   map[int64]error{},
		panicLock:  map[int64]bool{},
	}
}

func hours(h int64) *int64 { return &h }

func (m *memStore) addConfig(level int, role, recipients string, timeLimit *int64) {
	m.configs[level] = models.EscalationConfig{
		ID:             int64(level),
		Level:          level,
		TimeLimitHours: timeLimit,
		AssigneeRole:   role,
		Recipients:     recipients,
		Active:         true,
	}
}

func (m *memStore) addUser(id int64, name, email string) {
	u := &models.UserContact{UserID: id, Username: name}
	if email != "" {
		u.Email = sql.NullString{String: email, Valid: true}
	}
	m.users[id] = u
}

// addDue inserts an active level-0 complaint due at due.
func (m *memStore) addDue(userID int64, priority models.Priority, due time.Time) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c := &models.Complaint{
		ComplaintID:     m.nextID,
		ComplaintNumber: fmt.Sprintf("COMP-TEST-%d", m.nextID),
		UserID:          userID,
		Title:           fmt.Sprintf("complaint %d", m.nextID),
		Description:     "printer on fire",
		Status:          models.StatusOpen,
		Priority:        priority,
		CreatedAt:       due.Add(-priority.DefaultTimeLimit()),
	}
	c.ScheduleAt(due)
	m.complaints[c.ComplaintID] = c
	return c.ComplaintID
}

func (m *memStore) complaint(id int64) models.Complaint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.complaints[id]
}

func (m *memStore) historyFor(id int64) []models.EscalationHistory {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.EscalationHistory
	for _, h := range m.history {
		if h.ComplaintID == id {
			out = append(out, h)
		}
	}
	return out
}

func (m *memStore) InTx(ctx context.Context, fn func(repository.Tx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	savedComplaints := make(map[int64]models.Complaint, len(m.complaints))
	for id, c := range m.complaints {
		savedComplaints[id] = *c
	}
	savedHistory := append([]models.EscalationHistory(nil), m.history...)
	m.mu.Unlock()

	rollback := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.complaints = make(map[int64]*models.Complaint, len(savedComplaints))
		for id, c := range savedComplaints {
			c := c
			m.complaints[id] = &c
		}
		m.history = savedHistory
	}
	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
	}()

	if err := fn(&memTx{m: m}); err != nil {
		rollback()
		return err
	}
	return nil
}

func (m *memStore) FindDueForEscalation(ctx context.Context, now time.Time, singleHop bool) ([]models.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDue != nil {
		return nil, m.failDue
	}
	var due []models.Complaint
	for _, c := range m.complaints {
		if models.IsDueForEscalation(c, now, singleHop) {
			due = append(due, *c)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].NextEscalationTime.Time.Equal(due[j].NextEscalationTime.Time) {
			return due[i].ComplaintID < due[j].ComplaintID
		}
		return due[i].NextEscalationTime.Time.Before(due[j].NextEscalationTime.Time)
	})
	return due, nil
}

func (m *memStore) FindConfigByLevel(ctx context.Context, level int) (*models.EscalationConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.configs[level]
	if !ok {
		return nil, nil
	}
	return &cfg, nil
}

func (m *memStore) FindActiveConfigsOrderedByLevel(ctx context.Context) ([]models.EscalationConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failConfigs != nil {
		return nil, m.failConfigs
	}
	var out []models.EscalationConfig
	for _, c := range m.configs {
		if c.Active {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out, nil
}

func (m *memStore) UpsertConfig(ctx context.Context, cfg *models.EscalationConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg.ID = int64(cfg.Level)
	m.configs[cfg.Level] = *cfg
	return nil
}

func (m *memStore) DeleteConfigByLevel(ctx context.Context, level int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.configs[level]; !ok {
		return repository.ErrNotFound
	}
	delete(m.configs, level)
	return nil
}

func (m *memStore) GetHistory(ctx context.Context, complaintID int64) ([]models.EscalationHistory, error) {
	out := m.historyFor(complaintID)
	sort.SliceStable(out, func(i, j int) bool { return out[i].EscalatedAt.After(out[j].EscalatedAt) })
	if out == nil {
		out = []models.EscalationHistory{}
	}
	return out, nil
}

func (m *memStore) CreateComplaint(ctx context.Context, c *models.Complaint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c.ComplaintID = m.nextID
	c.ComplaintNumber = repository.GenerateComplaintNumber(c.CreatedAt)
	stored := *c
	m.complaints[c.ComplaintID] = &stored
	return nil
}

func (m *memStore) GetComplaint(ctx context.Context, complaintID int64) (*models.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.complaints[complaintID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (m *memStore) ListEscalated(ctx context.Context) ([]models.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Complaint
	for _, c := range m.complaints {
		if c.EscalationLevel > 0 {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EscalatedAt.Time.After(out[j].EscalatedAt.Time) })
	return out, nil
}

func (m *memStore) CountByPriority(ctx context.Context) ([]models.PriorityCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[models.Priority]*models.PriorityCount{}
	for _, c := range m.complaints {
		pc, ok := counts[c.Priority]
		if !ok {
			pc = &models.PriorityCount{Priority: c.Priority}
			counts[c.Priority] = pc
		}
		pc.Total++
		if c.EscalationLevel > 0 {
			pc.Escalated++
		}
	}
	var out []models.PriorityCount
	for _, pc := range counts {
		out = append(out, *pc)
	}
	return out, nil
}

func (m *memStore) GetUserContact(ctx context.Context, userID int64) (*models.UserContact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	out := *u
	return &out, nil
}

type memTx struct {
	m *memStore
}

func (t *memTx) LockComplaint(ctx context.Context, complaintID int64) (*models.Complaint, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	t.m.locks++
	if t.m.panicLock[complaintID] {
		panic(fmt.Sprintf("lock of complaint %d exploded", complaintID))
	}
	c, ok := t.m.complaints[complaintID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (t *memTx) save(c *models.Complaint) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if err := t.m.failSave[c.ComplaintID]; err != nil {
		return err
	}
	stored := *c
	t.m.complaints[c.ComplaintID] = &stored
	return nil
}

func (t *memTx) SaveEscalationState(ctx context.Context, c *models.Complaint) error {
	return t.save(c)
}

func (t *memTx) SaveStatus(ctx context.Context, c *models.Complaint) error {
	return t.save(c)
}

func (t *memTx) AppendHistory(ctx context.Context, h *models.EscalationHistory) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	h.ID = int64(len(t.m.history) + 1)
	t.m.history = append(t.m.history, *h)
	return nil
}

func (t *memTx) LastEscalatedAt(ctx context.Context, complaintID int64) (sql.NullTime, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	var last sql.NullTime
	for _, h := range t.m.history {
		if h.ComplaintID == complaintID && (!last.Valid || h.EscalatedAt.After(last.Time)) {
			last = sql.NullTime{Time: h.EscalatedAt, Valid: true}
		}
	}
	return last, nil
}

func (t *memTx) FindConfigByLevel(ctx context.Context, level int) (*models.EscalationConfig, error) {
	return t.m.FindConfigByLevel(ctx, level)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingNotifier struct {
	mu          sync.Mutex
	users       []models.UserEscalationNotice
	roles       []models.RoleEscalationNotice
	resolutions []models.ResolutionNotice
	creations   []models.CreationNotice
}

func (n *recordingNotifier) DispatchUserEscalation(ctx context.Context, notice models.UserEscalationNotice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.users = append(n.users, notice)
}

func (n *recordingNotifier) DispatchRoleEscalation(ctx context.Context, notice models.RoleEscalationNotice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.roles = append(n.roles, notice)
}

func (n *recordingNotifier) DispatchResolution(ctx context.Context, notice models.ResolutionNotice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resolutions = append(n.resolutions, notice)
}

func (n *recordingNotifier) DispatchCreation(ctx context.Context, notice models.CreationNotice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.creations = append(n.creations, notice)
}
