package service

import (
    "context"
    "fmt"
    "sort"
    "sync"
    "time"

    "github.com/dmarquez/venue-pos/internal/model"
    "github.com/dmarquez/venue-pos/internal/repository"
)

// In-memory stores reproducing the repositories' conditional-write contracts
// (status-asserting updates, duplicate-key style conflicts) so the services
// can be exercised without a database.

type memAudit struct {
    mu      sync.Mutex
    entries []model.AuditEntry
}

func (m *memAudit) Insert(_ context.Context, e *model.AuditEntry) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    m.entries = append(m.entries, *e)
    return nil
}

func (m *memAudit) byType(eventType string) []model.AuditEntry {
    m.mu.Lock()
    defer m.mu.Unlock()
    var out []model.AuditEntry
    for _, e := range m.entries {
        if e.EventType == eventType {
            out = append(out, e)
        }
    }
    return out
}

type memRegisters struct {
    ids map[string]bool
}

func (m *memRegisters) GetByID(_ context.Context, id string) (*model.Register, error) {
    if !m.ids[id] {
        return nil, fmt.Errorf("register %s not found: %w", id, repository.ErrNotFound)
    }
    return &model.Register{ID: id, Name: id, IsActive: true}, nil
}

type memLocks struct {
    mu    sync.Mutex
    locks map[string]model.RegisterLock
}

func newMemLocks() *memLocks {
    return &memLocks{locks: map[string]model.RegisterLock{}}
}

func (m *memLocks) Acquire(_ context.Context, registerID, employeeID, employeeName string, ttl time.Duration) (bool, *model.RegisterLock, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    now := time.Now().UTC()
    if cur, ok := m.locks[registerID]; ok && !cur.Expired(now) && cur.EmployeeID != employeeID {
        holder := cur
        return false, &holder, nil
    }
    lock := model.RegisterLock{
        RegisterID:   registerID,
        EmployeeID:   employeeID,
        EmployeeName: employeeName,
        LockedAt:     now,
        ExpiresAt:    now.Add(ttl),
    }
    m.locks[registerID] = lock
    return true, &lock, nil
}

func (m *memLocks) Get(_ context.Context, registerID string) (*model.RegisterLock, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    cur, ok := m.locks[registerID]
    if !ok || cur.Expired(time.Now().UTC()) {
        return nil, nil
    }
    holder := cur
    return &holder, nil
}

func (m *memLocks) Release(_ context.Context, registerID string) (bool, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    _, ok := m.locks[registerID]
    delete(m.locks, registerID)
    return ok, nil
}

func (m *memLocks) ReleaseOthersForEmployee(_ context.Context, employeeID, keep string) ([]string, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    var ids []string
    for id, l := range m.locks {
        if l.EmployeeID == employeeID && id != keep {
            ids = append(ids, id)
            delete(m.locks, id)
        }
    }
    sort.Strings(ids)
    return ids, nil
}

func (m *memLocks) ListForEmployee(_ context.Context, employeeID string) ([]model.RegisterLock, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    var out []model.RegisterLock
    for _, l := range m.locks {
        if l.EmployeeID == employeeID {
            out = append(out, l)
        }
    }
    return out, nil
}

func (m *memLocks) ListAll(_ context.Context) ([]model.RegisterLock, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    var out []model.RegisterLock
    for _, l := range m.locks {
        out = append(out, l)
    }
    return out, nil
}

func (m *memLocks) ReleaseAll(_ context.Context) (int64, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    n := int64(len(m.locks))
    m.locks = map[string]model.RegisterLock{}
    return n, nil
}

type memShifts struct {
    mu     sync.Mutex
    nextID uint64
    shifts map[uint64]*model.Shift
}

func newMemShifts() *memShifts {
    return &memShifts{shifts: map[uint64]*model.Shift{}}
}

func (m *memShifts) Open(_ context.Context, businessDate, openedBy string) (*model.Shift, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    for _, s := range m.shifts {
        if s.Status == model.ShiftOpen {
            return nil, fmt.Errorf("shift %d is already open: %w", s.ID, repository.ErrConflict)
        }
    }
    m.nextID++
    s := &model.Shift{
        ID:           m.nextID,
        BusinessDate: businessDate,
        Status:       model.ShiftOpen,
        OpenedBy:     openedBy,
        OpenedAt:     time.Now().UTC(),
    }
    m.shifts[s.ID] = s
    return s, nil
}

func (m *memShifts) GetByID(_ context.Context, id uint64) (*model.Shift, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    s, ok := m.shifts[id]
    if !ok {
        return nil, fmt.Errorf("shift %d not found: %w", id, repository.ErrNotFound)
    }
    cp := *s
    return &cp, nil
}

func (m *memShifts) GetOpen(_ context.Context) (*model.Shift, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    for _, s := range m.shifts {
        if s.Status == model.ShiftOpen {
            cp := *s
            return &cp, nil
        }
    }
    return nil, nil
}

func (m *memShifts) Close(_ context.Context, id uint64) (*model.Shift, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    s, ok := m.shifts[id]
    if !ok {
        return nil, fmt.Errorf("shift %d not found: %w", id, repository.ErrNotFound)
    }
    if s.Status != model.ShiftOpen {
        return nil, fmt.Errorf("shift %d is not open: %w", id, repository.ErrPrecondition)
    }
    now := time.Now().UTC()
    s.Status = model.ShiftClosed
    s.ClosedAt = &now
    cp := *s
    return &cp, nil
}

type memSessions struct {
    mu       sync.Mutex
    nextID   uint64
    sessions map[uint64]*model.RegisterSession

    // expected totals and ticket count the next Close should "aggregate",
    // standing in for the sales table.
    expected model.MethodTotals
    tickets  int
}

func newMemSessions() *memSessions {
    return &memSessions{sessions: map[uint64]*model.RegisterSession{}}
}

func (m *memSessions) Open(_ context.Context, registerID string, shiftID uint64, employeeID, employeeName string, openingCashCents *int64, idemKey string) (*model.RegisterSession, bool, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    for _, s := range m.sessions {
        if s.IdempotencyKey == idemKey {
            cp := *s
            return &cp, true, nil
        }
    }
    for _, s := range m.sessions {
        if s.RegisterID == registerID && s.ShiftID == shiftID && s.Status == model.SessionOpen {
            return nil, false, fmt.Errorf("register %s already has an open session: %w", registerID, repository.ErrConflict)
        }
    }
    m.nextID++
    s := &model.RegisterSession{
        ID:               m.nextID,
        RegisterID:       registerID,
        ShiftID:          shiftID,
        OpenedByID:       employeeID,
        OpenedByName:     employeeName,
        Status:           model.SessionOpen,
        OpenedAt:         time.Now().UTC(),
        OpeningCashCents: openingCashCents,
        IdempotencyKey:   idemKey,
    }
    m.sessions[s.ID] = s
    cp := *s
    return &cp, false, nil
}

func (m *memSessions) GetByID(_ context.Context, id uint64) (*model.RegisterSession, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    s, ok := m.sessions[id]
    if !ok {
        return nil, fmt.Errorf("session %d not found: %w", id, repository.ErrNotFound)
    }
    cp := *s
    return &cp, nil
}

func (m *memSessions) GetOpenByRegister(_ context.Context, registerID string, shiftID uint64) (*model.RegisterSession, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    for _, s := range m.sessions {
        if s.RegisterID == registerID && s.ShiftID == shiftID && s.Status == model.SessionOpen {
            cp := *s
            return &cp, nil
        }
    }
    return nil, nil
}

func (m *memSessions) StartClose(_ context.Context, id uint64) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    s, ok := m.sessions[id]
    if !ok {
        return fmt.Errorf("session %d not found: %w", id, repository.ErrNotFound)
    }
    if s.Status != model.SessionOpen {
        return fmt.Errorf("session %d is not open (status %s): %w", id, s.Status, repository.ErrPrecondition)
    }
    s.Status = model.SessionPendingClose
    return nil
}

func (m *memSessions) Close(_ context.Context, id uint64, declared model.MethodTotals, closedBy string, notes, incidentsJSON *string, reviewToleranceCents int64) (*model.RegisterSession, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    s, ok := m.sessions[id]
    if !ok {
        return nil, fmt.Errorf("session %d not found: %w", id, repository.ErrNotFound)
    }
    if !s.Status.CanTransition(model.SessionClosed) {
        return nil, fmt.Errorf("session %d cannot close (status %s): %w", id, s.Status, repository.ErrPrecondition)
    }

    expected := m.expected
    if s.OpeningCashCents != nil {
        expected.CashCents += *s.OpeningCashCents
    }
    variance := declared.Sub(expected)
    varianceTotal := variance.Sum()
    needsReview := varianceTotal > reviewToleranceCents || varianceTotal < -reviewToleranceCents

    now := time.Now().UTC()
    tickets := m.tickets
    s.Status = model.SessionClosed
    s.ClosedAt = &now
    s.ClosedBy = &closedBy
    s.Declared = &declared
    s.Expected = &expected
    s.Variance = &variance
    s.VarianceTotal = &varianceTotal
    s.TicketCount = &tickets
    s.NeedsReview = needsReview
    s.CloseNotes = notes
    s.IncidentsJSON = incidentsJSON
    cp := *s
    return &cp, nil
}

func (m *memSessions) ListClosed(_ context.Context, onlyNeedsReview bool, _ int) ([]model.RegisterSession, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    var out []model.RegisterSession
    for _, s := range m.sessions {
        if s.Status != model.SessionClosed {
            continue
        }
        if onlyNeedsReview && !s.NeedsReview {
            continue
        }
        out = append(out, *s)
    }
    return out, nil
}

func (m *memSessions) Resolve(_ context.Context, id uint64, resolvedBy string, notes *string) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    s, ok := m.sessions[id]
    if !ok || s.Status != model.SessionClosed || s.ResolvedAt != nil {
        return fmt.Errorf("session %d is not a closed, unresolved session: %w", id, repository.ErrPrecondition)
    }
    now := time.Now().UTC()
    s.ResolvedBy = &resolvedBy
    s.ResolvedAt = &now
    s.ResolutionNotes = notes
    return nil
}

type memIntents struct {
    mu      sync.Mutex
    seq     int
    intents map[string]*model.PaymentIntent
}

func newMemIntents() *memIntents {
    return &memIntents{intents: map[string]*model.PaymentIntent{}}
}

func (m *memIntents) Create(_ context.Context, p *model.PaymentIntent) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    m.seq++
    // Strictly increasing timestamps keep claim ordering deterministic.
    p.CreatedAt = time.Unix(int64(m.seq), 0).UTC()
    p.UpdatedAt = p.CreatedAt
    cp := *p
    m.intents[p.ID] = &cp
    return nil
}

func (m *memIntents) FindReusable(_ context.Context, registerID, cartHash string, amountCents int64) (*model.PaymentIntent, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    var best *model.PaymentIntent
    for _, p := range m.intents {
        if p.RegisterID != registerID || p.CartHash != cartHash || p.AmountCents != amountCents {
            continue
        }
        if p.Status.Terminal() {
            continue
        }
        if best == nil || p.CreatedAt.After(best.CreatedAt) {
            best = p
        }
    }
    if best == nil {
        return nil, nil
    }
    cp := *best
    return &cp, nil
}

func (m *memIntents) GetByID(_ context.Context, id string) (*model.PaymentIntent, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    p, ok := m.intents[id]
    if !ok {
        return nil, fmt.Errorf("intent %s not found: %w", id, repository.ErrNotFound)
    }
    cp := *p
    return &cp, nil
}

func (m *memIntents) ClaimOldestReady(_ context.Context, registerID, agentID string) (*model.PaymentIntent, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    var oldest *model.PaymentIntent
    for _, p := range m.intents {
        if p.RegisterID != registerID || p.Status != model.IntentReady {
            continue
        }
        if oldest == nil || p.CreatedAt.Before(oldest.CreatedAt) {
            oldest = p
        }
    }
    if oldest == nil {
        return nil, nil
    }
    now := time.Now().UTC()
    oldest.Status = model.IntentInProgress
    oldest.ClaimedByAgent = &agentID
    oldest.ClaimedAt = &now
    oldest.UpdatedAt = now
    cp := *oldest
    return &cp, nil
}

func (m *memIntents) ReportResult(_ context.Context, id, agentID string, result model.IntentStatus, fields repository.ResultFields) (*model.PaymentIntent, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    if !result.ResultStatus() {
        return nil, fmt.Errorf("%s is not a reportable result status: %w", result, repository.ErrValidation)
    }
    p, ok := m.intents[id]
    if !ok {
        return nil, fmt.Errorf("intent %s not found: %w", id, repository.ErrNotFound)
    }
    if p.Status != model.IntentInProgress || p.ClaimedByAgent == nil || *p.ClaimedByAgent != agentID {
        return nil, fmt.Errorf("intent %s is not in progress for this agent (status %s): %w",
            id, p.Status, repository.ErrPrecondition)
    }
    now := time.Now().UTC()
    p.Status = result
    p.ProviderRef = fields.ProviderRef
    p.AuthCode = fields.AuthCode
    p.ErrorCode = fields.ErrorCode
    p.ErrorMessage = fields.ErrorMessage
    p.UpdatedAt = now
    if result == model.IntentApproved {
        p.ApprovedAt = &now
    }
    cp := *p
    return &cp, nil
}

func (m *memIntents) Cancel(_ context.Context, id string) (*model.PaymentIntent, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    p, ok := m.intents[id]
    if !ok {
        return nil, fmt.Errorf("intent %s not found: %w", id, repository.ErrNotFound)
    }
    if !p.Status.CanTransition(model.IntentCancelled) {
        return nil, fmt.Errorf("intent %s already settled (status %s): %w", id, p.Status, repository.ErrPrecondition)
    }
    p.Status = model.IntentCancelled
    p.UpdatedAt = time.Now().UTC()
    cp := *p
    return &cp, nil
}

func (m *memIntents) ListBySession(_ context.Context, sessionID uint64) ([]model.PaymentIntent, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    var out []model.PaymentIntent
    for _, p := range m.intents {
        if p.SessionID == sessionID {
            out = append(out, *p)
        }
    }
    return out, nil
}

type memSales struct {
    mu      sync.Mutex
    nextID  uint64
    byKey   map[string]*model.Sale
    intents *memIntents
}

func newMemSales(intents *memIntents) *memSales {
    return &memSales{byKey: map[string]*model.Sale{}, intents: intents}
}

func (m *memSales) CreateForIntent(_ context.Context, intentID string, sale *model.Sale, _ []model.SaleItem) (*model.Sale, bool, error) {
    m.intents.mu.Lock()
    p, ok := m.intents.intents[intentID]
    m.intents.mu.Unlock()
    if !ok {
        return nil, false, fmt.Errorf("intent %s not found: %w", intentID, repository.ErrNotFound)
    }

    m.mu.Lock()
    defer m.mu.Unlock()
    if p.SaleID != nil {
        for _, s := range m.byKey {
            if s.ID == *p.SaleID {
                cp := *s
                return &cp, true, nil
            }
        }
    }
    if p.Status != model.IntentApproved {
        return nil, false, fmt.Errorf("intent %s is not approved (status %s): %w", intentID, p.Status, repository.ErrPrecondition)
    }
    m.nextID++
    sale.ID = m.nextID
    sale.IntentID = &intentID
    sale.CreatedAt = time.Now().UTC()
    cp := *sale
    m.byKey[sale.IdempotencyKey] = &cp
    p.SaleID = &sale.ID
    out := cp
    return &out, false, nil
}

func (m *memSales) CreateIdempotent(_ context.Context, sale *model.Sale, _ []model.SaleItem) (*model.Sale, bool, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    if existing, ok := m.byKey[sale.IdempotencyKey]; ok {
        cp := *existing
        return &cp, true, nil
    }
    m.nextID++
    sale.ID = m.nextID
    sale.CreatedAt = time.Now().UTC()
    cp := *sale
    m.byKey[sale.IdempotencyKey] = &cp
    out := cp
    return &out, false, nil
}

type memHeartbeats struct {
    mu  sync.Mutex
    hbs map[string]model.AgentHeartbeat
}

func newMemHeartbeats() *memHeartbeats {
    return &memHeartbeats{hbs: map[string]model.AgentHeartbeat{}}
}

func (m *memHeartbeats) Upsert(_ context.Context, hb model.AgentHeartbeat) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    m.hbs[hb.RegisterID] = hb
    return nil
}

func (m *memHeartbeats) Get(_ context.Context, registerID string) (*model.AgentHeartbeat, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    hb, ok := m.hbs[registerID]
    if !ok {
        return nil, nil
    }
    return &hb, nil
}

func (m *memHeartbeats) ListAll(_ context.Context) ([]model.AgentHeartbeat, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    var out []model.AgentHeartbeat
    for _, hb := range m.hbs {
        out = append(out, hb)
    }
    return out, nil
}
