package service

import (
    "context"
    "encoding/json"
    "fmt"
    "time"

    "github.com/google/uuid"

    "github.com/dmarquez/venue-pos/internal/idempotency"
    "github.com/dmarquez/venue-pos/internal/model"
    "github.com/dmarquez/venue-pos/internal/repository"
)

type intentStore interface {
    Create(ctx context.Context, p *model.PaymentIntent) error
    FindReusable(ctx context.Context, registerID, cartHash string, amountCents int64) (*model.PaymentIntent, error)
    GetByID(ctx context.Context, id string) (*model.PaymentIntent, error)
    ClaimOldestReady(ctx context.Context, registerID, agentID string) (*model.PaymentIntent, error)
    ReportResult(ctx context.Context, id, agentID string, result model.IntentStatus, fields repository.ResultFields) (*model.PaymentIntent, error)
    Cancel(ctx context.Context, id string) (*model.PaymentIntent, error)
    ListBySession(ctx context.Context, sessionID uint64) ([]model.PaymentIntent, error)
}

type saleStore interface {
    CreateForIntent(ctx context.Context, intentID string, sale *model.Sale, items []model.SaleItem) (*model.Sale, bool, error)
    CreateIdempotent(ctx context.Context, sale *model.Sale, items []model.SaleItem) (*model.Sale, bool, error)
}

type heartbeatStore interface {
    Upsert(ctx context.Context, hb model.AgentHeartbeat) error
    Get(ctx context.Context, registerID string) (*model.AgentHeartbeat, error)
    ListAll(ctx context.Context) ([]model.AgentHeartbeat, error)
}

// CreateIntentInput is a cashier's request to charge a card for the cart.
type CreateIntentInput struct {
    RegisterID  string
    SessionID   uint64
    AmountCents int64
    Currency    string
    Provider    string
    Items       []model.CartItem
}

// CashSaleInput is a cashier's request to record a cash sale.
type CashSaleInput struct {
    RegisterID string
    TotalCents int64
    Items      []model.CartItem
}

// Orchestrator runs payment intents end to end: the cashier creates one, the
// terminal agent claims and resolves it, and the cashier turns an approval
// into exactly one sale. Every state change is a conditional write, so
// whichever side loses a race (cancel vs. result, double confirm) finds out
// instead of clobbering.
type Orchestrator struct {
    intents         intentStore
    sales           saleStore
    sessions        sessionStore
    shifts          shiftStore
    heartbeats      heartbeatStore
    audit           *AuditRecorder
    amountTolerance int64
    now             func() time.Time
    newID           func() string
}

// NewOrchestrator returns an Orchestrator. amountTolerance is the maximum
// drift in cents allowed between the client-stated amount and the
// server-computed cart total.
func NewOrchestrator(intents intentStore, sales saleStore, sessions sessionStore, shifts shiftStore, heartbeats heartbeatStore, audit *AuditRecorder, amountTolerance int64) *Orchestrator {
    return &Orchestrator{
        intents:         intents,
        sales:           sales,
        sessions:        sessions,
        shifts:          shifts,
        heartbeats:      heartbeats,
        audit:           audit,
        amountTolerance: amountTolerance,
        now:             func() time.Time { return time.Now().UTC() },
        newID:           uuid.NewString,
    }
}

// CreateIntent creates a READY payment intent for the cart, freezing the cart
// snapshot into it. If an unsettled intent for the same register, cart and
// amount already exists it is returned with reused=true — a double-tapped
// charge button queues one charge, not two.
func (o *Orchestrator) CreateIntent(ctx context.Context, actor model.Actor, in CreateIntentInput) (*model.PaymentIntent, bool, error) {
    cartTotal, err := validateCart(in.Items)
    if err != nil {
        return nil, false, err
    }
    if drift := in.AmountCents - cartTotal; drift > o.amountTolerance || drift < -o.amountTolerance {
        return nil, false, fmt.Errorf("amount %d does not match cart total %d: %w",
            in.AmountCents, cartTotal, repository.ErrValidation)
    }

    session, err := o.sessions.GetByID(ctx, in.SessionID)
    if err != nil {
        return nil, false, err
    }
    if session.RegisterID != in.RegisterID {
        return nil, false, fmt.Errorf("session %d is not on register %s: %w",
            in.SessionID, in.RegisterID, repository.ErrValidation)
    }
    if !session.CanSell() {
        return nil, false, fmt.Errorf("session %d cannot take sales (status %s): %w",
            in.SessionID, session.Status, repository.ErrPrecondition)
    }
    if err := requireSessionActor(session, actor); err != nil {
        return nil, false, err
    }

    hash := idempotency.CartHash(in.Items)
    if existing, err := o.intents.FindReusable(ctx, in.RegisterID, hash, in.AmountCents); err != nil {
        return nil, false, err
    } else if existing != nil {
        return existing, true, nil
    }

    cartJSON, err := json.Marshal(in.Items)
    if err != nil {
        return nil, false, err
    }
    intent := &model.PaymentIntent{
        ID:           o.newID(),
        RegisterID:   in.RegisterID,
        SessionID:    in.SessionID,
        EmployeeID:   actor.ID,
        EmployeeName: actor.Name,
        AmountCents:  in.AmountCents,
        Currency:     in.Currency,
        CartJSON:     string(cartJSON),
        CartHash:     hash,
        Provider:     in.Provider,
        Status:       model.IntentReady,
    }
    if err := o.intents.Create(ctx, intent); err != nil {
        return nil, false, err
    }
    o.audit.Info(ctx, model.EventIntentCreated, actor,
        model.AuditRefs{RegisterID: in.RegisterID, SessionID: in.SessionID, IntentID: intent.ID},
        map[string]any{"amount_cents": in.AmountCents, "provider": in.Provider})
    return intent, false, nil
}

// Get returns an intent by id.
func (o *Orchestrator) Get(ctx context.Context, id string) (*model.PaymentIntent, error) {
    return o.intents.GetByID(ctx, id)
}

// ListBySession returns a session's intents for the admin view.
func (o *Orchestrator) ListBySession(ctx context.Context, sessionID uint64) ([]model.PaymentIntent, error) {
    return o.intents.ListBySession(ctx, sessionID)
}

// Cancel cancels a non-terminal intent. Once the agent has settled it the
// cancel loses and the terminal status comes back in the error.
func (o *Orchestrator) Cancel(ctx context.Context, actor model.Actor, id string) (*model.PaymentIntent, error) {
    intent, err := o.intents.GetByID(ctx, id)
    if err != nil {
        return nil, err
    }
    if intent.EmployeeID != actor.ID && !actor.IsAdmin() {
        return nil, fmt.Errorf("intent %s belongs to %s: %w", id, intent.EmployeeName, repository.ErrConflict)
    }
    cancelled, err := o.intents.Cancel(ctx, id)
    if err != nil {
        return nil, err
    }
    o.audit.Info(ctx, model.EventIntentCancelled, actor,
        model.AuditRefs{RegisterID: cancelled.RegisterID, SessionID: cancelled.SessionID, IntentID: id}, nil)
    return cancelled, nil
}

// ClaimNext hands the oldest READY intent on a register to the polling agent,
// or returns nil when the queue is empty. Safe to call from any number of
// concurrent agents.
func (o *Orchestrator) ClaimNext(ctx context.Context, agentID, registerID string) (*model.PaymentIntent, error) {
    intent, err := o.intents.ClaimOldestReady(ctx, registerID, agentID)
    if err != nil || intent == nil {
        return nil, err
    }
    o.audit.Info(ctx, model.EventIntentClaimed, agentActor(agentID),
        model.AuditRefs{RegisterID: registerID, SessionID: intent.SessionID, IntentID: intent.ID}, nil)
    return intent, nil
}

// ReportResult records the agent's terminal outcome for an intent it claimed.
func (o *Orchestrator) ReportResult(ctx context.Context, agentID, intentID string, result model.IntentStatus, fields repository.ResultFields) (*model.PaymentIntent, error) {
    intent, err := o.intents.ReportResult(ctx, intentID, agentID, result, fields)
    if err != nil {
        return nil, err
    }
    refs := model.AuditRefs{RegisterID: intent.RegisterID, SessionID: intent.SessionID, IntentID: intentID}
    payload := map[string]any{"result": result, "provider_ref": fields.ProviderRef}
    if result == model.IntentError {
        o.audit.Warn(ctx, model.EventIntentResolved, agentActor(agentID), refs, payload)
    } else {
        o.audit.Info(ctx, model.EventIntentResolved, agentActor(agentID), refs, payload)
    }
    return intent, nil
}

// ConfirmSale turns an APPROVED intent into its sale, exactly once. The sale
// is built from the cart snapshot frozen at intent creation, never from
// whatever the client sends at confirm time. paymentType says which card rail
// the terminal used, debit or credit.
func (o *Orchestrator) ConfirmSale(ctx context.Context, actor model.Actor, intentID, paymentType string) (*model.Sale, bool, error) {
    if paymentType != model.PaymentDebit && paymentType != model.PaymentCredit {
        return nil, false, fmt.Errorf("payment type %q is not a card rail: %w", paymentType, repository.ErrValidation)
    }
    intent, err := o.intents.GetByID(ctx, intentID)
    if err != nil {
        return nil, false, err
    }
    session, err := o.sessions.GetByID(ctx, intent.SessionID)
    if err != nil {
        return nil, false, err
    }

    var cart []model.CartItem
    if err := json.Unmarshal([]byte(intent.CartJSON), &cart); err != nil {
        return nil, false, fmt.Errorf("decode cart snapshot of intent %s: %w", intentID, err)
    }

    sale := &model.Sale{
        RegisterID:   intent.RegisterID,
        SessionID:    intent.SessionID,
        ShiftID:      session.ShiftID,
        EmployeeID:   actor.ID,
        EmployeeName: actor.Name,
        TotalCents:   intent.AmountCents,
        PaymentType:  paymentType,
        Provider:     &intent.Provider,
        // The intent id is already the idempotent handle for this sale; the
        // linkage transaction enforces exactly-once on top of it.
        IdempotencyKey: "intent:" + intentID,
    }
    if paymentType == model.PaymentDebit {
        sale.DebitCents = intent.AmountCents
    } else {
        sale.CreditCents = intent.AmountCents
    }

    created, reused, err := o.sales.CreateForIntent(ctx, intentID, sale, saleItems(cart))
    if err != nil {
        return nil, false, err
    }
    if !reused {
        o.audit.Info(ctx, model.EventSaleCreated, actor,
            model.AuditRefs{RegisterID: created.RegisterID, SessionID: created.SessionID, IntentID: intentID},
            map[string]any{"sale_id": created.ID, "total_cents": created.TotalCents, "payment_type": paymentType})
    }
    return created, reused, nil
}

// RecordCashSale records a cash sale against the register's open session.
// Retries inside the same minute collapse onto the first sale via the
// content-derived idempotency key.
func (o *Orchestrator) RecordCashSale(ctx context.Context, actor model.Actor, in CashSaleInput) (*model.Sale, bool, error) {
    cartTotal, err := validateCart(in.Items)
    if err != nil {
        return nil, false, err
    }
    if drift := in.TotalCents - cartTotal; drift > o.amountTolerance || drift < -o.amountTolerance {
        return nil, false, fmt.Errorf("amount %d does not match cart total %d: %w",
            in.TotalCents, cartTotal, repository.ErrValidation)
    }

    shift, err := o.shifts.GetOpen(ctx)
    if err != nil {
        return nil, false, err
    }
    if shift == nil {
        return nil, false, errNoOpenShift()
    }
    session, err := o.sessions.GetOpenByRegister(ctx, in.RegisterID, shift.ID)
    if err != nil {
        return nil, false, err
    }
    if session == nil {
        return nil, false, fmt.Errorf("register %s has no open session: %w", in.RegisterID, repository.ErrPrecondition)
    }
    if err := requireSessionActor(session, actor); err != nil {
        return nil, false, err
    }

    sale := &model.Sale{
        RegisterID:     in.RegisterID,
        SessionID:      session.ID,
        ShiftID:        shift.ID,
        EmployeeID:     actor.ID,
        EmployeeName:   actor.Name,
        TotalCents:     cartTotal,
        PaymentType:    model.PaymentCash,
        CashCents:      cartTotal,
        IdempotencyKey: idempotency.SaleKey(in.Items, in.RegisterID, actor.ID, model.PaymentCash, cartTotal, o.now()),
    }
    created, reused, err := o.sales.CreateIdempotent(ctx, sale, saleItems(in.Items))
    if err != nil {
        return nil, false, err
    }
    if !reused {
        o.audit.Info(ctx, model.EventSaleCreated, actor,
            model.AuditRefs{RegisterID: in.RegisterID, SessionID: session.ID, ShiftID: shift.ID},
            map[string]any{"sale_id": created.ID, "total_cents": created.TotalCents, "payment_type": model.PaymentCash})
    }
    return created, reused, nil
}

// Heartbeat stores last-seen telemetry for a register's agent. Advisory only;
// it never gates claims or results.
func (o *Orchestrator) Heartbeat(ctx context.Context, agentID, registerID, connectivity string) error {
    return o.heartbeats.Upsert(ctx, model.AgentHeartbeat{
        RegisterID:   registerID,
        AgentName:    agentID,
        Connectivity: connectivity,
        LastSeen:     o.now(),
    })
}

// ListAgents returns the known agent heartbeats.
func (o *Orchestrator) ListAgents(ctx context.Context) ([]model.AgentHeartbeat, error) {
    return o.heartbeats.ListAll(ctx)
}

// validateCart checks line sanity and returns the server-computed total.
func validateCart(items []model.CartItem) (int64, error) {
    if len(items) == 0 {
        return 0, fmt.Errorf("cart is empty: %w", repository.ErrValidation)
    }
    var total int64
    for _, it := range items {
        if it.ItemID == "" {
            return 0, fmt.Errorf("cart line missing item id: %w", repository.ErrValidation)
        }
        if it.Quantity <= 0 {
            return 0, fmt.Errorf("cart line %s has quantity %d: %w", it.ItemID, it.Quantity, repository.ErrValidation)
        }
        if it.UnitPriceCents < 0 {
            return 0, fmt.Errorf("cart line %s has negative price: %w", it.ItemID, repository.ErrValidation)
        }
        total += int64(it.Quantity) * it.UnitPriceCents
    }
    return total, nil
}

// saleItems converts a cart snapshot into sale line items.
func saleItems(cart []model.CartItem) []model.SaleItem {
    items := make([]model.SaleItem, 0, len(cart))
    for _, it := range cart {
        items = append(items, model.SaleItem{
            ProductID:      it.ItemID,
            ProductName:    it.Name,
            Quantity:       it.Quantity,
            UnitPriceCents: it.UnitPriceCents,
            SubtotalCents:  int64(it.Quantity) * it.UnitPriceCents,
        })
    }
    return items
}

// agentActor is the acting identity recorded for terminal agents, which
// authenticate with the shared key rather than a JWT.
func agentActor(agentID string) model.Actor {
    return model.Actor{ID: agentID, Name: agentID, Role: "AGENT"}
}
