package model

import "time"

// IntentStatus is the closed set of payment intent states.
type IntentStatus string

// Intent lifecycle: CREATED -> READY -> IN_PROGRESS -> {APPROVED | DECLINED |
// ERROR}. CREATED, READY and IN_PROGRESS may also move to CANCELLED; the four
// result states are terminal and immutable.
const (
    IntentCreated    IntentStatus = "CREATED"
    IntentReady      IntentStatus = "READY"
    IntentInProgress IntentStatus = "IN_PROGRESS"
    IntentApproved   IntentStatus = "APPROVED"
    IntentDeclined   IntentStatus = "DECLINED"
    IntentError      IntentStatus = "ERROR"
    IntentCancelled  IntentStatus = "CANCELLED"
)

var intentTransitions = map[IntentStatus][]IntentStatus{
    IntentCreated:    {IntentReady, IntentCancelled},
    IntentReady:      {IntentInProgress, IntentCancelled},
    IntentInProgress: {IntentApproved, IntentDeclined, IntentError, IntentCancelled},
    IntentApproved:   {},
    IntentDeclined:   {},
    IntentError:      {},
    IntentCancelled:  {},
}

// CanTransition reports whether an intent may move from s to next.
func (s IntentStatus) CanTransition(next IntentStatus) bool {
    for _, allowed := range intentTransitions[s] {
        if allowed == next {
            return true
        }
    }
    return false
}

// Terminal reports whether s is one of the immutable end states.
func (s IntentStatus) Terminal() bool {
    return len(intentTransitions[s]) == 0 && s.Valid()
}

// Valid reports whether the value is a known intent status.
func (s IntentStatus) Valid() bool {
    _, ok := intentTransitions[s]
    return ok
}

// ResultStatus reports whether s is a status an agent may report:
// APPROVED, DECLINED or ERROR.
func (s IntentStatus) ResultStatus() bool {
    return s == IntentApproved || s == IntentDeclined || s == IntentError
}

// CartItem is one line of the cart snapshot frozen into an intent at
// creation time. Prices are unit prices in cents; the snapshot is the basis
// for the sale created after approval, not the live cart.
type CartItem struct {
    ItemID         string `json:"item_id"`
    Name           string `json:"name"`
    Quantity       int    `json:"quantity"`
    UnitPriceCents int64  `json:"unit_price_cents"`
}

// PaymentIntent is one payment attempt awaiting resolution by the remote
// terminal agent. Created by the cashier flow, claimed and resolved by the
// agent, and turned into a sale by the cashier flow again — the SaleID field
// records that linkage exactly once.
type PaymentIntent struct {
    ID             string       // payment_intents.id (uuid)
    RegisterID     string       // payment_intents.register_id
    SessionID      uint64       // payment_intents.session_id
    EmployeeID     string       // payment_intents.employee_id
    EmployeeName   string       // payment_intents.employee_name
    AmountCents    int64        // payment_intents.amount_cents
    Currency       string       // payment_intents.currency
    CartJSON       string       // payment_intents.cart_json
    CartHash       string       // payment_intents.cart_hash (sha256 hex)
    Provider       string       // payment_intents.provider
    Status         IntentStatus // payment_intents.status
    ProviderRef    *string      // payment_intents.provider_ref
    AuthCode       *string      // payment_intents.auth_code
    ErrorCode      *string      // payment_intents.error_code
    ErrorMessage   *string      // payment_intents.error_message
    ClaimedByAgent *string      // payment_intents.claimed_by_agent
    ClaimedAt      *time.Time   // payment_intents.claimed_at
    SaleID         *uint64      // payment_intents.sale_id
    CreatedAt      time.Time    // payment_intents.created_at
    UpdatedAt      time.Time    // payment_intents.updated_at
    ApprovedAt     *time.Time   // payment_intents.approved_at
}

// CanCancel reports whether the cashier may still cancel the intent. Allowed
// from any non-terminal state; once IN_PROGRESS it races the agent's result
// and the first conditional write wins.
func (p PaymentIntent) CanCancel() bool {
    return p.Status.CanTransition(IntentCancelled)
}
