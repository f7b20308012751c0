package model

import "time"

// Payment types accepted on a sale.
const (
    PaymentCash   = "cash"
    PaymentDebit  = "debit"
    PaymentCredit = "credit"
)

// Sale is a completed transaction recorded against a register session. Card
// sales originate from an approved payment intent (IntentID set); cash sales
// are recorded directly by the cashier. Voided sales stay in place but are
// excluded from reconciliation totals.
type Sale struct {
    ID             uint64    // sales.id
    RegisterID     string    // sales.register_id
    SessionID      uint64    // sales.session_id
    ShiftID        uint64    // sales.shift_id
    EmployeeID     string    // sales.employee_id
    EmployeeName   string    // sales.employee_name
    TotalCents     int64     // sales.total_cents
    PaymentType    string    // sales.payment_type
    CashCents      int64     // sales.cash_cents
    DebitCents     int64     // sales.debit_cents
    CreditCents    int64     // sales.credit_cents
    Provider       *string   // sales.provider (card sales only)
    IntentID       *string   // sales.intent_id (card sales only)
    IdempotencyKey string    // sales.idempotency_key
    IsVoided       bool      // sales.is_voided
    CreatedAt      time.Time // sales.created_at
}

// SaleItem is one line of a sale.
type SaleItem struct {
    ID             uint64 // sale_items.id
    SaleID         uint64 // sale_items.sale_id
    ProductID      string // sale_items.product_id
    ProductName    string // sale_items.product_name
    Quantity       int    // sale_items.quantity
    UnitPriceCents int64  // sale_items.unit_price_cents
    SubtotalCents  int64  // sale_items.subtotal_cents
}
