// Package idempotency derives deterministic deduplication keys from the
// semantically relevant fields of an operation plus a coarse time bucket.
//
// The minute bucket is a deliberate policy: a duplicate submission inside the
// same minute (double click, network retry) collapses to one effect, while an
// identical sale a few minutes later is a new transaction. Changing the
// bucket width changes financial behaviour and needs business sign-off.
package idempotency

import (
    "crypto/sha256"
    "encoding/hex"
    "encoding/json"
    "sort"
    "strings"
    "time"

    "github.com/dmarquez/venue-pos/internal/model"
)

// keyItem is the normalized form of a cart line used for hashing: only the
// fields that identify the purchase, whitespace-trimmed, sorted by item id.
type keyItem struct {
    ItemID         string `json:"item_id"`
    Quantity       int    `json:"quantity"`
    UnitPriceCents int64  `json:"unit_price_cents"`
}

// SaleKey derives the idempotency key for recording a sale. Two calls with
// the same cart content, register, actor, payment type and total inside the
// same wall-clock minute produce the same key.
func SaleKey(items []model.CartItem, registerID, employeeID, paymentType string, totalCents int64, at time.Time) string {
    normalized := make([]keyItem, 0, len(items))
    for _, it := range items {
        normalized = append(normalized, keyItem{
            ItemID:         strings.TrimSpace(it.ItemID),
            Quantity:       it.Quantity,
            UnitPriceCents: it.UnitPriceCents,
        })
    }
    sort.Slice(normalized, func(i, j int) bool { return normalized[i].ItemID < normalized[j].ItemID })

    payload := map[string]any{
        "items":         normalized,
        "register_id":   strings.TrimSpace(registerID),
        "employee_id":   strings.TrimSpace(employeeID),
        "payment_type":  strings.TrimSpace(paymentType),
        "total_cents":   totalCents,
        "minute_bucket": minuteBucket(at),
    }
    return hashPayload(payload)
}

// SessionOpenKey derives the idempotency key for opening a register session.
// A retried open request inside the same minute maps to the existing session
// instead of creating a duplicate.
func SessionOpenKey(registerID string, shiftID uint64, employeeID string, at time.Time) string {
    payload := map[string]any{
        "register_id":   strings.TrimSpace(registerID),
        "shift_id":      shiftID,
        "employee_id":   strings.TrimSpace(employeeID),
        "minute_bucket": minuteBucket(at),
    }
    return hashPayload(payload)
}

// CartHash returns the sha256 hex digest of the canonical cart encoding. It
// identifies cart content exactly (no time bucket) and is used to reuse an
// in-flight payment intent for the same cart.
func CartHash(items []model.CartItem) string {
    normalized := make([]keyItem, 0, len(items))
    for _, it := range items {
        normalized = append(normalized, keyItem{
            ItemID:         strings.TrimSpace(it.ItemID),
            Quantity:       it.Quantity,
            UnitPriceCents: it.UnitPriceCents,
        })
    }
    sort.Slice(normalized, func(i, j int) bool { return normalized[i].ItemID < normalized[j].ItemID })
    return hashPayload(map[string]any{"items": normalized})
}

func minuteBucket(at time.Time) string {
    return at.UTC().Format("200601021504")
}

// hashPayload encodes the payload as canonical JSON (encoding/json sorts map
// keys) and returns the sha256 hex digest.
func hashPayload(payload map[string]any) string {
    b, err := json.Marshal(payload)
    if err != nil {
        // Only reachable with unmarshalable values, which the callers above
        // never pass.
        panic(err)
    }
    sum := sha256.Sum256(b)
    return hex.EncodeToString(sum[:])
}
