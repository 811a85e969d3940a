package model

import "time"

// Local order status taxonomy. RemoteStatus keeps the verbatim source value;
// Status always holds one of these (or an unmapped remote value passed through).
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
	OrderStatusRefunded   = "refunded"
	OrderStatusOnHold     = "on-hold"
)

// Column limits enforced by the storage schema. The mapper truncates every
// bounded field to these before any insert or update.
const (
	MaxOrderNumberLen      = 50
	MaxCustomerNameLen     = 100
	MaxCustomerPhoneLen    = 30
	MaxCustomerEmailLen    = 150
	MaxBillingAddressLen   = 255
	MaxBillingCityLen      = 100
	MaxStatusLen           = 50
	MaxShippingMethodLen   = 100
	MaxTrackingNumberLen   = 100
	MaxShippingPolicyIDLen = 50
	MaxProductNameLen      = 255
	MaxSKULen              = 100
	MaxImageURLLen         = 500
)

// Order is the locally mirrored copy of a remote e-commerce order.
//
// CreatedAt/UpdatedAt are taken verbatim from the remote source so the local
// listing keeps the remote chronology; gorm must not regenerate them.
type Order struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Stable remote order ID, the natural dedup key. Nullable only for
	// orders created outside the sync path.
	ExternalID *uint `gorm:"uniqueIndex" json:"external_id,omitempty"`

	OrderNumber string `gorm:"size:50" json:"order_number"`

	CustomerName   string `gorm:"size:100" json:"customer_name"`
	CustomerPhone  string `gorm:"size:30" json:"customer_phone"`
	CustomerEmail  string `gorm:"size:150" json:"customer_email"`
	BillingAddress string `gorm:"size:255" json:"billing_address"`
	BillingCity    string `gorm:"size:100" json:"billing_city"`

	TotalAmount    float64 `json:"total_amount"`
	ShippingAmount float64 `json:"shipping_amount"`

	Status string `gorm:"size:50;not null;default:pending;index" json:"status"`

	// Verbatim shadow of the latest status string observed upstream,
	// refreshed on every sync pass regardless of whether Status changed.
	RemoteStatus string `gorm:"size:50;column:remote_status" json:"remote_status"`

	// Populated only once the order transitions to shipped.
	ShippingMethod   string `gorm:"size:100" json:"shipping_method,omitempty"`
	TrackingNumber   string `gorm:"size:100" json:"tracking_number,omitempty"`
	ShippingPolicyID string `gorm:"size:50;column:shipping_policy_id" json:"shipping_policy_id,omitempty"`

	Highlighted     bool       `gorm:"index" json:"highlighted"`
	LastSyncAttempt *time.Time `json:"last_sync_attempt,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`

	// One-to-many relation: one order can have many line items
	Items []LineItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// TableName allows you to control the exact table name for orders.
func (Order) TableName() string {
	return "orders"
}

// IsTerminal reports whether a status ends the highlight lifecycle.
func IsTerminal(status string) bool {
	switch status {
	case OrderStatusCancelled, OrderStatusShipped, OrderStatusDelivered:
		return true
	}
	return false
}
