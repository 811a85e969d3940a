package model

// LineItem is a single product line on a mirrored order.
type LineItem struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	OrderID uint `gorm:"index;not null" json:"order_id"`

	ProductID   uint   `gorm:"index" json:"product_id"`
	ProductName string `gorm:"size:255" json:"product_name"`

	// Defaults to 1 when the remote value fails to parse.
	Quantity int `gorm:"not null;default:1" json:"quantity"`

	// Unit price kept as the remote decimal string to avoid float drift
	// on per-line amounts.
	Price string `gorm:"size:20" json:"price"`

	SKU string `gorm:"size:100;column:sku" json:"sku"`

	// Resolved lazily via a product lookup when the remote line item
	// carries no image; nil when that lookup also fails.
	ImageURL *string `gorm:"size:500" json:"image_url,omitempty"`
}

func (LineItem) TableName() string {
	return "order_line_items"
}
