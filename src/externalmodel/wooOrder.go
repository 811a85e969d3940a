package externalmodel

// RemoteOrder is the order record shape returned by the WooCommerce REST API
// (wp-json/wc/v3/orders). Monetary values arrive as decimal strings and
// timestamps as ISO-8601 strings in store-local time; parsing and defaulting
// happen in the mapper, never here.
type RemoteOrder struct {
	ID          uint   `json:"id"`
	Number      string `json:"number"`
	Status      string `json:"status"`
	Currency    string `json:"currency"`
	Total       string `json:"total"`
	ShippingTot string `json:"shipping_total"`

	DateCreated  string `json:"date_created"`
	DateModified string `json:"date_modified"`

	Billing   RemoteAddress    `json:"billing"`
	Shipping  RemoteAddress    `json:"shipping"`
	LineItems []RemoteLineItem `json:"line_items"`

	CustomerNote  string `json:"customer_note"`
	PaymentMethod string `json:"payment_method_title"`
}

// RemoteAddress is the billing/shipping contact block on a remote order.
type RemoteAddress struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address1  string `json:"address_1"`
	Address2  string `json:"address_2"`
	City      string `json:"city"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
}

// RemoteLineItem is one product line on a remote order. Quantity sometimes
// arrives as a JSON number and sometimes as a quoted string depending on
// store plugins, so it is kept raw here.
type RemoteLineItem struct {
	ID        uint        `json:"id"`
	ProductID uint        `json:"product_id"`
	Name      string      `json:"name"`
	Quantity  interface{} `json:"quantity"`
	Price     interface{} `json:"price"`
	Total     string      `json:"total"`
	SKU       string      `json:"sku"`
	Image     *RemoteImg  `json:"image,omitempty"`
}

// RemoteImg is the embedded image reference on a line item or product.
type RemoteImg struct {
	ID  interface{} `json:"id"`
	Src string      `json:"src"`
}

// RemoteProduct is the subset of the single-product resource used to backfill
// a missing line-item image.
type RemoteProduct struct {
	ID     uint        `json:"id"`
	Name   string      `json:"name"`
	Images []RemoteImg `json:"images"`
}
