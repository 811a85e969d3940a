package mapper

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"opsportal/src/externalmodel"
	"opsportal/src/model"
)

// Warning records a lossy normalization decision (truncation, defaulted
// value). Warnings never abort an import; they are logged by the caller.
type Warning struct {
	Field string
	Value string
	Limit int
}

func (w Warning) String() string {
	return fmt.Sprintf("field %s exceeds limit %d, truncated", w.Field, w.Limit)
}

// remoteStatusMap is the fixed remote → local status vocabulary. Values not
// present here pass through verbatim: an unrecognized status is better
// surfaced than silently coerced.
var remoteStatusMap = map[string]string{
	"pending":    model.OrderStatusPending,
	"processing": model.OrderStatusProcessing,
	"on-hold":    model.OrderStatusOnHold,
	"completed":  model.OrderStatusDelivered,
	"shipped":    model.OrderStatusShipped,
	"delivered":  model.OrderStatusDelivered,
	"cancelled":  model.OrderStatusCancelled,
	"refunded":   model.OrderStatusRefunded,
	"failed":     model.OrderStatusCancelled,
}

// MapRemoteStatus translates a remote status string into the local taxonomy.
func MapRemoteStatus(remoteStatus string) string {
	if local, ok := remoteStatusMap[strings.ToLower(strings.TrimSpace(remoteStatus))]; ok {
		return local
	}
	return remoteStatus
}

type productImageLookup interface {
	FetchProduct(ctx context.Context, productID uint) (*externalmodel.RemoteProduct, error)
}

// MapRemoteOrderToModel converts a remote order snapshot into the local
// schema. Numeric parsing is defensive (bad money parses to zero, bad
// quantity to 1) and a missing line-item image triggers a secondary product
// lookup whose failure is non-fatal. Field truncation is NOT applied here;
// TruncateForStorage runs as the single guaranteed pass on every mapped
// snapshot before it reaches the store.
func MapRemoteOrderToModel(ctx context.Context, remote *externalmodel.RemoteOrder, products productImageLookup) *model.Order {
	if remote == nil {
		logger.WithField("mapper", "MapRemoteOrderToModel").
			Error("Nil RemoteOrder received")
		return nil
	}

	parseMoneySafe := func(field, v string) float64 {
		if v == "" {
			logger.WithField("field", field).Debug("Empty monetary field received, defaulting to 0")
			return 0
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			logger.WithFields(map[string]interface{}{
				"field": field,
				"value": v,
			}).WithError(err).Error("Failed to parse monetary field; defaulting to 0")
			return 0
		}
		f, _ := d.Float64()
		return f
	}

	externalID := remote.ID
	order := &model.Order{
		ExternalID:     &externalID,
		OrderNumber:    remote.Number,
		CustomerName:   strings.TrimSpace(remote.Billing.FirstName + " " + remote.Billing.LastName),
		CustomerPhone:  remote.Billing.Phone,
		CustomerEmail:  remote.Billing.Email,
		BillingAddress: strings.TrimSpace(remote.Billing.Address1 + " " + remote.Billing.Address2),
		BillingCity:    remote.Billing.City,
		TotalAmount:    parseMoneySafe("total", remote.Total),
		ShippingAmount: parseMoneySafe("shipping_total", remote.ShippingTot),
		Status:         MapRemoteStatus(remote.Status),
		RemoteStatus:   remote.Status,
		CreatedAt:      parseRemoteTime("date_created", remote.DateCreated),
		UpdatedAt:      parseRemoteTime("date_modified", remote.DateModified),
	}

	for _, item := range remote.LineItems {
		order.Items = append(order.Items, mapLineItem(ctx, item, products))
	}

	logger.WithFields(map[string]interface{}{
		"mapper":      "MapRemoteOrderToModel",
		"external_id": remote.ID,
		"status":      remote.Status,
		"items":       len(order.Items),
	}).Debug("remote order mapped to local model")

	return order
}

func mapLineItem(ctx context.Context, item externalmodel.RemoteLineItem, products productImageLookup) model.LineItem {
	out := model.LineItem{
		ProductID:   item.ProductID,
		ProductName: item.Name,
		Quantity:    parseQuantitySafe(item.Quantity),
		Price:       parsePriceString(item.Price),
		SKU:         item.SKU,
	}

	if item.Image != nil && item.Image.Src != "" {
		src := item.Image.Src
		out.ImageURL = &src
		return out
	}

	// Secondary lookup; failure leaves the image null rather than aborting
	// the order import.
	if products != nil && item.ProductID > 0 {
		product, err := products.FetchProduct(ctx, item.ProductID)
		if err != nil {
			logger.WithFields(map[string]interface{}{
				"product_id": item.ProductID,
			}).WithError(err).Warn("product image lookup failed, keeping null image")
			return out
		}
		if product != nil && len(product.Images) > 0 && product.Images[0].Src != "" {
			src := product.Images[0].Src
			out.ImageURL = &src
		}
	}

	return out
}

// parseQuantitySafe accepts the number-or-string quantity shapes seen in the
// wild and defaults to 1 when nothing parses to a positive integer.
func parseQuantitySafe(raw interface{}) int {
	switch v := raw.(type) {
	case float64:
		if v >= 1 {
			return int(v)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 1 {
			return n
		}
	case int:
		if v >= 1 {
			return v
		}
	}

	logger.WithField("value", fmt.Sprintf("%v", raw)).Debug("unparseable line item quantity, defaulting to 1")
	return 1
}

// parsePriceString normalizes the unit price to a decimal string, keeping
// string precision when the remote already sends one.
func parsePriceString(raw interface{}) string {
	switch v := raw.(type) {
	case string:
		if _, err := decimal.NewFromString(strings.TrimSpace(v)); err == nil {
			return strings.TrimSpace(v)
		}
	case float64:
		return decimal.NewFromFloat(v).String()
	}
	return "0"
}

// WooCommerce sends store-local timestamps without a zone suffix.
func parseRemoteTime(field, raw string) time.Time {
	if raw == "" {
		return time.Now().UTC()
	}

	for _, layout := range []string{"2006-01-02T15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}

	logger.WithFields(map[string]interface{}{
		"field": field,
		"value": raw,
	}).Warn("unparseable remote timestamp, defaulting to now")
	return time.Now().UTC()
}

// TruncateForStorage is the single guaranteed truncation pass, applied
// to every mapped snapshot before any insert or update can see it. The
// storage schema enforces
// hard column lengths; preventing the violation here is cheaper than
// catching it there. Every actual truncation is reported, never silent.
func TruncateForStorage(order *model.Order) []Warning {
	if order == nil {
		return nil
	}

	var warnings []Warning
	truncate := func(field string, value *string, limit int) {
		if len(*value) <= limit {
			return
		}
		warnings = append(warnings, Warning{Field: field, Value: *value, Limit: limit})
		*value = (*value)[:limit]
	}

	truncate("order_number", &order.OrderNumber, model.MaxOrderNumberLen)
	truncate("customer_name", &order.CustomerName, model.MaxCustomerNameLen)
	truncate("customer_phone", &order.CustomerPhone, model.MaxCustomerPhoneLen)
	truncate("customer_email", &order.CustomerEmail, model.MaxCustomerEmailLen)
	truncate("billing_address", &order.BillingAddress, model.MaxBillingAddressLen)
	truncate("billing_city", &order.BillingCity, model.MaxBillingCityLen)
	truncate("status", &order.Status, model.MaxStatusLen)
	truncate("remote_status", &order.RemoteStatus, model.MaxStatusLen)
	truncate("shipping_method", &order.ShippingMethod, model.MaxShippingMethodLen)
	truncate("tracking_number", &order.TrackingNumber, model.MaxTrackingNumberLen)
	truncate("shipping_policy_id", &order.ShippingPolicyID, model.MaxShippingPolicyIDLen)

	for i := range order.Items {
		item := &order.Items[i]
		truncate(fmt.Sprintf("items[%d].product_name", i), &item.ProductName, model.MaxProductNameLen)
		truncate(fmt.Sprintf("items[%d].sku", i), &item.SKU, model.MaxSKULen)
		if item.ImageURL != nil {
			truncate(fmt.Sprintf("items[%d].image_url", i), item.ImageURL, model.MaxImageURLLen)
		}
	}

	for _, w := range warnings {
		logger.WithFields(map[string]interface{}{
			"mapper": "TruncateForStorage",
			"field":  w.Field,
			"limit":  w.Limit,
		}).Warn("field truncated to storage limit")
	}

	return warnings
}
