package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"opsportal/src/database"
	"opsportal/src/model"
)

// OrderRepository handles read/write operations for mirrored orders and
// their line items.
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new repository instance using the main read/write database.
func NewOrderRepository() *OrderRepository {
	logger.WithField("component", "OrderRepository").
		Info("Creating new OrderRepository with MainDB")

	return &OrderRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *OrderRepository) WithDB(db *gorm.DB) *OrderRepository {
	logger.WithField("component", "OrderRepository").
		Debug("Creating OrderRepository with custom DB instance")

	return &OrderRepository{db: db}
}

// ---------------------------------------------------
// Order methods
// ---------------------------------------------------

// Create inserts a new mirrored order together with its line items.
// A duplicate external_id surfaces as gorm.ErrDuplicatedKey so the caller
// can convert the race into an update instead of crashing the cycle.
func (r *OrderRepository) Create(
	ctx context.Context,
	order *model.Order,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":        "OrderRepository",
		"op":          "Create",
		"external_id": derefID(order.ExternalID),
		"status":      order.Status,
		"items":       len(order.Items),
	}).Debug("Creating mirrored order")

	err := r.db.WithContext(ctx).Create(order).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":        "OrderRepository",
			"op":          "Create",
			"external_id": derefID(order.ExternalID),
		}).WithError(err).Error("Failed to create order")

		return fmt.Errorf("create order (external_id=%d, number=%q): %w",
			derefID(order.ExternalID), order.OrderNumber, err)
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "OrderRepository",
		"op":          "Create",
		"order_id":    order.ID,
		"external_id": derefID(order.ExternalID),
	}).Info("Order created successfully")

	return nil
}

// FindByExternalID fetches an order by its remote identifier.
// Returns (nil, nil) if the order is not found.
func (r *OrderRepository) FindByExternalID(
	ctx context.Context,
	externalID uint,
) (*model.Order, error) {

	logger.WithFields(map[string]interface{}{
		"repo":        "OrderRepository",
		"op":          "FindByExternalID",
		"external_id": externalID,
	}).Debug("Fetching order by external ID")

	var order model.Order

	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("external_id = ?", externalID).
		First(&order).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":        "OrderRepository",
			"op":          "FindByExternalID",
			"external_id": externalID,
		}).WithError(err).Error("Failed to fetch order by external ID")

		return nil, err
	}

	return &order, nil
}

// UpdateFromRemote refreshes the remote-owned fields of an existing order
// after the dedup comparison detected a change.
func (r *OrderRepository) UpdateFromRemote(
	ctx context.Context,
	orderID uint,
	fresh *model.Order,
	syncedAt time.Time,
) error {

	updates := map[string]interface{}{
		"status":            fresh.Status,
		"remote_status":     fresh.RemoteStatus,
		"total_amount":      fresh.TotalAmount,
		"shipping_amount":   fresh.ShippingAmount,
		"customer_name":     fresh.CustomerName,
		"customer_phone":    fresh.CustomerPhone,
		"customer_email":    fresh.CustomerEmail,
		"billing_address":   fresh.BillingAddress,
		"billing_city":      fresh.BillingCity,
		"updated_at":        fresh.UpdatedAt,
		"last_sync_attempt": syncedAt,
	}
	if model.IsTerminal(fresh.Status) {
		updates["highlighted"] = false
	}

	err := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "OrderRepository",
			"op":       "UpdateFromRemote",
			"order_id": orderID,
		}).WithError(err).Error("Failed to update order from remote snapshot")

		return fmt.Errorf("update order %d from remote: %w", orderID, err)
	}

	return nil
}

// UpdateStatus sets the local status and its remote shadow, clearing the
// highlight when the new status is terminal.
func (r *OrderRepository) UpdateStatus(
	ctx context.Context,
	orderID uint,
	status string,
	remoteStatus string,
) error {

	updates := map[string]interface{}{
		"status":        status,
		"remote_status": remoteStatus,
	}
	if model.IsTerminal(status) {
		updates["highlighted"] = false
	}

	err := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "OrderRepository",
			"op":       "UpdateStatus",
			"order_id": orderID,
			"status":   status,
		}).WithError(err).Error("Failed to update order status")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":     "OrderRepository",
		"op":       "UpdateStatus",
		"order_id": orderID,
		"status":   status,
	}).Info("Order status updated")

	return nil
}

// RefreshSyncMeta is the low-cost side effect applied to unchanged orders:
// the remote-status shadow and last_sync_attempt move forward so every
// record shows recent sync activity.
func (r *OrderRepository) RefreshSyncMeta(
	ctx context.Context,
	orderID uint,
	remoteStatus string,
	syncedAt time.Time,
) error {

	return r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"remote_status":     remoteStatus,
			"last_sync_attempt": syncedAt,
		}).Error
}

// SetHighlighted flags a batch of freshly imported orders for visual
// emphasis in the portal.
func (r *OrderRepository) SetHighlighted(
	ctx context.Context,
	orderIDs []uint,
) error {

	if len(orderIDs) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id IN ?", orderIDs).
		Update("highlighted", true).Error
}

// ClearHighlight acknowledges an order after operator interaction.
func (r *OrderRepository) ClearHighlight(
	ctx context.Context,
	orderID uint,
) error {

	result := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ?", orderID).
		Update("highlighted", false)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// OrderSearchOptions filters the portal order listing.
type OrderSearchOptions struct {
	Status        *string
	Highlighted   *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}

// Search returns mirrored orders ordered from newest to oldest by the
// remote creation time.
func (r *OrderRepository) Search(
	ctx context.Context,
	options OrderSearchOptions,
) ([]model.Order, error) {

	query := r.db.WithContext(ctx).Model(&model.Order{})

	if options.Status != nil {
		query = query.Where("status = ?", *options.Status)
	}
	if options.Highlighted != nil {
		query = query.Where("highlighted = ?", *options.Highlighted)
	}
	if options.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *options.CreatedAfter)
	}
	if options.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *options.CreatedBefore)
	}

	query = query.Order("created_at DESC, id DESC")

	if options.Limit > 0 {
		query = query.Limit(options.Limit)
	}
	if options.Offset > 0 {
		query = query.Offset(options.Offset)
	}

	var orders []model.Order
	if err := query.Find(&orders).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "OrderRepository",
			"op":   "Search",
		}).WithError(err).Error("Failed to search orders")

		return nil, err
	}

	return orders, nil
}

// CountByStatus returns how many mirrored orders sit in each local status,
// used by the sync status endpoint.
func (r *OrderRepository) CountByStatus(
	ctx context.Context,
) (map[string]int64, error) {

	type row struct {
		Status string
		Total  int64
	}

	var rows []row
	err := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Total
	}
	return out, nil
}

func derefID(id *uint) uint {
	if id == nil {
		return 0
	}
	return *id
}
