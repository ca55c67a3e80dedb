package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nischalstha-ns/e-commerce-sub001/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartRow is the owner record of the relational layout.
type CartRow struct {
	OwnerID   string    `gorm:"primaryKey;column:owner_id"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (CartRow) TableName() string { return "carts" }

// LineItemRow is one line item. Position keeps first-insertion order.
type LineItemRow struct {
	OwnerID       string    `gorm:"primaryKey;column:owner_id"`
	Position      int       `gorm:"primaryKey;autoIncrement:false;column:position"`
	ProductID     string    `gorm:"column:product_id;not null"`
	SelectedSize  *string   `gorm:"column:selected_size"`
	SelectedColor *string   `gorm:"column:selected_color"`
	Quantity      int       `gorm:"column:quantity;not null"`
	AddedAt       time.Time `gorm:"column:added_at"`
}

func (LineItemRow) TableName() string { return "cart_line_items" }

// PostgresStore is the relational CartStore. Writes replace the owner's
// rows inside one transaction; line item deletes are targeted.
type PostgresStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// AutoMigrate creates the carts and cart_line_items tables.
func (r *PostgresStore) AutoMigrate() error {
	return r.db.AutoMigrate(&CartRow{}, &LineItemRow{})
}

func (r *PostgresStore) ReadCart(ctx context.Context, ownerID string) (*models.Cart, error) {
	if err := ValidateOwnerID(ownerID); err != nil {
		return nil, err
	}
	return r.load(r.db.WithContext(ctx), ownerID)
}

func (r *PostgresStore) WriteCart(ctx context.Context, ownerID string, items []models.CartLineItem) (*models.Cart, error) {
	if err := validateItems(ownerID, items); err != nil {
		return nil, err
	}
	now := r.now()

	rows := make([]LineItemRow, 0, len(items))
	for i, it := range items {
		rows = append(rows, LineItemRow{
			OwnerID:       ownerID,
			Position:      i,
			ProductID:     it.ProductID,
			SelectedSize:  it.SelectedSize,
			SelectedColor: it.SelectedColor,
			Quantity:      it.Quantity,
			AddedAt:       it.AddedAt,
		})
	}

	var out *models.Cart
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owner := CartRow{OwnerID: ownerID, CreatedAt: now, UpdatedAt: now}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"updated_at": now}),
		}).Create(&owner).Error; err != nil {
			return err
		}
		if err := tx.Where("owner_id = ?", ownerID).Delete(&LineItemRow{}).Error; err != nil {
			return err
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}

		var stored CartRow
		if err := tx.Where("owner_id = ?", ownerID).First(&stored).Error; err != nil {
			return err
		}
		out = &models.Cart{
			OwnerID:   ownerID,
			Items:     models.CloneItems(items),
			CreatedAt: stored.CreatedAt,
			UpdatedAt: stored.UpdatedAt,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres write cart: %w", err)
	}
	return out, nil
}

// DeleteLineItem issues a single DELETE for the key. NULL size or color
// only matches NULL.
func (r *PostgresStore) DeleteLineItem(ctx context.Context, ownerID string, key models.LineItemKey) (*models.Cart, error) {
	if err := ValidateKey(ownerID, key); err != nil {
		return nil, err
	}

	var out *models.Cart
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&CartRow{}).
			Where("owner_id = ?", ownerID).
			Update("updated_at", r.now())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrCartNotFound
		}

		if err := tx.Where(
			"owner_id = ? AND product_id = ? AND selected_size IS NOT DISTINCT FROM ? AND selected_color IS NOT DISTINCT FROM ?",
			ownerID, key.ProductID, key.SizePtr(), key.ColorPtr(),
		).Delete(&LineItemRow{}).Error; err != nil {
			return err
		}

		cart, err := r.load(tx, ownerID)
		if err != nil {
			return err
		}
		out = cart
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrCartNotFound) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("postgres delete line item: %w", err)
	}
	return out, nil
}

func (r *PostgresStore) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *PostgresStore) load(db *gorm.DB, ownerID string) (*models.Cart, error) {
	var owner CartRow
	if err := db.Where("owner_id = ?", ownerID).First(&owner).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("postgres read cart: %w", err)
	}

	var rows []LineItemRow
	if err := db.Where("owner_id = ?", ownerID).Order("position ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("postgres read line items: %w", err)
	}

	cart := &models.Cart{
		OwnerID:   ownerID,
		Items:     make([]models.CartLineItem, 0, len(rows)),
		CreatedAt: owner.CreatedAt,
		UpdatedAt: owner.UpdatedAt,
	}
	for _, row := range rows {
		cart.Items = append(cart.Items, models.CartLineItem{
			ProductID:     row.ProductID,
			Quantity:      row.Quantity,
			SelectedSize:  row.SelectedSize,
			SelectedColor: row.SelectedColor,
			AddedAt:       row.AddedAt,
		})
	}
	return cart, nil
}
