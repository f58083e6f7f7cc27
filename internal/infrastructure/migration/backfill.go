package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BackfillState is the state of the hierarchy backfill on a database
type BackfillState string

const (
	BackfillPending BackfillState = "pending"
	BackfillApplied BackfillState = "applied"
)

// ParentTenantIndex supports sibling lookups by parent within a tenant
const ParentTenantIndex = "idx_categories_parent_tenant"

const defaultBackfillBatchSize = 500

// hierarchyColumns is the slice of the categories table the backfill owns.
// Pointer fields let a legacy row be told apart by its NULL flag.
type hierarchyColumns struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID           uuid.UUID  `gorm:"type:uuid;index:idx_categories_parent_tenant,priority:2"`
	ParentID           *uuid.UUID `gorm:"type:uuid;index:idx_categories_parent_tenant,priority:1"`
	HasChildCategories *bool
	SequenceNumber     *int
	Depth              *int
	MetaInformation    *string `gorm:"type:text"`
}

func (hierarchyColumns) TableName() string {
	return "categories"
}

// hierarchyColumnNames lists the columns added to flat legacy rows, in creation order
var hierarchyColumnNames = []string{
	"parent_id",
	"has_child_categories",
	"sequence_number",
	"depth",
	"meta_information",
}

// BackfillResult reports what one Up run changed
type BackfillResult struct {
	ColumnsAdded   []string
	RowsBackfilled int64
	IndexCreated   bool
}

// HierarchyBackfill turns flat legacy category rows into tree roots. Up and
// Down each run in one transaction and are safe to repeat.
type HierarchyBackfill struct {
	db        *gorm.DB
	batchSize int
	logger    *zap.Logger
}

// NewHierarchyBackfill creates a backfill runner. batchSize bounds how many
// legacy rows are updated per statement.
func NewHierarchyBackfill(db *gorm.DB, batchSize int, logger *zap.Logger) *HierarchyBackfill {
	if batchSize <= 0 {
		batchSize = defaultBackfillBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HierarchyBackfill{db: db, batchSize: batchSize, logger: logger}
}

// Status reports applied when every hierarchy column and the parent index exist
// and no row is left without a child flag
func (b *HierarchyBackfill) Status(ctx context.Context) (BackfillState, error) {
	db := b.db.WithContext(ctx)
	migrator := db.Migrator()
	if !migrator.HasTable(&hierarchyColumns{}) {
		return "", errors.New("categories table does not exist")
	}
	for _, column := range hierarchyColumnNames {
		if !migrator.HasColumn(&hierarchyColumns{}, column) {
			return BackfillPending, nil
		}
	}
	if !migrator.HasIndex(&hierarchyColumns{}, ParentTenantIndex) {
		return BackfillPending, nil
	}

	var legacy int64
	if err := db.Model(&hierarchyColumns{}).Where("has_child_categories IS NULL").Count(&legacy).Error; err != nil {
		return "", fmt.Errorf("count legacy categories: %w", err)
	}
	if legacy > 0 {
		return BackfillPending, nil
	}
	return BackfillApplied, nil
}

// Up adds the missing hierarchy columns, makes every legacy row a root with no
// children, and creates the parent index
func (b *HierarchyBackfill) Up(ctx context.Context) (*BackfillResult, error) {
	started := time.Now()
	result := &BackfillResult{}

	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		*result = BackfillResult{}
		migrator := tx.Migrator()
		if !migrator.HasTable(&hierarchyColumns{}) {
			return errors.New("categories table does not exist")
		}

		for _, column := range hierarchyColumnNames {
			if migrator.HasColumn(&hierarchyColumns{}, column) {
				continue
			}
			if err := migrator.AddColumn(&hierarchyColumns{}, column); err != nil {
				return fmt.Errorf("add column %s: %w", column, err)
			}
			result.ColumnsAdded = append(result.ColumnsAdded, column)
		}

		rows, err := b.backfillRows(tx)
		if err != nil {
			return err
		}
		result.RowsBackfilled = rows

		if !migrator.HasIndex(&hierarchyColumns{}, ParentTenantIndex) {
			if err := migrator.CreateIndex(&hierarchyColumns{}, ParentTenantIndex); err != nil {
				return fmt.Errorf("create index %s: %w", ParentTenantIndex, err)
			}
			result.IndexCreated = true
		}
		return nil
	})
	if err != nil {
		b.logger.Error("hierarchy backfill failed", zap.Error(err))
		return nil, err
	}

	b.logger.Info("hierarchy backfill applied",
		zap.Strings("columns_added", result.ColumnsAdded),
		zap.Int64("rows_backfilled", result.RowsBackfilled),
		zap.Bool("index_created", result.IndexCreated),
		zap.Duration("duration", time.Since(started)))
	return result, nil
}

// backfillRows updates legacy rows batch by batch inside tx
func (b *HierarchyBackfill) backfillRows(tx *gorm.DB) (int64, error) {
	var total int64
	var batch []hierarchyColumns
	writer := tx.Session(&gorm.Session{NewDB: true})

	res := tx.Model(&hierarchyColumns{}).
		Select("id").
		Where("has_child_categories IS NULL").
		FindInBatches(&batch, b.batchSize, func(_ *gorm.DB, n int) error {
			ids := make([]uuid.UUID, 0, n)
			for _, row := range batch {
				ids = append(ids, row.ID)
			}
			update := writer.Model(&hierarchyColumns{}).
				Where("id IN ? AND has_child_categories IS NULL", ids).
				Updates(map[string]any{
					"parent_id":            nil,
					"has_child_categories": false,
					"sequence_number":      0,
					"depth":                0,
					"meta_information":     "{}",
				})
			if update.Error != nil {
				return fmt.Errorf("backfill batch: %w", update.Error)
			}
			total += update.RowsAffected
			b.logger.Debug("hierarchy backfill batch", zap.Int("rows", n), zap.Int64("total", total))
			return nil
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return total, nil
}

// Down drops the parent index and the hierarchy columns, skipping whatever is
// already gone
func (b *HierarchyBackfill) Down(ctx context.Context) error {
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		migrator := tx.Migrator()
		if migrator.HasIndex(&hierarchyColumns{}, ParentTenantIndex) {
			if err := migrator.DropIndex(&hierarchyColumns{}, ParentTenantIndex); err != nil {
				return fmt.Errorf("drop index %s: %w", ParentTenantIndex, err)
			}
		} else {
			b.logger.Info("parent index not found, nothing to drop", zap.String("index", ParentTenantIndex))
		}

		for i := len(hierarchyColumnNames) - 1; i >= 0; i-- {
			column := hierarchyColumnNames[i]
			if !migrator.HasColumn(&hierarchyColumns{}, column) {
				continue
			}
			if err := migrator.DropColumn(&hierarchyColumns{}, column); err != nil {
				return fmt.Errorf("drop column %s: %w", column, err)
			}
		}
		return nil
	})
	if err != nil {
		b.logger.Error("hierarchy backfill rollback failed", zap.Error(err))
		return err
	}
	b.logger.Info("hierarchy backfill rolled back")
	return nil
}
