package repository

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"yearn-vaults/internal/models"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

type VaultRepository interface {
	Upsert(record *models.VaultRecord) error
	GetByKey(chainID uint64, address string) (*models.VaultRecord, error)
	List(filter VaultFilter) ([]*models.VaultRecord, int64, error)
	ListByChain(chainID uint64) ([]*models.VaultRecord, error)
	Count() (int64, error)
	Chains() ([]uint64, error)
	Categories() ([]string, error)

	// Maintenance
	MarkStale(before time.Time) (int64, error)
	DeleteStale(before time.Time) (int64, error)
}

// VaultFilter drives the vault listing.
type VaultFilter struct {
	ChainIDs       []uint64
	Categories     []string
	Kind           string
	Type           string
	Search         string
	IncludeRetired bool
	IncludeHidden  bool
	IncludeStale   bool

	Sort  string // tvl, apr, forward_apr, name
	Order string // asc, desc
	Page  int
	Limit int
}

var sortColumns = map[string]string{
	"tvl":         "tvl",
	"apr":         "net_apr",
	"forward_apr": "forward_apr",
	"name":        "name",
}

// Normalize clamps paging and falls back to tvl descending.
func (f *VaultFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	if _, ok := sortColumns[f.Sort]; !ok {
		f.Sort = "tvl"
	}
	f.Order = strings.ToLower(f.Order)
	if f.Order != "asc" && f.Order != "desc" {
		if f.Sort == "name" {
			f.Order = "asc"
		} else {
			f.Order = "desc"
		}
	}
}

type vaultRepository struct {
	db *gorm.DB
}

func NewVaultRepository(db *gorm.DB) VaultRepository {
	return &vaultRepository{db: db}
}

// Upsert inserts the record or replaces the row with the same natural key.
func (r *vaultRepository) Upsert(record *models.VaultRecord) error {
	record.Address = strings.ToLower(record.Address)
	record.Stale = false

	return r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.VaultRecord
		err := tx.Unscoped().
			Where("chain_id = ? AND address = ?", record.ChainID, record.Address).
			First(&existing).Error
		switch {
		case err == nil:
			record.ID = existing.ID
			record.CreatedAt = existing.CreatedAt
			record.DeletedAt = gorm.DeletedAt{}
			return tx.Unscoped().Save(record).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(record).Error
		default:
			return err
		}
	})
}

func (r *vaultRepository) GetByKey(chainID uint64, address string) (*models.VaultRecord, error) {
	var record models.VaultRecord
	err := r.db.
		Where("chain_id = ? AND address = ?", chainID, strings.ToLower(address)).
		First(&record).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &record, nil
}

func (r *vaultRepository) List(filter VaultFilter) ([]*models.VaultRecord, int64, error) {
	filter.Normalize()

	query := r.db.Model(&models.VaultRecord{})
	if len(filter.ChainIDs) > 0 {
		query = query.Where("chain_id IN ?", filter.ChainIDs)
	}
	if len(filter.Categories) > 0 {
		query = query.Where("category IN ?", filter.Categories)
	}
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if !filter.IncludeRetired {
		query = query.Where("is_retired = ?", false)
	}
	if !filter.IncludeHidden {
		query = query.Where("is_hidden = ?", false)
	}
	if !filter.IncludeStale {
		query = query.Where("stale = ?", false)
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + search + "%"
		query = query.Where(
			"(LOWER(name) LIKE ? OR LOWER(symbol) LIKE ? OR LOWER(token_symbol) LIKE ? OR address = ? OR token_address = ?)",
			like, like, like, search, search,
		)
	}

	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []*models.VaultRecord
	err := query.
		Order(sortColumns[filter.Sort] + " " + filter.Order).
		Order("id ASC").
		Limit(filter.Limit).
		Offset((filter.Page - 1) * filter.Limit).
		Find(&records).Error

	return records, total, err
}

func (r *vaultRepository) ListByChain(chainID uint64) ([]*models.VaultRecord, error) {
	var records []*models.VaultRecord
	err := r.db.
		Where("chain_id = ? AND stale = ?", chainID, false).
		Order("tvl DESC").
		Find(&records).Error
	return records, err
}

func (r *vaultRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.VaultRecord{}).Where("stale = ?", false).Count(&count).Error
	return count, err
}

func (r *vaultRepository) Chains() ([]uint64, error) {
	var chains []uint64
	err := r.db.Model(&models.VaultRecord{}).
		Where("stale = ?", false).
		Distinct("chain_id").
		Order("chain_id ASC").
		Pluck("chain_id", &chains).Error
	return chains, err
}

func (r *vaultRepository) Categories() ([]string, error) {
	var categories []string
	err := r.db.Model(&models.VaultRecord{}).
		Where("stale = ? AND category <> ?", false, "").
		Distinct("category").
		Order("category ASC").
		Pluck("category", &categories).Error
	return categories, err
}

// MarkStale flags records the last sync pass did not touch.
func (r *vaultRepository) MarkStale(before time.Time) (int64, error) {
	result := r.db.Model(&models.VaultRecord{}).
		Where("last_synced < ? AND stale = ?", before, false).
		Update("stale", true)
	return result.RowsAffected, result.Error
}

func (r *vaultRepository) DeleteStale(before time.Time) (int64, error) {
	result := r.db.Unscoped().
		Where("last_synced < ?", before).
		Delete(&models.VaultRecord{})
	return result.RowsAffected, result.Error
}
