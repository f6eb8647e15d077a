package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	"yearn-vaults/internal/vault"
)

// VaultRecord is the persisted form of a vault view. Scalar columns back
// filtering and sorting; the whole view travels in View.
type VaultRecord struct {
	BaseModel

	ChainID uint64 `gorm:"uniqueIndex:idx_vault_key;not null" json:"chain_id"`
	Address string `gorm:"uniqueIndex:idx_vault_key;size:42;not null" json:"address"` // lowercase

	Name         string `gorm:"size:200" json:"name"`
	Symbol       string `gorm:"size:50" json:"symbol"`
	TokenAddress string `gorm:"size:42;index" json:"token_address"`
	TokenSymbol  string `gorm:"size:50" json:"token_symbol"`

	Category string `gorm:"index;size:50" json:"category"`
	Kind     string `gorm:"index;size:50" json:"kind"`
	Type     string `gorm:"index;size:50" json:"type"`
	Version  string `gorm:"size:20" json:"version"`

	TVL        float64 `gorm:"index" json:"tvl"`
	NetAPR     float64 `gorm:"index" json:"net_apr"`
	ForwardAPR float64 `gorm:"index" json:"forward_apr"`

	Endorsed         bool        `gorm:"index" json:"endorsed"`
	IsRetired        bool        `gorm:"index" json:"is_retired"`
	IsHidden         bool        `gorm:"index" json:"is_hidden"`
	StakingAvailable bool        `json:"staking_available"`
	Protocols        StringArray `gorm:"type:text" json:"protocols"`

	View       datatypes.JSON `json:"view"`
	LastSynced time.Time      `gorm:"index" json:"last_synced"`
	Stale      bool           `gorm:"index" json:"stale"` // missing from the latest upstream list
}

func (VaultRecord) TableName() string {
	return "vaults"
}

// NewVaultRecord flattens a view into its persisted form.
func NewVaultRecord(v vault.View, syncedAt time.Time) (*VaultRecord, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode view %s: %w", v.Key(), err)
	}

	return &VaultRecord{
		ChainID:          v.ChainID,
		Address:          strings.ToLower(v.Address),
		Name:             v.Name,
		Symbol:           v.Symbol,
		TokenAddress:     strings.ToLower(v.Token.Address),
		TokenSymbol:      v.Token.Symbol,
		Category:         v.Category,
		Kind:             string(v.Kind),
		Type:             string(v.Type),
		Version:          v.Version,
		TVL:              v.TVL.TVL,
		NetAPR:           v.APR.NetAPR,
		ForwardAPR:       v.APR.ForwardAPR.NetAPR,
		Endorsed:         v.Endorsed,
		IsRetired:        v.Info.IsRetired,
		IsHidden:         v.Info.IsHidden,
		StakingAvailable: v.Staking.Available,
		Protocols:        StringArray(v.Info.Protocols),
		View:             datatypes.JSON(raw),
		LastSynced:       syncedAt,
	}, nil
}

// Key matches vault.View.Key.
func (r *VaultRecord) Key() string {
	return vault.MakeKey(r.ChainID, r.Address)
}

// ToView decodes the stored view.
func (r *VaultRecord) ToView() (vault.View, error) {
	var v vault.View
	if len(r.View) == 0 {
		return v, fmt.Errorf("vault %s has no stored view", r.Key())
	}
	if err := json.Unmarshal(r.View, &v); err != nil {
		return v, fmt.Errorf("decode view %s: %w", r.Key(), err)
	}
	return v, nil
}

func (r *VaultRecord) IsStale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(r.LastSynced) > maxAge
}
