package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Amount is a raw on-chain integer together with the decimals needed to
// display it. The two never travel separately.
type Amount struct {
	Raw      *uint256.Int
	Decimals int
}

// NewAmount copies raw so the caller may keep mutating its value.
func NewAmount(raw *uint256.Int, decimals int) Amount {
	if raw == nil {
		return Amount{Raw: new(uint256.Int), Decimals: decimals}
	}
	return Amount{Raw: new(uint256.Int).Set(raw), Decimals: decimals}
}

// ParseAmount parses a decimal or 0x-prefixed integer string. Anything that
// does not parse yields zero.
func ParseAmount(raw string, decimals int) Amount {
	value, ok := ParseRaw(raw)
	if !ok {
		return NewAmount(nil, decimals)
	}
	return Amount{Raw: value, Decimals: decimals}
}

// ParseRaw parses an upstream integer string.
func ParseRaw(raw string) (*uint256.Int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		value, err := uint256.FromHex(raw)
		if err != nil {
			return nil, false
		}
		return value, true
	}
	value, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, false
	}
	return value, true
}

func (a Amount) IsZero() bool {
	return a.Raw == nil || a.Raw.IsZero()
}

func (a Amount) Int() *uint256.Int {
	if a.Raw == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(a.Raw)
}

// Normalized returns raw / 10^decimals.
func (a Amount) Normalized() decimal.Decimal {
	return Normalize(a.Raw, a.Decimals)
}

func (a Amount) String() string {
	return a.Normalized().String()
}

func Normalize(raw *uint256.Int, decimals int) decimal.Decimal {
	if raw == nil || raw.IsZero() {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw.ToBig(), -int32(decimals))
}

var ErrNegativeAmount = errors.New("amount must not be negative")

// ToRaw scales a human amount to its on-chain integer, truncating extra
// precision.
func ToRaw(value decimal.Decimal, decimals int) (*uint256.Int, error) {
	if value.IsNegative() {
		return nil, ErrNegativeAmount
	}
	scaled := value.Shift(int32(decimals)).Truncate(0)
	raw, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, fmt.Errorf("amount %s overflows uint256", value.String())
	}
	return raw, nil
}

type amountJSON struct {
	Raw        string `json:"raw"`
	Decimals   int    `json:"decimals"`
	Normalized string `json:"normalized"`
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(amountJSON{
		Raw:        a.Int().Dec(),
		Decimals:   a.Decimals,
		Normalized: a.Normalized().String(),
	})
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	var payload amountJSON
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	value, ok := ParseRaw(payload.Raw)
	if !ok {
		value = new(uint256.Int)
	}
	a.Raw = value
	a.Decimals = payload.Decimals
	return nil
}
