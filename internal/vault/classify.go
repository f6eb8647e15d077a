package vault

import (
	"strconv"
	"strings"

	"yearn-vaults/internal/kong"
	"yearn-vaults/internal/vault/pick"
)

var stablecoins = map[string]bool{
	"USDC": true, "USDC.E": true, "USDBC": true, "USDT": true, "USDT0": true, "DAI": true,
	"SDAI": true, "USDS": true, "SUSDS": true, "FRAX": true, "FRXUSD": true, "LUSD": true,
	"BOLD": true, "GHO": true, "PYUSD": true, "USDE": true, "SUSDE": true, "CRVUSD": true,
	"SCRVUSD": true, "TUSD": true, "USDP": true, "GUSD": true, "BUSD": true, "MIM": true,
	"DOLA": true, "MKUSD": true, "USD0": true, "USDM": true, "EUSD": true, "ALUSD": true,
	"SUSD": true, "USDAF": true, "YVUSD": true, "XDAI": true, "WXDAI": true,
}

// categoryPrefixes are matched in order against the vault and token names.
var categoryPrefixes = []struct {
	category string
	needles  []string
}{
	{"Curve", []string{"curve", "crv"}},
	{"Balancer", []string{"balancer", "bpt", "b-"}},
	{"Velodrome", []string{"velodrome", "vamm-", "samm-"}},
	{"Aerodrome", []string{"aerodrome", "aero"}},
	{"Pendle", []string{"pendle", "pt-"}},
}

// IsStablecoin reports whether every leg of a (possibly LP) symbol is a
// known dollar stablecoin.
func IsStablecoin(symbol string) bool {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return false
	}
	if stablecoins[symbol] {
		return true
	}
	parts := strings.FieldsFunc(symbol, func(r rune) bool {
		return r == '-' || r == '/' || r == '_' || r == '+'
	})
	if len(parts) < 2 {
		return false
	}
	for _, part := range parts {
		if !stablecoins[part] {
			return false
		}
	}
	return true
}

// DetectCategory is the heuristic used when upstream carries no category.
func DetectCategory(name, tokenName, tokenSymbol string) string {
	if IsStablecoin(tokenSymbol) {
		return CategoryStablecoin
	}
	candidates := []string{strings.ToLower(name), strings.ToLower(tokenName), strings.ToLower(tokenSymbol)}
	for _, rule := range categoryPrefixes {
		for _, candidate := range candidates {
			for _, needle := range rule.needles {
				if strings.HasPrefix(candidate, needle) {
					return rule.category
				}
			}
		}
	}
	return CategoryVolatile
}

func resolveCategory(item *kong.VaultListItem, snap *kong.VaultSnapshot, name string, token Token) string {
	return pick.Or(DetectCategory(name, token.Name, token.Symbol),
		pick.Lazy(func() (string, bool) {
			if snap == nil || snap.Meta == nil {
				return "", false
			}
			return pick.String(snap.Meta.Category)()
		}),
		pick.Lazy(func() (string, bool) {
			if item == nil {
				return "", false
			}
			return pick.String(item.Category)()
		}),
		pick.Lazy(func() (string, bool) {
			if snap == nil || snap.Meta == nil || snap.Meta.Token == nil {
				return "", false
			}
			return pick.String(snap.Meta.Token.Category)()
		}),
		pick.Lazy(func() (string, bool) {
			if item == nil {
				return "", false
			}
			return pick.String(item.Asset.Category)()
		}),
	)
}

// ParseKind maps the upstream spellings of a vault kind.
func ParseKind(raw string) (Kind, bool) {
	normalized := strings.ToLower(strings.NewReplacer("_", " ", "-", " ").Replace(strings.TrimSpace(raw)))
	switch normalized {
	case "legacy":
		return KindLegacy, true
	case "multi strategy", "multi", "allocator":
		return KindMultiStrategy, true
	case "single strategy", "single", "strategy":
		return KindSingleStrategy, true
	}
	return "", false
}

// DeriveKind classifies a vault that carries no kind upstream.
func DeriveKind(version string, v3 bool, strategies int) Kind {
	if !v3 && !isV3Version(version) {
		return KindLegacy
	}
	if strategies > 0 {
		return KindMultiStrategy
	}
	return KindSingleStrategy
}

// ParseType maps upstream type strings and numeric codes. Unknown values
// are Standard.
func ParseType(raw string) Type {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case normalized == "2" || strings.Contains(normalized, "automated"):
		return TypeAutomated
	case normalized == "3" || strings.Contains(normalized, "experimental"):
		return TypeExperimental
	}
	return TypeStandard
}

func isV3Version(version string) bool {
	major, _, _ := strings.Cut(strings.TrimPrefix(strings.TrimSpace(version), "v"), ".")
	n, err := strconv.Atoi(major)
	return err == nil && n >= 3
}
