package institutions

import "strings"

// AssetType tags a row with the kind of holding it describes.
type AssetType string

const (
	AssetSecurity AssetType = "security"
	AssetCrypto   AssetType = "crypto"
	AssetCash     AssetType = "cash"
	AssetMetal    AssetType = "metal"
	AssetOther    AssetType = "other"
	// AssetRealEstate is never produced by the classifier; callers set it as a
	// manual override.
	AssetRealEstate AssetType = "realestate"
)

// ParseAssetType converts s into a known AssetType.
func ParseAssetType(s string) (AssetType, bool) {
	switch t := AssetType(normalize(s)); t {
	case AssetSecurity, AssetCrypto, AssetCash, AssetMetal, AssetOther, AssetRealEstate:
		return t, true
	}
	return "", false
}

// AssetKeywords pairs an asset type with the substrings that select it.
type AssetKeywords struct {
	Type     AssetType
	Keywords []string
}

// AssetTypeKeywords is checked in order; the first type with a hit wins.
var AssetTypeKeywords = []AssetKeywords{
	{Type: AssetSecurity, Keywords: []string{"stock", "etf", "fund", "bond", "equity", "reit", "index", "treasury", "common", "preferred", "adr", "shares"}},
	{Type: AssetCrypto, Keywords: []string{"bitcoin", "btc", "ethereum", "eth", "crypto", "solana", "cardano", "dogecoin", "litecoin", "usdc", "usdt", "tether", "coin"}},
	{Type: AssetCash, Keywords: []string{"cash", "money market", "sweep", "savings", "checking", "deposit", "core position", "spaxx", "fdrxx", "swvxx", "vmfxx"}},
	{Type: AssetMetal, Keywords: []string{"gold", "silver", "platinum", "palladium", "bullion", "copper"}},
}

// DetectAssetType classifies a row from its description and symbol. Rows that
// match nothing are securities.
func (e *Engine) DetectAssetType(description, symbol string) AssetType {
	text := strings.ToLower(description + " " + symbol)
	for _, ak := range e.assetKeywords {
		for _, kw := range ak.Keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				return ak.Type
			}
		}
	}
	return AssetSecurity
}
