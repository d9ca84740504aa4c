package storefront

import "github.com/xraph/storefront/types"

// Re-export common types for convenience so users don't have to import types package.

// Money is re-exported from types package.
type Money = types.Money

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export Money constructors
var (
	INR       = types.INR
	USD       = types.USD
	EUR       = types.EUR
	GBP       = types.GBP
	Zero      = types.Zero
	Sum       = types.Sum
	FromMajor = types.FromMajor
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
