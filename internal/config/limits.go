package config

import (
	"os"
	"strconv"
)

// TierLimit caps a single transaction and the cumulative same-day outgoing
// total for one KYC tier. Amounts are in kobo.
type TierLimit struct {
	PerTransaction int64
	Daily          int64
}

// LimitTable maps KYC tier (1-4) to its caps. This is the single
// authoritative table; every limit check in the engine reads it.
type LimitTable map[int]TierLimit

func LoadLimitTable() LimitTable {
	return LimitTable{
		1: {
			PerTransaction: getEnvAsKobo("LIMITS_TIER1_PER_TXN", 20_000_00),
			Daily:          getEnvAsKobo("LIMITS_TIER1_DAILY", 50_000_00),
		},
		2: {
			PerTransaction: getEnvAsKobo("LIMITS_TIER2_PER_TXN", 100_000_00),
			Daily:          getEnvAsKobo("LIMITS_TIER2_DAILY", 500_000_00),
		},
		3: {
			PerTransaction: getEnvAsKobo("LIMITS_TIER3_PER_TXN", 1_000_000_00),
			Daily:          getEnvAsKobo("LIMITS_TIER3_DAILY", 5_000_000_00),
		},
		4: {
			PerTransaction: getEnvAsKobo("LIMITS_TIER4_PER_TXN", 5_000_000_00),
			Daily:          getEnvAsKobo("LIMITS_TIER4_DAILY", 25_000_000_00),
		},
	}
}

// ForTier returns the limit row for a tier. Unknown tiers fall back to
// tier 1, the most restrictive.
func (t LimitTable) ForTier(tier int) TierLimit {
	if l, ok := t[tier]; ok {
		return l
	}
	return t[1]
}

func getEnvAsKobo(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.ParseInt(val, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultVal
}
