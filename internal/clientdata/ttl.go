package clientdata

import "time"

// TTL constants for different data types.
// These are added to time.Now() when storing to calculate expires_at.
const (
	TTLCompany = 7 * 24 * time.Hour // company profile rarely changes
	TTLSearch  = 24 * time.Hour

	TTLHistory = time.Hour
	TTLQuote   = time.Minute // overridden by QUOTE_CACHE_TTL
)
