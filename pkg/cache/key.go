package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key identifies a cached response.
type Key struct {
	// Endpoint is the API path, e.g. "/orders".
	Endpoint string

	QueryParams url.Values

	// Scope separates entries of different credentials. Empty for anonymous.
	Scope string
}

// Scope derives a short, non-reversible scope from a bearer token.
func Scope(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:6])
}

// String generates a deterministic key.
// Format: shop:endpoint:query1=val1:query2=val2:scope=abc
//
// Example:
//
//	shop:orders:limit=10:offset=0
func (k Key) String() string {
	parts := []string{"shop"}

	if endpoint := strings.Trim(k.Endpoint, "/"); endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(k.QueryParams[key], ",")))
		}
	}

	if k.Scope != "" {
		parts = append(parts, "scope="+k.Scope)
	}

	return strings.Join(parts, ":")
}
