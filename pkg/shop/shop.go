// Package shop normalizes the shop and product identifiers a storefront sends.
package shop

import (
	"strings"
)

// PlatformDomain is the suffix of a fully qualified shop domain.
const PlatformDomain = ".myshopify.com"

// Handle returns the bare shop handle: lower-cased, scheme and path stripped,
// and the platform domain suffix removed.
func Handle(shop string) string {
	s := strings.ToLower(strings.TrimSpace(shop))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSuffix(s, PlatformDomain)
}

// Domain returns the fully qualified shop domain.
func Domain(shop string) string {
	handle := Handle(shop)
	if handle == "" {
		return ""
	}
	return handle + PlatformDomain
}

// Variants returns every stored form a shop may appear under: the value as
// given, the bare handle, and the fully qualified domain. Duplicates are removed.
func Variants(shop string) []string {
	variants := make([]string, 0, 3)
	seen := map[string]bool{}
	for _, v := range []string{strings.TrimSpace(shop), Handle(shop), Domain(shop)} {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		variants = append(variants, v)
	}
	return variants
}

// NormalizeProductID reduces a product reference to its final path segment,
// so gid://shopify/Product/123 and 123 are the same product.
func NormalizeProductID(productID string) string {
	id := strings.TrimSpace(productID)
	if i := strings.LastIndexByte(id, '/'); i >= 0 {
		id = id[i+1:]
	}
	return strings.TrimSpace(id)
}
