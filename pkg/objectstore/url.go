// Package objectstore turns stored object-storage references into public https URLs.
package objectstore

import (
	"fmt"
	"strings"
)

const s3Scheme = "s3://"

// Normalizer rewrites s3:// references to the bucket's virtual-hosted https form.
type Normalizer struct {
	bucket string
	region string
}

// NewNormalizer creates a normalizer for a bucket and region. An empty region defaults to us-east-1.
func NewNormalizer(bucket, region string) *Normalizer {
	if region == "" {
		region = "us-east-1"
	}
	return &Normalizer{
		bucket: bucket,
		region: region,
	}
}

// Host returns the https host of a bucket.
func (n *Normalizer) Host(bucket string) string {
	return fmt.Sprintf("%s.s3.%s.amazonaws.com", bucket, n.region)
}

// URL normalizes a single reference. s3://bucket/key becomes
// https://bucket.s3.<region>.amazonaws.com/key; everything else is returned unchanged.
func (n *Normalizer) URL(ref string) string {
	trimmed := strings.TrimSpace(ref)
	if !strings.HasPrefix(strings.ToLower(trimmed), s3Scheme) {
		return ref
	}

	rest := trimmed[len(s3Scheme):]
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" {
		bucket = n.bucket
	}
	if bucket == "" {
		return ref
	}

	return "https://" + n.Host(bucket) + "/" + strings.TrimLeft(key, "/")
}

// Key normalizes a reference that may also be a bare object key in the configured
// bucket. Used for fields known to hold images or files.
func (n *Normalizer) Key(ref string) string {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return ref
	}

	lower := strings.ToLower(trimmed)
	switch {
	case strings.HasPrefix(lower, s3Scheme):
		return n.URL(trimmed)
	case strings.HasPrefix(lower, "https://"), strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "data:"):
		return ref
	case n.bucket == "":
		return ref
	default:
		return "https://" + n.Host(n.bucket) + "/" + strings.TrimLeft(trimmed, "/")
	}
}

// Deep returns a copy of v with every s3:// string normalized, walking maps and slices.
// The input is never modified.
func (n *Normalizer) Deep(v any) any {
	switch value := v.(type) {
	case string:
		return n.URL(value)
	case map[string]any:
		out := make(map[string]any, len(value))
		for key, item := range value {
			out[key] = n.Deep(item)
		}
		return out
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = n.Deep(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = n.Deep(item)
		}
		return out
	case []string:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = n.URL(item)
		}
		return out
	default:
		return v
	}
}

// DeepMap is Deep for a chart object.
func (n *Normalizer) DeepMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return n.Deep(m).(map[string]any)
}
