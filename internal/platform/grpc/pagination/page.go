// Package pagination normalizes page sizes and encodes opaque page tokens.
package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
)

// PageSizeConfig configures page size normalization.
type PageSizeConfig struct {
	Default int
	Max     int
}

// ClampPageSize applies defaults and limits for page sizes.
func ClampPageSize(value int32, cfg PageSizeConfig) int {
	pageSize := int(value)
	if pageSize <= 0 {
		pageSize = cfg.Default
	}
	if cfg.Max > 0 && pageSize > cfg.Max {
		pageSize = cfg.Max
	}
	if pageSize <= 0 {
		pageSize = 1
	}
	return pageSize
}

// EncodeCursor wraps the last seen id into an opaque page token.
func EncodeCursor(afterID uint64) string {
	if afterID == 0 {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte("after:" + strconv.FormatUint(afterID, 10)))
}

// DecodeCursor unwraps a page token produced by EncodeCursor. An empty token
// decodes to zero.
func DecodeCursor(token string) (uint64, error) {
	if token == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, fmt.Errorf("decode page token: %w", err)
	}
	const prefix = "after:"
	text := string(raw)
	if len(text) <= len(prefix) || text[:len(prefix)] != prefix {
		return 0, fmt.Errorf("decode page token: malformed cursor")
	}
	value, err := strconv.ParseUint(text[len(prefix):], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode page token: %w", err)
	}
	return value, nil
}
