// Package ident derives the scannable identifiers printed on item labels.
package ident

import (
	"context"
	"strconv"
	"strings"
)

// DefaultBaseURL is used when neither configuration nor a request supplies one.
const DefaultBaseURL = "http://localhost:8080"

// Identifiers are the barcode and QR payloads for one item.
type Identifiers struct {
	Barcode string
	QR      string
}

// Generate computes the identifiers for an item. The barcode carries the
// SKU when one is set, otherwise the record ID. The QR code links to the
// item's page under baseURL.
func Generate(baseURL string, id int64, sku string) Identifiers {
	ids := strconv.FormatInt(id, 10)

	barcode := strings.TrimSpace(sku)
	if barcode == "" {
		barcode = ids
	}

	return Identifiers{
		Barcode: barcode,
		QR:      strings.TrimRight(baseURL, "/") + "/inventory/" + ids,
	}
}

type baseURLKey struct{}

// WithBaseURL returns a context carrying the base URL derived from an
// inbound request.
func WithBaseURL(ctx context.Context, url string) context.Context {
	return context.WithValue(ctx, baseURLKey{}, url)
}

// Resolver picks the base URL used in QR payloads.
type Resolver struct {
	configured string
}

// NewResolver returns a resolver preferring the configured base URL.
func NewResolver(configured string) *Resolver {
	return &Resolver{configured: strings.TrimSpace(configured)}
}

// BaseURL returns the configured base URL, else the request-derived one
// stored in ctx, else DefaultBaseURL.
func (r *Resolver) BaseURL(ctx context.Context) string {
	if r != nil && r.configured != "" {
		return r.configured
	}
	if url, ok := ctx.Value(baseURLKey{}).(string); ok && url != "" {
		return url
	}
	return DefaultBaseURL
}
