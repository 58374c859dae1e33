// Package jsonapi provides JSON:API response documents for the HTTP surface.
// See https://jsonapi.org for the format.
package jsonapi

// ContentType is the JSON:API media type.
const ContentType = "application/vnd.api+json"

// Meta holds non-standard members of a document, resource or error.
type Meta map[string]any

// Document is a top-level JSON:API document. It carries data or errors,
// never both.
type Document struct {
	Data   any     `json:"data,omitempty"`
	Errors []Error `json:"errors,omitempty"`
	Meta   Meta    `json:"meta,omitempty"`
}

// Links holds the links of a resource.
type Links struct {
	Self string `json:"self"`
}

// Resource is a JSON:API resource object.
type Resource struct {
	Type       string         `json:"type"`
	ID         string         `json:"id"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Links      *Links         `json:"links,omitempty"`
	Meta       Meta           `json:"meta,omitempty"`
}

// Error is a JSON:API error object. Code carries the stable
// machine-readable error code.
type Error struct {
	Status string  `json:"status"`
	Code   string  `json:"code"`
	Title  string  `json:"title"`
	Detail string  `json:"detail,omitempty"`
	Source *Source `json:"source,omitempty"`
}

// Source names the part of the request an error refers to.
type Source struct {
	Pointer   string `json:"pointer,omitempty"`
	Parameter string `json:"parameter,omitempty"`
}
