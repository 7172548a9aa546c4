package scraper

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// PageLinks holds the pagination links of a search page response.
// An empty Next link is the terminal sentinel: the chain is exhausted.
type PageLinks struct {
	Self  string `json:"self"`
	First string `json:"first"`
	Next  string `json:"next"`
	Prev  string `json:"prev"`
	Last  string `json:"last"`
}

// HasNext reports whether another page follows this one.
func (l PageLinks) HasNext() bool {
	return l.Next != ""
}

// Page is one decoded response unit of the paginated search endpoint.
type Page struct {
	Links       PageLinks
	Items       []map[string]any
	CurrentPage int
	TotalPages  int
}

// DetailRequest pairs the detail URL of a discovered item with the seed
// attributes carried from discovery. Attrs are opaque to the pipeline and
// travel through unchanged.
type DetailRequest struct {
	URL   string
	Attrs map[string]any
}

// Record is the union of a DetailRequest's seed attributes and the payload
// returned by its detail fetch. Immutable once produced.
type Record struct {
	Attrs map[string]any `json:"attrs"`
	Specs any            `json:"specs"`
}

type pageEnvelope struct {
	Links PageLinks `json:"links"`
	Data  []struct {
		Attributes map[string]any `json:"attributes"`
	} `json:"data"`
	Meta struct {
		CurrentPage int `json:"currentPage"`
		TotalPages  int `json:"totalPages"`
	} `json:"meta"`
}

// ParsePage decodes a search page response body.
func ParsePage(data []byte) (*Page, error) {
	var env pageEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	page := &Page{
		Links:       env.Links,
		Items:       make([]map[string]any, 0, len(env.Data)),
		CurrentPage: env.Meta.CurrentPage,
		TotalPages:  env.Meta.TotalPages,
	}
	for _, d := range env.Data {
		page.Items = append(page.Items, d.Attributes)
	}
	return page, nil
}

// DetailRequests builds one DetailRequest per discovered item. The detail
// URL is <specsBaseURL>/<code>/<year>; items missing either key cannot be
// fetched and are skipped.
func (p *Page) DetailRequests(specsBaseURL string) []DetailRequest {
	reqs := make([]DetailRequest, 0, len(p.Items))
	for _, attrs := range p.Items {
		code, okCode := attrString(attrs["code"])
		year, okYear := attrString(attrs["year"])
		if !okCode || !okYear {
			continue
		}
		reqs = append(reqs, DetailRequest{
			URL:   fmt.Sprintf("%s/%s/%s", specsBaseURL, code, year),
			Attrs: attrs,
		})
	}
	return reqs
}

// attrString renders a seed attribute value for use in a URL path segment.
// JSON numbers decode as float64, so integer years need the no-exponent
// formatting.
func attrString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		if t == "" {
			return "", false
		}
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case json.Number:
		return t.String(), true
	case int:
		return strconv.Itoa(t), true
	default:
		return "", false
	}
}
