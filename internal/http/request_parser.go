package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"dailyledger/internal/core"
	"dailyledger/internal/services"
)

// maxEntryBody bounds entry and derive request bodies.
const maxEntryBody = 64 << 10

// RequestBodyParser reads an entry submitted as JSON or as a form, the two
// shapes HTMX and API clients send.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body once and stores it for parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{contentType: r.Header.Get("Content-Type")}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxEntryBody+1))
	if p.err == nil && len(p.body) > maxEntryBody {
		p.err = fmt.Errorf("request body larger than %d bytes", maxEntryBody)
	}
	return p
}

// Parse decodes the body as JSON when it looks like a JSON object and as a
// form otherwise.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true
	if p.err != nil {
		return p.err
	}

	body := bytes.TrimSpace(p.body)
	if len(body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if body[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		p.jsonData = make(map[string]any)
		if err := dec.Decode(&p.jsonData); err != nil {
			p.err = fmt.Errorf("decode JSON body: %w", err)
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(body))
	return p.err
}

// Get returns a trimmed, sanitized value from the parsed data.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// EntryInput collects the entry fields from the parsed body.
func (p *RequestBodyParser) EntryInput() core.EntryInput {
	return core.EntryInput{
		Date:            p.Get(core.FieldDate),
		StartingBalance: p.Get(core.FieldStartingBalance),
		BikeRepairs:     p.Get(core.FieldBikeRepairs),
		Fuel:            p.Get(core.FieldFuel),
		Airtime:         p.Get(core.FieldAirtime),
		EndOfDayBalance: p.Get(core.FieldEndOfDayBalance),
		Payout:          p.Get(core.FieldPayout),
		Orders:          p.Get(core.FieldOrders),
	}
}

// stringValue renders a decoded JSON value. Numbers keep their literal text.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return fmt.Sprint(val)
	default:
		return ""
	}
}

// ParsePeriodParam reads ?period=, defaulting to all.
func ParsePeriodParam(query url.Values) (core.Period, error) {
	return core.ParsePeriod(query.Get("period"))
}

// ParseSelection reads ?period= or ?from=&to= for exports. Dates take
// precedence over the period.
func ParseSelection(query url.Values) (services.Selection, error) {
	var sel services.Selection
	p, err := ParsePeriodParam(query)
	if err != nil {
		return sel, err
	}
	sel.Period = p

	for _, b := range []struct {
		name string
		dst  *core.Date
	}{{"from", &sel.From}, {"to", &sel.To}} {
		v := strings.TrimSpace(query.Get(b.name))
		if v == "" {
			continue
		}
		d, err := core.ParseDate(v)
		if err != nil {
			return sel, fmt.Errorf("%s: must be a date in YYYY-MM-DD format", b.name)
		}
		*b.dst = d
	}
	if !sel.From.IsZero() && !sel.To.IsZero() && sel.To.Before(sel.From) {
		return sel, fmt.Errorf("to is before from")
	}
	return sel, nil
}

// RequireMethod returns a 405 builder unless r uses one of methods.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}

// sanitizeInput trims and drops control characters other than tab and
// line breaks.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}

// wantsJSON reports whether the client asked for JSON rather than an HTML
// fragment.
func wantsJSON(r *http.Request) bool {
	if r.Header.Get("HX-Request") == "true" {
		return false
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}
