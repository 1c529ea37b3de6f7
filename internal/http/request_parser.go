// Package http exposes the ledger as a JSON API.
//
// This file implements utilities for parsing and validating HTTP request data.
// Bodies may be JSON objects or form-encoded; handlers read fields the same
// way regardless of encoding.
package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"expensebook/internal/core"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month time.Month
}

// ParseMonthParams extracts year and month from query parameters, using
// now as the default. Unparseable values are ignored.
func ParseMonthParams(query url.Values, now time.Time) MonthParams {
	params := MonthParams{
		Year:  now.Year(),
		Month: now.Month(),
	}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			params.Year = y
		}
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			params.Month = time.Month(m)
		}
	}

	return params
}

// RequestBodyParser handles JSON and form-encoded request bodies.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the request body once and stores it for
// subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		p.jsonData = make(map[string]any)
		if err := dec.Decode(&p.jsonData); err != nil {
			p.jsonData = nil
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(trimmed))
	return p.err
}

// Get returns the first non-empty value among keys, sanitized.
func (p *RequestBodyParser) Get(keys ...string) string {
	for _, key := range keys {
		var v string
		if p.jsonData != nil {
			v = stringValue(p.jsonData[key])
		} else if p.formData != nil {
			v = p.formData.Get(key)
		}
		if v = sanitizeInput(v); v != "" {
			return v
		}
	}
	return ""
}

// Has reports whether any of keys was present in the body.
func (p *RequestBodyParser) Has(keys ...string) bool {
	for _, key := range keys {
		if _, ok := p.jsonData[key]; ok {
			return true
		}
		if _, ok := p.formData[key]; ok {
			return true
		}
	}
	return false
}

func (p *RequestBodyParser) ContentType() string {
	return p.contentType
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseExpenseInput reads the expense fields shared by create and edit.
// The returned input has passed the caller-side validation rules relative
// to today.
func ParseExpenseInput(p *RequestBodyParser, today time.Time) (core.ExpenseInput, error) {
	amount, err := core.ParseMoney(p.Get("amount"))
	if err != nil {
		return core.ExpenseInput{}, err
	}

	var date core.Date
	if v := p.Get("date"); v != "" {
		if date, err = core.ParseDate(v); err != nil {
			return core.ExpenseInput{}, err
		}
	}

	in := core.ExpenseInput{
		Amount:        amount,
		Description:   p.Get("description"),
		Date:          date,
		Category:      p.Get("category"),
		PaymentMethod: p.Get("payment_method", "paymentMethod"),
	}
	if err := in.Validate(today); err != nil {
		return core.ExpenseInput{}, err
	}
	return in, nil
}

// ParseBudgetLimit reads a positive decimal limit from the first present key.
func ParseBudgetLimit(p *RequestBodyParser, keys ...string) (core.Money, error) {
	return core.ParseMoney(p.Get(keys...))
}
