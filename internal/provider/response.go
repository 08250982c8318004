package provider

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"invoicer/internal/domain"
	"invoicer/internal/thaidate"
)

// DefaultConfidence is reported when the model omits a confidence score.
const DefaultConfidence = 0.8

// minPlausibleYear is the earliest invoice year accepted from a model.
const minPlausibleYear = 2020

var jsonObject = regexp.MustCompile(`\{[\s\S]*\}`)

const invoiceSchemaJSON = `{
  "type": "object",
  "required": ["date", "supplier"],
  "properties": {
    "date": {"type": "string", "minLength": 1},
    "supplier": {"type": "string", "minLength": 1},
    "originalSupplier": {"type": ["string", "null"]}
  }
}`

var invoiceSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("invoice.json", strings.NewReader(invoiceSchemaJSON)); err != nil {
		panic(fmt.Sprintf("add invoice schema: %v", err))
	}
	return compiler.MustCompile("invoice.json")
}

// ParseInvoiceResponse turns the raw text of a model reply into validated
// invoice data. The first '{' through the last '}' is taken as the JSON
// object. Every failure is an *ExtractionError attributed to providerName.
func ParseInvoiceResponse(providerName, content string, now time.Time) (*domain.InvoiceData, error) {
	fail := func(kind domain.ErrorKind, format string, args ...any) error {
		return NewExtractionError(providerName, kind,
			"Failed to parse invoice data: "+fmt.Sprintf(format, args...), nil)
	}

	raw := jsonObject.FindString(content)
	if raw == "" {
		return nil, fail(domain.ErrorKindFormat, "No JSON found in response")
	}

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fail(domain.ErrorKindFormat, "invalid JSON in response: %v", err)
	}
	if err := invoiceSchema.Validate(doc); err != nil {
		return nil, fail(domain.ErrorKindValidation, "Missing required fields: date and supplier")
	}

	fields := doc.(map[string]any)
	date := fields["date"].(string)
	supplier := strings.TrimSpace(fields["supplier"].(string))
	if supplier == "" {
		return nil, fail(domain.ErrorKindValidation, "Missing required fields: date and supplier")
	}

	if !thaidate.IsISODate(date) {
		return nil, fail(domain.ErrorKindFormat, "Invalid date format: %s. Expected YYYY-MM-DD", date)
	}

	year, _ := thaidate.YearOf(date)
	if thaidate.IsBuddhistEra(year) {
		return nil, fail(domain.ErrorKindValidation,
			"Buddhist Era year not converted! Got %d, expected CE year (subtract %d)", year, thaidate.Offset)
	}

	res, err := thaidate.Normalize(date, now)
	if err != nil {
		return nil, NewExtractionError(providerName, KindOf(err), "Failed to parse invoice data", err)
	}

	maxYear := now.Year() + 2
	if res.Year < minPlausibleYear {
		return nil, fail(domain.ErrorKindValidation,
			"Date too old: %s (year %d). Expected range: %d-%d. Original date from model: %s",
			res.Date, res.Year, minPlausibleYear, maxYear, date)
	}
	if res.Year > maxYear {
		return nil, fail(domain.ErrorKindValidation,
			"Date too far in future: %s (year %d). Expected range: %d-%d. Original date from model: %s",
			res.Date, res.Year, minPlausibleYear, maxYear, date)
	}

	data := &domain.InvoiceData{
		Date:       res.Date,
		Supplier:   supplier,
		Confidence: DefaultConfidence,
	}
	if s, ok := fields["originalSupplier"].(string); ok {
		data.OriginalSupplier = s
	}
	if c, ok := fields["confidence"].(float64); ok && c > 0 {
		data.Confidence = c
	}
	return data, nil
}
