package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ConfidenceLevel is the QA confidence tier assigned during extraction.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// DefaultClassificationLabel is used when the extraction stage omits a label.
const DefaultClassificationLabel = 5

// AllConfidenceLevels returns the recognized confidence tiers.
func AllConfidenceLevels() []ConfidenceLevel {
	return []ConfidenceLevel{ConfidenceHigh, ConfidenceMedium, ConfidenceLow}
}

// NormalizeConfidenceLevel lower-cases and trims a raw level. Empty input
// becomes medium. Unrecognized values are returned as-is so downstream
// aggregation can decide to ignore them.
func NormalizeConfidenceLevel(raw string) ConfidenceLevel {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ConfidenceMedium
	}
	return ConfidenceLevel(s)
}

// Valid reports whether the level is one of high, medium or low.
func (l ConfidenceLevel) Valid() bool {
	switch l {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}

// Quantity is a numeric amount with an optional unit.
type Quantity struct {
	Value float64 `json:"value" yaml:"value"`
	Unit  string  `json:"unit,omitempty" yaml:"unit"`
}

// UnmarshalJSON accepts {"value":10,"unit":"pcs"}, a bare number, or a
// string such as "10" or "10 pcs".
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '{':
		type plain Quantity
		var p plain
		if err := json.Unmarshal(data, &p); err != nil {
			return eris.Wrap(err, "quantity: decode object")
		}
		*q = Quantity(p)
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return eris.Wrap(err, "quantity: decode string")
		}
		parsed, err := ParseQuantity(s)
		if err != nil {
			return err
		}
		*q = parsed
		return nil
	default:
		v, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return eris.Wrapf(err, "quantity: parse %s", string(data))
		}
		q.Value = v
		return nil
	}
}

// UnmarshalYAML accepts the same shapes as UnmarshalJSON.
func (q *Quantity) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		if node.Tag == "!!null" {
			return nil
		}
		parsed, err := ParseQuantity(node.Value)
		if err != nil {
			return err
		}
		*q = parsed
		return nil
	}
	type plain Quantity
	var p plain
	if err := node.Decode(&p); err != nil {
		return eris.Wrap(err, "quantity: decode mapping")
	}
	*q = Quantity(p)
	return nil
}

// ParseQuantity parses "10", "10 pcs" or "2.5kg" into a Quantity.
func ParseQuantity(s string) (Quantity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Quantity{}, nil
	}
	end := 0
	for end < len(s) {
		c := s[end]
		if (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+' || c == ',' {
			end++
			continue
		}
		break
	}
	num := strings.ReplaceAll(s[:end], ",", "")
	if num == "" {
		return Quantity{}, eris.Errorf("quantity: no numeric value in %q", s)
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return Quantity{}, eris.Wrapf(err, "quantity: parse %q", s)
	}
	return Quantity{Value: v, Unit: strings.TrimSpace(s[end:])}, nil
}

// ExtractedMaterial is a material line item pulled from the QA document.
type ExtractedMaterial struct {
	MaterialName          string          `json:"material_name" yaml:"material_name" validate:"required"`
	Excerpt               string          `json:"excerpt,omitempty" yaml:"excerpt"`
	PartNumber            string          `json:"part_number,omitempty" yaml:"part_number"`
	Quantity              *Quantity       `json:"quantity,omitempty" yaml:"quantity"`
	VendorName            string          `json:"vendor_name,omitempty" yaml:"vendor_name"`
	QAClassificationLabel int             `json:"qa_classification_label" yaml:"qa_classification_label" validate:"gte=0"`
	QAConfidenceLevel     ConfidenceLevel `json:"qa_confidence_level,omitempty" yaml:"qa_confidence_level"`
	QCProcessStep         string          `json:"qc_process_step,omitempty" yaml:"qc_process_step"`
	IsConsumable          bool            `json:"is_consumable" yaml:"is_consumable"`
}

// Unit returns the material's quantity unit, or "" when no quantity is known.
func (m ExtractedMaterial) Unit() string {
	if m.Quantity == nil {
		return ""
	}
	return m.Quantity.Unit
}

// SupplierItem is a row of the supplier bill of materials.
type SupplierItem struct {
	ItemName      string   `json:"item_name" yaml:"item_name" validate:"required"`
	PartNumber    string   `json:"part_number,omitempty" yaml:"part_number"`
	Quantity      float64  `json:"quantity" yaml:"quantity" validate:"gte=0"`
	UnitOfMeasure string   `json:"unit_of_measure,omitempty" yaml:"unit_of_measure"`
	VendorName    string   `json:"vendor_name,omitempty" yaml:"vendor_name"`
	UnitPrice     *float64 `json:"unit_price,omitempty" yaml:"unit_price" validate:"omitempty,gte=0"`
}
