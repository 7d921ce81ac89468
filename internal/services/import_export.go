package services

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/codyseavey/inventory-valuator/internal/models"
)

// ExportFormat is a supported document encoding for import and export.
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatXML  ExportFormat = "xml"
	FormatYAML ExportFormat = "yaml"
)

var ErrUnsupportedFormat = errors.New("unsupported format")

// ParseExportFormat accepts json, xml, yaml or yml in any case.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "xml":
		return FormatXML, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// ContentType is the MIME type used when serving an export.
func (f ExportFormat) ContentType() string {
	switch f {
	case FormatXML:
		return "application/xml"
	case FormatYAML:
		return "application/yaml"
	default:
		return "application/json"
	}
}

// xmlDocument is the root element of an XML export.
type xmlDocument struct {
	XMLName    xml.Name                 `xml:"InventoryValuations"`
	Valuations []models.ValuationExport `xml:"InventoryValuation"`
}

// EncodeValuations renders stored valuations as a portable document.
func EncodeValuations(format ExportFormat, valuations []models.Valuation) (string, error) {
	records := make([]models.ValuationExport, 0, len(valuations))
	for _, v := range valuations {
		records = append(records, models.NewValuationExport(v))
	}

	switch format {
	case FormatJSON:
		out, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to encode JSON: %w", err)
		}
		return string(out), nil

	case FormatXML:
		out, err := xml.MarshalIndent(xmlDocument{Valuations: records}, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to encode XML: %w", err)
		}
		return xml.Header + string(out), nil

	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return "", fmt.Errorf("failed to encode YAML: %w", err)
		}
		if err := enc.Close(); err != nil {
			return "", fmt.Errorf("failed to encode YAML: %w", err)
		}
		return buf.String(), nil

	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// DecodeValuations parses a document produced by EncodeValuations. Records
// are returned unvalidated; ValuationStore.ImportBatch skips invalid ones.
func DecodeValuations(format ExportFormat, data string) ([]models.Valuation, error) {
	var records []models.ValuationExport

	switch format {
	case FormatJSON:
		if err := json.Unmarshal([]byte(data), &records); err != nil {
			return nil, fmt.Errorf("failed to decode JSON: %w", err)
		}

	case FormatXML:
		var doc xmlDocument
		if err := xml.Unmarshal([]byte(data), &doc); err != nil {
			return nil, fmt.Errorf("failed to decode XML: %w", err)
		}
		records = doc.Valuations

	case FormatYAML:
		if err := yaml.Unmarshal([]byte(data), &records); err != nil {
			return nil, fmt.Errorf("failed to decode YAML: %w", err)
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	valuations := make([]models.Valuation, 0, len(records))
	for _, rec := range records {
		valuations = append(valuations, rec.ToValuation())
	}
	return valuations, nil
}
