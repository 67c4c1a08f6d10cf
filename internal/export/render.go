package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"vivariumcore/internal/core"
)

// Format names a rendering of a snapshot.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

// AllFormats returns the supported formats in default order.
func AllFormats() []Format { return []Format{FormatJSON, FormatYAML, FormatCSV} }

// ParseFormat resolves a format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(name); f {
	case FormatJSON, FormatYAML, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", name)
	}
}

// rendered is one object ready for upload.
type rendered struct {
	name        string
	contentType string
	payload     []byte
	rows        int
}

func render(format Format, snap core.Snapshot) ([]rendered, error) {
	rows := len(snap.Facilities) + len(snap.Buildings)
	switch format {
	case FormatJSON:
		payload, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal json: %w", err)
		}
		return []rendered{{name: "snapshot.json", contentType: "application/json", payload: payload, rows: rows}}, nil
	case FormatYAML:
		payload, err := EncodeYAML(snap)
		if err != nil {
			return nil, err
		}
		return []rendered{{name: "snapshot.yaml", contentType: "application/yaml", payload: payload, rows: rows}}, nil
	case FormatCSV:
		facilities, err := facilitiesCSV(snap.Facilities)
		if err != nil {
			return nil, err
		}
		buildings, err := buildingsCSV(snap.Buildings)
		if err != nil {
			return nil, err
		}
		return []rendered{
			{name: "facilities.csv", contentType: "text/csv", payload: facilities, rows: len(snap.Facilities)},
			{name: "buildings.csv", contentType: "text/csv", payload: buildings, rows: len(snap.Buildings)},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

// EncodeYAML renders v as YAML using its JSON field names.
func EncodeYAML(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCSV(header []string, rows [][]string) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func stamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func facilitiesCSV(facilities []core.Facility) ([]byte, error) {
	rows := make([][]string, 0, len(facilities))
	for _, f := range facilities {
		rows = append(rows, []string{
			f.ID,
			f.Name,
			string(f.Type),
			string(f.Status),
			f.Address.City,
			f.Address.Country,
			f.ContactInfo.Email,
			stamp(f.CreatedAt),
			stamp(f.UpdatedAt),
		})
	}
	return writeCSV([]string{"id", "name", "type", "status", "city", "country", "email", "created_at", "updated_at"}, rows)
}

func buildingsCSV(buildings []core.Building) ([]byte, error) {
	rows := make([][]string, 0, len(buildings))
	for _, b := range buildings {
		rows = append(rows, []string{
			b.ID,
			b.Name,
			string(b.Type),
			string(b.Status),
			b.FacilityID,
			strconv.Itoa(b.Specifications.Floors),
			strconv.FormatFloat(b.Specifications.TotalAreaSqM, 'f', -1, 64),
			stamp(b.CreatedAt),
			stamp(b.UpdatedAt),
		})
	}
	return writeCSV([]string{"id", "name", "type", "status", "facility_id", "floors", "total_area_sqm", "created_at", "updated_at"}, rows)
}
