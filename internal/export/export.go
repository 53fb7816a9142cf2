// Package export writes scan records out as TXT, CSV, JSON, or XML.
package export

import (
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"strings"
	"time"

	"achk/internal/scan"
)

// ToTXT writes one raw line per record, UTF-8.
func ToTXT(records []scan.Record, path string) error {
	var sb strings.Builder
	for _, rec := range records {
		sb.WriteString(rec.Text)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("writing text export: %w", err)
	}
	return nil
}

// ToCSV writes records with columns timestamp,type,permissions,path,user.
func ToCSV(records []scan.Record, path, user string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating CSV export: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp", "type", "permissions", "path", "user"}); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	now := time.Now().Format(time.RFC3339)
	for _, rec := range records {
		kind := "read"
		if rec.IsErr {
			kind = "error"
		} else if rec.IsWrite {
			kind = "write"
		}
		row := []string{now, kind, rec.Text, scan.ExtractFirstPath(rec.Text), user}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

type jsonEntry struct {
	Line      string `json:"line"`
	HasWrite  bool   `json:"has_write"`
	IsError   bool   `json:"is_error"`
	Path      string `json:"path"`
	Timestamp string `json:"timestamp"`
}

type jsonDocument struct {
	ExportTimestamp string      `json:"export_timestamp"`
	TotalEntries    int         `json:"total_entries"`
	Entries         []jsonEntry `json:"entries"`
}

// ToJSON writes records as a structured document with export metadata.
func ToJSON(records []scan.Record, path string) error {
	now := time.Now().Format(time.RFC3339)
	doc := jsonDocument{
		ExportTimestamp: now,
		TotalEntries:    len(records),
		Entries:         make([]jsonEntry, 0, len(records)),
	}
	for _, rec := range records {
		doc.Entries = append(doc.Entries, jsonEntry{
			Line:      rec.Text,
			HasWrite:  rec.IsWrite,
			IsError:   rec.IsErr,
			Path:      scan.ExtractFirstPath(rec.Text),
			Timestamp: now,
		})
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding JSON export: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing JSON export: %w", err)
	}
	return nil
}

type xmlEntry struct {
	HasWrite bool   `xml:"has_write,attr"`
	IsError  bool   `xml:"is_error,attr"`
	Line     string `xml:"line"`
	Path     string `xml:"path,omitempty"`
}

type xmlDocument struct {
	XMLName      xml.Name   `xml:"accesschk_scan"`
	Timestamp    string     `xml:"timestamp,attr"`
	TotalEntries int        `xml:"total_entries,attr"`
	Entries      []xmlEntry `xml:"entry"`
}

// ToXML writes records as an accesschk_scan document.
func ToXML(records []scan.Record, path string) error {
	doc := xmlDocument{
		Timestamp:    time.Now().Format(time.RFC3339),
		TotalEntries: len(records),
		Entries:      make([]xmlEntry, 0, len(records)),
	}
	for _, rec := range records {
		doc.Entries = append(doc.Entries, xmlEntry{
			HasWrite: rec.IsWrite,
			IsError:  rec.IsErr,
			Line:     rec.Text,
			Path:     scan.ExtractFirstPath(rec.Text),
		})
	}
	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding XML export: %w", err)
	}
	out := append([]byte(xml.Header), data...)
	out = append(out, '\n')
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("writing XML export: %w", err)
	}
	return nil
}
