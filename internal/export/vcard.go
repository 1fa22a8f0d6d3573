// Package export renders contacts as vCard 3.0 address-book files.
package export

import (
	"fmt"
	"strings"

	"vcf-drop/internal/domain"
)

const (
	// BatchSize is the number of standard contacts per batch file
	BatchSize = 100

	// ContentType is served with every export
	ContentType = "text/vcard; charset=utf-8"

	DefaultOrg        = "Λ𝗫𝗜𝗦 Ł𝗮𝗯𝘀"
	DefaultNote       = "Collected via AXIS Platform"
	DefaultFilePrefix = "AXIS_VCF"

	crlf = "\r\n"
)

// Formatter renders contacts with fixed organization and note labels
type Formatter struct {
	org        string
	note       string
	filePrefix string
}

// NewFormatter creates a formatter. Empty arguments fall back to defaults.
func NewFormatter(org, note, filePrefix string) *Formatter {
	if org == "" {
		org = DefaultOrg
	}
	if note == "" {
		note = DefaultNote
	}
	if filePrefix == "" {
		filePrefix = DefaultFilePrefix
	}
	return &Formatter{org: org, note: note, filePrefix: filePrefix}
}

// Card renders a single contact block without a trailing line break
func (f *Formatter) Card(c domain.Contact) string {
	return strings.Join([]string{
		"BEGIN:VCARD",
		"VERSION:3.0",
		"FN:" + c.Name,
		"N:" + c.Name + ";;;;",
		"TEL;TYPE=CELL:" + c.Phone,
		"ORG:" + f.org,
		"NOTE:" + f.note,
		"END:VCARD",
	}, crlf)
}

// Format renders contacts in order, blocks separated by a single CRLF.
// An empty list renders as the empty string.
func (f *Formatter) Format(contacts []domain.Contact) string {
	var b strings.Builder
	for i, c := range contacts {
		if i > 0 {
			b.WriteString(crlf)
		}
		b.WriteString(f.Card(c))
	}
	return b.String()
}

// Batches splits contacts into consecutive chunks of at most size, preserving
// order
func Batches(contacts []domain.Contact, size int) [][]domain.Contact {
	if size <= 0 {
		size = BatchSize
	}
	var out [][]domain.Contact
	for start := 0; start < len(contacts); start += size {
		end := start + size
		if end > len(contacts) {
			end = len(contacts)
		}
		out = append(out, contacts[start:end])
	}
	return out
}

// SplitOverflow separates standard contacts from overflow ones, keeping the
// original order inside each group
func SplitOverflow(contacts []domain.Contact) (standard, overflow []domain.Contact) {
	for _, c := range contacts {
		if c.IsOverflow {
			overflow = append(overflow, c)
		} else {
			standard = append(standard, c)
		}
	}
	return standard, overflow
}

// CompleteFilename names the export of every contact
func (f *Formatter) CompleteFilename() string {
	return f.filePrefix + "_COMPLETE_EXPORT.vcf"
}

// BatchFilename names standard batch n, counting from 1
func (f *Formatter) BatchFilename(n int) string {
	return fmt.Sprintf("%s_BATCH_%d.vcf", f.filePrefix, n)
}

// OverflowFilename names the overflow export
func (f *Formatter) OverflowFilename() string {
	return f.filePrefix + "_OVERFLOW.vcf"
}

// File is one downloadable export
type File struct {
	Name     string `json:"name"`
	Contacts int    `json:"contacts"`
	Batch    int    `json:"batch,omitempty"`
	Overflow bool   `json:"overflow,omitempty"`
}

// Manifest lists the batch files and the overflow file for contacts
func (f *Formatter) Manifest(contacts []domain.Contact) []File {
	standard, overflow := SplitOverflow(contacts)
	var files []File
	for i, batch := range Batches(standard, BatchSize) {
		files = append(files, File{Name: f.BatchFilename(i + 1), Contacts: len(batch), Batch: i + 1})
	}
	if len(overflow) > 0 {
		files = append(files, File{Name: f.OverflowFilename(), Contacts: len(overflow), Overflow: true})
	}
	return files
}
