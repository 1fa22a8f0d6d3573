package export

import (
	"fmt"
	"strings"
	"testing"

	"vcf-drop/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contact(name, phone string, overflow bool) domain.Contact {
	return domain.Contact{ID: name, Name: name, Phone: phone, IsOverflow: overflow}
}

func TestFormatter_FormatEmpty(t *testing.T) {
	f := NewFormatter("", "", "")
	assert.Equal(t, "", f.Format(nil))
	assert.Equal(t, "", f.Format([]domain.Contact{}))
}

func TestFormatter_Card(t *testing.T) {
	f := NewFormatter("Org", "Note", "")

	got := f.Card(contact("Ada Lovelace", "+234 801 2345", false))

	want := "BEGIN:VCARD\r\n" +
		"VERSION:3.0\r\n" +
		"FN:Ada Lovelace\r\n" +
		"N:Ada Lovelace;;;;\r\n" +
		"TEL;TYPE=CELL:+234 801 2345\r\n" +
		"ORG:Org\r\n" +
		"NOTE:Note\r\n" +
		"END:VCARD"
	assert.Equal(t, want, got)
}

func TestFormatter_FormatTwo(t *testing.T) {
	f := NewFormatter("", "", "")
	c1 := contact("A", "1", false)
	c2 := contact("B", "2", true)

	out := f.Format([]domain.Contact{c1, c2})

	assert.Equal(t, f.Card(c1)+"\r\n"+f.Card(c2), out)
	assert.Equal(t, 2, strings.Count(out, "BEGIN:VCARD"))
	assert.Contains(t, out, "END:VCARD\r\nBEGIN:VCARD")
	assert.NotContains(t, out, "END:VCARD\r\n\r\n")
	assert.False(t, strings.HasSuffix(out, "\r\n"))
	assert.NotContains(t, strings.ReplaceAll(out, "\r\n", ""), "\n", "no bare LF")
	assert.Contains(t, out, "ORG:"+DefaultOrg)
	assert.Contains(t, out, "NOTE:"+DefaultNote)
}

func TestFormatter_Deterministic(t *testing.T) {
	f := NewFormatter("", "", "")
	list := []domain.Contact{contact("A", "1", false), contact("B", "2", false)}
	assert.Equal(t, f.Format(list), f.Format(list))
}

func TestBatches(t *testing.T) {
	mk := func(n int) []domain.Contact {
		out := make([]domain.Contact, n)
		for i := range out {
			out[i] = contact(fmt.Sprintf("c%03d", i), fmt.Sprint(i), false)
		}
		return out
	}

	tests := []struct {
		name  string
		n     int
		sizes []int
	}{
		{"empty", 0, nil},
		{"under one batch", 42, []int{42}},
		{"exactly one batch", 100, []int{100}},
		{"one over", 101, []int{100, 1}},
		{"several", 250, []int{100, 100, 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contacts := mk(tt.n)
			batches := Batches(contacts, BatchSize)
			require.Len(t, batches, len(tt.sizes))

			var flat []domain.Contact
			for i, b := range batches {
				assert.Len(t, b, tt.sizes[i])
				flat = append(flat, b...)
			}
			if tt.n > 0 {
				assert.Equal(t, contacts, flat, "order preserved")
			}
		})
	}

	assert.Len(t, Batches(mk(5), 0), 1, "non-positive size falls back to default")
}

func TestSplitOverflow(t *testing.T) {
	in := []domain.Contact{
		contact("a", "1", false),
		contact("b", "2", true),
		contact("c", "3", false),
		contact("d", "4", true),
	}

	std, over := SplitOverflow(in)

	assert.Equal(t, []domain.Contact{in[0], in[2]}, std)
	assert.Equal(t, []domain.Contact{in[1], in[3]}, over)
}

func TestFilenamesAndManifest(t *testing.T) {
	f := NewFormatter("", "", "DROP")

	assert.Equal(t, "DROP_COMPLETE_EXPORT.vcf", f.CompleteFilename())
	assert.Equal(t, "DROP_BATCH_3.vcf", f.BatchFilename(3))
	assert.Equal(t, "DROP_OVERFLOW.vcf", f.OverflowFilename())

	var contacts []domain.Contact
	for i := 0; i < 130; i++ {
		contacts = append(contacts, contact(fmt.Sprint(i), fmt.Sprint(i), i >= 120))
	}

	files := f.Manifest(contacts)
	require.Len(t, files, 3)
	assert.Equal(t, File{Name: "DROP_BATCH_1.vcf", Contacts: 100, Batch: 1}, files[0])
	assert.Equal(t, File{Name: "DROP_BATCH_2.vcf", Contacts: 20, Batch: 2}, files[1])
	assert.Equal(t, File{Name: "DROP_OVERFLOW.vcf", Contacts: 10, Overflow: true}, files[2])

	assert.Empty(t, f.Manifest(nil))
}
