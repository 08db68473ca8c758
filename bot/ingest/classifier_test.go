package ingest

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thertxnetworktwo/toolkit/bot/archive"
)

func TestClassifyPriorityOrder(t *testing.T) {
	c := NewClassifier(DefaultRules())

	cases := []struct {
		filename string
		data     []byte
		want     Kind
	}{
		{"account.session", nil, KindCredential},
		{"export.JSON", nil, KindCredential},
		{"desktop.tdata", nil, KindCredential},
		{"bundle.zip", nil, KindArchive},
		{"numbers.txt", nil, KindNumberSource},
		{"numbers.csv", nil, KindNumberSource},
		{"readme.md", nil, KindUnrecognized},
		{"binary.bin", []byte{0x00, 0x01}, KindUnrecognized},
		// no extension but digit runs of plausible length in leading lines
		{"dump", []byte("header\n+1 (234) 567-8901\n"), KindNumberSource},
		{"dump", []byte("no numbers here\nat all\n"), KindUnrecognized},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, c.Classify(tc.filename, tc.data), "file %s", tc.filename)
	}
}

func TestExtractNumbersNormalizesAndDedupes(t *testing.T) {
	c := NewClassifier(DefaultRules())
	text := "+1 (234) 567-8901\n12345678901\ntoo short 123\n+1-234-567-8901\ngarbage\n9998887776655\n"

	b := c.ExtractNumbers(text, "numbers.txt")

	assert.Equal(t, []string{"12345678901", "9998887776655"}, b.Numbers())
	assert.Equal(t, []string{"numbers.txt"}, b.Sources())
}

func TestExtractNumbersSkipsMalformedLines(t *testing.T) {
	c := NewClassifier(DefaultRules())
	// 3 valid, 2 malformed
	text := "1234567890\nabc9876543210\n555\n+441632960123\nnot a number\n"

	b := c.ExtractNumbers(text, "mixed.txt")
	assert.Equal(t, 3, b.Len())
	assert.Contains(t, b.Numbers(), "1234567890")
	assert.Contains(t, b.Numbers(), "9876543210")
	assert.Contains(t, b.Numbers(), "441632960123")
}

func TestExtractNumbersRejectsLettersInsideNumber(t *testing.T) {
	c := NewClassifier(DefaultRules())
	b := c.ExtractNumbers("12345abc67890\n", "x.txt")
	assert.Equal(t, 0, b.Len())
}

func TestExtractionIsIdempotent(t *testing.T) {
	c := NewClassifier(DefaultRules())
	text := "+1 (234) 567-8901\n12345678901\n+1-234-567-8901\n9998887776655\n"

	first := c.ExtractNumbers(text, "a.txt")
	second := c.ExtractNumbers(RenderNumbers(first), "b.txt")

	assert.Equal(t, first.Numbers(), second.Numbers())
}

func TestConfigurableDigitBounds(t *testing.T) {
	c := NewClassifier(Rules{MinDigits: 5, MaxDigits: 7, SniffLines: 5})
	b := c.ExtractNumbers("12345\n1234\n1234567\n12345678\n", "bounds.txt")
	assert.Equal(t, []string{"12345", "1234567"}, b.Numbers())
}

func TestBatchMergeDedupesAcrossSources(t *testing.T) {
	a := NewBatch()
	a.Add("1234567890")
	a.AddSource("one.txt")
	b := NewBatch()
	b.Add("1234567890")
	b.Add("9876543210")
	b.AddSource("two.txt")

	a.Merge(b)

	assert.Equal(t, []string{"1234567890", "9876543210"}, a.Numbers())
	assert.Equal(t, []string{"one.txt", "two.txt"}, a.Sources())
}

func zipOf(t *testing.T, names []string, contents map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(contents[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestCredentialFromArchiveTakesFirstMatch(t *testing.T) {
	c := NewClassifier(DefaultRules())
	data := zipOf(t,
		[]string{"a.txt", "b.session", "c.session"},
		map[string]string{"a.txt": "1234567890", "b.session": "first", "c.session": "second"},
	)

	m, err := c.CredentialFromArchive(data, archive.DefaultLimits())
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "b.session", m.Path)
	assert.Equal(t, []byte("first"), m.Data)
}

func TestCredentialFromArchiveNoneFound(t *testing.T) {
	c := NewClassifier(DefaultRules())
	data := zipOf(t, []string{"a.txt"}, map[string]string{"a.txt": "1234567890"})

	m, err := c.CredentialFromArchive(data, archive.DefaultLimits())
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestBatchFromArchiveMergesNumberSources(t *testing.T) {
	c := NewClassifier(DefaultRules())
	data := zipOf(t,
		[]string{"one.txt", "skip.session", "two.csv"},
		map[string]string{
			"one.txt":      "1234567890\n5556667778\n",
			"skip.session": "1234567890",
			"two.csv":      "5556667778\n9990001112\n",
		},
	)

	b, err := c.BatchFromArchive(data, archive.DefaultLimits())
	require.NoError(t, err)
	assert.Equal(t, []string{"1234567890", "5556667778", "9990001112"}, b.Numbers())
	assert.Equal(t, []string{"one.txt", "two.csv"}, b.Sources())
}

func TestBatchFromArchiveCorrupt(t *testing.T) {
	c := NewClassifier(DefaultRules())
	_, err := c.BatchFromArchive([]byte("nope"), archive.DefaultLimits())
	assert.ErrorIs(t, err, archive.ErrCorrupt)
}
