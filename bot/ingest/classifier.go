package ingest

import (
	"io"
	"path"
	"strings"

	"github.com/thertxnetworktwo/toolkit/bot/archive"
)

// Rules configure classification and number extraction.
type Rules struct {
	// MinDigits and MaxDigits bound the accepted digit count per number.
	MinDigits int `yaml:"min_digits" envconfig:"INGEST_MIN_DIGITS"`
	MaxDigits int `yaml:"max_digits" envconfig:"INGEST_MAX_DIGITS"`
	// SniffLines caps how many leading lines content sniffing inspects for
	// extension-less uploads.
	SniffLines int `yaml:"sniff_lines" envconfig:"INGEST_SNIFF_LINES"`
}

// DefaultRules mirror common international phone-number lengths.
func DefaultRules() Rules {
	return Rules{MinDigits: 10, MaxDigits: 15, SniffLines: 20}
}

func (r *Rules) normalize() {
	if r.MinDigits <= 0 {
		r.MinDigits = 10
	}
	if r.MaxDigits < r.MinDigits {
		r.MaxDigits = 15
	}
	if r.SniffLines <= 0 {
		r.SniffLines = 20
	}
}

var (
	credentialExts = []string{".session", ".tdata", ".json"}
	archiveExts    = []string{".zip"}
	numberExts     = []string{".txt", ".csv"}
)

// Classifier applies the ordered classification rules and extracts numbers.
type Classifier struct {
	rules Rules
}

// NewClassifier builds a classifier, falling back to defaults for unset rule
// fields.
func NewClassifier(rules Rules) *Classifier {
	rules.normalize()
	return &Classifier{rules: rules}
}

// Classify decides the artifact kind for a filename and its content.
// Rules fire in priority order: credential extension, archive container,
// number-source extension or content sniff, otherwise unrecognized.
func (c *Classifier) Classify(filename string, data []byte) Kind {
	ext := strings.ToLower(path.Ext(filename))
	for _, e := range credentialExts {
		if ext == e {
			return KindCredential
		}
	}
	for _, e := range archiveExts {
		if ext == e {
			return KindArchive
		}
	}
	for _, e := range numberExts {
		if ext == e {
			return KindNumberSource
		}
	}
	if c.sniffNumbers(data) {
		return KindNumberSource
	}
	return KindUnrecognized
}

// AcceptedKinds names the artifact kinds uploads may carry, for user-facing
// rejection replies.
func AcceptedKinds() string {
	return ".session/.tdata/.json credentials, .txt/.csv number lists, .zip archives"
}

// ExtractNumbers scans text line by line and collects normalized numbers.
// Malformed lines are skipped. Source names the provenance of the text.
func (c *Classifier) ExtractNumbers(text, source string) *Batch {
	batch := NewBatch()
	added := false
	for _, line := range strings.Split(text, "\n") {
		n, ok := c.normalizeLine(line)
		if !ok {
			continue
		}
		batch.Add(n)
		added = true
	}
	if added {
		batch.AddSource(source)
	}
	return batch
}

// normalizeLine reduces one line to the canonical digit-only representation.
// It strips leading/trailing non-digit noise and common in-number separators;
// anything else disqualifies the line.
func (c *Classifier) normalizeLine(line string) (string, bool) {
	s := strings.TrimSpace(line)
	if s == "" {
		return "", false
	}

	start, end := -1, -1
	for i, r := range s {
		if r >= '0' && r <= '9' {
			if start == -1 {
				start = i
			}
			end = i
		}
	}
	if start == -1 {
		return "", false
	}
	core := s[start : end+1]

	var digits strings.Builder
	for _, r := range core {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
			// separator noise inside the number
		default:
			return "", false
		}
	}
	n := digits.String()
	if len(n) < c.rules.MinDigits || len(n) > c.rules.MaxDigits {
		return "", false
	}
	return n, true
}

func (c *Classifier) sniffNumbers(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	lines := strings.Split(string(data), "\n")
	if len(lines) > c.rules.SniffLines {
		lines = lines[:c.rules.SniffLines]
	}
	for _, line := range lines {
		if _, ok := c.normalizeLine(line); ok {
			return true
		}
	}
	return false
}

// CredentialFromArchive returns the first member of the container classified
// as a credential, in iteration order; remaining members are not inspected.
// It returns nil when no credential member exists.
func (c *Classifier) CredentialFromArchive(data []byte, limits archive.Limits) (*archive.Member, error) {
	ar, err := archive.Open(data, limits)
	if err != nil {
		return nil, err
	}
	for {
		m, err := ar.Next()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if c.Classify(m.Path, nil) == KindCredential {
			return &m, nil
		}
	}
}

// BatchFromArchive extracts numbers from every number-source member and
// merges them into one deduplicated batch with combined provenance. Members
// of other kinds are ignored, not errored.
func (c *Classifier) BatchFromArchive(data []byte, limits archive.Limits) (*Batch, error) {
	ar, err := archive.Open(data, limits)
	if err != nil {
		return nil, err
	}
	batch := NewBatch()
	for {
		m, err := ar.Next()
		if err == io.EOF {
			return batch, nil
		}
		if err != nil {
			return nil, err
		}
		if c.Classify(m.Path, m.Data) != KindNumberSource {
			continue
		}
		batch.Merge(c.ExtractNumbers(string(m.Data), m.Path))
	}
}

// RenderNumbers formats a batch back to one number per line, the same form
// ExtractNumbers accepts.
func RenderNumbers(b *Batch) string {
	return strings.Join(b.Numbers(), "\n")
}
