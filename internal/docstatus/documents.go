package docstatus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	logx "etapabot/pkg/logger"
	"github.com/ledongthuc/pdf"
)

// minTextLength is the extracted length under which a PDF is assumed to be
// a scan without a text layer.
const minTextLength = 100

// Report is the outcome of checking one student's documents.
type Report struct {
	Documento string          `json:"documento"`
	Found     map[string]bool `json:"found"`
	Trace     []string        `json:"trace"`
	CheckedAt time.Time       `json:"checked_at"`
}

// Missing lists the kinds not found, in DocumentKinds order.
func (r Report) Missing() []string {
	var out []string
	for _, kind := range DocumentKinds {
		if !r.Found[kind] {
			out = append(out, kind)
		}
	}
	return out
}

// DocumentChecker verifies which documents a student has delivered.
type DocumentChecker interface {
	Check(ctx context.Context, s Student) Report
}

// TextExtractor returns the text layer of a file.
type TextExtractor func(path string) (string, error)

// PDFChecker scans <root>/<kind>/*.pdf for the student's document number or
// name.
type PDFChecker struct {
	root    string
	extract TextExtractor
}

var _ DocumentChecker = (*PDFChecker)(nil)

func NewPDFChecker(root string) *PDFChecker {
	return &PDFChecker{root: root, extract: ExtractPDFText}
}

// WithExtractor replaces the text extractor.
func (c *PDFChecker) WithExtractor(fn TextExtractor) *PDFChecker {
	c.extract = fn
	return c
}

// Check looks through every kind directory and stops at the first
// matching file per kind.
func (c *PDFChecker) Check(ctx context.Context, s Student) Report {
	report := Report{
		Documento: s.Documento,
		Found:     make(map[string]bool, len(DocumentKinds)),
		CheckedAt: time.Now(),
	}
	name := s.FullName()

	for _, kind := range DocumentKinds {
		report.Found[kind] = false
		dir := filepath.Join(c.root, kind)

		files, err := pdfFiles(dir)
		if errors.Is(err, fs.ErrNotExist) {
			logx.Warn().Str("path", dir).Msg("document directory not found")
			report.Trace = append(report.Trace, fmt.Sprintf("⚠️ Directorio no encontrado: %s", kind))
			continue
		}
		if err != nil {
			logx.Error().Err(err).Str("path", dir).Msg("list documents failed")
			report.Trace = append(report.Trace, fmt.Sprintf("⚠️ No se pudo leer %s", kind))
			continue
		}

		report.Trace = append(report.Trace, fmt.Sprintf("🔍 Buscando en %s...", kind))
		for _, file := range files {
			if ctx.Err() != nil {
				report.Trace = append(report.Trace, "⏹️ Búsqueda cancelada")
				return report
			}
			text, err := c.extract(file)
			if err != nil {
				logx.Warn().Err(err).Str("path", file).Msg("pdf text extraction failed")
				continue
			}
			if len(strings.TrimSpace(text)) < minTextLength {
				logx.Debug().Str("path", file).Msg("little text extracted, probably a scanned pdf")
			}

			docFound, nameFound := MatchText(text, s.Documento, name)
			if docFound || nameFound {
				report.Found[kind] = true
				report.Trace = append(report.Trace, fmt.Sprintf("✅ Coincidencia en %s (cédula %s, nombre %s)",
					filepath.Base(file), mark(docFound), mark(nameFound)))
				break
			}
		}

		status := "NO ENCONTRADO"
		if report.Found[kind] {
			status = "ENCONTRADO"
		}
		report.Trace = append(report.Trace, fmt.Sprintf("📌 Resultado para %s: %s", kind, status))
	}
	return report
}

func mark(ok bool) string {
	if ok {
		return "✔"
	}
	return "✖"
}

// pdfFiles lists *.pdf in dir, case-insensitively, sorted by name.
func pdfFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// ExtractPDFText reads the plain-text layer of a PDF. Malformed files that
// make the parser panic are reported as errors.
func ExtractPDFText(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse %s: %v", path, r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

const documentKeywords = `(?:cc|cedula|documento|identificacion)\D*`

// MatchText reports whether the normalised text contains the document
// number and whether it contains the name.
//
// The document matches when its digits appear within the digits of the
// text, or when a document keyword is followed by its last four digits.
// The name matches when at least two of its parts appear as whole words,
// or when the whole name appears in sequence.
func MatchText(text, documento, nombre string) (docFound, nameFound bool) {
	normText := Normalize(text)
	if normText == "" {
		return false, false
	}

	if id := digitsOnly(Normalize(documento)); id != "" {
		docFound = strings.Contains(digitsOnly(normText), id)
		if !docFound && len(id) >= 4 {
			re := regexp.MustCompile(documentKeywords + regexp.QuoteMeta(id[len(id)-4:]))
			docFound = re.MatchString(normText)
		}
	}

	parts := strings.Fields(Normalize(nombre))
	if len(parts) >= 2 {
		words := make(map[string]struct{})
		for _, w := range strings.Fields(normText) {
			words[w] = struct{}{}
		}
		hits := 0
		for _, p := range parts {
			if _, ok := words[p]; ok {
				hits++
			}
		}
		nameFound = hits >= 2
		if !nameFound {
			nameFound = strings.Contains(" "+normText+" ", " "+strings.Join(parts, " ")+" ")
		}
	}
	return docFound, nameFound
}
