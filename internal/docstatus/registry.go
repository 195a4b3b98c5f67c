// Package docstatus implements the reference /procesar server: the student
// registry, the PDF document checker and the scripted conversation flow.
package docstatus

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "etapabot/pkg/logger"
)

// RegistryHeader is the first line of the registry file.
const RegistryHeader = "TipoDocumento|NumeroDocumento|Nombres|Apellido1|Apellido2|Ficha|Codigo|VersionPrograma|Programa|NivelFormacion"

const registryFields = 10

// Student is one row of the registry.
type Student struct {
	TipoDocumento   string `json:"tipo_documento"`
	Documento       string `json:"documento"`
	Nombres         string `json:"nombres"`
	Apellido1       string `json:"apellido1"`
	Apellido2       string `json:"apellido2"`
	Ficha           string `json:"ficha"`
	Codigo          string `json:"codigo"`
	VersionPrograma string `json:"version_programa"`
	Programa        string `json:"programa"`
	NivelFormacion  string `json:"nivel_formacion"`
}

// FullName joins the given names and both surnames.
func (s Student) FullName() string {
	return strings.Join(strings.Fields(s.Nombres+" "+s.Apellido1+" "+s.Apellido2), " ")
}

// Registry holds the students keyed by document number. It is safe for
// concurrent use and can be reloaded in place.
type Registry struct {
	mu       sync.RWMutex
	path     string
	students map[string]Student
	order    []string
}

// OpenRegistry loads the registry at path. A missing file yields an empty
// registry.
func OpenRegistry(path string) (*Registry, error) {
	r := &Registry{path: path, students: map[string]Student{}}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Path returns the file the registry is loaded from.
func (r *Registry) Path() string {
	return r.path
}

// Reload re-reads the registry file and swaps the contents atomically.
func (r *Registry) Reload() error {
	f, err := os.Open(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		logx.Warn().Str("path", r.path).Msg("registry file not found")
		r.swap(map[string]Student{}, nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("open registry: %w", err)
	}
	defer f.Close()

	students, order, err := parseRegistry(f)
	if err != nil {
		return fmt.Errorf("read registry %s: %w", r.path, err)
	}
	r.swap(students, order)
	logx.Info().Str("path", r.path).Int("students", len(order)).Msg("registry loaded")
	return nil
}

func (r *Registry) swap(students map[string]Student, order []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.students = students
	r.order = order
}

// parseRegistry skips the header line and every row with fewer than ten
// fields. A repeated document number replaces the earlier row in place.
func parseRegistry(rd io.Reader) (map[string]Student, []string, error) {
	students := map[string]Student{}
	var order []string

	sc := bufio.NewScanner(rd)
	first := true
	for sc.Scan() {
		if first {
			first = false
			continue
		}
		parts := strings.Split(strings.TrimSpace(sc.Text()), "|")
		if len(parts) < registryFields {
			continue
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		s := Student{
			TipoDocumento:   parts[0],
			Documento:       parts[1],
			Nombres:         capitalCase(parts[2]),
			Apellido1:       capitalCase(parts[3]),
			Apellido2:       capitalCase(parts[4]),
			Ficha:           parts[5],
			Codigo:          parts[6],
			VersionPrograma: parts[7],
			Programa:        capitalCase(parts[8]),
			NivelFormacion:  capitalCase(parts[9]),
		}
		if _, seen := students[s.Documento]; !seen {
			order = append(order, s.Documento)
		}
		students[s.Documento] = s
	}
	return students, order, sc.Err()
}

// Len returns the number of students.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// ByDocument finds a student by exact document number.
func (r *Registry) ByDocument(documento string) (Student, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.students[strings.TrimSpace(documento)]
	return s, ok
}

// ByName returns every student whose full name contains query, ignoring case.
func (r *Registry) ByName(query string) []Student {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	return r.filter(func(s Student) bool {
		return strings.Contains(strings.ToLower(s.FullName()), q)
	})
}

// ByCode returns every student enrolled in the programme with this code.
func (r *Registry) ByCode(codigo string) []Student {
	codigo = strings.TrimSpace(codigo)
	return r.filter(func(s Student) bool {
		return s.Codigo == codigo
	})
}

func (r *Registry) filter(keep func(Student) bool) []Student {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Student
	for _, doc := range r.order {
		if s := r.students[doc]; keep(s) {
			out = append(out, s)
		}
	}
	return out
}

// Document kinds, each a subdirectory of the documents root.
const (
	KindCedulas      = "cedulas"
	KindActas        = "actas"
	KindEvaluaciones = "evaluaciones"
)

// DocumentKinds lists the kinds in report order.
var DocumentKinds = []string{KindCedulas, KindActas, KindEvaluaciones}

var seedRows = []string{
	"CC|1032508266|NICOLLE ALEJANDRA|GONZALEZ|RODRIGUEZ|2944777|233108|1|SISTEMAS TELEINFORMÁTICOS|TÉCNICO",
	"CC|1233506810|JULIAN|ALDANA|MAZO|2944777|233108|1|SISTEMAS TELEINFORMÁTICOS|TÉCNICO",
	"CC|1022922610|NICOLE VANESSA|AGUIRRE|LATORRE|2944777|233108|1|SISTEMAS TELEINFORMÁTICOS|TÉCNICO",
	"CC|1023019031|BELLANIRA|ALDANA|ARANGO|2944777|233108|1|SISTEMAS TELEINFORMÁTICOS|TÉCNICO",
	"TI|1021805727|BRAHIAN|BERMUDEZ|TORRES|2944777|233108|1|SISTEMAS TELEINFORMÁTICOS|TÉCNICO",
}

// Seed writes the default registry when registryPath does not exist and
// creates the document directories under docsRoot.
func Seed(registryPath, docsRoot string) error {
	if _, err := os.Stat(registryPath); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(registryPath), 0o755); err != nil {
			return fmt.Errorf("create registry dir: %w", err)
		}
		content := RegistryHeader + "\n" + strings.Join(seedRows, "\n") + "\n"
		if err := os.WriteFile(registryPath, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write registry: %w", err)
		}
		logx.Info().Str("path", registryPath).Msg("registry seeded")
	} else if err != nil {
		return fmt.Errorf("stat registry: %w", err)
	}

	for _, kind := range DocumentKinds {
		if err := os.MkdirAll(filepath.Join(docsRoot, kind), 0o755); err != nil {
			return fmt.Errorf("create %s dir: %w", kind, err)
		}
	}
	return nil
}
