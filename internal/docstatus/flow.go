package docstatus

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"etapabot/internal/protocol"
	logx "etapabot/pkg/logger"
)

// Server-side conversation states.
const (
	StateInicio          = 0
	StateSolicitarCedula = 1
	StateFinal           = 2
	StateMenuPrincipal   = 3
	StateBuscarNombre    = 4
	StateBuscarCodigo    = 5
	StateElegirCandidato = 6
)

// CandidatesKey is the contexto key holding the document numbers offered
// for selection.
const CandidatesKey = "candidatos"

// MaxCandidates bounds the list offered when a search is ambiguous.
const MaxCandidates = 5

const (
	msgSaludo          = "¡Hola! Soy tu asistente SENA. Por favor ingresa tu número de documento para verificar tu matrícula y documentos:"
	msgDocInvalido     = "Documento inválido. Debe tener entre 8 y 10 dígitos. Intenta nuevamente:"
	msgNoEncontrado    = "❌ No encontramos tu documento en nuestros registros. ¿Estás seguro de estar matriculado en el SENA?"
	msgMenu            = "¿Qué deseas hacer?<br>1. Consultar mis documentos con mi número de identificación<br>2. Buscar por nombre<br>3. Buscar por código de programa<br><br>Escribe el número de la opción."
	msgPedirDocumento  = "Ingresa tu número de identificación:"
	msgPedirNombre     = "Escribe tu nombre o parte de él:"
	msgPedirCodigo     = "Escribe el código de tu programa de formación:"
	msgOpcionInvalida  = "Opción no válida."
	msgSinNombre       = "No encontramos aprendices con ese nombre. Intenta nuevamente:"
	msgSinCodigo       = "No encontramos aprendices con ese código de programa. Intenta nuevamente:"
	msgElegirCandidato = "Escribe el número del aprendiz."
)

// Flow is the scripted state machine behind /procesar.
type Flow struct {
	registry *Registry
	checker  DocumentChecker
	cache    ReportCache
}

func NewFlow(registry *Registry, checker DocumentChecker, cache ReportCache) *Flow {
	return &Flow{registry: registry, checker: checker, cache: cache}
}

// Process answers one turn. Context keys the flow does not own are echoed
// back unchanged.
func (f *Flow) Process(ctx context.Context, req protocol.Request) protocol.Response {
	msg := strings.TrimSpace(req.Mensaje)
	contexto := copyMap(req.Contexto)

	var resp protocol.Response
	switch req.Estado {
	case StateSolicitarCedula:
		resp = f.byDocument(ctx, msg)
	case StateMenuPrincipal:
		resp = f.menu(msg)
	case StateBuscarNombre:
		resp = f.search(ctx, f.registry.ByName(msg), StateBuscarNombre, msgSinNombre, contexto)
	case StateBuscarCodigo:
		resp = f.search(ctx, f.registry.ByCode(msg), StateBuscarCodigo, msgSinCodigo, contexto)
	case StateElegirCandidato:
		resp = f.pick(ctx, msg, contexto)
	default:
		resp = protocol.Response{Estado: StateSolicitarCedula, Mensaje: msgSaludo}
	}

	if resp.Contexto == nil {
		delete(contexto, CandidatesKey)
		resp.Contexto = contexto
	}
	if len(resp.Contexto) == 0 {
		resp.Contexto = nil
	}
	return resp
}

func (f *Flow) byDocument(ctx context.Context, documento string) protocol.Response {
	if !isDocumentNumber(documento) {
		return protocol.Response{Estado: StateSolicitarCedula, Mensaje: msgDocInvalido}
	}
	student, ok := f.registry.ByDocument(documento)
	if !ok {
		logx.Info().Str("documento", documento).Msg("student not found")
		return protocol.Response{
			Estado:          StateFinal,
			Mensaje:         msgNoEncontrado,
			MostrarReinicio: true,
			Encontrado:      boolPtr(false),
		}
	}
	return f.report(ctx, student)
}

func (f *Flow) menu(option string) protocol.Response {
	switch option {
	case "1":
		return protocol.Response{Estado: StateSolicitarCedula, Mensaje: msgPedirDocumento}
	case "2":
		return protocol.Response{Estado: StateBuscarNombre, Mensaje: msgPedirNombre}
	case "3":
		return protocol.Response{Estado: StateBuscarCodigo, Mensaje: msgPedirCodigo}
	default:
		return protocol.Response{Estado: StateMenuPrincipal, Mensaje: msgOpcionInvalida + "<br>" + msgMenu}
	}
}

func (f *Flow) search(ctx context.Context, found []Student, state int, notFound string, contexto map[string]any) protocol.Response {
	switch len(found) {
	case 0:
		return protocol.Response{Estado: state, Mensaje: notFound}
	case 1:
		return f.report(ctx, found[0])
	}

	shown := found
	if len(shown) > MaxCandidates {
		shown = shown[:MaxCandidates]
	}
	var b strings.Builder
	b.WriteString("Encontramos varios aprendices:<br>")
	candidates := make([]any, 0, len(shown))
	for i, s := range shown {
		fmt.Fprintf(&b, "%d. %s (%s %s) - %s<br>", i+1, s.FullName(), s.TipoDocumento, s.Documento, s.Programa)
		candidates = append(candidates, s.Documento)
	}
	if len(found) > len(shown) {
		fmt.Fprintf(&b, "<i>Mostrando %d de %d resultados.</i><br>", len(shown), len(found))
	}
	b.WriteString(msgElegirCandidato)

	contexto[CandidatesKey] = candidates
	return protocol.Response{Estado: StateElegirCandidato, Mensaje: b.String(), Contexto: contexto}
}

func (f *Flow) pick(ctx context.Context, choice string, contexto map[string]any) protocol.Response {
	candidates := candidateList(contexto[CandidatesKey])
	if len(candidates) == 0 {
		return protocol.Response{Estado: StateSolicitarCedula, Mensaje: msgSaludo}
	}

	n, err := strconv.Atoi(choice)
	if err != nil || n < 1 || n > len(candidates) {
		return protocol.Response{
			Estado:   StateElegirCandidato,
			Mensaje:  fmt.Sprintf("%s Escribe un número entre 1 y %d:", msgOpcionInvalida, len(candidates)),
			Contexto: contexto,
		}
	}

	student, ok := f.registry.ByDocument(candidates[n-1])
	if !ok {
		// the registry was reloaded since the list was offered
		return protocol.Response{
			Estado:          StateFinal,
			Mensaje:         msgNoEncontrado,
			MostrarReinicio: true,
			Encontrado:      boolPtr(false),
		}
	}
	return f.report(ctx, student)
}

func (f *Flow) report(ctx context.Context, s Student) protocol.Response {
	r, cached := f.lookup(ctx, s)

	trace := r.Trace
	if cached {
		trace = append([]string{"♻️ Resultado reciente reutilizado"}, trace...)
	}
	return protocol.Response{
		Estado:          StateFinal,
		Mensaje:         reportMessage(s, r),
		Proceso:         trace,
		MostrarReinicio: true,
		Encontrado:      boolPtr(true),
	}
}

func (f *Flow) lookup(ctx context.Context, s Student) (Report, bool) {
	if f.cache != nil {
		r, ok, err := f.cache.Get(ctx, s.Documento)
		if err != nil {
			logx.Warn().Err(err).Str("documento", s.Documento).Msg("report cache read failed")
		} else if ok {
			return r, true
		}
	}

	logx.Info().Str("documento", s.Documento).Str("nombre", s.FullName()).Msg("checking documents")
	r := f.checker.Check(ctx, s)

	if f.cache != nil && ctx.Err() == nil {
		if err := f.cache.Set(ctx, r); err != nil {
			logx.Warn().Err(err).Str("documento", s.Documento).Msg("report cache write failed")
		}
	}
	return r, false
}

func reportMessage(s Student, r Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "¡Bienvenido(a), <b>%s</b>! Estudiante del programa %s (Ficha %s).<br><br>", s.FullName(), s.Programa, s.Ficha)

	missing := r.Missing()
	if len(missing) == 0 {
		b.WriteString("✅ ¡Felicidades! Tienes TODOS tus documentos al día:<br>")
		b.WriteString("• Documento de Identidad<br>• Formato F-023 <br>• Evaluación Etapa Productiva.")
		return b.String()
	}

	b.WriteString("❌ Documentos faltantes:<br>")
	for _, kind := range missing {
		switch kind {
		case KindCedulas:
			fmt.Fprintf(&b, "• Documento (%s): No encontrado en nuestros registros<br>", s.TipoDocumento)
		case KindActas:
			b.WriteString("• F-023: No encontrada en formatos de curso<br>")
		case KindEvaluaciones:
			b.WriteString("• Evaluación: No encontrada en evaluación etapa productiva<br>")
		}
	}
	b.WriteString("<br>Por favor entrega los documentos faltantes a coordinación.")
	return b.String()
}

// candidateList accepts both the []any produced by encoding/json and a
// []string set in-process.
func candidateList(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			switch s := item.(type) {
			case string:
				out = append(out, s)
			case float64:
				out = append(out, strconv.FormatFloat(s, 'f', -1, 64))
			}
		}
		return out
	default:
		return nil
	}
}

func copyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func boolPtr(b bool) *bool {
	return &b
}
