// Package protocol defines the JSON exchanged with the /procesar endpoint.
// Field names follow the endpoint's Spanish contract.
package protocol

// Path is the single endpoint both the client and the reference server use.
const Path = "/procesar"

// Request is one user turn sent to the server. Contexto is omitted by the
// basic client variant.
type Request struct {
	Estado   int            `json:"estado"`
	Mensaje  string         `json:"mensaje"`
	Contexto map[string]any `json:"contexto,omitempty"`
}

// Response is the server's answer to one turn. Every field except Estado is
// optional; absent fields decode to their zero values.
type Response struct {
	Estado          int            `json:"estado"`
	Mensaje         string         `json:"mensaje,omitempty"`
	Contexto        map[string]any `json:"contexto,omitempty"`
	Proceso         []string       `json:"proceso,omitempty"`
	MostrarReinicio bool           `json:"mostrar_reinicio,omitempty"`
	Encontrado      *bool          `json:"encontrado,omitempty"`
}

// ErrorBody is written by the reference server for non-2xx answers.
type ErrorBody struct {
	Error string `json:"error"`
}
