package http

import "codes-api/internal/gateway/domain/model"

// Response messages. They are part of the public contract of the API.
const (
	MsgBackendOK       = "Backend funcionando!"
	MsgModelsOK        = "Modelos funcionando!"
	MsgModelsError     = "Erro ao testar modelos"
	MsgRouteNotFound   = "Rota não encontrada"
	MsgInternalError   = "Erro interno do servidor"
	MsgRateLimited     = "Muitas tentativas. Tente novamente em 15 minutos."
	MsgInvalidJSON     = "JSON inválido"
	MsgInvalidForm     = "Formulário inválido"
	MsgPayloadTooLarge = "Corpo da requisição muito grande"
	MsgTooManyParams   = "Parâmetros demais"
	MsgBadRequest      = "Requisição inválida"
)

// Health statuses
const (
	StatusHealthy   = "HEALTHY"
	StatusUnhealthy = "UNHEALTHY"
)

// MessageResponse is returned by GET /api/test.
type MessageResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// ModelsResponse is returned by GET /api/test-models.
type ModelsResponse struct {
	Message     string                `json:"message"`
	Collections model.CollectionStats `json:"collections"`
	Timestamp   string                `json:"timestamp"`
}

// ErrorResponse is the body of every rejection.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ErrorDetailsResponse carries the failure description of a handled error.
type ErrorDetailsResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Error     string            `json:"error,omitempty"`
	Timestamp string            `json:"timestamp"`
}
