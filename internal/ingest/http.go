package ingest

import (
	"io"
	"net/http"

	"slackalert/internal/permanent"
)

// HTTPHandler decodes JSON alerts and forwards them to the sink.
// Params: sink processes validated alerts, max body limits payload size.
// Returns: HTTP handler for the alert intake endpoint.
type HTTPHandler struct {
	sink        AlertSink
	maxBodySize int64
}

// NewHTTPHandler creates the alert intake HTTP handler.
// Params: sink and max request body size in bytes.
// Returns: configured handler.
func NewHTTPHandler(sink AlertSink, maxBodySize int64) *HTTPHandler {
	return &HTTPHandler{sink: sink, maxBodySize: maxBodySize}
}

// ServeHTTP handles one incoming alert request.
// Params: HTTP request/response writer pair.
// Returns: 202 when every alert was dispatched (or suppressed), 400 on
// decode failure, 422 on permanent dispatch errors, 502 when the post failed.
func (h *HTTPHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	request.Body = http.MaxBytesReader(writer, request.Body, h.maxBodySize)
	defer request.Body.Close()
	body, err := io.ReadAll(request.Body)
	if err != nil {
		writer.WriteHeader(http.StatusBadRequest)
		return
	}

	alerts, err := decodeAlertPayload(body)
	if err != nil {
		writer.WriteHeader(http.StatusBadRequest)
		return
	}

	for _, alert := range alerts {
		if err := h.sink.Push(request.Context(), alert); err != nil {
			if permanent.Is(err) {
				writer.WriteHeader(http.StatusUnprocessableEntity)
			} else {
				writer.WriteHeader(http.StatusBadGateway)
			}
			return
		}
	}
	writer.WriteHeader(http.StatusAccepted)
}
