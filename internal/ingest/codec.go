// Package ingest accepts alert dispatch requests over HTTP and NATS,
// decodes and validates them, and hands them to the alert sink.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"slackalert/internal/domain"
)

// AlertSink processes one decoded alert.
// Params: context and validated alert.
// Returns: dispatch error; permanent-marked errors must not be retried.
type AlertSink interface {
	Push(ctx context.Context, alert domain.StatusAlert) error
}

// decodeAlertPayload auto-detects one alert object or an array of alerts.
// Params: raw JSON bytes.
// Returns: validated alerts or decode/validation error.
func decodeAlertPayload(raw []byte) ([]domain.StatusAlert, error) {
	payload := bytes.TrimSpace(raw)
	if len(payload) == 0 {
		return nil, errors.New("empty payload")
	}
	decoder := json.NewDecoder(bytes.NewReader(payload))
	if payload[0] == '[' {
		return decodeAlertBatch(decoder)
	}
	var alert domain.StatusAlert
	if err := decoder.Decode(&alert); err != nil {
		return nil, fmt.Errorf("decode alert: %w", err)
	}
	if err := ensureJSONEOF(decoder); err != nil {
		return nil, err
	}
	if err := alert.Validate(); err != nil {
		return nil, err
	}
	return []domain.StatusAlert{alert}, nil
}

// decodeAlertBatch decodes one JSON array of alerts.
// Params: decoder positioned at the array.
// Returns: validated alerts or decode/validation error.
func decodeAlertBatch(decoder *json.Decoder) ([]domain.StatusAlert, error) {
	var alerts []domain.StatusAlert
	if err := decoder.Decode(&alerts); err != nil {
		return nil, fmt.Errorf("decode alert batch: %w", err)
	}
	if len(alerts) == 0 {
		return nil, errors.New("alert batch must contain at least one alert")
	}
	if err := ensureJSONEOF(decoder); err != nil {
		return nil, err
	}
	for i := range alerts {
		if err := alerts[i].Validate(); err != nil {
			return nil, fmt.Errorf("alert[%d]: %w", i, err)
		}
	}
	return alerts, nil
}

// ensureJSONEOF rejects trailing tokens after a decoded JSON payload.
// Params: decoder positioned after primary decode.
// Returns: nil on EOF or error on trailing tokens.
func ensureJSONEOF(decoder *json.Decoder) error {
	var extra json.RawMessage
	err := decoder.Decode(&extra)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("decode trailing json: %w", err)
	}
	return errors.New("unexpected trailing json tokens")
}
