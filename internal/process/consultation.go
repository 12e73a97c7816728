// ABOUTME: Consultation ingest for process data pushed by external providers
// ABOUTME: Extracts the process number from varying payload shapes and upserts the row

package process

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/atrio-legal/lexgate/internal/store"
)

// ErrNoProcessNumber is returned when no known payload shape carries a
// process number.
var ErrNoProcessNumber = errors.New("process number not found in payload")

// StatusCompleted marks a consultation whose data has been delivered.
const StatusCompleted = "completed"

// ConsultationStore defines what the ingester needs from storage
type ConsultationStore interface {
	UpsertProcessConsultation(ctx context.Context, c *store.ProcessConsultation) error
}

// Ingester stores consultation payloads pushed by the external provider.
type Ingester struct {
	store  ConsultationStore
	logger *slog.Logger
}

// NewIngester creates a consultation ingester. Pass nil logger for default.
func NewIngester(st ConsultationStore, logger *slog.Logger) *Ingester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{
		store:  st,
		logger: logger.With("component", "process"),
	}
}

// Ingest extracts the process number from the raw payload and upserts the
// consultation row with the full payload attached. New rows are stored as
// completed; existing rows are refreshed in place. Returns the extracted
// process number.
func (i *Ingester) Ingest(ctx context.Context, payload []byte) (string, error) {
	number, err := ExtractProcessNumber(payload)
	if err != nil {
		i.logger.Warn("consultation payload rejected", "error", err)
		return "", err
	}

	now := time.Now()
	c := &store.ProcessConsultation{
		ProcessNumber: number,
		Data:          string(payload),
		Status:        StatusCompleted,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := i.store.UpsertProcessConsultation(ctx, c); err != nil {
		return "", fmt.Errorf("storing consultation for %s: %w", number, err)
	}

	i.logger.Info("consultation stored", "process_number", number)
	return number, nil
}

// consultationPayload covers the shapes the provider is known to send. The
// process number may arrive nested under payload.response_data.code or as a
// top-level field under several names.
type consultationPayload struct {
	Payload struct {
		ResponseData struct {
			Code string `json:"code"`
		} `json:"response_data"`
	} `json:"payload"`
	ProcessNumber  string `json:"process_number"`
	NumeroProcesso string `json:"numero_processo"`
	Code           string `json:"code"`
}

// ExtractProcessNumber pulls the process number out of a raw provider
// payload, checking the known locations in priority order.
func ExtractProcessNumber(payload []byte) (string, error) {
	var p consultationPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return "", fmt.Errorf("parsing payload: %w", err)
	}

	for _, candidate := range []string{
		p.Payload.ResponseData.Code,
		p.ProcessNumber,
		p.NumeroProcesso,
		p.Code,
	} {
		if candidate != "" {
			return candidate, nil
		}
	}
	return "", ErrNoProcessNumber
}
