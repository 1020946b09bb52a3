package mapping

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/seanwevans/fhir-department/internal/config"
	"github.com/seanwevans/fhir-department/internal/extraction"
)

// Request carries one document's extraction payload across the mapping
// boundary. The same shape is the JSON body posted to an HTTP mapper.
type Request struct {
	Title   string `json:"title,omitempty"`
	MIME    string `json:"mimeType,omitempty"`
	Kind    string `json:"payloadKind,omitempty"`
	Payload string `json:"payload"`
}

// Service turns an extraction payload into validated entity records.
// Implementations validate everything crossing the boundary; callers
// convert the result to resources without further checks.
type Service interface {
	Map(ctx context.Context, req Request) ([]Record, error)
}

// NewService returns the HTTP mapper when an endpoint is configured and the
// built-in structural mapper otherwise.
func NewService(cfg *config.Config) Service {
	endpoint := strings.TrimSpace(cfg.Mapper.Endpoint)
	if endpoint == "" {
		return structuralService{}
	}
	timeout := time.Duration(cfg.Mapper.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &httpService{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

const maxReplyBytes = 8 << 20

// httpService posts the payload to the external entity mapper and expects a
// {"records": [...]} reply.
type httpService struct {
	endpoint string
	client   *http.Client
}

func (s *httpService) Map(ctx context.Context, req Request) ([]Record, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode mapper request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build mapper request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post mapper request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		detail := strings.TrimSpace(string(excerpt))
		if detail == "" {
			return nil, fmt.Errorf("mapper service responded with status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("mapper service responded with status %d: %s", resp.StatusCode, detail)
	}

	reply, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, fmt.Errorf("read mapper reply: %w", err)
	}
	var envelope struct {
		Records json.RawMessage `json:"records"`
	}
	if err := json.Unmarshal(reply, &envelope); err != nil {
		return nil, fmt.Errorf("decode mapper reply: %w", err)
	}
	if len(envelope.Records) == 0 {
		return nil, errors.New("mapper reply carries no records field")
	}
	return DecodeRecords(envelope.Records)
}

// structuralService wraps the payload in a single DocumentReference record.
// No entity extraction happens here; it keeps the pipeline producing
// well-formed bundles when no mapper endpoint is configured.
type structuralService struct{}

func (structuralService) Map(ctx context.Context, req Request) ([]Record, error) {
	contentType := "text/plain; charset=utf-8"
	if req.Kind == extraction.KindOCR {
		contentType = "application/xhtml+xml"
	}
	record := Record{
		ResourceType: "DocumentReference",
		Fields: map[string]any{
			"status": "current",
			"content": []any{
				map[string]any{
					"attachment": map[string]any{
						"contentType": contentType,
						"data":        base64.StdEncoding.EncodeToString([]byte(req.Payload)),
					},
				},
			},
		},
	}
	if title := strings.TrimSpace(req.Title); title != "" {
		record.Fields["description"] = title
	}
	return []Record{record}, nil
}
