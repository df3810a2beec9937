// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pdiddy/propextract/pkg/types"
)

// VertexBackend calls Gemini models on Vertex AI. It authenticates with
// application default credentials or a service-account key file.
type VertexBackend struct {
	client *genai.Client
	model  string
}

// NewVertexBackend connects to Vertex AI in cfg's project and location.
func NewVertexBackend(ctx context.Context, cfg types.AIConfig) (*VertexBackend, error) {
	if cfg.VertexProject == "" || cfg.VertexLocation == "" {
		return nil, errors.New("vertex backend requires vertex_project and vertex_location")
	}
	var opts []option.ClientOption
	if cfg.VertexCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.VertexCredentialsFile))
	}
	client, err := genai.NewClient(ctx, cfg.VertexProject, cfg.VertexLocation, opts...)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &VertexBackend{client: client, model: cfg.Model}, nil
}

func (v *VertexBackend) Name() string { return "vertex" }

func (v *VertexBackend) Complete(ctx context.Context, r Request) (string, error) {
	model := v.client.GenerativeModel(v.model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(r.System)}}
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr(float32(r.Temperature)),
	}
	if r.MaxTokens > 0 {
		model.GenerationConfig.MaxOutputTokens = genai.Ptr(int32(r.MaxTokens))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(r.User))
	if err != nil {
		return "", vertexError(err)
	}
	text := responseText(resp)
	if text == "" {
		return "", errors.New("no text content in Vertex AI response")
	}
	return text, nil
}

// Close releases the underlying gRPC connection.
func (v *VertexBackend) Close() error { return v.client.Close() }

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String()
}

// vertexError maps gRPC status codes onto HTTP-equivalent APIErrors so the
// same transient classification applies to every provider.
func vertexError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("calling Vertex AI: %w", err)
	}
	return &APIError{Provider: "Vertex AI", StatusCode: httpStatus(st.Code()), Message: st.Message()}
}

func httpStatus(c codes.Code) int {
	switch c {
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Internal, codes.Unknown, codes.Aborted:
		return http.StatusInternalServerError
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
