package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/luthien-control/core/internal/chatapi"
	"github.com/luthien-control/core/internal/policy"
	"github.com/luthien-control/core/internal/sse"
	"github.com/luthien-control/core/internal/streaming"
	"github.com/luthien-control/core/internal/streams"
	"github.com/luthien-control/core/internal/transaction"
)

const chatCompletionsPath = "/v1/chat/completions"

// SendBackendRequest is the terminal policy (C7): it validates the backend
// URL and upstream key are present, dispatches the request to the
// configured upstream, and installs the result (buffered or streaming) onto
// the transaction's response. No retries by default (spec §9 Open
// Questions) — a transport or timeout error propagates as a 502
// UpstreamError.
type SendBackendRequest struct {
	name string
}

func NewSendBackendRequest(name string) *SendBackendRequest {
	if name == "" {
		name = "SendBackendRequest"
	}

	return &SendBackendRequest{name: name}
}

func (p *SendBackendRequest) Name() string { return p.name }

func (p *SendBackendRequest) Apply(ctx context.Context, tx *transaction.Transaction, deps *policy.Container) (*transaction.Transaction, error) {
	if req := tx.OpenAIRequest(); req != nil {
		return p.applyOpenAI(ctx, tx, req, deps)
	}

	if req := tx.RawRequest(); req != nil {
		return p.applyRaw(ctx, tx, req, deps)
	}

	return nil, policy.NewNoRequestError(p.name)
}

func (p *SendBackendRequest) backendURL(endpoint string, deps *policy.Container) string {
	if endpoint != "" {
		return endpoint
	}

	if deps != nil && deps.Settings != nil {
		return deps.Settings.BackendURL()
	}

	return ""
}

func (p *SendBackendRequest) applyOpenAI(ctx context.Context, tx *transaction.Transaction, req *transaction.OpenAIRequest, deps *policy.Container) (*transaction.Transaction, error) {
	base := p.backendURL(req.APIEndpoint, deps)
	if base == "" {
		return nil, policy.NewPolicyLoadError(p.name, "no backend URL configured")
	}

	if req.APIKey == "" {
		return nil, policy.NewApiKeyNotFoundError(p.name, "no upstream API key configured")
	}

	if req.Payload == nil {
		return nil, policy.NewNoRequestError(p.name)
	}

	req.Payload.ClearHelpFields()

	body, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, policy.NewUpstreamError(p.name, "failed to encode upstream request", err)
	}

	url := strings.TrimRight(base, "/") + chatCompletionsPath

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, policy.NewUpstreamError(p.name, "failed to build upstream request", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)

	if req.Payload.IsStreaming() {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	client := httpClient(deps)

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, policy.NewUpstreamError(p.name, fmt.Sprintf("upstream request failed: %v", err), err)
	}

	if httpResp.StatusCode >= 400 {
		defer httpResp.Body.Close()

		raw, _ := io.ReadAll(io.LimitReader(httpResp.Body, 64*1024))

		return nil, policy.NewUpstreamError(p.name, fmt.Sprintf("upstream returned %d: %s", httpResp.StatusCode, string(raw)), nil)
	}

	if req.Payload.IsStreaming() {
		byteStream := sse.Decode(ctx, httpResp.Body)
		events := streaming.OpenAIStreamWrapper(byteStream)
		tx.SetOpenAIResponse(&transaction.OpenAIResponse{StreamingIterator: streaming.ToResponseStream(events)})

		return tx, nil
	}

	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, policy.NewUpstreamError(p.name, "failed to read upstream response", err)
	}

	var payload chatapi.Response
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, policy.NewUpstreamError(p.name, "failed to decode upstream response", err)
	}

	tx.SetOpenAIResponse(&transaction.OpenAIResponse{Payload: &payload})

	return tx, nil
}

func (p *SendBackendRequest) applyRaw(ctx context.Context, tx *transaction.Transaction, req *transaction.RawRequest, deps *policy.Container) (*transaction.Transaction, error) {
	base := p.backendURL(req.BackendURL, deps)
	if base == "" {
		return nil, policy.NewPolicyLoadError(p.name, "no backend URL configured")
	}

	if req.APIKey == "" {
		return nil, policy.NewApiKeyNotFoundError(p.name, "no upstream API key configured")
	}

	url := strings.TrimRight(base, "/") + req.Path

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, bytes.NewReader(req.Body))
	if err != nil {
		return nil, policy.NewUpstreamError(p.name, "failed to build upstream request", err)
	}

	for k, vs := range req.Headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)

	wantsStream := acceptsEventStream(req.Headers)

	client := httpClient(deps)

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, policy.NewUpstreamError(p.name, fmt.Sprintf("upstream request failed: %v", err), err)
	}

	if wantsStream {
		tx.SetRawResponse(&transaction.RawResponse{
			StatusCode:        httpResp.StatusCode,
			Headers:           httpResp.Header,
			StreamingIterator: rawByteStream(httpResp.Body),
		})

		return tx, nil
	}

	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, policy.NewUpstreamError(p.name, "failed to read upstream response", err)
	}

	tx.SetRawResponse(&transaction.RawResponse{StatusCode: httpResp.StatusCode, Headers: httpResp.Header, Body: raw})

	return tx, nil
}

func acceptsEventStream(headers map[string][]string) bool {
	for key, values := range headers {
		if !strings.EqualFold(key, "Accept") {
			continue
		}

		for _, v := range values {
			if strings.Contains(v, "text/event-stream") {
				return true
			}
		}
	}

	return false
}

func rawByteStream(rc io.ReadCloser) streams.Stream[[]byte] {
	return streaming.RawByteStreamWrapper(rc, 0)
}

func httpClient(deps *policy.Container) *http.Client {
	if deps != nil && deps.HTTPClient != nil {
		return deps.HTTPClient
	}

	return http.DefaultClient
}

func (p *SendBackendRequest) Serialize() map[string]any {
	return map[string]any{"type": "SendBackendRequest", "name": p.name}
}

func init() {
	policy.Register("SendBackendRequest", func(_ context.Context, doc map[string]any, _ *policy.Container, _ policy.Loader) (policy.ControlPolicy, error) {
		name, _ := doc["name"].(string)
		return NewSendBackendRequest(name), nil
	})
}
