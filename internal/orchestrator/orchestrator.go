// Package orchestrator implements the per-request control loop (C8): decode
// the host's request into a Transaction, invoke the configured root policy,
// convert any raised error into a response, and build the final host
// response — buffered or SSE-framed — from whatever the policy tree left on
// the transaction.
package orchestrator

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/luthien-control/core/internal/chatapi"
	"github.com/luthien-control/core/internal/log"
	"github.com/luthien-control/core/internal/policy"
	"github.com/luthien-control/core/internal/sse"
	"github.com/luthien-control/core/internal/streams"
	"github.com/luthien-control/core/internal/tracing"
	"github.com/luthien-control/core/internal/transaction"
	"github.com/luthien-control/core/internal/xregexp"
)

// HostRequest is the decoded inbound request the host hands the
// orchestrator (spec §6 Host contract).
type HostRequest struct {
	Method      string
	Path        string
	Headers     map[string][]string
	QueryParams map[string][]string
	Body        []byte
	ClientMeta  map[string]string
}

// HostResponse is what the orchestrator hands back. Exactly one of Body /
// Stream is populated (spec §6): a buffered body, or an SSE frame stream
// the host copies verbatim to the client as each frame is produced.
type HostResponse struct {
	Status  int
	Headers map[string][]string
	Body    []byte
	Stream  streams.Stream[[]byte]
}

// hopByHopPattern matches the header names stripped from every
// raw-passthrough response per spec §4.8 step 7; anything else is forwarded
// unchanged. Matching goes through xregexp rather than a plain map so an
// operator-configurable deny-list (wildcards included, e.g. "X-Internal-*")
// can be substituted later without changing filterHopByHop's shape.
const hopByHopPattern = `(?:Connection|Keep-Alive|Transfer-Encoding|Proxy-Authenticate|Proxy-Authorization|Te|Trailers|Upgrade|Content-Length)`

// Orchestrator holds the fixed, per-process pieces the control loop needs:
// the root policy (already loaded by C6 from file or DB) and the
// dependency container every policy's Apply receives.
type Orchestrator struct {
	Root      policy.ControlPolicy
	Container *policy.Container
}

func New(root policy.ControlPolicy, container *policy.Container) *Orchestrator {
	return &Orchestrator{Root: root, Container: container}
}

// Handle runs the full control loop for one inbound request (spec §4.8).
func (o *Orchestrator) Handle(ctx context.Context, req *HostRequest) *HostResponse {
	tx, decodeErr := decodeTransaction(req)
	if decodeErr != nil {
		return errorResponse("", 400, decodeErr.Error())
	}

	ctx = tracing.WithTransactionID(ctx, tx.ID())

	ctx, span := tracing.StartSpan(ctx, "orchestrator.Handle")
	defer span.End()

	log.Info(ctx, "transaction started", log.String("request_type", string(tx.RequestType())))

	result, err := o.Root.Apply(ctx, tx, o.Container)
	if err != nil {
		return o.handleError(ctx, tx.ID(), err)
	}

	return o.buildResponse(ctx, result)
}

func (o *Orchestrator) handleError(ctx context.Context, transactionID string, err error) *HostResponse {
	if cpErr, ok := err.(*policy.ControlPolicyError); ok {
		status := cpErr.StatusCode
		if status == 0 {
			status = 500
		}

		log.Warn(ctx, "policy error", log.String("policy", cpErr.PolicyName), log.Int("status", status), log.Cause(err))

		return errorResponse(transactionID, status, cpErr.Detail)
	}

	log.Error(ctx, "unhandled error in policy pipeline", log.Cause(err))

	return errorResponse(transactionID, 500, "internal error processing transaction "+transactionID)
}

func errorResponse(transactionID string, status int, detail string) *HostResponse {
	body, _ := json.Marshal(map[string]any{
		"error": map[string]any{
			"message":        detail,
			"transaction_id": transactionID,
		},
	})

	return &HostResponse{
		Status:  status,
		Headers: map[string][]string{"Content-Type": {"application/json"}},
		Body:    body,
	}
}

func decodeTransaction(req *HostRequest) (*transaction.Transaction, error) {
	if looksLikeChatCompletion(req) {
		var payload chatapi.Request
		if err := json.Unmarshal(req.Body, &payload); err == nil && payload.Model != "" && len(payload.Messages) > 0 {
			tx := transaction.NewFromOpenAIRequest(&transaction.OpenAIRequest{Payload: &payload})
			if token := bearerFromHeaders(req.Headers); token != "" {
				tx.SetData("client_bearer_token", token)
			}

			return tx, nil
		}
	}

	return transaction.NewFromRawRequest(&transaction.RawRequest{
		Method:  req.Method,
		Path:    req.Path,
		Headers: req.Headers,
		Body:    req.Body,
		APIKey:  bearerFromHeaders(req.Headers),
	}), nil
}

func looksLikeChatCompletion(req *HostRequest) bool {
	return req.Method == "POST" && len(req.Body) > 0 && strings.HasSuffix(req.Path, "/chat/completions")
}

func bearerFromHeaders(headers map[string][]string) string {
	for key, values := range headers {
		if !strings.EqualFold(key, "Authorization") {
			continue
		}

		for _, v := range values {
			if after, ok := strings.CutPrefix(v, "Bearer "); ok {
				return strings.TrimSpace(after)
			}

			return v
		}
	}

	return ""
}

func (o *Orchestrator) buildResponse(ctx context.Context, tx *transaction.Transaction) *HostResponse {
	if resp := tx.OpenAIResponse(); resp != nil {
		return buildOpenAIResponse(ctx, resp)
	}

	if resp := tx.RawResponse(); resp != nil {
		return buildRawResponse(resp)
	}

	return errorResponse(tx.ID(), 500, "policy pipeline produced no response")
}

func buildOpenAIResponse(ctx context.Context, resp *transaction.OpenAIResponse) *HostResponse {
	if resp.IsStreaming() {
		return &HostResponse{
			Status:  200,
			Headers: sseHeaders(),
			Stream:  sseFrameOpenAIStream(ctx, resp.StreamingIterator),
		}
	}

	body, err := json.Marshal(resp.Payload)
	if err != nil {
		return errorResponse("", 500, "failed to encode response")
	}

	return &HostResponse{
		Status:  200,
		Headers: map[string][]string{"Content-Type": {"application/json"}},
		Body:    body,
	}
}

func buildRawResponse(resp *transaction.RawResponse) *HostResponse {
	status := resp.StatusCode
	if status == 0 {
		status = 200
	}

	headers := filterHopByHop(resp.Headers)

	if resp.IsStreaming() {
		return &HostResponse{Status: status, Headers: sseHeaders(), Stream: resp.StreamingIterator}
	}

	return &HostResponse{Status: status, Headers: headers, Body: resp.Body}
}

func sseHeaders() map[string][]string {
	return map[string][]string{
		"Content-Type":      {"text/event-stream"},
		"Cache-Control":     {"no-cache"},
		"Connection":        {"keep-alive"},
		"X-Accel-Buffering": {"no"},
	}
}

func filterHopByHop(headers map[string][]string) map[string][]string {
	out := make(map[string][]string, len(headers))

	for k, v := range headers {
		if xregexp.MatchString(hopByHopPattern, k) {
			continue
		}

		out[k] = v
	}

	return out
}

// sseFrameOpenAIStream wraps an OpenAI chunk stream into a stream of
// already-framed SSE byte blocks: one "data: <json>\n\n" frame per chunk, a
// trailing "data: [DONE]\n\n" sentinel (spec §9 Open Questions — this
// implementation emits one), and a mid-stream "event: error" frame if the
// source ends in error.
func sseFrameOpenAIStream(ctx context.Context, source streams.Stream[*chatapi.Response]) streams.Stream[[]byte] {
	return &sseFramer{ctx: ctx, source: source}
}

type sseFramer struct {
	ctx    context.Context
	source streams.Stream[*chatapi.Response]

	current []byte
	done    bool
	errored bool
}

func (s *sseFramer) Next() bool {
	if s.done {
		return false
	}

	if !s.source.Next() {
		if err := s.source.Err(); err != nil {
			log.Warn(s.ctx, "stream error mid-response", log.Cause(err))
			s.current = sse.ErrorFrame("upstream_stream_error")
			s.errored = true
			s.done = true

			return true
		}

		s.current = sse.Frame("", chatapi.DoneStreamEvent)
		s.done = true

		return true
	}

	payload, err := json.Marshal(s.source.Current())
	if err != nil {
		s.current = sse.ErrorFrame("encode_error")
		s.errored = true
		s.done = true

		return true
	}

	s.current = sse.Frame("", payload)

	return true
}

func (s *sseFramer) Current() []byte { return s.current }

func (s *sseFramer) Err() error {
	if s.errored {
		return s.source.Err()
	}

	return nil
}

func (s *sseFramer) Close() error { return s.source.Close() }
