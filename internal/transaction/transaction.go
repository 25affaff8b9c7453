// Package transaction implements the per-request state object threaded
// through the policy pipeline (spec §3, §4.1): the Transaction.
package transaction

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/luthien-control/core/internal/chatapi"
	"github.com/luthien-control/core/internal/streams"
)

// RequestType discriminates the two mutually-exclusive request shapes a
// Transaction can carry (I3).
type RequestType string

const (
	RequestTypeOpenAIChat     RequestType = "openai_chat"
	RequestTypeRawPassthrough RequestType = "raw_passthrough"
)

// OpenAIRequest bundles a structured chat-completions request with the
// upstream target it should be sent to.
type OpenAIRequest struct {
	Payload     *chatapi.Request
	APIEndpoint string
	APIKey      string
}

// RawRequest is an opaque HTTP request the proxy passes through largely
// unparsed.
type RawRequest struct {
	Method     string
	Path       string
	Headers    map[string][]string
	Body       []byte
	APIKey     string
	BackendURL string // optional override of the settings-configured backend
}

// OpenAIResponse mirrors OpenAIRequest's shape on the response side. Exactly
// one of Payload / StreamingIterator is set (I4).
type OpenAIResponse struct {
	Payload           *chatapi.Response
	StreamingIterator streams.Stream[*chatapi.Response]
}

func (r *OpenAIResponse) IsStreaming() bool {
	return r != nil && r.StreamingIterator != nil
}

// RawResponse mirrors RawRequest's shape on the response side.
type RawResponse struct {
	StatusCode        int
	Headers           map[string][]string
	Body              []byte
	StreamingIterator streams.Stream[[]byte]
}

func (r *RawResponse) IsStreaming() bool {
	return r != nil && r.StreamingIterator != nil
}

// Transaction is the universe a policy sees: exactly one request variant,
// optionally one response variant, plus a side-channel data map for
// policy-to-policy communication (spec §3).
//
// A Transaction is not safe for concurrent mutation (§5): it is handed to
// exactly one policy at a time, in sequence, by the orchestrator.
type Transaction struct {
	id        string
	createdAt time.Time

	openaiRequest *OpenAIRequest
	rawRequest    *RawRequest

	openaiResponse *OpenAIResponse
	rawResponse    *RawResponse

	data map[string]any

	mu        sync.Mutex
	observers []func()
}

// NewFromOpenAIRequest constructs a Transaction whose request variant is an
// OpenAI chat-completions request (I1).
func NewFromOpenAIRequest(req *OpenAIRequest) *Transaction {
	if req == nil {
		panic("transaction: NewFromOpenAIRequest requires a non-nil request")
	}

	return &Transaction{
		id:            uuid.New().String(),
		createdAt:     time.Now(),
		openaiRequest: req,
		data:          make(map[string]any),
	}
}

// NewFromRawRequest constructs a Transaction whose request variant is an
// opaque raw HTTP request (I1).
func NewFromRawRequest(req *RawRequest) *Transaction {
	if req == nil {
		panic("transaction: NewFromRawRequest requires a non-nil request")
	}

	return &Transaction{
		id:         uuid.New().String(),
		createdAt:  time.Now(),
		rawRequest: req,
		data:       make(map[string]any),
	}
}

func (t *Transaction) ID() string { return t.id }

func (t *Transaction) CreatedAt() time.Time { return t.createdAt }

// RequestType returns the derived request-variant tag (I3).
func (t *Transaction) RequestType() RequestType {
	if t.openaiRequest != nil {
		return RequestTypeOpenAIChat
	}

	return RequestTypeRawPassthrough
}

func (t *Transaction) OpenAIRequest() *OpenAIRequest { return t.openaiRequest }

func (t *Transaction) RawRequest() *RawRequest { return t.rawRequest }

func (t *Transaction) OpenAIResponse() *OpenAIResponse { return t.openaiResponse }

func (t *Transaction) RawResponse() *RawResponse { return t.rawResponse }

// SetOpenAIResponse installs the response (buffered or streaming) and
// notifies observers. It is a programmer error to call this on a
// raw-request transaction.
func (t *Transaction) SetOpenAIResponse(resp *OpenAIResponse) {
	if t.openaiRequest == nil {
		panic("transaction: SetOpenAIResponse called on a raw-request transaction")
	}

	t.openaiResponse = resp
	t.notifyChanged()
}

// SetRawResponse installs the response and notifies observers. It is a
// programmer error to call this on an openai-request transaction.
func (t *Transaction) SetRawResponse(resp *RawResponse) {
	if t.rawRequest == nil {
		panic("transaction: SetRawResponse called on an openai-request transaction")
	}

	t.rawResponse = resp
	t.notifyChanged()
}

// IsStreaming reports whether the transaction currently carries a streaming
// response (I2).
func (t *Transaction) IsStreaming() bool {
	if t.openaiResponse != nil {
		return t.openaiResponse.IsStreaming()
	}

	if t.rawResponse != nil {
		return t.rawResponse.IsStreaming()
	}

	return false
}

// HasResponse reports whether any response variant has been set yet.
func (t *Transaction) HasResponse() bool {
	return t.openaiResponse != nil || t.rawResponse != nil
}

// Data returns the mutable side-channel map. Callers that mutate it should
// call NotifyChanged (or use SetData) so observers see the change, per the
// deep-evented model (spec §3 Change notification).
func (t *Transaction) Data() map[string]any {
	if t.data == nil {
		t.data = make(map[string]any)
	}

	return t.data
}

// SetData sets data[key] = value and notifies observers in one call — the
// normal way policies should write side-channel state.
func (t *Transaction) SetData(key string, value any) {
	t.Data()[key] = value
	t.notifyChanged()
}

func (t *Transaction) GetData(key string) (any, bool) {
	v, ok := t.Data()[key]
	return v, ok
}

// OnChanged registers an observer invoked (synchronously, on the mutating
// goroutine) whenever the transaction's request/response/data is mutated
// through the Set* methods. This realizes the "deeply evented" model (spec
// §3) as the explicit-observer option from Design Notes §9, chosen because
// the only built-in consumer (TransactionContextLogging) doesn't mutate the
// transaction, so a full recursive wrapper-type tree would pay structural
// cost nothing in this repository actually needs; a future policy that must
// observe field-level writes registers here instead.
func (t *Transaction) OnChanged(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.observers = append(t.observers, fn)
}

// NotifyChanged publishes the "changed" signal, for callers that mutate the
// request/response payload fields directly (e.g. ModelNameReplacement
// editing request.Payload.Model) rather than through a Transaction setter.
func (t *Transaction) NotifyChanged() { t.notifyChanged() }

func (t *Transaction) notifyChanged() {
	t.mu.Lock()
	observers := t.observers
	t.mu.Unlock()

	for _, fn := range observers {
		fn()
	}
}
