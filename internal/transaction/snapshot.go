package transaction

// Snapshot renders the transaction as a plain map for path resolution (C2)
// and for the logging policy's redacted dump (C7). It never includes the
// streaming iterator itself (not serializable) — only a marker that one is
// present, matching the spec's "no materialized body" invariant (I4) for a
// streaming response.
func (t *Transaction) Snapshot() map[string]any {
	out := map[string]any{
		"transaction_id": t.id,
		"request_type":   string(t.RequestType()),
		"data":           t.Data(),
	}

	if t.openaiRequest != nil {
		out["request"] = map[string]any{
			"api_endpoint": t.openaiRequest.APIEndpoint,
			"api_key":      t.openaiRequest.APIKey,
			"payload":      t.openaiRequest.Payload,
		}
	}

	if t.rawRequest != nil {
		out["request"] = map[string]any{
			"method":      t.rawRequest.Method,
			"path":        t.rawRequest.Path,
			"headers":     t.rawRequest.Headers,
			"body":        t.rawRequest.Body,
			"api_key":     t.rawRequest.APIKey,
			"backend_url": t.rawRequest.BackendURL,
		}
	}

	if t.openaiResponse != nil {
		resp := map[string]any{
			"is_streaming": t.openaiResponse.IsStreaming(),
		}
		if !t.openaiResponse.IsStreaming() {
			resp["payload"] = t.openaiResponse.Payload
		}

		out["response"] = resp
	}

	if t.rawResponse != nil {
		resp := map[string]any{
			"is_streaming": t.rawResponse.IsStreaming(),
			"status_code":  t.rawResponse.StatusCode,
			"headers":      t.rawResponse.Headers,
		}
		if !t.rawResponse.IsStreaming() {
			resp["body"] = t.rawResponse.Body
		}

		out["response"] = resp
	}

	return out
}
