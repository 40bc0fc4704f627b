package apiclient

import (
	"bytes"
	"encoding/json"
)

// ResultKind tags the normalized shape of a submission response.
type ResultKind string

const (
	// ResultInline is a JSON object carrying no job id.
	ResultInline ResultKind = "inline"
	// ResultJob carries an async evaluation job id.
	ResultJob ResultKind = "job"
	// ResultEmpty is an empty, null or non-object body.
	ResultEmpty ResultKind = "empty"
)

// SubmitResult is the only shape exam variants ever see.
type SubmitResult struct {
	Kind  ResultKind
	JobID string
	Body  json.RawMessage
}

// Normalize collapses the response shapes the remote API is known to use.
// The job id is looked up at jobId, data.jobId and result.jobId.
func Normalize(body []byte) *SubmitResult {
	trimmed := bytes.TrimSpace(body)

	var obj map[string]json.RawMessage
	if len(trimmed) == 0 || json.Unmarshal(trimmed, &obj) != nil || obj == nil {
		return &SubmitResult{Kind: ResultEmpty, Body: json.RawMessage(trimmed)}
	}

	if id := jobIDOf(obj); id != "" {
		return &SubmitResult{Kind: ResultJob, JobID: id, Body: json.RawMessage(trimmed)}
	}
	for _, wrapper := range []string{"data", "result"} {
		raw, ok := obj[wrapper]
		if !ok {
			continue
		}
		var inner map[string]json.RawMessage
		if json.Unmarshal(raw, &inner) != nil {
			continue
		}
		if id := jobIDOf(inner); id != "" {
			return &SubmitResult{Kind: ResultJob, JobID: id, Body: json.RawMessage(trimmed)}
		}
	}

	return &SubmitResult{Kind: ResultInline, Body: json.RawMessage(trimmed)}
}

func jobIDOf(obj map[string]json.RawMessage) string {
	raw, ok := obj["jobId"]
	if !ok {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	// Numeric ids are accepted verbatim.
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}

// unwrapData returns body.data when the API wrapped its payload in a data
// envelope, else the body itself.
func unwrapData(body []byte) []byte {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if json.Unmarshal(body, &env) == nil && len(env.Data) > 0 && env.Data[0] == '{' {
		return env.Data
	}
	return body
}

func extractFileID(body []byte) string {
	var obj map[string]json.RawMessage
	if json.Unmarshal(unwrapData(body), &obj) != nil {
		return ""
	}
	for _, key := range []string{"fileId", "id"} {
		if raw, ok := obj[key]; ok {
			var s string
			if json.Unmarshal(raw, &s) == nil && s != "" {
				return s
			}
			var n json.Number
			if json.Unmarshal(raw, &n) == nil {
				return n.String()
			}
		}
	}
	return ""
}
