// Package invocation holds the pure parts of calling a deployed agent: the
// well-known paths, session-protocol request envelopes, introspection parsing
// and event-stream line parsing.
// This is part of the Functional Core - all functions are pure with no I/O.
package invocation

import (
	"encoding/json"
	"net/url"
	"strings"
)

// Deployed service paths.
const (
	InvokePath   = "/invoke"
	A2APath      = "/"
	ListAppsPath = "/list-apps"
	RunSSEPath   = "/run_sse"
)

// DefaultUserID is used when the caller does not name a user.
const DefaultUserID = "agentkit_user"

// Protocol identifies how a deployed backend is invoked.
type Protocol string

const (
	ProtocolDirect  Protocol = "direct"  // POST /invoke
	ProtocolA2A     Protocol = "a2a"     // POST /
	ProtocolSession Protocol = "session" // list-apps + sessions + /run_sse
)

// SessionPath returns the session resource path for the triple.
//
// Example:
//
//	SessionPath("weather", "u1", "s1") // returns "/apps/weather/users/u1/sessions/s1"
func SessionPath(app, user, session string) string {
	return "/apps/" + url.PathEscape(app) + "/users/" + url.PathEscape(user) + "/sessions/" + url.PathEscape(session)
}

// =============================================================================
// Introspection
// =============================================================================

// ParseApps interprets a list-apps response. ok is true only when the body
// is structured like a session-oriented backend: a JSON list of names, or an
// object with an "apps" key.
func ParseApps(body []byte) (apps []string, ok bool) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, false
	}
	switch v := raw.(type) {
	case []any:
		return stringsOf(v), true
	case map[string]any:
		list, found := v["apps"]
		if !found {
			return nil, false
		}
		items, _ := list.([]any)
		return stringsOf(items), true
	default:
		return nil, false
	}
}

func stringsOf(items []any) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case map[string]any:
			if name, ok := v["name"].(string); ok {
				out = append(out, name)
			}
		}
	}
	return out
}

// ResolveAppName prefers agentName when the backend lists it, otherwise the
// first listed app, otherwise agentName.
func ResolveAppName(apps []string, agentName string) string {
	for _, a := range apps {
		if a == agentName {
			return a
		}
	}
	if len(apps) > 0 {
		return apps[0]
	}
	return agentName
}

// =============================================================================
// Envelopes
// =============================================================================

var promptKeys = []string{"prompt", "message", "input", "query"}

// ExtractPrompt returns the user text carried by payload: the first string
// under prompt, message, input or query, else the JSON text of the payload.
func ExtractPrompt(payload map[string]any) string {
	for _, k := range promptKeys {
		if s, ok := payload[k].(string); ok && s != "" {
			return s
		}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return string(b)
}

// RunSSERequest is the streaming request body of a session-oriented backend.
type RunSSERequest struct {
	AppName    string  `json:"appName"`
	UserID     string  `json:"userId"`
	SessionID  string  `json:"sessionId"`
	NewMessage Message `json:"newMessage"`
	Streaming  bool    `json:"streaming"`
}

// Message is one conversational turn.
type Message struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// Part is one piece of message content.
type Part struct {
	Text string `json:"text"`
}

// NewRunSSERequest builds the streaming envelope for payload.
func NewRunSSERequest(app, user, session string, payload map[string]any) RunSSERequest {
	return RunSSERequest{
		AppName:   app,
		UserID:    user,
		SessionID: session,
		NewMessage: Message{
			Role:  "user",
			Parts: []Part{{Text: ExtractPrompt(payload)}},
		},
		Streaming: true,
	}
}

// =============================================================================
// Event Stream Lines
// =============================================================================

// DataPrefix starts every data line of an event stream.
const DataPrefix = "data:"

// LineKind classifies one line of an event stream.
type LineKind int

const (
	LineSkip LineKind = iota // blank, comment or non-data field
	LineData                 // decoded event
	LineDone                 // end-of-stream marker
)

// ParseLine decodes one event stream line. Non-JSON data is wrapped as
// {"data": "<text>"}; an error is returned only when a data line starts a JSON
// value that fails to decode.
func ParseLine(line string) (map[string]any, LineKind, error) {
	line = strings.TrimRight(line, "\r")
	if !strings.HasPrefix(line, DataPrefix) {
		return nil, LineSkip, nil
	}
	data := strings.TrimSpace(strings.TrimPrefix(line, DataPrefix))
	switch {
	case data == "":
		return nil, LineSkip, nil
	case data == "[DONE]":
		return nil, LineDone, nil
	case strings.HasPrefix(data, "{"):
		var event map[string]any
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			return nil, LineSkip, err
		}
		return event, LineData, nil
	case strings.HasPrefix(data, "["), strings.HasPrefix(data, "\""):
		var v any
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			return nil, LineSkip, err
		}
		return map[string]any{"data": v}, LineData, nil
	default:
		return map[string]any{"data": data}, LineData, nil
	}
}

// LooksLikeStream reports whether a body that was not declared as an event
// stream nonetheless starts with a data line.
func LooksLikeStream(body []byte) bool {
	return strings.HasPrefix(strings.TrimLeft(string(body), " \t\r\n"), DataPrefix)
}

// IsStreamContentType reports whether a Content-Type header declares an
// event stream.
func IsStreamContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "text/event-stream")
}
