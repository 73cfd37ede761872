package hiveagent

import (
	"encoding/json"
	"fmt"
)

// ChatMessage is a single message in a chat payload
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatData is the message list sent to the chat endpoint, either as the JSON
// body or serialized into the chat_data form field.
type ChatData struct {
	Messages []ChatMessage `json:"messages"`
}

// ChatRequest describes one call to SendChatMessage. UserID and SessionID are
// optional; Endpoint defaults to ChatEndpoint.
type ChatRequest struct {
	UserID    string
	SessionID string
	Content   string
	Files     []ChatFile
	Endpoint  string
}

// chatEnvelope is the JSON body used when the request carries a user or session id
type chatEnvelope struct {
	UserID    string   `json:"user_id"`
	SessionID string   `json:"session_id"`
	ChatData  ChatData `json:"chat_data"`
}

// Entry is an opaque JSON record stored under a namespace
type Entry = map[string]any

// Columns maps a column name to its type name, e.g. {"name": "TEXT"}
type Columns map[string]string

// Row maps a column name to a value
type Row map[string]any

// Filters maps a column name to the set of accepted values
type Filters map[string][]any

type createTableRequest struct {
	TableName string  `json:"table_name"`
	Columns   Columns `json:"columns"`
}

type insertDataRequest struct {
	TableName string `json:"table_name"`
	Data      Row    `json:"data"`
}

type readDataRequest struct {
	TableName string  `json:"table_name"`
	Filters   Filters `json:"filters"`
}

type updateDataRequest struct {
	TableName string `json:"table_name"`
	ID        int    `json:"id"`
	Data      Row    `json:"data"`
}

type deleteDataRequest struct {
	TableName string `json:"table_name"`
	ID        int    `json:"id"`
}

// ToolDescriptor describes an installable function pack. Keys other than url
// and functions are kept in Extra and sent back unchanged.
type ToolDescriptor struct {
	URL       string
	Functions []string
	Extra     map[string]any
}

func (d ToolDescriptor) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Extra)+2)
	for k, v := range d.Extra {
		out[k] = v
	}
	out["url"] = d.URL
	out["functions"] = d.Functions
	return json.Marshal(out)
}

func (d *ToolDescriptor) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*d = ToolDescriptor{}
	for key, raw := range fields {
		var err error
		switch key {
		case "url":
			err = json.Unmarshal(raw, &d.URL)
		case "functions":
			err = json.Unmarshal(raw, &d.Functions)
		default:
			var v any
			if err = decodeBody(raw, &v); err == nil {
				if d.Extra == nil {
					d.Extra = make(map[string]any)
				}
				d.Extra[key] = v
			}
		}
		if err != nil {
			return fmt.Errorf("tool descriptor field %q: %w", key, err)
		}
	}
	return nil
}

// UploadResult is the server answer to UploadFiles. Response holds the whole
// decoded answer, fields the struct does not name included.
type UploadResult struct {
	Uploaded []string       `json:"uploaded"`
	Response map[string]any `json:"-"`
}

func (r UploadResult) MarshalJSON() ([]byte, error) {
	if r.Response != nil {
		return json.Marshal(r.Response)
	}
	type plain UploadResult
	return json.Marshal(plain(r))
}

// FileList is the server answer to ListFiles
type FileList struct {
	Files    []string       `json:"files"`
	Response map[string]any `json:"-"`
}

func (l FileList) MarshalJSON() ([]byte, error) {
	if l.Response != nil {
		return json.Marshal(l.Response)
	}
	type plain FileList
	return json.Marshal(plain(l))
}

// decodeFull decodes body into the typed answer and keeps the full object in
// response.
func decodeFull(body []byte, typed any, response *map[string]any) error {
	if err := decodeBody(body, typed); err != nil {
		return err
	}
	return decodeBody(body, response)
}
