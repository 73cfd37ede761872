package hiveagent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// SendChatMessage sends one user message to the chat endpoint and returns the
// raw response text.
//
// Without attachments the message goes out as a JSON body; with attachments
// it is sent as a multipart form with user_id, session_id and chat_data fields
// plus one "files" part per attachment. LocalPath attachments are opened here
// and closed before returning, OpenStream attachments are left open. The
// legacy endpoint only accepts JSON, so attachments there are rejected.
func SendChatMessage(ctx context.Context, t *Transport, baseURL string, req ChatRequest) (string, error) {
	const op = "send message to the chat API"

	if strings.TrimSpace(req.Content) == "" {
		return "", wrapOpError(op, &ValidationError{Field: "content", Reason: "must not be empty"})
	}

	endpoint := req.Endpoint
	if endpoint == "" {
		endpoint = ChatEndpoint
	}
	if len(req.Files) > 0 && endpoint == LegacyChatEndpoint {
		return "", wrapOpError(op, &ValidationError{
			Field:  "files",
			Reason: fmt.Sprintf("attachments are not accepted by %s, use %s", LegacyChatEndpoint, ChatEndpoint),
		})
	}
	target := joinURL(baseURL, endpoint)
	chatData := ChatData{Messages: []ChatMessage{{Role: "user", Content: req.Content}}}

	if len(req.Files) == 0 {
		var payload any = chatData
		if req.UserID != "" || req.SessionID != "" {
			payload = chatEnvelope{UserID: req.UserID, SessionID: req.SessionID, ChatData: chatData}
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return "", wrapOpError(op, &UnexpectedError{Err: err})
		}
		t.logger.Debug("Sending chat message to %s", target)
		body, err := t.do(ctx, apiRequest{
			method:      http.MethodPost,
			url:         target,
			body:        bytes.NewReader(data),
			contentType: "application/json",
		})
		if err != nil {
			return "", wrapOpError(op, err)
		}
		t.logger.Debug("Response from chat message %q: %s", req.Content, string(body))
		return string(body), nil
	}

	chatDataJSON, err := json.Marshal(chatData)
	if err != nil {
		return "", wrapOpError(op, &UnexpectedError{Err: err})
	}
	body, err := postChatForm(ctx, t, target, req.UserID, req.SessionID, string(chatDataJSON), req.Files)
	if err != nil {
		return "", wrapOpError(op, err)
	}
	return body, nil
}

// SendChatMedia posts a pre-serialized chat_data JSON string together with at
// least one attachment.
func SendChatMedia(ctx context.Context, t *Transport, baseURL, userID, sessionID, chatData string, files []ChatFile) (string, error) {
	const op = "send media to the chat API"

	if strings.TrimSpace(chatData) == "" {
		return "", wrapOpError(op, &ValidationError{Field: "chat_data", Reason: "must not be empty"})
	}
	if len(files) == 0 {
		return "", wrapOpError(op, &ValidationError{Field: "files", Reason: "at least one file is required"})
	}

	body, err := postChatForm(ctx, t, joinURL(baseURL, ChatEndpoint), userID, sessionID, chatData, files)
	if err != nil {
		return "", wrapOpError(op, err)
	}
	return body, nil
}

func postChatForm(ctx context.Context, t *Transport, target, userID, sessionID, chatData string, files []ChatFile) (string, error) {
	opened, release, err := openChatFiles(files)
	defer release()
	if err != nil {
		return "", err
	}

	fields := []formField{
		{name: "user_id", value: userID},
		{name: "session_id", value: sessionID},
		{name: "chat_data", value: chatData},
	}
	form, contentType, err := buildMultipart(fields, opened)
	if err != nil {
		return "", &UnexpectedError{Err: err}
	}

	t.logger.Debug("Sending chat form with %d file(s) to %s", len(opened), target)
	body, err := t.do(ctx, apiRequest{
		method:      http.MethodPost,
		url:         target,
		body:        form,
		contentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// GetChatHistory returns the messages of one session, as sent by the server.
// Items are usually objects with role and content but are not required to be.
func GetChatHistory(ctx context.Context, t *Transport, baseURL, userID, sessionID string) ([]any, error) {
	query := url.Values{}
	query.Set("user_id", userID)
	query.Set("session_id", sessionID)

	var history []any
	if err := t.doJSON(ctx, http.MethodGet, joinURL(baseURL, ChatHistoryEndpoint), query, nil, &history); err != nil {
		return nil, wrapOpError("fetch chat history from the chat API", err)
	}
	t.logger.Debug("Chat history for user %s and session %s: %d message(s)", userID, sessionID, len(history))
	return history, nil
}

// GetAllChats returns every session of a user keyed by session id.
func GetAllChats(ctx context.Context, t *Transport, baseURL, userID string) (map[string]any, error) {
	query := url.Values{}
	query.Set("user_id", userID)

	var chats map[string]any
	if err := t.doJSON(ctx, http.MethodGet, joinURL(baseURL, AllChatsEndpoint), query, nil, &chats); err != nil {
		return nil, wrapOpError("fetch all chats from the chat API", err)
	}
	t.logger.Debug("All chats for user %s: %d session(s)", userID, len(chats))
	return chats, nil
}

// describeFiles is used for diagnostics only
func describeFiles(files []ChatFile) []string {
	names := make([]string, 0, len(files))
	for _, f := range files {
		switch v := f.(type) {
		case LocalPath:
			names = append(names, string(v))
		case OpenStream:
			names = append(names, v.Name)
		default:
			names = append(names, fmt.Sprintf("%T", f))
		}
	}
	return names
}
