package hiveagent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// RecordedRequest is a request seen by the mock service
type RecordedRequest struct {
	Method      string
	Path        string // relative to the version prefix, e.g. "/chat"
	RawQuery    string
	ContentType string
	Body        []byte
}

// Multipart parses the recorded body as a multipart form
func (r RecordedRequest) Multipart() (*multipart.Form, error) {
	mediaType, params, err := mime.ParseMediaType(r.ContentType)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return nil, fmt.Errorf("not a multipart request: %s", mediaType)
	}
	return multipart.NewReader(bytes.NewReader(r.Body), params["boundary"]).ReadForm(32 << 20)
}

type mockFailure struct {
	status int
	body   string
}

type mockTable struct {
	columns Columns
	rows    map[int]Row
	nextID  int
}

// MockHiveAgentService is an in-memory Hive Agent server implementing the
// whole wire contract under /{version}. It is meant for tests.
type MockHiveAgentService struct {
	*httptest.Server
	t       *testing.T
	logger  Logger
	version string

	mu       sync.Mutex
	requests []RecordedRequest
	failures map[string]mockFailure
	chats    map[string]map[string][]map[string]any
	entries  map[string][]Entry
	tables   map[string]*mockTable
	files    []string
	tools    []ToolDescriptor
	streams  int
}

// NewMockHiveAgentService starts a mock server; it is closed when the test ends.
func NewMockHiveAgentService(t *testing.T, logger Logger) *MockHiveAgentService {
	t.Helper()

	if logger == nil {
		logger = NewLogger(LogLevelError)
	}

	m := &MockHiveAgentService{
		t:        t,
		logger:   logger,
		version:  DefaultAPIVersion,
		failures: make(map[string]mockFailure),
		chats:    make(map[string]map[string][]map[string]any),
		entries:  make(map[string][]Entry),
		tables:   make(map[string]*mockTable),
	}
	m.Server = httptest.NewServer(m.routes())
	t.Cleanup(m.Server.Close)
	return m
}

func (m *MockHiveAgentService) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(m.record)

	r.Route("/"+m.version, func(r chi.Router) {
		r.Post(ChatEndpoint, m.handleChat)
		r.Post(LegacyChatEndpoint, m.handleChat)
		r.Get(ChatHistoryEndpoint, m.handleChatHistory)
		r.Get(AllChatsEndpoint, m.handleAllChats)

		r.Route(EntryEndpoint+"/{namespace}", func(r chi.Router) {
			r.Post("/", m.handleCreateEntry)
			r.Get("/", m.handleListEntries)
			r.Get("/stream", m.handleStreamEntries)
			r.Get("/{entryID}", m.handleGetEntry)
			r.Put("/{entryID}", m.handleUpdateEntry)
			r.Delete("/{entryID}", m.handleDeleteEntry)
		})

		r.Post(CreateTableEndpoint, m.handleCreateTable)
		r.Post(InsertDataEndpoint, m.handleInsertData)
		r.Post(ReadDataEndpoint, m.handleReadData)
		r.Put(UpdateDataEndpoint, m.handleUpdateData)
		r.Delete(DeleteDataEndpoint, m.handleDeleteData)

		r.Post(UploadFilesEndpoint, m.handleUploadFiles)
		r.Get(FilesEndpoint, m.handleListFiles)
		r.Delete(FilesEndpoint+"{filename}", m.handleDeleteFile)
		r.Put(FilesEndpoint+"{oldName}/{newName}", m.handleRenameFile)

		r.Post(InstallToolsEndpoint, m.handleInstallTools)
		r.Get(SamplePromptsEndpoint, m.handleSamplePrompts)
	})

	return r
}

// record stores every request and applies injected failures
func (m *MockHiveAgentService) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		path := strings.TrimPrefix(r.URL.Path, "/"+m.version)
		m.mu.Lock()
		m.requests = append(m.requests, RecordedRequest{
			Method:      r.Method,
			Path:        path,
			RawQuery:    r.URL.RawQuery,
			ContentType: r.Header.Get("Content-Type"),
			Body:        body,
		})
		failure, fail := m.failures[r.Method+" "+path]
		m.mu.Unlock()

		m.logger.Debug("Mock server: %s %s", r.Method, r.URL.String())
		if fail {
			w.WriteHeader(failure.status)
			_, _ = w.Write([]byte(failure.body))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// FailWith makes every request matching method and path (relative to the
// version prefix) answer with status and body.
func (m *MockHiveAgentService) FailWith(method, path string, status int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[method+" "+path] = mockFailure{status: status, body: body}
}

// Requests returns a copy of the recorded requests
func (m *MockHiveAgentService) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]RecordedRequest, len(m.requests))
	copy(result, m.requests)
	return result
}

// StreamConnections returns how many entry stream WebSockets were accepted
func (m *MockHiveAgentService) StreamConnections() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streams
}

// StoredFiles returns the names of the uploaded files
func (m *MockHiveAgentService) StoredFiles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]string, len(m.files))
	copy(result, m.files)
	return result
}

// InstalledTools returns the tools posted to install_tools
func (m *MockHiveAgentService) InstalledTools() []ToolDescriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]ToolDescriptor, len(m.tools))
	copy(result, m.tools)
	return result
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]any{"detail": fmt.Sprintf(format, args...)})
}

func (m *MockHiveAgentService) handleChat(w http.ResponseWriter, r *http.Request) {
	var userID, sessionID string
	var data ChatData

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeDetail(w, http.StatusBadRequest, "invalid form: %v", err)
			return
		}
		userID = r.FormValue("user_id")
		sessionID = r.FormValue("session_id")
		if err := json.Unmarshal([]byte(r.FormValue("chat_data")), &data); err != nil {
			writeDetail(w, http.StatusBadRequest, "invalid chat_data: %v", err)
			return
		}
	} else {
		var body struct {
			UserID    string        `json:"user_id"`
			SessionID string        `json:"session_id"`
			ChatData  *ChatData     `json:"chat_data"`
			Messages  []ChatMessage `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeDetail(w, http.StatusBadRequest, "invalid body: %v", err)
			return
		}
		userID, sessionID = body.UserID, body.SessionID
		data.Messages = body.Messages
		if body.ChatData != nil {
			data.Messages = body.ChatData.Messages
		}
	}

	if len(data.Messages) == 0 {
		writeDetail(w, http.StatusBadRequest, "no messages")
		return
	}

	content := data.Messages[len(data.Messages)-1].Content
	reply := "Echo: " + content

	m.mu.Lock()
	sessions, ok := m.chats[userID]
	if !ok {
		sessions = make(map[string][]map[string]any)
		m.chats[userID] = sessions
	}
	sessions[sessionID] = append(sessions[sessionID],
		map[string]any{"role": "user", "content": content},
		map[string]any{"role": "assistant", "content": reply},
	)
	m.mu.Unlock()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(reply))
}

func (m *MockHiveAgentService) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	sessionID := r.URL.Query().Get("session_id")

	m.mu.Lock()
	history := append([]map[string]any{}, m.chats[userID][sessionID]...)
	m.mu.Unlock()

	writeJSON(w, http.StatusOK, history)
}

func (m *MockHiveAgentService) handleAllChats(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")

	m.mu.Lock()
	all := make(map[string][]map[string]any, len(m.chats[userID]))
	for session, messages := range m.chats[userID] {
		all[session] = append([]map[string]any{}, messages...)
	}
	m.mu.Unlock()

	writeJSON(w, http.StatusOK, all)
}

// newEntry stores data (an object, or any value wrapped under "data") with a fresh id
func (m *MockHiveAgentService) newEntry(namespace string, data any) Entry {
	entry := Entry{}
	if obj, ok := data.(map[string]any); ok {
		for k, v := range obj {
			entry[k] = v
		}
	} else {
		entry["data"] = data
	}
	entry["id"] = uuid.NewString()

	m.mu.Lock()
	m.entries[namespace] = append(m.entries[namespace], entry)
	m.mu.Unlock()
	return entry
}

func (m *MockHiveAgentService) findEntry(namespace, id string) int {
	for i, e := range m.entries[namespace] {
		if e["id"] == id {
			return i
		}
	}
	return -1
}

func (m *MockHiveAgentService) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var data any
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid body: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, m.newEntry(chi.URLParam(r, "namespace"), data))
}

func (m *MockHiveAgentService) handleListEntries(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	entries := append([]Entry{}, m.entries[chi.URLParam(r, "namespace")]...)
	m.mu.Unlock()
	writeJSON(w, http.StatusOK, entries)
}

func (m *MockHiveAgentService) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	namespace, id := chi.URLParam(r, "namespace"), chi.URLParam(r, "entryID")

	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.findEntry(namespace, id)
	if i < 0 {
		writeDetail(w, http.StatusNotFound, "Entry %s not found", id)
		return
	}
	writeJSON(w, http.StatusOK, m.entries[namespace][i])
}

func (m *MockHiveAgentService) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	namespace, id := chi.URLParam(r, "namespace"), chi.URLParam(r, "entryID")

	var data map[string]any
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid body: %v", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.findEntry(namespace, id)
	if i < 0 {
		writeDetail(w, http.StatusNotFound, "Entry %s not found", id)
		return
	}
	updated := Entry{"id": id}
	for k, v := range data {
		if k != "id" {
			updated[k] = v
		}
	}
	m.entries[namespace][i] = updated
	writeJSON(w, http.StatusOK, updated)
}

func (m *MockHiveAgentService) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	namespace, id := chi.URLParam(r, "namespace"), chi.URLParam(r, "entryID")

	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.findEntry(namespace, id)
	if i < 0 {
		writeDetail(w, http.StatusNotFound, "Entry %s not found", id)
		return
	}
	m.entries[namespace] = append(m.entries[namespace][:i], m.entries[namespace][i+1:]...)
	writeJSON(w, http.StatusOK, map[string]any{"message": fmt.Sprintf("Entry %s deleted", id)})
}

// handleStreamEntries stores every received frame as an entry and answers
// with the created entry, one frame per frame.
func (m *MockHiveAgentService) handleStreamEntries(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.t.Logf("Mock server: failed to upgrade connection: %v", err)
		return
	}
	defer conn.Close()

	m.mu.Lock()
	m.streams++
	m.mu.Unlock()

	for {
		var data any
		if err := conn.ReadJSON(&data); err != nil {
			m.logger.Debug("Mock server: stream for %s closed: %v", namespace, err)
			return
		}
		if err := conn.WriteJSON(m.newEntry(namespace, data)); err != nil {
			m.logger.Warn("Mock server: failed to write stream response: %v", err)
			return
		}
	}
}

func (m *MockHiveAgentService) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	var req createTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TableName == "" {
		writeDetail(w, http.StatusBadRequest, "invalid body")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tables[req.TableName]; exists {
		writeDetail(w, http.StatusBadRequest, "Table %s already exists", req.TableName)
		return
	}
	m.tables[req.TableName] = &mockTable{columns: req.Columns, rows: make(map[int]Row), nextID: 1}
	writeJSON(w, http.StatusOK, map[string]any{"message": fmt.Sprintf("Table %s created successfully.", req.TableName)})
}

func (m *MockHiveAgentService) handleInsertData(w http.ResponseWriter, r *http.Request) {
	var req insertDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid body: %v", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	table, ok := m.tables[req.TableName]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Table %s not found", req.TableName)
		return
	}
	id := table.nextID
	table.nextID++
	table.rows[id] = req.Data
	writeJSON(w, http.StatusOK, map[string]any{"message": "Data inserted successfully.", "id": id})
}

func (m *MockHiveAgentService) handleReadData(w http.ResponseWriter, r *http.Request) {
	var req readDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid body: %v", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	table, ok := m.tables[req.TableName]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Table %s not found", req.TableName)
		return
	}

	ids := make([]int, 0, len(table.rows))
	for id := range table.rows {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	rows := []Row{}
	for _, id := range ids {
		if !matchesFilters(table.rows[id], req.Filters) {
			continue
		}
		row := Row{"id": id}
		for k, v := range table.rows[id] {
			row[k] = v
		}
		rows = append(rows, row)
	}
	writeJSON(w, http.StatusOK, rows)
}

func matchesFilters(row Row, filters Filters) bool {
	for column, accepted := range filters {
		found := false
		for _, v := range accepted {
			if fmt.Sprint(row[column]) == fmt.Sprint(v) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (m *MockHiveAgentService) handleUpdateData(w http.ResponseWriter, r *http.Request) {
	var req updateDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid body: %v", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	table, ok := m.tables[req.TableName]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Table %s not found", req.TableName)
		return
	}
	if _, exists := table.rows[req.ID]; !exists {
		writeDetail(w, http.StatusNotFound, "Row %d not found in %s", req.ID, req.TableName)
		return
	}
	table.rows[req.ID] = req.Data
	writeJSON(w, http.StatusOK, map[string]any{"message": "Data updated successfully."})
}

func (m *MockHiveAgentService) handleDeleteData(w http.ResponseWriter, r *http.Request) {
	var req deleteDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid body: %v", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	table, ok := m.tables[req.TableName]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Table %s not found", req.TableName)
		return
	}
	if _, exists := table.rows[req.ID]; !exists {
		writeDetail(w, http.StatusNotFound, "Row %d not found in %s", req.ID, req.TableName)
		return
	}
	delete(table.rows, req.ID)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Data deleted successfully."})
}

func (m *MockHiveAgentService) handleUploadFiles(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid form: %v", err)
		return
	}

	uploaded := []string{}
	for _, fh := range r.MultipartForm.File[defaultFileFieldName] {
		uploaded = append(uploaded, fh.Filename)
	}

	m.mu.Lock()
	m.files = append(m.files, uploaded...)
	m.mu.Unlock()

	writeJSON(w, http.StatusOK, UploadResult{Uploaded: uploaded})
}

func (m *MockHiveAgentService) handleListFiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, FileList{Files: m.StoredFiles()})
}

func (m *MockHiveAgentService) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, f := range m.files {
		if f == filename {
			m.files = append(m.files[:i], m.files[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]any{"message": fmt.Sprintf("File %s deleted successfully.", filename)})
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "File %s not found", filename)
}

func (m *MockHiveAgentService) handleRenameFile(w http.ResponseWriter, r *http.Request) {
	oldName, newName := chi.URLParam(r, "oldName"), chi.URLParam(r, "newName")

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, f := range m.files {
		if f == oldName {
			m.files[i] = newName
			writeJSON(w, http.StatusOK, map[string]any{
				"message": fmt.Sprintf("File %s renamed to %s successfully.", oldName, newName),
			})
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "File %s not found", oldName)
}

func (m *MockHiveAgentService) handleInstallTools(w http.ResponseWriter, r *http.Request) {
	var tools []ToolDescriptor
	if err := json.NewDecoder(r.Body).Decode(&tools); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid body: %v", err)
		return
	}

	m.mu.Lock()
	m.tools = append(m.tools, tools...)
	m.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"message": "Tools installed successfully.", "installed": len(tools)})
}

func (m *MockHiveAgentService) handleSamplePrompts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"prompts": []string{"What can you do?", "Summarize my uploaded files."},
	})
}
