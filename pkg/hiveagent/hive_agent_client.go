package hiveagent

import (
	"context"
	"encoding/json"
	"iter"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds the settings of a HiveAgentClient. Zero fields take the values
// of DefaultConfig.
type Config struct {
	BaseURL string
	Version string
	Timeout time.Duration
	// ChatPath selects the deployment's chat endpoint, ChatEndpoint or LegacyChatEndpoint
	ChatPath string
	// HTTPClient is optional; when set the client does not close it
	HTTPClient *http.Client
	Logger     Logger
}

// DefaultConfig returns the configuration used for unset Config fields
func DefaultConfig() Config {
	return Config{
		BaseURL:  DefaultBaseURL,
		Version:  DefaultAPIVersion,
		Timeout:  DefaultTimeout,
		ChatPath: ChatEndpoint,
	}
}

// HiveAgentClient represents a client for a Hive Agent's API
type HiveAgentClient struct {
	logger    Logger
	baseURL   string
	chatPath  string
	transport *Transport
	closeOnce sync.Once
	closed    atomic.Bool
}

// NewHiveAgentClient creates a new Hive Agent client
func NewHiveAgentClient(cfg Config) *HiveAgentClient {
	defaults := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.ChatPath == "" {
		cfg.ChatPath = defaults.ChatPath
	}
	if cfg.Logger == nil {
		cfg.Logger = NewLogger(LogLevelFromEnv(LogLevelError))
	}

	return &HiveAgentClient{
		logger:    cfg.Logger,
		baseURL:   normalizeBaseURL(cfg.BaseURL, cfg.Version),
		chatPath:  cfg.ChatPath,
		transport: NewTransport(cfg.HTTPClient, cfg.Timeout, cfg.Logger),
	}
}

// normalizeBaseURL strips trailing slashes and appends the version segment
func normalizeBaseURL(baseURL, version string) string {
	baseURL = strings.TrimRight(baseURL, "/")
	version = strings.Trim(version, "/")
	if version == "" {
		return baseURL
	}
	return baseURL + "/" + version
}

// BaseURL returns the normalized base URL every request path is appended to
func (c *HiveAgentClient) BaseURL() string {
	return c.baseURL
}

// Transport exposes the underlying transport for use with the package level
// functions.
func (c *HiveAgentClient) Transport() *Transport {
	return c.transport
}

// Close releases the transport. Further calls are no-ops and every other
// method returns ErrClientClosed afterwards.
func (c *HiveAgentClient) Close() error {
	c.closeOnce.Do(func() {
		c.logger.Debug("Closing HTTP client session...")
		c.closed.Store(true)
		c.transport.Close()
	})
	return nil
}

// invoke runs fn and wraps any failure in an OperationError
func invoke[T any](c *HiveAgentClient, op string, args map[string]any, fn func() (T, error)) (T, error) {
	var zero T
	if c.closed.Load() {
		return zero, &OperationError{Op: op, Args: args, Err: ErrClientClosed}
	}
	result, err := fn()
	if err != nil {
		c.logger.Error("Failed to %s %v: %v", op, args, err)
		return zero, &OperationError{Op: op, Args: args, Err: err}
	}
	return result, nil
}

// Chat sends a message to the chat endpoint and returns the raw response text.
// userID and sessionID may be empty for deployments without sessions.
func (c *HiveAgentClient) Chat(ctx context.Context, userID, sessionID, content string, files ...ChatFile) (string, error) {
	args := map[string]any{"content": content, "user_id": userID, "session_id": sessionID}
	if len(files) > 0 {
		args["files"] = describeFiles(files)
	}
	return invoke(c, "send chat message", args, func() (string, error) {
		c.logger.Debug("Sending message to chat endpoint: %s", content)
		return SendChatMessage(ctx, c.transport, c.baseURL, ChatRequest{
			UserID:    userID,
			SessionID: sessionID,
			Content:   content,
			Files:     files,
			Endpoint:  c.chatPath,
		})
	})
}

// ChatMedia sends a pre-serialized chat_data JSON string with attachments
func (c *HiveAgentClient) ChatMedia(ctx context.Context, userID, sessionID, chatData string, files ...ChatFile) (string, error) {
	args := map[string]any{"user_id": userID, "session_id": sessionID, "files": describeFiles(files)}
	return invoke(c, "send chat media", args, func() (string, error) {
		return SendChatMedia(ctx, c.transport, c.baseURL, userID, sessionID, chatData, files)
	})
}

// GetChatHistory retrieves the messages of one chat session
func (c *HiveAgentClient) GetChatHistory(ctx context.Context, userID, sessionID string) ([]any, error) {
	args := map[string]any{"user_id": userID, "session_id": sessionID}
	return invoke(c, "get chat history", args, func() ([]any, error) {
		return GetChatHistory(ctx, c.transport, c.baseURL, userID, sessionID)
	})
}

// GetAllChats retrieves every chat session of a user keyed by session id
func (c *HiveAgentClient) GetAllChats(ctx context.Context, userID string) (map[string]any, error) {
	return invoke(c, "get all chats", map[string]any{"user_id": userID}, func() (map[string]any, error) {
		return GetAllChats(ctx, c.transport, c.baseURL, userID)
	})
}

// CreateEntry creates a new entry in the specified namespace
func (c *HiveAgentClient) CreateEntry(ctx context.Context, namespace string, data any) (Entry, error) {
	args := map[string]any{"namespace": namespace, "data": data}
	return invoke(c, "create entry", args, func() (Entry, error) {
		return CreateEntry(ctx, c.transport, c.baseURL, namespace, data)
	})
}

// GetEntries retrieves all entries from the specified namespace
func (c *HiveAgentClient) GetEntries(ctx context.Context, namespace string) ([]Entry, error) {
	return invoke(c, "get entries", map[string]any{"namespace": namespace}, func() ([]Entry, error) {
		return ListEntries(ctx, c.transport, c.baseURL, namespace)
	})
}

// GetEntryByID retrieves a specific entry by its ID
func (c *HiveAgentClient) GetEntryByID(ctx context.Context, namespace, entryID string) (Entry, error) {
	args := map[string]any{"namespace": namespace, "entry_id": entryID}
	return invoke(c, "get entry by ID", args, func() (Entry, error) {
		return GetEntryByID(ctx, c.transport, c.baseURL, namespace, entryID)
	})
}

// UpdateEntry updates a specific entry by its ID
func (c *HiveAgentClient) UpdateEntry(ctx context.Context, namespace, entryID string, data any) (Entry, error) {
	args := map[string]any{"namespace": namespace, "entry_id": entryID, "data": data}
	return invoke(c, "update entry", args, func() (Entry, error) {
		return UpdateEntry(ctx, c.transport, c.baseURL, namespace, entryID, data)
	})
}

// DeleteEntry deletes a specific entry by its ID
func (c *HiveAgentClient) DeleteEntry(ctx context.Context, namespace, entryID string) (map[string]any, error) {
	args := map[string]any{"namespace": namespace, "entry_id": entryID}
	return invoke(c, "delete entry", args, func() (map[string]any, error) {
		return DeleteEntry(ctx, c.transport, c.baseURL, namespace, entryID)
	})
}

// StreamEntryData streams inputs to the namespace's stream endpoint and yields
// one response per input, in order. See StreamEntries.
func (c *HiveAgentClient) StreamEntryData(ctx context.Context, namespace string, inputs iter.Seq[any]) iter.Seq2[json.RawMessage, error] {
	const op = "stream entry data"
	args := map[string]any{"namespace": namespace}

	return func(yield func(json.RawMessage, error) bool) {
		if c.closed.Load() {
			yield(nil, &OperationError{Op: op, Args: args, Err: ErrClientClosed})
			return
		}
		for response, err := range StreamEntries(ctx, c.transport, c.baseURL, namespace, inputs) {
			if err != nil {
				c.logger.Error("Failed to stream entry data from %s: %v", namespace, err)
				yield(nil, &OperationError{Op: op, Args: args, Err: err})
				return
			}
			if !yield(response, nil) {
				return
			}
		}
	}
}

// CreateTable creates a database table with the given column definitions
func (c *HiveAgentClient) CreateTable(ctx context.Context, tableName string, columns Columns) (map[string]any, error) {
	args := map[string]any{"table_name": tableName, "columns": columns}
	return invoke(c, "create table", args, func() (map[string]any, error) {
		return CreateTable(ctx, c.transport, c.baseURL, tableName, columns)
	})
}

// InsertData inserts a row into a database table
func (c *HiveAgentClient) InsertData(ctx context.Context, tableName string, data Row) (map[string]any, error) {
	args := map[string]any{"table_name": tableName, "data": data}
	return invoke(c, "insert data", args, func() (map[string]any, error) {
		return InsertData(ctx, c.transport, c.baseURL, tableName, data)
	})
}

// ReadData reads rows from a database table; filters may be nil
func (c *HiveAgentClient) ReadData(ctx context.Context, tableName string, filters Filters) ([]map[string]any, error) {
	args := map[string]any{"table_name": tableName, "filters": filters}
	return invoke(c, "read data", args, func() ([]map[string]any, error) {
		return ReadData(ctx, c.transport, c.baseURL, tableName, filters)
	})
}

// UpdateData updates a row of a database table
func (c *HiveAgentClient) UpdateData(ctx context.Context, tableName string, id int, data Row) (map[string]any, error) {
	args := map[string]any{"table_name": tableName, "id": id, "data": data}
	return invoke(c, "update data", args, func() (map[string]any, error) {
		return UpdateData(ctx, c.transport, c.baseURL, tableName, id, data)
	})
}

// DeleteData deletes a row of a database table
func (c *HiveAgentClient) DeleteData(ctx context.Context, tableName string, id int) (map[string]any, error) {
	args := map[string]any{"table_name": tableName, "id": id}
	return invoke(c, "delete data", args, func() (map[string]any, error) {
		return DeleteData(ctx, c.transport, c.baseURL, tableName, id)
	})
}

// UploadFiles uploads local files in a single request
func (c *HiveAgentClient) UploadFiles(ctx context.Context, paths ...string) (UploadResult, error) {
	return invoke(c, "upload files", map[string]any{"paths": paths}, func() (UploadResult, error) {
		return UploadFiles(ctx, c.transport, c.baseURL, paths)
	})
}

// ListFiles lists the files stored on the server
func (c *HiveAgentClient) ListFiles(ctx context.Context) (FileList, error) {
	return invoke(c, "list files", nil, func() (FileList, error) {
		return ListFiles(ctx, c.transport, c.baseURL)
	})
}

// DeleteFile deletes a file stored on the server
func (c *HiveAgentClient) DeleteFile(ctx context.Context, filename string) (map[string]any, error) {
	return invoke(c, "delete file", map[string]any{"filename": filename}, func() (map[string]any, error) {
		return DeleteFile(ctx, c.transport, c.baseURL, filename)
	})
}

// RenameFile renames a file stored on the server
func (c *HiveAgentClient) RenameFile(ctx context.Context, oldName, newName string) (map[string]any, error) {
	args := map[string]any{"old_filename": oldName, "new_filename": newName}
	return invoke(c, "rename file", args, func() (map[string]any, error) {
		return RenameFile(ctx, c.transport, c.baseURL, oldName, newName)
	})
}

// InstallTools installs function packs on the agent
func (c *HiveAgentClient) InstallTools(ctx context.Context, tools []ToolDescriptor) (map[string]any, error) {
	return invoke(c, "install tools", map[string]any{"tools": tools}, func() (map[string]any, error) {
		return InstallTools(ctx, c.transport, c.baseURL, tools)
	})
}

// SamplePrompts lists the suggested prompts for starting an interaction
func (c *HiveAgentClient) SamplePrompts(ctx context.Context) (map[string]any, error) {
	return invoke(c, "get sample prompts", nil, func() (map[string]any, error) {
		return ListSamplePrompts(ctx, c.transport, c.baseURL)
	})
}

// CheckHealth reports whether the agent answers on its sample prompts endpoint
func (c *HiveAgentClient) CheckHealth(ctx context.Context) error {
	_, err := invoke(c, "check health", nil, func() (struct{}, error) {
		_, err := ListSamplePrompts(ctx, c.transport, c.baseURL)
		return struct{}{}, err
	})
	return err
}
