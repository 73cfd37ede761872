package hiveagent

import "time"

var (
	HiveAgentAPIHosts = []string{"localhost", "127.0.0.1", "0.0.0.0"}
	HiveAgentAPIPorts = []int{8000}
)

const (
	HiveAgentGoVersion   = "0.1.0"
	DefaultBaseURL       = "http://localhost:8000"
	DefaultAPIVersion    = "v1"
	DefaultTimeout       = 30 * time.Second
	WsHandshakeTimeout   = 15 * time.Second
	WsCloseGracePeriod   = 250 * time.Millisecond
	RequestIDHeader      = "X-Request-ID"
	LogLevelEnvVar       = "HIVE_AGENT_LOG_LEVEL"
	defaultFileFieldName = "files"
)

const (
	ChatEndpoint           = "/chat"                   // Versioned chat endpoint (form or JSON)
	LegacyChatEndpoint     = "/api/chat"               // Older deployments, JSON only
	ChatHistoryEndpoint    = "/chat_history"           // GET ?user_id=&session_id=
	AllChatsEndpoint       = "/all_chats"              // GET ?user_id=
	EntryEndpoint          = "/api/entry"              // + /{namespace}[/{id}|/stream]
	CreateTableEndpoint    = "/database/create-table"  // POST
	InsertDataEndpoint     = "/database/insert-data"   // POST
	ReadDataEndpoint       = "/database/read-data"     // POST
	UpdateDataEndpoint     = "/database/update-data"   // PUT
	DeleteDataEndpoint     = "/database/delete-data"   // DELETE with JSON body
	UploadFilesEndpoint    = "/uploadfiles/"           // multipart POST
	FilesEndpoint          = "/files/"                 // GET, + {name} DELETE, + {old}/{new} PUT
	InstallToolsEndpoint   = "/install_tools"          // POST
	SamplePromptsEndpoint  = "/sample_prompts/"        // GET
	uploadPartContentType  = "multipart/form-data"
	defaultChatContentType = "application/octet-stream"
)
