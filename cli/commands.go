package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/hypernetix/hiveagent-go/pkg/hiveagent"
	"github.com/spf13/cobra"
)

// sessionID returns the --session value, generating a new one when unset
func (a *cliApp) sessionID() string {
	if session := a.v.GetString("session"); session != "" {
		return session
	}
	session := uuid.NewString()
	a.notify("new session: %s (continue it with --session=%s)", session, session)
	return session
}

func chatFiles(paths []string) []hiveagent.ChatFile {
	files := make([]hiveagent.ChatFile, 0, len(paths))
	for _, p := range paths {
		files = append(files, hiveagent.LocalPath(p))
	}
	return files
}

func (a *cliApp) printReply(cmd *cobra.Command, session, reply string) error {
	if a.v.GetBool("json") {
		return printJSON(cmd, map[string]any{"session_id": session, "response": reply})
	}
	fmt.Fprintln(cmd.OutOrStdout(), reply)
	return nil
}

func (a *cliApp) chatCmd() *cobra.Command {
	var files []string
	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Send a message to the agent",
		Args:  cobra.MinimumNArgs(1),
		RunE: a.withClient(func(ctx context.Context, cmd *cobra.Command, client *hiveagent.HiveAgentClient, args []string) error {
			session := a.sessionID()
			reply, err := client.Chat(ctx, a.v.GetString("user"), session, strings.Join(args, " "), chatFiles(files)...)
			if err != nil {
				return err
			}
			return a.printReply(cmd, session, reply)
		}),
	}
	cmd.Flags().StringSliceVarP(&files, "file", "f", nil, "Attach a file (repeatable)")
	return cmd
}

func (a *cliApp) mediaCmd() *cobra.Command {
	var files []string
	cmd := &cobra.Command{
		Use:   "media <chat_data>",
		Short: "Send a chat_data JSON document with attachments",
		Args:  cobra.ExactArgs(1),
		RunE: a.withClient(func(ctx context.Context, cmd *cobra.Command, client *hiveagent.HiveAgentClient, args []string) error {
			var chatData hiveagent.ChatData
			if err := parseJSONArg(args[0], &chatData); err != nil {
				return err
			}
			encoded, err := json.Marshal(chatData)
			if err != nil {
				return err
			}
			session := a.sessionID()
			reply, err := client.ChatMedia(ctx, a.v.GetString("user"), session, string(encoded), chatFiles(files)...)
			if err != nil {
				return err
			}
			return a.printReply(cmd, session, reply)
		}),
	}
	cmd.Flags().StringSliceVarP(&files, "file", "f", nil, "Attach a file (repeatable, at least one)")
	return cmd
}

func (a *cliApp) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show the messages of the --session chat",
		Args:  cobra.NoArgs,
		RunE: a.withClient(func(ctx context.Context, cmd *cobra.Command, client *hiveagent.HiveAgentClient, args []string) error {
			session := a.v.GetString("session")
			if session == "" {
				return fmt.Errorf("--session is required")
			}
			history, err := client.GetChatHistory(ctx, a.v.GetString("user"), session)
			if err != nil {
				return err
			}
			if a.v.GetBool("json") {
				return printJSON(cmd, history)
			}
			printMessages(cmd, history)
			return nil
		}),
	}
}

func (a *cliApp) chatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chats",
		Short: "List every chat session of --user",
		Args:  cobra.NoArgs,
		RunE: a.withClient(func(ctx context.Context, cmd *cobra.Command, client *hiveagent.HiveAgentClient, args []string) error {
			chats, err := client.GetAllChats(ctx, a.v.GetString("user"))
			if err != nil {
				return err
			}
			if a.v.GetBool("json") {
				return printJSON(cmd, chats)
			}
			a.notify("found '%d' conversations:", len(chats))
			for _, session := range sortedKeys(chats) {
				messages, ok := chats[session].([]any)
				if !ok {
					fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n%s\n", session, formatCell(chats[session]))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\n%s (%d messages)\n", session, len(messages))
				printMessages(cmd, messages)
			}
			return nil
		}),
	}
}

func (a *cliApp) entryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entry",
		Short: "Manage namespaced entries",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "create <namespace> <json>",
			Short: "Create an entry",
			Args:  cobra.ExactArgs(2),
			RunE: a.withClient(func(ctx context.Context, cmd *cobra.Command, client *hiveagent.HiveAgentClient, args []string) error {
				var data any
				if err := parseJSONArg(args[1], &data); err != nil {
					return err
				}
				entry, err := client.CreateEntry(ctx, args[0], data)
				if err != nil {
					return err
				}
				return printJSON(cmd, entry)
			}),
		},
		&cobra.Command{
			Use:   "list <namespace>",
			Short: "List the entries of a namespace",
			Args:  cobra.ExactArgs(1),
			RunE: a.withClient(func(ctx context.Context, cmd *cobra.Command, client *hiveagent.HiveAgentClient, args []string) error {
				entries, err := client.GetEntries(ctx, args[0])
				if err != nil {
					return err
				}
				if a.v.GetBool("json") {
					return printJSON(cmd, entries)
				}
				printRows(cmd, entries, fmt.Sprintf("Entries in %s", args[0]))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "get <namespace> <id>",
			Short: "Show one entry",
			Args:  cobra.ExactArgs(2),
			RunE: a.withClient(func(ctx context.Context, cmd *cobra.Command, client *hiveagent.HiveAgentClient, args []string) error {
				entry, err := client.GetEntryByID(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd, entry)
			}),
		},
		&cobra.Command{
			Use:   "update <namespace> <id> <json>",
			Short: "Replace the data of an entry",
			Args:  cobra.ExactArgs(3),
			RunE: a.withClient(func(ctx context.Context, cmd *cobra.Command, client *hiveagent.HiveAgentClient, args []string) error {
				var data any
				if err := parseJSONArg(args[2], &data); err != nil {
					return err
				}
				entry, err := client.UpdateEntry(ctx, args[0], args[1], data)
				if err != nil {
					return err
				}
				return printJSON(cmd, entry)
			}),
		},
		&cobra.Command{
			Use:   "delete <namespace> <id>",
			Short: "Delete an entry",
			Args:  cobra.ExactArgs(2),
			RunE: a.withClient(func(ctx context.Context, cmd *cobra.Command, client *hiveagent.HiveAgentClient, args []string) error {
				result, err := client.DeleteEntry(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd, result)
			}),
		},
		&cobra.Command{
			Use:   "stream <namespace>",
			Short: "Stream JSON documents read line by line from stdin",
			Long: "Every non-empty stdin line is sent as one JSON frame over a single WebSocket.\n" +
				"The server answer to each frame is printed on its own line.",
			Args: cobra.ExactArgs(1),
			RunE: a.withClient(func(ctx context.Context, cmd *cobra.Command, client *hiveagent.HiveAgentClient, args []string) error {
				var inputErr error
				inputs := jsonLines(cmd.InOrStdin(), &inputErr)
				count := 0
				for response, err := range client.StreamEntryData(ctx, args[0], inputs) {
					if err != nil {
						return err
					}
					count++
					fmt.Fprintln(cmd.OutOrStdout(), string(bytes.TrimSpace(response)))
				}
				if inputErr != nil {
					return fmt.Errorf("stopped after %d document(s): %w", count, inputErr)
				}
				a.logger.Debug("Streamed %d document(s) to %s", count, args[0])
				return nil
			}),
		},
	)
	return cmd
}

func parseRowID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid row id %q: %w", s, err)
	}
	return id, nil
}

func (a *cliApp) dbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage agent database tables",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:     "create-table <table> <columns>",
			Short:   "Create a table, columns as JSON, e.g. '{\"name\": \"TEXT\"}'",
			Example: `  hive-agent db create-table users '{"name": "TEXT", "age": "INTEGER"}'`,
			Args:    cobra.ExactArgs(2),
			RunE: a.withClient(func(ctx context.Context, cmd *cobra.Command, client *hiveagent.HiveAgentClient, args []string) error {
				var columns hiveagent.Columns
				if err := parseJSONArg(args[1], &columns); err != nil {
					return err
				}
				result, err := client.CreateTable(ctx, args[0], columns)
				if err != nil {
					return err
				}
				return printJSON(cmd, result)
			}),
		},
		&cobra.Command{
			Use:   "insert <table> <row>",
			Short: "Insert a row given as JSON",
			Args:  cobra.ExactArgs(2),
			RunE: a.withClient(func(ctx context.Context, cmd *cobra.Command, client *hiveagent.HiveAgentClient, args []string) error {
				var row hiveagent.Row
				if err := parseJSONArg(args[1], &row); err != nil {
					return err
				}
				result, err := client.InsertData(ctx, args[0], row)
				if err != nil {
					return err
				}
				return printJSON(cmd, result)
			}),
		},
		&cobra.Command{
			Use:   "read <table> [filters]",
			Short: "Read rows, optionally filtered by JSON like '{\"name\": [\"Alice\"]}'",
			Args:  cobra.RangeArgs(1, 2),
			RunE: a.withClient(func(ctx context.Context, cmd *cobra.Command, client *hiveagent.HiveAgentClient, args []string) error {
				var filters hiveagent.Filters
				if len(args) == 2 {
					if err := parseJSONArg(args[1], &filters); err != nil {
						return err
					}
				}
				rows, err := client.ReadData(ctx, args[0], filters)
				if err != nil {
					return err
				}
				if a.v.GetBool("json") {
					return printJSON(cmd, rows)
				}
				printRows(cmd, rows, fmt.Sprintf("Rows in %s", args[0]))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "update <table> <id> <row>",
			Short: "Replace the data of a row",
			Args:  cobra.ExactArgs(3),
			RunE: a.withClient(func(ctx context.Context, cmd *cobra.Command, client *hiveagent.HiveAgentClient, args []string) error {
				id, err := parseRowID(args[1])
				if err != nil {
					return err
				}
				var row hiveagent.Row
				if err := parseJSONArg(args[2], &row); err != nil {
					return err
				}
				result, err := client.UpdateData(ctx, args[0], id, row)
				if err != nil {
					return err
				}
				return printJSON(cmd, result)
			}),
		},
		&cobra.Command{
			Use:   "delete <table> <id>",
			Short: "Delete a row",
			Args:  cobra.ExactArgs(2),
			RunE: a.withClient(func(ctx context.Context, cmd *cobra.Command, client *hiveagent.HiveAgentClient, args []string) error {
				id, err := parseRowID(args[1])
				if err != nil {
					return err
				}
				result, err := client.DeleteData(ctx, args[0], id)
				if err != nil {
					return err
				}
				return printJSON(cmd, result)
			}),
		},
	)
	return cmd
}

func (a *cliApp) filesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Manage files stored on the agent",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "upload <path>...",
			Short: "Upload local files in one request",
			Args:  cobra.MinimumNArgs(1),
			RunE: a.withClient(func(ctx context.Context, cmd *cobra.Command, client *hiveagent.HiveAgentClient, args []string) error {
				result, err := client.UploadFiles(ctx, args...)
				if err != nil {
					return err
				}
				if a.v.GetBool("json") {
					return printJSON(cmd, result)
				}
				a.notify("uploaded %d file(s)", len(result.Uploaded))
				for _, name := range result.Uploaded {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "list",
			Short: "List stored files",
			Args:  cobra.NoArgs,
			RunE: a.withClient(func(ctx context.Context, cmd *cobra.Command, client *hiveagent.HiveAgentClient, args []string) error {
				list, err := client.ListFiles(ctx)
				if err != nil {
					return err
				}
				if a.v.GetBool("json") {
					return printJSON(cmd, list)
				}
				if len(list.Files) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No files found")
					return nil
				}
				for _, name := range list.Files {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "delete <name>",
			Short: "Delete a stored file",
			Args:  cobra.ExactArgs(1),
			RunE: a.withClient(func(ctx context.Context, cmd *cobra.Command, client *hiveagent.HiveAgentClient, args []string) error {
				result, err := client.DeleteFile(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, result)
			}),
		},
		&cobra.Command{
			Use:   "rename <old> <new>",
			Short: "Rename a stored file",
			Args:  cobra.ExactArgs(2),
			RunE: a.withClient(func(ctx context.Context, cmd *cobra.Command, client *hiveagent.HiveAgentClient, args []string) error {
				result, err := client.RenameFile(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd, result)
			}),
		},
	)
	return cmd
}

func (a *cliApp) toolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Manage agent function packs",
	}

	var url string
	var functions []string
	install := &cobra.Command{
		Use:   "install [descriptors]",
		Short: "Install tools from a JSON descriptor list or --url/--function",
		Example: `  hive-agent tools install '[{"url": "https://github.com/org/pack", "functions": ["pack.fn"]}]'
  hive-agent tools install --url https://github.com/org/pack --function pack.fn`,
		Args: cobra.MaximumNArgs(1),
		RunE: a.withClient(func(ctx context.Context, cmd *cobra.Command, client *hiveagent.HiveAgentClient, args []string) error {
			var tools []hiveagent.ToolDescriptor
			if len(args) == 1 {
				if err := parseJSONArg(args[0], &tools); err != nil {
					return err
				}
			}
			if url != "" {
				tools = append(tools, hiveagent.ToolDescriptor{URL: url, Functions: functions})
			}
			if len(tools) == 0 {
				return fmt.Errorf("no tools given, pass a descriptor list or --url")
			}
			result, err := client.InstallTools(ctx, tools)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		}),
	}
	install.Flags().StringVar(&url, "url", "", "Repository URL of the function pack")
	install.Flags().StringSliceVar(&functions, "function", nil, "Function path to install (repeatable)")

	cmd.AddCommand(install)
	return cmd
}

func (a *cliApp) promptsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prompts",
		Short: "Show the agent's sample prompts",
		Args:  cobra.NoArgs,
		RunE: a.withClient(func(ctx context.Context, cmd *cobra.Command, client *hiveagent.HiveAgentClient, args []string) error {
			prompts, err := client.SamplePrompts(ctx)
			if err != nil {
				return err
			}
			list, ok := prompts["prompts"].([]any)
			if a.v.GetBool("json") || !ok {
				return printJSON(cmd, prompts)
			}
			for _, p := range list {
				fmt.Fprintf(cmd.OutOrStdout(), "- %v\n", p)
			}
			return nil
		}),
	}
}
