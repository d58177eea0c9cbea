package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	copilot "github.com/github/copilot-sdk/go"
	"github.com/lodestar-hq/lodestar/internal/models"
	"github.com/lodestar-hq/lodestar/internal/storage"
)

// Default configuration values
const (
	DefaultLogLevel     = "info"
	DefaultModel        = "gpt-4.1"
	DefaultMaxToolSteps = 5

	sendTimeoutMillis = 120000
	maxTitleLen       = 60
)

// resolveCLIPath finds the Copilot CLI path using environment variable or
// well-known locations.
func resolveCLIPath() string {
	if envPath := os.Getenv("COPILOT_CLI_PATH"); envPath != "" {
		return envPath
	}

	knownPaths := []string{
		"/usr/local/bin/copilot",
		"/usr/bin/copilot",
		"copilot",
	}
	for _, path := range knownPaths {
		if _, err := exec.LookPath(path); err == nil {
			return path
		}
	}

	// Return empty to let SDK use its default
	return ""
}

// ClientConfig holds configuration for the assistant client.
type ClientConfig struct {
	CLIPath      string
	CLIUrl       string // URL of existing CLI server (optional)
	Model        string
	LogLevel     string
	MaxToolSteps int
}

// Client wraps the Copilot SDK client and runs chat turns. Each inbound
// message gets its own SDK session carrying a fresh team snapshot and tool
// set; nothing model-facing is shared between turns.
type Client struct {
	sdkClient *copilot.Client
	db        *storage.Database
	exec      *Executor
	logger    *slog.Logger
	config    ClientConfig

	started bool
	mu      sync.Mutex
}

// NewClient creates a new assistant client.
func NewClient(db *storage.Database, exec *Executor, logger *slog.Logger, cfg ClientConfig) *Client {
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxToolSteps <= 0 {
		cfg.MaxToolSteps = DefaultMaxToolSteps
	}

	return &Client{
		db:     db,
		exec:   exec,
		logger: logger,
		config: cfg,
	}
}

// Start initializes the SDK client and starts the CLI server.
func (c *Client) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}

	opts := &copilot.ClientOptions{
		LogLevel: c.config.LogLevel,
	}

	cliPath := c.config.CLIPath
	if cliPath == "" {
		cliPath = resolveCLIPath()
	}
	if cliPath != "" {
		opts.CLIPath = cliPath
	}
	if c.config.CLIUrl != "" {
		opts.CLIUrl = c.config.CLIUrl
	}

	c.sdkClient = copilot.NewClient(opts)
	if err := c.sdkClient.Start(); err != nil {
		return fmt.Errorf("failed to start Copilot SDK client: %w", err)
	}

	c.started = true
	c.logger.Info("Assistant client started",
		"cli_path", c.config.CLIPath,
		"model", c.config.Model,
		"max_tool_steps", c.config.MaxToolSteps,
	)
	return nil
}

// Stop gracefully shuts down the SDK client.
func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return nil
	}

	errs := c.sdkClient.Stop()
	if len(errs) > 0 {
		c.logger.Error("Errors stopping Copilot SDK client", "errors", errs)
		return errs[0]
	}

	c.started = false
	c.logger.Info("Assistant client stopped")
	return nil
}

// IsStarted returns whether the client is running.
func (c *Client) IsStarted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

// HandleChat runs one complete chat turn: load the team snapshot, open a
// model session with the tool set bound to it and the conversation so far,
// send the user's message, and persist the transcript. Transcript
// persistence is best-effort; a storage failure there is logged and does not
// fail the turn.
func (c *Client) HandleChat(ctx context.Context, teamID string, actor Actor, req models.ChatRequest) (*models.ChatResponse, error) {
	message, history, err := req.Prompt()
	if err != nil {
		return nil, err
	}

	if !c.IsStarted() {
		if err := c.Start(); err != nil {
			return nil, err
		}
	}

	tc, err := LoadTeamContext(ctx, c.db, teamID)
	if err != nil {
		return nil, err
	}

	conv, err := c.resolveConversation(ctx, teamID, actor.UserID, req.ConversationID, message)
	if err != nil {
		return nil, err
	}

	// Resuming clients often send only the new message; the stored
	// transcript supplies the context they left out.
	if req.ConversationID != "" && len(history) == 0 {
		stored, err := c.db.GetConversationMessages(ctx, conv.ID)
		if err != nil {
			return nil, err
		}
		history = historyFromTranscript(stored)
	}

	model := c.config.Model
	if req.Model != "" {
		model = req.Model
	}

	turn := NewTurn(c.exec, tc, actor, c.config.MaxToolSteps)

	systemMessage := buildSystemMessage(tc, actor)
	if prelude := renderHistory(history); prelude != "" {
		systemMessage += "\n" + prelude
	}

	session, err := c.sdkClient.CreateSession(&copilot.SessionConfig{
		Model: model,
		Tools: turn.Tools(),
		SystemMessage: &copilot.SystemMessageConfig{
			Content: systemMessage,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create model session: %w", err)
	}
	defer func() { _ = session.Destroy() }()

	response, err := session.SendAndWait(copilot.MessageOptions{
		Prompt: message,
	}, sendTimeoutMillis)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	content := ""
	if response != nil && response.Data.Content != nil {
		content = *response.Data.Content
	}

	c.persistTranscript(ctx, conv.ID, message, content, turn.Calls())

	c.logger.Debug("Chat turn completed",
		"team_id", teamID,
		"conversation_id", conv.ID,
		"tool_calls", turn.StepCount(),
	)

	return &models.ChatResponse{
		ConversationID: conv.ID,
		Content:        content,
		ToolCalls:      turn.StepCount(),
		CreatedAt:      time.Now(),
	}, nil
}

// resolveConversation loads the referenced conversation or starts a new one
// titled from the first message.
func (c *Client) resolveConversation(ctx context.Context, teamID, userID, conversationID, message string) (*models.Conversation, error) {
	if conversationID != "" {
		conv, err := c.db.GetConversation(ctx, teamID, conversationID)
		if err != nil {
			return nil, err
		}
		if conv == nil {
			return nil, fmt.Errorf("conversation not found: %s", conversationID)
		}
		if conv.UserID != userID {
			return nil, fmt.Errorf("conversation not found: %s", conversationID)
		}
		return conv, nil
	}

	conv := &models.Conversation{
		TeamID: teamID,
		UserID: userID,
		Title:  deriveTitle(message),
	}
	if err := c.db.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// persistTranscript appends the user message, tool call records, and the
// assistant reply to the conversation.
func (c *Client) persistTranscript(ctx context.Context, conversationID, userMessage, assistantReply string, calls []ToolCall) {
	now := time.Now()
	messages := make([]*models.ConversationMessage, 0, len(calls)+2)

	messages = append(messages, &models.ConversationMessage{
		ConversationID: conversationID,
		Role:           models.RoleUser,
		Content:        userMessage,
		CreatedAt:      now,
	})
	for _, call := range calls {
		name := call.Name
		payload := fmt.Sprintf(`{"arguments":%s,"result":%s}`, call.Arguments, call.Result)
		messages = append(messages, &models.ConversationMessage{
			ConversationID: conversationID,
			Role:           models.RoleTool,
			ToolName:       &name,
			ToolPayload:    &payload,
			CreatedAt:      now,
		})
	}
	messages = append(messages, &models.ConversationMessage{
		ConversationID: conversationID,
		Role:           models.RoleAssistant,
		Content:        assistantReply,
		CreatedAt:      now,
	})

	if err := c.db.AppendMessages(ctx, conversationID, messages); err != nil {
		c.logger.Error("Failed to persist conversation transcript",
			"conversation_id", conversationID, "error", err)
	}
}

func deriveTitle(message string) string {
	title := strings.Join(strings.Fields(message), " ")
	if utf8.RuneCountInString(title) > maxTitleLen {
		runes := []rune(title)
		title = strings.TrimSpace(string(runes[:maxTitleLen])) + "…"
	}
	return title
}

// historyFromTranscript converts persisted transcript rows into the inbound
// message shape. Tool records are dropped; their outcomes are already
// reflected in the surrounding assistant replies.
func historyFromTranscript(stored []*models.ConversationMessage) []models.ChatMessage {
	out := make([]models.ChatMessage, 0, len(stored))
	for _, m := range stored {
		if m.Role != models.RoleUser && m.Role != models.RoleAssistant {
			continue
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		out = append(out, models.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

// renderHistory formats prior conversational messages so a fresh model
// session picks the conversation up where it left off.
func renderHistory(history []models.ChatMessage) string {
	var b strings.Builder
	written := 0
	for _, m := range history {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		switch m.Role {
		case models.RoleUser:
			fmt.Fprintf(&b, "User: %s\n", content)
		case models.RoleAssistant:
			fmt.Fprintf(&b, "Assistant: %s\n", content)
		default:
			continue
		}
		written++
	}
	if written == 0 {
		return ""
	}
	return "Conversation so far:\n" + b.String()
}

// buildSystemMessage creates the system prompt embedding the team snapshot
// so the model can resolve casual references without extra lookups.
func buildSystemMessage(tc *TeamContext, actor Actor) string {
	var b strings.Builder

	fmt.Fprintf(&b, `You are the project assistant for the team %q. You help members manage projects, issues, and teammates through the available tools.

Ground rules:
- Use tools for every read or change; never invent data.
- When a reference is ambiguous the tool returns the candidates; ask the user to pick one instead of guessing.
- Creating an issue requires a title, workflow state, priority, and project. Never pick a priority yourself; ask if the user did not give one.
- Prefer the batch tools when the user asks for several changes at once.
- Report partial failures honestly: say what succeeded and what failed.

`, tc.TeamName)

	fmt.Fprintf(&b, "You are talking to %s (role: %s).\n\n", actor.UserName, actor.Role)

	b.WriteString("Projects:\n")
	if len(tc.Projects) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, p := range tc.Projects {
		fmt.Fprintf(&b, "  - %s (%s), status %s, %d member(s)\n", p.Name, p.Key, p.Status, p.MemberCount)
	}

	b.WriteString("Workflow states:\n")
	for _, ws := range tc.WorkflowStates {
		fmt.Fprintf(&b, "  - %s (%s)\n", ws.Name, ws.Type)
	}

	if len(tc.Labels) > 0 {
		b.WriteString("Labels:\n")
		for _, l := range tc.Labels {
			fmt.Fprintf(&b, "  - %s\n", l.Name)
		}
	}

	b.WriteString("Members:\n")
	for _, m := range tc.Members {
		fmt.Fprintf(&b, "  - %s (%s)\n", m.UserName, m.Role)
	}

	return b.String()
}
