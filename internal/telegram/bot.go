// Package telegram is the remote-channel implementation: a Telegram
// bot that receives commands and text for panes, and delivers pane
// output back as monospace messages.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/telebridge/telebridge/internal/bridge"
	"github.com/telebridge/telebridge/internal/mux"
)

const pollTimeoutSeconds = 30

// clientTimeout bounds every Telegram HTTP request. It must exceed the
// long-poll timeout or GetUpdates would be cut off mid-poll.
const clientTimeout = (pollTimeoutSeconds + 20) * time.Second

// ErrUnauthorized is returned for senders outside the whitelist.
var ErrUnauthorized = errors.New("unauthorized user")

// Bot runs the Telegram transport. It implements bridge.Channel for
// the outbound direction and drives the bridge from inbound updates.
type Bot struct {
	token      string
	authorized map[int64]struct{}
	bridge     *bridge.Bridge

	mu     sync.Mutex
	api    *tgbotapi.BotAPI
	offset int
}

// New creates a bot and verifies the token against the Telegram API.
// An empty whitelist is allowed at construction but refuses every
// sender, failing closed rather than open.
func New(token string, authorizedUsers []int64) (*Bot, error) {
	api, err := newClient(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}

	authorized := make(map[int64]struct{}, len(authorizedUsers))
	for _, id := range authorizedUsers {
		authorized[id] = struct{}{}
	}
	return &Bot{
		token:      token,
		authorized: authorized,
		api:        api,
	}, nil
}

// Bind attaches the bridge. Must be called before Run; the bot and the
// bridge reference each other, so construction happens in two steps.
func (b *Bot) Bind(br *bridge.Bridge) {
	b.bridge = br
}

// Username returns the bot's Telegram username.
func (b *Bot) Username() string {
	return b.client().Self.UserName
}

func (b *Bot) client() *tgbotapi.BotAPI {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.api
}

// SendMessage delivers plain text to a conversation.
func (b *Bot) SendMessage(ctx context.Context, conversationID int64, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	msg := tgbotapi.NewMessage(conversationID, text)
	if _, err := b.client().Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// SendMonospace delivers text wrapped in a <pre> block so terminal
// alignment survives.
func (b *Bot) SendMonospace(ctx context.Context, conversationID int64, text string) error {
	formatted := formatMonospace(text)
	if formatted == "" {
		return nil
	}
	msg := tgbotapi.NewMessage(conversationID, formatted)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.client().Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// formatMonospace renders terminal output as an HTML <pre> block.
// Empty output yields an empty string; Telegram rejects empty messages.
func formatMonospace(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return "<pre>" + html.EscapeString(text) + "</pre>"
}

// newClient builds an API client whose HTTP requests all carry an
// explicit timeout, and verifies the token (getMe).
func newClient(token string) (*tgbotapi.BotAPI, error) {
	return tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint,
		&http.Client{Timeout: clientTimeout})
}

// Reconnect replaces the underlying API client. The stale client's
// long poll is stopped, which makes Run's update channel close and
// reopen against the new client.
//
// The caller's deadline is honored: if ctx expires before the new
// client verifies, the old client stays in place and the error is
// returned without blocking the caller any further.
func (b *Bot) Reconnect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("telegram reconnect: %w", err)
	}

	type result struct {
		api *tgbotapi.BotAPI
		err error
	}
	done := make(chan result, 1)
	go func() {
		api, err := newClient(b.token)
		done <- result{api, err}
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("telegram reconnect: %w", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return fmt.Errorf("telegram reconnect: %w", r.err)
		}
		b.mu.Lock()
		old := b.api
		b.api = r.api
		b.mu.Unlock()
		old.StopReceivingUpdates()
		return nil
	}
}

// Run drives the inbound update loop until ctx is cancelled. The loop
// survives client swaps from Reconnect by reopening the update channel.
func (b *Bot) Run(ctx context.Context) error {
	for {
		api := b.client()
		cfg := tgbotapi.NewUpdate(b.offset)
		cfg.Timeout = pollTimeoutSeconds
		updates := api.GetUpdatesChan(cfg)

	recv:
		for {
			select {
			case <-ctx.Done():
				api.StopReceivingUpdates()
				return ctx.Err()
			case update, ok := <-updates:
				if !ok {
					break recv
				}
				b.offset = update.UpdateID + 1
				b.bridge.RecordChannelPoll()
				b.handleUpdate(ctx, update)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

func (b *Bot) isAuthorized(userID int64) bool {
	_, ok := b.authorized[userID]
	return ok
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		msg := update.Message
		if !b.isAuthorized(msg.From.ID) {
			fmt.Fprintf(os.Stderr, "warning: unauthorized sender %d (@%s)\n", msg.From.ID, msg.From.UserName)
			b.reply(msg.Chat.ID, "Unauthorized.")
			return
		}
		b.handleMessage(ctx, msg)
	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		if !b.isAuthorized(cq.From.ID) {
			b.answerCallback(cq.ID, "Unauthorized")
			return
		}
		b.handleCallback(ctx, cq)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	if !msg.IsCommand() {
		b.forwardText(ctx, chatID, msg.Text)
		return
	}

	args := strings.TrimSpace(msg.CommandArguments())
	switch msg.Command() {
	case "start", "help":
		b.reply(chatID, helpText)
	case "list":
		b.cmdList(ctx, chatID)
	case "connect":
		b.cmdConnect(ctx, chatID, args)
	case "disconnect":
		b.cmdDisconnect(chatID)
	case "keys":
		b.cmdKeys(chatID)
	case "refresh":
		b.cmdRefresh(ctx, chatID)
	case "status":
		b.cmdStatus(chatID)
	case "new":
		b.cmdNewSession(ctx, chatID)
	case "kill":
		b.cmdKillSession(ctx, chatID, args)
	case "mode":
		b.cmdToggleMode(chatID)
	case "width":
		b.cmdWidth(ctx, chatID, args)
	case "resize":
		b.cmdResize(ctx, chatID, args)
	default:
		// Unknown slash commands belong to the program in the pane
		// (many CLIs have their own / commands), so forward verbatim.
		b.forwardText(ctx, chatID, msg.Text)
	}
}

const helpText = `Bridge a terminal pane to this chat.

/list - show panes
/connect [target] - watch a pane (no target: pick from a list)
/disconnect - stop watching
/new - create a fresh session and connect to it
/kill <session> - destroy a session
/keys - control-key pad
/refresh - resend the current screen
/mode - toggle auto/wait input mode
/width <cols> - constrain terminal width via stty
/resize <cols> - resize the pane itself
/status - bridge health

Anything else you type is sent to the connected pane. Unknown
/commands are forwarded too.`

func (b *Bot) forwardText(ctx context.Context, chatID int64, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	err := b.bridge.SendInput(ctx, chatID, text)
	switch {
	case errors.Is(err, bridge.ErrNotConnected):
		b.reply(chatID, "Not connected. /connect first.")
	case err != nil:
		b.reply(chatID, fmt.Sprintf("Send failed: %v", err))
	}
}

func (b *Bot) cmdList(ctx context.Context, chatID int64) {
	panes, err := b.bridge.ListPanes(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("List failed: %v", err))
		return
	}
	if len(panes) == 0 {
		b.reply(chatID, "No panes. /new creates a session.")
		return
	}
	var sb strings.Builder
	for _, p := range panes {
		fmt.Fprintf(&sb, "%s  %s  %dx%d\n", p.Target, p.Command, p.Width, p.Height)
	}
	_ = b.SendMonospace(ctx, chatID, sb.String())
}

func (b *Bot) cmdConnect(ctx context.Context, chatID int64, target string) {
	if target == "" {
		panes, err := b.bridge.ListPanes(ctx)
		if err != nil {
			b.reply(chatID, fmt.Sprintf("List failed: %v", err))
			return
		}
		if len(panes) == 0 {
			b.reply(chatID, "No panes. /new creates a session.")
			return
		}
		msg := tgbotapi.NewMessage(chatID, "Pick a pane:")
		msg.ReplyMarkup = paneKeyboard(panes)
		if _, err := b.client().Send(msg); err != nil {
			fmt.Fprintf(os.Stderr, "warning: send pane keyboard: %v\n", err)
		}
		return
	}
	b.connect(ctx, chatID, target)
}

func (b *Bot) connect(ctx context.Context, chatID int64, target string) {
	initial, replaced, err := b.bridge.Connect(ctx, chatID, target)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Connect failed: %v", err))
		return
	}
	note := fmt.Sprintf("Connected to %s.", target)
	if replaced != "" {
		note = fmt.Sprintf("Connected to %s (was %s).", target, replaced)
	}
	b.reply(chatID, note)
	if len(initial) > 0 {
		_ = b.SendMonospace(ctx, chatID, strings.Join(initial, "\n"))
	}
}

func (b *Bot) cmdDisconnect(chatID int64) {
	target, err := b.bridge.Disconnect(chatID)
	if errors.Is(err, bridge.ErrNotConnected) {
		b.reply(chatID, "Not connected.")
		return
	}
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Disconnect failed: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Disconnected from %s.", target))
}

func (b *Bot) cmdKeys(chatID int64) {
	if _, ok := b.bridge.Lookup(chatID); !ok {
		b.reply(chatID, "Not connected. /connect first.")
		return
	}
	msg := tgbotapi.NewMessage(chatID, "Keys:")
	msg.ReplyMarkup = keyKeyboard()
	if _, err := b.client().Send(msg); err != nil {
		fmt.Fprintf(os.Stderr, "warning: send key pad: %v\n", err)
	}
}

func (b *Bot) cmdRefresh(ctx context.Context, chatID int64) {
	lines, err := b.bridge.ForceRefresh(ctx, chatID)
	if errors.Is(err, bridge.ErrNotConnected) {
		b.reply(chatID, "Not connected.")
		return
	}
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Refresh failed: %v", err))
		return
	}
	if len(lines) == 0 {
		b.reply(chatID, "(empty screen)")
		return
	}
	_ = b.SendMonospace(ctx, chatID, strings.Join(lines, "\n"))
}

func (b *Bot) cmdStatus(chatID int64) {
	status := b.bridge.Health()
	var sb strings.Builder
	fmt.Fprintf(&sb, "Bridge: %s\n", status)
	if conn, ok := b.bridge.Lookup(chatID); ok {
		fmt.Fprintf(&sb, "Pane: %s (mode %s", conn.Target, conn.Mode)
		if conn.Width > 0 {
			fmt.Fprintf(&sb, ", width %d", conn.Width)
		}
		sb.WriteString(")")
	} else {
		sb.WriteString("Pane: not connected")
	}
	b.reply(chatID, sb.String())
}

func (b *Bot) cmdNewSession(ctx context.Context, chatID int64) {
	session, target, err := b.bridge.CreateSession(ctx, chatID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Create failed: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Created session %s, connected to %s.", session, target))
}

func (b *Bot) cmdKillSession(ctx context.Context, chatID int64, session string) {
	if session == "" {
		b.reply(chatID, "Usage: /kill <session>")
		return
	}
	if err := b.bridge.KillSession(ctx, session); err != nil {
		b.reply(chatID, fmt.Sprintf("Kill failed: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Killed session %s.", session))
}

func (b *Bot) cmdToggleMode(chatID int64) {
	mode, err := b.bridge.ToggleInputMode(chatID)
	if errors.Is(err, bridge.ErrNotConnected) {
		b.reply(chatID, "Not connected.")
		return
	}
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Toggle failed: %v", err))
		return
	}
	b.reply(chatID, modeDescription(mode))
}

func modeDescription(mode bridge.InputMode) string {
	if mode == bridge.ModeWait {
		return "Wait mode: text is typed but not submitted. Use Enter on /keys."
	}
	return "Auto mode: text is submitted with Enter."
}

func (b *Bot) cmdWidth(ctx context.Context, chatID int64, arg string) {
	if arg == "" || strings.EqualFold(arg, "reset") {
		if err := b.bridge.ResetWidth(ctx, chatID); err != nil {
			b.replyOpError(chatID, err)
			return
		}
		b.reply(chatID, "Width reset to the pane's natural size.")
		return
	}
	width, err := strconv.Atoi(arg)
	if err != nil {
		b.reply(chatID, "Usage: /width <cols> or /width reset")
		return
	}
	if err := b.bridge.SetWidth(ctx, chatID, width); err != nil {
		b.replyOpError(chatID, err)
		return
	}
	b.reply(chatID, fmt.Sprintf("Width set to %d columns.", mux.ClampWidth(width)))
}

func (b *Bot) cmdResize(ctx context.Context, chatID int64, arg string) {
	width, err := strconv.Atoi(arg)
	if err != nil {
		b.reply(chatID, "Usage: /resize <cols>")
		return
	}
	if err := b.bridge.Resize(ctx, chatID, width); err != nil {
		b.replyOpError(chatID, err)
		return
	}
	b.reply(chatID, fmt.Sprintf("Pane resized to %d columns.", mux.ClampWidth(width)))
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	action, payload, ok := parseCallback(cq.Data)
	if !ok {
		b.answerCallback(cq.ID, "")
		return
	}
	chatID := cq.Message.Chat.ID

	switch action {
	case "connect":
		b.answerCallback(cq.ID, "Connecting...")
		b.connect(ctx, chatID, payload)
	case "key":
		if payload == keyToggleMode {
			b.answerCallback(cq.ID, "")
			b.cmdToggleMode(chatID)
			return
		}
		key, err := mux.ParseKey(payload)
		if err != nil {
			b.answerCallback(cq.ID, "Unknown key")
			return
		}
		if err := b.bridge.SendKey(ctx, chatID, key); err != nil {
			b.answerCallback(cq.ID, "Failed")
			b.replyOpError(chatID, err)
			return
		}
		b.answerCallback(cq.ID, string(key))
	}
}

func (b *Bot) replyOpError(chatID int64, err error) {
	if errors.Is(err, bridge.ErrNotConnected) {
		b.reply(chatID, "Not connected. /connect first.")
		return
	}
	b.reply(chatID, fmt.Sprintf("Failed: %v", err))
}

func (b *Bot) reply(chatID int64, text string) {
	if err := b.SendMessage(context.Background(), chatID, text); err != nil {
		fmt.Fprintf(os.Stderr, "warning: reply to %d: %v\n", chatID, err)
	}
}

func (b *Bot) answerCallback(id, text string) {
	if _, err := b.client().Request(tgbotapi.NewCallback(id, text)); err != nil {
		fmt.Fprintf(os.Stderr, "warning: answer callback: %v\n", err)
	}
}
