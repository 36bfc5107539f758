package bot

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/mckayc/task-donegeon-sub005/internal/core"
	"github.com/mckayc/task-donegeon-sub005/internal/i18n"
)

// Bot represents the Telegram bot
type Bot struct {
	bot           *tele.Bot
	service       *core.Service
	publicURL     string
	sessionSecret string
	translator    *i18n.Translator
}

// NewBot creates a new Bot instance
func NewBot(token string, service *core.Service, sessionSecret, publicURL string, translator *i18n.Translator) (*Bot, error) {
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	bot := &Bot{
		bot:           b,
		service:       service,
		publicURL:     publicURL,
		sessionSecret: sessionSecret,
		translator:    translator,
	}
	bot.setupHandlers()
	return bot, nil
}

// Start starts the bot polling
func (b *Bot) Start() {
	log.Println("Telegram bot is now running...")
	b.bot.Start()
}

// Stop gracefully stops the bot
func (b *Bot) Stop() {
	b.bot.Stop()
}

func (b *Bot) setupHandlers() {
	b.bot.Handle("/start", b.handleStart)
	b.bot.Handle("/join", b.handleJoin)
	b.bot.Handle("/quests", b.handleQuests)
	b.bot.Handle("/done", b.handleDone)
	b.bot.Handle("/claim", b.handleClaim)
	b.bot.Handle("/balance", b.handleBalance)
	b.bot.Handle("/web", b.handleWeb)

	b.bot.Handle(tele.OnCallback, b.handleCallback)
}

func normalizeLang(lang string) string {
	if strings.HasPrefix(strings.ToLower(lang), "ru") {
		return "ru"
	}
	return "en"
}

func (b *Bot) lang(c tele.Context, user *core.User) string {
	if user != nil && user.Language != "" {
		return normalizeLang(user.Language)
	}
	if c != nil && c.Sender() != nil {
		return normalizeLang(c.Sender().LanguageCode)
	}
	return "en"
}

func (b *Bot) t(lang, key string) string {
	if b.translator == nil {
		return key
	}
	return b.translator.T(lang, key)
}

func (b *Bot) tf(lang, key string, args ...interface{}) string {
	if b.translator == nil {
		return key
	}
	return b.translator.Tf(lang, key, args...)
}

// sender resolves the acting user from the Telegram sender id.
func (b *Bot) sender(c tele.Context) (*core.User, string, error) {
	user, err := b.service.GetUserByTelegramID(c.Sender().ID)
	if err != nil {
		return nil, b.lang(c, nil), err
	}
	return user, b.lang(c, user), nil
}

// handleStart registers the sender on first contact and greets returning users
func (b *Bot) handleStart(c tele.Context) error {
	telegramID := c.Sender().ID
	username := c.Sender().Username
	if username == "" {
		username = c.Sender().FirstName
	}

	if user, err := b.service.GetUserByTelegramID(telegramID); err == nil {
		return c.Send(b.tf(b.lang(c, user), "bot.start.back", user.Username))
	}

	user, err := b.service.CreateUser(username, &telegramID, core.RoleExplorer)
	if err != nil {
		log.Printf("Error creating user: %v", err)
		return c.Send(b.t(b.lang(c, nil), "bot.error"))
	}
	lang := b.lang(c, nil)
	if lang != "en" {
		_ = b.service.SetUserLanguage(user.ID, lang)
	}
	return c.Send(b.tf(lang, "bot.start.welcome", user.Username))
}

// handleJoin handles "/join <invite-code>"
func (b *Bot) handleJoin(c tele.Context) error {
	user, lang, err := b.sender(c)
	if err != nil {
		return c.Send(b.t(lang, "bot.error"))
	}
	args := c.Args()
	if len(args) != 1 {
		return c.Send(b.t(lang, "bot.join.usage"))
	}
	guild, err := b.service.JoinGuild(user.ID, args[0])
	if err != nil {
		return c.Send(b.t(lang, "bot.join.bad"))
	}
	return c.Send(b.tf(lang, "bot.join.ok", guild.Name))
}

// handleQuests lists guilds as inline buttons, or the board directly when
// the user belongs to a single guild.
func (b *Bot) handleQuests(c tele.Context) error {
	user, lang, err := b.sender(c)
	if err != nil {
		return c.Send(b.t(lang, "bot.error"))
	}
	guilds, err := b.service.GetGuildsByUserID(user.ID)
	if err != nil {
		log.Printf("Error getting guilds for user %d: %v", user.ID, err)
		return c.Send(b.t(lang, "bot.error"))
	}
	if len(guilds) == 0 {
		return c.Send(b.t(lang, "bot.guilds.none"))
	}
	if len(guilds) == 1 {
		return b.sendBoard(c, user, guilds[0], lang)
	}

	var rows [][]tele.InlineButton
	for _, guild := range guilds {
		rows = append(rows, []tele.InlineButton{{
			Text: guild.Name,
			Data: fmt.Sprintf("board:%d", guild.ID),
		}})
	}
	return c.Send(b.t(lang, "bot.guilds.choose"), &tele.ReplyMarkup{InlineKeyboard: rows})
}

func (b *Bot) sendBoard(c tele.Context, user *core.User, guild *core.Guild, lang string) error {
	board, err := b.service.ListQuestBoard(user.ID, guild.ID, time.Now())
	if err != nil {
		log.Printf("Error listing board for user %d guild %d: %v", user.ID, guild.ID, err)
		return c.Send(b.t(lang, "bot.error"))
	}
	if len(board) == 0 {
		return c.Send(b.t(lang, "bot.quests.none"))
	}

	var msg strings.Builder
	msg.WriteString(b.tf(lang, "bot.quests.header", guild.Name))
	msg.WriteString("\n\n")
	for _, av := range board {
		state := b.t(lang, "bot.quests.state."+string(av.State))
		msg.WriteString(fmt.Sprintf("#%d %s (%s)", av.Quest.ID, av.Quest.Title, state))
		if av.Occurrence.DueAt != nil && av.State == core.StateAvailable {
			msg.WriteString(" due " + av.Occurrence.DueAt.Format("15:04"))
		}
		msg.WriteString("\n")
	}
	return c.Send(msg.String())
}

// handleDone handles "/done <quest-id>"
func (b *Bot) handleDone(c tele.Context) error {
	user, lang, err := b.sender(c)
	if err != nil {
		return c.Send(b.t(lang, "bot.error"))
	}
	args := c.Args()
	if len(args) != 1 {
		return c.Send(b.t(lang, "bot.complete.usage"))
	}
	questID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return c.Send(b.t(lang, "bot.complete.usage"))
	}

	completion, err := b.service.SubmitCompletion(user.ID, questID, nil, "")
	if err != nil {
		if core.IsConflict(err) || core.IsValidation(err) || err == core.ErrNotFound {
			return c.Send(b.t(lang, "bot.complete.unavailable"))
		}
		log.Printf("Error completing quest %d for user %d: %v", questID, user.ID, err)
		return c.Send(b.t(lang, "bot.error"))
	}
	if completion.Status == core.CompletionApproved {
		return c.Send(b.t(lang, "bot.complete.approved"))
	}
	return c.Send(b.t(lang, "bot.complete.pending"))
}

// handleClaim handles "/claim <quest-id>"
func (b *Bot) handleClaim(c tele.Context) error {
	user, lang, err := b.sender(c)
	if err != nil {
		return c.Send(b.t(lang, "bot.error"))
	}
	args := c.Args()
	if len(args) != 1 {
		return c.Send(b.t(lang, "bot.claim.usage"))
	}
	questID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return c.Send(b.t(lang, "bot.claim.usage"))
	}

	if _, err := b.service.SubmitClaim(user.ID, questID); err != nil {
		switch {
		case err == core.ErrDuplicateClaim:
			return c.Send(b.t(lang, "bot.claim.duplicate"))
		case core.IsConflict(err) || core.IsValidation(err) || err == core.ErrNotFound:
			return c.Send(b.t(lang, "bot.complete.unavailable"))
		}
		log.Printf("Error claiming quest %d for user %d: %v", questID, user.ID, err)
		return c.Send(b.t(lang, "bot.error"))
	}
	return c.Send(b.t(lang, "bot.claim.pending"))
}

// handleBalance reports the sender's balance per guild
func (b *Bot) handleBalance(c tele.Context) error {
	user, lang, err := b.sender(c)
	if err != nil {
		return c.Send(b.t(lang, "bot.error"))
	}
	guilds, err := b.service.GetGuildsByUserID(user.ID)
	if err != nil {
		log.Printf("Error getting guilds for user %d: %v", user.ID, err)
		return c.Send(b.t(lang, "bot.error"))
	}
	if len(guilds) == 0 {
		return c.Send(b.t(lang, "bot.guilds.none"))
	}

	var msg strings.Builder
	for _, guild := range guilds {
		balance, err := b.service.GetBalance(user.ID, guild.ID)
		if err != nil {
			log.Printf("Error getting balance for guild %d: %v", guild.ID, err)
			continue
		}
		msg.WriteString(b.tf(lang, "bot.balance", guild.Name, balance))
		msg.WriteString("\n")
	}
	return c.Send(msg.String())
}

// handleWeb sends a one-tap login link for the web dashboard
func (b *Bot) handleWeb(c tele.Context) error {
	user, lang, err := b.sender(c)
	if err != nil {
		return c.Send(b.t(lang, "bot.error"))
	}
	loginURL := fmt.Sprintf("%s/auth?user=%s&hash=%s", b.publicURL, user.Username, b.generateLoginHash(user.Username))
	return c.Send(b.t(lang, "bot.login.link") + "\n" + loginURL)
}

// generateLoginHash mirrors the web server's hash login check
func (b *Bot) generateLoginHash(username string) string {
	h := hmac.New(sha256.New, []byte(b.sessionSecret))
	h.Write([]byte(username))
	return hex.EncodeToString(h.Sum(nil))
}

// handleCallback routes inline button callbacks
func (b *Bot) handleCallback(c tele.Context) error {
	data := strings.TrimSpace(c.Callback().Data)
	action, rest, ok := strings.Cut(data, ":")
	if !ok {
		return c.Respond(&tele.CallbackResponse{Text: "invalid action"})
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "invalid id"})
	}

	switch action {
	case "board":
		return b.handleBoardSelection(c, id)
	case "approve_claim":
		return b.handleApprovalCallback(c, b.service.ApproveClaim, id, "bot.approve.done")
	case "reject_claim":
		return b.handleApprovalCallback(c, b.service.RejectClaim, id, "bot.reject.done")
	default:
		return c.Respond(&tele.CallbackResponse{Text: "unknown action"})
	}
}

func (b *Bot) handleBoardSelection(c tele.Context, guildID int64) error {
	user, lang, err := b.sender(c)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: b.t(lang, "bot.error")})
	}
	guild, err := b.service.GetGuildByID(guildID)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: b.t(lang, "bot.error")})
	}
	if err := b.sendBoard(c, user, guild, lang); err != nil {
		return err
	}
	return c.Respond(&tele.CallbackResponse{})
}

func (b *Bot) handleApprovalCallback(c tele.Context, act func(actorID, claimID int64) error, claimID int64, okKey string) error {
	user, lang, err := b.sender(c)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: b.t(lang, "bot.error")})
	}
	if err := act(user.ID, claimID); err != nil {
		if err == core.ErrNotApprover || err == core.ErrSelfApproval {
			return c.Respond(&tele.CallbackResponse{Text: b.t(lang, "bot.approve.denied")})
		}
		return c.Respond(&tele.CallbackResponse{Text: b.t(lang, "bot.error")})
	}
	return c.Respond(&tele.CallbackResponse{Text: b.t(lang, okKey)})
}

// SendNotification sends a message with optional inline buttons to a chat.
// This implements the core.Notifier interface.
func (b *Bot) SendNotification(chatID int64, message string, buttons map[string]string) error {
	if len(buttons) == 0 {
		_, err := b.bot.Send(&tele.User{ID: chatID}, message)
		return err
	}
	var row []tele.InlineButton
	for text, data := range buttons {
		row = append(row, tele.InlineButton{Text: text, Data: data})
	}
	markup := &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{row}}
	_, err := b.bot.Send(&tele.User{ID: chatID}, message, markup)
	return err
}
