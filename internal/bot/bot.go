// Package bot drives the Telegram dialogue: onboarding new subscribers,
// editing roles and profiles, and unsubscribing. It long-polls the Bot API
// and runs one explicit conversation state machine per chat.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jordanseet/internwatch/internal/model"
	"github.com/jordanseet/internwatch/internal/telegram"
)

// API is the slice of the Telegram client the bot needs.
type API interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// JobScheduler registers and removes per-subscriber check jobs.
type JobScheduler interface {
	EnsureJob(ctx context.Context, chatID int64) error
	RemoveJob(chatID int64)
}

// Processor runs one alert check; used to seed a fresh subscriber's history
// right after onboarding instead of waiting for the first tick.
type Processor interface {
	Process(ctx context.Context, chatID int64) error
}

// Bot handles incoming Telegram messages.
type Bot struct {
	api         API
	subs        model.SubscriberStore
	sched       JobScheduler
	proc        Processor
	pollTimeout time.Duration
	logger      *slog.Logger

	// conversations is keyed by chat id. The update loop is single-threaded
	// so no locking is needed.
	conversations map[int64]*conversation
}

func New(api API, subs model.SubscriberStore, sched JobScheduler, proc Processor, pollTimeout time.Duration, logger *slog.Logger) *Bot {
	return &Bot{
		api:           api,
		subs:          subs,
		sched:         sched,
		proc:          proc,
		pollTimeout:   pollTimeout,
		logger:        logger,
		conversations: make(map[int64]*conversation),
	}
}

// Run long-polls for updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	var offset int64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := b.api.GetUpdates(ctx, offset, b.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.Warn("getUpdates failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if u.Message == nil || u.Message.Text == "" {
				continue
			}
			b.handleMessage(ctx, u.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *telegram.Message) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	var reply string
	if strings.HasPrefix(text, "/") {
		reply = b.handleCommand(ctx, chatID, text)
	} else if conv, ok := b.conversations[chatID]; ok {
		reply = b.advance(ctx, chatID, conv, text)
	} else {
		reply = "Send /start to subscribe to internship alerts, or /help for all commands."
	}

	if reply == "" {
		return
	}
	if err := b.api.SendMessage(ctx, chatID, reply); err != nil {
		b.logger.Error("reply failed", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, chatID int64, text string) string {
	cmd, arg, _ := strings.Cut(text, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/start":
		return b.cmdStart(chatID)
	case "/stop":
		return b.cmdStop(chatID)
	case "/roles":
		return b.cmdRoles(chatID)
	case "/addrole":
		return b.cmdAddRole(chatID)
	case "/delrole":
		return b.cmdDelRole(ctx, chatID, arg)
	case "/editprofile":
		return b.cmdEditProfile(chatID)
	case "/help":
		return helpText
	default:
		return "Unknown command. Send /help for the list of commands."
	}
}

const helpText = `Commands:
/start - subscribe to internship alerts
/stop - unsubscribe and delete your data
/roles - show your current roles
/addrole - add roles to your subscription
/delrole <role> - remove a role
/editprofile - update your profile details
/help - show this message`

func (b *Bot) cmdStart(chatID int64) string {
	sub, err := b.subs.Get(chatID)
	if err != nil {
		b.logger.Error("lookup subscriber", "chat_id", chatID, "error", err)
		return "Something went wrong. Please try again later."
	}
	if sub != nil {
		return "You're already subscribed! You'll receive internship alerts."
	}

	b.conversations[chatID] = newOnboarding(chatID)
	return "Welcome! Please enter the first role you're interested in (e.g., Software, Finance). Type 'done' when finished."
}

func (b *Bot) cmdStop(chatID int64) string {
	delete(b.conversations, chatID)

	sub, err := b.subs.Get(chatID)
	if err != nil {
		b.logger.Error("lookup subscriber", "chat_id", chatID, "error", err)
		return "Something went wrong. Please try again later."
	}
	if sub == nil {
		return "You are not subscribed to internship alerts."
	}

	if err := b.subs.Delete(chatID); err != nil {
		b.logger.Error("delete subscriber", "chat_id", chatID, "error", err)
		return "Something went wrong. Please try again later."
	}
	b.sched.RemoveJob(chatID)
	b.logger.Info("subscriber removed", "chat_id", chatID)
	return "You've unsubscribed from internship alerts."
}

func (b *Bot) cmdRoles(chatID int64) string {
	sub, err := b.subs.Get(chatID)
	if err != nil {
		b.logger.Error("lookup subscriber", "chat_id", chatID, "error", err)
		return "Something went wrong. Please try again later."
	}
	if sub == nil {
		return "You are not subscribed. Send /start to begin."
	}
	if len(sub.Roles) == 0 {
		return "You have no roles. Use /addrole to add some."
	}
	return fmt.Sprintf("Your roles: %s.", strings.Join(sub.Roles, ", "))
}

func (b *Bot) cmdAddRole(chatID int64) string {
	sub, err := b.subs.Get(chatID)
	if err != nil {
		b.logger.Error("lookup subscriber", "chat_id", chatID, "error", err)
		return "Something went wrong. Please try again later."
	}
	if sub == nil {
		return "You need to subscribe first. Send /start to begin."
	}

	b.conversations[chatID] = newRoleAddition(*sub)
	return "Enter a role to add. Type 'done' when finished."
}

func (b *Bot) cmdDelRole(ctx context.Context, chatID int64, arg string) string {
	sub, err := b.subs.Get(chatID)
	if err != nil {
		b.logger.Error("lookup subscriber", "chat_id", chatID, "error", err)
		return "Something went wrong. Please try again later."
	}
	if sub == nil || len(sub.Roles) == 0 {
		return "You don't have any roles to delete."
	}
	if arg == "" {
		return fmt.Sprintf("Your roles: %s.\nUsage: /delrole <role>", strings.Join(sub.Roles, ", "))
	}

	role := model.NormalizeRole(arg)
	if !sub.HasRole(role) {
		return fmt.Sprintf("You don't have the role '%s'. Your roles: %s.", role, strings.Join(sub.Roles, ", "))
	}

	kept := sub.Roles[:0]
	for _, r := range sub.Roles {
		if r != role {
			kept = append(kept, r)
		}
	}
	sub.Roles = kept

	if err := b.subs.Upsert(sub); err != nil {
		b.logger.Error("update subscriber", "chat_id", chatID, "error", err)
		return "Something went wrong. Please try again later."
	}

	if len(sub.Roles) == 0 {
		// Subscription stays; checks are a no-op until a role is added.
		return fmt.Sprintf("Removed '%s'. You have no roles left; alerts are paused until you /addrole.", role)
	}
	return fmt.Sprintf("Removed '%s'. Your roles: %s.", role, strings.Join(sub.Roles, ", "))
}

func (b *Bot) cmdEditProfile(chatID int64) string {
	sub, err := b.subs.Get(chatID)
	if err != nil {
		b.logger.Error("lookup subscriber", "chat_id", chatID, "error", err)
		return "Something went wrong. Please try again later."
	}
	if sub == nil {
		return "You need to subscribe first. Send /start to begin."
	}

	b.conversations[chatID] = newProfileEdit(*sub)
	return fmt.Sprintf("Which detail would you like to edit? Choose one of: %s. Type 'done' to finish.", editableFields)
}

func (b *Bot) advance(ctx context.Context, chatID int64, conv *conversation, text string) string {
	reply, result := conv.handle(text)

	switch result {
	case outcomeContinue:
		return reply

	case outcomeRegistered:
		delete(b.conversations, chatID)
		sub := conv.draft
		sub.CreatedAt = time.Now().UTC()
		if err := b.subs.Upsert(&sub); err != nil {
			b.logger.Error("save subscriber", "chat_id", chatID, "error", err)
			return "An error occurred while saving your data. Please try again."
		}
		if err := b.sched.EnsureJob(ctx, chatID); err != nil {
			b.logger.Error("schedule subscriber", "chat_id", chatID, "error", err)
		}
		b.seed(chatID)
		b.logger.Info("subscriber registered", "chat_id", chatID, "roles", sub.Roles)
		return reply

	case outcomeUpdated:
		delete(b.conversations, chatID)
		if err := b.subs.Upsert(&conv.draft); err != nil {
			b.logger.Error("update subscriber", "chat_id", chatID, "error", err)
			return "An error occurred while saving your data. Please try again."
		}
		return reply
	}

	return reply
}

// seed runs the first check in the background so the new subscriber's
// ledger is populated without flooding them with the current backlog.
func (b *Bot) seed(chatID int64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := b.proc.Process(ctx, chatID); err != nil {
			b.logger.Error("seed check failed", "chat_id", chatID, "error", err)
		}
	}()
}
