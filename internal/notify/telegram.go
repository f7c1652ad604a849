// Package notify sends Telegram alerts for hot-pool lifecycle events:
// a wall reaching the diamond category, or a long-lived wall finally
// disappearing. It is best-effort — a missing bot token or chat ID
// disables it rather than failing startup.
package notify

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/wallsentry/wallsentry/internal/model"
)

const chatIDFile = "telegram_chat_id.txt"

// Telegram announces hot-pool category changes and removals to a
// single configured chat. Nil-safe: every method tolerates a nil
// receiver so callers don't need to branch when the bot is disabled.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	mu     sync.Mutex
	chatID int64
}

// New initializes the bot from TELEGRAM_BOT_TOKEN / TELEGRAM_CHAT_ID.
// Returns nil if the token is absent or invalid — notifications are
// disabled, not fatal.
func New() *Telegram {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		log.Println("⚠️  TELEGRAM_BOT_TOKEN not set, wall alerts disabled")
		return nil
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		log.Printf("⚠️  failed to init telegram bot: %v", err)
		return nil
	}
	log.Printf("✅ telegram authorized as %s", bot.Self.UserName)

	t := &Telegram{bot: bot}

	if chatIDStr := os.Getenv("TELEGRAM_CHAT_ID"); chatIDStr != "" {
		if id, err := strconv.ParseInt(chatIDStr, 10, 64); err == nil {
			t.chatID = id
		}
	}
	if t.chatID == 0 {
		t.chatID = t.loadChatID()
	}
	if t.chatID != 0 {
		log.Printf("✅ telegram chat id loaded: %d", t.chatID)
	}
	return t
}

func (t *Telegram) loadChatID() int64 {
	data, err := os.ReadFile(chatIDFile)
	if err != nil {
		return 0
	}
	id, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func (t *Telegram) saveChatID(id int64) {
	if err := os.WriteFile(chatIDFile, []byte(strconv.FormatInt(id, 10)), 0644); err != nil {
		log.Printf("⚠️  failed to persist telegram chat id: %v", err)
	}
}

// Listen polls for /start (captures the chat id) and /status (replies
// with whatever statusCallback returns) until the bot's update channel
// closes.
func (t *Telegram) Listen(statusCallback func() string) {
	if t == nil || t.bot == nil {
		return
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := t.bot.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil || !update.Message.IsCommand() {
			continue
		}
		switch update.Message.Command() {
		case "start":
			t.mu.Lock()
			t.chatID = update.Message.Chat.ID
			t.mu.Unlock()
			t.saveChatID(update.Message.Chat.ID)
			t.Notify("🔔 Connected. Monitoring order book walls now.")
		case "status":
			if statusCallback != nil {
				t.Notify(statusCallback())
			}
		}
	}
}

// Notify sends msg to the configured chat, fire-and-forget.
func (t *Telegram) Notify(msg string) {
	if t == nil || t.bot == nil {
		return
	}
	t.mu.Lock()
	chatID := t.chatID
	t.mu.Unlock()
	if chatID == 0 {
		return
	}
	go func() {
		cfg := tgbotapi.NewMessage(chatID, msg)
		cfg.ParseMode = "Markdown"
		if _, err := t.bot.Send(cfg); err != nil {
			log.Printf("⚠️  telegram send failed: %v", err)
		}
	}()
}

// AnnounceDiamond alerts on a wall categorized as diamond — the
// rarest, most persistent kind of tracked order. It does not check
// whether the order was already announced.
func (t *Telegram) AnnounceDiamond(order model.HotOrder) {
	notional, _ := order.CurrentNotional.Float64()
	t.Notify(fmt.Sprintf(
		"💎 *DIAMOND WALL*\n\n*Pair:* %s | *Side:* %s\n*Price:* %s\n*Notional:* $%.0f\n*Lifetime:* %.0fs | *Scans:* %d\n*Weight:* %.2f (%s)",
		order.Symbol, order.Side, order.AnchorPrice.String(), notional,
		order.LifetimeSeconds, order.ScanCount, order.Weight.RecommendedWeight, order.Weight.Recommended,
	))
}

// AnnounceRemoval alerts when a hot order that reached diamond finally
// disappears from the book.
func (t *Telegram) AnnounceRemoval(order model.HotOrder) {
	if order.Weight.RecommendedCategory != model.CategoryDiamond {
		return
	}
	t.Notify(fmt.Sprintf(
		"☠️ *DIAMOND WALL GONE*\n\n*Pair:* %s | *Side:* %s\n*Price:* %s\n*Lifetime:* %.0fs",
		order.Symbol, order.Side, order.AnchorPrice.String(), order.LifetimeSeconds,
	))
}
