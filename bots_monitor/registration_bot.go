package bots_monitor

// Registration bot. A small per-chat state machine collects the three
// values a watched subject needs (wallet key, token mint, pool address),
// validates each as it arrives, and writes the subject to the registry.

import (
	"context"
	"fmt"
	"sync"

	"clutch-protocol/internal/config"
	log "clutch-protocol/internal/infra/log"
	"clutch-protocol/internal/registry"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type chatStep int

const (
	stepIdle chatStep = iota
	stepAwaitingPrivateKey
	stepAwaitingTokenMint
	stepAwaitingPoolAddress
	stepAwaitingDeleteKey
	stepAwaitingToggleKey
)

// pendingRegistration accumulates one chat's answers across messages.
type pendingRegistration struct {
	step       chatStep
	privateKey string
	publicKey  string
	tokenMint  string
}

type RegistrationBot struct {
	cfg      *config.Config
	registry *registry.Store
	bot      *tgbotapi.BotAPI

	mu       sync.Mutex
	sessions map[int64]*pendingRegistration
}

func NewRegistrationBot(cfg *config.Config, store *registry.Store, bot *tgbotapi.BotAPI) *RegistrationBot {
	return &RegistrationBot{
		cfg:      cfg,
		registry: store,
		bot:      bot,
		sessions: map[int64]*pendingRegistration{},
	}
}

func (b *RegistrationBot) Run(ctx context.Context) {
	if b.bot == nil {
		log.LogWarn("Telegram bot is nil, registration bot not started")
		return
	}
	log.LogInfo("Starting Registration Bot...", zap.String("botUsername", b.bot.Self.UserName))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.bot.StopReceivingUpdates()
			log.LogInfo("Registration bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.CallbackQuery != nil {
				b.handleCallback(update.CallbackQuery)
				continue
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(update.Message)
		}
	}
}

func mainMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ Register wallet", "register"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Delete wallet", "delete"),
			tgbotapi.NewInlineKeyboardButtonData("⏯ Toggle wallet", "toggle"),
		),
	)
}

func (b *RegistrationBot) handleMessage(message *tgbotapi.Message) {
	chatID := message.Chat.ID

	if message.IsCommand() {
		switch message.Command() {
		case "start", "menu":
			b.resetSession(chatID)
			msg := tgbotapi.NewMessage(chatID, "Welcome! Register a wallet to start watching its token pool.")
			msg.ReplyMarkup = mainMenu()
			b.send(msg)
		case "cancel":
			b.resetSession(chatID)
			b.send(tgbotapi.NewMessage(chatID, "Cancelled. Send /start to open the menu."))
		default:
			b.send(tgbotapi.NewMessage(chatID, "Unknown command. Send /start to open the menu."))
		}
		return
	}

	b.mu.Lock()
	session, exists := b.sessions[chatID]
	b.mu.Unlock()
	if !exists || session.step == stepIdle {
		msg := tgbotapi.NewMessage(chatID, "Send /start to open the menu.")
		b.send(msg)
		return
	}

	switch session.step {
	case stepAwaitingPrivateKey:
		b.collectPrivateKey(chatID, session, message.Text)
	case stepAwaitingTokenMint:
		b.collectTokenMint(chatID, session, message.Text)
	case stepAwaitingPoolAddress:
		b.collectPoolAddress(chatID, session, message.Text)
	case stepAwaitingDeleteKey:
		b.deleteWallet(chatID, message.Text)
	case stepAwaitingToggleKey:
		b.toggleWallet(chatID, message.Text)
	}
}

func (b *RegistrationBot) handleCallback(query *tgbotapi.CallbackQuery) {
	if b.bot != nil {
		b.bot.Request(tgbotapi.NewCallback(query.ID, ""))
	}
	// Telegram omits the originating message once it is too old.
	if query.Message == nil {
		return
	}
	chatID := query.Message.Chat.ID

	switch query.Data {
	case "register":
		b.setStep(chatID, stepAwaitingPrivateKey)
		b.send(tgbotapi.NewMessage(chatID, "Send the wallet's private key (base58).\n\nSend /cancel to abort."))
	case "delete":
		b.setStep(chatID, stepAwaitingDeleteKey)
		b.send(tgbotapi.NewMessage(chatID, "Send the private key of the wallet to delete."))
	case "toggle":
		b.setStep(chatID, stepAwaitingToggleKey)
		b.send(tgbotapi.NewMessage(chatID, "Send the private key of the wallet to pause or resume."))
	}
}

func (b *RegistrationBot) collectPrivateKey(chatID int64, session *pendingRegistration, text string) {
	pub, err := registry.ValidatePrivateKey(text)
	if err != nil {
		log.LogDebug("Rejected private key during registration", zap.Error(err))
		b.send(tgbotapi.NewMessage(chatID, "That doesn't look like a valid private key. Try again or /cancel."))
		return
	}

	b.mu.Lock()
	session.privateKey = text
	session.publicKey = pub
	session.step = stepAwaitingTokenMint
	b.mu.Unlock()

	b.send(tgbotapi.NewMessage(chatID, fmt.Sprintf("Wallet %s accepted.\n\nNow send the token mint address.", shortAddress(pub))))
}

func (b *RegistrationBot) collectTokenMint(chatID int64, session *pendingRegistration, text string) {
	if err := registry.ValidateAddress(text); err != nil {
		b.send(tgbotapi.NewMessage(chatID, "Invalid mint address. Try again or /cancel."))
		return
	}

	b.mu.Lock()
	session.tokenMint = text
	session.step = stepAwaitingPoolAddress
	b.mu.Unlock()

	b.send(tgbotapi.NewMessage(chatID, "Mint accepted.\n\nNow send the liquidity pool address."))
}

func (b *RegistrationBot) collectPoolAddress(chatID int64, session *pendingRegistration, text string) {
	if err := registry.ValidateAddress(text); err != nil {
		b.send(tgbotapi.NewMessage(chatID, "Invalid pool address. Try again or /cancel."))
		return
	}

	subject := registry.WatchedSubject{
		PublicKey:  session.publicKey,
		PrivateKey: session.privateKey,
		TokenCA:    session.tokenMint,
		LPAddress:  text,
		Active:     true,
	}
	if err := b.registry.Add(subject); err != nil {
		log.LogError("Failed to save registered subject", zap.Error(err))
		b.send(tgbotapi.NewMessage(chatID, "Failed to save the registration, please try again later."))
		return
	}
	b.resetSession(chatID)

	log.LogSuccess("Subject registered",
		zap.String("publicKey", subject.PublicKey),
		zap.String("tokenCA", subject.TokenCA),
		zap.String("lpAddress", subject.LPAddress))

	b.send(tgbotapi.NewMessage(chatID, fmt.Sprintf("✅ Registered!\n\nWallet: %s\nMint: %s\nPool: %s\n\nWatching starts on the next poll.",
		shortAddress(subject.PublicKey), subject.TokenCA, subject.LPAddress)))

	if b.cfg.Telegram.PublicChannel != "" {
		announce := tgbotapi.NewMessage(parseChatID(b.cfg.Telegram.PublicChannel),
			fmt.Sprintf("📡 New wallet registered: %s now watching %s", shortAddress(subject.PublicKey), subject.TokenCA))
		b.send(announce)
	}
}

// Delete and toggle are keyed by the private key: possession of the key is
// the authorization, the same proof registration demands.
func (b *RegistrationBot) deleteWallet(chatID int64, text string) {
	defer b.resetSession(chatID)

	pub, err := registry.ValidatePrivateKey(text)
	if err != nil {
		log.LogDebug("Rejected private key during delete", zap.Error(err))
		b.send(tgbotapi.NewMessage(chatID, "That doesn't look like a valid private key."))
		return
	}
	removed, err := b.registry.DeleteByPublicKey(pub)
	if err != nil {
		log.LogError("Failed to delete subject", zap.Error(err))
		b.send(tgbotapi.NewMessage(chatID, "Failed to delete, please try again later."))
		return
	}
	if removed == 0 {
		b.send(tgbotapi.NewMessage(chatID, "No registered wallet for that key."))
		return
	}
	log.LogInfo("Subject deleted", zap.String("publicKey", pub), zap.Int("removed", removed))
	b.send(tgbotapi.NewMessage(chatID, fmt.Sprintf("Deleted %d registration(s) for %s.", removed, shortAddress(pub))))
}

func (b *RegistrationBot) toggleWallet(chatID int64, text string) {
	defer b.resetSession(chatID)

	pub, err := registry.ValidatePrivateKey(text)
	if err != nil {
		log.LogDebug("Rejected private key during toggle", zap.Error(err))
		b.send(tgbotapi.NewMessage(chatID, "That doesn't look like a valid private key."))
		return
	}
	toggled, err := b.registry.ToggleByPublicKey(pub)
	if err != nil {
		log.LogError("Failed to toggle subject", zap.Error(err))
		b.send(tgbotapi.NewMessage(chatID, "Failed to toggle, please try again later."))
		return
	}
	if toggled == 0 {
		b.send(tgbotapi.NewMessage(chatID, "No registered wallet for that key."))
		return
	}
	log.LogInfo("Subject toggled", zap.String("publicKey", pub), zap.Int("toggled", toggled))
	b.send(tgbotapi.NewMessage(chatID, fmt.Sprintf("Toggled %d registration(s) for %s.", toggled, shortAddress(pub))))
}

func (b *RegistrationBot) setStep(chatID int64, step chatStep) {
	b.mu.Lock()
	defer b.mu.Unlock()
	session, exists := b.sessions[chatID]
	if !exists {
		session = &pendingRegistration{}
		b.sessions[chatID] = session
	}
	*session = pendingRegistration{step: step}
}

func (b *RegistrationBot) resetSession(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, chatID)
}

func (b *RegistrationBot) send(c tgbotapi.Chattable) {
	if b.bot == nil {
		return
	}
	if _, err := b.bot.Send(c); err != nil {
		log.LogError("Failed to send telegram message", zap.Error(err))
	}
}

func shortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-6:]
}
