// Package api provides handlers for external APIs and interfaces
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/abelzeko/waterwatch/internal/entities"
	"github.com/abelzeko/waterwatch/internal/usecases"
)

const historyLimit = 5

// RiverService is the part of the river use case the bot talks to
type RiverService interface {
	CurrentSnapshot(ctx context.Context) (*entities.Snapshot, error)
	ManualRefresh(ctx context.Context) (*entities.Snapshot, error)
	StationHistory(ctx context.Context, location string, limit int) ([]entities.LevelRecord, error)
}

// TelegramBot handles interactions with the Telegram API
type TelegramBot struct {
	bot     *tgbotapi.BotAPI
	useCase RiverService
	logger  *slog.Logger
}

// NewTelegramBot creates a new Telegram bot handler
func NewTelegramBot(botToken string, useCase RiverService, logger *slog.Logger) (*TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &TelegramBot{
		bot:     bot,
		useCase: useCase,
		logger:  logger.With("component", "telegram"),
	}, nil
}

// Start listens for Telegram messages until ctx is cancelled
func (t *TelegramBot) Start(ctx context.Context) {
	t.logger.Info("authorized on telegram", "account", t.bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := t.bot.GetUpdatesChan(u)
	defer t.bot.StopReceivingUpdates()
	t.logger.Info("bot is now listening for messages")

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}

			t.logger.Debug("received message",
				"user", update.Message.From.UserName,
				"user_id", update.Message.From.ID,
				"text", update.Message.Text)

			t.handleMessage(ctx, update)
		}
	}
}

// handleMessage processes a Telegram message update
func (t *TelegramBot) handleMessage(ctx context.Context, update tgbotapi.Update) {
	msg := tgbotapi.NewMessage(update.Message.Chat.ID, "")

	if update.Message.IsCommand() {
		msg.Text = t.handleCommand(ctx, update.Message.Command(), update.Message.CommandArguments())
	} else {
		msg.Text = "I don't understand. Use /help to see available commands."
	}

	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Error("error sending message", "user", update.Message.From.UserName, "error", err)
	}
}

// handleCommand builds the reply to /start, /help, etc.
func (t *TelegramBot) handleCommand(ctx context.Context, command, args string) string {
	t.logger.Debug("handling command", "command", command, "args", args)

	switch command {
	case "start":
		return "Welcome to WaterWatch! Use /levels to see the current Savinja gauges or /help for more information."

	case "help":
		return "Available commands:\n" +
			"/start - Start the bot\n" +
			"/levels - Show current water levels\n" +
			"/station [name] - Show one station with recent history\n" +
			"/refresh - Fetch new readings now\n" +
			"/help - Show this help message"

	case "levels":
		return t.handleLevelsCommand(ctx)

	case "station":
		return t.handleStationCommand(ctx, strings.TrimSpace(args))

	case "refresh":
		return t.handleRefreshCommand(ctx)

	default:
		return "Unknown command. Use /help to see available commands."
	}
}

func (t *TelegramBot) handleLevelsCommand(ctx context.Context) string {
	snap, err := t.useCase.CurrentSnapshot(ctx)
	if err != nil {
		t.logger.Error("error fetching readings", "error", err)
		return "Error fetching river data. Please try again later."
	}
	return usecases.FormatSnapshot(snap)
}

func (t *TelegramBot) handleStationCommand(ctx context.Context, name string) string {
	if name == "" {
		return "Please specify a station name. Example: /station Celje"
	}

	snap, err := t.useCase.CurrentSnapshot(ctx)
	if err != nil {
		t.logger.Error("error fetching readings", "error", err)
		return "Error fetching river data. Please try again later."
	}

	reading, ok := snap.Find(name)
	if !ok {
		return fmt.Sprintf("No information found for station '%s'. Use /levels to see the available stations.", name)
	}

	var response strings.Builder
	response.WriteString(usecases.FormatReading(reading))

	history, err := t.useCase.StationHistory(ctx, reading.Location, historyLimit)
	switch {
	case err != nil:
		t.logger.Warn("error loading station history", "station", reading.Location, "error", err)
	case len(history) > 0:
		response.WriteString("\n")
		response.WriteString(usecases.FormatHistory(reading.Location, history))
	}
	return response.String()
}

func (t *TelegramBot) handleRefreshCommand(ctx context.Context) string {
	snap, err := t.useCase.ManualRefresh(ctx)
	if err != nil {
		t.logger.Error("manual refresh failed", "error", err)
		if snap != nil && !errors.Is(err, context.Canceled) {
			return "Refresh failed, showing the last known readings.\n\n" + usecases.FormatSnapshot(snap)
		}
		return "Refresh failed. Please try again later."
	}
	return usecases.FormatSnapshot(snap)
}
