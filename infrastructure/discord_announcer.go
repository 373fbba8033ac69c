package infrastructure

import (
	"context"
	"fmt"

	"wagerledger/events"

	"github.com/bwmarrin/discordgo"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const colorBigWin = 0xFEE75C // Gold

// EmbedSender is the part of a discord session the announcer needs
type EmbedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordAnnouncer posts settled rounds at or above a multiplier to a channel
type DiscordAnnouncer struct {
	sender    EmbedSender
	channelID string
	threshold decimal.Decimal
}

// NewDiscordAnnouncer creates an announcer over an open session
func NewDiscordAnnouncer(sender EmbedSender, channelID string, threshold decimal.Decimal) *DiscordAnnouncer {
	return &DiscordAnnouncer{
		sender:    sender,
		channelID: channelID,
		threshold: threshold,
	}
}

// OpenDiscordSession opens a bot session used only for sending messages
func OpenDiscordSession(token string) (*discordgo.Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds

	if err := dg.Open(); err != nil {
		return nil, fmt.Errorf("error opening connection: %w", err)
	}
	return dg, nil
}

// Register subscribes the announcer to settled rounds
func (a *DiscordAnnouncer) Register(bus *events.Bus) {
	bus.Subscribe(events.EventTypeRoundSettled, a.Handle)
}

// Handle is an events.Handler for RoundSettledEvent
func (a *DiscordAnnouncer) Handle(_ context.Context, event events.Event) {
	settled, ok := event.(events.RoundSettledEvent)
	if !ok || !a.IsBigWin(settled) {
		return
	}

	if _, err := a.sender.ChannelMessageSendEmbed(a.channelID, buildBigWinEmbed(settled)); err != nil {
		log.WithFields(log.Fields{
			"roundID":   settled.RoundID,
			"channelID": a.channelID,
		}).WithError(err).Error("Failed to announce big win")
		return
	}

	log.WithFields(log.Fields{
		"roundID":    settled.RoundID,
		"multiplier": settled.Multiplier.String(),
	}).Info("Announced big win")
}

// IsBigWin reports whether a round paid at least the threshold multiplier
func (a *DiscordAnnouncer) IsBigWin(e events.RoundSettledEvent) bool {
	return e.Payout.IsPositive() && e.Multiplier.GreaterThanOrEqual(a.threshold)
}

func buildBigWinEmbed(e events.RoundSettledEvent) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Big win!",
		Description: fmt.Sprintf("A **%s** round paid **%sx**", e.GameType, e.Multiplier.String()),
		Color:       colorBigWin,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Stake", Value: fmt.Sprintf("%s %s", e.Stake.String(), e.Asset), Inline: true},
			{Name: "Payout", Value: fmt.Sprintf("%s %s", e.Payout.String(), e.Asset), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Round %s", e.RoundID)},
	}
}
