package infrastructure

import (
	"context"
	"errors"
	"testing"

	"wagerledger/events"

	"github.com/bwmarrin/discordgo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedSender records embeds instead of calling discord
type fakeEmbedSender struct {
	ChannelIDs []string
	Embeds     []*discordgo.MessageEmbed
	SendError  error
}

func (f *fakeEmbedSender) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.SendError != nil {
		return nil, f.SendError
	}
	f.ChannelIDs = append(f.ChannelIDs, channelID)
	f.Embeds = append(f.Embeds, embed)
	return &discordgo.Message{}, nil
}

func TestDiscordAnnouncer_IsBigWin(t *testing.T) {
	announcer := NewDiscordAnnouncer(&fakeEmbedSender{}, "chan", decimal.NewFromInt(100))

	tests := []struct {
		name       string
		payout     string
		multiplier string
		want       bool
	}{
		{"above threshold", "250", "250", true},
		{"at threshold", "100", "100", true},
		{"below threshold", "99", "99", false},
		{"lost round", "0", "0", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := events.RoundSettledEvent{
				Payout:     decimal.RequireFromString(tt.payout),
				Multiplier: decimal.RequireFromString(tt.multiplier),
			}
			assert.Equal(t, tt.want, announcer.IsBigWin(event))
		})
	}
}

func TestDiscordAnnouncer_Handle(t *testing.T) {
	sender := &fakeEmbedSender{}
	announcer := NewDiscordAnnouncer(sender, "announce-channel", decimal.NewFromInt(100))

	event := testSettledEvent()
	announcer.Handle(context.Background(), event)

	require.Len(t, sender.Embeds, 1)
	assert.Equal(t, "announce-channel", sender.ChannelIDs[0])
	embed := sender.Embeds[0]
	assert.Equal(t, colorBigWin, embed.Color)
	assert.Contains(t, embed.Description, "limbo")
	assert.Contains(t, embed.Description, "250x")
	assert.Contains(t, embed.Footer.Text, event.RoundID.String())
}

func TestDiscordAnnouncer_Handle_Ignored(t *testing.T) {
	sender := &fakeEmbedSender{}
	announcer := NewDiscordAnnouncer(sender, "announce-channel", decimal.NewFromInt(1000))

	// Below threshold
	announcer.Handle(context.Background(), testSettledEvent())
	// Wrong event type
	announcer.Handle(context.Background(), events.SeedRotatedEvent{RevealedSeedPairID: 1})

	assert.Empty(t, sender.Embeds)
}

func TestDiscordAnnouncer_Handle_SendError(t *testing.T) {
	sender := &fakeEmbedSender{SendError: errors.New("missing access")}
	announcer := NewDiscordAnnouncer(sender, "announce-channel", decimal.NewFromInt(100))

	assert.NotPanics(t, func() {
		announcer.Handle(context.Background(), testSettledEvent())
	})
}
