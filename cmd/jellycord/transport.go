package main

import (
	"context"
	"fmt"
	"log/slog"

	"tools.zach/dev/jellycord/internal/discord"
	"tools.zach/dev/jellycord/internal/presence"
)

// connector is the part of [discord.Client] needed to (re)connect.
type connector interface {
	Connect() error
}

// presenceClient is the part of [discord.Client] the transport drives.
type presenceClient interface {
	connector
	Connected() bool
	User() string
	SetActivity(*discord.Activity) error
	ClearActivity() error
}

// ///////////////////////////////////////////////
// Discord Transport
// ///////////////////////////////////////////////

// discordTransport publishes reconcile output over Discord IPC. A dropped
// connection is re-established once per call, so Discord restarts recover on
// the next tick.
type discordTransport struct {
	client presenceClient
}

// Push implements reconcile.Transport.
func (t *discordTransport) Push(_ context.Context, a *presence.Activity) error {
	if err := t.ensureConnected(); err != nil {
		return err
	}
	return t.client.SetActivity(toDiscordActivity(a))
}

// Clear implements reconcile.Transport.
func (t *discordTransport) Clear(_ context.Context) error {
	if err := t.ensureConnected(); err != nil {
		return err
	}
	return t.client.ClearActivity()
}

func (t *discordTransport) ensureConnected() error {
	if t.client.Connected() {
		return nil
	}
	slog.Warn("Discord disconnected, attempting reconnect")
	if err := t.client.Connect(); err != nil {
		return fmt.Errorf("reconnect: %w", err)
	}
	slog.Info("reconnected to Discord", "user", t.client.User())
	return nil
}

// ///////////////////////////////////////////////
// Activity Mapping
// ///////////////////////////////////////////////

// activityType picks the verb Discord shows: "Listening to" for music,
// "Watching" for video.
func activityType(largeKey string) discord.ActivityType {
	switch largeKey {
	case presence.KeyMusic:
		return discord.ActivityListening
	case presence.KeyMovie, presence.KeyEpisode:
		return discord.ActivityWatching
	default:
		return discord.ActivityPlaying
	}
}

// toDiscordActivity converts a [presence.Activity] into the [discord.Activity]
// wire type, omitting empty optional sections.
func toDiscordActivity(a *presence.Activity) *discord.Activity {
	if a == nil {
		return nil
	}
	da := &discord.Activity{
		Type:    activityType(a.Assets.LargeKey),
		Details: a.Details,
		State:   a.State,
	}
	if a.HasCountdown() {
		da.Timestamps = &discord.Timestamps{
			Start: a.Timestamps.Start,
			End:   a.Timestamps.End,
		}
	}
	large := a.Assets.LargeImageRef()
	if large != "" || a.Assets.LargeText != "" || a.Assets.SmallImage != "" || a.Assets.SmallText != "" {
		da.Assets = &discord.Assets{
			LargeImage: large,
			LargeText:  a.Assets.LargeText,
			SmallImage: a.Assets.SmallImage,
			SmallText:  a.Assets.SmallText,
		}
	}
	for _, b := range a.Buttons {
		da.Buttons = append(da.Buttons, discord.Button{
			Label: b.Label,
			URL:   b.URL,
		})
	}
	return da
}
