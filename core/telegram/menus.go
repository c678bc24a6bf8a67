package telegram

import (
	"strconv"

	"github.com/m3rciful/menus/core/session"
	"github.com/m3rciful/menus/core/transport"

	tele "gopkg.in/telebot.v4"
)

// InvocationFrom builds the menu invocation for the current update. Group
// chats double as the guild scope for occupancy caps.
func InvocationFrom(c tele.Context) transport.Invocation {
	var inv transport.Invocation
	if s := c.Sender(); s != nil {
		inv.UserID = s.ID
	}
	if ch := c.Chat(); ch != nil {
		inv.ChannelID = ch.ID
		if ch.ID < 0 {
			inv.GuildID = ch.ID
		}
	}
	if msg := c.Message(); msg != nil {
		inv.Message = transport.Message{ID: strconv.Itoa(msg.ID), ChannelID: inv.ChannelID}
	}
	return inv
}

// MenuBridge gates router updates into the menu transport while the sender
// has an active session in that chat. Wire it into router.TextRoutes so menu
// replies are consumed by the waiting menu instead of the command fallback.
type MenuBridge struct {
	Sessions  *session.Registry
	Transport *Transport
}

// InProgress reports whether the user is currently inside a menu in the chat.
func (b *MenuBridge) InProgress(userID, chatID int64) bool {
	if b == nil || b.Sessions == nil {
		return false
	}
	s := b.Sessions.Lookup(session.Key{UserID: userID, ChannelID: chatID})
	return s != nil && s.Active()
}

// HandleText forwards the text update to the menu transport.
func (b *MenuBridge) HandleText(c tele.Context) error {
	if b == nil || b.Transport == nil {
		return nil
	}
	return b.Transport.HandleText(c)
}
