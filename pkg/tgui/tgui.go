// Package tgui holds small helpers for building Telegram inline
// keyboards out of platform-neutral button lists.
package tgui

import (
	tele "gopkg.in/telebot.v4"
)

// Btn creates a callback button with raw callback_data. Telegram caps
// callback_data at 64 bytes; callers are responsible for keeping
// payloads compact.
func Btn(text, data string) tele.Btn {
	return tele.Btn{Text: text, Data: data}
}

// Grid splits buttons into rows of the given width and returns a ready
// inline keyboard markup.
func Grid(cols int, buttons []tele.Btn) *tele.ReplyMarkup {
	if cols <= 0 {
		cols = 1
	}
	rm := &tele.ReplyMarkup{}
	rows := rm.Split(cols, buttons)
	rm.Inline(rows...)
	return rm
}
