// Package flow drives the multi-step watch-selection dialog
// (location -> date -> session) and the list/spaces/cancel commands.
// The controller holds no timers and does no background work; every
// transition is triggered by an inbound user event.
package flow

import (
	"context"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"classwatch/internal/booking"
	"classwatch/internal/transport"
	"classwatch/internal/watch"
	"classwatch/pkg/logx"
	"classwatch/pkg/tgui"
)

// Querier is the booking source contract the flow needs.
type Querier interface {
	Query(ctx context.Context, loc booking.Location, isoDate string) ([]booking.ClassSession, error)
}

type Controller struct {
	store   *watch.Store
	client  Querier
	adapter transport.Adapter
	log     logx.Logger

	now func() time.Time
}

func New(store *watch.Store, client Querier, adapter transport.Adapter, log logx.Logger) *Controller {
	return &Controller{
		store:   store,
		client:  client,
		adapter: adapter,
		log:     log,
		now:     time.Now,
	}
}

// Commands lists the command menu entries the bot publishes.
func (c *Controller) Commands() []transport.BotCommand {
	return []transport.BotCommand{
		{Command: "watch", Description: "Watch a class for seat changes"},
		{Command: "list", Description: "List your watched classes"},
		{Command: "spaces", Description: "Show watched classes with free spaces"},
		{Command: "cancel", Description: "Stop watching a class"},
	}
}

// HandleUpdate dispatches one inbound transport update. It never
// returns an error: user-facing failures are replied to the user,
// operational ones are logged.
func (c *Controller) HandleUpdate(ctx context.Context, up transport.Update) {
	switch up.Kind {
	case transport.UpdateMessage:
		if up.Message != nil {
			c.handleCommand(ctx, up.Message)
		}
	case transport.UpdateCallback:
		if up.Callback != nil {
			c.handleCallback(ctx, up.Callback)
		}
	}
}

func (c *Controller) handleCommand(ctx context.Context, m *transport.Message) {
	text := strings.TrimSpace(m.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}
	cmd := strings.Fields(text)[0]
	cmd = strings.TrimPrefix(cmd, "/")
	// Group chats address commands as /watch@botname.
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}

	switch cmd {
	case "start":
		c.reply(ctx, m.ChatID, "Welcome! Use /watch to start watching a class for seat availability changes.", nil)
	case "watch":
		c.cmdWatch(ctx, m.ChatID)
	case "list":
		c.cmdList(ctx, m.ChatID)
	case "spaces":
		c.cmdSpaces(ctx, m.ChatID)
	case "cancel":
		c.cmdCancel(ctx, m.ChatID)
	default:
		// Unknown commands are not ours to answer.
	}
}

// ---- commands ----

func (c *Controller) cmdWatch(ctx context.Context, chatID int64) {
	btns := make([]tele.Btn, 0, len(booking.Locations()))
	for _, loc := range booking.Locations() {
		data := encodeStep(locationStep{T: tagLocation, Loc: string(loc)})
		btns = append(btns, tgui.Btn(loc.DisplayName(), data))
	}
	c.reply(ctx, chatID, "Select an outlet.", markdownWith(tgui.Grid(2, btns)))
}

func (c *Controller) cmdList(ctx context.Context, chatID int64) {
	list := c.store.ListByUser(chatID)
	if len(list) == 0 {
		c.reply(ctx, chatID, "You're not watching any classes!", nil)
		return
	}
	c.reply(ctx, chatID, fmt.Sprintf("No. of Watched Classes: *%d*", len(list)), markdown())
	for _, e := range list {
		c.reply(ctx, chatID, e.Summary(), markdown())
	}
}

func (c *Controller) cmdSpaces(ctx context.Context, chatID int64) {
	list := c.store.ListByUser(chatID)
	if len(list) == 0 {
		c.reply(ctx, chatID, "You're not watching any classes!", nil)
		return
	}
	c.reply(ctx, chatID, fmt.Sprintf("No. of Watched Classes: *%d*", len(list)), markdown())

	var open []watch.Entry
	for _, e := range list {
		if e.Session.Spaces > 0 {
			open = append(open, e)
		}
	}
	c.reply(ctx, chatID, fmt.Sprintf("No. of Full Sessions: *%d*\nNo. of Sessions with Spaces: *%d*",
		len(list)-len(open), len(open)), markdown())

	if len(open) == 0 {
		c.reply(ctx, chatID, "Sorry! All sessions are *full* at the moment :(", markdown())
		return
	}
	for _, e := range open {
		c.reply(ctx, chatID, e.Summary(), markdown())
	}
}

func (c *Controller) cmdCancel(ctx context.Context, chatID int64) {
	list := c.store.ListByUser(chatID)
	if len(list) == 0 {
		c.reply(ctx, chatID, "You're not watching any classes!", nil)
		return
	}
	btns := make([]tele.Btn, 0, len(list))
	for _, e := range list {
		label := fmt.Sprintf("[%s/%s-%s] %s", e.Date[5:7], e.Date[8:10], e.Location, e.Session.Label())
		data := encodeStep(cancelStep{T: tagCancel, ChatID: e.ChatID, BookingID: e.Session.BookingID})
		btns = append(btns, tgui.Btn(label, data))
	}
	c.reply(ctx, chatID, "Select a class to stop watching.", markdownWith(tgui.Grid(1, btns)))
}

// ---- callback steps ----

func (c *Controller) handleCallback(ctx context.Context, cb *transport.Callback) {
	// Always acknowledge so the client stops its spinner, even for
	// payloads we end up ignoring.
	if err := c.adapter.AnswerCallback(ctx, cb.ID, ""); err != nil {
		c.log.Debug("answer callback failed", logx.Err(err))
	}

	step, err := decodeStep(cb.Data)
	if err != nil {
		c.log.Warn("ignoring malformed callback payload", logx.Err(err), logx.Int64("chat_id", cb.ChatID))
		return
	}

	switch st := step.(type) {
	case locationStep:
		c.onLocation(ctx, cb.ChatID, st)
	case dateStep:
		c.onDate(ctx, cb.ChatID, st)
	case sessionStep:
		c.onSession(ctx, cb.ChatID, st)
	case cancelStep:
		c.onCancel(ctx, cb.ChatID, st)
	}
}

func (c *Controller) onLocation(ctx context.Context, chatID int64, st locationStep) {
	loc := booking.Location(st.Loc)
	if !loc.Valid() {
		c.log.Warn("ignoring callback with unknown location", logx.String("loc", st.Loc))
		return
	}
	dates := booking.UpcomingDates(c.now())
	btns := make([]tele.Btn, 0, len(dates))
	for _, d := range dates {
		iso := booking.FormatISODate(d)
		label := d.Format("2006-01-02 (Mon)")
		data := encodeStep(dateStep{T: tagDate, Date: iso, Loc: st.Loc})
		btns = append(btns, tgui.Btn(label, data))
	}
	text := fmt.Sprintf("Select a date for *%s*.", loc.DisplayName())
	c.reply(ctx, chatID, text, markdownWith(tgui.Grid(2, btns)))
}

func (c *Controller) onDate(ctx context.Context, chatID int64, st dateStep) {
	loc := booking.Location(st.Loc)
	if !loc.Valid() || !booking.ValidISODate(st.Date) {
		c.log.Warn("ignoring callback with invalid date step",
			logx.String("loc", st.Loc), logx.String("date", st.Date))
		return
	}

	sessions, err := c.client.Query(ctx, loc, st.Date)
	if err != nil || len(sessions) == 0 {
		// Deliberately the same user-facing answer for "no classes"
		// and "query failed"; the distinction only goes to the log.
		if err != nil {
			c.log.Warn("session query failed during date selection",
				logx.String("site", st.Loc), logx.String("date", st.Date), logx.Err(err))
		}
		text := fmt.Sprintf("No sessions available for *%s*.\n\nClasses may not have been released for that day yet.", st.Date)
		c.reply(ctx, chatID, text, markdown())
		return
	}

	btns := make([]tele.Btn, 0, len(sessions))
	for _, s := range sessions {
		label := fmt.Sprintf("%d - %s", s.Spaces, s.Label())
		data := encodeStep(sessionStep{T: tagSession, MonthDay: st.Date[5:], Loc: st.Loc, BookingID: s.BookingID})
		btns = append(btns, tgui.Btn(label, data))
	}
	text := fmt.Sprintf("Select a session on *%s*.", st.Date)
	c.reply(ctx, chatID, text, markdownWith(tgui.Grid(2, btns)))
}

func (c *Controller) onSession(ctx context.Context, chatID int64, st sessionStep) {
	loc := booking.Location(st.Loc)
	if !loc.Valid() {
		c.log.Warn("ignoring callback with unknown location", logx.String("loc", st.Loc))
		return
	}
	isoDate, err := booking.CompleteDate(st.MonthDay, c.now())
	if err != nil {
		c.log.Warn("ignoring callback with invalid session step", logx.Err(err))
		return
	}

	// Re-query for the authoritative current record rather than
	// trusting whatever the button was built from.
	sessions, err := c.client.Query(ctx, loc, isoDate)
	if err != nil {
		c.log.Warn("session query failed during commit",
			logx.String("site", st.Loc), logx.String("date", isoDate), logx.Err(err))
		c.reply(ctx, chatID, booking.Describe(err), nil)
		return
	}

	var fresh *booking.ClassSession
	for i := range sessions {
		if sessions[i].BookingID == st.BookingID {
			fresh = &sessions[i]
			break
		}
	}
	if fresh == nil {
		c.reply(ctx, chatID, "Class not found.", nil)
		return
	}

	entry := c.store.Add(chatID, isoDate, loc, *fresh)
	c.reply(ctx, chatID, "*Watching...*\n\n"+entry.Summary(), markdown())
}

func (c *Controller) onCancel(ctx context.Context, chatID int64, st cancelStep) {
	removed := c.store.RemoveByUserAndBooking(st.ChatID, st.BookingID)
	c.log.Info("watch cancelled",
		logx.Int64("chat_id", st.ChatID),
		logx.Int64("booking_id", st.BookingID),
		logx.Int("removed", removed),
	)
	c.reply(ctx, chatID, "Class has been unwatched.", nil)
}

// ---- reply helpers ----

func (c *Controller) reply(ctx context.Context, chatID int64, text string, opt *transport.SendOptions) {
	if _, err := c.adapter.SendText(ctx, transport.ChatTarget{ChatID: chatID}, text, opt); err != nil {
		c.log.Warn("reply failed", logx.Int64("chat_id", chatID), logx.Err(err))
	}
}

func markdown() *transport.SendOptions {
	return &transport.SendOptions{ParseMode: "Markdown"}
}

func markdownWith(rm *tele.ReplyMarkup) *transport.SendOptions {
	return &transport.SendOptions{ParseMode: "Markdown", ReplyMarkupAdapter: rm}
}
