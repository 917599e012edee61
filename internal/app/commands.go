package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	kit "timpbot/internal/transport"
	logx "timpbot/pkg/logx"
)

// commandLoop serves owner commands arriving over the telegram updates
// channel. Non-owners and non-commands are ignored.
func (a *App) commandLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-a.updates:
			if !ok {
				return
			}
			a.handleUpdate(ctx, up)
		}
	}
}

func (a *App) handleUpdate(ctx context.Context, up kit.Update) {
	msg := up.Message
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}

	a.mu.Lock()
	isOwner := len(a.owners) == 0 || a.owners[msg.FromID]
	a.mu.Unlock()
	if !isOwner {
		a.log.Debug("command from non-owner ignored",
			logx.Int64("from", msg.FromID),
			logx.String("cmd", text))
		return
	}

	cmd := strings.ToLower(strings.Fields(text)[0])
	// Strip a possible @botname suffix.
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}

	reply := func(s string) {
		target := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
		sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if _, err := a.adapter.SendText(sctx, target, s, &kit.SendOptions{DisablePreview: true}); err != nil {
			a.log.Warn("command reply failed", logx.Err(err))
		}
	}

	switch cmd {
	case "/status":
		reply(a.statusText())
	case "/next":
		t, err := a.booker.NextTrigger()
		if err != nil {
			reply(fmt.Sprintf("No trigger can be computed: %v", err))
			return
		}
		reply(fmt.Sprintf("⏰ Next attempt: %s", t.Format("Mon 2006-01-02 15:04:05 MST")))
	case "/book":
		a.booker.Kick()
		reply("🚀 Opening a booking window now")
	case "/help", "/start":
		reply("Commands:\n/status - current state\n/next - next trigger instant\n/book - open a booking window immediately")
	default:
		a.log.Debug("unknown command", logx.String("cmd", cmd))
	}
}

func (a *App) statusText() string {
	st := a.booker.Snapshot()

	var b strings.Builder
	b.WriteString("📋 Status\n")
	if !st.NextTrigger.IsZero() {
		fmt.Fprintf(&b, "Next trigger: %s\n", st.NextTrigger.Format("Mon 2006-01-02 15:04:05"))
	}
	if st.TargetDate != "" {
		fmt.Fprintf(&b, "Target date: %s\n", st.TargetDate)
	}
	outcome := st.LastOutcome
	if outcome == "" {
		outcome = "none yet"
	}
	fmt.Fprintf(&b, "Last outcome: %s\n", outcome)
	if st.LastTicketID != 0 {
		fmt.Fprintf(&b, "Last ticket: %d\n", st.LastTicketID)
	}
	fmt.Fprintf(&b, "Cycles: %d", st.Cycles)
	if st.DryRun {
		b.WriteString("\nMode: dry run")
	}
	if exp, known := a.session.ExpiresAt(); known {
		fmt.Fprintf(&b, "\nToken expires: %s", exp.Format(time.RFC3339))
	}
	if events := a.history.Recent(); len(events) > 0 {
		b.WriteString("\nRecent events:")
		for _, e := range events {
			fmt.Fprintf(&b, "\n  %s %s", e.Time.Format("15:04:05"), e.Type)
			if s, ok := e.Data.(string); ok && s != "" {
				fmt.Fprintf(&b, " (%s)", s)
			}
		}
	}
	return b.String()
}
