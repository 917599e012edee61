package app

import (
	"context"
	"time"

	sdaemon "github.com/coreos/go-systemd/v22/daemon"

	logx "timpbot/pkg/logx"
)

// systemdLoop tells systemd we are ready and keeps the watchdog fed. Outside
// a systemd unit both calls are cheap no-ops.
func (a *App) systemdLoop(ctx context.Context) {
	if sent, err := sdaemon.SdNotify(false, sdaemon.SdNotifyReady); err != nil {
		a.log.Debug("sd_notify ready failed", logx.Err(err))
	} else if sent {
		a.log.Info("notified systemd: ready")
	}

	interval, err := sdaemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		<-ctx.Done()
		a.sdStopping()
		return
	}

	// Ping at half the watchdog interval, as systemd recommends.
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			a.sdStopping()
			return
		case <-ticker.C:
			_, _ = sdaemon.SdNotify(false, sdaemon.SdNotifyWatchdog)
		}
	}
}

func (a *App) sdStopping() {
	_, _ = sdaemon.SdNotify(false, sdaemon.SdNotifyStopping)
}
