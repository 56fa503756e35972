package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "restockbot/pkg/logx"
)

// notifyReady tells systemd the relay is up. Outside a systemd unit (no
// NOTIFY_SOCKET) this is a no-op.
func notifyReady(log logx.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		log.Warn("sd_notify failed", logx.Err(err))
		return
	}
	if sent {
		log.Debug("notified systemd: ready")
	}
}

func notifyStopping(log logx.Logger) {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
}

// runWatchdog pings the systemd watchdog at half the configured interval.
// Returns immediately when the watchdog is not enabled for this unit.
func runWatchdog(ctx context.Context, log logx.Logger) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		log.Warn("watchdog detection failed", logx.Err(err))
		return
	}
	if interval <= 0 {
		return
	}

	tick := time.NewTicker(interval / 2)
	defer tick.Stop()
	log.Info("systemd watchdog enabled", logx.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
				log.Warn("watchdog ping failed", logx.Err(err))
			}
		}
	}
}
