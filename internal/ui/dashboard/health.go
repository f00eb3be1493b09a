package dashboard

import (
	"context"
	"time"

	tea "charm.land/bubbletea/v2"
)

// healthTickCmd returns a tea.Cmd that fires a healthTickMsg after the given interval.
func healthTickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return healthTickMsg{}
	})
}

// healthCheckCmd pings every host. A host is online when its ping result is
// ok; hosts the engine did not report are offline.
func healthCheckCmd(ctx context.Context, exec Executor, hosts []string) tea.Cmd {
	return func() tea.Msg {
		status := make(map[string]bool, len(hosts))
		for _, h := range hosts {
			status[h] = false
		}
		run, err := exec.Ping(ctx, "all")
		if err != nil {
			return healthCheckMsg{Status: status, At: time.Now(), Err: err}
		}
		for _, r := range run.Results() {
			status[r.Host] = r.OK
		}
		return healthCheckMsg{Status: status, At: time.Now()}
	}
}
