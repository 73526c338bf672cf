package status

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/a-h/templ"

	"github.com/mbrock/tandem/internal/supervisor"
)

// StatusPage renders the HTML status view.
func StatusPage(snap supervisor.Snapshot) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>tandem</title>
<style>
  body { font-family: system-ui; max-width: 700px; margin: 2rem auto; padding: 0 1rem; }
  table { width: 100%%; border-collapse: collapse; }
  th, td { text-align: left; padding: 0.5rem; border-bottom: 1px solid #ddd; }
  .ok { color: #070; }
  .down { color: #a00; }
</style>
</head><body>
<h1>tandem</h1>
<p>port %d · %s · up since %s</p>
<table>
<tr><th>ROLE</th><th>COMMAND</th><th>PID</th><th>STATE</th><th>RESTARTS</th></tr>`,
			snap.Port, readiness(snap.Ready), snap.StartedAt.Format(time.RFC3339)); err != nil {
			return err
		}

		for _, c := range []supervisor.ChildStatus{snap.Primary, snap.Secondary} {
			if err := childRow(c).Render(ctx, w); err != nil {
				return err
			}
		}

		_, err := fmt.Fprint(w, `</table>
<p><a href="/processes">processes</a> · <a href="/history">history</a> · <a href="/healthz">healthz</a></p>
</body></html>`)
		return err
	})
}

// childRow renders one table row for a child process.
func childRow(c supervisor.ChildStatus) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		state := `<span class="down">exited`
		if c.ExitCode != nil {
			state += fmt.Sprintf(" (%d)", *c.ExitCode)
		}
		state += "</span>"
		if c.Running {
			state = `<span class="ok">running</span>`
		}
		_, err := fmt.Fprintf(w, `<tr><td>%s</td><td>%s</td><td>%d</td><td>%s</td><td>%d</td></tr>`,
			templ.EscapeString(c.Role), templ.EscapeString(c.Command), c.PID, state, c.Restarts)
		return err
	})
}

func readiness(ready bool) string {
	if ready {
		return "ready"
	}
	return "not ready"
}
