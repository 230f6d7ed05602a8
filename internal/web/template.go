package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/lampd/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"stateOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	"stateClass": func(s string) string {
		switch s {
		case "ON":
			return "on"
		case "OFF":
			return "off"
		}
		return "unknown"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="10">
<title>Lamp</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.sos { background: #c00; color: white; padding: 0.5em 1em; }
</style>
</head>
<body>
<h1>Lamp</h1>
{{if .SafeMode}}<p class="sos">SAFE MODE: {{.SafeMode}}</p>{{end}}

<h2>State</h2>
<table>
<tr><th>Switch</th><td id="state" class="{{stateClass (printf "%s" .State)}}">{{stateOrUnknown (printf "%s" .State)}}</td></tr>
<tr><th>Window average</th><td>{{printf "%.2f" .Average}}</td></tr>
<tr><th>LED duty</th><td>{{printf "%.1f" .Duty}}%</td></tr>
<tr><th>Mode</th><td>{{.Config.Mode}}</td></tr>
<tr><th>Ready</th><td>{{if .Baselined}}yes{{else}}no{{end}}</td></tr>
<tr><th>Read errors</th><td>{{.ReadErrors}}</td></tr>
</table>

<h2>Model</h2>
<table>
{{if .Training}}<tr><th>Trained</th><td>{{.Training.At.UTC.Format "2006-01-02T15:04:05Z"}}{{if .Training.Err}} ({{.Training.Err}}){{end}}</td></tr>
<tr><th>Events</th><td>{{.Training.Stats.Events}}</td></tr>
<tr><th>Skipped</th><td>{{.Training.Stats.Skipped}}</td></tr>{{else}}<tr><th>Trained</th><td>never</td></tr>{{end}}
<tr><th>Window</th><td>{{.Config.WindowDays}} days</td></tr>
<tr><th>Interval</th><td>{{.Config.IntervalMinutes}} min</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
{{if .Backup}}<tr><th>Last backup</th><td>{{.Backup.At.UTC.Format "2006-01-02T15:04:05Z"}} {{.Backup.Remote}}{{if .Backup.Err}} ({{.Backup.Err}}){{end}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>LAMP ON</th><td>{{.Counts.On}}</td></tr>
<tr><th>LAMP OFF</th><td>{{.Counts.Off}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Run</th><td>{{.RunID}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Window</th><td>{{.Config.Capacity}} samples @ {{.Config.Threshold}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/model.json">Model</a> | <a href="/metrics">Metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
