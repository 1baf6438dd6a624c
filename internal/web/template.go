package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/irrigation-controller/internal/status"
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
	"stateClass": func(s string) string {
		switch s {
		case "WATERING":
			return "on"
		case "FAULT":
			return "fault"
		case "RECOVERY", "INIT":
			return "unknown"
		}
		return "off"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Irrigation Controller</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.fault { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Irrigation Controller</h1>

<h2>State</h2>
<table>
<tr><th>State</th><td id="state" class="{{stateClass .State}}">{{.State}}</td></tr>
<tr><th>Pump</th><td id="pump" class="{{if .Control.PumpOn}}on{{else}}off{{end}}">{{if .Control.PumpOn}}ON{{else}}OFF{{end}}</td></tr>
<tr><th>Moisture</th><td id="moisture">{{.Control.Moisture}}</td></tr>
<tr><th>Fault</th><td class="{{if .Control.FaultFlag}}fault{{else}}off{{end}}">{{if .Control.FaultFlag}}{{.Control.LastFaultCode}}{{else}}none{{end}}</td></tr>
<tr><th>Last fault</th><td>{{.Control.LastFaultCode}}</td></tr>
<tr><th>Faults</th><td>{{.Control.FaultCount}}</td></tr>
</table>

<h2>Timing</h2>
<table>
<tr><th>Cycles</th><td>{{.Control.Cycles}}</td></tr>
<tr><th>Sample time</th><td>{{.Control.SampleTime}}us (max {{.Control.MaxSampleTime}}us)</td></tr>
<tr><th>Lateness</th><td>{{.Control.Lateness}}us</td></tr>
<tr><th>Schedule misses</th><td>{{.Control.ScheduleMisses}}</td></tr>
<tr><th>Budget misses</th><td>{{.Control.BudgetMisses}}</td></tr>
<tr><th>Actuator errors</th><td>{{.Control.ActuatorErrors}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Period</th><td>{{.Config.PeriodMs}}ms</td></tr>
<tr><th>Read budget</th><td>{{.Config.BudgetUs}}us</td></tr>
<tr><th>Valid range</th><td>{{.Config.ValidMin}}..{{.Config.ValidMax}}</td></tr>
<tr><th>Dry threshold</th><td>{{.Config.DryThreshold}}</td></tr>
<tr><th>Max pump on</th><td>{{.Config.MaxPumpOnMs}}ms</td></tr>
<tr><th>Catch-up</th><td>{{.Config.CatchUp}}</td></tr>
<tr><th>Pump pins</th><td>{{range $i, $p := .Config.PumpPins}}{{if $i}}, {{end}}{{$p}}{{end}}</td></tr>
<tr><th>Sensor</th><td>{{.Config.SensorPort}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/healthz">health</a> | <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		State  string
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		State:    snap.Control.State.String(),
	}
	indexTmpl.Execute(w, data)
}
