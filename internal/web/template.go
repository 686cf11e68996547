package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/climate-bridge/internal/accessory"
	"github.com/sweeney/climate-bridge/internal/logic"
	"github.com/sweeney/climate-bridge/internal/status"
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
	"occupancy": logic.OccupancyString,
	"value": func(v any) string {
		switch x := v.(type) {
		case bool:
			return fmt.Sprintf("%t", x)
		case float64:
			return fmt.Sprintf("%.1f", x)
		}
		return fmt.Sprint(v)
	},
	"mib": func(b uint64) string {
		return fmt.Sprintf("%.1f MiB", float64(b)/(1<<20))
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="10">
<title>Climate Bridge</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.active { color: green; font-weight: bold; }
.inactive { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Climate Bridge</h1>

<h2>Readings</h2>
<table>
{{if .HaveClimate}}<tr><th>Temperature</th><td id="temperature">{{printf "%.1f" .Temperature}} °C</td></tr>
<tr><th>Humidity</th><td id="humidity">{{printf "%.0f" .Humidity}} %</td></tr>
{{else}}<tr><th>Temperature</th><td id="temperature" class="unknown">no reading yet</td></tr>
{{end}}<tr><th>Sensor</th><td class="{{if .SensorOK}}connected{{else}}disconnected{{end}}">{{.Config.SensorDriver}} {{if .SensorOK}}ok{{else}}fault{{end}}</td></tr>
<tr><th>Occupancy</th><td id="occupancy" class="{{if .Reported}}{{occupancy .Occupancy}}{{else}}unknown{{end}}">{{if .Reported}}{{occupancy .Occupancy}}{{else}}unknown{{end}}</td></tr>
</table>

<h2>Characteristics</h2>
<table>
{{range .Characteristics}}<tr><th>{{.AccessoryID}}/{{.Characteristic}}</th><td>{{value .Value}}</td></tr>
{{end}}</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Observers</th><td id="observers">{{.Observers}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Counts</h2>
<table>
<tr><th>Reports</th><td>{{.Counts.Reports}}</td></tr>
<tr><th>Sensor faults</th><td>{{.Counts.SensorFaults}}</td></tr>
<tr><th>Diagnostics</th><td>{{.Counts.Diagnostics}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Free memory</th><td>{{mib .FreeMemory}}</td></tr>
<tr><th>Report</th><td>{{.Config.ReportMs}}ms</td></tr>
<tr><th>Diagnostics</th><td>{{.Config.DiagnosticsMs}}ms</td></tr>
<tr><th>Offset</th><td>{{.Config.TemperatureOffset}} °C</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/accessories.json">accessories</a> · <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot, chars []accessory.Event) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime          time.Duration
		Characteristics []accessory.Event
	}{
		Snapshot:        snap,
		Uptime:          snap.Uptime(),
		Characteristics: chars,
	}
	indexTmpl.Execute(w, data)
}
