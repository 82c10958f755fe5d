package web

import (
	"fmt"
	"html/template"
)

const layoutHTML = `{{define "head"}}<!DOCTYPE html>
<html><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body{font-family:sans-serif;max-width:28rem;margin:2rem auto;padding:0 1rem}
button{margin:.2rem;padding:.5rem 1rem}
.swatch{display:inline-block;width:1rem;height:1rem;border-radius:50%;vertical-align:middle}
</style></head><body>{{end}}
{{define "foot"}}</body></html>{{end}}`

const controlHTML = `{{define "control.html"}}{{template "head" .}}
<h1>Ok-to-wake light</h1>
<p>Color: <span id="color">{{.State.Color}}</span> &middot; brightness <span id="brightness">{{.State.Brightness}}</span>%
{{if .State.Manual}}&middot; <em id="manual">manual</em>{{else}}<em id="manual"></em>{{end}}</p>
<div>{{range .Colors}}<button onclick="setColor('{{.}}')">{{.}}</button>{{end}}</div>
<p><input id="bri" type="range" min="0" max="100" value="{{.State.Brightness}}" onchange="setBrightness(this.value)"></p>
<form onsubmit="setWindows();return false">
<input id="windows" value="{{.Windows}}" placeholder="07:00-09:00,22:00-06:00"> <button>Save</button>
<button type="button" onclick="call('DELETE','/api/windows')">Clear</button>
</form>
<p><button onclick="call('POST','/api/manual',{enabled:false})">Follow schedule</button></p>
<p><small>{{.Version}}</small></p>
<script>
const apiKey = {{.APIKey}};
function call(method, path, body) {
  const h = {'Content-Type': 'application/json'};
  if (apiKey) h['X-API-Key'] = apiKey;
  return fetch(path, {method, headers: h, body: body ? JSON.stringify(body) : undefined});
}
function setColor(c) { call('POST', '/api/color', {color: c}); }
function setBrightness(p) { call('POST', '/api/brightness', {percent: parseInt(p, 10)}); }
function setWindows() { call('PUT', '/api/windows', {windows: document.getElementById('windows').value}); }
const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
ws.onmessage = (m) => {
  const e = JSON.parse(m.data);
  if (e.type === 'color_changed') document.getElementById('color').textContent = e.data.color;
  if (e.type === 'brightness_changed') document.getElementById('brightness').textContent = e.data.percent;
  if (e.type === 'manual_override') document.getElementById('manual').textContent = e.data.enabled ? 'manual' : '';
  if (e.type === 'schedule_changed') document.getElementById('windows').value = (e.data.windows || []).join(',');
};
</script>
{{template "foot" .}}{{end}}`

const portalHTML = `{{define "portal.html"}}{{template "head" .}}
<h1>Choose WiFi Network</h1>
<form action="/save" method="POST">
<p>SSID: <select name="ssid">
{{range .Networks}}<option value="{{.SSID}}">{{.SSID}} ({{.SignalDBm}} dBm{{if not .Secured}}, open{{end}})</option>
{{else}}<option value="">No networks found</option>
{{end}}</select></p>
<p>Password: <input type="password" name="password"></p>
<p><input type="submit" value="Connect"></p>
</form>
{{template "foot" .}}{{end}}`

func parsePages() (*template.Template, error) {
	t := template.New("pages")
	for _, src := range []string{layoutHTML, controlHTML, portalHTML} {
		if _, err := t.Parse(src); err != nil {
			return nil, fmt.Errorf("parse pages: %w", err)
		}
	}
	return t, nil
}
