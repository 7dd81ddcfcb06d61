// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the built-in signaling test page.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Rooms       int    `json:"rooms"`
}

// WebSocketHandler handles WebSocket upgrade requests. It validates that the
// request uses the GET method, upgrades the HTTP connection, and registers a
// new Client with the hub, which starts the client's read/write pumps.
func WebSocketHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := hub.upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}

		client := NewClient(conn, hub, r.RemoteAddr)
		if !hub.Register(client) {
			client.closeConnection()
		}
	}
}

// HealthHandler reports liveness together with the relay's connection and
// room counts.
func HealthHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		stats := hub.Relay().Stats()
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(HealthResponse{
			Status:      "ok",
			Connections: stats.Connections,
			Rooms:       stats.Rooms,
		}); err != nil {
			hub.logger.Warn("error writing health response", "error", err)
		}
	}
}

// TestPageHandler serves an HTML page for exercising the relay by hand: join
// a room, set a name, chat, and send raw signals to a peer.
func TestPageHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/test" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprint(w, testPageHTML)
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Room Relay Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #log {
            border: 1px solid #ccc;
            height: 320px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
            font-family: monospace;
            white-space: pre-wrap;
        }
        input[type="text"] { width: 220px; padding: 5px; margin-right: 6px; }
        button { padding: 5px 12px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        button:hover { background-color: #005a87; }
        .row { margin: 6px 0; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>Room Relay Test</h1>
    <div id="status" class="status disconnected">Disconnected</div>
    <div class="row">
        <button id="connectButton" onclick="toggleConnection()">Connect</button>
        <span id="self"></span>
    </div>
    <div class="row">
        <input type="text" id="room" placeholder="room id">
        <button onclick="emit('join', val('room'))">Join</button>
        <button onclick="emit('leave', val('room'))">Leave</button>
    </div>
    <div class="row">
        <input type="text" id="name" placeholder="display name">
        <button onclick="emit('set-user-name', {userName: val('name')})">Set name</button>
    </div>
    <div class="row">
        <input type="text" id="chat" placeholder="message">
        <button onclick="emit('chat-message', {text: val('chat'), timestamp: Date.now()})">Send</button>
    </div>
    <div class="row">
        <input type="text" id="peer" placeholder="peer socket id">
        <input type="text" id="signal" placeholder='{"type":"offer","sdp":"..."}'>
        <button onclick="sendSignal()">Signal</button>
    </div>
    <div id="log"></div>

    <script>
        let ws = null;
        const logDiv = document.getElementById('log');
        const statusDiv = document.getElementById('status');
        const connectButton = document.getElementById('connectButton');

        function val(id) { return document.getElementById(id).value.trim(); }

        function log(line) {
            const el = document.createElement('div');
            el.textContent = line;
            logDiv.appendChild(el);
            logDiv.scrollTop = logDiv.scrollHeight;
        }

        function updateStatus(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            connectButton.textContent = connected ? 'Disconnect' : 'Connect';
            if (!connected) { document.getElementById('self').textContent = ''; }
        }

        function emit(event, data) {
            if (!ws || ws.readyState !== WebSocket.OPEN) { log('not connected'); return; }
            ws.send(JSON.stringify({event: event, data: data}));
            log('> ' + event + ' ' + JSON.stringify(data));
        }

        function sendSignal() {
            let data;
            try { data = JSON.parse(val('signal')); } catch (e) { log('signal must be JSON'); return; }
            emit('signal', {to: val('peer'), data: data});
        }

        function connect() {
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');
            ws.onopen = function() { updateStatus(true); };
            ws.onmessage = function(event) {
                const msg = JSON.parse(event.data);
                if (msg.event === 'connected') {
                    document.getElementById('self').textContent = 'you are ' + msg.data.socketId;
                }
                log('< ' + msg.event + ' ' + JSON.stringify(msg.data));
            };
            ws.onclose = function() { log('connection closed'); updateStatus(false); ws = null; };
            ws.onerror = function() { log('connection error'); };
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) { ws.close(); } else { connect(); }
        }
    </script>
</body>
</html>`
