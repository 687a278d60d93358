// Package server exposes HTTP handlers, including WebSocket upgrades, the
// health check, and the built-in test page.
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// WebSocketHandler returns the handler for WebSocket upgrade requests. It
// validates that the request uses the GET method, upgrades the HTTP
// connection, sends the welcome payload carrying the assigned id, and
// registers the new client with the hub, which launches its read/write
// pumps.
func WebSocketHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed: %v", err)
			return
		}

		client := NewClient(conn, hub, r.RemoteAddr)

		// The welcome frame is queued before the pumps start, so it is
		// always the first payload the client receives.
		if payload := hub.marshalPayload(welcomePayload{Type: kindWelcome, ClientID: client.id}); payload != nil {
			client.send <- payload
		}

		hub.registerClient(client)
	}
}

type healthStatus struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Timestamp   string `json:"timestamp"`
}

func writeCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// HealthHandler returns the health check handler. It reports the current
// connection count as JSON and answers OPTIONS preflight requests with
// permissive CORS headers.
func HealthHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeCORSHeaders(w)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		status := healthStatus{
			Status:      "ok",
			Connections: hub.ConnectionCount(),
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Printf("Error writing health response: %v", err)
		}
	}
}

// TestPageHandler serves an HTML test page for exercising the signaling
// endpoint. It provides a simple web interface to connect, join a room as
// viewer or admin, send chat messages, and watch every payload the server
// emits.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	html := `<!DOCTYPE html>
<html>
<head>
    <title>GoCast Signaling Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #log {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
            font-family: monospace;
            font-size: 12px;
        }
        input[type="text"] { padding: 5px; margin-right: 10px; }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>GoCast Signaling Test</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div>
        <button id="connectButton" onclick="toggleConnection()">Connect</button>
    </div>
    <div style="margin-top: 10px;">
        <input type="text" id="roomInput" placeholder="Room id" value="broadcast">
        <input type="text" id="nameInput" placeholder="Display name">
        <label><input type="checkbox" id="adminInput"> join as admin</label>
        <button onclick="joinRoom()" id="joinButton" disabled>Join</button>
    </div>
    <div style="margin-top: 10px;">
        <input type="text" id="chatInput" placeholder="Chat message" disabled>
        <button onclick="sendChat()" id="chatButton" disabled>Send</button>
    </div>

    <div id="log"></div>

    <script>
        let ws = null;
        const logDiv = document.getElementById('log');
        const statusDiv = document.getElementById('status');

        function logLine(text) {
            const line = document.createElement('div');
            line.textContent = text;
            logDiv.appendChild(line);
            logDiv.scrollTop = logDiv.scrollHeight;
        }

        function updateStatus(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            document.getElementById('connectButton').textContent = connected ? 'Disconnect' : 'Connect';
            document.getElementById('joinButton').disabled = !connected;
            document.getElementById('chatInput').disabled = !connected;
            document.getElementById('chatButton').disabled = !connected;
        }

        function connect() {
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');
            ws.onopen = () => { logLine('connected'); updateStatus(true); };
            ws.onmessage = (event) => logLine('<- ' + event.data);
            ws.onclose = () => { logLine('connection closed'); updateStatus(false); ws = null; };
            ws.onerror = () => logLine('connection error');
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
            } else {
                connect();
            }
        }

        function send(payload) {
            if (!ws || ws.readyState !== WebSocket.OPEN) return;
            const data = JSON.stringify(payload);
            logLine('-> ' + data);
            ws.send(data);
        }

        function joinRoom() {
            send({
                type: 'join',
                roomId: document.getElementById('roomInput').value,
                isAdmin: document.getElementById('adminInput').checked,
            });
        }

        function sendChat() {
            const input = document.getElementById('chatInput');
            if (!input.value) return;
            send({
                type: 'chat-message',
                roomId: document.getElementById('roomInput').value,
                message: input.value,
                name: document.getElementById('nameInput').value,
            });
            input.value = '';
        }

        document.getElementById('chatInput').addEventListener('keypress', (e) => {
            if (e.key === 'Enter') sendChat();
        });
    </script>
</body>
</html>`
	if _, err := fmt.Fprint(w, html); err != nil {
		log.Printf("Error writing HTML response: %v", err)
	}
}
