// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

// Package streaming exposes solver progress over WebSocket so a caller
// of the HTTP API can watch a long-running composition, seasonal, or
// weekly-assignment run without polling.
package streaming

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Stage identifies which solver stage a ProgressEvent was emitted by.
type Stage string

const (
	StageComposition  Stage = "composition"
	StageSeasonalPlan Stage = "seasonal_plan"
	StageWeeklyAssign Stage = "weekly_assign"
	StageCapacitySim  Stage = "capacity_simulation"
)

// ProgressEvent reports incremental progress of a solver run.
type ProgressEvent struct {
	RunID      string    `json:"run_id"`
	Stage      Stage     `json:"stage"`
	Message    string    `json:"message"`
	Percent    float64   `json:"percent"`
	Done       bool      `json:"done"`
	Err        string    `json:"error,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}

// ProgressSource starts watching a solver run identified by runID and
// returns a channel of its progress events. The channel closes when
// the run finishes or ctx is cancelled.
type ProgressSource interface {
	Watch(ctx context.Context, runID string) (<-chan ProgressEvent, error)
}

// WebSocketServer bridges a ProgressSource to WebSocket clients.
type WebSocketServer struct {
	source   ProgressSource
	upgrader websocket.Upgrader
}

// NewWebSocketServer creates a WebSocket server streaming progress
// events produced by source.
func NewWebSocketServer(source ProgressSource) *WebSocketServer {
	return &WebSocketServer{
		source: source,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// StreamMessage is the envelope written to the WebSocket client.
type StreamMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// HandleWebSocket upgrades the connection and streams progress for the
// run_id given in the query string until the run completes, the client
// disconnects, or the request context is cancelled.
func (ws *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		http.Error(w, "run_id query parameter required", http.StatusBadRequest)
		return
	}

	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Printf("websocket close error: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go ws.discardIncoming(conn, cancel)

	events, err := ws.source.Watch(ctx, runID)
	if err != nil {
		ws.sendError(conn, "failed to watch run "+runID+": "+err.Error())
		return
	}

	go ws.keepAlive(ctx, conn)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				ws.sendMessage(conn, StreamMessage{Type: "stream_closed", Timestamp: time.Now()})
				return
			}
			ws.sendMessage(conn, StreamMessage{Type: "progress", Data: event, Timestamp: time.Now()})
			if event.Done {
				return
			}
		}
	}
}

// discardIncoming reads and drops client frames so control frames
// (pings/close) are processed by the gorilla/websocket read loop, and
// cancels the stream when the client goes away.
func (ws *WebSocketServer) discardIncoming(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (ws *WebSocketServer) sendMessage(conn *websocket.Conn, msg StreamMessage) {
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("websocket write error: %v", err)
	}
}

func (ws *WebSocketServer) sendError(conn *websocket.Conn, message string) {
	ws.sendMessage(conn, StreamMessage{Type: "error", Error: message, Timestamp: time.Now()})
}

func (ws *WebSocketServer) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("websocket ping error: %v", err)
				return
			}
		}
	}
}
