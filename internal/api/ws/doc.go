// Package ws streams terminal events to websocket clients and accepts
// terminal commands from them.
//
// The Hub implements terminal.EventSink. Every event is encoded once with
// sonic and queued to each client's buffered channel; a full queue drops the
// frame for that client and the publish reports ErrDropped.
//
// Message Types (Client → Server):
//   - input: {"type":"input","session_id":"...","data":"..."}
//   - resize: {"type":"resize","session_id":"...","cols":n,"rows":n}
//   - ping: Keep-alive ping
//
// Message Types (Server → Client):
//   - system: connection established
//   - pty:data: output bytes, base64 in "data"
//   - token:captured: usage records completed by a chunk, in "inserts"
//   - pty:exit: exit code in "code", -1 when killed
//   - pong: ping reply
//   - error: a command failed
//
// Example Usage:
//
//	hub := ws.NewHub(ws.HubOptions{Recorder: metrics})
//	handler := ws.NewHandler(hub, manager, logger.Component("ws"))
//	router.GET("/stream", handler.HandleConnection)
package ws
