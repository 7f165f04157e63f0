// Package ws provides WebSocket handling for session events and dialogs.
//
// This package implements the hub that fans session lifecycle events out to
// connected clients and routes interactive kernel dialogs (selection,
// restart confirmation) back to the first client that answers.
//
// Message Types (Client to Server):
//   - dialog_reply: Answer to a pending dialog, matched by correlation id
//   - ping: Keep-alive ping
//
// Message Types (Server to Client):
//   - session_event: Session lifecycle event (kernel change, status, iopub, ...)
//   - select_kernel: Ask the user to pick a kernel from a grouped list
//   - confirm_restart: Ask the user to confirm a kernel restart
//   - error: Reported operation failure
//
// Example Usage:
//
//	hub := ws.NewHub(logger, metrics)
//	router.GET("/ws", hub.HandleConnection)
package ws
