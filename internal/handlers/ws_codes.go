// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the game socket.
const (
	BadSubprotocolError   = 3000 // Client connected with an unsupported subprotocol.
	InvalidAuthTokenError = 3001 // Auth is required and the token was missing, invalid or expired.
	SessionReplacedError  = 3002 // The same player connected again from another socket.
)
