// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the lobby socket.
const (
	BadSubprotocolError = 3000 // Client connected with an unsupported subprotocol.
	InvalidLobbyIDError = 3003 // Target lobby in the WS URL does not exist.
	WrongPasswordError  = 3004 // Private lobby and the password query did not match.
	LobbyClosedError    = 3005 // Lobby was removed while the socket was open.
	SupersededError     = 3006 // Same player connected again from another socket.
	SlowConsumerError   = 3007 // Outbound queue overflowed.
)
