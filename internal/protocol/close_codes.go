package protocol

// Websocket close codes for the distinct authentication failure classes.
// Codes in the 4000-4999 range are reserved for application use by RFC 6455.
const (
	// CloseMissingToken: the auth frame carried no token.
	CloseMissingToken = 4001
	// CloseInvalidToken: the token failed signature or claims validation.
	CloseInvalidToken = 4002
	// CloseExpiredToken: the token's expiry has passed.
	CloseExpiredToken = 4003
	// CloseInvalidGame: the auth frame named a game that does not exist.
	CloseInvalidGame = 4004
	// CloseNotAMember: the authenticated user is not a member of the game.
	CloseNotAMember = 4005
	// CloseAuthTimeout: no auth frame arrived within the grace period.
	CloseAuthTimeout = 4006
	// CloseNotAuthenticated: the first frame was not an auth frame.
	CloseNotAuthenticated = 4007
)
