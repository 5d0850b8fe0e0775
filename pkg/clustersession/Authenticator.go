package clustersession


//=========================================== Authenticator


/*
	the authenticator is host provided, the registry drives the handshake
	through this surface while a session is pending

	a session proxy is handed back on the connected/challenged callbacks so
	the authenticator can authenticate, challenge, or reject asynchronously
*/

type SessionProxy interface {
	Authenticate(encodedPrincipal []byte)
	Challenge(encodedChallenge []byte)
	Reject(detail string)
}

type Authenticator interface {
	OnConnectRequest(sessionId int64, encodedCredentials []byte, nowMs int64)
	OnChallengeResponse(sessionId int64, encodedCredentials []byte, nowMs int64)
	OnConnectedSession(proxy SessionProxy, sessionId int64, nowMs int64)
	OnChallengedSession(proxy SessionProxy, sessionId int64, nowMs int64)
}

/*
	default authenticator, authenticates every session with an empty principal
*/

type AllowAllAuthenticator struct{}

func (auth *AllowAllAuthenticator) OnConnectRequest(sessionId int64, encodedCredentials []byte, nowMs int64) {}

func (auth *AllowAllAuthenticator) OnChallengeResponse(sessionId int64, encodedCredentials []byte, nowMs int64) {}

func (auth *AllowAllAuthenticator) OnConnectedSession(proxy SessionProxy, sessionId int64, nowMs int64) {
	proxy.Authenticate(nil)
}

func (auth *AllowAllAuthenticator) OnChallengedSession(proxy SessionProxy, sessionId int64, nowMs int64) {
	proxy.Authenticate(nil)
}
