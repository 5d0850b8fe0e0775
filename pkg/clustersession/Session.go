package clustersession

import "errors"


//=========================================== Cluster Session


/*
	session state machine:
		Init --> Connected --> (Challenged -->) Authenticated --> Open
		any state before Open --> Rejected
		any state --> Closed

	transitions run through the helpers below so invariants hold, a session
	never reopens after close and never authenticates twice
*/

func NewClusterSession(correlationId int64, responseStreamId int32, responseChannel string) *ClusterSession {
	return &ClusterSession{
		ID: NullSessionID,
		CorrelationID: correlationId,
		ResponseStreamID: responseStreamId,
		ResponseChannel: responseChannel,
		State: Init,
		OpenedLogPosition: NullPosition,
		ClosedLogPosition: NullPosition,
	}
}

func (session *ClusterSession) Connect() error {
	if session.State != Init { return errors.New("session not in init state") }

	session.State = Connected

	return nil
}

/*
	authenticator session proxy surface, the authenticator drives these while
	the session sits in the pending queue
*/

func (session *ClusterSession) Authenticate(encodedPrincipal []byte) {
	if session.State != Connected && session.State != Challenged { return }

	session.EncodedPrincipal = encodedPrincipal
	session.State = Authenticated
}

func (session *ClusterSession) Challenge(encodedChallenge []byte) {
	if session.State != Connected { return }

	session.EncodedPrincipal = encodedChallenge
	session.State = Challenged
}

func (session *ClusterSession) Reject(detail string) {
	if session.State == Open || session.State == Closed { return }

	session.State = Rejected
	session.rejectionDetail = detail
}

func (session *ClusterSession) RejectionDetail() string {
	return session.rejectionDetail
}

/*
	Opened
		only reachable once a SessionOpen entry has landed at a known log
		position, either by leader append or follower replay
*/

func (session *ClusterSession) Opened(logPosition int64) error {
	if session.State != Authenticated { return errors.New("session not authenticated") }

	session.State = Open
	session.OpenedLogPosition = logPosition

	return nil
}

func (session *ClusterSession) ClosePending(reason CloseReason, closedLogPosition int64) {
	session.CloseReason = reason
	session.ClosedLogPosition = closedLogPosition
}

func (session *ClusterSession) Close() {
	session.State = Closed
}

/*
	Reinstate
		undo an uncommitted close after leadership loss, the close entry never
		committed so the session is restored as open
*/

func (session *ClusterSession) Reinstate() {
	session.State = Open
	session.CloseReason = NullCloseReason
	session.ClosedLogPosition = NullPosition
}

func (session *ClusterSession) IsOpen() bool {
	return session.State == Open
}

func (session *ClusterSession) Activity(nowNs int64) {
	session.TimeOfLastActivityNs = nowNs
}

func (session *ClusterSession) HasTimedOut(nowNs int64, timeoutNs int64) bool {
	return nowNs - session.TimeOfLastActivityNs > timeoutNs
}
