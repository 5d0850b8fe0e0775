package clustersession

import "github.com/sirgallo/cluster/pkg/transport"


type SessionState string

const (
	Init          SessionState = "init"
	Connected     SessionState = "connected"
	Challenged    SessionState = "challenged"
	Authenticated SessionState = "authenticated"
	Open          SessionState = "open"
	Rejected      SessionState = "rejected"
	Closed        SessionState = "closed"
)

type CloseReason string

const (
	NullCloseReason CloseReason = ""
	ClientAction    CloseReason = "client_action"
	ServiceAction   CloseReason = "service_action"
	Timeout         CloseReason = "timeout"
)

type ClusterSession struct {
	ID            int64
	CorrelationID int64

	ResponseStreamID int32
	ResponseChannel  string
	Responder        *transport.Publication

	State       SessionState
	CloseReason CloseReason

	OpenedLogPosition    int64
	ClosedLogPosition    int64
	TimeOfLastActivityNs int64

	HasNewLeaderEventPending bool
	HasOpenEventPending      bool
	IsBackupQuery            bool

	EncodedPrincipal []byte
	rejectionDetail  string
}

type SessionRegistryOpts struct {
	MaxConcurrentSessions int
	SessionTimeoutNs      int64
}

/*
	Session Registry
		the cluster session table plus the three staging queues, sessions in
		pending are mid handshake, rejected and redirect queues hold sessions
		waiting for their final egress event before disconnect
*/

type SessionRegistry struct {
	SessionByID map[int64]*ClusterSession

	PendingSessions  []*ClusterSession
	RejectedSessions []*ClusterSession
	RedirectSessions []*ClusterSession

	NextSessionID int64

	MaxConcurrentSessions int
	SessionTimeoutNs      int64
}

const NAME = "ClusterSession"

const NullPosition = int64(-1)
const NullSessionID = int64(-1)
