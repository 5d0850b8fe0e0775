package ingressrpc

import "github.com/sirgallo/cluster/pkg/transport"


type IngressKind string

const (
	KindSessionConnect    IngressKind = "session_connect"
	KindSessionClose      IngressKind = "session_close"
	KindIngressMessage    IngressKind = "ingress_message"
	KindSessionKeepAlive  IngressKind = "session_keep_alive"
	KindChallengeResponse IngressKind = "challenge_response"
	KindAdminRequest      IngressKind = "admin_request"
)

type AdminRequestType string

const (
	AdminClusterMembersQuery AdminRequestType = "cluster_members_query"
	AdminBackupQuery         AdminRequestType = "backup_query"
)

type IngressMessage struct {
	Kind IngressKind

	CorrelationID    int64
	ClusterSessionID int64 `json:",omitempty"`
	LeadershipTermID int64 `json:",omitempty"`

	ResponseStreamID int32  `json:",omitempty"`
	ResponseChannel  string `json:",omitempty"`

	Version            int32  `json:",omitempty"`
	EncodedCredentials []byte `json:",omitempty"`

	Payload []byte `json:",omitempty"`

	AdminRequestType AdminRequestType `json:",omitempty"`
}

type EventCode string

const (
	EventOK                     EventCode = "ok"
	EventError                  EventCode = "error"
	EventRedirect               EventCode = "redirect"
	EventClosed                 EventCode = "closed"
	EventAuthenticationRejected EventCode = "authentication_rejected"
)

type EgressKind string

const (
	KindSessionEvent   EgressKind = "session_event"
	KindChallenge      EgressKind = "challenge"
	KindNewLeaderEvent EgressKind = "new_leader_event"
	KindAdminResponse  EgressKind = "admin_response"
	KindBackupReply    EgressKind = "backup_reply"
)

type EgressMessage struct {
	Kind EgressKind

	ClusterSessionID int64 `json:",omitempty"`
	CorrelationID    int64 `json:",omitempty"`
	LeadershipTermID int64 `json:",omitempty"`
	LeaderMemberID   int32 `json:",omitempty"`

	Code   EventCode `json:",omitempty"`
	Detail string    `json:",omitempty"`

	IngressEndpoints string `json:",omitempty"`

	EncodedChallenge []byte `json:",omitempty"`

	Payload []byte `json:",omitempty"`
}

/*
	the consensus agent implements this sink, the ingress adapter forwards
	client traffic into it

	handlers return a poll action so a backpressured log append can abort the
	poll and have the same fragment redelivered next tick
*/

type IngressSink interface {
	OnSessionConnect(msg *IngressMessage) transport.PollAction
	OnSessionClose(msg *IngressMessage) transport.PollAction
	OnIngressMessage(msg *IngressMessage) transport.PollAction
	OnSessionKeepAlive(msg *IngressMessage) transport.PollAction
	OnChallengeResponse(msg *IngressMessage) transport.PollAction
	OnAdminRequest(msg *IngressMessage) transport.PollAction
}

const NAME = "Ingress"

const OfferAttempts = 3
