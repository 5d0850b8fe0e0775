package client

import "errors"
import "fmt"

import "github.com/google/uuid"

import "github.com/sirgallo/cluster/pkg/ingressrpc"
import "github.com/sirgallo/cluster/pkg/logger"
import "github.com/sirgallo/cluster/pkg/transport"
import "github.com/sirgallo/cluster/pkg/utils"


//=========================================== Cluster Client


const NAME = "ClusterClient"
var Log = clog.NewCustomLog(NAME)

const IngressStreamID = int32(101)
const EgressStreamID = int32(102)

/*
	Cluster Client
		minimal ingress side driver, connects a session against the cluster
		ingress and consumes egress events on its own response channel

		the client is polled by its caller the same way the agent is
*/

type ClusterClientOpts struct {
	Medium         *transport.TransportMedium
	IngressChannel string
	Version        int32
}

type ClusterClient struct {
	medium  *transport.TransportMedium
	ingress *transport.Publication
	egress  *transport.Subscription

	ResponseChannel string
	CorrelationID   int64

	SessionID        int64
	LeadershipTermID int64
	LeaderMemberID   int32

	State      ingressrpc.EventCode
	Detail     string
	Challenged bool

	version int32
}

func NewClusterClient(opts ClusterClientOpts) *ClusterClient {
	responseChannel := fmt.Sprintf("egress:%s", uuid.NewString())

	return &ClusterClient{
		medium: opts.Medium,
		ingress: opts.Medium.AddPublication(opts.IngressChannel, IngressStreamID),
		egress: opts.Medium.AddSubscription(responseChannel, EgressStreamID),
		ResponseChannel: responseChannel,
		CorrelationID: int64(uuid.New().ID()),
		SessionID: -1,
		version: opts.Version,
	}
}

func (client *ClusterClient) Connect(credentials []byte) error {
	return client.send(&ingressrpc.IngressMessage{
		Kind: ingressrpc.KindSessionConnect,
		CorrelationID: client.CorrelationID,
		ResponseStreamID: EgressStreamID,
		ResponseChannel: client.ResponseChannel,
		Version: client.version,
		EncodedCredentials: credentials,
	})
}

func (client *ClusterClient) Offer(payload []byte) error {
	if client.SessionID < 0 { return errors.New("session not open") }

	return client.send(&ingressrpc.IngressMessage{
		Kind: ingressrpc.KindIngressMessage,
		CorrelationID: client.CorrelationID,
		ClusterSessionID: client.SessionID,
		LeadershipTermID: client.LeadershipTermID,
		Payload: payload,
	})
}

func (client *ClusterClient) KeepAlive() error {
	if client.SessionID < 0 { return errors.New("session not open") }

	return client.send(&ingressrpc.IngressMessage{
		Kind: ingressrpc.KindSessionKeepAlive,
		ClusterSessionID: client.SessionID,
		LeadershipTermID: client.LeadershipTermID,
	})
}

func (client *ClusterClient) ChallengeResponse(credentials []byte) error {
	return client.send(&ingressrpc.IngressMessage{
		Kind: ingressrpc.KindChallengeResponse,
		CorrelationID: client.CorrelationID,
		ClusterSessionID: client.SessionID,
		EncodedCredentials: credentials,
	})
}

func (client *ClusterClient) AdminQuery(requestType ingressrpc.AdminRequestType) error {
	return client.send(&ingressrpc.IngressMessage{
		Kind: ingressrpc.KindAdminRequest,
		CorrelationID: client.CorrelationID,
		ClusterSessionID: client.SessionID,
		ResponseStreamID: EgressStreamID,
		ResponseChannel: client.ResponseChannel,
		AdminRequestType: requestType,
	})
}

func (client *ClusterClient) Close() error {
	if client.SessionID < 0 { return nil }

	return client.send(&ingressrpc.IngressMessage{
		Kind: ingressrpc.KindSessionClose,
		ClusterSessionID: client.SessionID,
	})
}

/*
	Poll Egress
		drain pending egress events and fold them into client state, redirect
		detail carries the leader's ingress endpoint
*/

func (client *ClusterClient) PollEgress() int {
	handler := func(bytes []byte, position int64) transport.PollAction {
		msg, decodeErr := utils.DecodeBytesToStruct[ingressrpc.EgressMessage](bytes)
		if decodeErr != nil {
			Log.Error("unable to decode egress message:", decodeErr.Error())
			return transport.PollContinue
		}

		switch msg.Kind {
			case ingressrpc.KindSessionEvent:
				client.State = msg.Code
				client.Detail = msg.Detail

				if msg.Code == ingressrpc.EventOK {
					client.SessionID = msg.ClusterSessionID
					client.LeadershipTermID = msg.LeadershipTermID
					client.LeaderMemberID = msg.LeaderMemberID
				}

				if msg.Code == ingressrpc.EventRedirect && msg.Detail != "" {
					client.ingress = client.medium.AddPublication(msg.Detail, IngressStreamID)
				}
			case ingressrpc.KindChallenge:
				client.Challenged = true
			case ingressrpc.KindNewLeaderEvent:
				client.LeadershipTermID = msg.LeadershipTermID
				client.LeaderMemberID = msg.LeaderMemberID

				if msg.IngressEndpoints != "" {
					client.ingress = client.medium.AddPublication(msg.IngressEndpoints, IngressStreamID)
				}
		}

		return transport.PollContinue
	}

	return client.egress.Poll(handler, 10)
}

func (client *ClusterClient) send(msg *ingressrpc.IngressMessage) error {
	encoded, encodeErr := utils.EncodeStructToBytes[*ingressrpc.IngressMessage](msg)
	if encodeErr != nil { return encodeErr }

	result := client.ingress.Offer(encoded)
	if result == transport.NotConnected { return errors.New("ingress publication not connected") }
	if result == transport.BackPressured { return errors.New("ingress backpressured") }

	return nil
}
