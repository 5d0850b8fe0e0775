package ingressrpc

import "github.com/sirgallo/cluster/pkg/transport"
import "github.com/sirgallo/cluster/pkg/utils"


//=========================================== Egress Publisher


/*
	Egress Publisher
		events back to clients over their session response publication

		egress is best effort, a disconnected client is reaped by the session
		timeout rather than blocking the agent
*/

type EgressPublisher struct{}

func NewEgressPublisher() *EgressPublisher {
	return &EgressPublisher{}
}

func (publisher *EgressPublisher) SendEvent(pub *transport.Publication, clusterSessionId int64, correlationId int64, leadershipTermId int64, leaderMemberId int32, code EventCode, detail string) bool {
	return publisher.offer(pub, &EgressMessage{
		Kind: KindSessionEvent,
		ClusterSessionID: clusterSessionId,
		CorrelationID: correlationId,
		LeadershipTermID: leadershipTermId,
		LeaderMemberID: leaderMemberId,
		Code: code,
		Detail: detail,
	})
}

func (publisher *EgressPublisher) SendChallenge(pub *transport.Publication, clusterSessionId int64, correlationId int64, encodedChallenge []byte) bool {
	return publisher.offer(pub, &EgressMessage{
		Kind: KindChallenge,
		ClusterSessionID: clusterSessionId,
		CorrelationID: correlationId,
		EncodedChallenge: encodedChallenge,
	})
}

func (publisher *EgressPublisher) SendNewLeaderEvent(pub *transport.Publication, clusterSessionId int64, leadershipTermId int64, leaderMemberId int32, ingressEndpoints string) bool {
	return publisher.offer(pub, &EgressMessage{
		Kind: KindNewLeaderEvent,
		ClusterSessionID: clusterSessionId,
		LeadershipTermID: leadershipTermId,
		LeaderMemberID: leaderMemberId,
		IngressEndpoints: ingressEndpoints,
	})
}

func (publisher *EgressPublisher) SendAdminResponse(pub *transport.Publication, clusterSessionId int64, correlationId int64, payload []byte) bool {
	return publisher.offer(pub, &EgressMessage{
		Kind: KindAdminResponse,
		ClusterSessionID: clusterSessionId,
		CorrelationID: correlationId,
		Payload: payload,
	})
}

func (publisher *EgressPublisher) SendBackupReply(pub *transport.Publication, correlationId int64, payload []byte) bool {
	return publisher.offer(pub, &EgressMessage{
		Kind: KindBackupReply,
		CorrelationID: correlationId,
		Payload: payload,
	})
}

func (publisher *EgressPublisher) offer(pub *transport.Publication, msg *EgressMessage) bool {
	if pub == nil { return false }

	encoded, encodeErr := utils.EncodeStructToBytes[*EgressMessage](msg)
	if encodeErr != nil {
		Log.Error("unable to encode egress message:", encodeErr.Error())
		return false
	}

	for attempt := 0; attempt < OfferAttempts; attempt++ {
		result := pub.Offer(encoded)
		if result > 0 { return true }
		if result == transport.NotConnected { return false }
	}

	return false
}
