package servicerpc

import "github.com/sirgallo/cluster/pkg/transport"
import "github.com/sirgallo/cluster/pkg/utils"


//=========================================== Service Proxy


/*
	Service Proxy
		consensus module side of the service control stream, drives hosted
		services through log joins, termination, and membership answers
*/

type ServiceProxy struct {
	Publication *transport.Publication
}

func NewServiceProxy(publication *transport.Publication) *ServiceProxy {
	return &ServiceProxy{
		Publication: publication,
	}
}

func (proxy *ServiceProxy) JoinLog(logPosition int64, maxLogPosition int64, memberId int32, logChannel string, logStreamId int32, isStartup bool, role int32) bool {
	return proxy.offer(&ServiceControlMessage{
		Kind: KindJoinLog,
		LogPosition: logPosition,
		MaxLogPosition: maxLogPosition,
		MemberID: memberId,
		LogChannel: logChannel,
		LogStreamID: logStreamId,
		IsStartup: isStartup,
		Role: role,
	})
}

func (proxy *ServiceProxy) TerminationPosition(logPosition int64) bool {
	return proxy.offer(&ServiceControlMessage{
		Kind: KindServiceTermination,
		LogPosition: logPosition,
	})
}

func (proxy *ServiceProxy) ClusterMembersResponse(correlationId int64, leaderMemberId int32, activeMembers string, passiveMembers string) bool {
	return proxy.offer(&ServiceControlMessage{
		Kind: KindClusterMembersResponse,
		CorrelationID: correlationId,
		LeaderMemberID: leaderMemberId,
		ActiveMembers: activeMembers,
		PassiveMembers: passiveMembers,
	})
}

func (proxy *ServiceProxy) offer(msg *ServiceControlMessage) bool {
	if proxy.Publication == nil { return false }

	encoded, encodeErr := utils.EncodeStructToBytes[*ServiceControlMessage](msg)
	if encodeErr != nil {
		Log.Error("unable to encode service control message:", encodeErr.Error())
		return false
	}

	for attempt := 0; attempt < OfferAttempts; attempt++ {
		result := proxy.Publication.Offer(encoded)
		if result > 0 { return true }
		if result == transport.NotConnected { return false }
	}

	return false
}
