package logstream

import "github.com/sirgallo/cluster/pkg/logger"
import "github.com/sirgallo/cluster/pkg/transport"


//=========================================== Log Publisher


var Log = clog.NewCustomLog(NAME)

/*
	Log Publisher
		leader side typed appends onto the replicated log stream

		every append returns the resulting stream position (> 0) on success or
		0 when flow controlled, callers retry the same append next tick, this
		is the backpressure signal the whole module leans on
*/

func NewLogPublisher(publication *transport.Publication) *LogPublisher {
	return &LogPublisher{
		Publication: publication,
	}
}

func (publisher *LogPublisher) Position() int64 {
	return publisher.Publication.Position()
}

func (publisher *LogPublisher) IsConnected() bool {
	return publisher.Publication.IsConnected()
}

func (publisher *LogPublisher) Disconnect() {
	publisher.Publication.Close()
}

func (publisher *LogPublisher) AddDestination(sink transport.FrameSink) {
	publisher.Publication.AddDestination(sink)
}

func (publisher *LogPublisher) RemoveDestination(sink transport.FrameSink) {
	publisher.Publication.RemoveDestination(sink)
}

func (publisher *LogPublisher) AppendSessionOpen(leadershipTermId int64, timestamp int64, sessionId int64, correlationId int64, responseStreamId int32, responseChannel string, encodedPrincipal []byte) int64 {
	return publisher.append(&LogEntry{
		Kind: EntrySessionOpen,
		LeadershipTermID: leadershipTermId,
		Timestamp: timestamp,
		SessionID: sessionId,
		CorrelationID: correlationId,
		ResponseStreamID: responseStreamId,
		ResponseChannel: responseChannel,
		EncodedPrincipal: encodedPrincipal,
	})
}

func (publisher *LogPublisher) AppendSessionClose(leadershipTermId int64, timestamp int64, sessionId int64, closeReason string) int64 {
	return publisher.append(&LogEntry{
		Kind: EntrySessionClose,
		LeadershipTermID: leadershipTermId,
		Timestamp: timestamp,
		SessionID: sessionId,
		CloseReason: closeReason,
	})
}

func (publisher *LogPublisher) AppendSessionMessage(leadershipTermId int64, timestamp int64, sessionId int64, payload []byte) int64 {
	return publisher.append(&LogEntry{
		Kind: EntrySessionMessage,
		LeadershipTermID: leadershipTermId,
		Timestamp: timestamp,
		SessionID: sessionId,
		Payload: payload,
	})
}

func (publisher *LogPublisher) AppendTimerEvent(leadershipTermId int64, timestamp int64, correlationId int64) int64 {
	return publisher.append(&LogEntry{
		Kind: EntryTimer,
		LeadershipTermID: leadershipTermId,
		Timestamp: timestamp,
		CorrelationID: correlationId,
	})
}

func (publisher *LogPublisher) AppendClusterAction(leadershipTermId int64, timestamp int64, action ClusterAction) int64 {
	return publisher.append(&LogEntry{
		Kind: EntryClusterAction,
		LeadershipTermID: leadershipTermId,
		Timestamp: timestamp,
		Action: action,
	})
}

func (publisher *LogPublisher) AppendNewLeadershipTermEvent(leadershipTermId int64, timestamp int64, termBaseLogPosition int64, leaderMemberId int32, appVersion int32, timeUnit string) int64 {
	return publisher.append(&LogEntry{
		Kind: EntryNewLeadershipTerm,
		LeadershipTermID: leadershipTermId,
		Timestamp: timestamp,
		TermBaseLogPosition: termBaseLogPosition,
		LeaderMemberID: leaderMemberId,
		AppVersion: appVersion,
		TimeUnit: timeUnit,
	})
}

func (publisher *LogPublisher) AppendMembershipChangeEvent(leadershipTermId int64, timestamp int64, memberId int32, change ChangeType, clusterMembers string) int64 {
	return publisher.append(&LogEntry{
		Kind: EntryMembershipChange,
		LeadershipTermID: leadershipTermId,
		Timestamp: timestamp,
		MemberID: memberId,
		Change: change,
		ClusterMembers: clusterMembers,
	})
}

/*
	service originated messages carry their reserved range session id, the
	pending queue owns id assignment and re-append ordering
*/

func (publisher *LogPublisher) AppendServiceSessionMessage(leadershipTermId int64, timestamp int64, serviceSessionId int64, payload []byte) int64 {
	return publisher.append(&LogEntry{
		Kind: EntryServiceSessionMessage,
		LeadershipTermID: leadershipTermId,
		Timestamp: timestamp,
		SessionID: serviceSessionId,
		Payload: payload,
	})
}

func (publisher *LogPublisher) append(entry *LogEntry) int64 {
	encoded, encodeErr := EncodeLogEntry(entry)
	if encodeErr != nil {
		Log.Error("unable to encode log entry:", encodeErr.Error())
		return transport.BackPressured
	}

	return publisher.Publication.Offer(encoded)
}
