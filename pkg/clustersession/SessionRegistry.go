package clustersession

import "github.com/sirgallo/cluster/pkg/logger"


//=========================================== Session Registry


var Log = clog.NewCustomLog(NAME)


func NewSessionRegistry(opts SessionRegistryOpts) *SessionRegistry {
	return &SessionRegistry{
		SessionByID: make(map[int64]*ClusterSession),
		NextSessionID: 1,
		MaxConcurrentSessions: opts.MaxConcurrentSessions,
		SessionTimeoutNs: opts.SessionTimeoutNs,
	}
}

/*
	Allocate Session ID
		leader only, ids are monotonic across the lifetime of the cluster and
		restored from snapshots on recovery
*/

func (registry *SessionRegistry) AllocateSessionID() int64 {
	id := registry.NextSessionID
	registry.NextSessionID++

	return id
}

func (registry *SessionRegistry) AtCapacity() bool {
	return len(registry.SessionByID) + len(registry.PendingSessions) >= registry.MaxConcurrentSessions
}

func (registry *SessionRegistry) AddPending(session *ClusterSession) {
	registry.PendingSessions = append(registry.PendingSessions, session)
}

func (registry *SessionRegistry) RemovePending(session *ClusterSession) {
	var remaining []*ClusterSession
	for _, pending := range registry.PendingSessions {
		if pending != session { remaining = append(remaining, pending) }
	}

	registry.PendingSessions = remaining
}

func (registry *SessionRegistry) AddRejected(session *ClusterSession) {
	registry.RejectedSessions = append(registry.RejectedSessions, session)
}

func (registry *SessionRegistry) AddRedirect(session *ClusterSession) {
	registry.RedirectSessions = append(registry.RedirectSessions, session)
}

/*
	Open Session
		move an authenticated session into the active table once its open
		entry has a log position
*/

func (registry *SessionRegistry) OpenSession(session *ClusterSession, logPosition int64) error {
	openErr := session.Opened(logPosition)
	if openErr != nil { return openErr }

	registry.RemovePending(session)
	registry.SessionByID[session.ID] = session

	return nil
}

func (registry *SessionRegistry) RemoveSession(sessionId int64) *ClusterSession {
	session, exists := registry.SessionByID[sessionId]
	if ! exists { return nil }

	delete(registry.SessionByID, sessionId)

	return session
}

func (registry *SessionRegistry) GetSession(sessionId int64) *ClusterSession {
	return registry.SessionByID[sessionId]
}

func (registry *SessionRegistry) FindPendingByCorrelation(correlationId int64) *ClusterSession {
	for _, pending := range registry.PendingSessions {
		if pending.CorrelationID == correlationId { return pending }
	}

	return nil
}

/*
	Timed Out Sessions
		scan the active table for sessions idle past the timeout, callers
		append the close entry and remove on success
*/

func (registry *SessionRegistry) TimedOutSessions(nowNs int64) []*ClusterSession {
	var timedOut []*ClusterSession

	for _, session := range registry.SessionByID {
		if session.IsOpen() && session.HasTimedOut(nowNs, registry.SessionTimeoutNs) {
			timedOut = append(timedOut, session)
		}
	}

	return timedOut
}

/*
	Clear Sessions Opened After
		drop sessions whose open entry never committed, run during leadership
		transition before rejoining as a follower
*/

func (registry *SessionRegistry) ClearSessionsOpenedAfter(logPosition int64) []*ClusterSession {
	var cleared []*ClusterSession

	for id, session := range registry.SessionByID {
		if session.OpenedLogPosition > logPosition {
			delete(registry.SessionByID, id)

			session.Close()
			cleared = append(cleared, session)
		}
	}

	return cleared
}
