package election

import "github.com/sirgallo/cluster/pkg/membership"
import "github.com/sirgallo/cluster/pkg/statusrpc"


type ElectionState string

const (
	Canvass         ElectionState = "canvass"
	Nominate        ElectionState = "nominate"
	CandidateBallot ElectionState = "candidate_ballot"
	FollowerBallot  ElectionState = "follower_ballot"
	LeaderReady     ElectionState = "leader_ready"
	FollowerReady   ElectionState = "follower_ready"
	Closed          ElectionState = "closed"
)

/*
	the agent implements this host surface, the election holds a plain
	reference and never owns the agent

	the ready callbacks return false on log backpressure and are retried
	every do work pass until they land
*/

type ElectionHost interface {
	MemberID() int32
	LeadershipTermID() int64
	AppendedPosition() int64
	Members() *membership.MembershipSet
	Publisher() *statusrpc.StatusPublisher

	OnElectionLeader(candidateTermId int64, logPosition int64) bool
	OnElectionFollower(leadershipTermId int64, leaderMemberId int32, leaderRecordingId int64, logPosition int64) bool
}

type ElectionOpts struct {
	Host        ElectionHost
	IsStartup   bool
	NowNs       int64
	TimeoutNs   int64
}

type Election struct {
	host      ElectionHost
	isStartup bool

	State ElectionState

	CandidateTermID int64
	LeaderMemberID  int32

	canvassPositions map[int32]int64
	votesGranted     map[int32]bool
	votedFor         int32

	leaderRecordingID int64
	leaderLogPosition int64

	deadlineNs int64
	timeoutNs  int64
}

const NAME = "Election"

const NullMemberID = int32(-1)
