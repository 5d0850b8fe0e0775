package election

import "github.com/sirgallo/cluster/pkg/logger"
import "github.com/sirgallo/cluster/pkg/membership"
import "github.com/sirgallo/cluster/pkg/statusrpc"


//=========================================== Election


var Log = clog.NewCustomLog(NAME)

/*
	Election
		term voting submodule, driven by the agent's do work loop and fed
		member status events through the adapter

		1.) canvass: publish our appended position to every member and gather
			theirs, a member only nominates itself once a quorum has answered
			or the canvass deadline has passed, and nobody canvassed a higher
			position
		2.) ballot: the candidate bumps the term, votes for itself, and
			requests votes, members grant when the candidate's log is at least
			as up to date as their own and the term is newer
		3.) on quorum the candidate reports leader ready to the host, members
			that observe the new leadership term report follower ready
*/

func NewElection(opts ElectionOpts) *Election {
	return &Election{
		host: opts.Host,
		isStartup: opts.IsStartup,
		State: Canvass,
		CandidateTermID: opts.Host.LeadershipTermID() + 1,
		LeaderMemberID: NullMemberID,
		canvassPositions: make(map[int32]int64),
		votesGranted: make(map[int32]bool),
		votedFor: NullMemberID,
		deadlineNs: opts.NowNs + opts.TimeoutNs,
		timeoutNs: opts.TimeoutNs,
	}
}

func (election *Election) DoWork(nowNs int64) int {
	switch election.State {
		case Canvass:
			return election.canvass(nowNs)
		case Nominate:
			return election.nominate(nowNs)
		case CandidateBallot:
			return election.candidateBallot(nowNs)
		case FollowerBallot:
			if nowNs >= election.deadlineNs { election.restartCanvass(nowNs) }
			return 0
		case LeaderReady:
			return election.leaderReady()
		case FollowerReady:
			return election.followerReady()
	}

	return 0
}

func (election *Election) IsClosed() bool {
	return election.State == Closed
}


//========================================== state passes


func (election *Election) canvass(nowNs int64) int {
	set := election.host.Members()
	publisher := election.host.Publisher()

	for _, member := range set.Members {
		if member.ID == set.MemberID { continue }
		publisher.CanvassPosition(member.Publication, election.host.LeadershipTermID(), election.host.AppendedPosition(), set.MemberID)
	}

	election.State = Nominate
	election.deadlineNs = nowNs + election.timeoutNs

	return 1
}

func (election *Election) nominate(nowNs int64) int {
	if nowNs < election.deadlineNs && ! election.haveQuorumCanvassed() { return 0 }

	if election.hasHigherCanvassedPosition() {
		// another member holds more log, wait for its ballot or recanvass
		if nowNs >= election.deadlineNs { election.restartCanvass(nowNs) }
		return 0
	}

	set := election.host.Members()
	publisher := election.host.Publisher()

	election.votesGranted = map[int32]bool{ set.MemberID: true }
	election.votedFor = set.MemberID

	for _, member := range set.Members {
		if member.ID == set.MemberID { continue }
		publisher.RequestVote(member.Publication, election.host.LeadershipTermID(), election.host.AppendedPosition(), election.CandidateTermID, set.MemberID)
	}

	election.State = CandidateBallot
	election.deadlineNs = nowNs + election.timeoutNs

	Log.Info("member nominated for candidate term:", election.CandidateTermID)

	return 1
}

func (election *Election) candidateBallot(nowNs int64) int {
	set := election.host.Members()

	if len(election.votesGranted) >= membership.QuorumSize(len(set.Members)) {
		election.State = LeaderReady
		election.LeaderMemberID = set.MemberID

		Log.Info("quorum of votes granted, member is leader for term:", election.CandidateTermID)

		return 1
	}

	if nowNs >= election.deadlineNs { election.restartCanvass(nowNs) }

	return 0
}

func (election *Election) leaderReady() int {
	if ! election.host.OnElectionLeader(election.CandidateTermID, election.host.AppendedPosition()) { return 0 }

	election.State = Closed

	return 1
}

func (election *Election) followerReady() int {
	if ! election.host.OnElectionFollower(election.CandidateTermID, election.LeaderMemberID, election.leaderRecordingID, election.leaderLogPosition) { return 0 }

	election.State = Closed

	return 1
}

func (election *Election) restartCanvass(nowNs int64) {
	election.State = Canvass
	election.canvassPositions = make(map[int32]int64)
	election.votesGranted = make(map[int32]bool)
	election.votedFor = NullMemberID
	election.deadlineNs = nowNs + election.timeoutNs
}


//========================================== member status events


func (election *Election) OnCanvassPosition(msg *statusrpc.StatusMessage) {
	election.canvassPositions[msg.FollowerMemberID] = msg.LogPosition

	// answer the canvass so both sides converge on who holds the most log
	set := election.host.Members()
	member := set.FindMember(msg.FollowerMemberID)
	if member != nil {
		election.host.Publisher().CanvassPosition(member.Publication, election.host.LeadershipTermID(), election.host.AppendedPosition(), set.MemberID)
	}
}

func (election *Election) OnRequestVote(msg *statusrpc.StatusMessage) {
	set := election.host.Members()
	publisher := election.host.Publisher()

	candidate := set.FindMember(msg.CandidateMemberID)
	if candidate == nil { return }

	grant := msg.CandidateTermID > election.host.LeadershipTermID() &&
		msg.LogPosition >= election.host.AppendedPosition() &&
		(election.votedFor == NullMemberID || election.votedFor == msg.CandidateMemberID)

	if grant {
		election.votedFor = msg.CandidateMemberID
		election.CandidateTermID = msg.CandidateTermID
		election.State = FollowerBallot
	}

	publisher.PlaceVote(candidate.Publication, msg.CandidateTermID, msg.CandidateMemberID, set.MemberID, grant)
}

func (election *Election) OnVote(msg *statusrpc.StatusMessage) {
	if election.State != CandidateBallot { return }
	if msg.CandidateTermID != election.CandidateTermID { return }

	if msg.Vote { election.votesGranted[msg.FollowerMemberID] = true }
}

func (election *Election) OnNewLeadershipTerm(msg *statusrpc.StatusMessage) {
	if msg.LeadershipTermID < election.CandidateTermID && election.State == CandidateBallot { return }

	election.CandidateTermID = msg.LeadershipTermID
	election.LeaderMemberID = msg.LeaderMemberID
	election.leaderRecordingID = msg.LeaderRecordingID
	election.leaderLogPosition = msg.LogPosition
	election.State = FollowerReady
}

func (election *Election) OnAppendPosition(msg *statusrpc.StatusMessage) {
	member := election.host.Members().FindMember(msg.FollowerMemberID)
	if member != nil && msg.LogPosition > member.LogPosition { member.LogPosition = msg.LogPosition }
}

func (election *Election) OnCommitPosition(msg *statusrpc.StatusMessage) {
	// a live leader broadcasting commits means this election raced a healthy
	// term, fall in behind the sender
	if msg.LeadershipTermID >= election.CandidateTermID {
		election.CandidateTermID = msg.LeadershipTermID
		election.LeaderMemberID = msg.LeaderMemberID
		election.leaderLogPosition = msg.LogPosition
		election.State = FollowerReady
	}
}


//========================================== helper methods


func (election *Election) haveQuorumCanvassed() bool {
	set := election.host.Members()

	// self counts toward the canvass quorum
	return len(election.canvassPositions) + 1 >= membership.QuorumSize(len(set.Members))
}

func (election *Election) hasHigherCanvassedPosition() bool {
	set := election.host.Members()
	ownPosition := election.host.AppendedPosition()

	for memberId, position := range election.canvassPositions {
		if position > ownPosition { return true }
		if position == ownPosition && memberId < set.MemberID { return true }
	}

	return false
}
