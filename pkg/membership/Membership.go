package membership

import "sort"

import "github.com/sirgallo/cluster/pkg/logger"


//=========================================== Membership Set


var Log = clog.NewCustomLog(NAME)


func NewMembershipSet(memberId int32, members []*ClusterMember) *MembershipSet {
	return &MembershipSet{
		MemberID: memberId,
		LeaderID: NullMemberID,
		Members: members,
	}
}

func (set *MembershipSet) FindMember(memberId int32) *ClusterMember {
	for _, member := range set.Members {
		if member.ID == memberId { return member }
	}

	return nil
}

func (set *MembershipSet) FindPassiveMember(memberId int32) *ClusterMember {
	for _, member := range set.PassiveMembers {
		if member.ID == memberId { return member }
	}

	return nil
}

func (set *MembershipSet) SelfMember() *ClusterMember {
	member := set.FindMember(set.MemberID)
	if member != nil { return member }

	return set.FindPassiveMember(set.MemberID)
}

func (set *MembershipSet) LeaderMember() *ClusterMember {
	if set.LeaderID == NullMemberID { return nil }
	return set.FindMember(set.LeaderID)
}

/*
	Quorum
		floor(n/2) + 1 over the active voting set
*/

func QuorumSize(memberCount int) int {
	return memberCount / 2 + 1
}

/*
	Quorum Position
		the position replicated to at least a quorum of active members, found
		by ranking member log positions descending and taking the position at
		rank quorum
*/

func (set *MembershipSet) QuorumPosition() int64 {
	if len(set.Members) == 0 { return NullPosition }

	positions := make([]int64, 0, len(set.Members))
	for _, member := range set.Members {
		positions = append(positions, member.LogPosition)
	}

	sort.Slice(positions, func(i, j int) bool { return positions[i] > positions[j] })

	return positions[QuorumSize(len(set.Members)) - 1]
}

/*
	Have Quorum Appended Within
		liveness check for the leader, a quorum counts the leader itself plus
		followers that reported an append position after the deadline
*/

func (set *MembershipSet) HaveQuorumAppendedWithin(deadlineNs int64) bool {
	active := 1 // self

	for _, member := range set.Members {
		if member.ID == set.MemberID { continue }
		if member.TimeOfLastAppendPositionNs >= deadlineNs { active++ }
	}

	return active >= QuorumSize(len(set.Members))
}

func (set *MembershipSet) HighMemberID() int32 {
	high := NullMemberID

	for _, member := range set.Members {
		if member.ID > high { high = member.ID }
	}

	for _, member := range set.PassiveMembers {
		if member.ID > high { high = member.ID }
	}

	return high
}

func (set *MembershipSet) AddPassiveMember(member *ClusterMember) {
	set.PassiveMembers = append(set.PassiveMembers, member)
	Log.Info("passive member added with id:", member.ID)
}

/*
	Promote Passive Member
		move a caught up passive member into the active voting set, applied at
		replay time of the membership change event on every member
*/

func (set *MembershipSet) PromotePassiveMember(memberId int32) *ClusterMember {
	member := set.FindPassiveMember(memberId)
	if member == nil { return nil }

	var remaining []*ClusterMember
	for _, passive := range set.PassiveMembers {
		if passive.ID != memberId { remaining = append(remaining, passive) }
	}

	set.PassiveMembers = remaining
	set.Members = append(set.Members, member)
	member.HasRequestedJoin = false

	Log.Info("passive member promoted to active with id:", memberId)

	return member
}

func (set *MembershipSet) RemoveMember(memberId int32) *ClusterMember {
	member := set.FindMember(memberId)
	if member == nil { return nil }

	var remaining []*ClusterMember
	for _, active := range set.Members {
		if active.ID != memberId { remaining = append(remaining, active) }
	}

	set.Members = remaining

	Log.Info("member removed from active set with id:", memberId)

	return member
}
