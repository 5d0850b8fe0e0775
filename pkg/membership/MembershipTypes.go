package membership

import "github.com/sirgallo/cluster/pkg/transport"


/*
	Cluster Member
		one row of the membership table, the publication is lazily attached
		and carries member status traffic toward that member
*/

type ClusterMember struct {
	ID int32

	ClientFacingEndpoint string
	MemberFacingEndpoint string
	TransferEndpoint     string
	LogEndpoint          string

	Publication *transport.Publication

	LogPosition                int64
	TimeOfLastAppendPositionNs int64

	CatchupReplaySessionID     int64
	CatchupReplayCorrelationID string

	RemovalPosition int64

	IsLeader           bool
	HasRequestedJoin   bool
	HasRequestedRemove bool
	HasTerminated      bool
}

/*
	Membership Set
		active voting members plus passive observers, the active set is the
		quorum domain, passive members receive the log but never count
*/

type MembershipSet struct {
	MemberID int32
	LeaderID int32

	Members        []*ClusterMember
	PassiveMembers []*ClusterMember
}

const NAME = "Membership"

const NullMemberID = int32(-1)
const NullPosition = int64(-1)
