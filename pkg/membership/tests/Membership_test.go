package membershiptests

import "testing"

import "github.com/sirgallo/cluster/pkg/membership"


func SetupMockSet() *membership.MembershipSet {
	members := []*membership.ClusterMember{
		{ ID: 0, LogPosition: 500 },
		{ ID: 1, LogPosition: 300 },
		{ ID: 2, LogPosition: 100 },
	}

	return membership.NewMembershipSet(0, members)
}

func TestQuorumSize(t *testing.T) {
	cases := map[int]int{ 1: 1, 2: 2, 3: 2, 4: 3, 5: 3 }

	for memberCount, expected := range cases {
		actual := membership.QuorumSize(memberCount)

		t.Logf("actual quorum: %d, expected quorum: %d\n", actual, expected)
		if actual != expected {
			t.Errorf("actual quorum not equal to expected: actual(%d), expected(%d)\n", actual, expected)
		}
	}
}

/*
	the quorum position is the highest position replicated to at least a
	quorum, with positions 500/300/100 and quorum 2 that is 300
*/

func TestQuorumPosition(t *testing.T) {
	set := SetupMockSet()

	actual := set.QuorumPosition()
	expected := int64(300)

	t.Logf("actual position: %d, expected position: %d\n", actual, expected)
	if actual != expected {
		t.Errorf("actual position not equal to expected: actual(%d), expected(%d)\n", actual, expected)
	}
}

func TestEncodeParseRoundTrip(t *testing.T) {
	members := []*membership.ClusterMember{
		{ ID: 0, ClientFacingEndpoint: "ingress:0", MemberFacingEndpoint: "member-status:0", TransferEndpoint: "transfer:0", LogEndpoint: "log:0" },
		{ ID: 1, ClientFacingEndpoint: "ingress:1", MemberFacingEndpoint: "member-status:1", TransferEndpoint: "transfer:1", LogEndpoint: "log:1" },
	}

	encoded := membership.EncodeMembers(members)
	parsed, parseErr := membership.ParseMembers(encoded)
	if parseErr != nil { t.Errorf("error on parsing members: %s", parseErr.Error()) }

	expectedTotal := 2
	t.Logf("actual total: %d, expected total: %d\n", len(parsed), expectedTotal)
	if len(parsed) != expectedTotal {
		t.Errorf("actual total not equal to expected: actual(%d), expected(%d)\n", len(parsed), expectedTotal)
	}

	if parsed[1].ID != 1 || parsed[1].ClientFacingEndpoint != "ingress:1" || parsed[1].LogEndpoint != "log:1" {
		t.Errorf("parsed member does not match encoded: actual(%v)\n", parsed[1])
	}
}

func TestParseMalformedMember(t *testing.T) {
	_, parseErr := membership.ParseMembers("0,onlytwo")

	t.Logf("actual error: %v, expected error: not nil\n", parseErr)
	if parseErr == nil {
		t.Errorf("expected malformed encoding error, got nil\n")
	}
}

func TestPromotePassiveMember(t *testing.T) {
	set := SetupMockSet()

	passive := &membership.ClusterMember{ ID: 3 }
	set.AddPassiveMember(passive)

	expectedPassive := 1
	t.Logf("actual passive: %d, expected passive: %d\n", len(set.PassiveMembers), expectedPassive)
	if len(set.PassiveMembers) != expectedPassive {
		t.Errorf("actual passive not equal to expected: actual(%d), expected(%d)\n", len(set.PassiveMembers), expectedPassive)
	}

	promoted := set.PromotePassiveMember(3)
	if promoted == nil { t.Errorf("expected promoted member, got nil\n") }

	expectedActive := 4
	t.Logf("actual active: %d, expected active: %d\n", len(set.Members), expectedActive)
	if len(set.Members) != expectedActive {
		t.Errorf("actual active not equal to expected: actual(%d), expected(%d)\n", len(set.Members), expectedActive)
	}

	expectedPassive = 0
	t.Logf("actual passive: %d, expected passive: %d\n", len(set.PassiveMembers), expectedPassive)
	if len(set.PassiveMembers) != expectedPassive {
		t.Errorf("actual passive not equal to expected: actual(%d), expected(%d)\n", len(set.PassiveMembers), expectedPassive)
	}
}

func TestRemoveMember(t *testing.T) {
	set := SetupMockSet()

	removed := set.RemoveMember(2)
	if removed == nil { t.Errorf("expected removed member, got nil\n") }

	expectedActive := 2
	t.Logf("actual active: %d, expected active: %d\n", len(set.Members), expectedActive)
	if len(set.Members) != expectedActive {
		t.Errorf("actual active not equal to expected: actual(%d), expected(%d)\n", len(set.Members), expectedActive)
	}

	if set.FindMember(2) != nil {
		t.Errorf("removed member still present in active set\n")
	}
}

func TestHaveQuorumAppendedWithin(t *testing.T) {
	set := SetupMockSet()

	set.Members[1].TimeOfLastAppendPositionNs = 1000
	set.Members[2].TimeOfLastAppendPositionNs = 100

	actual := set.HaveQuorumAppendedWithin(500)
	expected := true

	t.Logf("actual quorum alive: %v, expected quorum alive: %v\n", actual, expected)
	if actual != expected {
		t.Errorf("actual quorum alive not equal to expected: actual(%v), expected(%v)\n", actual, expected)
	}

	actual = set.HaveQuorumAppendedWithin(2000)
	expected = false

	t.Logf("actual quorum alive: %v, expected quorum alive: %v\n", actual, expected)
	if actual != expected {
		t.Errorf("actual quorum alive not equal to expected: actual(%v), expected(%v)\n", actual, expected)
	}
}
