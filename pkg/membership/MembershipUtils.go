package membership

import "errors"
import "fmt"
import "strconv"
import "strings"


//=========================================== Membership Encoding


/*
	members are log replicated as a single string so membership changes replay
	deterministically on every member:

		id,clientEndpoint,memberEndpoint,transferEndpoint,logEndpoint|...
*/

func EncodeMembers(members []*ClusterMember) string {
	var encoded []string

	for _, member := range members {
		encoded = append(encoded, fmt.Sprintf(
			"%d,%s,%s,%s,%s",
			member.ID,
			member.ClientFacingEndpoint,
			member.MemberFacingEndpoint,
			member.TransferEndpoint,
			member.LogEndpoint,
		))
	}

	return strings.Join(encoded, "|")
}

func ParseMembers(encoded string) ([]*ClusterMember, error) {
	var members []*ClusterMember
	if encoded == "" { return members, nil }

	for _, chunk := range strings.Split(encoded, "|") {
		fields := strings.Split(chunk, ",")
		if len(fields) != 5 { return nil, errors.New("malformed member encoding: " + chunk) }

		id, idErr := strconv.ParseInt(fields[0], 10, 32)
		if idErr != nil { return nil, idErr }

		members = append(members, &ClusterMember{
			ID: int32(id),
			ClientFacingEndpoint: fields[1],
			MemberFacingEndpoint: fields[2],
			TransferEndpoint: fields[3],
			LogEndpoint: fields[4],
			RemovalPosition: NullPosition,
		})
	}

	return members, nil
}

func ClientEndpoints(members []*ClusterMember) string {
	var endpoints []string
	for _, member := range members {
		endpoints = append(endpoints, member.ClientFacingEndpoint)
	}

	return strings.Join(endpoints, ",")
}
