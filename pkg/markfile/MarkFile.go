package markfile

import "os"
import "path/filepath"

import "github.com/sirgallo/cluster/pkg/utils"


//=========================================== Cluster Mark File


/*
	Mark File
		liveness marker for external tooling, rewritten on a slow cadence
		with the latest activity timestamp
*/

type MarkFileState struct {
	MemberID            int32
	Pid                 int
	ActivityTimestampMs int64
}

type MarkFile struct {
	Path  string
	state MarkFileState
}

func NewMarkFile(dir string, memberId int32) (*MarkFile, error) {
	mkdirErr := os.MkdirAll(dir, 0755)
	if mkdirErr != nil { return nil, mkdirErr }

	return &MarkFile{
		Path: filepath.Join(dir, "cluster-mark.dat"),
		state: MarkFileState{
			MemberID: memberId,
			Pid: os.Getpid(),
		},
	}, nil
}

func (mark *MarkFile) Update(nowMs int64) error {
	mark.state.ActivityTimestampMs = nowMs

	encoded, encodeErr := utils.EncodeStructToBytes[MarkFileState](mark.state)
	if encodeErr != nil { return encodeErr }

	return os.WriteFile(mark.Path, encoded, 0644)
}

func ReadMarkFile(path string) (*MarkFileState, error) {
	data, readErr := os.ReadFile(path)
	if readErr != nil { return nil, readErr }

	return utils.DecodeBytesToStruct[MarkFileState](data)
}
