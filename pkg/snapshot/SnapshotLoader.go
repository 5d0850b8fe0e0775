package snapshot

import "errors"
import "time"

import "github.com/sirgallo/cluster/pkg/timerwheel"
import "github.com/sirgallo/cluster/pkg/transport"
import "github.com/sirgallo/cluster/pkg/utils"


//=========================================== Snapshot Loader


/*
	Snapshot Loader
		symmetric with the taker, drains a replayed snapshot recording and
		rebuilds the module snapshot

		a stream without a Begin/End bracket, or with an incompatible time
		unit or app version major, fails the load
*/

func NewSnapshotLoader(image *transport.Image) *SnapshotLoader {
	return &SnapshotLoader{
		Image: image,
	}
}

func (loader *SnapshotLoader) Load(expectedTimeUnit string, appVersion int32) (*ModuleSnapshot, error) {
	snapshot := &ModuleSnapshot{}

	begun, ended := false, false
	var loadErr error

	handler := func(bytes []byte, position int64) transport.PollAction {
		record, decodeErr := utils.DecodeBytesToStruct[SnapshotRecord](bytes)
		if decodeErr != nil {
			loadErr = decodeErr
			return transport.PollBreak
		}

		switch record.Kind {
			case RecordBegin:
				if record.TimeUnit != expectedTimeUnit {
					loadErr = errors.New("incompatible time unit in snapshot: " + record.TimeUnit)
					return transport.PollBreak
				}

				if MajorVersion(record.AppVersion) != MajorVersion(appVersion) {
					loadErr = errors.New("incompatible app version major in snapshot")
					return transport.PollBreak
				}

				begun = true
				snapshot.LogPosition = record.LogPosition
				snapshot.LeadershipTermID = record.LeadershipTermID
				snapshot.TimeUnit = record.TimeUnit
				snapshot.AppVersion = record.AppVersion
			case RecordModuleState:
				snapshot.NextSessionID = record.NextSessionID
				snapshot.NextServiceSessionID = record.NextServiceSessionID
				snapshot.LogServiceSessionID = record.LogServiceSessionID
				snapshot.PendingMessageCapacity = record.PendingMessageCapacity
			case RecordMembership:
				snapshot.MemberID = record.MemberID
				snapshot.HighMemberID = record.HighMemberID
				snapshot.Members = record.Members
				snapshot.PassiveMembers = record.PassiveMembers
			case RecordSession:
				if record.Session != nil { snapshot.Sessions = append(snapshot.Sessions, *record.Session) }
			case RecordTimer:
				snapshot.Timers = append(snapshot.Timers, timerwheel.TimerEntry{
					CorrelationID: record.CorrelationID,
					Deadline: record.Deadline,
				})
			case RecordPendingMessage:
				snapshot.PendingMessages = append(snapshot.PendingMessages, PendingMessageSnapshot{
					ServiceSessionID: record.ServiceSessionID,
					Payload: record.Payload,
				})
			case RecordEnd:
				ended = true
				return transport.PollBreak
		}

		return transport.PollContinue
	}

	for ! ended {
		polled := loader.Image.ControlledPoll(handler, 64)
		if loadErr != nil { return nil, loadErr }

		if polled == 0 {
			if loader.Image.IsEndOfStream() { break }
			time.Sleep(time.Millisecond)
		}
	}

	if ! begun || ! ended { return nil, errors.New("snapshot stream incomplete") }

	return snapshot, nil
}

func MajorVersion(appVersion int32) int32 {
	return appVersion >> 16
}
