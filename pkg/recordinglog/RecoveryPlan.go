package recordinglog

import "github.com/sirgallo/cluster/pkg/archive"


//=========================================== Recovery Plan


/*
	Create Recovery Plan
		derive the bootstrap plan from the recording log

		1.) walk entries newest first for the latest valid snapshot set, the
			set is keyed by leadership term id + log position and is complete
			once the module's sentinel entry is seen
		2.) find the latest term entry, its recording carries the appended log
			to replay from the snapshot position forward
		3.) the appended log position comes from the archive's recorded stop
			position for that recording, not the recording log, a crashed
			member may have recorded past its last recorded entry
*/

func (rlog *RecordingLog) CreateRecoveryPlan(arc *archive.Archive, serviceCount int) (*RecoveryPlan, error) {
	entries, readErr := rlog.Entries()
	if readErr != nil { return nil, readErr }

	plan := &RecoveryPlan{
		LastLeadershipTermID: NullTermID,
		AppendedLogPosition: 0,
	}

	snapshotTermID, snapshotLogPosition := NullTermID, NullPosition
	var moduleEntry *Entry
	serviceEntries := make(map[int32]Entry)

	for idx := len(entries) - 1; idx >= 0; idx-- {
		entry := entries[idx]
		if entry.EntryType != EntryTypeSnapshot || ! entry.IsValid { continue }

		if snapshotTermID == NullTermID {
			snapshotTermID = entry.LeadershipTermID
			snapshotLogPosition = entry.LogPosition
		}

		// the set is keyed by term + position, an older set below ends the scan
		if entry.LeadershipTermID != snapshotTermID || entry.LogPosition != snapshotLogPosition { break }

		if entry.ServiceID == ServiceIDSentinel {
			snapshot := entry
			moduleEntry = &snapshot
		} else { serviceEntries[entry.ServiceID] = entry }
	}

	if moduleEntry != nil && len(serviceEntries) >= serviceCount {
		for serviceId := int32(0); serviceId < int32(serviceCount); serviceId++ {
			serviceEntry, exists := serviceEntries[serviceId]
			if exists { plan.Snapshots = append(plan.Snapshots, serviceEntry) }
		}

		plan.Snapshots = append(plan.Snapshots, *moduleEntry)
	}

	for idx := len(entries) - 1; idx >= 0; idx-- {
		entry := entries[idx]
		if entry.EntryType != EntryTypeTerm { continue }

		stopPosition, stopErr := arc.StopPosition(entry.RecordingID)
		if stopErr != nil { return nil, stopErr }

		startPosition := entry.TermBaseLogPosition
		if len(plan.Snapshots) > 0 {
			moduleSnapshot := plan.Snapshots[len(plan.Snapshots) - 1]
			if moduleSnapshot.LogPosition > startPosition { startPosition = moduleSnapshot.LogPosition }
		}

		plan.LastLeadershipTermID = entry.LeadershipTermID
		plan.AppendedLogPosition = stopPosition
		plan.Log = &RecoveryPlanLog{
			RecordingID: entry.RecordingID,
			InitialTermID: entry.LeadershipTermID,
			StartPosition: startPosition,
			StopPosition: stopPosition,
		}

		break
	}

	if plan.Log == nil && len(plan.Snapshots) > 0 {
		moduleSnapshot := plan.Snapshots[len(plan.Snapshots) - 1]
		plan.LastLeadershipTermID = moduleSnapshot.LeadershipTermID
		plan.AppendedLogPosition = moduleSnapshot.LogPosition
	}

	return plan, nil
}
