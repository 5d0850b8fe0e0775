package archive

import "bytes"
import "errors"
import "sync/atomic"

import bolt "go.etcd.io/bbolt"
import "github.com/google/uuid"

import "github.com/sirgallo/cluster/pkg/transport"


//=========================================== Archive Recording Ops


/*
	Start Recording
		allocate a recording id and attach a recorder to the publication as a
		destination, every frame offered from now on is persisted under the
		recording before the offer returns
*/

func (arc *Archive) StartRecording(pub *transport.Publication) (int64, error) {
	recordingId, idErr := arc.nextRecordingID()
	if idErr != nil { return NullRecordingID, idErr }

	descriptor := &RecordingDescriptor{
		RecordingID: recordingId,
		Channel: pub.Stream.Channel,
		StreamID: pub.Stream.StreamID,
		StartPosition: pub.Position(),
		StopPosition: NullPosition,
	}

	putErr := arc.putRecordingDescriptor(descriptor)
	if putErr != nil { return NullRecordingID, putErr }

	recorder := &Recorder{
		archive: arc,
		publication: pub,
		RecordingID: recordingId,
	}

	arc.Mutex.Lock()
	arc.recorders[recordingId] = recorder
	arc.Mutex.Unlock()

	pub.AddDestination(recorder)

	return recordingId, nil
}

/*
	Extend Recording
		reattach an existing recording to a new publication, the recording
		resumes from its previous stop position when a member leads a new term
		on the same log recording
*/

func (arc *Archive) ExtendRecording(recordingId int64, pub *transport.Publication) error {
	descriptor, descErr := arc.GetRecordingDescriptor(recordingId)
	if descErr != nil { return descErr }

	descriptor.StopPosition = NullPosition

	putErr := arc.putRecordingDescriptor(descriptor)
	if putErr != nil { return putErr }

	recorder := &Recorder{
		archive: arc,
		publication: pub,
		RecordingID: recordingId,
	}

	arc.Mutex.Lock()
	arc.recorders[recordingId] = recorder
	arc.Mutex.Unlock()

	pub.AddDestination(recorder)

	return nil
}

func (arc *Archive) StopRecording(recordingId int64) error {
	arc.Mutex.Lock()
	recorder, exists := arc.recorders[recordingId]
	delete(arc.recorders, recordingId)
	arc.Mutex.Unlock()

	if ! exists { return errors.New("no active recorder for recording id") }

	recorder.Stopped = true
	recorder.publication.RemoveDestination(recorder)

	position, posErr := arc.RecordingPosition(recordingId)
	if posErr != nil { return posErr }

	descriptor, descErr := arc.GetRecordingDescriptor(recordingId)
	if descErr != nil { return descErr }

	descriptor.StopPosition = position

	return arc.putRecordingDescriptor(descriptor)
}

/*
	Recording Position
		the highest position persisted for the recording, the start position
		when no frames have been recorded yet
*/

func (arc *Archive) RecordingPosition(recordingId int64) (int64, error) {
	descriptor, descErr := arc.GetRecordingDescriptor(recordingId)
	if descErr != nil { return NullPosition, descErr }

	position := descriptor.StartPosition

	transaction := func(tx *bolt.Tx) error {
		frames := tx.Bucket([]byte(FramesBucket)).Bucket(ConvertIntToBytes(recordingId))
		if frames == nil { return nil }

		cursor := frames.Cursor()
		key, _ := cursor.Last()
		if key != nil { position = ConvertBytesToInt(key) }

		return nil
	}

	readErr := arc.DB.View(transaction)
	if readErr != nil { return NullPosition, readErr }

	return position, nil
}

func (arc *Archive) StopPosition(recordingId int64) (int64, error) {
	descriptor, descErr := arc.GetRecordingDescriptor(recordingId)
	if descErr != nil { return NullPosition, descErr }

	if descriptor.StopPosition != NullPosition { return descriptor.StopPosition, nil }

	return arc.RecordingPosition(recordingId)
}

/*
	Truncate Recording
		discard recorded frames past the given position, used when a deposed
		leader recorded further than the quorum committed
*/

func (arc *Archive) TruncateRecording(recordingId int64, position int64) error {
	transaction := func(tx *bolt.Tx) error {
		frames := tx.Bucket([]byte(FramesBucket)).Bucket(ConvertIntToBytes(recordingId))
		if frames == nil { return nil }

		cursor := frames.Cursor()
		startKey := ConvertIntToBytes(position)

		var toDelete [][]byte
		for key, _ := cursor.Seek(startKey); key != nil; key, _ = cursor.Next() {
			if bytes.Compare(key, startKey) > 0 { toDelete = append(toDelete, key) }
		}

		for _, key := range toDelete {
			delErr := frames.Delete(key)
			if delErr != nil { return delErr }
		}

		return nil
	}

	truncateErr := arc.DB.Update(transaction)
	if truncateErr != nil { return truncateErr }

	descriptor, descErr := arc.GetRecordingDescriptor(recordingId)
	if descErr != nil { return descErr }

	descriptor.StopPosition = position

	return arc.putRecordingDescriptor(descriptor)
}

/*
	Start Replay
		build a replay session over the recorded frames in
		(fromPosition, toPosition], the returned subscription drains in order
		and reports end of stream once exhausted
*/

func (arc *Archive) StartReplay(recordingId int64, fromPosition int64, toPosition int64) (*ReplaySession, error) {
	descriptor, descErr := arc.GetRecordingDescriptor(recordingId)
	if descErr != nil { return nil, descErr }

	var frames []transport.Frame

	transaction := func(tx *bolt.Tx) error {
		frameBucket := tx.Bucket([]byte(FramesBucket)).Bucket(ConvertIntToBytes(recordingId))
		if frameBucket == nil { return nil }

		cursor := frameBucket.Cursor()

		for key, val := cursor.First(); key != nil; key, val = cursor.Next() {
			position := ConvertBytesToInt(key)
			if position <= fromPosition { continue }
			if toPosition != NullPosition && position > toPosition { break }

			buffered := make([]byte, len(val))
			copy(buffered, val)

			frames = append(frames, transport.Frame{ Position: position, Bytes: buffered })
		}

		return nil
	}

	readErr := arc.DB.View(transaction)
	if readErr != nil { return nil, readErr }

	stream := &transport.Stream{
		Channel: descriptor.Channel,
		StreamID: descriptor.StreamID,
		Frames: frames,
		StartPosition: fromPosition,
		Closed: true,
	}

	stream.Position = fromPosition
	if len(frames) > 0 { stream.Position = frames[len(frames) - 1].Position }

	image := &transport.Image{ Stream: stream, Position: fromPosition }

	sessionId := atomic.AddInt64(&arc.nextReplayID, 1)

	return &ReplaySession{
		SessionID: sessionId,
		CorrelationID: uuid.NewString(),
		Subscription: &transport.Subscription{
			Channel: descriptor.Channel,
			StreamID: descriptor.StreamID,
			Image: image,
		},
	}, nil
}

func (arc *Archive) StopReplay(session *ReplaySession) {
	if session != nil { session.Subscription.Close() }
}

/*
	Recorder
		transport.FrameSink attached as a publication destination, frames are
		keyed by their end of frame position so the recording position is the
		last key in the bucket
*/

func (recorder *Recorder) OnFrame(frame transport.Frame) error {
	if recorder.Stopped { return errors.New("recording stopped") }

	transaction := func(tx *bolt.Tx) error {
		frameBucket, createErr := tx.Bucket([]byte(FramesBucket)).CreateBucketIfNotExists(ConvertIntToBytes(recorder.RecordingID))
		if createErr != nil { return createErr }

		return frameBucket.Put(ConvertIntToBytes(frame.Position), frame.Bytes)
	}

	return recorder.archive.DB.Update(transaction)
}
