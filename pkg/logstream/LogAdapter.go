package logstream

import "github.com/sirgallo/cluster/pkg/transport"


//=========================================== Log Adapter


/*
	Log Adapter
		consumes framed entries from the replicated log image and dispatches
		into the sink

		polling is bounded so a follower never consumes past
		min(notified commit position, local append position), and controlled
		so a handler can abort mid fragment leaving it for the next poll
*/

func NewLogAdapter(image *transport.Image) *LogAdapter {
	return &LogAdapter{
		Image: image,
	}
}

func (adapter *LogAdapter) Poll(sink LogSink, maxPosition int64, fragmentLimit int) int {
	handler := func(bytes []byte, position int64) transport.PollAction {
		entry, decodeErr := DecodeLogEntry(bytes)
		if decodeErr != nil {
			Log.Error("unable to decode log entry at position:", position, decodeErr.Error())
			return transport.PollContinue
		}

		return dispatch(sink, entry, position)
	}

	return adapter.Image.BoundedControlledPoll(handler, maxPosition, fragmentLimit)
}

func (adapter *LogAdapter) Position() int64 {
	return adapter.Image.Position
}

func (adapter *LogAdapter) IsImageClosed() bool {
	return adapter.Image.IsClosed()
}

func (adapter *LogAdapter) IsEndOfStream() bool {
	return adapter.Image.IsEndOfStream()
}

func (adapter *LogAdapter) Close() {
	adapter.Image.Close()
}

func dispatch(sink LogSink, entry *LogEntry, position int64) transport.PollAction {
	switch entry.Kind {
		case EntrySessionOpen:
			return sink.OnReplaySessionOpen(entry, position)
		case EntrySessionClose:
			return sink.OnReplaySessionClose(entry, position)
		case EntrySessionMessage:
			return sink.OnReplaySessionMessage(entry, position)
		case EntryTimer:
			return sink.OnReplayTimerEvent(entry, position)
		case EntryClusterAction:
			return sink.OnReplayClusterAction(entry, position)
		case EntryNewLeadershipTerm:
			return sink.OnReplayNewLeadershipTermEvent(entry, position)
		case EntryMembershipChange:
			return sink.OnReplayMembershipChange(entry, position)
		case EntryServiceSessionMessage:
			return sink.OnReplayServiceSessionMessage(entry, position)
		default:
			Log.Warn("unknown log entry kind:", entry.Kind)
			return transport.PollContinue
	}
}
