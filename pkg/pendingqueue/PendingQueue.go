package pendingqueue

import "errors"

import "github.com/sirgallo/cluster/pkg/logger"


//=========================================== Pending Service Message Queue


var Log = clog.NewCustomLog(NAME)


func NewPendingMessageQueue(opts PendingQueueOpts) *PendingMessageQueue {
	capacity := opts.Capacity
	if capacity <= 0 { capacity = DefaultCapacity }

	return &PendingMessageQueue{
		capacity: capacity,
		NextServiceSessionID: ServiceSessionIDBase,
		LogServiceSessionID: ServiceSessionIDBase - 1,
	}
}

/*
	Enqueue
		stamp the next service session id and the NotAppended sentinel into
		the slot, ids are monotonic and FIFO order is preserved through the
		append cycle
*/

func (queue *PendingMessageQueue) Enqueue(payload []byte) error {
	if len(queue.entries) >= queue.capacity { return errors.New("pending service message capacity exceeded") }

	entry := &PendingServiceMessage{
		ServiceSessionID: queue.NextServiceSessionID,
		Timestamp: NotAppended,
		Payload: payload,
	}

	queue.NextServiceSessionID++
	queue.entries = append(queue.entries, entry)

	return nil
}

/*
	Poll
		replay the head of the ring through the append function, up to limit
		messages per tick

		a successful append overwrites the slot timestamp with the resulting
		position and advances the head offset, a zero position means the log
		is backpressured and the same slot retries next tick
*/

func (queue *PendingMessageQueue) Poll(limit int, appendToLog func(entry *PendingServiceMessage) int64) int {
	appended := 0

	for appended < limit && queue.headOffset < len(queue.entries) {
		entry := queue.entries[queue.headOffset]

		position := appendToLog(entry)
		if position <= 0 { break }

		entry.Timestamp = position
		queue.headOffset++
		appended++
	}

	return appended
}

/*
	Leader Sweep
		drop slots whose append position has committed, the committed ids
		advance the log service session id watermark
*/

func (queue *PendingMessageQueue) LeaderSweep(commitPosition int64) int {
	swept := 0

	for len(queue.entries) > 0 {
		entry := queue.entries[0]
		if entry.Timestamp == NotAppended || entry.Timestamp > commitPosition { break }

		if entry.ServiceSessionID > queue.LogServiceSessionID { queue.LogServiceSessionID = entry.ServiceSessionID }

		queue.entries = queue.entries[1:]
		if queue.headOffset > 0 { queue.headOffset-- }
		swept++
	}

	return swept
}

/*
	Follower Sweep
		drop slots whose service session id the replicated log has passed,
		reconciling locally generated ids with those the leader committed
*/

func (queue *PendingMessageQueue) FollowerSweep(logServiceSessionId int64) int {
	swept := 0

	for len(queue.entries) > 0 {
		entry := queue.entries[0]
		if entry.ServiceSessionID > logServiceSessionId { break }

		queue.entries = queue.entries[1:]
		if queue.headOffset > 0 { queue.headOffset-- }
		swept++
	}

	if logServiceSessionId > queue.LogServiceSessionID { queue.LogServiceSessionID = logServiceSessionId }

	return swept
}

/*
	Restore Uncommitted
		reset every appended but uncommitted slot back to the NotAppended
		sentinel and rewind the head so the next leader re-appends cleanly in
		the original order
*/

func (queue *PendingMessageQueue) RestoreUncommitted() {
	for _, entry := range queue.entries {
		entry.Timestamp = NotAppended
	}

	queue.headOffset = 0
}

/*
	Uncommitted Count
		derived from slot state, the appended slots still in the ring
*/

func (queue *PendingMessageQueue) UncommittedCount() int {
	count := 0

	for _, entry := range queue.entries {
		if entry.Timestamp != NotAppended { count++ }
	}

	return count
}

func (queue *PendingMessageQueue) Size() int {
	return len(queue.entries)
}

func (queue *PendingMessageQueue) Capacity() int {
	return queue.capacity
}

func (queue *PendingMessageQueue) Entries() []*PendingServiceMessage {
	return queue.entries
}

/*
	Restore Entry
		reload a slot from a snapshot, the timestamp resets to the sentinel
		since nothing from the snapshot has been re-appended in this term
*/

func (queue *PendingMessageQueue) RestoreEntry(serviceSessionId int64, payload []byte) {
	entry := &PendingServiceMessage{
		ServiceSessionID: serviceSessionId,
		Timestamp: NotAppended,
		Payload: payload,
	}

	queue.entries = append(queue.entries, entry)

	if serviceSessionId >= queue.NextServiceSessionID { queue.NextServiceSessionID = serviceSessionId + 1 }
}
