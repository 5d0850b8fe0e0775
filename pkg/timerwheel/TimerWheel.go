package timerwheel

import "sort"


//=========================================== Timer Wheel


/*
	Timer Wheel
		ticks per wheel is rounded up to the next power of two so slot lookup
		is a mask instead of a modulo
*/

func NewTimerWheel(opts TimerWheelOpts) *TimerWheel {
	ticksPerWheel := roundUpToPowerOfTwo(opts.TicksPerWheel)
	if ticksPerWheel <= 0 { ticksPerWheel = DefaultTicksPerWheel }

	wheel := make([][]*TimerEntry, ticksPerWheel)

	return &TimerWheel{
		startTime: opts.StartTime,
		tickResolution: opts.TickResolution,
		ticksPerWheel: ticksPerWheel,
		mask: ticksPerWheel - 1,
		currentTick: 0,
		wheel: wheel,
		byCorrelation: make(map[int64]*TimerEntry),
		expiredTimerCount: make(map[int64]int64),
	}
}

/*
	Schedule
		a schedule for a correlation that already counted an expiry during
		replay is suppressed, consuming the count, otherwise an existing timer
		for the correlation is replaced
*/

func (wheel *TimerWheel) Schedule(correlationId int64, deadline int64) bool {
	count, counted := wheel.expiredTimerCount[correlationId]
	if counted && count > 0 {
		if count == 1 {
			delete(wheel.expiredTimerCount, correlationId)
		} else { wheel.expiredTimerCount[correlationId] = count - 1 }

		return false
	}

	if _, exists := wheel.byCorrelation[correlationId]; exists { wheel.Cancel(correlationId) }

	entry := &TimerEntry{ CorrelationID: correlationId, Deadline: deadline }

	slot := wheel.slotFor(deadline)
	wheel.wheel[slot] = append(wheel.wheel[slot], entry)
	wheel.byCorrelation[correlationId] = entry

	return true
}

/*
	Cancel
		a cancel for an absent correlation records an already fired timer so a
		replayed schedule for the same correlation does not refire
*/

func (wheel *TimerWheel) Cancel(correlationId int64) bool {
	entry, exists := wheel.byCorrelation[correlationId]
	if ! exists {
		wheel.expiredTimerCount[correlationId]++
		return false
	}

	delete(wheel.byCorrelation, correlationId)

	slot := wheel.slotFor(entry.Deadline)

	var remaining []*TimerEntry
	for _, slotted := range wheel.wheel[slot] {
		if slotted != entry { remaining = append(remaining, slotted) }
	}

	wheel.wheel[slot] = remaining

	return true
}

func (wheel *TimerWheel) CancelForReplay(correlationId int64) bool {
	return wheel.Cancel(correlationId)
}

/*
	Poll
		advance the wheel up to now, invoking the handler for each expired
		timer in deadline order within a slot

		the handler reports whether the expiry was consumed, a false return
		(log backpressure) stops polling with the timer still scheduled so the
		expiry retries next tick
*/

func (wheel *TimerWheel) Poll(now int64, handler TimerHandler) int {
	expired := 0

	targetTick := wheel.tickFor(now)

	for wheel.currentTick <= targetTick {
		slot := int(wheel.currentTick) & wheel.mask
		slotted := wheel.wheel[slot]

		sort.Slice(slotted, func(i, j int) bool { return slotted[i].Deadline < slotted[j].Deadline })

		for _, entry := range slotted {
			if entry.Deadline > now { continue }

			if ! handler(entry.CorrelationID) { return expired }

			wheel.removeFromSlot(slot, entry)
			delete(wheel.byCorrelation, entry.CorrelationID)
			expired++
		}

		if wheel.currentTick == targetTick { break }
		wheel.currentTick++
	}

	return expired
}

func (wheel *TimerWheel) Count() int {
	return len(wheel.byCorrelation)
}

/*
	Entries
		snapshot view of scheduled timers ordered by correlation id
*/

func (wheel *TimerWheel) Entries() []TimerEntry {
	var entries []TimerEntry

	for _, entry := range wheel.byCorrelation {
		entries = append(entries, *entry)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].CorrelationID < entries[j].CorrelationID })

	return entries
}


//========================================== helper methods


func (wheel *TimerWheel) slotFor(deadline int64) int {
	return int(wheel.tickFor(deadline)) & wheel.mask
}

func (wheel *TimerWheel) tickFor(deadline int64) int64 {
	if deadline <= wheel.startTime { return 0 }
	return (deadline - wheel.startTime) / wheel.tickResolution
}

func (wheel *TimerWheel) removeFromSlot(slot int, entry *TimerEntry) {
	var remaining []*TimerEntry
	for _, slotted := range wheel.wheel[slot] {
		if slotted != entry { remaining = append(remaining, slotted) }
	}

	wheel.wheel[slot] = remaining
}

func roundUpToPowerOfTwo(value int) int {
	if value <= 0 { return 0 }

	rounded := 1
	for rounded < value {
		rounded = rounded << 1
	}

	return rounded
}
