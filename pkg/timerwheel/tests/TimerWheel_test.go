package timerwheeltests

import "testing"

import "github.com/sirgallo/cluster/pkg/timerwheel"


func SetupMockWheel() *timerwheel.TimerWheel {
	return timerwheel.NewTimerWheel(timerwheel.TimerWheelOpts{
		StartTime: 0,
		TickResolution: 10,
		TicksPerWheel: 16,
	})
}

func TestScheduleAndPoll(t *testing.T) {
	wheel := SetupMockWheel()

	wheel.Schedule(1, 25)
	wheel.Schedule(2, 55)

	var expired []int64
	handler := func(correlationId int64) bool {
		expired = append(expired, correlationId)
		return true
	}

	count := wheel.Poll(30, handler)

	expectedCount := 1
	t.Logf("actual expired: %d, expected expired: %d\n", count, expectedCount)
	if count != expectedCount {
		t.Errorf("actual expired not equal to expected: actual(%d), expected(%d)\n", count, expectedCount)
	}

	if len(expired) != 1 || expired[0] != int64(1) {
		t.Errorf("wrong correlation expired: actual(%v), expected([1])\n", expired)
	}

	count = wheel.Poll(60, handler)

	t.Logf("actual expired: %d, expected expired: %d\n", count, expectedCount)
	if count != expectedCount {
		t.Errorf("actual expired not equal to expected: actual(%d), expected(%d)\n", count, expectedCount)
	}

	expectedRemaining := 0
	t.Logf("actual remaining: %d, expected remaining: %d\n", wheel.Count(), expectedRemaining)
	if wheel.Count() != expectedRemaining {
		t.Errorf("actual remaining not equal to expected: actual(%d), expected(%d)\n", wheel.Count(), expectedRemaining)
	}
}

func TestCancelRemovesTimer(t *testing.T) {
	wheel := SetupMockWheel()

	wheel.Schedule(7, 40)

	ok := wheel.Cancel(7)

	expected := true
	t.Logf("actual cancelled: %v, expected cancelled: %v\n", ok, expected)
	if ok != expected {
		t.Errorf("actual cancelled not equal to expected: actual(%v), expected(%v)\n", ok, expected)
	}

	count := wheel.Poll(100, func(correlationId int64) bool { return true })

	expectedCount := 0
	t.Logf("actual expired: %d, expected expired: %d\n", count, expectedCount)
	if count != expectedCount {
		t.Errorf("actual expired not equal to expected: actual(%d), expected(%d)\n", count, expectedCount)
	}
}

/*
	replay idempotence: a cancel for an absent correlation counts an already
	fired timer, the next schedule for that correlation is suppressed
*/

func TestExpiredTimerCountSuppressesSchedule(t *testing.T) {
	wheel := SetupMockWheel()

	cancelled := wheel.Cancel(9)

	expectedCancelled := false
	t.Logf("actual cancelled: %v, expected cancelled: %v\n", cancelled, expectedCancelled)
	if cancelled != expectedCancelled {
		t.Errorf("actual cancelled not equal to expected: actual(%v), expected(%v)\n", cancelled, expectedCancelled)
	}

	scheduled := wheel.Schedule(9, 40)

	expectedScheduled := false
	t.Logf("actual scheduled: %v, expected scheduled: %v\n", scheduled, expectedScheduled)
	if scheduled != expectedScheduled {
		t.Errorf("actual scheduled not equal to expected: actual(%v), expected(%v)\n", scheduled, expectedScheduled)
	}

	scheduled = wheel.Schedule(9, 40)

	expectedScheduled = true
	t.Logf("actual scheduled: %v, expected scheduled: %v\n", scheduled, expectedScheduled)
	if scheduled != expectedScheduled {
		t.Errorf("actual scheduled not equal to expected: actual(%v), expected(%v)\n", scheduled, expectedScheduled)
	}
}

/*
	backpressure: a handler returning false stops the poll with the timer
	still scheduled so the expiry retries next tick
*/

func TestBackpressureLeavesTimerScheduled(t *testing.T) {
	wheel := SetupMockWheel()

	wheel.Schedule(3, 15)

	count := wheel.Poll(20, func(correlationId int64) bool { return false })

	expectedCount := 0
	t.Logf("actual expired: %d, expected expired: %d\n", count, expectedCount)
	if count != expectedCount {
		t.Errorf("actual expired not equal to expected: actual(%d), expected(%d)\n", count, expectedCount)
	}

	expectedRemaining := 1
	t.Logf("actual remaining: %d, expected remaining: %d\n", wheel.Count(), expectedRemaining)
	if wheel.Count() != expectedRemaining {
		t.Errorf("actual remaining not equal to expected: actual(%d), expected(%d)\n", wheel.Count(), expectedRemaining)
	}

	count = wheel.Poll(20, func(correlationId int64) bool { return true })

	expectedCount = 1
	t.Logf("actual expired: %d, expected expired: %d\n", count, expectedCount)
	if count != expectedCount {
		t.Errorf("actual expired not equal to expected: actual(%d), expected(%d)\n", count, expectedCount)
	}
}

func TestEntriesSnapshotView(t *testing.T) {
	wheel := SetupMockWheel()

	wheel.Schedule(5, 100)
	wheel.Schedule(2, 50)
	wheel.Schedule(8, 75)

	entries := wheel.Entries()

	expectedTotal := 3
	t.Logf("actual total: %d, expected total: %d\n", len(entries), expectedTotal)
	if len(entries) != expectedTotal {
		t.Errorf("actual total not equal to expected: actual(%d), expected(%d)\n", len(entries), expectedTotal)
	}

	if entries[0].CorrelationID != 2 || entries[1].CorrelationID != 5 || entries[2].CorrelationID != 8 {
		t.Errorf("entries not ordered by correlation id: actual(%v)\n", entries)
	}
}
