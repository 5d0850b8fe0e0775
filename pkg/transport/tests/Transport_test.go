package transporttests

import "testing"

import "github.com/sirgallo/cluster/pkg/transport"


func TestOfferAndPollOrdering(t *testing.T) {
	medium := transport.NewTransportMedium()

	pub := medium.AddPublication("test", 1)
	sub := medium.AddSubscription("test", 1)

	posA := pub.Offer([]byte("a"))
	posB := pub.Offer([]byte("b"))

	t.Logf("actual first position: %d, expected: > 0\n", posA)
	if posA <= 0 {
		t.Errorf("first offer not accepted: actual(%d)\n", posA)
	}

	if posB <= posA {
		t.Errorf("positions not strictly increasing: actual(%d, %d)\n", posA, posB)
	}

	var consumed []string
	handler := func(bytes []byte, position int64) transport.PollAction {
		consumed = append(consumed, string(bytes))
		return transport.PollContinue
	}

	polled := sub.Poll(handler, 10)

	expectedPolled := 2
	t.Logf("actual polled: %d, expected polled: %d\n", polled, expectedPolled)
	if polled != expectedPolled {
		t.Errorf("actual polled not equal to expected: actual(%d), expected(%d)\n", polled, expectedPolled)
	}

	if len(consumed) != 2 || consumed[0] != "a" || consumed[1] != "b" {
		t.Errorf("frames not consumed in offer order: actual(%v)\n", consumed)
	}
}

/*
	an aborted fragment is not consumed and redelivers on the next poll, the
	backpressure signal the log adapter leans on
*/

func TestAbortRedeliversFragment(t *testing.T) {
	medium := transport.NewTransportMedium()

	pub := medium.AddPublication("test", 1)
	sub := medium.AddSubscription("test", 1)

	pub.Offer([]byte("a"))

	polled := sub.Image.ControlledPoll(func(bytes []byte, position int64) transport.PollAction {
		return transport.PollAbort
	}, 10)

	expectedPolled := 0
	t.Logf("actual polled: %d, expected polled: %d\n", polled, expectedPolled)
	if polled != expectedPolled {
		t.Errorf("actual polled not equal to expected: actual(%d), expected(%d)\n", polled, expectedPolled)
	}

	var consumed []string
	polled = sub.Image.ControlledPoll(func(bytes []byte, position int64) transport.PollAction {
		consumed = append(consumed, string(bytes))
		return transport.PollContinue
	}, 10)

	expectedPolled = 1
	t.Logf("actual polled: %d, expected polled: %d\n", polled, expectedPolled)
	if polled != expectedPolled || consumed[0] != "a" {
		t.Errorf("aborted fragment not redelivered: actual(%d, %v)\n", polled, consumed)
	}
}

func TestBoundedPollHoldsAtMaxPosition(t *testing.T) {
	medium := transport.NewTransportMedium()

	pub := medium.AddPublication("test", 1)
	sub := medium.AddSubscription("test", 1)

	posA := pub.Offer([]byte("a"))
	pub.Offer([]byte("b"))

	polled := sub.Image.BoundedControlledPoll(func(bytes []byte, position int64) transport.PollAction {
		return transport.PollContinue
	}, posA, 10)

	expectedPolled := 1
	t.Logf("actual polled: %d, expected polled: %d\n", polled, expectedPolled)
	if polled != expectedPolled {
		t.Errorf("actual polled not equal to expected: actual(%d), expected(%d)\n", polled, expectedPolled)
	}

	if sub.Image.Position != posA {
		t.Errorf("image consumed past bound: actual(%d), expected(%d)\n", sub.Image.Position, posA)
	}
}

func TestClosedPublicationNotConnected(t *testing.T) {
	medium := transport.NewTransportMedium()

	pub := medium.AddPublication("test", 1)
	pub.Close()

	result := pub.Offer([]byte("a"))

	expected := transport.NotConnected
	t.Logf("actual result: %d, expected result: %d\n", result, expected)
	if result != expected {
		t.Errorf("actual result not equal to expected: actual(%d), expected(%d)\n", result, expected)
	}
}

func TestBackpressureOnSlowConsumer(t *testing.T) {
	medium := transport.NewTransportMedium()

	pub := medium.AddPublication("test", 1)
	pub.Window = 64
	medium.AddSubscription("test", 1)

	frame := make([]byte, 64)

	first := pub.Offer(frame)
	second := pub.Offer(frame)

	t.Logf("actual first: %d, expected: > 0\n", first)
	if first <= 0 {
		t.Errorf("first offer not accepted: actual(%d)\n", first)
	}

	expected := transport.BackPressured
	t.Logf("actual second: %d, expected second: %d\n", second, expected)
	if second != expected {
		t.Errorf("actual second not equal to expected: actual(%d), expected(%d)\n", second, expected)
	}
}

func TestTruncateClampsStreamAndImages(t *testing.T) {
	medium := transport.NewTransportMedium()

	pub := medium.AddPublication("test", 1)
	sub := medium.AddSubscription("test", 1)

	posA := pub.Offer([]byte("a"))
	posB := pub.Offer([]byte("b"))

	sub.Image.ControlledPoll(func(bytes []byte, position int64) transport.PollAction {
		return transport.PollContinue
	}, 10)

	stream := medium.StreamFor("test", 1)
	stream.TruncateTo(posA)

	if stream.Position != posA {
		t.Errorf("stream position not truncated: actual(%d), expected(%d)\n", stream.Position, posA)
	}

	if sub.Image.Position != posA {
		t.Errorf("image position not clamped: actual(%d), expected(%d)\n", sub.Image.Position, posA)
	}

	posC := pub.Offer([]byte("c"))

	t.Logf("actual new position: %d, old truncated position: %d\n", posC, posB)
	if posC <= posA {
		t.Errorf("offers after truncate not advancing: actual(%d)\n", posC)
	}
}
