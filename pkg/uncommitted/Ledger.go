package uncommitted

import "github.com/sirgallo/cluster/pkg/clustersession"
import "github.com/sirgallo/cluster/pkg/logger"


//=========================================== Uncommitted Ledger


var Log = clog.NewCustomLog(NAME)


func NewLedger() *Ledger {
	return &Ledger{}
}

func (ledger *Ledger) AddTimer(appendPosition int64, correlationId int64, deadline int64) {
	ledger.entries = append(ledger.entries, UncommittedEntry{
		Kind: KindTimer,
		AppendPosition: appendPosition,
		CorrelationID: correlationId,
		Deadline: deadline,
	})
}

func (ledger *Ledger) AddSessionClose(appendPosition int64, session *clustersession.ClusterSession) {
	ledger.entries = append(ledger.entries, UncommittedEntry{
		Kind: KindSessionClose,
		AppendPosition: appendPosition,
		Session: session,
	})
}

func (ledger *Ledger) AddServiceMessage(appendPosition int64) {
	ledger.entries = append(ledger.entries, UncommittedEntry{
		Kind: KindServiceMessage,
		AppendPosition: appendPosition,
	})
}

/*
	Commit To
		release every entry whose append position the commit has passed,
		entries were appended in log order so release pops from the front
*/

func (ledger *Ledger) CommitTo(commitPosition int64, handlers CommitHandlers) int {
	released := 0

	for len(ledger.entries) > 0 {
		entry := ledger.entries[0]
		if entry.AppendPosition > commitPosition { break }

		ledger.entries = ledger.entries[1:]
		released++

		switch entry.Kind {
			case KindTimer:
				if handlers.OnTimerCommitted != nil { handlers.OnTimerCommitted(entry) }
			case KindSessionClose:
				if handlers.OnSessionCloseCommitted != nil { handlers.OnSessionCloseCommitted(entry) }
			case KindServiceMessage:
				if handlers.OnServiceMessageCommitted != nil { handlers.OnServiceMessageCommitted(entry) }
		}
	}

	return released
}

/*
	Restore
		rollback on leadership loss, one reverse pass over entries beyond the
		safe commit position

		timers are rescheduled, uncommitted closes are reinstated as open
		sessions, service messages are left to the pending queue which resets
		its own slots
*/

func (ledger *Ledger) Restore(commitPosition int64, handlers RestoreHandlers) int {
	restored := 0

	for idx := len(ledger.entries) - 1; idx >= 0; idx-- {
		entry := ledger.entries[idx]
		if entry.AppendPosition <= commitPosition { break }

		restored++

		switch entry.Kind {
			case KindTimer:
				if handlers.OnTimerRestored != nil { handlers.OnTimerRestored(entry) }
			case KindSessionClose:
				if handlers.OnSessionCloseRestored != nil { handlers.OnSessionCloseRestored(entry) }
		}
	}

	ledger.entries = ledger.entries[:len(ledger.entries) - restored]

	if restored > 0 { Log.Warn("restored uncommitted entries after leadership change:", restored) }

	return restored
}

func (ledger *Ledger) Size() int {
	return len(ledger.entries)
}

func (ledger *Ledger) Entries() []UncommittedEntry {
	return ledger.entries
}

/*
	Uncommitted Closed Sessions
		view over the close variants, restored into the session table when
		their close never commits
*/

func (ledger *Ledger) UncommittedClosedSessions() []*clustersession.ClusterSession {
	var sessions []*clustersession.ClusterSession

	for _, entry := range ledger.entries {
		if entry.Kind == KindSessionClose { sessions = append(sessions, entry.Session) }
	}

	return sessions
}
