package uncommitted

import "github.com/sirgallo/cluster/pkg/clustersession"


type UncommittedKind int32

const (
	KindTimer UncommittedKind = iota
	KindSessionClose
	KindServiceMessage
)

/*
	one tagged record per anticipated state mutation, keyed by the append
	position of the log entry that would commit it
*/

type UncommittedEntry struct {
	Kind           UncommittedKind
	AppendPosition int64

	CorrelationID int64
	Deadline      int64
	Session       *clustersession.ClusterSession
}

/*
	Ledger
		time ordered log of uncommitted mutations on the leader, entries are
		appended in log order so commit release pops from the front and
		rollback walks once from the back
*/

type Ledger struct {
	entries []UncommittedEntry
}

type CommitHandlers struct {
	OnTimerCommitted          func(entry UncommittedEntry)
	OnSessionCloseCommitted   func(entry UncommittedEntry)
	OnServiceMessageCommitted func(entry UncommittedEntry)
}

type RestoreHandlers struct {
	OnTimerRestored        func(entry UncommittedEntry)
	OnSessionCloseRestored func(entry UncommittedEntry)
}

const NAME = "UncommittedLedger"
