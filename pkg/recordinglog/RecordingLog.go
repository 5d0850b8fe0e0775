package recordinglog

import "errors"
import "os"
import "path/filepath"

import bolt "go.etcd.io/bbolt"

import "github.com/sirgallo/cluster/pkg/archive"
import "github.com/sirgallo/cluster/pkg/logger"
import "github.com/sirgallo/cluster/pkg/utils"


//=========================================== Recording Log


var Log = clog.NewCustomLog(NAME)

/*
	Recording Log
		durable index of leadership terms and snapshots keyed by a monotonic
		entry index

		the db runs with NoSync when the file sync level is 0, any level above
		0 forces the file after snapshot appends
*/

func NewRecordingLog(opts RecordingLogOpts) (*RecordingLog, error) {
	dbPath := opts.DBPath
	if dbPath == utils.GetZero[string]() {
		homedir, homeErr := os.UserHomeDir()
		if homeErr != nil { return nil, homeErr }

		dbPath = filepath.Join(homedir, ".cluster", "recordinglog.db")
	}

	mkdirErr := os.MkdirAll(filepath.Dir(dbPath), 0755)
	if mkdirErr != nil { return nil, mkdirErr }

	db, openErr := bolt.Open(dbPath, 0600, nil)
	if openErr != nil { return nil, openErr }

	db.NoSync = opts.FileSyncLevel == 0

	bucketTransaction := func(tx *bolt.Tx) error {
		for _, bucketName := range []string{ EntriesBucket, MetaBucket } {
			_, createErr := tx.CreateBucketIfNotExists([]byte(bucketName))
			if createErr != nil { return createErr }
		}

		return nil
	}

	bucketErr := db.Update(bucketTransaction)
	if bucketErr != nil { return nil, bucketErr }

	return &RecordingLog{
		DBFile: dbPath,
		DB: db,
		FileSyncLevel: opts.FileSyncLevel,
	}, nil
}

func (rlog *RecordingLog) Close() error {
	return rlog.DB.Close()
}

/*
	Append Term
		record the start of a new leadership term against the log recording
*/

func (rlog *RecordingLog) AppendTerm(recordingId int64, leadershipTermId int64, termBaseLogPosition int64, timestamp int64) (*Entry, error) {
	entry := &Entry{
		EntryType: EntryTypeTerm,
		RecordingID: recordingId,
		LeadershipTermID: leadershipTermId,
		TermBaseLogPosition: termBaseLogPosition,
		LogPosition: NullPosition,
		Timestamp: timestamp,
		ServiceID: ServiceIDSentinel,
		IsValid: true,
	}

	appendErr := rlog.appendEntry(entry)
	if appendErr != nil { return nil, appendErr }

	return entry, nil
}

/*
	Append Snapshot
		record a snapshot taken at the log position, one entry per service id
		and a final entry with the module's own sentinel service id

		the file is forced once the module entry lands when the sync level
		requires durability
*/

func (rlog *RecordingLog) AppendSnapshot(recordingId int64, leadershipTermId int64, termBaseLogPosition int64, logPosition int64, timestamp int64, serviceId int32) (*Entry, error) {
	entry := &Entry{
		EntryType: EntryTypeSnapshot,
		RecordingID: recordingId,
		LeadershipTermID: leadershipTermId,
		TermBaseLogPosition: termBaseLogPosition,
		LogPosition: logPosition,
		Timestamp: timestamp,
		ServiceID: serviceId,
		IsValid: true,
	}

	appendErr := rlog.appendEntry(entry)
	if appendErr != nil { return nil, appendErr }

	if serviceId == ServiceIDSentinel {
		forceErr := rlog.Force()
		if forceErr != nil { return nil, forceErr }
	}

	return entry, nil
}

/*
	Commit Log Position
		seal the term entry for the leadership term with the final log
		position, written before the termination hook runs
*/

func (rlog *RecordingLog) CommitLogPosition(leadershipTermId int64, logPosition int64) error {
	entries, readErr := rlog.Entries()
	if readErr != nil { return readErr }

	for idx := len(entries) - 1; idx >= 0; idx-- {
		entry := entries[idx]

		if entry.EntryType == EntryTypeTerm && entry.LeadershipTermID == leadershipTermId {
			entry.LogPosition = logPosition
			return rlog.putEntry(&entry)
		}
	}

	return errors.New("unknown leadership term id")
}

/*
	Invalidate Latest Snapshot
		flag every snapshot entry of the most recent snapshot set, recovery
		then falls back to the previous valid set, used when a retrieved or
		half written snapshot turns out unusable
*/

func (rlog *RecordingLog) InvalidateLatestSnapshot() error {
	entries, readErr := rlog.Entries()
	if readErr != nil { return readErr }

	var latestTermID, latestLogPosition = NullTermID, NullPosition

	for idx := len(entries) - 1; idx >= 0; idx-- {
		entry := entries[idx]

		if entry.EntryType == EntryTypeSnapshot && entry.IsValid {
			latestTermID = entry.LeadershipTermID
			latestLogPosition = entry.LogPosition
			break
		}
	}

	if latestTermID == NullTermID { return errors.New("no valid snapshot to invalidate") }

	for idx := range entries {
		entry := entries[idx]

		if entry.EntryType == EntryTypeSnapshot && entry.LeadershipTermID == latestTermID && entry.LogPosition == latestLogPosition {
			entry.IsValid = false

			putErr := rlog.putEntry(&entry)
			if putErr != nil { return putErr }
		}
	}

	return rlog.Force()
}

func (rlog *RecordingLog) Entries() ([]Entry, error) {
	var entries []Entry

	transaction := func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(EntriesBucket))
		cursor := bucket.Cursor()

		for key, val := cursor.First(); key != nil; key, val = cursor.Next() {
			entry, decodeErr := utils.DecodeBytesToStruct[Entry](val)
			if decodeErr != nil { return decodeErr }

			entries = append(entries, *entry)
		}

		return nil
	}

	readErr := rlog.DB.View(transaction)
	if readErr != nil { return nil, readErr }

	return entries, nil
}

func (rlog *RecordingLog) FindTermEntry(leadershipTermId int64) (*Entry, error) {
	entries, readErr := rlog.Entries()
	if readErr != nil { return nil, readErr }

	for idx := len(entries) - 1; idx >= 0; idx-- {
		entry := entries[idx]
		if entry.EntryType == EntryTypeTerm && entry.LeadershipTermID == leadershipTermId { return &entry, nil }
	}

	return nil, nil
}

func (rlog *RecordingLog) Force() error {
	if rlog.FileSyncLevel > 0 { return rlog.DB.Sync() }
	return nil
}

func (rlog *RecordingLog) appendEntry(entry *Entry) error {
	rlog.Mutex.Lock()
	defer rlog.Mutex.Unlock()

	transaction := func(tx *bolt.Tx) error {
		meta := tx.Bucket([]byte(MetaBucket))

		var next int64
		val := meta.Get([]byte(NextEntryKey))
		if val != nil { next = archive.ConvertBytesToInt(val) }

		entry.EntryIndex = next

		putMetaErr := meta.Put([]byte(NextEntryKey), archive.ConvertIntToBytes(next + 1))
		if putMetaErr != nil { return putMetaErr }

		bucket := tx.Bucket([]byte(EntriesBucket))

		value, encodeErr := utils.EncodeStructToBytes[*Entry](entry)
		if encodeErr != nil { return encodeErr }

		return bucket.Put(archive.ConvertIntToBytes(entry.EntryIndex), value)
	}

	return rlog.DB.Update(transaction)
}

func (rlog *RecordingLog) putEntry(entry *Entry) error {
	transaction := func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(EntriesBucket))

		value, encodeErr := utils.EncodeStructToBytes[*Entry](entry)
		if encodeErr != nil { return encodeErr }

		return bucket.Put(archive.ConvertIntToBytes(entry.EntryIndex), value)
	}

	return rlog.DB.Update(transaction)
}
