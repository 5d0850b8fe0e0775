package archive

import "encoding/binary"
import "errors"
import "os"
import "path/filepath"

import bolt "go.etcd.io/bbolt"

import "github.com/sirgallo/cluster/pkg/logger"
import "github.com/sirgallo/cluster/pkg/utils"


//=========================================== Archive


var Log = clog.NewCustomLog(NAME)

/*
	Archive
		the durable recording subsystem, append only recorded streams indexed
		by recording id with replay and truncate

		1.) open the db using the filepath
		2.) create the recordings, frames, and meta buckets if they do not
			already exist
*/

func NewArchive(opts ArchiveOpts) (*Archive, error) {
	dbPath := opts.DBPath
	if dbPath == utils.GetZero[string]() {
		homedir, homeErr := os.UserHomeDir()
		if homeErr != nil { return nil, homeErr }

		dbPath = filepath.Join(homedir, ".cluster", "archive.db")
	}

	mkdirErr := os.MkdirAll(filepath.Dir(dbPath), 0755)
	if mkdirErr != nil { return nil, mkdirErr }

	db, openErr := bolt.Open(dbPath, 0600, nil)
	if openErr != nil { return nil, openErr }

	bucketTransaction := func(tx *bolt.Tx) error {
		for _, bucketName := range []string{ RecordingsBucket, FramesBucket, MetaBucket } {
			_, createErr := tx.CreateBucketIfNotExists([]byte(bucketName))
			if createErr != nil { return createErr }
		}

		return nil
	}

	bucketErr := db.Update(bucketTransaction)
	if bucketErr != nil { return nil, bucketErr }

	return &Archive{
		DBFile: dbPath,
		DB: db,
		recorders: make(map[int64]*Recorder),
	}, nil
}

func (arc *Archive) Close() error {
	arc.Mutex.Lock()
	arc.disconnected = true
	arc.Mutex.Unlock()

	return arc.DB.Close()
}

/*
	Check Health
		the agent polls this on its slow tick, a disconnected archive is fatal
		for a leader mid term
*/

func (arc *Archive) CheckHealth() error {
	arc.Mutex.Lock()
	defer arc.Mutex.Unlock()

	if arc.disconnected { return errors.New("archive control session disconnected") }
	return nil
}

func (arc *Archive) GetRecordingDescriptor(recordingId int64) (*RecordingDescriptor, error) {
	var descriptor *RecordingDescriptor

	transaction := func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(RecordingsBucket))

		val := bucket.Get(ConvertIntToBytes(recordingId))
		if val == nil { return errors.New("unknown recording id") }

		incoming, decodeErr := utils.DecodeBytesToStruct[RecordingDescriptor](val)
		if decodeErr != nil { return decodeErr }

		descriptor = incoming

		return nil
	}

	readErr := arc.DB.View(transaction)
	if readErr != nil { return nil, readErr }

	return descriptor, nil
}

func (arc *Archive) putRecordingDescriptor(descriptor *RecordingDescriptor) error {
	transaction := func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(RecordingsBucket))

		value, encodeErr := utils.EncodeStructToBytes[*RecordingDescriptor](descriptor)
		if encodeErr != nil { return encodeErr }

		return bucket.Put(ConvertIntToBytes(descriptor.RecordingID), value)
	}

	return arc.DB.Update(transaction)
}

func (arc *Archive) nextRecordingID() (int64, error) {
	var next int64

	transaction := func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(MetaBucket))

		val := bucket.Get([]byte(NextRecordingKey))
		if val != nil { next = ConvertBytesToInt(val) }

		return bucket.Put([]byte(NextRecordingKey), ConvertIntToBytes(next + 1))
	}

	updateErr := arc.DB.Update(transaction)
	if updateErr != nil { return NullRecordingID, updateErr }

	return next, nil
}

func ConvertIntToBytes(value int64) []byte {
	buffer := make([]byte, 8)
	binary.BigEndian.PutUint64(buffer, uint64(value))

	return buffer
}

func ConvertBytesToInt(buffer []byte) int64 {
	return int64(binary.BigEndian.Uint64(buffer))
}
