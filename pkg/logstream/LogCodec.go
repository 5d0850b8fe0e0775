package logstream

import "github.com/sirgallo/cluster/pkg/utils"


//=========================================== Log Entry Codec


func EncodeLogEntry(entry *LogEntry) ([]byte, error) {
	encoded, encodeErr := utils.EncodeStructToBytes[*LogEntry](entry)
	if encodeErr != nil { return nil, encodeErr }

	return encoded, nil
}

func DecodeLogEntry(data []byte) (*LogEntry, error) {
	entry, decodeErr := utils.DecodeBytesToStruct[LogEntry](data)
	if decodeErr != nil { return nil, decodeErr }

	return entry, nil
}
