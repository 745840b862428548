package wire

import "strconv"

// Tag identifies the meaning of a frame on a channel.
type Tag uint32

// Rendezvous and channel tags.
const (
	TagRequest Tag = 1
	TagReply   Tag = 2
	TagOffer   Tag = 3
	TagBcast   Tag = 4
	TagData    Tag = 5
	TagAck     Tag = 6
)

// Loader handoff tags. Values are part of the worker/loader contract.
const (
	TagFilename     Tag = 40
	TagControl      Tag = 43
	TagReady        Tag = 50
	TagCopyFinished Tag = 55
	TagAux          Tag = 66
	TagConfig       Tag = 99
)

var tagNames = map[Tag]string{
	TagRequest:      "request",
	TagReply:        "reply",
	TagOffer:        "offer",
	TagBcast:        "bcast",
	TagData:         "data",
	TagAck:          "ack",
	TagFilename:     "filename",
	TagControl:      "control",
	TagReady:        "ready",
	TagCopyFinished: "copy_finished",
	TagAux:          "aux",
	TagConfig:       "config",
}

func (t Tag) String() string {
	if n, ok := tagNames[t]; ok {
		return n
	}
	return "tag(" + strconv.FormatUint(uint64(t), 10) + ")"
}
