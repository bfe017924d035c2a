package frame

import (
	"golang.org/x/crypto/blake2b"
)

// checksumSize is the truncated blake2b digest size used for
// ChecksumBlake2b frames: enough to catch a mangled payload without
// spending 32 bytes per frame on a non-authenticating check.
const checksumSize = 8

func computeChecksum(typ ChecksumType, payload []byte) ([]byte, error) {
	switch typ {
	case ChecksumNone:
		return nil, nil
	case ChecksumBlake2b:
		h, err := blake2b.New(checksumSize, nil)
		if err != nil {
			return nil, err
		}
		h.Write(payload)
		return h.Sum(nil), nil
	default:
		return nil, errUnknownChecksumType(typ)
	}
}

func checksumLen(typ ChecksumType) int {
	switch typ {
	case ChecksumNone:
		return 0
	case ChecksumBlake2b:
		return checksumSize
	default:
		return 0
	}
}

type errUnknownChecksumType ChecksumType

func (e errUnknownChecksumType) Error() string {
	return "frame: unknown checksum type"
}
