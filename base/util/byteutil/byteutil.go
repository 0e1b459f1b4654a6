package byteutil

import (
	"strings"

	"github.com/google/uuid"
)

// RemoveUUIDDash 移除uuid中的dash
func RemoveUUIDDash(uid string) string {
	return strings.ReplaceAll(uid, "-", "")
}

// UUID4 uuid4转成string
func UUID4() string {
	return uuid.NewString()
}

// SimpleUUID4 uuid4，不带dash
func SimpleUUID4() string {
	return RemoveUUIDDash(UUID4())
}

// MergeBytes 将二维byte数组压平，只有一段时不拷贝
func MergeBytes(bs [][]byte) []byte {
	if len(bs) == 0 {
		return []byte{}
	}
	if len(bs) == 1 {
		return bs[0]
	}
	l := 0
	for i := 0; i < len(bs); i++ {
		l += len(bs[i])
	}
	buffer := make([]byte, l)
	l = 0
	for i := 0; i < len(bs); i++ {
		copy(buffer[l:], bs[i])
		l += len(bs[i])
	}
	return buffer
}
