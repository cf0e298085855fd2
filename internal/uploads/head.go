package uploads

import (
	"bufio"
	"errors"
	"io"
)

// PeekHead returns the first HeadSize bytes of r (fewer for short bodies) and
// a reader that still yields the whole body.
func PeekHead(r io.Reader) ([]byte, io.Reader, error) {
	body := bufio.NewReaderSize(r, HeadSize)
	head, err := body.Peek(HeadSize)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, nil, err
	}
	return head, body, nil
}
