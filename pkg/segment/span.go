package segment

import "github.com/ajitpratap0/packscan/pkg/scanerrors"

// ByteSpan addresses Length bytes at Offset inside Base, the memory of the
// pack being visited. A span never owns its memory.
type ByteSpan struct {
	Base   []byte
	Offset int
	Length int
}

// View returns a read-only window over the span. The returned slice has its
// capacity clipped to the span so appends cannot reach neighbouring values.
// It must not be retained once the visitor callback returns.
func (s ByteSpan) View() ([]byte, error) {
	if s.Offset < 0 || s.Length < 0 || s.Offset > len(s.Base)-s.Length {
		return nil, scanerrors.Newf(scanerrors.ErrorTypeData,
			"byte span [%d, %d) outside pack memory of %d bytes", s.Offset, s.Offset+s.Length, len(s.Base))
	}
	end := s.Offset + s.Length
	return s.Base[s.Offset:end:end], nil
}
