package ftpsh

import "golang.org/x/text/transform"

// crlfTransformer rewrites every line ending to CRLF. A line ends at "\n",
// "\r\n" or a lone "\r"; a final line without a terminator is terminated.
type crlfTransformer struct {
	// inLine is set while bytes of an unterminated line have been emitted.
	inLine bool
}

func newCRLFTransformer() transform.Transformer {
	return &crlfTransformer{}
}

func (t *crlfTransformer) Reset() {
	t.inLine = false
}

func (t *crlfTransformer) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		c := src[nSrc]
		switch c {
		case '\r':
			if nSrc+1 == len(src) && !atEOF {
				// Need the next byte to know whether this is "\r\n".
				return nDst, nSrc, transform.ErrShortSrc
			}
			if nDst+2 > len(dst) {
				return nDst, nSrc, transform.ErrShortDst
			}
			dst[nDst], dst[nDst+1] = '\r', '\n'
			nDst += 2
			nSrc++
			if nSrc < len(src) && src[nSrc] == '\n' {
				nSrc++
			}
			t.inLine = false
		case '\n':
			if nDst+2 > len(dst) {
				return nDst, nSrc, transform.ErrShortDst
			}
			dst[nDst], dst[nDst+1] = '\r', '\n'
			nDst += 2
			nSrc++
			t.inLine = false
		default:
			if nDst >= len(dst) {
				return nDst, nSrc, transform.ErrShortDst
			}
			dst[nDst] = c
			nDst++
			nSrc++
			t.inLine = true
		}
	}

	if atEOF && t.inLine {
		if nDst+2 > len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		dst[nDst], dst[nDst+1] = '\r', '\n'
		nDst += 2
		t.inLine = false
	}
	return nDst, nSrc, nil
}
