package ftpsh

import "io"

// progressWriter reports the running total written to the local file.
type progressWriter struct {
	w        io.Writer
	file     string
	callback func(file string, bytesTransferred int64)
	total    int64
}

// Write implements io.Writer.
func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.w.Write(p)
	pw.total += int64(n)
	if n > 0 {
		pw.callback(pw.file, pw.total)
	}
	return n, err
}

// trackProgress wraps w when a progress callback is configured.
func trackProgress(w io.Writer, file string, callback func(string, int64)) io.Writer {
	if callback == nil {
		return w
	}
	return &progressWriter{w: w, file: file, callback: callback}
}
