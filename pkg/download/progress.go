package download

// Progress reports cumulative download progress. Total and Percentage are
// zero when the server did not send a Content-Length.
type Progress struct {
	Downloaded int64
	Total      int64
	Percentage float64
}

// Known reports whether the total size is known.
func (p Progress) Known() bool { return p.Total > 0 }

// ProgressFunc receives progress after each chunk is written.
type ProgressFunc func(Progress)

// progressWriter counts bytes passing through and reports them.
type progressWriter struct {
	total      int64
	downloaded int64
	fn         ProgressFunc
}

func newProgressWriter(total int64, fn ProgressFunc) *progressWriter {
	if total < 0 {
		total = 0
	}
	return &progressWriter{total: total, fn: fn}
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.downloaded += int64(len(p))
	if w.fn != nil {
		pr := Progress{Downloaded: w.downloaded, Total: w.total}
		if w.total > 0 {
			pr.Percentage = float64(w.downloaded) / float64(w.total) * 100
		}
		w.fn(pr)
	}
	return len(p), nil
}
