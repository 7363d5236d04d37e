package scoring

// ema is an exponentially weighted mean with span-based smoothing
// (alpha = 2/(span+1)), seeded from the first observation.
type ema struct {
	alpha  float64
	value  float64
	seeded bool
}

func newEMA(span int) ema {
	return ema{alpha: 2.0 / (float64(span) + 1.0)}
}

func (e *ema) update(x float64) float64 {
	if !e.seeded {
		e.value = x
		e.seeded = true
		return e.value
	}
	e.value = (1-e.alpha)*e.value + e.alpha*x
	return e.value
}

// window is a fixed-capacity ring of recent prices with a running sum,
// backing the long simple moving average.
type window struct {
	buf   []float64
	head  int
	count int
	sum   float64
}

func newWindow(capacity int) *window {
	return &window{buf: make([]float64, capacity)}
}

func (w *window) push(x float64) {
	if w.count == len(w.buf) {
		w.sum -= w.buf[w.head]
	} else {
		w.count++
	}
	w.buf[w.head] = x
	w.sum += x
	w.head = (w.head + 1) % len(w.buf)
}

func (w *window) full() bool { return w.count == len(w.buf) }

func (w *window) mean() float64 {
	if w.count == 0 {
		return 0
	}
	return w.sum / float64(w.count)
}
