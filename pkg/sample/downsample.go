package sample

// TraceSamples picks at most points samples spread evenly over a run. The
// first and the last reading are always included, so a printed trace ends
// on the temperature the run finished at. dst is reused when it has room.
func TraceSamples(dst, samples []Sample, points int) []Sample {
	dst = dst[:0]
	n := len(samples)
	switch {
	case points <= 0 || n == 0:
		return dst
	case n <= points:
		return append(dst, samples...)
	case points == 1:
		return append(dst, samples[n-1])
	}

	for i := 0; i < points; i++ {
		dst = append(dst, samples[i*(n-1)/(points-1)])
	}
	return dst
}
