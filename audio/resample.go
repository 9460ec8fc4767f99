package audio

import "math"

// downmix averages interleaved channels into one.
func downmix(samples []float64, channels int) []float64 {
	if channels <= 1 {
		return samples
	}

	mono := make([]float64, len(samples)/channels)
	for i := range mono {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		mono[i] = sum / float64(channels)
	}
	return mono
}

// resampleLinear converts between sample rates by linear interpolation. The
// output length is the input duration at the new rate. When downsampling, a
// moving average first knocks down content above the new Nyquist frequency.
func resampleLinear(in []float64, from, to int) []float64 {
	if from == to || len(in) == 0 || from <= 0 || to <= 0 {
		return in
	}

	ratio := float64(from) / float64(to)
	if width := int(math.Ceil(ratio)); width > 1 {
		in = boxFilter(in, width)
	}

	n := int(math.Round(float64(len(in)) / ratio))
	if n < 1 {
		n = 1
	}

	out := make([]float64, n)
	last := len(in) - 1
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= last {
			out[i] = in[last]
			continue
		}
		frac := pos - float64(j)
		out[i] = in[j]*(1-frac) + in[j+1]*frac
	}
	return out
}

// boxFilter averages each sample with width/2 neighbours on either side.
func boxFilter(in []float64, width int) []float64 {
	out := make([]float64, len(in))
	half := width / 2

	var sum float64
	lo, hi := 0, 0 // window is in[lo:hi]
	for i := range in {
		for hi < len(in) && hi <= i+half {
			sum += in[hi]
			hi++
		}
		for lo < i-half {
			sum -= in[lo]
			lo++
		}
		out[i] = sum / float64(hi-lo)
	}
	return out
}
