// ABOUTME: Linear resampler for float32 audio with state carried across calls
// ABOUTME: Converts capture audio to the recognizer rate and speech to the stream rate
package resample

// Resampler performs linear interpolation to convert between sample rates.
// Consecutive calls are treated as one continuous signal.
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
	position   float64   // read position, 0 is lastFrame and k is input frame k-1
	lastFrame  []float32 // one sample per channel
	primed     bool
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	if channels < 1 {
		channels = 1
	}
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
		lastFrame:  make([]float32, channels),
	}
}

// Passthrough reports whether input and output rates match
func (r *Resampler) Passthrough() bool {
	return r.inputRate == r.outputRate
}

// Resample converts interleaved input at inputRate into output at
// outputRate and returns the number of samples written. Size output with
// OutputSamplesNeeded.
func (r *Resampler) Resample(input []float32, output []float32) int {
	inputFrames := len(input) / r.channels
	if inputFrames == 0 {
		return 0
	}
	if r.Passthrough() {
		return copy(output, input[:inputFrames*r.channels])
	}

	if !r.primed {
		copy(r.lastFrame, input[:r.channels])
		r.position = 1
		r.primed = true
	}

	frame := func(k, ch int) float32 {
		if k == 0 {
			return r.lastFrame[ch]
		}
		return input[(k-1)*r.channels+ch]
	}

	outputFrames := len(output) / r.channels
	outIdx := 0
	for outIdx < outputFrames {
		idx := int(r.position)
		if idx >= inputFrames {
			break
		}
		frac := float32(r.position - float64(idx))
		for ch := 0; ch < r.channels; ch++ {
			s1 := frame(idx, ch)
			s2 := frame(idx+1, ch)
			output[outIdx*r.channels+ch] = s1 + (s2-s1)*frac
		}
		outIdx++
		r.position += r.ratio
	}

	copy(r.lastFrame, input[(inputFrames-1)*r.channels:inputFrames*r.channels])
	r.position -= float64(inputFrames)
	if r.position < 0 {
		r.position = 0
	}

	return outIdx * r.channels
}

// Process is Resample with an output slice sized for the caller.
func (r *Resampler) Process(input []float32) []float32 {
	out := make([]float32, r.OutputSamplesNeeded(len(input)))
	n := r.Resample(input, out)
	return out[:n]
}

// Reset resets the resampler state
func (r *Resampler) Reset() {
	r.position = 0
	r.primed = false
	clear(r.lastFrame)
}

// OutputSamplesNeeded returns an upper bound on the samples one Resample
// call can produce from inputSamples.
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	inputFrames := inputSamples / r.channels
	outputFrames := int(float64(inputFrames)/r.ratio) + 2
	return outputFrames * r.channels
}
