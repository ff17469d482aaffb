package types

// Options mirrors the knobs of the speexdsp preprocessor.
type Options struct {
	Denoise bool

	// NoiseSuppressDB is the maximal attenuation of the noise, in dB (negative).
	NoiseSuppressDB int

	AGC      bool
	AGCLevel float32

	VAD bool

	// VADProbStart and VADProbContinue are percentages (0-100).
	VADProbStart    int
	VADProbContinue int

	Dereverb bool
}

func DefaultOptions() Options {
	return Options{
		Denoise:         true,
		NoiseSuppressDB: -15,
		AGCLevel:        8000,
		VADProbStart:    35,
		VADProbContinue: 20,
	}
}
