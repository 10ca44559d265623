package core

// TokenMeter tracks a session's token usage against the active model's
// input budget, feeding the Compressor's high-watermark check.
type TokenMeter struct {
	Input      int
	Output     int
	ModelLimit int
}

// UsageRatio returns (Input+Output)/ModelLimit, or 0 if ModelLimit is
// unset.
func (m TokenMeter) UsageRatio() float64 {
	if m.ModelLimit <= 0 {
		return 0
	}
	return float64(m.Input+m.Output) / float64(m.ModelLimit)
}

// Add accumulates usage from a single completion's token counts.
func (m *TokenMeter) Add(input, output int) {
	m.Input += input
	m.Output += output
}
