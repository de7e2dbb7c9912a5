package codec

func init() {
	Register("bam_placeholder", func(version string, params Params) (Codec, error) {
		reason := params.stringOr("reason", "BAM codec artifacts are required")
		return NewBamPlaceholderCodec(version, reason), nil
	})
}

// BamPlaceholderCodec stands in for "bam" when no trained artifacts are
// configured. Both Encode and Decode always fail, so a dry-run that
// forgets to point at a manifest fails loudly at first use rather than
// silently transmitting garbage.
type BamPlaceholderCodec struct {
	version string
	reason  string
}

// NewBamPlaceholderCodec constructs a placeholder that always errors.
func NewBamPlaceholderCodec(version, reason string) *BamPlaceholderCodec {
	if reason == "" {
		reason = "BAM codec artifacts are required"
	}
	return &BamPlaceholderCodec{version: version, reason: reason}
}

func (c *BamPlaceholderCodec) ID() string      { return "bam_placeholder" }
func (c *BamPlaceholderCodec) Version() string { return c.version }

func (c *BamPlaceholderCodec) Encode(window []float64) ([]byte, error) {
	return nil, newNotImplementedError("%s", c.reason)
}

func (c *BamPlaceholderCodec) Decode(payload []byte) ([]float64, error) {
	return nil, newNotImplementedError("%s", c.reason)
}

func (c *BamPlaceholderCodec) PayloadSchema() string {
	return "bam_placeholder"
}
