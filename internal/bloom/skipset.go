package bloom

import "context"

// skipSetFPR keeps bloom misfires rare enough that the verifying database
// lookup is the exception, not the rule.
const skipSetFPR = 0.001

// VerifyFunc confirms a candidate hit against the authoritative record.
// It reports whether the file really has saved results.
type VerifyFunc func(ctx context.Context, fileID string) (bool, error)

// SkipSet answers "was this file already filtered under the current
// parameter set?" A bloom filter over the processed file IDs gives a
// cheap first pass; positive answers are confirmed with verify, since
// bloom positives can be wrong and skipping an unprocessed file would
// lose data.
type SkipSet struct {
	bf     *BloomFilter
	verify VerifyFunc
}

// NewSkipSet builds a skip set seeded with the already-processed file
// IDs. verify may be nil when bloom positives are acceptable as-is.
func NewSkipSet(fileIDs []string, verify VerifyFunc) *SkipSet {
	n := len(fileIDs)
	if n == 0 {
		n = 1
	}
	bf := NewWithEstimates(n, skipSetFPR)
	for _, id := range fileIDs {
		bf.Add([]byte(id))
	}
	return &SkipSet{bf: bf, verify: verify}
}

// ShouldSkip reports whether the file was already processed.
func (s *SkipSet) ShouldSkip(ctx context.Context, fileID string) (bool, error) {
	if !s.bf.Contains([]byte(fileID)) {
		return false, nil
	}
	if s.verify == nil {
		return true, nil
	}
	return s.verify(ctx, fileID)
}

// Len returns the number of seeded file IDs.
func (s *SkipSet) Len() int {
	return int(s.bf.Count())
}
