package reconcile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeFirstSegmentHoldsBackTail(t *testing.T) {
	r := New(Config{WorkingTailWords: 3, MinOverlapChars: 8})

	delta, working := r.Merge("the quick brown fox")
	require.Equal(t, "the", delta)
	require.Equal(t, "the", r.Confirmed())
	require.Equal(t, "quick brown fox", working)
}

func TestMergeShortSegmentAllHeldBack(t *testing.T) {
	r := New(Config{WorkingTailWords: 3})

	delta, working := r.Merge("hi there")
	require.Equal(t, "", delta)
	require.Equal(t, "", r.Confirmed())
	require.Equal(t, "hi there", working)
}

func TestMergeOverlappingContinuationAppendsOnlyNewWords(t *testing.T) {
	r := New(Config{WorkingTailWords: 3, MinOverlapChars: 8})

	r.Merge("the quick brown fox jumps")
	require.Equal(t, "the quick", r.Confirmed())
	require.Equal(t, "brown fox jumps", r.Working())

	_, working := r.Merge("brown fox jumps over the lazy dog")
	require.Equal(t, "the quick brown fox jumps over", r.Confirmed(),
		"the overlapping words must be folded in exactly once, not duplicated")
	require.Equal(t, "the lazy dog", working)
}

func TestMergeNewUnrelatedPhraseAfterPause(t *testing.T) {
	r := New(Config{WorkingTailWords: 3, MinOverlapChars: 8})

	r.Merge("hello there my good friend")
	require.Equal(t, "hello there", r.Confirmed())
	require.Equal(t, "my good friend", r.Working())

	// Unrelated second phrase, no shared words: the held-back tail from the
	// first phrase is finalized into confirmed before the new one starts.
	r.Merge("completely different statement entirely now")

	require.Equal(t, "hello there my good friend completely different", r.Confirmed())
	require.Equal(t, "statement entirely now", r.Working())
}

func TestMergeRepeatedIdenticalTextIsNoOpUntilNewWordsArrive(t *testing.T) {
	r := New(Config{WorkingTailWords: 3, MinOverlapChars: 8})

	text := "one two three four five six seven eight"
	delta, working := r.Merge(text)
	// First decode holds the last 3 words back as working.
	require.Equal(t, "one two three four five", delta)
	require.Equal(t, "one two three four five", r.Confirmed())
	require.Equal(t, "six seven eight", working)

	// Re-decoding the exact same text cross-validates the held-back tail
	// but does not commit it: it still fits entirely inside the working
	// window, so there is nothing past it to push it out.
	delta, working = r.Merge(text)
	require.Equal(t, "", delta)
	require.Equal(t, "one two three four five", r.Confirmed())
	require.Equal(t, "six seven eight", working)

	// Once new trailing words arrive, they push the previously held-back
	// tail out of the working window and it commits.
	delta, working = r.Merge(text + " nine ten")
	require.Equal(t, " six seven", delta)
	require.Equal(t, "one two three four five six seven", r.Confirmed())
	require.Equal(t, "eight nine ten", working)
}

func TestMergeEmptyAfterStripIsNoOp(t *testing.T) {
	r := New(Config{})
	r.Merge("hello world today and more")
	before := r.Confirmed()
	require.NotEmpty(t, before)

	delta, working := r.Merge("[BLANK_AUDIO]")
	require.Equal(t, "", delta)
	require.Equal(t, before, r.Confirmed())
	require.Equal(t, r.Working(), working)
}

func TestNormalizeCollapsesWhitespaceAndStripsBracketedTokens(t *testing.T) {
	r := New(Config{})
	got := r.Normalize("  hello   [Music]  world  ")
	require.Equal(t, "hello world", got)
}

func TestPromptWordsBoundedByCap(t *testing.T) {
	r := New(Config{PromptTokenCap: 4, WorkingTailWords: 3, MinOverlapChars: 8})
	r.Merge("alpha beta gamma delta epsilon zeta")
	r.Merge("alpha beta gamma delta epsilon zeta eta theta iota kappa")

	words := r.PromptWords()
	require.Len(t, words, 4)
	require.Equal(t, []string{"delta", "epsilon", "zeta", "eta"}, words)
}

func TestPromptWordsReturnsDefensiveCopy(t *testing.T) {
	r := New(Config{})
	r.Merge("the quick brown fox jumps over the lazy dog")

	words := r.PromptWords()
	if len(words) > 0 {
		words[0] = "mutated"
	}
	require.NotEqual(t, "mutated", r.PromptWords()[0])
}

func TestLongestCommonWordRunFindsTrailingOverlap(t *testing.T) {
	a := []string{"the", "quick", "brown"}
	b := []string{"quick", "brown", "fox", "jumps"}

	aEnd, bEnd, length := longestCommonWordRun(a, b)
	require.Equal(t, 3, aEnd)
	require.Equal(t, 2, bEnd)
	require.Equal(t, 2, length)
}

func TestLongestCommonWordRunNoOverlap(t *testing.T) {
	a := []string{"the", "quick", "brown"}
	b := []string{"completely", "different", "words"}

	_, _, length := longestCommonWordRun(a, b)
	require.Equal(t, 0, length)
}

func TestMergeRecoversHeldBackWordsPrecedingOverlapMatch(t *testing.T) {
	r := New(Config{WorkingTailWords: 3, MinOverlapChars: 8})

	r.Merge("the quick brown fox")
	require.Equal(t, "the", r.Confirmed())
	require.Equal(t, "quick brown fox", r.Working())

	// "brown fox" overlaps the tail of the held-back working words, but
	// "quick" precedes the match and must not be dropped: it is still part
	// of the working zone the match reaches back into.
	delta, working := r.Merge("brown fox jumps over")
	require.Equal(t, " quick brown", delta)
	require.Equal(t, "the quick brown", r.Confirmed())
	require.Equal(t, "fox jumps over", working)
}

func TestFlushWorkingPromotesRemainderAndClears(t *testing.T) {
	r := New(Config{WorkingTailWords: 3, MinOverlapChars: 8})

	r.Merge("the quick brown fox")
	require.Equal(t, "the", r.Confirmed())
	require.Equal(t, "quick brown fox", r.Working())

	delta := r.FlushWorking()
	require.Equal(t, " quick brown fox", delta)
	require.Equal(t, "the quick brown fox", r.Confirmed())
	require.Equal(t, "", r.Working())
}

func TestFlushWorkingOnEmptyWorkingIsNoOp(t *testing.T) {
	r := New(Config{})

	delta := r.FlushWorking()
	require.Equal(t, "", delta)
	require.Equal(t, "", r.Confirmed())
}
