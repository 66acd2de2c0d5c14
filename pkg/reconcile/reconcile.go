// Package reconcile merges a stream of decoded ASR segments into a
// monotonic confirmed transcript plus a replaceable working hypothesis,
// using a longest-common-word-run overlap match between the tail of the
// confirmed transcript and each new segment.
package reconcile

import (
	"regexp"
	"strings"
)

// TokenID identifies a single conditioning token fed back to the ASR model
// as prompt context. Its concrete meaning (BPE id, word index, ...) is
// owned by the SpeechModel implementation. The Reconciler itself does not
// use TokenIDs: it tracks prompt context as a bounded queue of words (see
// PromptWords).
type TokenID int32

// Config tunes the reconciliation thresholds.
type Config struct {
	// OverlapTailChars is K: how many trailing characters of confirmed are
	// retained for matching against the next segment.
	OverlapTailChars int
	// MinOverlapChars is the minimum character length a matched word run
	// must reach before it is treated as a genuine overlap.
	MinOverlapChars int
	// WorkingTailWords is N: how many trailing words of a segment are held
	// back as the working hypothesis instead of being committed.
	WorkingTailWords int
	// PromptTokenCap bounds how many words PromptWords retains.
	PromptTokenCap int
	// StripPatterns strips model-specific bracketed artifacts (e.g.
	// "[BLANK_AUDIO]", "[Music]") before anything else happens.
	StripPatterns []*regexp.Regexp
}

// DefaultConfig returns the spec's default thresholds.
func DefaultConfig() Config {
	return Config{
		OverlapTailChars: 128,
		MinOverlapChars:  8,
		WorkingTailWords: 3,
		PromptTokenCap:   64,
		StripPatterns:    []*regexp.Regexp{defaultStripRE},
	}
}

var (
	defaultStripRE  = regexp.MustCompile(`\[[^\]]*\]`)
	collapseSpaceRE = regexp.MustCompile(`\s+`)
)

// Reconciler owns the TranscriptState described in the data model:
// confirmed (append-only), working (freely replaceable) and the bounded
// prompt-token queue fed back to the model.
type Reconciler struct {
	cfg Config

	confirmed   strings.Builder
	working     string
	promptWords []string
}

// New constructs a Reconciler. Zero-valued fields in cfg fall back to
// DefaultConfig's values.
func New(cfg Config) *Reconciler {
	def := DefaultConfig()
	if cfg.OverlapTailChars == 0 {
		cfg.OverlapTailChars = def.OverlapTailChars
	}
	if cfg.MinOverlapChars == 0 {
		cfg.MinOverlapChars = def.MinOverlapChars
	}
	if cfg.WorkingTailWords == 0 {
		cfg.WorkingTailWords = def.WorkingTailWords
	}
	if cfg.PromptTokenCap == 0 {
		cfg.PromptTokenCap = def.PromptTokenCap
	}
	if cfg.StripPatterns == nil {
		cfg.StripPatterns = def.StripPatterns
	}
	return &Reconciler{cfg: cfg}
}

// Confirmed returns the committed transcript so far.
func (r *Reconciler) Confirmed() string {
	return r.confirmed.String()
}

// Working returns the current tentative continuation.
func (r *Reconciler) Working() string {
	return r.working
}

// PromptWords returns the words currently queued as model conditioning
// context, confirmed-only per the spec's resolved Open Question (feeding
// both confirmed and working amplifies hallucinations on revision).
func (r *Reconciler) PromptWords() []string {
	return append([]string(nil), r.promptWords...)
}

// FlushWorking promotes the entire current working hypothesis to confirmed
// and clears it, returning the confirmed delta (possibly empty). Call this
// once on shutdown: a working hypothesis that will never be revised again
// is, by definition, confirmed.
func (r *Reconciler) FlushWorking() string {
	if r.working == "" {
		return ""
	}

	var delta string
	if r.confirmed.Len() > 0 {
		delta = " " + r.working
	} else {
		delta = r.working
	}
	r.confirmed.WriteString(delta)
	r.appendPromptWords(strings.Fields(r.working))
	r.working = ""

	return delta
}

// Normalize collapses whitespace and strips configured bracketed
// artifacts from raw model output.
func (r *Reconciler) Normalize(text string) string {
	for _, re := range r.cfg.StripPatterns {
		text = re.ReplaceAllString(text, "")
	}
	text = strings.TrimSpace(text)
	text = collapseSpaceRE.ReplaceAllString(text, " ")
	return text
}

// Merge folds one decoded segment's text into the transcript state. It
// returns the confirmed delta appended by this call (empty if nothing was
// committed) and the new working hypothesis.
func (r *Reconciler) Merge(rawText string) (confirmedDelta, working string) {
	text := r.Normalize(rawText)
	if text == "" {
		return "", r.working
	}

	textWords := strings.Fields(text)

	confirmedWords := strings.Fields(r.confirmed.String())
	priorWorkingWords := strings.Fields(r.working)
	combined := make([]string, 0, len(confirmedWords)+len(priorWorkingWords))
	combined = append(combined, confirmedWords...)
	combined = append(combined, priorWorkingWords...)
	tailWords := tailWordsByChars(combined, r.cfg.OverlapTailChars)
	numConfirmedInTail := len(tailWords) - min(len(priorWorkingWords), len(tailWords))

	aEnd, bEnd, matchLen := longestCommonWordRun(tailWords, textWords)

	var toCommit []string
	if matchLen > 0 && len(strings.Join(tailWords[aEnd-matchLen:aEnd], " ")) >= r.cfg.MinOverlapChars {
		// Genuine overlap: recover the still-uncommitted working words the
		// match reaches back into, append whatever is new past the match,
		// then re-apply the working-tail split to the combined words so the
		// commit boundary is never decided by the remainder alone.
		recoverFrom := numConfirmedInTail
		if recoverFrom > aEnd {
			recoverFrom = aEnd
		}
		recovered := tailWords[recoverFrom:aEnd]

		remainder := textWords[bEnd:]
		combinedTail := append(append([]string(nil), recovered...), remainder...)
		commitWords, workingWords := splitTail(combinedTail, r.cfg.WorkingTailWords)
		toCommit = commitWords
		r.working = strings.Join(workingWords, " ")
	} else {
		// No overlap: this is an unrelated new phrase. The previous
		// working hypothesis will never be revised again, so it is
		// finalized into confirmed before the new segment is processed.
		toCommit = append(toCommit, priorWorkingWords...)
		commitWords, workingWords := splitTail(textWords, r.cfg.WorkingTailWords)
		toCommit = append(toCommit, commitWords...)
		r.working = strings.Join(workingWords, " ")
	}

	var delta string
	if len(toCommit) > 0 {
		commitText := strings.Join(toCommit, " ")
		if r.confirmed.Len() > 0 {
			delta = " " + commitText
		} else {
			delta = commitText
		}
		r.confirmed.WriteString(delta)
		r.appendPromptWords(toCommit)
	}

	return delta, r.working
}

// splitTail separates words into (commit, held-back-tail) where the held
// back tail is at most n words. If there are n or fewer words total, all
// of them are held back and nothing is committed yet.
func splitTail(words []string, n int) (commit, tail []string) {
	if len(words) <= n {
		return nil, words
	}
	return words[:len(words)-n], words[len(words)-n:]
}

func (r *Reconciler) appendPromptWords(words []string) {
	r.promptWords = append(r.promptWords, words...)
	if over := len(r.promptWords) - r.cfg.PromptTokenCap; over > 0 {
		r.promptWords = r.promptWords[over:]
	}
}

// tailWordsByChars returns the longest trailing run of words whose joined
// (single-space-separated) length does not exceed limitChars, without ever
// splitting a word. At least one trailing word is always kept.
func tailWordsByChars(words []string, limitChars int) []string {
	if len(words) == 0 {
		return nil
	}
	total := 0
	start := len(words)
	for start > 0 {
		w := words[start-1]
		sep := 0
		if start < len(words) {
			sep = 1
		}
		if total > 0 && total+len(w)+sep > limitChars {
			break
		}
		total += len(w) + sep
		start--
	}
	return words[start:]
}

// longestCommonWordRun finds the longest run of identical consecutive
// words shared between a and b. It returns the end index (exclusive) of
// the run in each slice and its length in words. A word-level match is, by
// construction, always aligned to word boundaries on both sides.
func longestCommonWordRun(a, b []string) (aEnd, bEnd, length int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	bestLen, bestAEnd, bestBEnd := 0, 0, 0

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > bestLen {
					bestLen = curr[j]
					bestAEnd = i
					bestBEnd = j
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}

	return bestAEnd, bestBEnd, bestLen
}
