package scala40

import "sort"

// MeldReason is the enumerated rejection code for meld validation.
type MeldReason string

const (
	ReasonNone                  MeldReason = ""
	ReasonTooShort              MeldReason = "tooShort"
	ReasonTooLong               MeldReason = "tooLong"
	ReasonMultipleJokers        MeldReason = "multipleJokers"
	ReasonMixedSuitsInSequence  MeldReason = "mixedSuitsInSequence"
	ReasonSameSuitInCombination MeldReason = "sameSuitInCombination"
	ReasonNonConsecutive        MeldReason = "nonConsecutive"
	ReasonWrap                  MeldReason = "wrap"
	ReasonOnlyJokers            MeldReason = "onlyJokers"
	ReasonUnknownCard           MeldReason = "unknownCard"
)

// MeldCheck is the result of validating a candidate meld.
type MeldCheck struct {
	Valid  bool
	Type   MeldType
	Points int
	Reason MeldReason
	// Run is the resolved rank run for sequences, low to high, with the
	// joker's gap filled. An ace counted high appears as 14.
	Run []int
}

// maxSequenceLen is A-2-...-K-A: thirteen ranks plus the high ace.
const maxSequenceLen = 14

func splitJokers(cards []Card) (jokers, regulars []Card) {
	for _, c := range cards {
		if c.IsJoker() {
			jokers = append(jokers, c)
		} else {
			regulars = append(regulars, c)
		}
	}
	return jokers, regulars
}

// runPoints sums the point values of a resolved rank run. A rank of 1 is an
// ace immediately before the 2 and counts low; 14 is an ace after the king
// and counts high.
func runPoints(run []int) int {
	total := 0
	for _, r := range run {
		switch {
		case r == 1:
			total += AcePointsLow
		case r == 14:
			total += AcePointsHigh
		case r >= Jack:
			total += FacePoints
		default:
			total += r
		}
	}
	return total
}

// resolveRun attempts to lay out the regular ranks plus numJokers placeholders
// as a strictly increasing consecutive run. Both ace placements are tried.
// Returns nil when no placement works.
func resolveRun(ranks []int, numJokers int) []int {
	trySets := [][]int{ranks}
	for _, r := range ranks {
		if r == Ace {
			high := make([]int, len(ranks))
			for i, v := range ranks {
				if v == Ace {
					high[i] = 14
				} else {
					high[i] = v
				}
			}
			sort.Ints(high)
			trySets = append(trySets, high)
			break
		}
	}

	for _, try := range trySets {
		run := []int{try[0]}
		used := 0
		ok := true
		for i := 1; i < len(try); i++ {
			diff := try[i] - try[i-1]
			switch {
			case diff == 1:
				run = append(run, try[i])
			case diff == 2 && used < numJokers:
				run = append(run, try[i-1]+1, try[i])
				used++
			default:
				ok = false
			}
			if !ok {
				break
			}
		}
		if !ok {
			continue
		}
		// A joker that fills no interior gap extends the run at an end.
		for used < numJokers {
			switch {
			case run[len(run)-1]+1 <= 14:
				run = append(run, run[len(run)-1]+1)
			case run[0]-1 >= 1:
				run = append([]int{run[0] - 1}, run...)
			default:
				ok = false
			}
			if !ok {
				break
			}
			used++
		}
		if ok {
			return run
		}
	}
	return nil
}

// CheckSequence validates cards as a sequence: 3-14 same-suit cards in a
// strictly increasing consecutive run, at most one joker filling one rank.
// The ace may sit before the 2 or after the king, but never both (no wrap).
func CheckSequence(cards []Card) MeldCheck {
	if len(cards) < 3 {
		return MeldCheck{Reason: ReasonTooShort}
	}
	if len(cards) > maxSequenceLen {
		return MeldCheck{Reason: ReasonTooLong}
	}

	jokers, regulars := splitJokers(cards)
	if len(jokers) > 1 {
		return MeldCheck{Reason: ReasonMultipleJokers}
	}
	if len(regulars) == 0 {
		return MeldCheck{Reason: ReasonOnlyJokers}
	}

	suit := regulars[0].Suit
	for _, c := range regulars {
		if c.Suit != suit {
			return MeldCheck{Reason: ReasonMixedSuitsInSequence}
		}
	}

	ranks := make([]int, len(regulars))
	hasRank := make(map[int]bool, len(regulars))
	for i, c := range regulars {
		ranks[i] = c.Rank
		hasRank[c.Rank] = true
	}
	sort.Ints(ranks)
	for i := 1; i < len(ranks); i++ {
		if ranks[i] == ranks[i-1] {
			return MeldCheck{Reason: ReasonNonConsecutive}
		}
	}

	// K,A,2 style wraps have the ace flanked on both sides.
	if hasRank[Ace] && hasRank[2] && hasRank[King] {
		return MeldCheck{Reason: ReasonWrap}
	}

	run := resolveRun(ranks, len(jokers))
	if run == nil {
		return MeldCheck{Reason: ReasonNonConsecutive}
	}

	return MeldCheck{
		Valid:  true,
		Type:   MeldSequence,
		Points: runPoints(run),
		Run:    run,
	}
}

// CheckCombination validates cards as a combination: 3 or 4 same-rank cards
// with pairwise distinct suits, at most one joker taking the common rank.
func CheckCombination(cards []Card) MeldCheck {
	if len(cards) < 3 {
		return MeldCheck{Reason: ReasonTooShort}
	}
	if len(cards) > 4 {
		return MeldCheck{Reason: ReasonTooLong}
	}

	jokers, regulars := splitJokers(cards)
	if len(jokers) > 1 {
		return MeldCheck{Reason: ReasonMultipleJokers}
	}
	if len(regulars) == 0 {
		return MeldCheck{Reason: ReasonOnlyJokers}
	}

	rank := regulars[0].Rank
	for _, c := range regulars {
		if c.Rank != rank {
			return MeldCheck{Reason: ReasonNonConsecutive}
		}
	}

	seen := make(map[Suit]bool, len(regulars))
	for _, c := range regulars {
		if seen[c.Suit] {
			return MeldCheck{Reason: ReasonSameSuitInCombination}
		}
		seen[c.Suit] = true
	}

	points := 0
	for _, c := range regulars {
		points += c.Points(false)
	}
	// The joker is worth the rank it stands for.
	points += len(jokers) * regulars[0].Points(false)

	return MeldCheck{Valid: true, Type: MeldCombination, Points: points}
}

// CheckMeld validates cards as either meld type. Same-rank candidates are
// checked as combinations, everything else as sequences, so the rejection
// code matches what the player was plausibly attempting.
func CheckMeld(cards []Card) MeldCheck {
	_, regulars := splitJokers(cards)
	if len(regulars) > 0 && len(cards) <= 4 {
		sameRank := true
		for _, c := range regulars {
			if c.Rank != regulars[0].Rank {
				sameRank = false
				break
			}
		}
		if sameRank {
			return CheckCombination(cards)
		}
	}
	return CheckSequence(cards)
}

// OpeningCheck is the result of validating an opening move.
type OpeningCheck struct {
	Valid bool
	// Points is the total over all melds; with the openingWithoutJoker
	// variant it is the total that counted toward the threshold.
	Points int
	Reason MeldReason
	Types  []MeldType
}

// CheckOpening validates a set of melds as an opening: every meld valid and
// the point total at or above the threshold. When jokerFree is set
// (openingWithoutJoker variant), melds containing a joker only count once
// the joker-free melds alone reach the threshold.
func CheckOpening(melds [][]Card, threshold int, jokerFree bool) OpeningCheck {
	if len(melds) == 0 {
		return OpeningCheck{Reason: ReasonTooShort}
	}

	total := 0
	clean := 0
	types := make([]MeldType, 0, len(melds))
	for _, cards := range melds {
		check := CheckMeld(cards)
		if !check.Valid {
			return OpeningCheck{Reason: check.Reason}
		}
		total += check.Points
		jokers, _ := splitJokers(cards)
		if len(jokers) == 0 {
			clean += check.Points
		}
		types = append(types, check.Type)
	}

	counted := total
	if jokerFree && clean < threshold {
		counted = clean
	}
	if counted < threshold {
		return OpeningCheck{Points: counted}
	}
	return OpeningCheck{Valid: true, Points: total, Types: types}
}

// AttachCheck is the result of testing a card against a table meld.
type AttachCheck struct {
	Valid  bool
	Points int
	// Front is true when the card extends a sequence at its low end.
	Front  bool
	Reason MeldReason
}

// CanAttach reports whether adding c to m yields another valid meld.
func CanAttach(c Card, m *Meld) AttachCheck {
	switch m.Type {
	case MeldSequence:
		return canAttachSequence(c, m)
	case MeldCombination:
		return canAttachCombination(c, m)
	}
	return AttachCheck{Reason: ReasonUnknownCard}
}

func canAttachSequence(c Card, m *Meld) AttachCheck {
	run := SequenceRun(m.Cards)
	if run == nil {
		return AttachCheck{Reason: ReasonNonConsecutive}
	}
	if len(m.Cards) >= maxSequenceLen {
		return AttachCheck{Reason: ReasonTooLong}
	}

	if c.IsJoker() {
		if m.HasJoker() {
			return AttachCheck{Reason: ReasonMultipleJokers}
		}
		if run[len(run)-1]+1 <= 14 {
			return AttachCheck{Valid: true, Points: rankValue(run[len(run)-1] + 1)}
		}
		if run[0]-1 >= 1 {
			return AttachCheck{Valid: true, Points: rankValue(run[0] - 1), Front: true}
		}
		return AttachCheck{Reason: ReasonTooLong}
	}

	_, regulars := splitJokers(m.Cards)
	if len(regulars) > 0 && c.Suit != regulars[0].Suit {
		return AttachCheck{Reason: ReasonMixedSuitsInSequence}
	}

	lo, hi := run[0], run[len(run)-1]
	if c.Rank == Ace {
		switch {
		case lo == 2:
			return AttachCheck{Valid: true, Points: AcePointsLow, Front: true}
		case hi == King:
			return AttachCheck{Valid: true, Points: AcePointsHigh}
		default:
			return AttachCheck{Reason: ReasonNonConsecutive}
		}
	}
	if c.Rank == lo-1 && c.Rank >= 2 {
		return AttachCheck{Valid: true, Points: c.Points(false), Front: true}
	}
	if c.Rank == hi+1 && c.Rank <= King {
		return AttachCheck{Valid: true, Points: c.Points(false)}
	}
	return AttachCheck{Reason: ReasonNonConsecutive}
}

func canAttachCombination(c Card, m *Meld) AttachCheck {
	if len(m.Cards) >= 4 {
		return AttachCheck{Reason: ReasonTooLong}
	}
	_, regulars := splitJokers(m.Cards)
	if len(regulars) == 0 {
		return AttachCheck{Reason: ReasonOnlyJokers}
	}

	if c.IsJoker() {
		if m.HasJoker() {
			return AttachCheck{Reason: ReasonMultipleJokers}
		}
		return AttachCheck{Valid: true, Points: regulars[0].Points(false)}
	}

	if c.Rank != regulars[0].Rank {
		return AttachCheck{Reason: ReasonNonConsecutive}
	}
	for _, rc := range regulars {
		if rc.Suit == c.Suit {
			return AttachCheck{Reason: ReasonSameSuitInCombination}
		}
	}
	return AttachCheck{Valid: true, Points: c.Points(false)}
}

// SequenceRun resolves the rank run of a sequence meld on the table,
// including the rank its joker fills (14 = high ace). Returns nil when the
// cards do not form a valid sequence.
func SequenceRun(cards []Card) []int {
	check := CheckSequence(cards)
	if !check.Valid {
		return nil
	}
	return check.Run
}

// JokerRankIn returns the rank the joker occupies within a sequence meld
// (14 meaning a high ace), and whether the meld holds a joker at all.
func JokerRankIn(m *Meld) (int, bool) {
	if !m.HasJoker() {
		return 0, false
	}
	if m.Type == MeldCombination {
		_, regulars := splitJokers(m.Cards)
		if len(regulars) == 0 {
			return 0, false
		}
		return regulars[0].Rank, true
	}

	run := SequenceRun(m.Cards)
	if run == nil {
		return 0, false
	}
	_, regulars := splitJokers(m.Cards)
	covered := make(map[int]bool, len(regulars))
	for _, c := range regulars {
		covered[c.Rank] = true
	}
	for _, r := range run {
		probe := r
		if r == 14 {
			probe = Ace
		}
		if !covered[probe] {
			return r, true
		}
		covered[probe] = false // each regular covers one run slot
	}
	return 0, false
}

// SubstituteCheck is the result of testing a joker substitution.
type SubstituteCheck struct {
	Valid  bool
	Reason MeldReason
}

// CanSubstituteJoker reports whether c is the exact card (suit and rank;
// deck index is immaterial) whose position the joker occupies in m, such
// that swapping them leaves the meld valid.
func CanSubstituteJoker(c Card, m *Meld) SubstituteCheck {
	if c.IsJoker() {
		return SubstituteCheck{Reason: ReasonUnknownCard}
	}
	jokerRank, ok := JokerRankIn(m)
	if !ok {
		return SubstituteCheck{Reason: ReasonUnknownCard}
	}

	switch m.Type {
	case MeldCombination:
		if c.Rank != jokerRank {
			return SubstituteCheck{Reason: ReasonNonConsecutive}
		}
		_, regulars := splitJokers(m.Cards)
		for _, rc := range regulars {
			if rc.Suit == c.Suit {
				return SubstituteCheck{Reason: ReasonSameSuitInCombination}
			}
		}
		return SubstituteCheck{Valid: true}

	case MeldSequence:
		_, regulars := splitJokers(m.Cards)
		if len(regulars) == 0 {
			return SubstituteCheck{Reason: ReasonOnlyJokers}
		}
		if c.Suit != regulars[0].Suit {
			return SubstituteCheck{Reason: ReasonMixedSuitsInSequence}
		}
		want := jokerRank
		if want == 14 {
			want = Ace
		}
		if c.Rank != want {
			return SubstituteCheck{Reason: ReasonNonConsecutive}
		}
		return SubstituteCheck{Valid: true}
	}
	return SubstituteCheck{Reason: ReasonUnknownCard}
}

// DiscardAttaches returns the first table meld the card would legally
// attach to, or nil. Used by the ≥3-player discard restriction.
func DiscardAttaches(c Card, melds []*Meld) *Meld {
	for _, m := range melds {
		if CanAttach(c, m).Valid {
			return m
		}
	}
	return nil
}

// rankValue is the point value of a bare run rank.
func rankValue(r int) int {
	switch {
	case r == 1:
		return AcePointsLow
	case r == 14:
		return AcePointsHigh
	case r >= Jack:
		return FacePoints
	default:
		return r
	}
}
