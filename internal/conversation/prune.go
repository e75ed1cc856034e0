package conversation

// DefaultImageBudget caps embedded image payloads kept across a session
// history. Fourteen leaves room for the initial room photos plus several
// rounds of edits without blowing up the provider context.
const DefaultImageBudget = 14

// Keep the opening turns (original room framing) and the newest turns
// (current visual state); the middle of the history goes first.
const (
	protectedHead = 2
	protectedTail = 2
)

const prunedPlaceholder = "[image removed to stay within session budget]"

// PruneImages strips image payloads so that, after adding `incoming` more
// images, the history holds at most `budget` embedded images. Stripped images
// become text placeholders. Turn count, order and role sequence are never
// touched. Returns the number of images stripped.
func PruneImages(turns []Turn, incoming, budget int) int {
	if budget <= 0 {
		budget = DefaultImageBudget
	}
	total := CountImages(turns)
	target := budget - incoming
	if target < 0 {
		target = 0
	}
	if total <= target {
		return 0
	}

	stripped := 0
	for i := range turns {
		if i < protectedHead || i >= len(turns)-protectedTail {
			continue
		}
		for j := range turns[i].Parts {
			if !turns[i].Parts[j].IsImage() {
				continue
			}
			turns[i].Parts[j] = Part{Text: prunedPlaceholder}
			stripped++
			total--
			if total <= target {
				return stripped
			}
		}
	}
	return stripped
}
