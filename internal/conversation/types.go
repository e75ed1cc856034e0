package conversation

// Role identifies the author of a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Part is one element of a turn. Exactly one of Text, Image or Token is set.
// Token is provider continuation data: an arbitrary binary blob the model
// needs back on later turns, never interpreted here.
type Part struct {
	Text      string
	Image     []byte
	MediaType string
	Token     []byte
}

// Turn is one exchange unit in a project's edit session. Turns are
// append-only; pruning may strip image payloads but never reorders turns or
// changes roles.
type Turn struct {
	Role  Role
	Parts []Part
}

func (p Part) IsText() bool  { return p.Text != "" && p.Image == nil && p.Token == nil }
func (p Part) IsImage() bool { return len(p.Image) > 0 }
func (p Part) IsToken() bool { return len(p.Token) > 0 }

// CountImages reports embedded image parts across the whole history.
func CountImages(turns []Turn) int {
	n := 0
	for _, t := range turns {
		for _, p := range t.Parts {
			if p.IsImage() {
				n++
			}
		}
	}
	return n
}

func countImageParts(parts []Part) int {
	n := 0
	for _, p := range parts {
		if p.IsImage() {
			n++
		}
	}
	return n
}

func hasImage(t Turn) bool {
	return countImageParts(t.Parts) > 0
}
