package collab

import "hash/fnv"

// collaboratorPalette holds the cursor colors assigned to participants.
var collaboratorPalette = []string{
	"#F87171", // red
	"#FB923C", // orange
	"#FBBF24", // amber
	"#34D399", // emerald
	"#22D3EE", // cyan
	"#60A5FA", // blue
	"#A78BFA", // violet
	"#F472B6", // pink
}

// ColorFor deterministically picks a palette color for a user so the same
// user keeps one color across sessions and across every peer's view.
func ColorFor(userID string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return collaboratorPalette[h.Sum32()%uint32(len(collaboratorPalette))]
}
