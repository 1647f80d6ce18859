package constants

// Side is the classified orientation of a single document image.
type Side string

// Stable values (store these exact strings in DB).
const (
	SideFront   Side = "FRONT"
	SideBack    Side = "BACK"
	SideUnknown Side = "UNKNOWN"
)
