package component

// Vec is an integer world-space vector. One unit is one world pixel.
type Vec struct {
	X, Y int32
}

func (v Vec) Add(o Vec) Vec { return Vec{v.X + o.X, v.Y + o.Y} }
func (v Vec) Sub(o Vec) Vec { return Vec{v.X - o.X, v.Y - o.Y} }

// DistSq returns the squared distance, widened to avoid overflow.
func (v Vec) DistSq(o Vec) int64 {
	dx := int64(v.X) - int64(o.X)
	dy := int64(v.Y) - int64(o.Y)
	return dx*dx + dy*dy
}

// Transform places an entity in the world. Facing is a direction scaled so
// its longer axis is 100.
type Transform struct {
	Pos    Vec
	Facing Vec
}

// RigidBody is the body state the kinematics pass owns. Writes go through the
// synchronized accessor so the broad-phase entry follows the body.
type RigidBody struct {
	Velocity Vec
	Impulse  Vec
	Frozen   bool
}
