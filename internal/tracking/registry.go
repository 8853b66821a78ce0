package tracking

import "github.com/ayusman/retailsight/internal/detector"

// Identity is the state kept for one upstream track id.
type Identity struct {
	ID        int
	Role      Role
	Label     string
	Box       detector.BBox
	FirstSeen int
	LastSeen  int

	// Crossed is set once a customer has passed the entrance line.
	Crossed bool

	// OnZone is the zone membership of an item at its last observation.
	OnZone bool
}

// Registry maps track ids to identities. The role of an identity is fixed
// when it is first observed; a later detection of the same track id with a
// different class does not change it.
type Registry struct {
	roles         RoleMap
	identities    map[int]*Identity
	maxIdleFrames int
}

// NewRegistry creates a registry. maxIdleFrames bounds how long an identity
// survives without being observed; 0 keeps identities for the whole session.
func NewRegistry(roles RoleMap, maxIdleFrames int) *Registry {
	if roles == nil {
		roles = DefaultRoleMap()
	}
	return &Registry{
		roles:         roles,
		identities:    make(map[int]*Identity),
		maxIdleFrames: maxIdleFrames,
	}
}

// Classify returns the role of a track id. Known identities keep the role
// they were created with.
func (r *Registry) Classify(trackID, classID int) Role {
	if id, ok := r.identities[trackID]; ok {
		return id.Role
	}
	return r.roles.Lookup(classID)
}

// Observe records a detection seen on the given processed frame and returns
// its identity. Detections with an unmapped class return nil and leave no
// state behind.
func (r *Registry) Observe(d detector.Detection, frame int) *Identity {
	role := r.Classify(d.TrackID, d.ClassID)
	if role == RoleUnknown {
		return nil
	}

	id, ok := r.identities[d.TrackID]
	if !ok {
		id = &Identity{
			ID:        d.TrackID,
			Role:      role,
			Label:     role.Label(),
			FirstSeen: frame,
		}
		r.identities[d.TrackID] = id
	}
	id.Box = d.Box
	id.LastSeen = frame
	return id
}

// SetZoneMembership records whether an item identity is on the zone.
func (r *Registry) SetZoneMembership(trackID int, onZone bool) {
	if id, ok := r.identities[trackID]; ok {
		id.OnZone = onZone
	}
}

// Get returns the identity for a track id.
func (r *Registry) Get(trackID int) (*Identity, bool) {
	id, ok := r.identities[trackID]
	return id, ok
}

// Len returns the number of identities held.
func (r *Registry) Len() int {
	return len(r.identities)
}

// Evict drops identities unseen for more than maxIdleFrames processed frames
// and returns how many were removed.
func (r *Registry) Evict(frame int) int {
	if r.maxIdleFrames <= 0 {
		return 0
	}
	removed := 0
	for key, id := range r.identities {
		if frame-id.LastSeen > r.maxIdleFrames {
			delete(r.identities, key)
			removed++
		}
	}
	return removed
}
