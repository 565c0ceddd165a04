package room

import "sync"

// Conn is one transport connection. The gateway implements it; the hub
// only needs an identity and a non-blocking send.
type Conn interface {
	ID() string
	Send(data []byte)
}

// registry is the in-memory identity plumbing between sockets and game
// identity. A user may hold several sockets; the player counts as
// connected while at least one remains.
type registry struct {
	mu          sync.RWMutex
	conns       map[string]Conn            // socketID -> conn
	socketUser  map[string]string          // socketID -> userID
	socketRoom  map[string]string          // socketID -> roomID
	userSockets map[string]map[string]bool // userID -> socketIDs
}

func newRegistry() *registry {
	return &registry{
		conns:       make(map[string]Conn),
		socketUser:  make(map[string]string),
		socketRoom:  make(map[string]string),
		userSockets: make(map[string]map[string]bool),
	}
}

func (r *registry) bind(c Conn, userID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := c.ID()
	r.conns[id] = c
	r.socketUser[id] = userID
	r.socketRoom[id] = roomID
	set := r.userSockets[userID]
	if set == nil {
		set = make(map[string]bool)
		r.userSockets[userID] = set
	}
	set[id] = true
}

// unbind drops one socket and reports whether it was the user's last.
func (r *registry) unbind(socketID string) (userID, roomID string, last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok := r.socketUser[socketID]
	if !ok {
		return "", "", false
	}
	roomID = r.socketRoom[socketID]
	delete(r.conns, socketID)
	delete(r.socketUser, socketID)
	delete(r.socketRoom, socketID)
	if set := r.userSockets[userID]; set != nil {
		delete(set, socketID)
		if len(set) == 0 {
			delete(r.userSockets, userID)
			last = true
		}
	}
	return userID, roomID, last
}

// unbindUser drops every socket of a user, returning the dropped conns.
func (r *registry) unbindUser(userID string) []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	var dropped []Conn
	for socketID := range r.userSockets[userID] {
		if c := r.conns[socketID]; c != nil {
			dropped = append(dropped, c)
		}
		delete(r.conns, socketID)
		delete(r.socketUser, socketID)
		delete(r.socketRoom, socketID)
	}
	delete(r.userSockets, userID)
	return dropped
}

func (r *registry) identity(socketID string) (userID, roomID string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok = r.socketUser[socketID]
	if !ok {
		return "", "", false
	}
	return userID, r.socketRoom[socketID], true
}

func (r *registry) connsOf(userID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Conn
	for socketID := range r.userSockets[userID] {
		if c := r.conns[socketID]; c != nil {
			out = append(out, c)
		}
	}
	return out
}
