package services

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"waitroom/internal/status"
	"waitroom/models"
	"waitroom/utils"
)

// Persister is the durability layer behind the session store. The in-memory
// state stays authoritative while the process lives; the persister exists so
// queue state survives a restart. Writes happen after the in-memory commit,
// outside the resource lock, so a slow backend cannot stall client operations.
type Persister interface {
	SaveSession(ctx context.Context, session *models.QueueSession) error
	DeleteSession(ctx context.Context, resourceID, sessionID string) error
	LoadSessions(ctx context.Context) ([]*models.QueueSession, error)
}

// Departure is a session that left the live set, with enough context for the
// caller to know whether a slot was freed.
type Departure struct {
	Session   models.QueueSession
	WasActive bool
}

// QueueRef identifies one queued session inside a snapshot.
type QueueRef struct {
	ID       string
	JoinedAt time.Time
}

// QueueSnapshot is a consistent read of one resource's queue. Positions are
// always derived from a snapshot, never persisted.
type QueueSnapshot struct {
	ResourceID  string
	Queued      []QueueRef
	ActiveCount int
	Version     uint64
}

// PositionOf returns the 1-based rank of a queued session, or 0 when the
// session is not in the queued set (active, departed, or unknown).
func (s QueueSnapshot) PositionOf(sessionID string) int {
	for i, ref := range s.Queued {
		if ref.ID == sessionID {
			return i + 1
		}
	}
	return 0
}

type resourceState struct {
	mu            sync.Mutex
	sessions      map[string]*models.QueueSession
	byParticipant map[string]string
	// version tracks queued/active membership changes; liveness and
	// notification bookkeeping do not move it.
	version uint64
}

// SessionStore owns every QueueSession mutation. All operations for one
// resource serialize on that resource's lock, so two concurrent admissions
// can never both observe a free slot and over-admit.
type SessionStore struct {
	mu        sync.RWMutex
	resources map[string]*resourceState
	index     map[string]string // session id -> resource id
	persister Persister
	now       func() time.Time
}

func NewSessionStore(persister Persister) *SessionStore {
	return &SessionStore{
		resources: make(map[string]*resourceState),
		index:     make(map[string]string),
		persister: persister,
		now:       time.Now,
	}
}

func (s *SessionStore) resource(resourceID string) *resourceState {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, ok := s.resources[resourceID]
	if !ok {
		rs = &resourceState{
			sessions:      make(map[string]*models.QueueSession),
			byParticipant: make(map[string]string),
		}
		s.resources[resourceID] = rs
	}
	return rs
}

func (s *SessionStore) lookup(sessionID string) (*resourceState, bool) {
	s.mu.RLock()
	resourceID, ok := s.index[sessionID]
	rs := s.resources[resourceID]
	s.mu.RUnlock()
	return rs, ok && rs != nil
}

func (s *SessionStore) register(sessionID, resourceID string) {
	s.mu.Lock()
	s.index[sessionID] = resourceID
	s.mu.Unlock()
}

func (s *SessionStore) unregister(sessionIDs ...string) {
	s.mu.Lock()
	for _, id := range sessionIDs {
		delete(s.index, id)
	}
	s.mu.Unlock()
}

func (s *SessionStore) persist(ctx context.Context, session *models.QueueSession) {
	if err := s.persister.SaveSession(ctx, session); err != nil {
		slog.Error("failed to persist session", "session_id", session.ID, "error", err)
	}
}

func (s *SessionStore) purge(ctx context.Context, resourceID, sessionID string) {
	if err := s.persister.DeleteSession(ctx, resourceID, sessionID); err != nil {
		slog.Error("failed to remove persisted session", "session_id", sessionID, "error", err)
	}
}

func copySession(session *models.QueueSession) *models.QueueSession {
	c := *session
	if session.AdmittedAt != nil {
		t := *session.AdmittedAt
		c.AdmittedAt = &t
	}
	return &c
}

func activeCountLocked(rs *resourceState) int {
	count := 0
	for _, sess := range rs.sessions {
		if sess.Status == models.StatusActive {
			count++
		}
	}
	return count
}

// Join creates a session for the participant, going straight to active when
// capacity allows. Joining again while a live session exists returns the
// existing session instead of duplicating it.
func (s *SessionStore) Join(ctx context.Context, resourceID, participant string, maxConcurrent int) (*models.QueueSession, error) {
	rs := s.resource(resourceID)

	rs.mu.Lock()
	if existing, ok := rs.byParticipant[participant]; ok {
		if sess, ok := rs.sessions[existing]; ok && sess.IsLive() {
			joined := copySession(sess)
			rs.mu.Unlock()
			return joined, nil
		}
	}

	id, err := utils.GenerateSessionID()
	if err != nil {
		rs.mu.Unlock()
		return nil, err
	}

	now := s.now()
	session := &models.QueueSession{
		ID:              id,
		ResourceID:      resourceID,
		Participant:     participant,
		Status:          models.StatusQueued,
		JoinedAt:        now,
		LastHeartbeatAt: now,
	}
	if activeCountLocked(rs) < maxConcurrent {
		// Fast path: capacity exists, skip the queue entirely.
		session.Status = models.StatusActive
		admitted := now
		session.AdmittedAt = &admitted
	}

	rs.sessions[id] = session
	rs.byParticipant[participant] = id
	rs.version++
	joined := copySession(session)
	rs.mu.Unlock()

	s.register(id, resourceID)
	s.persist(ctx, joined)
	return joined, nil
}

// Heartbeat resets the session's inactivity timer. Unknown or terminal
// sessions surface ErrSessionNotFound so the client can rejoin.
func (s *SessionStore) Heartbeat(ctx context.Context, sessionID string) (*models.QueueSession, error) {
	rs, ok := s.lookup(sessionID)
	if !ok {
		return nil, status.ErrSessionNotFound
	}

	rs.mu.Lock()
	session, ok := rs.sessions[sessionID]
	if !ok || !session.IsLive() {
		rs.mu.Unlock()
		return nil, status.ErrSessionNotFound
	}

	session.LastHeartbeatAt = s.now()
	beat := copySession(session)
	rs.mu.Unlock()

	s.persist(ctx, beat)
	return beat, nil
}

// Session returns a copy of a live session.
func (s *SessionStore) Session(sessionID string) (*models.QueueSession, error) {
	rs, ok := s.lookup(sessionID)
	if !ok {
		return nil, status.ErrSessionNotFound
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	session, ok := rs.sessions[sessionID]
	if !ok || !session.IsLive() {
		return nil, status.ErrSessionNotFound
	}
	return copySession(session), nil
}

func (s *SessionStore) depart(ctx context.Context, sessionID string, terminal models.SessionStatus) (Departure, error) {
	rs, ok := s.lookup(sessionID)
	if !ok {
		return Departure{}, status.ErrSessionNotFound
	}

	rs.mu.Lock()
	session, ok := rs.sessions[sessionID]
	if !ok || !session.IsLive() {
		rs.mu.Unlock()
		return Departure{}, status.ErrSessionNotFound
	}

	wasActive := session.Status == models.StatusActive
	session.Status = terminal
	delete(rs.sessions, sessionID)
	delete(rs.byParticipant, session.Participant)
	rs.version++
	departed := copySession(session)
	rs.mu.Unlock()

	s.unregister(sessionID)
	s.purge(ctx, departed.ResourceID, sessionID)
	return Departure{Session: *departed, WasActive: wasActive}, nil
}

// Leave is the participant's explicit cancellation; the entry and, if active,
// its slot are released immediately.
func (s *SessionStore) Leave(ctx context.Context, sessionID string) (Departure, error) {
	return s.depart(ctx, sessionID, models.StatusExpired)
}

// Complete is the checkout flow signalling the slot was used successfully.
func (s *SessionStore) Complete(ctx context.Context, sessionID string) (Departure, error) {
	return s.depart(ctx, sessionID, models.StatusCompleted)
}

// Admit promotes queued sessions in strict FIFO order while free slots
// remain. The invariant count(active) <= maxConcurrent holds at every commit
// because the whole pass runs under the resource lock.
func (s *SessionStore) Admit(ctx context.Context, resourceID string, maxConcurrent int) ([]models.QueueSession, error) {
	rs := s.resource(resourceID)

	rs.mu.Lock()
	active := activeCountLocked(rs)
	if active > maxConcurrent {
		// Should be unreachable; recounting above is already the recovery.
		rs.mu.Unlock()
		return nil, status.ErrCapacityInvariant
	}

	free := maxConcurrent - active
	if free == 0 {
		rs.mu.Unlock()
		return nil, nil
	}

	queued := queuedSortedLocked(rs)
	var promoted []models.QueueSession
	now := s.now()
	for _, ref := range queued {
		if free == 0 {
			break
		}
		session := rs.sessions[ref.ID]
		session.Status = models.StatusActive
		admitted := now
		session.AdmittedAt = &admitted
		rs.version++
		promoted = append(promoted, *copySession(session))
		free--
	}
	rs.mu.Unlock()

	for i := range promoted {
		s.persist(ctx, &promoted[i])
	}
	return promoted, nil
}

// ExpireStale transitions every session without a heartbeat inside the
// timeout window to expired and releases its slot or rank.
func (s *SessionStore) ExpireStale(ctx context.Context, resourceID string, timeout time.Duration) []Departure {
	rs := s.resource(resourceID)

	rs.mu.Lock()
	now := s.now()
	var departed []Departure
	for id, session := range rs.sessions {
		if now.Sub(session.LastHeartbeatAt) <= timeout {
			continue
		}
		wasActive := session.Status == models.StatusActive
		session.Status = models.StatusExpired
		delete(rs.sessions, id)
		delete(rs.byParticipant, session.Participant)
		rs.version++
		departed = append(departed, Departure{Session: *copySession(session), WasActive: wasActive})
	}
	rs.mu.Unlock()

	ids := make([]string, 0, len(departed))
	for _, d := range departed {
		ids = append(ids, d.Session.ID)
	}
	s.unregister(ids...)
	for _, d := range departed {
		s.purge(ctx, resourceID, d.Session.ID)
	}
	return departed
}

func queuedSortedLocked(rs *resourceState) []QueueRef {
	refs := make([]QueueRef, 0, len(rs.sessions))
	for id, session := range rs.sessions {
		if session.Status == models.StatusQueued {
			refs = append(refs, QueueRef{ID: id, JoinedAt: session.JoinedAt})
		}
	}
	// FIFO by join time, ties broken by id so repeated reads agree.
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].JoinedAt.Equal(refs[j].JoinedAt) {
			return refs[i].ID < refs[j].ID
		}
		return refs[i].JoinedAt.Before(refs[j].JoinedAt)
	})
	return refs
}

// Snapshot returns a consistent view of one resource's queue for position and
// wait-time derivation.
func (s *SessionStore) Snapshot(resourceID string) QueueSnapshot {
	rs := s.resource(resourceID)

	rs.mu.Lock()
	defer rs.mu.Unlock()

	return QueueSnapshot{
		ResourceID:  resourceID,
		Queued:      queuedSortedLocked(rs),
		ActiveCount: activeCountLocked(rs),
		Version:     rs.version,
	}
}

// SetLastNotifiedPosition records that an update for position was delivered.
// The write is validated against the version the caller derived the position
// from; a stale version means the queue moved and the caller must recompute.
func (s *SessionStore) SetLastNotifiedPosition(ctx context.Context, sessionID string, position int, version uint64) error {
	rs, ok := s.lookup(sessionID)
	if !ok {
		return status.ErrSessionNotFound
	}

	rs.mu.Lock()
	if rs.version != version {
		rs.mu.Unlock()
		return status.ErrStaleWrite
	}

	session, ok := rs.sessions[sessionID]
	if !ok || !session.IsLive() {
		rs.mu.Unlock()
		return status.ErrSessionNotFound
	}

	session.LastNotifiedPosition = position
	recorded := copySession(session)
	rs.mu.Unlock()

	s.persist(ctx, recorded)
	return nil
}

// Resources lists every resource the store has seen sessions for.
func (s *SessionStore) Resources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.resources))
	for id := range s.resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stats summarizes every resource for metrics and the admin dashboard.
func (s *SessionStore) Stats() []models.ResourceStats {
	var stats []models.ResourceStats
	for _, resourceID := range s.Resources() {
		snap := s.Snapshot(resourceID)
		stats = append(stats, models.ResourceStats{
			ResourceID: resourceID,
			Queued:     len(snap.Queued),
			Active:     snap.ActiveCount,
			Version:    snap.Version,
		})
	}
	return stats
}

// Restore reloads live sessions from the persister after a restart.
func (s *SessionStore) Restore(ctx context.Context) error {
	sessions, err := s.persister.LoadSessions(ctx)
	if err != nil {
		return err
	}

	restored := 0
	for _, session := range sessions {
		if !session.IsLive() {
			continue
		}
		rs := s.resource(session.ResourceID)
		rs.mu.Lock()
		rs.sessions[session.ID] = copySession(session)
		rs.byParticipant[session.Participant] = session.ID
		rs.mu.Unlock()
		s.register(session.ID, session.ResourceID)
		restored++
	}

	if restored > 0 {
		slog.Info("restored queue state", "sessions", restored)
	}
	return nil
}
