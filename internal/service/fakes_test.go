package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"talkify/api/internal/chat"
	"talkify/api/internal/models"
	"talkify/api/internal/repository"
)

// memDB backs both in-memory stores so memTx can snapshot and restore them
// together.
type memDB struct {
	mu       sync.Mutex
	users    map[string]models.User
	requests map[string]models.FriendRequest
	seq      int
	failures map[string]error
}

func newMemDB() *memDB {
	return &memDB{
		users:    make(map[string]models.User),
		requests: make(map[string]models.FriendRequest),
		failures: make(map[string]error),
	}
}

func (db *memDB) fail(op string) error {
	return db.failures[op]
}

func (db *memDB) snapshot() (map[string]models.User, map[string]models.FriendRequest) {
	db.mu.Lock()
	defer db.mu.Unlock()

	users := make(map[string]models.User, len(db.users))
	for id, u := range db.users {
		users[id] = cloneUser(u)
	}
	requests := make(map[string]models.FriendRequest, len(db.requests))
	for id, r := range db.requests {
		requests[id] = r
	}
	return users, requests
}

func (db *memDB) restore(users map[string]models.User, requests map[string]models.FriendRequest) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users = users
	db.requests = requests
}

func cloneUser(u models.User) models.User {
	u.Friends = append([]string(nil), u.Friends...)
	if u.RefreshToken != nil {
		token := *u.RefreshToken
		u.RefreshToken = &token
	}
	return u
}

func (db *memDB) put(u models.User) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
		u.UpdatedAt = u.CreatedAt
	}
	db.users[u.ID] = cloneUser(u)
}

func (db *memDB) user(id string) (models.User, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	u, ok := db.users[id]
	return cloneUser(u), ok
}

func (db *memDB) request(id string) (models.FriendRequest, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	r, ok := db.requests[id]
	return r, ok
}

func (db *memDB) userCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.users)
}

type memTx struct {
	db *memDB
}

func (t memTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	users, requests := t.db.snapshot()
	if err := fn(ctx); err != nil {
		t.db.restore(users, requests)
		return err
	}
	return nil
}

type memUsers struct {
	db *memDB
}

func (s memUsers) Create(_ context.Context, user models.User) error {
	if err := s.db.fail("users.Create"); err != nil {
		return err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.users {
		if existing.Email == user.Email {
			return repository.ErrEmailTaken
		}
	}
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	if user.Friends == nil {
		user.Friends = []string{}
	}
	s.db.users[user.ID] = cloneUser(user)
	return nil
}

func (s memUsers) FindByEmail(_ context.Context, email string) (models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, u := range s.db.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (s memUsers) GetByID(_ context.Context, id string) (models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (s memUsers) SetRefreshToken(_ context.Context, id string, token *string) error {
	if err := s.db.fail("users.SetRefreshToken"); err != nil {
		return err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	if token != nil {
		value := *token
		token = &value
	}
	u.RefreshToken = token
	s.db.users[id] = u
	return nil
}

func (s memUsers) CompleteOnboarding(_ context.Context, id string, p models.OnboardingProfile) (models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	u.FullName = p.FullName
	u.Bio = p.Bio
	u.NativeLanguage = p.NativeLanguage
	u.LearningLanguage = p.LearningLanguage
	u.Location = p.Location
	u.IsOnboarded = true
	u.UpdatedAt = time.Now()
	s.db.users[id] = u
	return cloneUser(u), nil
}

func (s memUsers) UpdateProfilePic(_ context.Context, id string, url string) (models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	u.ProfilePic = url
	u.UpdatedAt = time.Now()
	s.db.users[id] = u
	return cloneUser(u), nil
}

func (s memUsers) AddFriend(_ context.Context, id string, friendID string) error {
	if err := s.db.fail("users.AddFriend"); err != nil {
		return err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	if !u.HasFriend(friendID) {
		u.Friends = append(u.Friends, friendID)
	}
	s.db.users[id] = u
	return nil
}

func (s memUsers) ListRecommendations(_ context.Context, id string) ([]models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	me := s.db.users[id]
	var out []models.User
	for _, u := range s.db.users {
		if u.ID == id || !u.IsOnboarded || me.HasFriend(u.ID) {
			continue
		}
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s memUsers) ListFriends(_ context.Context, id string) ([]models.PublicProfile, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []models.PublicProfile
	for _, friendID := range s.db.users[id].Friends {
		if f, ok := s.db.users[friendID]; ok {
			out = append(out, f.Public())
		}
	}
	return out, nil
}

func (s memUsers) ListPendingChatSync(_ context.Context, limit int) ([]models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []models.User
	for _, u := range s.db.users {
		if u.IsOnboarded && (u.ChatSyncedAt == nil || u.ChatSyncedAt.Before(u.UpdatedAt)) {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s memUsers) MarkChatSynced(_ context.Context, id string, version time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.ChatSyncedAt = &version
	s.db.users[id] = u
	return nil
}

type memRequests struct {
	db *memDB
}

func (s memRequests) Create(_ context.Context, req models.FriendRequest) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.requests {
		if samePair(existing, req.SenderID, req.RecipientID) {
			return repository.ErrDuplicateFriendRequest
		}
	}
	s.db.seq++
	req.CreatedAt = time.Unix(int64(s.db.seq), 0)
	req.UpdatedAt = req.CreatedAt
	s.db.requests[req.ID] = req
	return nil
}

func (s memRequests) GetByIDForUpdate(_ context.Context, id string) (models.FriendRequest, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	r, ok := s.db.requests[id]
	if !ok {
		return models.FriendRequest{}, repository.ErrFriendRequestNotFound
	}
	return r, nil
}

func (s memRequests) FindBetween(_ context.Context, a, b string) (models.FriendRequest, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, r := range s.db.requests {
		if samePair(r, a, b) {
			return r, nil
		}
	}
	return models.FriendRequest{}, repository.ErrFriendRequestNotFound
}

func (s memRequests) MarkAccepted(_ context.Context, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	r, ok := s.db.requests[id]
	if !ok || r.Status != models.FriendRequestPending {
		return repository.ErrFriendRequestNotPending
	}
	r.Status = models.FriendRequestAccepted
	s.db.requests[id] = r
	return nil
}

func (s memRequests) ListForRecipient(_ context.Context, userID string, status models.FriendRequestStatus) ([]models.FriendRequestView, error) {
	return s.list(func(r models.FriendRequest) (bool, string) {
		return r.RecipientID == userID && r.Status == status, r.SenderID
	})
}

func (s memRequests) ListForSender(_ context.Context, userID string, status models.FriendRequestStatus) ([]models.FriendRequestView, error) {
	return s.list(func(r models.FriendRequest) (bool, string) {
		return r.SenderID == userID && r.Status == status, r.RecipientID
	})
}

func (s memRequests) list(match func(models.FriendRequest) (bool, string)) ([]models.FriendRequestView, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []models.FriendRequestView
	for _, r := range s.db.requests {
		ok, counterpartID := match(r)
		if !ok {
			continue
		}
		out = append(out, models.FriendRequestView{
			FriendRequest: r,
			Counterpart:   s.db.users[counterpartID].Public(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func samePair(r models.FriendRequest, a, b string) bool {
	return (r.SenderID == a && r.RecipientID == b) || (r.SenderID == b && r.RecipientID == a)
}

type fakeChat struct {
	mu        sync.Mutex
	upsertErr error
	tokenErr  error
	upserts   []chat.Profile
	// onUpsert runs while the provider call is in flight.
	onUpsert func(chat.Profile)
}

func (f *fakeChat) UpsertUser(_ context.Context, p chat.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onUpsert != nil {
		f.onUpsert(p)
	}
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, p)
	return nil
}

func (f *fakeChat) CreateToken(userID string) (string, error) {
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	return "chat-token-" + userID, nil
}

type fakeRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	err     error
}

func newFakeRevoker() *fakeRevoker {
	return &fakeRevoker{revoked: make(map[string]time.Time)}
}

func (f *fakeRevoker) Revoke(_ context.Context, token string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.revoked[token] = expiresAt
	return nil
}

func (f *fakeRevoker) IsRevoked(_ context.Context, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.revoked[token]
	return ok, nil
}

type fakeAvatarStore struct {
	err  error
	key  string
	body []byte
	mime string
}

func (f *fakeAvatarStore) PutAvatar(_ context.Context, key string, body io.Reader, _ int64, contentType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.key, f.body, f.mime = key, data, contentType
	return "https://cdn.test/" + key, nil
}

var errBoom = errors.New("boom")
