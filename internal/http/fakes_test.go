package http

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"social-api/internal/domain"
	"social-api/internal/email"
	"social-api/internal/repository"
)

type mockUserRepo struct {
	mu      sync.Mutex
	byID    map[string]domain.User
	follows map[[2]string]bool
	err     error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		byID:    make(map[string]domain.User),
		follows: make(map[[2]string]bool),
	}
}

var _ repository.UserRepository = (*mockUserRepo)(nil)

func (m *mockUserRepo) put(u domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[u.ID] = u
}

func (m *mockUserRepo) get(id string) domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id]
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, u := range m.byID {
		if u.Email == user.Email {
			return repository.ErrEmailTaken
		}
		if u.Name == user.Name {
			return repository.ErrNameTaken
		}
	}
	user.Active = true
	m.byID[user.ID] = user
	return nil
}

func (m *mockUserRepo) FindActiveByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok || !u.Active {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (m *mockUserRepo) FindByIDIncludingInactive(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.User{}, m.err
	}
	u, ok := m.byID[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (m *mockUserRepo) FindActiveByEmail(_ context.Context, emailAddr string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == emailAddr && u.Active {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (m *mockUserRepo) FindActiveByResetToken(_ context.Context, tokenHash string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.PasswordResetToken != "" && u.PasswordResetToken == tokenHash && u.Active {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (m *mockUserRepo) ListActive(_ context.Context) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.User
	for _, u := range m.byID {
		if u.Active {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *mockUserRepo) SearchActiveByEmailPrefix(_ context.Context, prefix string, limit int) ([]domain.UserSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.UserSummary{}
	for _, u := range m.byID {
		if u.Active && strings.HasPrefix(u.Email, prefix) {
			out = append(out, domain.UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Photo: u.Photo})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockUserRepo) UpdateProfile(_ context.Context, id string, upd domain.ProfileUpdate) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok || !u.Active {
		return domain.User{}, domain.ErrNotFound
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.Photo != nil {
		u.Photo = *upd.Photo
	}
	if upd.Role != nil {
		u.Role = *upd.Role
	}
	m.byID[id] = u
	return u, nil
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, id, passwordHash string, changedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok || !u.Active {
		return domain.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.PasswordChangedAt = &changedAt
	m.byID[id] = u
	return nil
}

func (m *mockUserRepo) SetPasswordResetToken(_ context.Context, id, tokenHash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.PasswordResetToken = tokenHash
	u.PasswordResetExpires = &expiresAt
	m.byID[id] = u
	return nil
}

func (m *mockUserRepo) ClearPasswordResetToken(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.byID[id]
	u.PasswordResetToken = ""
	u.PasswordResetExpires = nil
	m.byID[id] = u
	return nil
}

func (m *mockUserRepo) ConsumePasswordResetToken(_ context.Context, id, tokenHash, passwordHash string, changedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok || u.PasswordResetToken != tokenHash || u.PasswordResetExpires == nil || !time.Now().Before(*u.PasswordResetExpires) {
		return domain.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.PasswordChangedAt = &changedAt
	u.PasswordResetToken = ""
	u.PasswordResetExpires = nil
	m.byID[id] = u
	return nil
}

func (m *mockUserRepo) Deactivate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok || !u.Active {
		return domain.ErrNotFound
	}
	u.Active = false
	m.byID[id] = u
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *mockUserRepo) Follow(_ context.Context, followerID, followeeID string) (domain.User, error) {
	return m.setFollow(followerID, followeeID, true)
}

func (m *mockUserRepo) Unfollow(_ context.Context, followerID, followeeID string) (domain.User, error) {
	return m.setFollow(followerID, followeeID, false)
}

func (m *mockUserRepo) setFollow(followerID, followeeID string, on bool) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	follower, ok1 := m.byID[followerID]
	followee, ok2 := m.byID[followeeID]
	if !ok1 || !ok2 || !follower.Active || !followee.Active {
		return domain.User{}, domain.ErrNotFound
	}
	key := [2]string{followerID, followeeID}
	if m.follows[key] != on {
		delta := 1
		if !on {
			delta = -1
		}
		m.follows[key] = on
		follower.FollowingCount += delta
		followee.FollowersCount += delta
		m.byID[followerID] = follower
		m.byID[followeeID] = followee
	}
	return followee, nil
}

type mockPostRepo struct {
	mu       sync.Mutex
	posts    map[string]domain.Post
	likes    map[string][]string
	comments map[string]domain.Comment
	feed     map[string][]string
}

func newMockPostRepo() *mockPostRepo {
	return &mockPostRepo{
		posts:    make(map[string]domain.Post),
		likes:    make(map[string][]string),
		comments: make(map[string]domain.Comment),
		feed:     make(map[string][]string),
	}
}

var _ repository.PostRepository = (*mockPostRepo)(nil)

func (m *mockPostRepo) Create(_ context.Context, post domain.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts[post.ID] = post
	return nil
}

func (m *mockPostRepo) GetByID(_ context.Context, id string) (domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return domain.Post{}, domain.ErrNotFound
	}
	return p, nil
}

func (m *mockPostRepo) view(p domain.Post) domain.PostView {
	v := domain.PostView{
		Post:     p,
		PostedBy: domain.UserSummary{ID: p.AuthorID},
		Likes:    append([]string{}, m.likes[p.ID]...),
		Comments: []domain.CommentView{},
	}
	for _, c := range m.comments {
		if c.PostID == p.ID {
			v.Comments = append(v.Comments, domain.CommentView{Comment: c, PostedBy: domain.UserSummary{ID: c.UserID}})
		}
	}
	return v
}

func (m *mockPostRepo) GetView(_ context.Context, id string) (domain.PostView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return domain.PostView{}, domain.ErrNotFound
	}
	return m.view(p), nil
}

func (m *mockPostRepo) list(keep func(domain.Post) bool) []domain.PostView {
	out := []domain.PostView{}
	for _, p := range m.posts {
		if keep(p) {
			out = append(out, m.view(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *mockPostRepo) ListAll(_ context.Context) ([]domain.PostView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list(func(domain.Post) bool { return true }), nil
}

func (m *mockPostRepo) ListByAuthor(_ context.Context, authorID string) ([]domain.PostView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list(func(p domain.Post) bool { return p.AuthorID == authorID }), nil
}

func (m *mockPostRepo) ListFeed(_ context.Context, followerID string) ([]domain.PostView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	followed := m.feed[followerID]
	return m.list(func(p domain.Post) bool {
		for _, id := range followed {
			if p.AuthorID == id {
				return true
			}
		}
		return false
	}), nil
}

func (m *mockPostRepo) Update(_ context.Context, id string, upd domain.PostUpdate) (domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return domain.Post{}, domain.ErrNotFound
	}
	if upd.Title != nil {
		p.Title = *upd.Title
	}
	if upd.Body != nil {
		p.Body = *upd.Body
	}
	if upd.Photo != nil {
		p.Photo = *upd.Photo
	}
	m.posts[id] = p
	return p, nil
}

func (m *mockPostRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.posts, id)
	return nil
}

func (m *mockPostRepo) Like(_ context.Context, postID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[postID]; !ok {
		return domain.ErrNotFound
	}
	for _, id := range m.likes[postID] {
		if id == userID {
			return nil
		}
	}
	m.likes[postID] = append(m.likes[postID], userID)
	return nil
}

func (m *mockPostRepo) Unlike(_ context.Context, postID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[postID]; !ok {
		return domain.ErrNotFound
	}
	kept := m.likes[postID][:0]
	for _, id := range m.likes[postID] {
		if id != userID {
			kept = append(kept, id)
		}
	}
	m.likes[postID] = kept
	return nil
}

func (m *mockPostRepo) AddComment(_ context.Context, c domain.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[c.PostID]; !ok {
		return domain.ErrNotFound
	}
	m.comments[c.ID] = c
	return nil
}

func (m *mockPostRepo) GetComment(_ context.Context, id string) (domain.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok {
		return domain.Comment{}, domain.ErrNotFound
	}
	return c, nil
}

func (m *mockPostRepo) DeleteComment(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.comments[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.comments, id)
	return nil
}

type mockEmailSender struct {
	sent []email.Message
	err  error
}

func (m *mockEmailSender) Send(_ context.Context, msg email.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type denyAll struct{}

func (denyAll) Allow(context.Context, string) (bool, time.Duration) { return false, 90 * time.Second }
